// Package infra holds the adapters the recommendation engine runs on: the
// station database, the model file store, metrics sinks, the MQTT status
// publisher and Sentry. Each sub-package implements an interface declared
// under core and is wired in app.
package infra
