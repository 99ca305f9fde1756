// Package metrics defines the recommendation events recorded by metrics
// sinks. A sink must record recommendations; training, fallback and model
// state recorders are optional interfaces checked at call time. Sinks are
// built from configuration through a factory registry and combined with
// NewMultiSink when several are configured.
package metrics
