// Package events defines the events emitted on the event bus when the live
// scoring model changes.
package events
