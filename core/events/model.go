package events

import "time"

// ModelEventKind tells subscribers what happened to the live model.
type ModelEventKind string

const (
	// ModelTrained is published after a new artifact was swapped in.
	ModelTrained ModelEventKind = "trained"
	// ModelLoaded is published when an artifact was restored from the store.
	ModelLoaded ModelEventKind = "loaded"
	// TrainingFailed is published when a run ended without a new artifact.
	TrainingFailed ModelEventKind = "training_failed"
)

// ModelEvent is published on every model state transition.
type ModelEvent struct {
	Kind      ModelEventKind `json:"kind"`
	Samples   int            `json:"samples"`
	TrainedAt time.Time      `json:"trained_at,omitempty"`
	Persisted bool           `json:"persisted"`
	Reason    string         `json:"reason,omitempty"`
	Time      time.Time      `json:"time"`
}
