package mqtt

import "time"

// StatusMessage is the retained payload describing the live model.
type StatusMessage struct {
	IsTrained bool       `json:"is_trained"`
	Event     string     `json:"event"`
	Samples   int        `json:"samples,omitempty"`
	TrainedAt *time.Time `json:"trained_at,omitempty"`
	Persisted bool       `json:"persisted"`
	Reason    string     `json:"reason,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// Publisher sends model status updates to subscribers such as station
// displays or fleet dashboards.
type Publisher interface {
	// PublishStatus publishes msg on the configured status topic.
	PublishStatus(msg StatusMessage) error
}
