// Package decisionlog keeps an audit trail of served recommendations.
package decisionlog

import (
	"context"
	"time"
)

// Item is one ranked station of a served list.
type Item struct {
	StationID         int64   `json:"station_id"`
	Score             float64 `json:"score"`
	PredictedWaitTime int     `json:"predicted_wait_time"`
	Distance          float64 `json:"distance"`
}

// Record captures one recommendation decision.
type Record struct {
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	Source         string    `json:"source"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	ChargerType    string    `json:"charger_type,omitempty"`
	Limit          int       `json:"limit"`
	Candidates     int       `json:"candidates"`
	Skipped        int       `json:"skipped"`
	Items          []Item    `json:"items"`
}

// Query defines filters for retrieving records. Zero fields match all.
type Query struct {
	Start     time.Time
	End       time.Time
	StationID int64
	Source    string
}

// Matches reports whether r passes every filter of q.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Source != "" && r.Source != q.Source {
		return false
	}
	if q.StationID != 0 {
		for _, it := range r.Items {
			if it.StationID == q.StationID {
				return true
			}
		}
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
