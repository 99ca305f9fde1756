package model

import (
	"strings"
	"time"
)

// BookingStatus is the lifecycle state of a slot booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "Request Pending"
	BookingAccepted  BookingStatus = "Accept"
	BookingRejected  BookingStatus = "Reject"
	BookingCompleted BookingStatus = "Completed"
)

const (
	// DefaultUserRemark marks a booking without user feedback.
	DefaultUserRemark = "-"
	// DefaultStationRemark marks a booking without a station remark.
	DefaultStationRemark = "_"
)

// UsableOutcomes lists the statuses whose bookings can serve as training examples.
var UsableOutcomes = []BookingStatus{BookingAccepted, BookingCompleted}

// Usable reports whether the status belongs to UsableOutcomes.
func (s BookingStatus) Usable() bool {
	for _, u := range UsableOutcomes {
		if s == u {
			return true
		}
	}
	return false
}

// Booking is a historical slot booking at a station.
type Booking struct {
	ID             int64         `json:"id"`
	StationID      int64         `json:"station_id"`
	CustomerName   string        `json:"customer_name,omitempty"`
	ChargerType    string        `json:"charger_type,omitempty"`
	ArrivalTime    time.Time     `json:"arrival_time"`
	Status         BookingStatus `json:"status"`
	UserRemark     string        `json:"user_remark"`
	StationRemark  string        `json:"station_remark"`
	UserRating     int           `json:"user_rating"`      // 1-5, 0 when unset
	WaitTimeActual int           `json:"wait_time_actual"` // minutes, 0 when unset
}

// HasFeedback reports whether the user left a remark other than the default.
func (b Booking) HasFeedback() bool {
	r := strings.TrimSpace(b.UserRemark)
	return r != "" && r != DefaultUserRemark
}

// Eligible reports whether the booking can be used as a training example.
func (b Booking) Eligible() bool {
	return b.Status.Usable() && b.HasFeedback()
}

// BookingStats summarises the booking table for status displays.
type BookingStats struct {
	Total        int `json:"total"`
	WithFeedback int `json:"with_feedback"`
}
