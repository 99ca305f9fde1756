package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrStationNotFound is returned by station lookups for unknown identifiers.
var ErrStationNotFound = errors.New("station not found")

// StationStatus is the operational state of a station.
type StationStatus string

const (
	StationActive   StationStatus = "Active"
	StationInactive StationStatus = "Inactive"
)

// Station is the read-only view of a charging station used by the engine.
// Optional attributes are resolved to their defaults at ingestion, see
// StationInput.Resolve.
type Station struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	City           string        `json:"city,omitempty"`
	Area           string        `json:"area,omitempty"`
	RapidChargers  int           `json:"rapid_chargers"`
	FastChargers   int           `json:"fast_chargers"`
	SlowChargers   int           `json:"slow_chargers"`
	ParkingSpaces  int64         `json:"parking_spaces"`
	Location       Location      `json:"location"`
	AverageRating  float64       `json:"average_rating"`
	TotalBookings  int           `json:"total_bookings"`
	AmenitiesScore int           `json:"amenities_score"`
	Status         StationStatus `json:"status"`
}

// TotalPorts returns the number of charger ports of all kinds.
func (s Station) TotalPorts() int {
	return s.RapidChargers + s.FastChargers + s.SlowChargers
}

// Active reports whether the station is operating and bookable.
func (s Station) Active() bool { return s.Status == StationActive }

// Validate checks that every numeric attribute can be used as a feature.
func (s Station) Validate() error {
	if !s.Location.Valid() {
		return fmt.Errorf("station %d: invalid coordinates", s.ID)
	}
	if math.IsNaN(s.AverageRating) || math.IsInf(s.AverageRating, 0) {
		return fmt.Errorf("station %d: invalid rating", s.ID)
	}
	return nil
}

// StationInput carries raw station attributes as they come from storage or
// fixtures. Nil fields are absent and take the documented default.
type StationInput struct {
	ID             int64    `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	City           string   `json:"city" yaml:"city"`
	Area           string   `json:"area" yaml:"area"`
	Status         string   `json:"status" yaml:"status"`
	RapidChargers  *int     `json:"rapid_chargers" yaml:"rapid_chargers"`
	FastChargers   *int     `json:"fast_chargers" yaml:"fast_chargers"`
	SlowChargers   *int     `json:"slow_chargers" yaml:"slow_chargers"`
	ParkingSpaces  *int64   `json:"parking_spaces" yaml:"parking_spaces"`
	Latitude       *float64 `json:"latitude" yaml:"latitude"`
	Longitude      *float64 `json:"longitude" yaml:"longitude"`
	AverageRating  *float64 `json:"average_rating" yaml:"average_rating"`
	TotalBookings  *int     `json:"total_bookings" yaml:"total_bookings"`
	AmenitiesScore *int     `json:"amenities_score" yaml:"amenities_score"`
}

// Resolve converts the input into a Station. Missing counts, rating and
// scores default to zero, missing coordinates to def and a missing status to
// Active.
func (in StationInput) Resolve(def Location) Station {
	st := Station{
		ID:     in.ID,
		Name:   in.Name,
		City:   in.City,
		Area:   in.Area,
		Status: StationStatus(in.Status),
	}
	if st.Status == "" {
		st.Status = StationActive
	}
	st.RapidChargers = intOr(in.RapidChargers)
	st.FastChargers = intOr(in.FastChargers)
	st.SlowChargers = intOr(in.SlowChargers)
	if in.ParkingSpaces != nil {
		st.ParkingSpaces = *in.ParkingSpaces
	}
	st.Location = def
	if in.Latitude != nil {
		st.Location.Lat = *in.Latitude
	}
	if in.Longitude != nil {
		st.Location.Lng = *in.Longitude
	}
	if in.AverageRating != nil {
		st.AverageRating = *in.AverageRating
	}
	st.TotalBookings = intOr(in.TotalBookings)
	st.AmenitiesScore = intOr(in.AmenitiesScore)
	return st
}

func intOr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
