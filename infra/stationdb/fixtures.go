package stationdb

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evreco/core/model"
)

// Fixtures is a seed data set.
type Fixtures struct {
	Stations []model.StationInput `yaml:"stations"`
	Bookings []BookingFixture     `yaml:"bookings"`
}

// BookingFixture is a booking as written in a fixture file.
type BookingFixture struct {
	StationID      int64     `yaml:"station_id"`
	CustomerName   string    `yaml:"customer_name"`
	ChargerType    string    `yaml:"charger_type"`
	ArrivalTime    time.Time `yaml:"arrival_time"`
	Status         string    `yaml:"status"`
	UserRemark     string    `yaml:"user_remark"`
	StationRemark  string    `yaml:"station_remark"`
	UserRating     int       `yaml:"user_rating"`
	WaitTimeActual int       `yaml:"wait_time_actual"`
}

func (f BookingFixture) booking() model.Booking {
	return model.Booking{
		StationID:      f.StationID,
		CustomerName:   f.CustomerName,
		ChargerType:    f.ChargerType,
		ArrivalTime:    f.ArrivalTime,
		Status:         model.BookingStatus(f.Status),
		UserRemark:     f.UserRemark,
		StationRemark:  f.StationRemark,
		UserRating:     f.UserRating,
		WaitTimeActual: f.WaitTimeActual,
	}
}

// LoadFixtures parses a YAML fixture file.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, err
	}
	return ParseFixtures(data)
}

// ParseFixtures parses YAML fixture data.
func ParseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	return f, nil
}

// ImportResult counts imported rows.
type ImportResult struct {
	Stations int
	Bookings int
}

// ImportFixtures upserts every station then inserts every booking in a
// single pass. It stops at the first failure.
func (r *Repository) ImportFixtures(ctx context.Context, f Fixtures) (ImportResult, error) {
	var res ImportResult
	for _, s := range f.Stations {
		if _, err := r.UpsertStation(ctx, s); err != nil {
			return res, fmt.Errorf("station %q: %w", s.Name, err)
		}
		res.Stations++
	}
	for i, b := range f.Bookings {
		if _, err := r.InsertBooking(ctx, b.booking()); err != nil {
			return res, fmt.Errorf("booking %d: %w", i, err)
		}
		res.Bookings++
	}
	r.log.Infof("imported %d stations and %d bookings", res.Stations, res.Bookings)
	return res, nil
}
