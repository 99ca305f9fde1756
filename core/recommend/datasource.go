package recommend

import (
	"context"

	"github.com/kilianp07/evreco/core/features"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/scoring"
)

// StationSource lists and fetches stations. Station returns an error
// wrapping model.ErrStationNotFound for unknown identifiers.
type StationSource interface {
	ActiveStations(ctx context.Context) ([]model.Station, error)
	Station(ctx context.Context, id int64) (model.Station, error)
}

// BookingSource reads historical bookings.
type BookingSource interface {
	features.OccupancySource
	// EligibleBookings returns the bookings whose status is in statuses and
	// whose user remark is not the default.
	EligibleBookings(ctx context.Context, statuses []model.BookingStatus) ([]model.Booking, error)
	BookingStats(ctx context.Context) (model.BookingStats, error)
}

// ArtifactStore persists the trained artifact.
type ArtifactStore interface {
	Save(a *scoring.Artifact) error
	Load() (*scoring.Artifact, error)
}
