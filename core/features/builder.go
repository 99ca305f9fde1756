package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
)

// Size is the number of elements in a feature vector.
const Size = 14

// LayoutVersion identifies the element order below.
const LayoutVersion = 1

// Positions of the vector elements.
const (
	IdxRapid = iota
	IdxFast
	IdxSlow
	IdxParking
	IdxRating
	IdxTotalBookings
	IdxAmenities
	IdxOccupancy
	IdxDistance
	IdxHour
	IdxWeekday
	IdxWeekend
	IdxPeakHour
	IdxPrefRapid
)

// ErrFeatureBuild wraps every reason a vector could not be assembled.
var ErrFeatureBuild = errors.New("feature build failed")

// Vector is an ordered feature tuple.
type Vector [Size]float64

// Slice returns a copy of v as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Size)
	copy(out, v[:])
	return out
}

// OccupancySource counts the accepted bookings of a station on a given day.
type OccupancySource interface {
	CountAccepted(ctx context.Context, stationID int64, day time.Time) (int, error)
}

// Builder assembles feature vectors.
type Builder struct {
	occ OccupancySource
	now func() time.Time
	log logger.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the wall clock used to pick "today" for occupancy.
func WithClock(now func() time.Time) Option { return func(b *Builder) { b.now = now } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(b *Builder) { b.log = logger.OrNop(l) } }

// NewBuilder returns a Builder reading occupancy from occ. A nil occ yields
// an occupancy of 0 for every station.
func NewBuilder(occ OccupancySource, opts ...Option) *Builder {
	b := &Builder{occ: occ, now: time.Now, log: logger.Nop{}}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build returns the feature vector for st. It never fails: when the vector
// cannot be assembled a zero vector is returned.
func (b *Builder) Build(ctx context.Context, st model.Station, user model.Location, ts time.Time, prefs *model.Preferences) Vector {
	v, err := b.BuildStrict(ctx, st, user, ts, prefs)
	if err != nil {
		b.log.Warnf("station %d: %v, using zero vector", st.ID, err)
		return Vector{}
	}
	return v
}

// BuildStrict is Build with the failure reported instead of zero-filled.
func (b *Builder) BuildStrict(ctx context.Context, st model.Station, user model.Location, ts time.Time, prefs *model.Preferences) (Vector, error) {
	var v Vector
	if err := st.Validate(); err != nil {
		return v, fmt.Errorf("%w: %v", ErrFeatureBuild, err)
	}
	if !user.Valid() {
		return v, fmt.Errorf("%w: invalid user location", ErrFeatureBuild)
	}
	if ts.IsZero() {
		return v, fmt.Errorf("%w: missing timestamp", ErrFeatureBuild)
	}

	v[IdxRapid] = float64(st.RapidChargers)
	v[IdxFast] = float64(st.FastChargers)
	v[IdxSlow] = float64(st.SlowChargers)
	v[IdxParking] = float64(st.ParkingSpaces)
	v[IdxRating] = st.AverageRating
	v[IdxTotalBookings] = float64(st.TotalBookings)
	v[IdxAmenities] = float64(st.AmenitiesScore)
	v[IdxOccupancy] = b.OccupancyRate(ctx, st)
	v[IdxDistance] = model.ProxyDistance(st.Location, user)

	hour := ts.Hour()
	day := Weekday(ts)
	v[IdxHour] = float64(hour)
	v[IdxWeekday] = float64(day)
	v[IdxWeekend] = boolToFloat(day >= 5)
	v[IdxPeakHour] = boolToFloat(IsPeakHour(hour))
	v[IdxPrefRapid] = boolToFloat(prefs.WantsRapid())

	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Vector{}, fmt.Errorf("%w: element %d not finite", ErrFeatureBuild, i)
		}
	}
	return v, nil
}

// OccupancyRate returns today's occupancy of st in percent. Lookup failures
// are logged and count as 0.
func (b *Builder) OccupancyRate(ctx context.Context, st model.Station) float64 {
	if b.occ == nil {
		return 0
	}
	n, err := b.occ.CountAccepted(ctx, st.ID, b.now())
	if err != nil {
		b.log.Debugf("occupancy lookup for station %d: %v", st.ID, err)
		return 0
	}
	return OccupancyRate(n, st.TotalPorts())
}

// OccupancyRate is accepted bookings over total ports, in percent. It is 0
// when the station has no ports.
func OccupancyRate(accepted, totalPorts int) float64 {
	if totalPorts <= 0 {
		return 0
	}
	return float64(accepted) / float64(totalPorts) * 100
}

// WaitTime estimates the wait in minutes from an occupancy rate: one minute
// per ten percent of occupancy, never less than one.
func WaitTime(occupancy float64) int {
	w := int(math.Floor(occupancy / 10))
	if w < 1 {
		return 1
	}
	return w
}

// Weekday returns the day of week with Monday as 0 and Sunday as 6.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsPeakHour reports whether hour falls in the 9-11 or 18-20 windows.
func IsPeakHour(hour int) bool {
	switch hour {
	case 9, 10, 11, 18, 19, 20:
		return true
	}
	return false
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
