package features

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evreco/core/model"
)

type fakeOccupancy struct {
	counts map[int64]int
	err    error
}

func (f fakeOccupancy) CountAccepted(_ context.Context, id int64, _ time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[id], nil
}

var mumbai = model.Location{Lat: 19.0760, Lng: 72.8777}

func stationA() model.Station {
	return model.Station{
		ID:             1,
		RapidChargers:  2,
		FastChargers:   3,
		ParkingSpaces:  8,
		Location:       model.Location{Lat: 19.10, Lng: 72.90},
		AverageRating:  4.0,
		TotalBookings:  12,
		AmenitiesScore: 3,
		Status:         model.StationActive,
	}
}

func TestBuildStrict_ReferenceVector(t *testing.T) {
	b := NewBuilder(fakeOccupancy{})
	wed := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	v, err := b.BuildStrict(context.Background(), stationA(), mumbai, wed, nil)
	require.NoError(t, err)

	want := Vector{2, 3, 0, 8, 4.0, 12, 3, 0, 0.0463, 10, 2, 0, 1, 0}
	for i := range want {
		assert.InDelta(t, want[i], v[i], 1e-9, "element %d", i)
	}
}

func TestBuild_PreferenceAndWeekend(t *testing.T) {
	b := NewBuilder(nil)
	sat := time.Date(2024, 1, 13, 19, 30, 0, 0, time.UTC)
	v := b.Build(context.Background(), stationA(), mumbai, sat, &model.Preferences{ChargerType: model.ChargerRapid})
	if v[IdxWeekday] != 5 || v[IdxWeekend] != 1 {
		t.Fatalf("saturday not flagged: %v", v)
	}
	if v[IdxPeakHour] != 1 || v[IdxHour] != 19 {
		t.Fatalf("evening peak not flagged: %v", v)
	}
	if v[IdxPrefRapid] != 1 {
		t.Fatalf("rapid preference not flagged")
	}
	v = b.Build(context.Background(), stationA(), mumbai, sat, &model.Preferences{ChargerType: model.ChargerFast})
	if v[IdxPrefRapid] != 0 {
		t.Fatalf("fast preference must not set the rapid flag")
	}
}

func TestBuild_MissingAttributesStillSized(t *testing.T) {
	st := model.StationInput{ID: 3}.Resolve(model.DefaultLocation)
	v := NewBuilder(nil).Build(context.Background(), st, mumbai, time.Now(), nil)
	if len(v.Slice()) != Size {
		t.Fatalf("expected %d elements", Size)
	}
	if v[IdxDistance] != 0 {
		t.Fatalf("station at default location should be at distance 0, got %f", v[IdxDistance])
	}
}

func TestBuild_InvalidStationZeroVector(t *testing.T) {
	st := stationA()
	st.Location.Lat = math.NaN()
	b := NewBuilder(nil)
	if v := b.Build(context.Background(), st, mumbai, time.Now(), nil); v != (Vector{}) {
		t.Fatalf("expected zero vector, got %v", v)
	}
	_, err := b.BuildStrict(context.Background(), st, mumbai, time.Now(), nil)
	if !errors.Is(err, ErrFeatureBuild) {
		t.Fatalf("expected ErrFeatureBuild, got %v", err)
	}
}

func TestOccupancyRate(t *testing.T) {
	if OccupancyRate(4, 0) != 0 {
		t.Fatalf("zero ports must give zero occupancy")
	}
	if OccupancyRate(1, 4) != 25 {
		t.Fatalf("expected 25%%")
	}
	b := NewBuilder(fakeOccupancy{counts: map[int64]int{1: 5}})
	assert.Equal(t, 100.0, b.OccupancyRate(context.Background(), stationA()))

	noPorts := stationA()
	noPorts.RapidChargers, noPorts.FastChargers = 0, 0
	assert.Equal(t, 0.0, b.OccupancyRate(context.Background(), noPorts))
}

func TestOccupancyRate_LookupErrorIsZero(t *testing.T) {
	b := NewBuilder(fakeOccupancy{err: errors.New("db down")})
	if got := b.OccupancyRate(context.Background(), stationA()); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
}

func TestWaitTime(t *testing.T) {
	assert.Equal(t, 1, WaitTime(0))
	assert.Equal(t, 1, WaitTime(19.9))
	assert.Equal(t, 4, WaitTime(40))
	assert.Equal(t, 12, WaitTime(125))
}

func TestWeekdayMondayFirst(t *testing.T) {
	mon := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if got := Weekday(mon.AddDate(0, 0, i)); got != i {
			t.Fatalf("day %d: got %d", i, got)
		}
	}
}
