package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/scoring"
)

type fakeStations struct {
	byID    map[int64]model.Station
	order   []int64
	listErr error
}

func newFakeStations(sts ...model.Station) *fakeStations {
	f := &fakeStations{byID: map[int64]model.Station{}}
	for _, s := range sts {
		f.byID[s.ID] = s
		f.order = append(f.order, s.ID)
	}
	return f
}

func (f *fakeStations) ActiveStations(context.Context) ([]model.Station, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Station
	for _, id := range f.order {
		if s := f.byID[id]; s.Active() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStations) Station(_ context.Context, id int64) (model.Station, error) {
	s, ok := f.byID[id]
	if !ok {
		return model.Station{}, fmt.Errorf("station %d: %w", id, model.ErrStationNotFound)
	}
	return s, nil
}

type fakeBookings struct {
	bookings []model.Booking
	accepted map[int64]int
}

func (f *fakeBookings) CountAccepted(_ context.Context, id int64, _ time.Time) (int, error) {
	return f.accepted[id], nil
}

func (f *fakeBookings) EligibleBookings(_ context.Context, statuses []model.BookingStatus) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.bookings {
		for _, s := range statuses {
			if b.Status == s {
				out = append(out, b)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeBookings) BookingStats(context.Context) (model.BookingStats, error) {
	st := model.BookingStats{Total: len(f.bookings)}
	for _, b := range f.bookings {
		if b.HasFeedback() {
			st.WithFeedback++
		}
	}
	return st, nil
}

type memStore struct {
	mu    sync.Mutex
	art   *scoring.Artifact
	saves int
}

var errEmptyStore = errors.New("empty store")

func (m *memStore) Save(a *scoring.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.art = a
	m.saves++
	return nil
}

func (m *memStore) Load() (*scoring.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.art == nil {
		return nil, errEmptyStore
	}
	return m.art, nil
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

var wednesday10 = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return wednesday10 }

func testStations() []model.Station {
	def := model.DefaultLocation
	return []model.Station{
		model.StationInput{ID: 1, Name: "Bandra", RapidChargers: intp(4), FastChargers: intp(2),
			Latitude: floatp(19.06), Longitude: floatp(72.84), AverageRating: floatp(4.6), TotalBookings: intp(40), AmenitiesScore: intp(4)}.Resolve(def),
		model.StationInput{ID: 2, Name: "Powai", FastChargers: intp(3), SlowChargers: intp(2),
			Latitude: floatp(19.12), Longitude: floatp(72.91), AverageRating: floatp(3.1), TotalBookings: intp(12), AmenitiesScore: intp(2)}.Resolve(def),
		model.StationInput{ID: 3, Name: "Thane", SlowChargers: intp(6),
			Latitude: floatp(19.22), Longitude: floatp(72.98), AverageRating: floatp(2.0), TotalBookings: intp(3), AmenitiesScore: intp(1)}.Resolve(def),
	}
}

func booking(id, station int64, status model.BookingStatus, remark string, hour int) model.Booking {
	return model.Booking{
		ID:          id,
		StationID:   station,
		ArrivalTime: time.Date(2024, 1, 8, hour, 0, 0, 0, time.UTC),
		Status:      status,
		UserRemark:  remark,
	}
}

func trainingBookings() []model.Booking {
	return []model.Booking{
		booking(1, 1, model.BookingCompleted, "Excellent service", 9),
		booking(2, 1, model.BookingAccepted, "good and fast", 18),
		booking(3, 2, model.BookingCompleted, "ok", 12),
		booking(4, 2, model.BookingAccepted, "average wait", 15),
		booking(5, 3, model.BookingCompleted, "bad charger", 20),
		booking(6, 3, model.BookingCompleted, "poor lighting", 7),
		booking(7, 1, model.BookingRejected, "good", 10),
		booking(8, 2, model.BookingCompleted, model.DefaultUserRemark, 11),
	}
}

func testConfig() Config {
	cfg := Config{Trees: 20, Timezone: "UTC"}
	cfg.SetDefaults()
	return cfg
}
