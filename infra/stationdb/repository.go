// Package stationdb reads stations and bookings from SQLite or Postgres
// and serves them to the recommendation engine.
package stationdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	gobreaker "github.com/sony/gobreaker/v2"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const defaultPingTimeout = 5 * time.Second

// Repository implements the engine's station and booking sources.
type Repository struct {
	db          *sqlx.DB
	cb          *gobreaker.CircuitBreaker[any]
	readTimeout time.Duration
	defaultLoc  model.Location
	log         logger.Logger
}

// Open connects to the configured database, pings it and, unless disabled,
// creates the schema. def is the location given to stations without
// coordinates.
func Open(ctx context.Context, cfg Config, def model.Location, log logger.Logger) (*Repository, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver, _ := driverName(cfg.Driver)
	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	pctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	r := New(db, cfg, def, log)
	if *cfg.Migrate {
		if err := r.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return r, nil
}

// New wraps an open database.
func New(db *sqlx.DB, cfg Config, def model.Location, log logger.Logger) *Repository {
	cfg.SetDefaults()
	log = logger.OrNop(log)
	return &Repository{
		db:          db,
		cb:          newBreaker("stationdb", cfg.Breaker, log),
		readTimeout: cfg.ReadTimeout(),
		defaultLoc:  def,
		log:         log,
	}
}

// Migrate creates missing tables and indexes.
func (r *Repository) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if r.db.DriverName() == "pgx" {
		stmts = postgresSchema
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (r *Repository) Close() error { return r.db.Close() }

// DB exposes the underlying handle.
func (r *Repository) DB() *sqlx.DB { return r.db }

type stationRow struct {
	ID             int64    `db:"id"`
	Name           string   `db:"name"`
	City           string   `db:"city"`
	Area           string   `db:"area"`
	RapidChargers  *int     `db:"rapid_chargers"`
	FastChargers   *int     `db:"fast_chargers"`
	SlowChargers   *int     `db:"slow_chargers"`
	ParkingSpaces  *int64   `db:"parking_spaces"`
	Latitude       *float64 `db:"latitude"`
	Longitude      *float64 `db:"longitude"`
	AverageRating  *float64 `db:"average_rating"`
	TotalBookings  *int     `db:"total_bookings"`
	AmenitiesScore *int     `db:"amenities_score"`
	Status         string   `db:"status"`
}

func (s stationRow) input() model.StationInput {
	return model.StationInput{
		ID:             s.ID,
		Name:           s.Name,
		City:           s.City,
		Area:           s.Area,
		Status:         s.Status,
		RapidChargers:  s.RapidChargers,
		FastChargers:   s.FastChargers,
		SlowChargers:   s.SlowChargers,
		ParkingSpaces:  s.ParkingSpaces,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		AverageRating:  s.AverageRating,
		TotalBookings:  s.TotalBookings,
		AmenitiesScore: s.AmenitiesScore,
	}
}

const stationColumns = `id, name, city, area, rapid_chargers, fast_chargers, slow_chargers,
	parking_spaces, latitude, longitude, average_rating, total_bookings, amenities_score, status`

// ActiveStations lists stations with Active status ordered by ID.
func (r *Repository) ActiveStations(ctx context.Context) ([]model.Station, error) {
	return read(ctx, r, func(ctx context.Context) ([]model.Station, error) {
		var rows []stationRow
		q := r.db.Rebind(`SELECT ` + stationColumns + ` FROM stations WHERE status = ? ORDER BY id`)
		if err := r.db.SelectContext(ctx, &rows, q, string(model.StationActive)); err != nil {
			return nil, fmt.Errorf("select active stations: %w", err)
		}
		out := make([]model.Station, len(rows))
		for i, row := range rows {
			out[i] = row.input().Resolve(r.defaultLoc)
		}
		return out, nil
	})
}

// Station fetches one station by ID.
func (r *Repository) Station(ctx context.Context, id int64) (model.Station, error) {
	return read(ctx, r, func(ctx context.Context) (model.Station, error) {
		var row stationRow
		q := r.db.Rebind(`SELECT ` + stationColumns + ` FROM stations WHERE id = ?`)
		if err := r.db.GetContext(ctx, &row, q, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.Station{}, fmt.Errorf("station %d: %w", id, model.ErrStationNotFound)
			}
			return model.Station{}, fmt.Errorf("select station %d: %w", id, err)
		}
		return row.input().Resolve(r.defaultLoc), nil
	})
}

type bookingRow struct {
	ID             int64  `db:"id"`
	StationID      int64  `db:"station_id"`
	CustomerName   string `db:"customer_name"`
	ChargerType    string `db:"charger_type"`
	ArrivalTS      int64  `db:"arrival_ts"`
	Status         string `db:"status"`
	UserRemark     string `db:"user_remark"`
	StationRemark  string `db:"station_remark"`
	UserRating     int    `db:"user_rating"`
	WaitTimeActual int    `db:"wait_time_actual"`
}

func (b bookingRow) booking() model.Booking {
	return model.Booking{
		ID:             b.ID,
		StationID:      b.StationID,
		CustomerName:   b.CustomerName,
		ChargerType:    b.ChargerType,
		ArrivalTime:    time.Unix(b.ArrivalTS, 0).UTC(),
		Status:         model.BookingStatus(b.Status),
		UserRemark:     b.UserRemark,
		StationRemark:  b.StationRemark,
		UserRating:     b.UserRating,
		WaitTimeActual: b.WaitTimeActual,
	}
}

// EligibleBookings returns bookings in one of statuses that carry a user
// remark other than the default, ordered by ID.
func (r *Repository) EligibleBookings(ctx context.Context, statuses []model.BookingStatus) ([]model.Booking, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	return read(ctx, r, func(ctx context.Context) ([]model.Booking, error) {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		q, args, err := sqlx.In(`SELECT id, station_id, customer_name, charger_type, arrival_ts, status,
			user_remark, station_remark, user_rating, wait_time_actual
			FROM bookings
			WHERE status IN (?) AND TRIM(user_remark) <> '' AND TRIM(user_remark) <> ?
			ORDER BY id`, names, model.DefaultUserRemark)
		if err != nil {
			return nil, err
		}
		var rows []bookingRow
		if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
			return nil, fmt.Errorf("select eligible bookings: %w", err)
		}
		out := make([]model.Booking, len(rows))
		for i, row := range rows {
			out[i] = row.booking()
		}
		return out, nil
	})
}

// CountAccepted counts accepted bookings of a station arriving on the
// calendar day of day, in day's location.
func (r *Repository) CountAccepted(ctx context.Context, stationID int64, day time.Time) (int, error) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	return read(ctx, r, func(ctx context.Context) (int, error) {
		var n int
		q := r.db.Rebind(`SELECT COUNT(*) FROM bookings
			WHERE station_id = ? AND status = ? AND arrival_ts >= ? AND arrival_ts < ?`)
		if err := r.db.GetContext(ctx, &n, q, stationID, string(model.BookingAccepted), start.Unix(), end.Unix()); err != nil {
			return 0, fmt.Errorf("count accepted bookings: %w", err)
		}
		return n, nil
	})
}

// BookingStats counts all bookings and those with user feedback.
func (r *Repository) BookingStats(ctx context.Context) (model.BookingStats, error) {
	return read(ctx, r, func(ctx context.Context) (model.BookingStats, error) {
		var st struct {
			Total        int `db:"total"`
			WithFeedback int `db:"with_feedback"`
		}
		q := r.db.Rebind(`SELECT COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN TRIM(user_remark) <> '' AND TRIM(user_remark) <> ? THEN 1 ELSE 0 END), 0) AS with_feedback
			FROM bookings`)
		if err := r.db.GetContext(ctx, &st, q, model.DefaultUserRemark); err != nil {
			return model.BookingStats{}, fmt.Errorf("booking stats: %w", err)
		}
		return model.BookingStats{Total: st.Total, WithFeedback: st.WithFeedback}, nil
	})
}

// UpsertStation inserts in, or replaces the station with the same non-zero
// ID, and returns its ID.
func (r *Repository) UpsertStation(ctx context.Context, in model.StationInput) (int64, error) {
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = string(model.StationActive)
	}
	args := []any{in.Name, in.City, in.Area, in.RapidChargers, in.FastChargers, in.SlowChargers,
		in.ParkingSpaces, in.Latitude, in.Longitude, in.AverageRating, in.TotalBookings, in.AmenitiesScore, status}
	cols := `name, city, area, rapid_chargers, fast_chargers, slow_chargers, parking_spaces,
		latitude, longitude, average_rating, total_bookings, amenities_score, status`
	var q string
	if in.ID == 0 {
		q = `INSERT INTO stations (` + cols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	} else {
		q = `INSERT INTO stations (id, ` + cols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, city = excluded.city, area = excluded.area,
			rapid_chargers = excluded.rapid_chargers, fast_chargers = excluded.fast_chargers,
			slow_chargers = excluded.slow_chargers, parking_spaces = excluded.parking_spaces,
			latitude = excluded.latitude, longitude = excluded.longitude,
			average_rating = excluded.average_rating, total_bookings = excluded.total_bookings,
			amenities_score = excluded.amenities_score, status = excluded.status
			RETURNING id`
		args = append([]any{in.ID}, args...)
	}
	var id int64
	if err := r.db.QueryRowxContext(ctx, r.db.Rebind(q), args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert station: %w", err)
	}
	return id, nil
}

// InsertBooking stores b and returns its ID. Empty remarks take the
// default markers.
func (r *Repository) InsertBooking(ctx context.Context, b model.Booking) (int64, error) {
	if strings.TrimSpace(b.UserRemark) == "" {
		b.UserRemark = model.DefaultUserRemark
	}
	if strings.TrimSpace(b.StationRemark) == "" {
		b.StationRemark = model.DefaultStationRemark
	}
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	q := r.db.Rebind(`INSERT INTO bookings (station_id, customer_name, charger_type, arrival_ts, status,
		user_remark, station_remark, user_rating, wait_time_actual)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := r.db.QueryRowxContext(ctx, q, b.StationID, b.CustomerName, b.ChargerType, b.ArrivalTime.Unix(),
		string(b.Status), b.UserRemark, b.StationRemark, b.UserRating, b.WaitTimeActual).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert booking: %w", err)
	}
	return id, nil
}

// BreakerState reports the circuit breaker state for status displays.
func (r *Repository) BreakerState() string { return r.cb.State().String() }
