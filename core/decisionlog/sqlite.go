package decisionlog

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS recommendation_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	ts INTEGER NOT NULL,
	source TEXT NOT NULL,
	record TEXT NOT NULL
)`

const sqliteItemsSchema = `CREATE TABLE IF NOT EXISTS recommendation_log_items (
	log_id INTEGER NOT NULL,
	station_id INTEGER NOT NULL
)`

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{sqliteSchema, sqliteItemsSchema} {
		if _, err := db.Exec(stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record and indexes its station IDs.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO recommendation_log (request_id, ts, source, record) VALUES (?, ?, ?, ?)`,
		rec.RequestID, rec.Timestamp.UnixNano(), rec.Source, string(b))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, it := range rec.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recommendation_log_items (log_id, station_id) VALUES (?, ?)`, id, it.StationID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns records matching q ordered by time.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT record FROM recommendation_log WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Source != "" {
		query += ` AND source = ?`
		args = append(args, q.Source)
	}
	if q.StationID != 0 {
		query += ` AND id IN (SELECT log_id FROM recommendation_log_items WHERE station_id = ?)`
		args = append(args, q.StationID)
	}
	query += ` ORDER BY ts, id`
	var rows []string
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	res := make([]Record, 0, len(rows))
	for _, data := range rows {
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
