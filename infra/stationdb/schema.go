package stationdb

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS stations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		area TEXT NOT NULL DEFAULT '',
		rapid_chargers INTEGER,
		fast_chargers INTEGER,
		slow_chargers INTEGER,
		parking_spaces INTEGER,
		latitude REAL,
		longitude REAL,
		average_rating REAL,
		total_bookings INTEGER,
		amenities_score INTEGER,
		status TEXT NOT NULL DEFAULT 'Active'
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station_id INTEGER NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		charger_type TEXT NOT NULL DEFAULT '',
		arrival_ts INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'Request Pending',
		user_remark TEXT NOT NULL DEFAULT '-',
		station_remark TEXT NOT NULL DEFAULT '_',
		user_rating INTEGER NOT NULL DEFAULT 0,
		wait_time_actual INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_station_arrival ON bookings (station_id, arrival_ts)`,
	`CREATE INDEX IF NOT EXISTS bookings_status ON bookings (status)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS stations (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		area TEXT NOT NULL DEFAULT '',
		rapid_chargers INTEGER,
		fast_chargers INTEGER,
		slow_chargers INTEGER,
		parking_spaces BIGINT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		average_rating DOUBLE PRECISION,
		total_bookings INTEGER,
		amenities_score INTEGER,
		status TEXT NOT NULL DEFAULT 'Active'
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGSERIAL PRIMARY KEY,
		station_id BIGINT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		charger_type TEXT NOT NULL DEFAULT '',
		arrival_ts BIGINT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Request Pending',
		user_remark TEXT NOT NULL DEFAULT '-',
		station_remark TEXT NOT NULL DEFAULT '_',
		user_rating INTEGER NOT NULL DEFAULT 0,
		wait_time_actual INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_station_arrival ON bookings (station_id, arrival_ts)`,
	`CREATE INDEX IF NOT EXISTS bookings_status ON bookings (status)`,
}
