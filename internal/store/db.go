package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DB wraps sql.DB together with the driver it was opened with, so query
// code can stay dialect-neutral.
type DB struct {
	Client *sql.DB
	Driver string
}

// Open connects to the configured database, tunes the pool and applies the
// schema. SQLite is the default store; Postgres (via pgx) is the production
// option, same as the schema is written for both.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY churn under write load.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	d := &DB{Client: db, Driver: driver}
	if err := d.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// sqliteDSN appends the pragmas the store depends on (WAL, busy timeout,
// foreign keys for cascade deletes) unless the caller set them already.
func sqliteDSN(dsn string) string {
	params := []string{"_journal_mode=WAL", "_busy_timeout=5000", "_foreign_keys=on"}
	for _, p := range params {
		key := p[:strings.Index(p, "=")]
		if strings.Contains(dsn, key) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + p
		} else {
			dsn += "?" + p
		}
	}
	return dsn
}

// Rebind converts ?-style placeholders to the $N form Postgres expects.
// Queries are written with ? throughout; SQLite takes them as-is.
func (d *DB) Rebind(query string) string {
	if d.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

func (d *DB) migrate() error {
	schema := sqliteSchema
	if d.Driver == DriverPostgres {
		schema = postgresSchema
	}
	_, err := d.Client.Exec(schema)
	return err
}

// The five tables and their constraints. The (event_id, student_id) unique
// indexes on registrations, attendance and feedback are the source of truth
// for duplicate prevention; application checks only shape the response.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL,
	event_type  TEXT NOT NULL DEFAULT 'Workshop',
	start_time  DATETIME,
	end_time    DATETIME
);

CREATE TABLE IF NOT EXISTS students (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	name   TEXT NOT NULL,
	email  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS registrations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id       INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	student_id     INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	registered_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (event_id, student_id)
);

CREATE TABLE IF NOT EXISTS attendance (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id       INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	student_id     INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	present        INTEGER NOT NULL DEFAULT 0,
	checked_in_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (event_id, student_id)
);

CREATE TABLE IF NOT EXISTS feedback (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id    INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	student_id  INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	rating      INTEGER NOT NULL,
	comments    TEXT,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (event_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_registrations_event ON registrations(event_id);
CREATE INDEX IF NOT EXISTS idx_registrations_student ON registrations(student_id);
CREATE INDEX IF NOT EXISTS idx_attendance_event ON attendance(event_id);
CREATE INDEX IF NOT EXISTS idx_feedback_event ON feedback(event_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS events (
	id          BIGSERIAL PRIMARY KEY,
	title       TEXT NOT NULL,
	event_type  TEXT NOT NULL DEFAULT 'Workshop',
	start_time  TIMESTAMPTZ,
	end_time    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS students (
	id     BIGSERIAL PRIMARY KEY,
	name   TEXT NOT NULL,
	email  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS registrations (
	id             BIGSERIAL PRIMARY KEY,
	event_id       BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	student_id     BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	registered_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (event_id, student_id)
);

CREATE TABLE IF NOT EXISTS attendance (
	id             BIGSERIAL PRIMARY KEY,
	event_id       BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	student_id     BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	present        INTEGER NOT NULL DEFAULT 0,
	checked_in_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (event_id, student_id)
);

CREATE TABLE IF NOT EXISTS feedback (
	id          BIGSERIAL PRIMARY KEY,
	event_id    BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	student_id  BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	rating      INTEGER NOT NULL,
	comments    TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (event_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_registrations_event ON registrations(event_id);
CREATE INDEX IF NOT EXISTS idx_registrations_student ON registrations(student_id);
CREATE INDEX IF NOT EXISTS idx_attendance_event ON attendance(event_id);
CREATE INDEX IF NOT EXISTS idx_feedback_event ON feedback(event_id);
`
