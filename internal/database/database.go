package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookcal/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps sql.DB for the scheduling engine.
type DB struct {
	*sql.DB
}

// NewDB opens database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS staff (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Weekly template, one row per weekday (0 = Sunday).
		`CREATE TABLE IF NOT EXISTS working_hours (
			staff_id INTEGER NOT NULL,
			weekday INTEGER NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			shifts TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (staff_id, weekday),
			FOREIGN KEY (staff_id) REFERENCES staff(id) ON DELETE CASCADE
		)`,

		// staff_id 0 marks an override for all staff.
		`CREATE TABLE IF NOT EXISTS schedule_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			staff_id INTEGER NOT NULL DEFAULT 0,
			is_day_off BOOLEAN NOT NULL DEFAULT 0,
			shifts TEXT NOT NULL DEFAULT '[]',
			note TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (date, staff_id)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			staff_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
			status TEXT NOT NULL DEFAULT 'pending_approval',
			client_name TEXT,
			service_name TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS waiting_list (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			from_time TEXT NOT NULL,
			to_time TEXT NOT NULL,
			service_duration_minutes INTEGER NOT NULL,
			service_name TEXT,
			status TEXT NOT NULL DEFAULT 'waiting',
			contact_name TEXT,
			contact_phone TEXT,
			chat_id INTEGER,
			matched_time TEXT,
			notified_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_overrides_date ON schedule_overrides(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_staff_date ON bookings(staff_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date_status ON bookings(date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_waiting_list_date_status ON waiting_list(date, status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func dateKey(t time.Time) string {
	return models.DateKey(t)
}

func parseDateKey(s string) (time.Time, error) {
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return d, nil
}
