package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/parkupb/campus-parking/internal/model"
	"github.com/parkupb/campus-parking/internal/repository"
)

// The engine issues dialect-neutral SQL (placeholders, no SQL-side time
// functions), so tests run it against in-memory sqlite instead of a
// MySQL server.

var testSchema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		revoked_at TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE parking_lots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		campus_zone TEXT,
		lat_center REAL NOT NULL DEFAULT 0,
		lng_center REAL NOT NULL DEFAULT 0,
		total_spots INTEGER NOT NULL DEFAULT 0,
		grid_columns INTEGER NOT NULL DEFAULT 1,
		polygon_geojson TEXT
	)`,
	`CREATE TABLE parking_spots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lot_id INTEGER NOT NULL,
		spot_number TEXT NOT NULL,
		is_occupied INTEGER NOT NULL DEFAULT 0,
		occupied_by INTEGER,
		reserved_from TEXT,
		reserved_until TEXT,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		polygon_geojson TEXT
	)`,
	`CREATE TABLE reservations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		spot_id INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	for _, stmt := range testSchema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newTestEngine builds an engine over a fresh database with the clock
// pinned to at.
func newTestEngine(t *testing.T, at time.Time) (*Engine, *sql.DB) {
	t.Helper()
	db := newTestDB(t)
	eng := NewEngine(db, repository.NewSpotRepo(db), repository.NewReservationRepo(db))
	eng.Now = func() time.Time { return at }
	return eng, db
}

const testLayout = "2006-01-02 15:04:05"

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(testLayout, s)
	require.NoError(t, err)
	return parsed.UTC()
}

func seedUser(t *testing.T, db *sql.DB, email string) uint64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO users (email, password_hash, full_name, role, created_at) VALUES (?,?,?,?,?)`,
		email, "x", "Test User", model.RoleStudent, "2026-01-01 00:00:00")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

func seedLot(t *testing.T, db *sql.DB, name string) uint64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO parking_lots (name) VALUES (?)`, name)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

func seedSpot(t *testing.T, db *sql.DB, lotID uint64, number string) uint64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO parking_spots (lot_id, spot_number) VALUES (?,?)`, lotID, number)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

func seedReservation(t *testing.T, db *sql.DB, userID, spotID uint64, start, end, status string) uint64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO reservations (user_id, spot_id, start_time, end_time, status, created_at)
		 VALUES (?,?,?,?,?,?)`,
		userID, spotID, start, end, status, "2026-01-01 00:00:00")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

func occupySpot(t *testing.T, db *sql.DB, spotID, userID uint64) {
	t.Helper()
	_, err := db.Exec(`UPDATE parking_spots SET is_occupied=1, occupied_by=? WHERE id=?`, userID, spotID)
	require.NoError(t, err)
}

func reservationStatus(t *testing.T, db *sql.DB, id uint64) string {
	t.Helper()
	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM reservations WHERE id=?`, id).Scan(&status))
	return status
}

func spotWindow(t *testing.T, db *sql.DB, id uint64) (from, until *string) {
	t.Helper()
	var f, u sql.NullString
	require.NoError(t, db.QueryRow(
		`SELECT reserved_from, reserved_until FROM parking_spots WHERE id=?`, id).Scan(&f, &u))
	if f.Valid {
		from = &f.String
	}
	if u.Valid {
		until = &u.String
	}
	return from, until
}

func testCtx() context.Context { return context.Background() }
