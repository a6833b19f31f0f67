package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/parkupb/campus-parking/internal/model"
)

// SpotRepo provides access to the parking_spots table, including the
// cached reservation window columns (reserved_from, reserved_until).
// Only the engine's window refresh writes those two columns; everything
// else treats them as read-only.
type SpotRepo struct{ DB *sql.DB }

func NewSpotRepo(db *sql.DB) *SpotRepo { return &SpotRepo{DB: db} }

const spotColumns = `id, lot_id, spot_number, is_occupied, occupied_by,
	reserved_from, reserved_until, latitude, longitude, polygon_geojson`

// CreateTx inserts a spot and populates the generated ID.
func (r *SpotRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.ParkingSpot) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO parking_spots (lot_id, spot_number, is_occupied, latitude, longitude, polygon_geojson)
		 VALUES (?,?,?,?,?,?)`,
		s.LotID, s.SpotNumber, s.IsOccupied, s.Latitude, s.Longitude, s.PolygonGeoJSON)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// CreateBulkTx inserts a batch of generated spots in one statement.
// Passing an empty slice has no effect and returns nil.
func (r *SpotRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, spots []model.ParkingSpot) error {
	if len(spots) == 0 {
		return nil
	}
	query := `INSERT INTO parking_spots (lot_id, spot_number, is_occupied, latitude, longitude, polygon_geojson) VALUES `
	args := make([]interface{}, 0, len(spots)*6)
	for i, s := range spots {
		if i > 0 {
			query += ","
		}
		query += "(?,?,?,?,?,?)"
		args = append(args, s.LotID, s.SpotNumber, s.IsOccupied, s.Latitude, s.Longitude, s.PolygonGeoJSON)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID fetches a spot by id; sql.ErrNoRows when absent.
func (r *SpotRepo) GetByID(ctx context.Context, id uint64) (model.ParkingSpot, error) {
	return scanSpotRow(r.DB.QueryRowContext(ctx,
		"SELECT "+spotColumns+" FROM parking_spots WHERE id=? LIMIT 1", id))
}

// GetByIDTx is GetByID within an existing transaction.
func (r *SpotRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.ParkingSpot, error) {
	return scanSpotRow(tx.QueryRowContext(ctx,
		"SELECT "+spotColumns+" FROM parking_spots WHERE id=? LIMIT 1", id))
}

// List returns all spots, optionally restricted to one lot, ordered for
// deterministic map rendering.
func (r *SpotRepo) List(ctx context.Context, lotID *uint64) ([]model.ParkingSpot, error) {
	q := "SELECT " + spotColumns + " FROM parking_spots"
	args := []interface{}{}
	if lotID != nil {
		q += " WHERE lot_id=?"
		args = append(args, *lotID)
	}
	q += " ORDER BY lot_id, id"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSpots(rows)
}

// IDsByLot returns the spot IDs of one lot, or of every lot when lotID
// is nil.  Used by the statistics layer.
func (r *SpotRepo) IDsByLot(ctx context.Context, lotID *uint64) ([]uint64, error) {
	q := "SELECT id FROM parking_spots"
	args := []interface{}{}
	if lotID != nil {
		q += " WHERE lot_id=?"
		args = append(args, *lotID)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OccupiedByUserTx returns the spot currently occupied by the user, or
// sql.ErrNoRows when the user occupies nothing.  A user may occupy at
// most one spot at a time.
func (r *SpotRepo) OccupiedByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (model.ParkingSpot, error) {
	return scanSpotRow(tx.QueryRowContext(ctx,
		"SELECT "+spotColumns+" FROM parking_spots WHERE is_occupied=? AND occupied_by=? LIMIT 1",
		true, userID))
}

// SetOccupiedTx marks the spot occupied by the given user.
func (r *SpotRepo) SetOccupiedTx(ctx context.Context, tx *sql.Tx, spotID, userID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE parking_spots SET is_occupied=?, occupied_by=? WHERE id=?",
		true, userID, spotID)
	return err
}

// SetFreeTx clears the occupancy flag and occupant.
func (r *SpotRepo) SetFreeTx(ctx context.Context, tx *sql.Tx, spotID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE parking_spots SET is_occupied=?, occupied_by=NULL WHERE id=?",
		false, spotID)
	return err
}

// SetWindowTx writes the cached reservation window.
func (r *SpotRepo) SetWindowTx(ctx context.Context, tx *sql.Tx, spotID uint64, from, until time.Time) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE parking_spots SET reserved_from=?, reserved_until=? WHERE id=?",
		fmtTime(from), fmtTime(until), spotID)
	return err
}

// ClearWindowTx erases the cached reservation window.
func (r *SpotRepo) ClearWindowTx(ctx context.Context, tx *sql.Tx, spotID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE parking_spots SET reserved_from=NULL, reserved_until=NULL WHERE id=?",
		spotID)
	return err
}

// Update rewrites the mutable administrative columns of a spot.  Live
// state (occupancy, window) is owned by the engine and left untouched.
func (r *SpotRepo) Update(ctx context.Context, s *model.ParkingSpot) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE parking_spots SET lot_id=?, spot_number=?, latitude=?, longitude=?, polygon_geojson=? WHERE id=?",
		s.LotID, s.SpotNumber, s.Latitude, s.Longitude, s.PolygonGeoJSON, s.ID)
	return err
}

// DeleteTx removes a spot and its reservations.
func (r *SpotRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM reservations WHERE spot_id=?", id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM parking_spots WHERE id=?", id)
	return err
}

// DeleteByLotTx removes every spot of a lot together with their
// reservations; used when regenerating a lot's grid.
func (r *SpotRepo) DeleteByLotTx(ctx context.Context, tx *sql.Tx, lotID uint64) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM reservations WHERE spot_id IN (SELECT id FROM parking_spots WHERE lot_id=?)", lotID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM parking_spots WHERE lot_id=?", lotID)
	return err
}

func scanSpotRow(row *sql.Row) (model.ParkingSpot, error) {
	var (
		s          model.ParkingSpot
		occupiedBy sql.NullInt64
		from, till sql.NullString
		poly       sql.NullString
	)
	err := row.Scan(&s.ID, &s.LotID, &s.SpotNumber, &s.IsOccupied, &occupiedBy,
		&from, &till, &s.Latitude, &s.Longitude, &poly)
	if err != nil {
		return model.ParkingSpot{}, err
	}
	if occupiedBy.Valid {
		uid := uint64(occupiedBy.Int64)
		s.OccupiedBy = &uid
	}
	if s.ReservedFrom, err = parseNullTime(from); err != nil {
		return model.ParkingSpot{}, err
	}
	if s.ReservedUntil, err = parseNullTime(till); err != nil {
		return model.ParkingSpot{}, err
	}
	s.PolygonGeoJSON = poly.String
	return s, nil
}

func collectSpots(rows *sql.Rows) ([]model.ParkingSpot, error) {
	spots := make([]model.ParkingSpot, 0)
	for rows.Next() {
		var (
			s          model.ParkingSpot
			occupiedBy sql.NullInt64
			from, till sql.NullString
			poly       sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.LotID, &s.SpotNumber, &s.IsOccupied, &occupiedBy,
			&from, &till, &s.Latitude, &s.Longitude, &poly); err != nil {
			return nil, err
		}
		if occupiedBy.Valid {
			uid := uint64(occupiedBy.Int64)
			s.OccupiedBy = &uid
		}
		var err error
		if s.ReservedFrom, err = parseNullTime(from); err != nil {
			return nil, err
		}
		if s.ReservedUntil, err = parseNullTime(till); err != nil {
			return nil, err
		}
		s.PolygonGeoJSON = poly.String
		spots = append(spots, s)
	}
	return spots, rows.Err()
}
