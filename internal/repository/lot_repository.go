package repository

import (
	"context"
	"database/sql"

	"github.com/parkupb/campus-parking/internal/model"
)

// LotRepo provides CRUD operations for parking lots.  Spot rows belong
// to a lot via parking_spots.lot_id; deleting a lot removes its spots
// and their reservations inside one transaction.
type LotRepo struct{ DB *sql.DB }

func NewLotRepo(db *sql.DB) *LotRepo { return &LotRepo{DB: db} }

const lotColumns = "id, name, campus_zone, lat_center, lng_center, total_spots, grid_columns, polygon_geojson"

// CreateTx inserts a lot and populates the generated ID.
func (r *LotRepo) CreateTx(ctx context.Context, tx *sql.Tx, lot *model.ParkingLot) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO parking_lots (name, campus_zone, lat_center, lng_center, total_spots, grid_columns, polygon_geojson)
		 VALUES (?,?,?,?,?,?,?)`,
		lot.Name, lot.CampusZone, lot.LatCenter, lot.LngCenter, lot.TotalSpots, lot.GridColumns, lot.PolygonGeoJSON)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	lot.ID = uint64(id)
	return nil
}

// UpdateTx rewrites all mutable lot columns.
func (r *LotRepo) UpdateTx(ctx context.Context, tx *sql.Tx, lot *model.ParkingLot) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE parking_lots SET name=?, campus_zone=?, lat_center=?, lng_center=?, total_spots=?, grid_columns=?, polygon_geojson=?
		 WHERE id=?`,
		lot.Name, lot.CampusZone, lot.LatCenter, lot.LngCenter, lot.TotalSpots, lot.GridColumns, lot.PolygonGeoJSON, lot.ID)
	return err
}

// GetByID fetches a lot by id; sql.ErrNoRows when absent.
func (r *LotRepo) GetByID(ctx context.Context, id uint64) (model.ParkingLot, error) {
	return scanLot(r.DB.QueryRowContext(ctx,
		"SELECT "+lotColumns+" FROM parking_lots WHERE id=? LIMIT 1", id))
}

// GetByIDTx is GetByID within an existing transaction.
func (r *LotRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.ParkingLot, error) {
	return scanLot(tx.QueryRowContext(ctx,
		"SELECT "+lotColumns+" FROM parking_lots WHERE id=? LIMIT 1", id))
}

// List returns all lots ordered by name.
func (r *LotRepo) List(ctx context.Context) ([]model.ParkingLot, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+lotColumns+" FROM parking_lots ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lots := make([]model.ParkingLot, 0)
	for rows.Next() {
		var (
			l    model.ParkingLot
			zone sql.NullString
			poly sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Name, &zone, &l.LatCenter, &l.LngCenter, &l.TotalSpots, &l.GridColumns, &poly); err != nil {
			return nil, err
		}
		l.CampusZone = zone.String
		l.PolygonGeoJSON = poly.String
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// DeleteTx removes a lot together with its spots and their
// reservations.  Explicit deletes keep the behaviour identical across
// database engines regardless of foreign key enforcement.
func (r *LotRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM reservations WHERE spot_id IN (SELECT id FROM parking_spots WHERE lot_id=?)", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM parking_spots WHERE lot_id=?", id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM parking_lots WHERE id=?", id)
	return err
}

func scanLot(row *sql.Row) (model.ParkingLot, error) {
	var (
		l    model.ParkingLot
		zone sql.NullString
		poly sql.NullString
	)
	err := row.Scan(&l.ID, &l.Name, &zone, &l.LatCenter, &l.LngCenter, &l.TotalSpots, &l.GridColumns, &poly)
	if err != nil {
		return model.ParkingLot{}, err
	}
	l.CampusZone = zone.String
	l.PolygonGeoJSON = poly.String
	return l, nil
}
