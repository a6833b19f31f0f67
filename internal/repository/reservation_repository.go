package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/parkupb/campus-parking/internal/model"
)

// ReservationRepo provides access to the reservations table.  All
// interval predicates use the half-open overlap test
// (end_time > start AND start_time < end) so that reservations whose
// endpoints touch never conflict.  Timestamps are stored as canonical
// UTC strings; comparisons therefore work identically on MySQL and
// sqlite.
type ReservationRepo struct{ DB *sql.DB }

func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{DB: db} }

const reservationColumns = "id, user_id, spot_id, start_time, end_time, status, created_at"

// CreateTx inserts an active reservation and populates the generated ID
// and creation time on the passed record.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	createdAt := time.Now().UTC().Truncate(time.Second)
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (user_id, spot_id, start_time, end_time, status, created_at)
		 VALUES (?,?,?,?,?,?)`,
		res.UserID, res.SpotID, fmtTime(res.StartTime), fmtTime(res.EndTime), res.Status, fmtTime(createdAt))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.CreatedAt = createdAt
	return nil
}

// GetByIDTx fetches a reservation by id inside a transaction;
// sql.ErrNoRows when absent.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	return scanReservationRow(tx.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id=? LIMIT 1", id))
}

// SetStatusTx transitions a single reservation to the given status.
func (r *ReservationRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, "UPDATE reservations SET status=? WHERE id=?", status, id)
	return err
}

// SpotOverlapExistsTx reports whether any active reservation on the spot
// overlaps [start, end).
func (r *ReservationRepo) SpotOverlapExistsTx(ctx context.Context, tx *sql.Tx, spotID uint64, start, end time.Time) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM reservations
		 WHERE spot_id=? AND status=? AND end_time > ? AND start_time < ? LIMIT 1`,
		spotID, model.ReservationActive, fmtTime(start), fmtTime(end)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UserOverlapExistsTx reports whether the user already holds an active
// reservation, on any spot, overlapping [start, end).
func (r *ReservationRepo) UserOverlapExistsTx(ctx context.Context, tx *sql.Tx, userID uint64, start, end time.Time) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM reservations
		 WHERE user_id=? AND status=? AND end_time > ? AND start_time < ? LIMIT 1`,
		userID, model.ReservationActive, fmtTime(start), fmtTime(end)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CurrentActiveTx returns the active reservation covering now on the
// spot, preferring the earliest start; sql.ErrNoRows when none covers.
func (r *ReservationRepo) CurrentActiveTx(ctx context.Context, tx *sql.Tx, spotID uint64, now time.Time) (model.Reservation, error) {
	return scanReservationRow(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE spot_id=? AND status=? AND start_time <= ? AND end_time > ?
		 ORDER BY start_time ASC LIMIT 1`,
		spotID, model.ReservationActive, fmtTime(now), fmtTime(now)))
}

// NextUpcomingTx returns the earliest active reservation starting after
// now on the spot; sql.ErrNoRows when there is none.
func (r *ReservationRepo) NextUpcomingTx(ctx context.Context, tx *sql.Tx, spotID uint64, now time.Time) (model.Reservation, error) {
	return scanReservationRow(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE spot_id=? AND status=? AND start_time > ?
		 ORDER BY start_time ASC LIMIT 1`,
		spotID, model.ReservationActive, fmtTime(now)))
}

// FinishDueTx transitions every active reservation with end_time <= now
// to finished in one statement and returns the distinct spot IDs that
// were touched.  Re-running with the same clock finds nothing new.
func (r *ReservationRepo) FinishDueTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]uint64, error) {
	spotIDs, err := collectIDs(tx.QueryContext(ctx,
		`SELECT DISTINCT spot_id FROM reservations WHERE status=? AND end_time <= ?`,
		model.ReservationActive, fmtTime(now)))
	if err != nil {
		return nil, err
	}
	if len(spotIDs) == 0 {
		return nil, nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE reservations SET status=? WHERE status=? AND end_time <= ?`,
		model.ReservationFinished, model.ReservationActive, fmtTime(now))
	if err != nil {
		return nil, err
	}
	return spotIDs, nil
}

// FinishDueCountTx counts the rows FinishDueTx would transition.  Called
// before the batch update so sweeps can report how much work they did.
func (r *ReservationRepo) FinishDueCountTx(ctx context.Context, tx *sql.Tx, now time.Time) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE status=? AND end_time <= ?`,
		model.ReservationActive, fmtTime(now)).Scan(&n)
	return n, err
}

// NoShowCandidatesTx returns the active reservations whose start time is
// at or before the cutoff (now minus the grace period).  The engine
// decides per row whether the reserving user actually showed up.
func (r *ReservationRepo) NoShowCandidatesTx(ctx context.Context, tx *sql.Tx, cutoff time.Time) ([]model.Reservation, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status=? AND start_time <= ? ORDER BY id`,
		model.ReservationActive, fmtTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

// ListByUser returns the user's full reservation history, newest start
// first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id=? ORDER BY start_time DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

// ListBySpot returns the spot's full reservation history, newest start
// first.
func (r *ReservationRepo) ListBySpot(ctx context.Context, spotID uint64) ([]model.Reservation, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE spot_id=? ORDER BY start_time DESC`,
		spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

// ListInWindow returns every non-cancelled reservation intersecting
// [from, to), optionally restricted to spots of one lot.  Feeds the
// hourly occupancy histogram.
func (r *ReservationRepo) ListInWindow(ctx context.Context, lotID *uint64, from, to time.Time) ([]model.Reservation, error) {
	q := `SELECT r.id, r.user_id, r.spot_id, r.start_time, r.end_time, r.status, r.created_at
	      FROM reservations r`
	args := []interface{}{}
	if lotID != nil {
		q += ` JOIN parking_spots s ON s.id = r.spot_id`
	}
	q += ` WHERE r.status <> ? AND r.end_time > ? AND r.start_time < ?`
	args = append(args, model.ReservationCancelled, fmtTime(from), fmtTime(to))
	if lotID != nil {
		q += ` AND s.lot_id = ?`
		args = append(args, *lotID)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func scanReservationRow(row *sql.Row) (model.Reservation, error) {
	var (
		res                 model.Reservation
		start, end, created string
	)
	err := row.Scan(&res.ID, &res.UserID, &res.SpotID, &start, &end, &res.Status, &created)
	if err != nil {
		return model.Reservation{}, err
	}
	if res.StartTime, err = parseTime(start); err != nil {
		return model.Reservation{}, err
	}
	if res.EndTime, err = parseTime(end); err != nil {
		return model.Reservation{}, err
	}
	if res.CreatedAt, err = parseTime(created); err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var (
			res                 model.Reservation
			start, end, created string
		)
		if err := rows.Scan(&res.ID, &res.UserID, &res.SpotID, &start, &end, &res.Status, &created); err != nil {
			return nil, err
		}
		var err error
		if res.StartTime, err = parseTime(start); err != nil {
			return nil, err
		}
		if res.EndTime, err = parseTime(end); err != nil {
			return nil, err
		}
		if res.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func collectIDs(rows *sql.Rows, err error) ([]uint64, error) {
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
