package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pcbooking/internal/domain"
	"pcbooking/internal/interval"
	"pcbooking/internal/models"
)

const reservationColumns = `id, start_date, duration_days, resource, booked_by, pin_hash,
                 active, created_at, updated_at, cancelled_at, version`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r           models.Reservation
		startStr    string
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&r.ID, &startStr, &r.DurationDays, &r.Resource, &r.BookedBy, &r.PinHash,
		&r.Active, &r.CreatedAt, &r.UpdatedAt, &cancelledAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	r.StartDate, err = interval.ParseDate(startStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reservation %d start date: %w", r.ID, err)
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		r.CancelledAt = &t
	}
	return &r, nil
}

func scanReservations(rows *sql.Rows) ([]*models.Reservation, error) {
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return out, nil
}

func findOverlapping(ctx context.Context, q querier, resource string, start time.Time, days int, excludeID int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE resource = ? AND active = 1 AND id != ?
                AND start_date <= ? AND end_date >= ?
              ORDER BY start_date ASC
              LIMIT 1`
	row := q.QueryRowContext(ctx, query,
		resource, excludeID,
		interval.FormatDate(interval.ClampDate(interval.EndDateInclusive(start, days))),
		interval.FormatDate(start),
	)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservation: %w", err)
	}
	return r, nil
}

// FindOverlapping returns one active reservation on resource that shares a day
// with [start, start+days-1], or nil. excludeID 0 excludes nothing.
func (db *DB) FindOverlapping(ctx context.Context, resource string, start time.Time, days int, excludeID int64) (*models.Reservation, error) {
	return findOverlapping(ctx, db, resource, start, days, excludeID)
}

// CreateReservationWithLock checks for a conflicting reservation and inserts r
// inside one write transaction.
func (db *DB) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	if !interval.Fits(r.StartDate, r.DurationDays) {
		return domain.NewValidationError("duration_days", "must end on or before %s", interval.FormatDate(interval.LastDate))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Check for conflicts inside the transaction
	blocking, err := findOverlapping(ctx, tx, r.Resource, r.StartDate, r.DurationDays, 0)
	if err != nil {
		return err
	}
	if blocking != nil {
		return domain.NewConflictError(blocking)
	}

	// 2. Insert
	query := `INSERT INTO reservations (
				start_date, end_date, duration_days, resource, booked_by, pin_hash,
				active, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, 1)`
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, query,
		interval.FormatDate(r.StartDate),
		interval.FormatDate(r.EndDate()),
		r.DurationDays,
		r.Resource,
		r.BookedBy,
		r.PinHash,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	r.ID = id
	r.Active = true
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	return nil
}

// ExtendReservationWithLock sets a new duration on an active reservation after
// re-checking the grown interval against every other active reservation.
func (db *DB) ExtendReservationWithLock(ctx context.Context, id, fromVersion int64, newDuration int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := getActiveReservation(ctx, tx, id)
	if err != nil {
		return err
	}
	if current.Version != fromVersion {
		return domain.ErrConcurrentModification
	}
	if !interval.Fits(current.StartDate, newDuration) {
		return fmt.Errorf("%w: must end on or before %s", domain.ErrInvalidExtension, interval.FormatDate(interval.LastDate))
	}

	blocking, err := findOverlapping(ctx, tx, current.Resource, current.StartDate, newDuration, current.ID)
	if err != nil {
		return err
	}
	if blocking != nil {
		return domain.NewConflictError(blocking)
	}

	query := `UPDATE reservations
              SET duration_days = ?, end_date = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND active = 1`
	result, err := tx.ExecContext(ctx, query,
		newDuration,
		interval.FormatDate(interval.EndDateInclusive(current.StartDate, newDuration)),
		time.Now().UTC(),
		id,
		fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to extend reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit extension: %w", err)
	}
	return nil
}

func getActiveReservation(ctx context.Context, q querier, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? AND active = 1`
	r, err := scanReservation(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// GetActiveReservation returns domain.ErrNotFound for unknown or cancelled ids.
func (db *DB) GetActiveReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return getActiveReservation(ctx, db, id)
}

// GetReservation returns the reservation whatever its state.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// CancelReservation soft-deletes id only if it is active and pinHash matches,
// in a single statement. It reports whether a row changed.
func (db *DB) CancelReservation(ctx context.Context, id int64, pinHash string) (bool, error) {
	query := `UPDATE reservations
              SET active = 0, cancelled_at = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND pin_hash = ? AND active = 1`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, now, now, id, pinHash)
	if err != nil {
		return false, fmt.Errorf("failed to cancel reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

// CancelReservationByID soft-deletes an active reservation without a PIN check.
func (db *DB) CancelReservationByID(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE reservations
              SET active = 0, cancelled_at = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND active = 1`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

// GetBookedResources lists resources holding an active reservation that
// overlaps [start, start+days-1].
func (db *DB) GetBookedResources(ctx context.Context, start time.Time, days int) ([]string, error) {
	query := `SELECT DISTINCT resource FROM reservations
              WHERE active = 1 AND start_date <= ? AND end_date >= ?`
	rows, err := db.QueryContext(ctx, query,
		interval.FormatDate(interval.ClampDate(interval.EndDateInclusive(start, days))),
		interval.FormatDate(start),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get booked resources: %w", err)
	}
	defer rows.Close()

	var resources []string
	for rows.Next() {
		var resource string
		if err := rows.Scan(&resource); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resources: %w", err)
	}
	return resources, nil
}

func (db *DB) ListActiveReservations(ctx context.Context) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations WHERE active = 1 ORDER BY start_date ASC, id ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return scanReservations(rows)
}

// GetReservationsInRange returns reservations whose interval overlaps [from, to].
func (db *DB) GetReservationsInRange(ctx context.Context, from, to time.Time, includeCancelled bool) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE start_date <= ? AND end_date >= ?`
	if !includeCancelled {
		query += ` AND active = 1`
	}
	query += ` ORDER BY start_date ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, interval.FormatDate(interval.ClampDate(to)), interval.FormatDate(from))
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations by range: %w", err)
	}
	return scanReservations(rows)
}

// DeleteEndedBefore hard-deletes reservations whose last day is before cutoff.
func (db *DB) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE end_date < ?`, interval.FormatDate(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete ended reservations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
