package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rider-tracking-service/internal/domain"
	"rider-tracking-service/internal/platform/obs"
)

// Postgres-backed history of the fixes recorded while routing to an order.
type PgFixRepository struct {
	DB      *sql.DB
	RiderID func() string
}

func NewPgFixRepository(db *sql.DB, riderID func() string) *PgFixRepository {
	return &PgFixRepository{DB: db, RiderID: riderID}
}

// RecordFix appends a fix to the order's track.
func (r *PgFixRepository) RecordFix(ctx context.Context, orderID string, fix domain.Fix) (err error) {
	defer obs.Time(ctx, "fixes.RecordFix")(&err)

	if strings.TrimSpace(orderID) == "" {
		return errors.New("record fix: empty order id")
	}
	if !fix.Valid() {
		return fmt.Errorf("record fix: order %s: coordinates must be finite", orderID)
	}
	if r.DB == nil {
		return errors.New("fix repository: DB is nil")
	}

	riderID := ""
	if r.RiderID != nil {
		riderID = r.RiderID()
	}
	recordedAt := fix.Timestamp
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err = r.DB.ExecContext(ctx, `
	INSERT INTO rider_fixes (order_id, rider_id, latitude, longitude, accuracy, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6);
	`, orderID, riderID, fix.Lat, fix.Lng, fix.Accuracy, recordedAt.UTC())
	if err != nil {
		return fmt.Errorf("record fix: order %s: %w", orderID, err)
	}

	return nil
}

// ListFixes returns the most recent fixes for an order, oldest first.
func (r *PgFixRepository) ListFixes(ctx context.Context, orderID string, limit int) (_ []domain.Fix, err error) {
	defer obs.Time(ctx, "fixes.ListFixes")(&err)

	if r.DB == nil {
		return nil, errors.New("fix repository: DB is nil")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT latitude, longitude, accuracy, recorded_at
	FROM (
		SELECT latitude, longitude, accuracy, recorded_at
		FROM rider_fixes
		WHERE order_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	) recent
	ORDER BY recorded_at ASC;
	`, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list fixes: query rider_fixes table: %w", err)
	}
	defer rows.Close()

	fixes := make([]domain.Fix, 0, limit)
	for rows.Next() {
		var f domain.Fix
		if err := rows.Scan(&f.Lat, &f.Lng, &f.Accuracy, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("list fixes: scan row: %w", err)
		}
		fixes = append(fixes, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fixes: row iteration: %w", err)
	}

	return fixes, nil
}
