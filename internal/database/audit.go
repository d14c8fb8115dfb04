package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"flexiseat/internal/models"
)

func (db *DB) CreateAuditRecord(ctx context.Context, rec *models.AuditRecord) error {
	query := `INSERT INTO audit_log (booking_id, actor_id, action, desk_id, reason, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		rec.BookingID,
		rec.ActorID,
		rec.Action,
		rec.DeskID,
		rec.Reason,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = now
	return nil
}

// ListAuditRecords returns the decision trail for a booking, newest first.
func (db *DB) ListAuditRecords(ctx context.Context, bookingID int64) ([]*models.AuditRecord, error) {
	query := `SELECT id, booking_id, actor_id, action, desk_id, reason, created_at
              FROM audit_log WHERE booking_id = ? ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []*models.AuditRecord
	for rows.Next() {
		r := &models.AuditRecord{}
		var deskID, reason sql.NullString
		err := rows.Scan(&r.ID, &r.BookingID, &r.ActorID, &r.Action, &deskID, &reason, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		r.DeskID = deskID.String
		r.Reason = reason.String
		records = append(records, r)
	}
	return records, rows.Err()
}
