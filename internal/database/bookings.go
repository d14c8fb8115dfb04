package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flexiseat/internal/models"
)

// DateLayout — формат хранения booking_date в SQLite
const DateLayout = "2006-01-02"

const bookingColumns = `id, member_id, member_name, member_avatar, member_role, desk_id, zone, level, status, booking_date, created_at`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (member_id, member_name, member_avatar, member_role, desk_id, zone, level, status, booking_date, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.MemberID,
		booking.MemberName,
		booking.MemberAvatar,
		booking.MemberRole,
		booking.DeskID,
		booking.Zone,
		booking.Level,
		booking.Status,
		booking.BookingDate.Format(DateLayout),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	return nil
}

// CreateBookings inserts the whole batch in one transaction: either all
// rows land or none of them do.
func (db *DB) CreateBookings(ctx context.Context, bookings []*models.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bookings (member_id, member_name, member_avatar, member_role, desk_id, zone, level, status, booking_date, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, b := range bookings {
		result, err := stmt.ExecContext(ctx,
			b.MemberID, b.MemberName, b.MemberAvatar, b.MemberRole,
			b.DeskID, b.Zone, b.Level, b.Status,
			b.BookingDate.Format(DateLayout), now,
		)
		if err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		b.ID = id
		b.CreatedAt = now
	}

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

	var b models.Booking
	var avatar, role, zone sql.NullString
	var date string
	err := db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.MemberID, &b.MemberName, &avatar, &role,
		&b.DeskID, &zone, &b.Level, &b.Status, &date, &b.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	b.MemberAvatar = avatar.String
	b.MemberRole = role.String
	b.Zone = zone.String
	if b.BookingDate, err = time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("failed to parse booking date %q: %w", date, err)
	}
	return &b, nil
}

// ListBookings returns the full ledger ordered by booking date, newest
// request first within a date.
func (db *DB) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY booking_date ASC, created_at DESC`
	return db.queryBookings(ctx, query)
}

func (db *DB) ListBookingsByMember(ctx context.Context, memberID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE member_id = ? ORDER BY booking_date ASC, created_at DESC`
	return db.queryBookings(ctx, query, memberID)
}

func (db *DB) ListBookingsByStatus(ctx context.Context, status string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? ORDER BY booking_date ASC, created_at DESC`
	return db.queryBookings(ctx, query, status)
}

// AcceptedBookingsByLevel returns the accepted bookings for one floor
// and date; the occupancy map is built from these rows.
func (db *DB) AcceptedBookingsByLevel(ctx context.Context, level int, date time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = ? AND level = ? AND booking_date = ?
              ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, models.StatusAccepted, level, date.Format(DateLayout))
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		var avatar, role, zone sql.NullString
		var date string
		err := rows.Scan(
			&b.ID, &b.MemberID, &b.MemberName, &avatar, &role,
			&b.DeskID, &zone, &b.Level, &b.Status, &date, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		b.MemberAvatar = avatar.String
		b.MemberRole = role.String
		b.Zone = zone.String
		if b.BookingDate, err = time.Parse(DateLayout, date); err != nil {
			return nil, fmt.Errorf("failed to parse booking date %q: %w", date, err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	result, err := db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
