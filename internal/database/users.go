package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"flexiseat/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (name, email, password_hash, role, avatar, team_lead_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Avatar,
		user.TeamLeadID,
		now,
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

const userColumns = `id, name, email, password_hash, role, avatar, team_lead_id, created_at, updated_at`

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return db.queryUser(ctx, query, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return db.queryUser(ctx, query, email)
}

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	var avatar sql.NullString
	err := db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role,
		&avatar, &user.TeamLeadID, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Avatar = avatar.String
	return &user, nil
}

// ListUsers returns the whole directory ordered by id, matching the
// original listing order.
func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id ASC`
	return db.queryUsers(ctx, query)
}

func (db *DB) ListUsersByRole(ctx context.Context, role string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = ? ORDER BY id ASC`
	return db.queryUsers(ctx, query, role)
}

// ListTeamMembers returns the members currently assigned to a lead.
func (db *DB) ListTeamMembers(ctx context.Context, leadID int64) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE team_lead_id = ? ORDER BY id ASC`
	return db.queryUsers(ctx, query, leadID)
}

func (db *DB) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		var avatar sql.NullString
		err := rows.Scan(
			&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
			&avatar, &u.TeamLeadID, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Avatar = avatar.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// HasTeamMembers reports whether any member references the lead.
func (db *DB) HasTeamMembers(ctx context.Context, leadID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE team_lead_id = ?`, leadID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count team members: %w", err)
	}
	return count > 0, nil
}

// UpdateUser applies a partial update. Fields left nil keep their value.
func (db *DB) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now()}

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *upd.Role)
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *upd.PasswordHash)
	}
	if upd.Avatar != nil {
		sets = append(sets, "avatar = ?")
		args = append(args, *upd.Avatar)
	}
	if upd.TeamLeadID != nil {
		sets = append(sets, "team_lead_id = ?")
		args = append(args, *upd.TeamLeadID)
	}

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTeamLead assigns or clears (nil) the member's lead.
func (db *DB) SetTeamLead(ctx context.Context, memberID int64, leadID *int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET team_lead_id = ?, updated_at = ? WHERE id = ?`,
		leadID, time.Now(), memberID)
	if err != nil {
		return fmt.Errorf("failed to set team lead: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the user and all their bookings in one transaction.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE member_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user bookings: %w", err)
	}

	// Members pointing at a deleted lead are detached.
	if _, err := tx.ExecContext(ctx, `UPDATE users SET team_lead_id = NULL WHERE team_lead_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach team members: %w", err)
	}

	return tx.Commit()
}
