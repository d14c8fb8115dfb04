package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // Member, Team Lead, Admin
	Avatar       string    `json:"avatar"`
	TeamLeadID   *int64    `json:"teamLeadId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsLead reports whether the user can assign desks and decide bookings.
func (u *User) IsLead() bool {
	return u.Role == RoleTeamLead || u.Role == RoleAdmin
}

// UserUpdate carries a partial update; nil fields are left untouched.
// TeamLeadID uses a double pointer so "set to NULL" and "leave as is"
// stay distinguishable.
type UserUpdate struct {
	Name         *string
	Email        *string
	Role         *string
	PasswordHash *string
	Avatar       *string
	TeamLeadID   **int64
}
