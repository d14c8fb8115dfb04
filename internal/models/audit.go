package models

import "time"

// AuditRecord keeps the trail for booking decisions and revocations.
// Reject and Revoke delete the booking row, so this is the only place the
// outcome (and the revoke reason) survives.
type AuditRecord struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	ActorID   int64     `json:"actor_id"`
	Action    string    `json:"action"` // accepted, rejected, revoked
	DeskID    string    `json:"desk_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
