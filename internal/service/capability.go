package service

import "flexiseat/internal/models"

// Actions gated by role. All permission checks go through Can so the
// role matrix lives in one place.
const (
	ActionAssignDesks   = "booking.assign"
	ActionDecideBooking = "booking.decide"
	ActionRevokeBooking = "booking.revoke"
	ActionViewAll       = "booking.view_all"
	ActionManageUsers   = "directory.manage"
	ActionSetRole       = "directory.set_role"
	ActionAssignMembers = "directory.assign_members"
)

// Can reports whether the user's role allows the action. Ownership
// checks (a lead acting on their own team) stay with the services.
func Can(user *models.User, action string) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeamLead:
		switch action {
		case ActionAssignDesks, ActionDecideBooking, ActionRevokeBooking,
			ActionViewAll, ActionAssignMembers:
			return true
		}
	}
	return false
}
