package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"flexiseat/internal/database"
	"flexiseat/internal/domain"
	"flexiseat/internal/events"
	"flexiseat/internal/models"

	"github.com/rs/zerolog"
)

type DirectoryService struct {
	repo            domain.Repository
	eventBus        domain.EventPublisher
	superAdminEmail string
	logger          *zerolog.Logger
}

func NewDirectoryService(repo domain.Repository, eventBus domain.EventPublisher, superAdminEmail string, logger *zerolog.Logger) *DirectoryService {
	if superAdminEmail == "" {
		superAdminEmail = models.DefaultSuperAdminEmail
	}
	return &DirectoryService{
		repo:            repo,
		eventBus:        eventBus,
		superAdminEmail: superAdminEmail,
		logger:          logger,
	}
}

// IsSuperAdmin reports whether the user is the bootstrap admin. That
// account cannot be demoted or deleted.
func (s *DirectoryService) IsSuperAdmin(user *models.User) bool {
	return user != nil && user.Email == s.superAdminEmail
}

// EnsureSuperAdmin creates the bootstrap admin on first start.
func (s *DirectoryService) EnsureSuperAdmin(ctx context.Context, password string) error {
	_, err := s.repo.GetUserByEmail(ctx, s.superAdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to look up super admin: %w", err)
	}

	if password == "" {
		password = models.DefaultPassword
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	admin := &models.User{
		Name:         "Admin",
		Email:        s.superAdminEmail,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Avatar:       avatarURL("Admin"),
	}
	if err := s.repo.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	s.logger.Info().Str("email", s.superAdminEmail).Msg("super admin created")
	return nil
}

func (s *DirectoryService) CreateUser(ctx context.Context, actor *models.User, name, email, role, password string) (*models.User, error) {
	if !Can(actor, ActionManageUsers) {
		return nil, permissionf("role %q cannot manage users", actorRole(actor))
	}
	if name == "" {
		return nil, validationf("name is required")
	}
	if email == "" {
		return nil, validationf("email is required")
	}
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		return nil, validationf("unknown role %q", role)
	}
	if password == "" {
		password = models.DefaultPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Avatar:       avatarURL(name),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, conflictf("email %q is already registered", email)
		}
		return nil, err
	}

	s.publishUserEvent(events.EventUserCreated, user, actor.ID)
	s.logger.Info().Int64("user_id", user.ID).Str("role", role).Msg("user created")
	return user, nil
}

func (s *DirectoryService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFoundf("user %d not found", id)
	}
	return user, err
}

func (s *DirectoryService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *DirectoryService) UpdateUser(ctx context.Context, actor *models.User, id int64, upd models.UserUpdate) (*models.User, error) {
	if !Can(actor, ActionManageUsers) && (actor == nil || actor.ID != id) {
		return nil, permissionf("role %q cannot manage users", actorRole(actor))
	}
	if upd.Role != nil {
		// Role changes go through SetRole where the guards live.
		return nil, validationf("role cannot be changed here")
	}

	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.IsSuperAdmin(target) && upd.Email != nil {
		return nil, permissionf("super admin email cannot be changed")
	}

	if err := s.repo.UpdateUser(ctx, id, upd); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, conflictf("email is already registered")
		}
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFoundf("user %d not found", id)
		}
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes the user and everything that references them:
// their bookings go away and their team members are detached.
func (s *DirectoryService) DeleteUser(ctx context.Context, actor *models.User, id int64) error {
	if !Can(actor, ActionManageUsers) {
		return permissionf("role %q cannot manage users", actorRole(actor))
	}

	target, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if s.IsSuperAdmin(target) {
		return permissionf("super admin cannot be deleted")
	}

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return notFoundf("user %d not found", id)
		}
		return err
	}

	s.publishUserEvent(events.EventUserDeleted, target, actor.ID)
	s.logger.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

// SetRole changes a user's role. The super admin is untouchable, and a
// lead with an active team must hand the team off first.
func (s *DirectoryService) SetRole(ctx context.Context, actor *models.User, userID int64, role string) (*models.User, error) {
	if !Can(actor, ActionSetRole) {
		return nil, permissionf("role %q cannot change roles", actorRole(actor))
	}
	if !models.ValidRole(role) {
		return nil, validationf("unknown role %q", role)
	}

	target, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.IsSuperAdmin(target) {
		return nil, permissionf("super admin role cannot be changed")
	}
	if target.Role == role {
		return target, nil
	}

	if target.Role == models.RoleTeamLead && role != models.RoleTeamLead {
		has, err := s.repo.HasTeamMembers(ctx, userID)
		if err != nil {
			return nil, err
		}
		if has {
			return nil, conflictf("lead %d still has team members assigned", userID)
		}
	}

	if err := s.repo.UpdateUser(ctx, userID, models.UserUpdate{Role: &role}); err != nil {
		return nil, err
	}

	target.Role = role
	s.publishUserEvent(events.EventRoleChanged, target, actor.ID)
	s.logger.Info().Int64("user_id", userID).Str("role", role).Msg("role changed")
	return target, nil
}

// AssignMembers replaces the lead's team with exactly the given member
// set: listed users are attached, everyone else is detached.
func (s *DirectoryService) AssignMembers(ctx context.Context, actor *models.User, leadID int64, memberIDs []int64) ([]*models.User, error) {
	if !Can(actor, ActionAssignMembers) {
		return nil, permissionf("role %q cannot assign members", actorRole(actor))
	}
	// A lead only manages their own team.
	if actor.Role == models.RoleTeamLead && actor.ID != leadID {
		return nil, permissionf("leads can only manage their own team")
	}

	lead, err := s.GetUser(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !lead.IsLead() {
		return nil, validationf("user %d is not a team lead", leadID)
	}

	wanted := make(map[int64]bool, len(memberIDs))
	for _, id := range memberIDs {
		if id == leadID {
			return nil, validationf("a lead cannot be their own team member")
		}
		member, err := s.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if member.Role != models.RoleMember {
			return nil, validationf("user %d is not a member", id)
		}
		wanted[id] = true
	}

	current, err := s.repo.ListTeamMembers(ctx, leadID)
	if err != nil {
		return nil, err
	}
	for _, member := range current {
		if !wanted[member.ID] {
			if err := s.repo.SetTeamLead(ctx, member.ID, nil); err != nil {
				return nil, err
			}
		}
		delete(wanted, member.ID)
	}
	for id := range wanted {
		if err := s.repo.SetTeamLead(ctx, id, &leadID); err != nil {
			return nil, err
		}
	}

	team, err := s.repo.ListTeamMembers(ctx, leadID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("lead_id", leadID).Int("team_size", len(team)).Msg("team updated")
	return team, nil
}

func (s *DirectoryService) TeamOf(ctx context.Context, leadID int64) ([]*models.User, error) {
	return s.repo.ListTeamMembers(ctx, leadID)
}

func (s *DirectoryService) publishUserEvent(eventType string, user *models.User, actorID int64) {
	if s.eventBus == nil {
		return
	}
	payload := events.UserEventPayload{
		UserID:  user.ID,
		Email:   user.Email,
		Role:    user.Role,
		ActorID: actorID,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func avatarURL(name string) string {
	return fmt.Sprintf(models.AvatarURLTemplate, url.QueryEscape(name))
}
