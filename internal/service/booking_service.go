package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"flexiseat/internal/database"
	"flexiseat/internal/domain"
	"flexiseat/internal/events"
	"flexiseat/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo         domain.Repository
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	logger       *zerolog.Logger
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, sheetsWorker domain.SyncWorker, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:         repo,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		logger:       logger,
	}
}

// CreateAssignments fans out desk x date into pending bookings, one
// per pair, for the member assigned to each desk. The whole batch is
// written in one transaction: a bad desk id or unknown assignee fails
// the request before anything is stored.
func (s *BookingService) CreateAssignments(ctx context.Context, actor *models.User, assignees map[string]int64, dates []time.Time) ([]*models.Booking, error) {
	if !Can(actor, ActionAssignDesks) {
		return nil, permissionf("role %q cannot assign desks", actorRole(actor))
	}
	if len(assignees) == 0 {
		return nil, validationf("at least one desk is required")
	}
	if len(dates) == 0 {
		return nil, validationf("at least one date is required")
	}

	deskIDs := make([]string, 0, len(assignees))
	for deskID := range assignees {
		deskIDs = append(deskIDs, deskID)
	}
	sort.Strings(deskIDs)

	members := make(map[int64]*models.User, len(assignees))
	bookings := make([]*models.Booking, 0, len(assignees)*len(dates))
	for _, deskID := range deskIDs {
		desk, ok := s.repo.GetDesk(deskID)
		if !ok {
			return nil, validationf("unknown desk %q", deskID)
		}

		memberID := assignees[deskID]
		member, ok := members[memberID]
		if !ok {
			var err error
			member, err = s.repo.GetUserByID(ctx, memberID)
			if errors.Is(err, database.ErrNotFound) {
				return nil, notFoundf("member %d not found", memberID)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to look up member: %w", err)
			}

			// A lead books for their own team (or themselves); admins for anyone.
			if actor.Role == models.RoleTeamLead && member.ID != actor.ID {
				if member.TeamLeadID == nil || *member.TeamLeadID != actor.ID {
					return nil, permissionf("member %d is not on your team", memberID)
				}
			}
			members[memberID] = member
		}

		for _, date := range dates {
			bookings = append(bookings, &models.Booking{
				MemberID:     member.ID,
				MemberName:   member.Name,
				MemberAvatar: member.Avatar,
				MemberRole:   member.Role,
				DeskID:       desk.ID,
				Zone:         desk.Zone,
				Level:        desk.Level,
				Status:       models.StatusPending,
				BookingDate:  date,
			})
		}
	}

	if err := s.repo.CreateBookings(ctx, bookings); err != nil {
		return nil, fmt.Errorf("failed to create bookings: %w", err)
	}

	for _, b := range bookings {
		s.publishEvent(events.EventBookingCreated, b, actor.ID, "")
		s.enqueueSync(ctx, "upsert", b)
	}

	s.logger.Info().
		Int("desks", len(assignees)).
		Int("dates", len(dates)).
		Int("bookings", len(bookings)).
		Msg("assignments created")
	return bookings, nil
}

// Decide accepts or rejects a pending booking. Rejection removes the
// row entirely; only the audit log remembers it.
func (s *BookingService) Decide(ctx context.Context, actor *models.User, bookingID int64, accept bool) (*models.Booking, error) {
	if !Can(actor, ActionDecideBooking) {
		return nil, permissionf("role %q cannot decide bookings", actorRole(actor))
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFoundf("booking %d not found", bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking.Status != models.StatusPending {
		return nil, conflictf("booking %d is already %s", bookingID, booking.Status)
	}

	if accept {
		if err := s.repo.UpdateBookingStatus(ctx, bookingID, models.StatusAccepted); err != nil {
			return nil, fmt.Errorf("failed to accept booking: %w", err)
		}
		booking.Status = models.StatusAccepted
		s.audit(ctx, booking, actor.ID, models.AuditAccepted, "")
		s.publishEvent(events.EventBookingAccepted, booking, actor.ID, "")
		s.enqueueSync(ctx, "update_status", booking)
		return booking, nil
	}

	if err := s.repo.DeleteBooking(ctx, bookingID); err != nil {
		return nil, fmt.Errorf("failed to reject booking: %w", err)
	}
	booking.Status = models.StatusRejected
	s.audit(ctx, booking, actor.ID, models.AuditRejected, "")
	s.publishEvent(events.EventBookingRejected, booking, actor.ID, "")
	s.enqueueSync(ctx, "delete", booking)
	return booking, nil
}

// Revoke withdraws an accepted booking and frees the desk. The reason
// is mandatory and lands in the audit log.
func (s *BookingService) Revoke(ctx context.Context, actor *models.User, bookingID int64, reason string) error {
	if !Can(actor, ActionRevokeBooking) {
		return permissionf("role %q cannot revoke bookings", actorRole(actor))
	}
	if reason == "" {
		return validationf("revoke reason is required")
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return notFoundf("booking %d not found", bookingID)
	}
	if err != nil {
		return fmt.Errorf("failed to get booking: %w", err)
	}
	if booking.Status != models.StatusAccepted {
		return conflictf("only accepted bookings can be revoked, booking %d is %s", bookingID, booking.Status)
	}

	if err := s.repo.DeleteBooking(ctx, bookingID); err != nil {
		return fmt.Errorf("failed to revoke booking: %w", err)
	}
	s.audit(ctx, booking, actor.ID, models.AuditRevoked, reason)
	s.publishEvent(events.EventBookingRevoked, booking, actor.ID, reason)
	s.enqueueSync(ctx, "delete", booking)

	s.logger.Info().Int64("booking_id", bookingID).Str("reason", reason).Msg("booking revoked")
	return nil
}

// ComputeOccupancy maps desk id to the accepted booking occupying it
// on the given floor and date. Desks absent from the map are free.
func (s *BookingService) ComputeOccupancy(ctx context.Context, level int, date time.Time) (map[string]*models.Booking, error) {
	rows, err := s.repo.AcceptedBookingsByLevel(ctx, level, date)
	if err != nil {
		return nil, err
	}

	occupancy := make(map[string]*models.Booking, len(rows))
	for _, b := range rows {
		// Rows come newest-first; the first one per desk wins.
		if _, taken := occupancy[b.DeskID]; !taken {
			occupancy[b.DeskID] = b
		}
	}
	return occupancy, nil
}

// ListBookings returns the ledger the actor is allowed to see: leads
// and admins get everything, members only their own rows.
func (s *BookingService) ListBookings(ctx context.Context, actor *models.User) ([]*models.Booking, error) {
	if Can(actor, ActionViewAll) {
		return s.repo.ListBookings(ctx)
	}
	if actor == nil {
		return nil, permissionf("not authenticated")
	}
	return s.repo.ListBookingsByMember(ctx, actor.ID)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFoundf("booking %d not found", id)
	}
	return booking, err
}

// Stats aggregates the ledger for the analytics screen.
func (s *BookingService) Stats(ctx context.Context) (*models.BookingStats, error) {
	bookings, err := s.repo.ListBookings(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.BookingStats{ByWeekday: make(map[int]int)}
	for _, b := range bookings {
		stats.Total++
		switch b.Status {
		case models.StatusAccepted:
			stats.Accepted++
			stats.ByWeekday[int(b.BookingDate.Weekday())]++
		case models.StatusPending:
			stats.Pending++
		}
	}
	if stats.Total > 0 {
		stats.AcceptedRatio = stats.Accepted * 100 / stats.Total
	}
	return stats, nil
}

func (s *BookingService) audit(ctx context.Context, booking *models.Booking, actorID int64, action, reason string) {
	rec := &models.AuditRecord{
		BookingID: booking.ID,
		ActorID:   actorID,
		Action:    action,
		DeskID:    booking.DeskID,
		Reason:    reason,
	}
	if err := s.repo.CreateAuditRecord(ctx, rec); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to write audit record")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, actorID int64, reason string) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:  booking.ID,
		MemberID:   booking.MemberID,
		MemberName: booking.MemberName,
		DeskID:     booking.DeskID,
		Level:      booking.Level,
		Status:     booking.Status,
		Date:       booking.BookingDate,
		ActorID:    actorID,
		Reason:     reason,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, taskType string, booking *models.Booking) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking.ID, booking, booking.Status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("failed to enqueue sync task")
	}
}

func actorRole(user *models.User) string {
	if user == nil {
		return "anonymous"
	}
	return user.Role
}
