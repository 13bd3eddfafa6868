package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"admissionengine/internal/domain"
	"admissionengine/internal/metrics"
)

type invitationService struct {
	eventRepo      domain.EventRepository
	waitlistRepo   domain.WaitlistRepository
	invitationRepo domain.InvitationRepository
	store          domain.AdmissionStore
	replacements   domain.ReplacementService
	notifier       domain.Notifier
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

// NewInvitationService creates an InvitationService.
func NewInvitationService(
	eventRepo domain.EventRepository,
	waitlistRepo domain.WaitlistRepository,
	invitationRepo domain.InvitationRepository,
	store domain.AdmissionStore,
	replacements domain.ReplacementService,
	notifier domain.Notifier,
	logger *slog.Logger,
	timeout time.Duration,
) domain.InvitationService {
	return &invitationService{
		eventRepo:      eventRepo,
		waitlistRepo:   waitlistRepo,
		invitationRepo: invitationRepo,
		store:          store,
		replacements:   replacements,
		notifier:       notifier,
		logger:         logger,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

// owned loads the invitation and hides it from anyone but its entrant.
func (s *invitationService) owned(ctx context.Context, invitationID, eventID, uid string) (*domain.Invitation, error) {
	inv, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv.UID != uid || (eventID != "" && inv.EventID != eventID) {
		return nil, domain.ErrInvitationNotFound
	}
	if inv.Status.Terminal() {
		return nil, fmt.Errorf("invitation is %s: %w", inv.Status, domain.ErrInvalidState)
	}
	return inv, nil
}

func (s *invitationService) Accept(ctx context.Context, invitationID, eventID, uid string) (*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.owned(ctx, invitationID, eventID, uid); err != nil {
		return nil, err
	}
	inv, err := s.store.Accept(ctx, invitationID, s.now())
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	metrics.Transition(string(domain.InvitationAccepted))
	s.logger.InfoContext(ctx, "invitation accepted", "invitation_id", inv.ID, "event_id", inv.EventID, "uid", uid)

	s.notifyNotSelectedWhenFull(ctx, inv.EventID)
	return inv, nil
}

// notifyNotSelectedWhenFull tells the remaining waitlist once every seat is
// taken and no invitation is still open.
func (s *invitationService) notifyNotSelectedWhenFull(ctx context.Context, eventID string) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "load event after accept failed", "event_id", eventID, "err", err)
		return
	}
	admitted, err := s.invitationRepo.CountAdmitted(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "count admitted failed", "event_id", eventID, "err", err)
		return
	}
	if admitted < event.Capacity {
		return
	}
	pending, err := s.invitationRepo.CountPending(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "count pending failed", "event_id", eventID, "err", err)
		return
	}
	if pending > 0 {
		return
	}
	remaining, err := s.waitlistRepo.ListUIDs(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "list waitlist failed", "event_id", eventID, "err", err)
		return
	}
	if _, err := s.notifier.Notify(ctx, domain.Notice{
		Event:      event,
		Group:      domain.GroupNonSelected,
		Recipients: remaining,
	}); err != nil {
		s.logger.WarnContext(ctx, "event full notice failed", "event_id", eventID, "err", err)
	}
}

func (s *invitationService) Decline(ctx context.Context, invitationID, eventID, uid string) (*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.owned(ctx, invitationID, eventID, uid); err != nil {
		return nil, err
	}
	inv, err := s.store.Decline(ctx, invitationID, s.now())
	if err != nil {
		return nil, fmt.Errorf("decline invitation: %w", err)
	}
	metrics.Transition(string(domain.InvitationDeclined))
	s.logger.InfoContext(ctx, "invitation declined", "invitation_id", inv.ID, "event_id", inv.EventID, "uid", uid)

	if _, err := s.replacements.Replace(ctx, inv.EventID, 1); err != nil && !domain.IsSuccessLike(err) {
		// The periodic scan and organizer refill pick the seat up later.
		if !errors.Is(err, domain.ErrEventStarted) {
			metrics.BackgroundError("replacement")
		}
		s.logger.WarnContext(ctx, "replacement after decline failed", "event_id", inv.EventID, "err", err)
	}
	return inv, nil
}

func (s *invitationService) ListForUser(ctx context.Context, uid string) ([]*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	invitations, err := s.invitationRepo.ListByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return invitations, nil
}
