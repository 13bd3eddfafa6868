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

type waitlistService struct {
	eventRepo      domain.EventRepository
	waitlistRepo   domain.WaitlistRepository
	invitationRepo domain.InvitationRepository
	profileRepo    domain.ProfileRepository
	notifier       domain.Notifier
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

// NewWaitlistService creates a WaitlistService.
func NewWaitlistService(
	eventRepo domain.EventRepository,
	waitlistRepo domain.WaitlistRepository,
	invitationRepo domain.InvitationRepository,
	profileRepo domain.ProfileRepository,
	notifier domain.Notifier,
	logger *slog.Logger,
	timeout time.Duration,
) domain.WaitlistService {
	return &waitlistService{
		eventRepo:      eventRepo,
		waitlistRepo:   waitlistRepo,
		invitationRepo: invitationRepo,
		profileRepo:    profileRepo,
		notifier:       notifier,
		logger:         logger,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *waitlistService) Join(ctx context.Context, eventID, uid string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	created, err := s.join(ctx, eventID, uid)
	switch {
	case err != nil:
		metrics.WaitlistOperation("join", "rejected")
	case created:
		metrics.WaitlistOperation("join", "created")
	default:
		metrics.WaitlistOperation("join", "noop")
	}
	return created, err
}

func (s *waitlistService) join(ctx context.Context, eventID, uid string) (bool, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("get event: %w", err)
	}
	now := s.now()
	if !event.RegistrationOpen(now) {
		return false, domain.ErrRegistrationClosed
	}

	admitted, err := s.invitationRepo.IsAdmitted(ctx, eventID, uid)
	if err != nil {
		return false, fmt.Errorf("check admitted: %w", err)
	}
	if admitted {
		return false, domain.ErrAlreadyAdmitted
	}

	exists, err := s.waitlistRepo.Exists(ctx, eventID, uid)
	if err != nil {
		return false, fmt.Errorf("check waitlist: %w", err)
	}
	if exists {
		return false, nil
	}

	// Fast rejection; the conditional insert below is what enforces capacity.
	count, err := s.waitlistRepo.Count(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("count waitlist: %w", err)
	}
	if count >= event.Capacity {
		return false, domain.ErrCapacityReached
	}

	entry := &domain.WaitlistEntry{EventID: eventID, UID: uid, JoinedAt: now}
	profile, err := s.profileRepo.GetByID(ctx, uid)
	switch {
	case err == nil:
		entry.DisplayName = profile.DisplayName
		entry.Email = profile.Email
		entry.PhotoURL = profile.PhotoURL
	case errors.Is(err, domain.ErrNotFound):
	default:
		s.logger.WarnContext(ctx, "profile lookup failed, joining without snippet", "uid", uid, "err", err)
	}

	created, err := s.waitlistRepo.AddIfBelowCapacity(ctx, entry, event.Capacity)
	if err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			return false, err
		}
		return false, fmt.Errorf("add waitlist entry: %w", err)
	}
	return created, nil
}

func (s *waitlistService) Leave(ctx context.Context, eventID, uid string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	before, err := s.waitlistRepo.Count(ctx, eventID)
	if err != nil {
		return fmt.Errorf("count waitlist: %w", err)
	}
	removed, err := s.waitlistRepo.Remove(ctx, eventID, uid)
	if err != nil {
		metrics.WaitlistOperation("leave", "error")
		return fmt.Errorf("remove waitlist entry: %w", err)
	}
	if !removed {
		metrics.WaitlistOperation("leave", "noop")
		return nil
	}
	metrics.WaitlistOperation("leave", "removed")

	if before < event.Capacity {
		return nil
	}
	remaining, err := s.waitlistRepo.ListUIDs(ctx, eventID)
	if err != nil {
		s.logger.WarnContext(ctx, "list waitlist for spot notice failed", "event_id", eventID, "err", err)
		return nil
	}
	if _, err := s.notifier.Notify(ctx, domain.Notice{
		Event:      event,
		Group:      domain.GroupSpotAvailable,
		Recipients: remaining,
	}); err != nil {
		s.logger.WarnContext(ctx, "spot available notice failed", "event_id", eventID, "err", err)
	}
	return nil
}

func (s *waitlistService) IsJoined(ctx context.Context, eventID, uid string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return false, fmt.Errorf("get event: %w", err)
	}
	return s.waitlistRepo.Exists(ctx, eventID, uid)
}

func (s *waitlistService) List(ctx context.Context, eventID, organizerID string, params domain.PaginationParams) ([]*domain.WaitlistEntry, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, 0, fmt.Errorf("get event: %w", err)
	}
	if event.OrganizerID != organizerID {
		return nil, 0, domain.ErrForbidden
	}
	return s.waitlistRepo.List(ctx, eventID, params)
}
