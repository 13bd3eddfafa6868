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

type eventService struct {
	eventRepo      domain.EventRepository
	store          domain.AdmissionStore
	replacements   domain.ReplacementService
	notifier       domain.Notifier
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

func NewEventService(
	eventRepo domain.EventRepository,
	store domain.AdmissionStore,
	replacements domain.ReplacementService,
	notifier domain.Notifier,
	logger *slog.Logger,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		store:          store,
		replacements:   replacements,
		notifier:       notifier,
		logger:         logger,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, event *domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if event.OrganizerID == "" {
		return fmt.Errorf("event organizer is required: %w", domain.ErrInvalidInput)
	}
	if err := event.Validate(); err != nil {
		return err
	}

	now := s.now()
	event.CreatedAt = now
	event.UpdatedAt = now
	event.WaitlistCount = 0
	event.SelectionProcessed = false
	event.SelectionNotificationSent = false
	event.DeadlineNotificationSent = false
	event.SorryNotificationSent = false

	return s.eventRepo.Create(ctx, event)
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.eventRepo.GetByID(ctx, eventID)
}

func (s *eventService) ListEventsByOrganizer(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.eventRepo.ListByOrganizer(ctx, organizerID)
}

func (s *eventService) RemoveEntrant(ctx context.Context, eventID, uid, organizerID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrEventNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if event.OrganizerID != organizerID {
		return domain.ErrForbidden
	}

	cancelled, err := s.store.RemoveEntrant(ctx, eventID, uid, domain.ReasonOrganizerRemoved, s.now())
	if err != nil {
		return fmt.Errorf("remove entrant: %w", err)
	}
	for range cancelled {
		metrics.Transition(string(domain.InvitationCancelled))
	}
	s.logger.InfoContext(ctx, "entrant removed", "event_id", eventID, "uid", uid, "cancelled_invitations", cancelled)

	if _, err := s.notifier.Notify(ctx, domain.Notice{
		Event:      event,
		Group:      domain.GroupCancelled,
		Recipients: []string{uid},
	}); err != nil {
		s.logger.WarnContext(ctx, "cancelled notice failed", "event_id", eventID, "uid", uid, "err", err)
	}

	if cancelled > 0 {
		if _, err := s.replacements.Replace(ctx, eventID, cancelled); err != nil && !domain.IsSuccessLike(err) {
			s.logger.WarnContext(ctx, "replacement after removal failed", "event_id", eventID, "err", err)
		}
	}
	return nil
}
