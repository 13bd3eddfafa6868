package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"admissionengine/internal/domain"
	"admissionengine/internal/metrics"
)

type selectionService struct {
	eventRepo      domain.EventRepository
	waitlistRepo   domain.WaitlistRepository
	invitationRepo domain.InvitationRepository
	store          domain.AdmissionStore
	notifier       domain.Notifier
	drawer         domain.Drawer
	settings       Settings
	logger         *slog.Logger
	now            func() time.Time
}

// NewSelectionService creates the lottery runner.
func NewSelectionService(
	eventRepo domain.EventRepository,
	waitlistRepo domain.WaitlistRepository,
	invitationRepo domain.InvitationRepository,
	store domain.AdmissionStore,
	notifier domain.Notifier,
	drawer domain.Drawer,
	settings Settings,
	logger *slog.Logger,
) domain.SelectionService {
	return &selectionService{
		eventRepo:      eventRepo,
		waitlistRepo:   waitlistRepo,
		invitationRepo: invitationRepo,
		store:          store,
		notifier:       notifier,
		drawer:         drawer,
		settings:       settings,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *selectionService) RunSelection(ctx context.Context, eventID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.ContextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("get event: %w", err)
	}
	return s.run(ctx, event)
}

func (s *selectionService) RunForOrganizer(ctx context.Context, eventID, organizerID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.ContextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("get event: %w", err)
	}
	if event.OrganizerID != organizerID {
		return 0, domain.ErrForbidden
	}
	return s.run(ctx, event)
}

func (s *selectionService) run(ctx context.Context, event *domain.Event) (int, error) {
	now := s.now()
	if event.SelectionProcessed {
		return 0, domain.ErrAlreadyProcessed
	}
	if !event.SelectionDue(now) {
		return 0, domain.ErrSelectionNotDue
	}

	waitlist, err := s.waitlistRepo.ListUIDs(ctx, event.ID)
	if err != nil {
		return 0, fmt.Errorf("list waitlist: %w", err)
	}
	cancelled, err := s.invitationRepo.ListCancelledUIDs(ctx, event.ID)
	if err != nil {
		return 0, fmt.Errorf("list cancelled: %w", err)
	}
	pool := without(waitlist, cancelled)

	k := min(event.SampleSize, event.Capacity, len(pool))
	winners := s.drawer.Draw(pool, k)
	nonSelected := without(pool, winners)

	deadline := event.Deadline
	if deadline.IsZero() {
		deadline = s.settings.replacementDeadline(now, event.EventStart)
	}
	invitations := make([]*domain.Invitation, 0, len(winners))
	for _, uid := range winners {
		invitations = append(invitations, &domain.Invitation{
			ID:       uuid.NewString(),
			EventID:  event.ID,
			UID:      uid,
			Status:   domain.InvitationPending,
			IssuedAt: now,
			Deadline: deadline,
		})
	}

	notice, err := s.notifier.Prepare(ctx, domain.Notice{
		Event:      event,
		Group:      domain.GroupSelected,
		Invited:    true,
		Recipients: winners,
		Data:       map[string]any{"Deadline": deadline},
	})
	if err != nil {
		return 0, fmt.Errorf("prepare selection notice: %w", err)
	}

	if err := s.store.CommitSelection(ctx, event.ID, invitations, nonSelected, notice, now); err != nil {
		s.notifier.Release(ctx, notice)
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return 0, err
		}
		return 0, fmt.Errorf("commit selection: %w", err)
	}

	metrics.InvitationsIssued("selection", len(invitations))
	if notice != nil {
		metrics.Notification(string(domain.GroupSelected), "created")
	}
	s.logger.InfoContext(ctx, "selection committed",
		"event_id", event.ID, "selected", len(winners), "non_selected", len(nonSelected), "pool", len(pool))
	return len(winners), nil
}
