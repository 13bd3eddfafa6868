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

type replacementService struct {
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

// NewReplacementService creates the seat refill service.
func NewReplacementService(
	eventRepo domain.EventRepository,
	waitlistRepo domain.WaitlistRepository,
	invitationRepo domain.InvitationRepository,
	store domain.AdmissionStore,
	notifier domain.Notifier,
	drawer domain.Drawer,
	settings Settings,
	logger *slog.Logger,
) domain.ReplacementService {
	return &replacementService{
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

// Replace also settles seats left owed by an earlier expiry whose draw
// failed, so cancelled may be zero.
func (s *replacementService) Replace(ctx context.Context, eventID string, cancelled int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.ContextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("get event: %w", err)
	}
	cancelled = max(cancelled, event.ReplacementsOwed)
	if cancelled <= 0 {
		return 0, nil
	}
	return s.replace(ctx, event, cancelled)
}

func (s *replacementService) Refill(ctx context.Context, eventID, organizerID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.ContextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("get event: %w", err)
	}
	if event.OrganizerID != organizerID {
		return 0, domain.ErrForbidden
	}
	if !event.SelectionProcessed {
		return 0, fmt.Errorf("selection has not run: %w", domain.ErrInvalidState)
	}
	selected, err := s.invitationRepo.ListSelectedUIDs(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("list selected: %w", err)
	}
	open := event.Capacity - len(selected)
	if open <= 0 {
		return 0, nil
	}
	return s.replace(ctx, event, open)
}

// replace draws replacements for cancelled freed seats. The selected set
// no longer contains the cancelled entrants, so the seat count before the
// cancellation is selectedAfter+cancelled. The event's owed seats are
// settled by the same write, or on their own when nothing is drawn.
func (s *replacementService) replace(ctx context.Context, event *domain.Event, cancelled int) (int, error) {
	now := s.now()
	if event.Started(now) {
		return 0, domain.ErrEventStarted
	}

	selected, err := s.invitationRepo.ListSelectedUIDs(ctx, event.ID)
	if err != nil {
		return 0, fmt.Errorf("list selected: %w", err)
	}
	cancelledUIDs, err := s.invitationRepo.ListCancelledUIDs(ctx, event.ID)
	if err != nil {
		return 0, fmt.Errorf("list cancelled: %w", err)
	}
	waitlist, err := s.waitlistRepo.ListUIDs(ctx, event.ID)
	if err != nil {
		return 0, fmt.Errorf("list waitlist: %w", err)
	}
	pool := without(waitlist, selected, cancelledUIDs)

	selectedAfter := len(selected)
	count := replacementCount(cancelled, selectedAfter, event.Capacity, len(pool))
	if count == 0 {
		s.logger.DebugContext(ctx, "no replacement drawn",
			"event_id", event.ID, "cancelled", cancelled, "selected", selectedAfter, "pool", len(pool))
		if err := s.store.IssueReplacements(ctx, event.ID, nil, event.ReplacementsOwed, nil); err != nil {
			return 0, fmt.Errorf("settle owed replacements: %w", err)
		}
		return 0, nil
	}

	winners := s.drawer.Draw(pool, count)
	deadline := s.settings.replacementDeadline(now, event.EventStart)
	invitations := make([]*domain.Invitation, 0, len(winners))
	for _, uid := range winners {
		invitations = append(invitations, &domain.Invitation{
			ID:            uuid.NewString(),
			EventID:       event.ID,
			UID:           uid,
			Status:        domain.InvitationPending,
			IssuedAt:      now,
			Deadline:      deadline,
			IsReplacement: true,
		})
	}

	notice, err := s.notifier.Prepare(ctx, domain.Notice{
		Event:      event,
		Group:      domain.GroupReplacement,
		Invited:    true,
		Recipients: winners,
		Data:       map[string]any{"Deadline": deadline},
	})
	if err != nil {
		return 0, fmt.Errorf("prepare replacement notice: %w", err)
	}

	if err := s.store.IssueReplacements(ctx, event.ID, invitations, event.ReplacementsOwed, notice); err != nil {
		s.notifier.Release(ctx, notice)
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return 0, err
		}
		return 0, fmt.Errorf("issue replacements: %w", err)
	}

	metrics.InvitationsIssued("replacement", len(invitations))
	if notice != nil {
		metrics.Notification(string(domain.GroupReplacement), "created")
	}
	s.logger.InfoContext(ctx, "replacements issued", "event_id", event.ID, "issued", len(invitations), "cancelled", cancelled)
	return len(invitations), nil
}

// replacementCount is min(cancelled, currentSelected, capacity-selectedAfter, pool),
// where currentSelected counts the freed seats back in.
func replacementCount(cancelled, selectedAfter, capacity, pool int) int {
	currentSelected := selectedAfter + cancelled
	return max(0, min(cancelled, currentSelected, capacity-selectedAfter, pool))
}
