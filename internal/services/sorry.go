package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"admissionengine/internal/domain"
	"admissionengine/internal/metrics"
)

type sorryService struct {
	invitationRepo domain.InvitationRepository
	store          domain.AdmissionStore
	notifier       domain.Notifier
	settings       Settings
	logger         *slog.Logger
	now            func() time.Time
}

// NewSorryService creates the pre-start notice sender.
func NewSorryService(
	invitationRepo domain.InvitationRepository,
	store domain.AdmissionStore,
	notifier domain.Notifier,
	settings Settings,
	logger *slog.Logger,
) domain.SorryService {
	return &sorryService{
		invitationRepo: invitationRepo,
		store:          store,
		notifier:       notifier,
		settings:       settings,
		logger:         logger,
		now:            time.Now,
	}
}

// inWindow reports whether now is within tolerance of start-lead.
func (s *sorryService) inWindow(event *domain.Event, now time.Time) bool {
	if event.EventStart.IsZero() {
		return false
	}
	target := event.EventStart.Add(-s.settings.SorryLead)
	return !now.Before(target.Add(-s.settings.SorryTolerance)) && !now.After(target.Add(s.settings.SorryTolerance))
}

// Check prepares the notice first and commits it together with the latch,
// so a failed read or write leaves the latch unset for the next scan.
func (s *sorryService) Check(ctx context.Context, event *domain.Event) (bool, error) {
	now := s.now()
	if event.SorryNotificationSent || !s.inWindow(event, now) {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.settings.ContextTimeout)
	defer cancel()

	uids, err := s.invitationRepo.ListNonSelectedUIDs(ctx, event.ID)
	if err != nil {
		metrics.BackgroundError("sorry")
		return false, fmt.Errorf("list non-selected: %w", err)
	}
	var notice *domain.NotificationRequest
	if len(uids) > 0 {
		notice, err = s.notifier.Prepare(ctx, domain.Notice{
			Event:      event,
			Group:      domain.GroupSorry,
			Recipients: uids,
		})
		if err != nil {
			metrics.BackgroundError("sorry")
			return false, fmt.Errorf("prepare sorry notice: %w", err)
		}
	}

	won, err := s.store.CommitSorry(ctx, event.ID, notice, now)
	if err != nil {
		s.notifier.Release(ctx, notice)
		metrics.BackgroundError("sorry")
		metrics.Notification(string(domain.GroupSorry), "error")
		return false, fmt.Errorf("commit sorry notice: %w", err)
	}
	if !won {
		s.notifier.Release(ctx, notice)
		return false, nil
	}
	if notice != nil {
		metrics.Notification(string(domain.GroupSorry), "created")
	}
	s.logger.InfoContext(ctx, "sorry notice sent", "event_id", event.ID, "recipients", len(uids))
	return true, nil
}
