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

type deadlineProcessor struct {
	store        domain.AdmissionStore
	replacements domain.ReplacementService
	notifier     domain.Notifier
	settings     Settings
	logger       *slog.Logger
	now          func() time.Time
}

// NewDeadlineProcessor creates the expiry handler.
func NewDeadlineProcessor(
	store domain.AdmissionStore,
	replacements domain.ReplacementService,
	notifier domain.Notifier,
	settings Settings,
	logger *slog.Logger,
) domain.DeadlineProcessor {
	return &deadlineProcessor{
		store:        store,
		replacements: replacements,
		notifier:     notifier,
		settings:     settings,
		logger:       logger,
		now:          time.Now,
	}
}

// ProcessEvent expires overdue invitations and draws their replacements.
// ExpirePending records the freed seats as owed, so a draw that fails here
// is settled by a later call even when nothing new has expired.
func (p *deadlineProcessor) ProcessEvent(ctx context.Context, event *domain.Event) (int, error) {
	now := p.now()
	if event.Started(now) {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.settings.ContextTimeout)
	defer cancel()

	expired, err := p.store.ExpirePending(ctx, event.ID, now)
	if err != nil {
		return 0, fmt.Errorf("expire pending: %w", err)
	}
	if len(expired) == 0 {
		if event.ReplacementsOwed == 0 {
			return 0, nil
		}
		p.logger.InfoContext(ctx, "settling owed replacements", "event_id", event.ID, "owed", event.ReplacementsOwed)
		return 0, p.replace(ctx, event.ID, 0)
	}
	for range expired {
		metrics.Transition(string(domain.InvitationCancelled))
	}

	uids := make([]string, 0, len(expired))
	for _, inv := range expired {
		uids = append(uids, inv.UID)
	}
	p.logger.InfoContext(ctx, "invitations expired", "event_id", event.ID, "count", len(expired))

	if _, err := p.notifier.Notify(ctx, domain.Notice{
		Event:      event,
		Group:      domain.GroupDeadline,
		Invited:    true,
		Recipients: uids,
		Data:       map[string]any{"Deadline": expired[0].Deadline},
	}); err != nil {
		p.logger.WarnContext(ctx, "deadline notice failed", "event_id", event.ID, "err", err)
	}

	return len(expired), p.replace(ctx, event.ID, len(expired))
}

func (p *deadlineProcessor) replace(ctx context.Context, eventID string, cancelled int) error {
	_, err := p.replacements.Replace(ctx, eventID, cancelled)
	if err != nil && !domain.IsSuccessLike(err) && !errors.Is(err, domain.ErrEventStarted) {
		return fmt.Errorf("replace expired: %w", err)
	}
	return nil
}
