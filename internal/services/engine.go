package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"admissionengine/internal/domain"
	"admissionengine/internal/metrics"
)

// Engine drives the lifecycle from a periodic scan and from store changes.
// Both paths are idempotent; the scan is the authoritative one.
type Engine struct {
	eventRepo      domain.EventRepository
	waitlistRepo   domain.WaitlistRepository
	invitationRepo domain.InvitationRepository
	selection      domain.SelectionService
	deadlines      domain.DeadlineProcessor
	sorry          domain.SorryService
	feed           domain.ChangeFeed
	settings       Settings
	logger         *slog.Logger
	now            func() time.Time
	startedAt      time.Time
}

// NewEngine creates an Engine. feed may be nil to run on the scan alone.
func NewEngine(
	eventRepo domain.EventRepository,
	waitlistRepo domain.WaitlistRepository,
	invitationRepo domain.InvitationRepository,
	selection domain.SelectionService,
	deadlines domain.DeadlineProcessor,
	sorry domain.SorryService,
	feed domain.ChangeFeed,
	settings Settings,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		eventRepo:      eventRepo,
		waitlistRepo:   waitlistRepo,
		invitationRepo: invitationRepo,
		selection:      selection,
		deadlines:      deadlines,
		sorry:          sorry,
		feed:           feed,
		settings:       settings,
		logger:         logger,
		now:            time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAt = e.now()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.scanLoop(ctx) })
	if e.feed != nil {
		g.Go(func() error { return e.feedLoop(ctx) })
	}
	return g.Wait()
}

func (e *Engine) scanLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.settings.ScanInterval)
	defer ticker.Stop()
	for {
		if err := e.Scan(ctx); err != nil && ctx.Err() == nil {
			metrics.BackgroundError("scan")
			e.logger.ErrorContext(ctx, "scan failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (e *Engine) feedLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		changes, err := e.feed.Subscribe(ctx, domain.TableEvents, domain.TableInvitations)
		if err != nil {
			metrics.BackgroundError("feed")
			e.logger.ErrorContext(ctx, "subscribe to changes failed", "err", err)
		} else {
			for change := range changes {
				e.handleChange(ctx, change)
			}
		}
		select {
		case <-ctx.Done():
		case <-time.After(e.settings.ScanInterval):
		}
	}
	return nil
}

func (e *Engine) handleChange(ctx context.Context, change domain.Change) {
	var err error
	switch {
	case change.Op == domain.OpResync:
		e.logger.InfoContext(ctx, "change feed resync, running full scan")
		err = e.Scan(ctx)
	case change.Table == domain.TableEvents:
		var event *domain.Event
		event, err = e.eventRepo.GetByID(ctx, change.ID)
		if err == nil {
			err = e.evaluate(ctx, event)
		}
	case change.Table == domain.TableInvitations:
		err = e.invitationChanged(ctx, change)
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
		metrics.BackgroundError("feed")
		e.logger.WarnContext(ctx, "change handling failed", "table", change.Table, "id", change.ID, "err", err)
	}
}

// invitationChanged runs the deadline path for the invitation's event. Right
// after start, stale deadlines are left to the scan so a cold start does not
// replay a backlog through the feed.
func (e *Engine) invitationChanged(ctx context.Context, change domain.Change) error {
	inv, err := e.invitationRepo.GetByID(ctx, change.ID)
	if err != nil {
		return err
	}
	now := e.now()
	if !inv.Expired(now) {
		return nil
	}
	if now.Sub(e.startedAt) < e.settings.StartupGrace && inv.Deadline.Before(now.Add(-e.settings.RecentDeadline)) {
		e.logger.DebugContext(ctx, "skipping stale deadline during startup grace", "invitation_id", inv.ID)
		return nil
	}
	event, err := e.eventRepo.GetByID(ctx, inv.EventID)
	if err != nil {
		return err
	}
	_, err = e.deadlines.ProcessEvent(ctx, event)
	return err
}

// Scan evaluates every active event, then every overdue invitation, then
// any event still owed replacements from an earlier failed draw.
func (e *Engine) Scan(ctx context.Context) error {
	defer metrics.ObserveScan("full", e.now())

	now := e.now()
	events, err := e.eventRepo.ListActive(ctx, now)
	if err != nil {
		return fmt.Errorf("list active events: %w", err)
	}
	metrics.ActiveEvents(len(events))

	byID := make(map[string]*domain.Event, len(events))
	for _, event := range events {
		byID[event.ID] = event
		if err := e.evaluate(ctx, event); err != nil {
			metrics.BackgroundError("evaluate")
			e.logger.WarnContext(ctx, "evaluate event failed", "event_id", event.ID, "err", err)
		}
		e.reconcileCount(ctx, event)
	}

	overdue, err := e.invitationRepo.ListExpiredPending(ctx, now)
	if err != nil {
		return fmt.Errorf("list expired invitations: %w", err)
	}
	seen := make(map[string]bool)
	for _, inv := range overdue {
		if seen[inv.EventID] {
			continue
		}
		seen[inv.EventID] = true
		event, ok := byID[inv.EventID]
		if !ok {
			if event, err = e.eventRepo.GetByID(ctx, inv.EventID); err != nil {
				e.logger.WarnContext(ctx, "load event for deadline failed", "event_id", inv.EventID, "err", err)
				continue
			}
		}
		e.processDeadlines(ctx, event)
	}
	for _, event := range events {
		if event.ReplacementsOwed > 0 && !seen[event.ID] {
			e.processDeadlines(ctx, event)
		}
	}
	return nil
}

func (e *Engine) processDeadlines(ctx context.Context, event *domain.Event) {
	if _, err := e.deadlines.ProcessEvent(ctx, event); err != nil {
		metrics.BackgroundError("deadline")
		e.logger.WarnContext(ctx, "deadline processing failed", "event_id", event.ID, "err", err)
	}
}

// evaluate runs the time-triggered steps for one event.
func (e *Engine) evaluate(ctx context.Context, event *domain.Event) error {
	now := e.now()
	if event.SelectionDue(now) {
		n, err := e.selection.RunSelection(ctx, event.ID)
		switch {
		case err == nil:
			e.logger.InfoContext(ctx, "selection ran", "event_id", event.ID, "selected", n)
		case domain.IsSuccessLike(err), errors.Is(err, domain.ErrSelectionNotDue):
		default:
			return fmt.Errorf("run selection: %w", err)
		}
	}
	if _, err := e.sorry.Check(ctx, event); err != nil {
		return fmt.Errorf("sorry check: %w", err)
	}
	return nil
}

// reconcileCount repairs the display counter from the live waitlist.
func (e *Engine) reconcileCount(ctx context.Context, event *domain.Event) {
	live, err := e.waitlistRepo.Count(ctx, event.ID)
	if err != nil {
		e.logger.WarnContext(ctx, "count waitlist failed", "event_id", event.ID, "err", err)
		return
	}
	if live == event.WaitlistCount {
		return
	}
	if err := e.eventRepo.SetWaitlistCount(ctx, event.ID, live); err != nil {
		e.logger.WarnContext(ctx, "reconcile waitlist count failed", "event_id", event.ID, "err", err)
		return
	}
	e.logger.InfoContext(ctx, "waitlist count reconciled", "event_id", event.ID, "stored", event.WaitlistCount, "live", live)
}
