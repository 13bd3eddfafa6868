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

// Dispatcher delivers notification requests through the configured senders
// and marks them processed.
type Dispatcher struct {
	requests domain.NotificationRequestRepository
	profiles domain.ProfileRepository
	senders  []domain.Sender
	feed     domain.ChangeFeed
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. feed may be nil, in which case only
// the polling interval drives delivery.
func NewDispatcher(
	requests domain.NotificationRequestRepository,
	profiles domain.ProfileRepository,
	senders []domain.Sender,
	feed domain.ChangeFeed,
	settings Settings,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		requests: requests,
		profiles: profiles,
		senders:  senders,
		feed:     feed,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// Run dispatches until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.settings.DispatchInterval)
	defer ticker.Stop()

	var changes <-chan domain.Change
	if d.feed != nil {
		ch, err := d.feed.Subscribe(ctx, domain.TableNotificationRequests)
		if err != nil {
			d.logger.WarnContext(ctx, "dispatcher: change feed unavailable, polling only", "err", err)
		} else {
			changes = ch
		}
	}

	d.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.drain(ctx)
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			d.drain(ctx)
		}
	}
}

// drain dispatches batches until the backlog is empty.
func (d *Dispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := d.DispatchOnce(ctx)
		if err != nil {
			metrics.BackgroundError("dispatcher")
			d.logger.ErrorContext(ctx, "dispatch failed", "err", err)
			return
		}
		if n < d.settings.DispatchBatch {
			return
		}
	}
}

// DispatchOnce claims one batch and delivers it. It returns the number of
// requests claimed. Each store call and each send gets its own
// ContextTimeout.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	now := d.now()
	claimCtx, cancel := context.WithTimeout(ctx, d.settings.ContextTimeout)
	batch, err := d.requests.ClaimUnprocessed(claimCtx, now, now.Add(-d.settings.DispatchLease), d.settings.DispatchBatch)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("claim notification requests: %w", err)
	}
	for _, req := range batch {
		// Unstarted requests go back to the pool when the lease runs out.
		if ctx.Err() != nil {
			break
		}
		sent, failed := d.deliver(ctx, req)
		if err := d.markProcessed(ctx, req, sent, failed); err != nil {
			return len(batch), fmt.Errorf("mark processed %s: %w", req.ID, err)
		}
		d.logger.InfoContext(ctx, "notification dispatched",
			"request_id", req.ID, "event_id", req.EventID, "group", req.GroupType, "sent", sent, "failed", failed)
	}
	return len(batch), nil
}

// markProcessed records the outcome even when ctx was cancelled mid-request,
// since the sends already happened.
func (d *Dispatcher) markProcessed(ctx context.Context, req *domain.NotificationRequest, sent, failed int) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.settings.ContextTimeout)
	defer cancel()
	return d.requests.MarkProcessed(ctx, req.ID, sent, failed, d.now())
}

// deliver counts a recipient as sent when any channel accepted the message,
// and as failed when every reachable channel errored.
func (d *Dispatcher) deliver(ctx context.Context, req *domain.NotificationRequest) (sent, failed int) {
	lookupCtx, cancel := context.WithTimeout(ctx, d.settings.ContextTimeout)
	profiles, err := d.profiles.GetByIDs(lookupCtx, req.Recipients)
	cancel()
	if err != nil {
		d.logger.WarnContext(ctx, "profile lookup failed, delivering by uid only", "request_id", req.ID, "err", err)
		profiles = nil
	}
	for _, uid := range req.Recipients {
		to, ok := profiles[uid]
		if !ok {
			to = &domain.Profile{UID: uid}
		}
		delivered, attempted := false, false
		for _, s := range d.senders {
			err := d.send(ctx, s, to, req)
			switch {
			case err == nil:
				delivered, attempted = true, true
				metrics.Delivery(s.Name(), "sent")
			case errors.Is(err, domain.ErrNotDeliverable):
				metrics.Delivery(s.Name(), "skipped")
			default:
				attempted = true
				metrics.Delivery(s.Name(), "failed")
				d.logger.WarnContext(ctx, "delivery failed", "channel", s.Name(), "request_id", req.ID, "uid", uid, "err", err)
			}
		}
		switch {
		case delivered:
			sent++
		case attempted:
			failed++
		}
	}
	return sent, failed
}

func (d *Dispatcher) send(ctx context.Context, s domain.Sender, to *domain.Profile, req *domain.NotificationRequest) error {
	ctx, cancel := context.WithTimeout(ctx, d.settings.ContextTimeout)
	defer cancel()
	return s.Send(ctx, to, req)
}
