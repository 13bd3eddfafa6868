package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"admissionengine/internal/domain"
)

type storeDeduper struct {
	requests domain.NotificationRequestRepository
	window   time.Duration
	now      func() time.Time
}

// NewStoreDeduper checks the window against notification_requests.created_at.
// It is not atomic across instances; pair it with a Redis deduper when available.
func NewStoreDeduper(requests domain.NotificationRequestRepository, window time.Duration) domain.Deduper {
	return &storeDeduper{requests: requests, window: window, now: time.Now}
}

func (d *storeDeduper) Acquire(ctx context.Context, eventID, title string) (bool, error) {
	exists, err := d.requests.ExistsSince(ctx, eventID, title, d.now().Add(-d.window))
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Release is a no-op: the claim is the stored request itself.
func (d *storeDeduper) Release(context.Context, string, string) error {
	return nil
}

type fallbackDeduper struct {
	primary  domain.Deduper
	fallback domain.Deduper
	logger   *slog.Logger
}

// NewFallbackDeduper asks primary first and falls back when it errors.
func NewFallbackDeduper(primary, fallback domain.Deduper, logger *slog.Logger) domain.Deduper {
	return &fallbackDeduper{primary: primary, fallback: fallback, logger: logger}
}

func (d *fallbackDeduper) Acquire(ctx context.Context, eventID, title string) (bool, error) {
	ok, err := d.primary.Acquire(ctx, eventID, title)
	if err == nil {
		return ok, nil
	}
	d.logger.WarnContext(ctx, "primary dedup failed, using store", "event_id", eventID, "err", err)
	return d.fallback.Acquire(ctx, eventID, title)
}

// Release drops the claim from both sides, since Acquire may have been
// answered by either.
func (d *fallbackDeduper) Release(ctx context.Context, eventID, title string) error {
	return errors.Join(d.primary.Release(ctx, eventID, title), d.fallback.Release(ctx, eventID, title))
}
