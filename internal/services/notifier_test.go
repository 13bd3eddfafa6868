package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissionengine/internal/domain"
)

func TestNotifier_NotifyRendersAndStores(t *testing.T) {
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)

	req, err := h.notifier.Notify(context.Background(), domain.Notice{
		Event:      event,
		Group:      domain.GroupSpotAvailable,
		Recipients: []string{"u1", "u2"},
	})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "Spot available: Swim Lessons", req.Title)
	assert.Contains(t, req.Message, "Swim Lessons")
	assert.Equal(t, []string{"u1", "u2"}, req.Recipients)
	assert.Equal(t, h.now, req.CreatedAt)
	assert.Len(t, h.store.requests, 1)
}

func TestNotifier_DeadlineInMessage(t *testing.T) {
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)
	deadline := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)

	req, err := h.notifier.Prepare(context.Background(), domain.Notice{
		Event:      event,
		Group:      domain.GroupReplacement,
		Invited:    true,
		Recipients: []string{"u1"},
		Data:       map[string]any{"Deadline": deadline},
	})
	require.NoError(t, err)
	assert.Equal(t, "Replacement Invitation", req.Title)
	assert.Contains(t, req.Message, "Mar 8, 2026 12:00 UTC")
	assert.Empty(t, h.store.requests, "Prepare must not persist")
}

func TestNotifier_BroadcastDedup(t *testing.T) {
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)
	ctx := context.Background()
	notice := domain.Notice{Event: event, Group: domain.GroupGeneral, Recipients: []string{"u1"}}

	first, err := h.notifier.Notify(ctx, notice)
	require.NoError(t, err)
	require.NotNil(t, first)

	h.now = h.now.Add(time.Minute)
	second, err := h.notifier.Notify(ctx, notice)
	require.NoError(t, err)
	assert.Nil(t, second, "same title inside the window")

	h.now = h.now.Add(10 * time.Minute)
	third, err := h.notifier.Notify(ctx, notice)
	require.NoError(t, err)
	assert.NotNil(t, third)
}

func TestNotifier_FailedWriteReleasesDedupClaim(t *testing.T) {
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)
	ctx := context.Background()
	claims := &claimDeduper{claims: make(map[string]bool)}
	h.notifier.deduper = claims
	notice := domain.Notice{Event: event, Group: domain.GroupSpotAvailable, Recipients: []string{"u1"}}

	h.store.failOnce("Create", domain.ErrTransientStore)
	_, err := h.notifier.Notify(ctx, notice)
	require.ErrorIs(t, err, domain.ErrTransientStore)
	assert.Empty(t, claims.claims, "claim released after the failed write")

	req, err := h.notifier.Notify(ctx, notice)
	require.NoError(t, err)
	require.NotNil(t, req, "the retry is not treated as a duplicate")
	assert.Len(t, h.store.requests, 1)

	again, err := h.notifier.Notify(ctx, notice)
	require.NoError(t, err)
	assert.Nil(t, again, "a stored request keeps its claim")
}

func TestNotifier_PerEntrantGroupsAreNotDeduplicated(t *testing.T) {
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)
	ctx := context.Background()

	for _, uid := range []string{"u1", "u2"} {
		req, err := h.notifier.Notify(ctx, domain.Notice{Event: event, Group: domain.GroupCancelled, Recipients: []string{uid}})
		require.NoError(t, err)
		require.NotNil(t, req)
	}
	assert.Len(t, h.store.requests, 2)
}

func TestNotifier_AllFilteredOut(t *testing.T) {
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)
	h.store.profiles["u1"] = &domain.Profile{UID: "u1", PrefNotInvited: boolPtr(false)}

	req, err := h.notifier.Notify(context.Background(), domain.Notice{Event: event, Group: domain.GroupSorry, Recipients: []string{"u1"}})
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Empty(t, h.store.requests)
}

func TestNotifier_RequiresEvent(t *testing.T) {
	h := newHarness(time.Now())
	_, err := h.notifier.Notify(context.Background(), domain.Notice{Group: domain.GroupGeneral, Recipients: []string{"u1"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
