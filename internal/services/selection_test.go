package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissionengine/internal/domain"
)

func TestSelectionService_RunSelection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)
	h.store.seedWaitlist(event.ID, "u1", "u2", "u3")
	h.closeRegistration(event)

	n, err := h.selection.RunSelection(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending := h.store.invitationsFor(event.ID, domain.InvitationPending)
	require.Len(t, pending, 2)
	for _, inv := range pending {
		assert.Equal(t, event.Deadline, inv.Deadline)
		assert.False(t, inv.IsReplacement)
	}
	assert.Equal(t, []string{"u1", "u2"}, keys(h.store.selected[event.ID]))
	assert.Equal(t, []string{"u3"}, keys(h.store.nonSelected[event.ID]))
	assert.Equal(t, []string{"u3"}, h.store.waitlistUIDs(event.ID), "winners leave the waitlist")

	stored := h.store.events[event.ID]
	assert.True(t, stored.SelectionProcessed)
	assert.True(t, stored.SelectionNotificationSent)
	assert.Equal(t, 1, stored.WaitlistCount)

	notices := h.store.requestsFor(domain.GroupSelected)
	require.Len(t, notices, 1)
	assert.Equal(t, "You've been selected!", notices[0].Title)
	assert.ElementsMatch(t, []string{"u1", "u2"}, notices[0].Recipients)
}

func TestSelectionService_RunsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)
	h.store.seedWaitlist(event.ID, "u1", "u2", "u3")
	h.closeRegistration(event)

	_, err := h.selection.RunSelection(ctx, event.ID)
	require.NoError(t, err)
	_, err = h.selection.RunSelection(ctx, event.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.True(t, domain.IsSuccessLike(err))
	assert.Len(t, h.store.invitations, 2)
	assert.Len(t, h.store.requestsFor(domain.GroupSelected), 1)
}

func TestSelectionService_LostLatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)
	h.store.seedWaitlist(event.ID, "u1", "u2", "u3")
	h.closeRegistration(event)

	// Another instance committed between our read and our write.
	loaded, err := fakeEvents{h.store}.GetByID(ctx, event.ID)
	require.NoError(t, err)
	h.store.events[event.ID].SelectionProcessed = true

	_, err = h.selection.run(ctx, loaded)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.Empty(t, h.store.invitations)
	assert.Empty(t, h.store.requests)
}

func TestSelectionService_NotDue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)

	_, err := h.selection.RunSelection(ctx, event.ID)
	assert.ErrorIs(t, err, domain.ErrSelectionNotDue)

	h.now = event.EventStart.Add(time.Minute)
	_, err = h.selection.RunSelection(ctx, event.ID)
	assert.ErrorIs(t, err, domain.ErrSelectionNotDue)
}

func TestSelectionService_SampleBoundedByCapacityAndPool(t *testing.T) {
	tests := []struct {
		name       string
		capacity   int
		sampleSize int
		waitlist   []string
		want       int
	}{
		{"sample below pool", 5, 2, []string{"a", "b", "c"}, 2},
		{"pool below sample", 5, 4, []string{"a", "b"}, 2},
		{"capacity below sample", 1, 3, []string{"a", "b", "c"}, 1},
		{"empty pool", 5, 2, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
			event := h.addEvent(tt.capacity, tt.sampleSize)
			h.store.seedWaitlist(event.ID, tt.waitlist...)
			h.closeRegistration(event)

			n, err := h.selection.RunSelection(context.Background(), event.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
			assert.True(t, h.store.events[event.ID].SelectionProcessed)
		})
	}
}

func TestSelectionService_SkipsCancelled(t *testing.T) {
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)
	h.store.seedWaitlist(event.ID, "gone", "u1", "u2")
	setOf(h.store.cancelled, event.ID)["gone"] = domain.ReasonOrganizerRemoved
	h.closeRegistration(event)

	_, err := h.selection.RunSelection(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, keys(h.store.selected[event.ID]))
}

func TestSelectionService_RunForOrganizer(t *testing.T) {
	h := newHarness(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	event := h.addEvent(5, 2)
	h.closeRegistration(event)

	_, err := h.selection.RunForOrganizer(context.Background(), event.ID, "intruder")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.False(t, h.store.events[event.ID].SelectionProcessed)
}
