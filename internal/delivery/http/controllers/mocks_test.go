package controllers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"admissionengine/internal/adapters/i18n"
	"admissionengine/internal/delivery/http/middleware"
	"admissionengine/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

var testTranslator = i18n.NewTranslator("en", testLogger)

const (
	testEventID      = "6f1c2a4e-3b5d-4c7e-9f10-2a3b4c5d6e7f"
	testInvitationID = "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
)

func withUser(r *http.Request, uid string) *http.Request {
	return r.WithContext(middleware.WithUID(r.Context(), uid))
}

type mockEventService struct {
	event      *domain.Event
	events     []*domain.Event
	err        error
	created    *domain.Event
	removedUID string
}

func (m *mockEventService) CreateEvent(_ context.Context, e *domain.Event) error {
	if m.err != nil {
		return m.err
	}
	e.ID = testEventID
	m.created = e
	return nil
}

func (m *mockEventService) GetEvent(context.Context, string) (*domain.Event, error) {
	return m.event, m.err
}

func (m *mockEventService) ListEventsByOrganizer(context.Context, string) ([]*domain.Event, error) {
	return m.events, m.err
}

func (m *mockEventService) RemoveEntrant(_ context.Context, _, uid, _ string) error {
	m.removedUID = uid
	return m.err
}

type mockSelectionService struct {
	n   int
	err error
}

func (m *mockSelectionService) RunSelection(context.Context, string) (int, error) { return m.n, m.err }

func (m *mockSelectionService) RunForOrganizer(context.Context, string, string) (int, error) {
	return m.n, m.err
}

type mockReplacementService struct {
	n   int
	err error
}

func (m *mockReplacementService) Replace(context.Context, string, int) (int, error) { return m.n, m.err }

func (m *mockReplacementService) Refill(context.Context, string, string) (int, error) {
	return m.n, m.err
}

type mockWaitlistService struct {
	created bool
	joined  bool
	entries []*domain.WaitlistEntry
	total   int
	params  domain.PaginationParams
	err     error
}

func (m *mockWaitlistService) Join(context.Context, string, string) (bool, error) {
	return m.created, m.err
}

func (m *mockWaitlistService) Leave(context.Context, string, string) error { return m.err }

func (m *mockWaitlistService) IsJoined(context.Context, string, string) (bool, error) {
	return m.joined, m.err
}

func (m *mockWaitlistService) List(_ context.Context, _, _ string, params domain.PaginationParams) ([]*domain.WaitlistEntry, int, error) {
	m.params = params
	return m.entries, m.total, m.err
}

type mockInvitationService struct {
	inv        *domain.Invitation
	list       []*domain.Invitation
	err        error
	gotEventID string
	gotUID     string
}

func (m *mockInvitationService) Accept(_ context.Context, _, eventID, uid string) (*domain.Invitation, error) {
	m.gotEventID, m.gotUID = eventID, uid
	return m.inv, m.err
}

func (m *mockInvitationService) Decline(_ context.Context, _, eventID, uid string) (*domain.Invitation, error) {
	m.gotEventID, m.gotUID = eventID, uid
	return m.inv, m.err
}

func (m *mockInvitationService) ListForUser(context.Context, string) ([]*domain.Invitation, error) {
	return m.list, m.err
}

type mockPreferenceService struct {
	profile *domain.Profile
	err     error
}

func (m *mockPreferenceService) GetPreferences(context.Context, string) (*domain.Profile, error) {
	return m.profile, m.err
}

func (m *mockPreferenceService) UpdatePreferences(_ context.Context, uid string, in, notIn *bool) (*domain.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Profile{UID: uid, PrefInvited: in, PrefNotInvited: notIn}, nil
}
