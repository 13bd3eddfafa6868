package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"admissionengine/internal/adapters/i18n"
	"admissionengine/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// memStore is an in-memory rendition of every repository and the admission
// store. Views below expose it under each interface.
type memStore struct {
	mu          sync.Mutex
	events      map[string]*domain.Event
	waitlist    map[string][]*domain.WaitlistEntry
	invitations map[string]*domain.Invitation
	selected    map[string]map[string]bool
	nonSelected map[string]map[string]bool
	cancelled   map[string]map[string]domain.CancellationReason
	admitted    map[string]map[string]bool
	profiles    map[string]*domain.Profile
	requests    []*domain.NotificationRequest
	nextID      int
	err         error            // returned by every call when set
	failNext    map[string]error // returned once by the named call
}

func newMemStore() *memStore {
	return &memStore{
		events:      make(map[string]*domain.Event),
		waitlist:    make(map[string][]*domain.WaitlistEntry),
		invitations: make(map[string]*domain.Invitation),
		selected:    make(map[string]map[string]bool),
		nonSelected: make(map[string]map[string]bool),
		cancelled:   make(map[string]map[string]domain.CancellationReason),
		admitted:    make(map[string]map[string]bool),
		profiles:    make(map[string]*domain.Profile),
		failNext:    make(map[string]error),
	}
}

// failOnce makes the next call to op return err.
func (m *memStore) failOnce(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = err
}

// takeFailure is called with mu held.
func (m *memStore) takeFailure(op string) error {
	err := m.failNext[op]
	delete(m.failNext, op)
	return err
}

func setOf[V any](m map[string]map[string]V, eventID string) map[string]V {
	s, ok := m[eventID]
	if !ok {
		s = make(map[string]V)
		m[eventID] = s
	}
	return s
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// seedWaitlist adds uids directly, bypassing capacity checks.
func (m *memStore) seedWaitlist(eventID string, uids ...string) {
	for _, uid := range uids {
		m.waitlist[eventID] = append(m.waitlist[eventID], &domain.WaitlistEntry{EventID: eventID, UID: uid})
	}
	if e, ok := m.events[eventID]; ok {
		e.WaitlistCount = len(m.waitlist[eventID])
	}
}

func (m *memStore) waitlistUIDs(eventID string) []string {
	out := make([]string, 0, len(m.waitlist[eventID]))
	for _, e := range m.waitlist[eventID] {
		out = append(out, e.UID)
	}
	return out
}

func (m *memStore) removeFromWaitlist(eventID, uid string) bool {
	entries := m.waitlist[eventID]
	for i, e := range entries {
		if e.UID == uid {
			m.waitlist[eventID] = slices.Delete(entries, i, i+1)
			if ev, ok := m.events[eventID]; ok && ev.WaitlistCount > 0 {
				ev.WaitlistCount--
			}
			return true
		}
	}
	return false
}

func (m *memStore) invitationsFor(eventID string, status domain.InvitationStatus) []*domain.Invitation {
	var out []*domain.Invitation
	for _, inv := range m.invitations {
		if inv.EventID == eventID && inv.Status == status {
			out = append(out, inv)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Invitation) int {
		if a.UID < b.UID {
			return -1
		}
		if a.UID > b.UID {
			return 1
		}
		return 0
	})
	return out
}

func (m *memStore) requestsFor(group domain.GroupType) []*domain.NotificationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.NotificationRequest
	for _, r := range m.requests {
		if r.GroupType == group {
			out = append(out, r)
		}
	}
	return out
}

// fakeEvents implements domain.EventRepository.
type fakeEvents struct{ *memStore }

func (f fakeEvents) Create(_ context.Context, e *domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.nextID++
	e.ID = fmt.Sprintf("ev-%d", f.nextID)
	f.events[e.ID] = e
	return nil
}

func (f fakeEvents) GetByID(_ context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (f fakeEvents) ListByOrganizer(_ context.Context, organizerID string) ([]*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Event
	for _, id := range keys(f.events) {
		if e := f.events[id]; e.OrganizerID == organizerID {
			out = append(out, e)
		}
	}
	return out, f.err
}

func (f fakeEvents) ListActive(_ context.Context, now time.Time) ([]*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Event
	for _, id := range keys(f.events) {
		e := f.events[id]
		if e.EventStart.IsZero() || e.EventStart.After(now) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeEvents) SetWaitlistCount(_ context.Context, id string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	e.WaitlistCount = count
	return nil
}

// fakeWaitlist implements domain.WaitlistRepository.
type fakeWaitlist struct{ *memStore }

func (f fakeWaitlist) AddIfBelowCapacity(_ context.Context, entry *domain.WaitlistEntry, capacity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if slices.Contains(f.waitlistUIDs(entry.EventID), entry.UID) {
		return false, nil
	}
	if len(f.waitlist[entry.EventID]) >= capacity {
		return false, domain.ErrCapacityReached
	}
	f.waitlist[entry.EventID] = append(f.waitlist[entry.EventID], entry)
	if e, ok := f.events[entry.EventID]; ok {
		e.WaitlistCount++
	}
	return true, nil
}

func (f fakeWaitlist) Remove(_ context.Context, eventID, uid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	delete(setOf(f.nonSelected, eventID), uid)
	return f.removeFromWaitlist(eventID, uid), nil
}

func (f fakeWaitlist) Exists(_ context.Context, eventID, uid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.waitlistUIDs(eventID), uid), f.err
}

func (f fakeWaitlist) Count(_ context.Context, eventID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waitlist[eventID]), f.err
}

func (f fakeWaitlist) ListUIDs(_ context.Context, eventID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitlistUIDs(eventID), f.err
}

func (f fakeWaitlist) List(_ context.Context, eventID string, params domain.PaginationParams) ([]*domain.WaitlistEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.waitlist[eventID]
	start := min(params.Offset(), len(all))
	end := min(start+params.PageSize, len(all))
	return all[start:end], len(all), f.err
}

// fakeInvitations implements domain.InvitationRepository.
type fakeInvitations struct{ *memStore }

func (f fakeInvitations) GetByID(_ context.Context, id string) (*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f fakeInvitations) ListByUser(_ context.Context, uid string) ([]*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Invitation
	for _, id := range keys(f.invitations) {
		if inv := f.invitations[id]; inv.UID == uid {
			out = append(out, inv)
		}
	}
	return out, f.err
}

func (f fakeInvitations) ListExpiredPending(_ context.Context, now time.Time) ([]*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Invitation
	for _, id := range keys(f.invitations) {
		inv := f.invitations[id]
		if e, ok := f.events[inv.EventID]; ok && e.Started(now) {
			continue
		}
		if inv.Expired(now) {
			out = append(out, inv)
		}
	}
	return out, f.err
}

func (f fakeInvitations) CountPending(_ context.Context, eventID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invitationsFor(eventID, domain.InvitationPending)), f.err
}

func (f fakeInvitations) IsAdmitted(_ context.Context, eventID, uid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admitted[eventID][uid], f.err
}

func (f fakeInvitations) CountAdmitted(_ context.Context, eventID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.admitted[eventID]), f.err
}

func (f fakeInvitations) ListSelectedUIDs(_ context.Context, eventID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return keys(f.selected[eventID]), f.err
}

func (f fakeInvitations) ListNonSelectedUIDs(_ context.Context, eventID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure("ListNonSelectedUIDs"); err != nil {
		return nil, err
	}
	return keys(f.nonSelected[eventID]), f.err
}

func (f fakeInvitations) ListCancelledUIDs(_ context.Context, eventID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return keys(f.cancelled[eventID]), f.err
}

// fakeAdmission implements domain.AdmissionStore with the same latch and
// conditional-update semantics as the Postgres store.
type fakeAdmission struct{ *memStore }

func (f fakeAdmission) CommitSelection(_ context.Context, eventID string, invitations []*domain.Invitation, nonSelected []string, notice *domain.NotificationRequest, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	e, ok := f.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	if e.SelectionProcessed {
		return domain.ErrAlreadyProcessed
	}
	e.SelectionProcessed = true
	e.SelectionNotificationSent = true
	for _, inv := range invitations {
		f.invitations[inv.ID] = inv
		setOf(f.selected, eventID)[inv.UID] = true
		f.removeFromWaitlist(eventID, inv.UID)
	}
	for _, uid := range nonSelected {
		setOf(f.nonSelected, eventID)[uid] = true
	}
	if notice != nil {
		f.requests = append(f.requests, notice)
	}
	return nil
}

func (f fakeAdmission) respond(id string, to domain.InvitationStatus, now time.Time, enforceDeadline bool) (*domain.Invitation, error) {
	inv, ok := f.invitations[id]
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	if inv.Status != domain.InvitationPending {
		return nil, domain.ErrInvalidState
	}
	if enforceDeadline && inv.Expired(now) {
		return nil, domain.ErrDeadlinePassed
	}
	inv.Status = to
	inv.RespondedAt = &now
	cp := *inv
	return &cp, nil
}

func (f fakeAdmission) Accept(_ context.Context, id string, now time.Time) (*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, err := f.respond(id, domain.InvitationAccepted, now, true)
	if err != nil {
		return nil, err
	}
	setOf(f.admitted, inv.EventID)[inv.UID] = true
	return inv, nil
}

func (f fakeAdmission) Decline(_ context.Context, id string, now time.Time) (*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, err := f.respond(id, domain.InvitationDeclined, now, false)
	if err != nil {
		return nil, err
	}
	delete(setOf(f.selected, inv.EventID), inv.UID)
	setOf(f.cancelled, inv.EventID)[inv.UID] = domain.ReasonDeclined
	return inv, nil
}

func (f fakeAdmission) ExpirePending(_ context.Context, eventID string, now time.Time) ([]*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Invitation
	for _, inv := range f.invitationsFor(eventID, domain.InvitationPending) {
		if !inv.Expired(now) {
			continue
		}
		inv.Status = domain.InvitationCancelled
		delete(setOf(f.selected, eventID), inv.UID)
		setOf(f.cancelled, eventID)[inv.UID] = domain.ReasonMissedDeadline
		cp := *inv
		out = append(out, &cp)
	}
	if len(out) > 0 {
		f.events[eventID].DeadlineNotificationSent = true
		f.events[eventID].ReplacementsOwed += len(out)
	}
	return out, nil
}

func (f fakeAdmission) IssueReplacements(_ context.Context, eventID string, invitations []*domain.Invitation, settled int, notice *domain.NotificationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := f.takeFailure("IssueReplacements"); err != nil {
		return err
	}
	e, ok := f.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	if len(setOf(f.selected, eventID))+len(invitations) > e.Capacity {
		return domain.ErrAlreadyProcessed
	}
	for _, inv := range invitations {
		if setOf(f.selected, eventID)[inv.UID] {
			return domain.ErrAlreadyProcessed
		}
	}
	for _, inv := range invitations {
		f.invitations[inv.ID] = inv
		setOf(f.selected, eventID)[inv.UID] = true
		delete(setOf(f.nonSelected, eventID), inv.UID)
		f.removeFromWaitlist(eventID, inv.UID)
	}
	e.ReplacementsOwed = max(0, e.ReplacementsOwed-settled)
	if notice != nil {
		f.requests = append(f.requests, notice)
	}
	return nil
}

func (f fakeAdmission) CommitSorry(_ context.Context, eventID string, notice *domain.NotificationRequest, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if err := f.takeFailure("CommitSorry"); err != nil {
		return false, err
	}
	e, ok := f.events[eventID]
	if !ok {
		return false, domain.ErrEventNotFound
	}
	if e.SorryNotificationSent {
		return false, nil
	}
	e.SorryNotificationSent = true
	if notice != nil {
		f.requests = append(f.requests, notice)
	}
	return true, nil
}

func (f fakeAdmission) RemoveEntrant(_ context.Context, eventID, uid string, reason domain.CancellationReason, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admitted[eventID][uid] {
		return 0, domain.ErrInvalidState
	}
	cancelled := 0
	for _, inv := range f.invitationsFor(eventID, domain.InvitationPending) {
		if inv.UID == uid {
			inv.Status = domain.InvitationCancelled
			cancelled++
		}
	}
	onWaitlist := f.removeFromWaitlist(eventID, uid)
	wasSelected := setOf(f.selected, eventID)[uid]
	if cancelled == 0 && !onWaitlist && !wasSelected {
		return 0, domain.ErrEntrantNotFound
	}
	delete(setOf(f.selected, eventID), uid)
	delete(setOf(f.nonSelected, eventID), uid)
	setOf(f.cancelled, eventID)[uid] = reason
	return cancelled, nil
}

// fakeProfiles implements domain.ProfileRepository.
type fakeProfiles struct{ *memStore }

func (f fakeProfiles) GetByID(_ context.Context, uid string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[uid]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return p, nil
}

func (f fakeProfiles) GetByIDs(_ context.Context, uids []string) (map[string]*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]*domain.Profile)
	for _, uid := range uids {
		if p, ok := f.profiles[uid]; ok {
			out[uid] = p
		}
	}
	return out, nil
}

func (f fakeProfiles) UpdatePreferences(_ context.Context, uid string, prefInvited, prefNotInvited *bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	p, ok := f.profiles[uid]
	if !ok {
		p = &domain.Profile{UID: uid}
		f.profiles[uid] = p
	}
	if prefInvited != nil {
		p.PrefInvited = prefInvited
	}
	if prefNotInvited != nil {
		p.PrefNotInvited = prefNotInvited
	}
	return nil
}

// fakeRequests implements domain.NotificationRequestRepository.
type fakeRequests struct {
	*memStore
	claimed map[string]bool
	marks   map[string][2]int
}

func newFakeRequests(m *memStore) *fakeRequests {
	return &fakeRequests{memStore: m, claimed: make(map[string]bool), marks: make(map[string][2]int)}
}

func (f *fakeRequests) Create(_ context.Context, req *domain.NotificationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := f.takeFailure("Create"); err != nil {
		return err
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeRequests) ExistsSince(_ context.Context, eventID, title string, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.EventID == eventID && r.Title == title && !r.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, f.err
}

func (f *fakeRequests) ClaimUnprocessed(_ context.Context, _, _ time.Time, limit int) ([]*domain.NotificationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.NotificationRequest
	for _, r := range f.requests {
		if len(out) == limit {
			break
		}
		if r.Processed || f.claimed[r.ID] {
			continue
		}
		f.claimed[r.ID] = true
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRequests) MarkProcessed(ctx context.Context, id string, sent, failed int, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.ID == id {
			r.Processed = true
			r.SentCount = sent
			r.FailureCount = failed
			r.ProcessedAt = &at
			f.marks[id] = [2]int{sent, failed}
			return nil
		}
	}
	return domain.ErrNotFound
}

// firstDrawer takes the first k members so tests can predict winners.
type firstDrawer struct{}

func (firstDrawer) Draw(pool []string, k int) []string {
	k = min(k, len(pool))
	if k <= 0 {
		return nil
	}
	return slices.Clone(pool[:k])
}

// harness wires every service against one memStore with a fixed clock.
type harness struct {
	store       *memStore
	requests    *fakeRequests
	notifier    *notifier
	waitlist    *waitlistService
	selection   *selectionService
	replacement *replacementService
	invitation  *invitationService
	deadline    *deadlineProcessor
	sorry       *sorryService
	events      *eventService
	preferences *preferenceService
	settings    Settings
	now         time.Time
}

func newHarness(now time.Time) *harness {
	m := newMemStore()
	h := &harness{store: m, requests: newFakeRequests(m), settings: DefaultSettings(), now: now}
	clock := func() time.Time { return h.now }

	filter := NewPreferenceFilter(fakeProfiles{m}, testLogger)
	deduper := NewStoreDeduper(h.requests, h.settings.DedupWindow).(*storeDeduper)
	deduper.now = clock
	h.notifier = NewNotifier(h.requests, filter, deduper, i18n.NewTranslator("en", testLogger), "en", testLogger).(*notifier)
	h.notifier.now = clock

	h.replacement = NewReplacementService(fakeEvents{m}, fakeWaitlist{m}, fakeInvitations{m}, fakeAdmission{m}, h.notifier, firstDrawer{}, h.settings, testLogger).(*replacementService)
	h.replacement.now = clock
	h.selection = NewSelectionService(fakeEvents{m}, fakeWaitlist{m}, fakeInvitations{m}, fakeAdmission{m}, h.notifier, firstDrawer{}, h.settings, testLogger).(*selectionService)
	h.selection.now = clock
	h.waitlist = NewWaitlistService(fakeEvents{m}, fakeWaitlist{m}, fakeInvitations{m}, fakeProfiles{m}, h.notifier, testLogger, time.Second).(*waitlistService)
	h.waitlist.now = clock
	h.invitation = NewInvitationService(fakeEvents{m}, fakeWaitlist{m}, fakeInvitations{m}, fakeAdmission{m}, h.replacement, h.notifier, testLogger, time.Second).(*invitationService)
	h.invitation.now = clock
	h.deadline = NewDeadlineProcessor(fakeAdmission{m}, h.replacement, h.notifier, h.settings, testLogger).(*deadlineProcessor)
	h.deadline.now = clock
	h.sorry = NewSorryService(fakeInvitations{m}, fakeAdmission{m}, h.notifier, h.settings, testLogger).(*sorryService)
	h.sorry.now = clock
	h.events = NewEventService(fakeEvents{m}, fakeAdmission{m}, h.replacement, h.notifier, testLogger, time.Second).(*eventService)
	h.events.now = clock
	h.preferences = NewPreferenceService(fakeProfiles{m}, time.Second).(*preferenceService)
	return h
}

// addEvent stores an event with an open registration window around now.
func (h *harness) addEvent(capacity, sampleSize int) *domain.Event {
	e := &domain.Event{
		ID:                fmt.Sprintf("ev-%d", len(h.store.events)+1),
		OrganizerID:       "org-1",
		Title:             "Swim Lessons",
		Capacity:          capacity,
		SampleSize:        sampleSize,
		RegistrationStart: h.now.Add(-24 * time.Hour),
		RegistrationEnd:   h.now.Add(24 * time.Hour),
		Deadline:          h.now.Add(3 * 24 * time.Hour),
		EventStart:        h.now.Add(14 * 24 * time.Hour),
	}
	h.store.events[e.ID] = e
	return e
}

// closeRegistration moves the clock past registrationEnd of e.
func (h *harness) closeRegistration(e *domain.Event) {
	h.now = e.RegistrationEnd.Add(time.Minute)
}

func boolPtr(b bool) *bool { return &b }

// invite stores a PENDING invitation for uid and puts uid in the selected set.
func (h *harness) invite(e *domain.Event, uid string, deadline time.Time) *domain.Invitation {
	inv := &domain.Invitation{
		ID:       "inv-" + uid,
		EventID:  e.ID,
		UID:      uid,
		Status:   domain.InvitationPending,
		IssuedAt: h.now,
		Deadline: deadline,
	}
	h.store.invitations[inv.ID] = inv
	setOf(h.store.selected, e.ID)[uid] = true
	h.store.events[e.ID].SelectionProcessed = true
	return inv
}
