package domain

import (
	"context"
	"time"
)

// AdmissionStore performs the multi-record lifecycle transitions. Each method
// commits all of its writes atomically or none of them.
type AdmissionStore interface {
	// CommitSelection flips selectionProcessed and selectionNotificationSent,
	// writes the invitations and the optional notification request, moves the
	// winners off the waitlist and tags nonSelected. ErrAlreadyProcessed means
	// another instance won the latch.
	CommitSelection(ctx context.Context, eventID string, invitations []*Invitation, nonSelected []string, notice *NotificationRequest, now time.Time) error
	// Accept moves a PENDING invitation to ACCEPTED and admits the entrant.
	Accept(ctx context.Context, invitationID string, now time.Time) (*Invitation, error)
	// Decline moves a PENDING invitation to DECLINED and cancels the entrant.
	Decline(ctx context.Context, invitationID string, now time.Time) (*Invitation, error)
	// ExpirePending cancels the event's PENDING invitations whose deadline is
	// before now and returns only the ones this call transitioned. The count
	// is added to the event's ReplacementsOwed in the same transaction.
	ExpirePending(ctx context.Context, eventID string, now time.Time) ([]*Invitation, error)
	// IssueReplacements writes replacement invitations and the optional
	// notification request, moves the entrants from the waitlist to the
	// selected set and subtracts settled from ReplacementsOwed. It returns
	// ErrAlreadyProcessed when the invitations would take the selected set
	// past capacity. With no invitations only the debt is settled.
	IssueReplacements(ctx context.Context, eventID string, invitations []*Invitation, settled int, notice *NotificationRequest) error
	// CommitSorry sets sorryNotificationSent and writes the optional request.
	// false means the latch was already set and nothing was written.
	CommitSorry(ctx context.Context, eventID string, notice *NotificationRequest, now time.Time) (bool, error)
	// RemoveEntrant cancels the entrant for reason. cancelled is the number of
	// PENDING invitations this call moved to CANCELLED.
	RemoveEntrant(ctx context.Context, eventID, uid string, reason CancellationReason, now time.Time) (cancelled int, err error)
}

// Drawer picks k distinct members of pool uniformly at random.
type Drawer interface {
	Draw(pool []string, k int) []string
}

// SelectionService runs the lottery.
type SelectionService interface {
	// RunSelection draws the event's winners. It returns ErrSelectionNotDue
	// outside the trigger window and ErrAlreadyProcessed once done.
	RunSelection(ctx context.Context, eventID string) (selected int, err error)
	// RunForOrganizer is RunSelection guarded by event ownership.
	RunForOrganizer(ctx context.Context, eventID, organizerID string) (selected int, err error)
}

// DeadlineProcessor reclaims invitations that passed their deadline.
type DeadlineProcessor interface {
	ProcessEvent(ctx context.Context, event *Event) (expired int, err error)
}

// ReplacementService refills seats freed by cancellations.
type ReplacementService interface {
	// Replace draws for cancelled newly freed seats, or for the event's
	// ReplacementsOwed when that is larger.
	Replace(ctx context.Context, eventID string, cancelled int) (issued int, err error)
	// Refill draws for every seat not held by a selected entrant.
	Refill(ctx context.Context, eventID, organizerID string) (issued int, err error)
}

// SorryService sends the pre-start notice to non-selected entrants.
type SorryService interface {
	// Check sends the notice when now is inside the window. sent reports
	// whether this call fired it.
	Check(ctx context.Context, event *Event) (sent bool, err error)
}

// Change is a row-level change observed on the store.
type Change struct {
	Table   string `json:"table"`
	Op      string `json:"op"`
	EventID string `json:"event_id"`
	ID      string `json:"id"`
}

// Change tables and the resync marker.
const (
	TableEvents               = "events"
	TableInvitations          = "invitations"
	TableNotificationRequests = "notification_requests"
	OpResync                  = "RESYNC"
)

// ChangeFeed delivers store changes at least once. The channel closes when
// ctx is cancelled; subscriptions are independent of each other.
type ChangeFeed interface {
	Subscribe(ctx context.Context, tables ...string) (<-chan Change, error)
}
