package domain

import (
	"context"
	"time"
)

// InvitationStatus is the lifecycle state of an invitation. PENDING is the
// only state with outgoing transitions.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "PENDING"
	InvitationAccepted  InvitationStatus = "ACCEPTED"
	InvitationDeclined  InvitationStatus = "DECLINED"
	InvitationCancelled InvitationStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s InvitationStatus) Terminal() bool { return s != InvitationPending }

// Invitation is a time-boxed offer of a seat.
// swagger:model Invitation
type Invitation struct {
	ID            string           `json:"id"`
	EventID       string           `json:"event_id"`
	UID           string           `json:"uid"`
	Status        InvitationStatus `json:"status"`
	IssuedAt      time.Time        `json:"issued_at"`
	Deadline      time.Time        `json:"deadline,omitzero"`
	RespondedAt   *time.Time       `json:"responded_at,omitempty"`
	IsReplacement bool             `json:"is_replacement"`
}

// Expired reports whether a pending invitation is past its deadline at now.
func (i *Invitation) Expired(now time.Time) bool {
	return i.Status == InvitationPending && !i.Deadline.IsZero() && i.Deadline.Before(now)
}

// AdmittedEntry is a confirmed seat. It exists only alongside an ACCEPTED invitation.
type AdmittedEntry struct {
	EventID    string    `json:"event_id"`
	UID        string    `json:"uid"`
	AdmittedAt time.Time `json:"admitted_at"`
}

// CancellationReason records why an entrant lost eligibility.
type CancellationReason string

const (
	ReasonMissedDeadline   CancellationReason = "MISSED_DEADLINE"
	ReasonOrganizerRemoved CancellationReason = "ORGANIZER_REMOVED"
	ReasonDeclined         CancellationReason = "DECLINED"
)

// CancelledEntrant is permanently excluded from further draws for the event.
type CancelledEntrant struct {
	EventID     string             `json:"event_id"`
	UID         string             `json:"uid"`
	Reason      CancellationReason `json:"reason"`
	CancelledAt time.Time          `json:"cancelled_at"`
}

// InvitationRepository is the read side of invitations and seat sets.
type InvitationRepository interface {
	GetByID(ctx context.Context, id string) (*Invitation, error)
	ListByUser(ctx context.Context, uid string) ([]*Invitation, error)
	// ListExpiredPending returns PENDING invitations with deadline before now
	// for events that have not started.
	ListExpiredPending(ctx context.Context, now time.Time) ([]*Invitation, error)
	CountPending(ctx context.Context, eventID string) (int, error)
	IsAdmitted(ctx context.Context, eventID, uid string) (bool, error)
	CountAdmitted(ctx context.Context, eventID string) (int, error)
	ListSelectedUIDs(ctx context.Context, eventID string) ([]string, error)
	ListNonSelectedUIDs(ctx context.Context, eventID string) ([]string, error)
	ListCancelledUIDs(ctx context.Context, eventID string) ([]string, error)
}

// InvitationService is the entrant-facing invitation surface.
type InvitationService interface {
	// Accept and Decline match the invitation on (eventID, uid); an empty
	// eventID accepts any event.
	Accept(ctx context.Context, invitationID, eventID, uid string) (*Invitation, error)
	Decline(ctx context.Context, invitationID, eventID, uid string) (*Invitation, error)
	ListForUser(ctx context.Context, uid string) ([]*Invitation, error)
}
