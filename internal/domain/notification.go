package domain

import (
	"context"
	"time"
)

// GroupType classifies a notification's audience.
type GroupType string

const (
	GroupWaitlist      GroupType = "waitlist"
	GroupSpotAvailable GroupType = "spotAvailable"
	GroupSelected      GroupType = "selected"
	GroupSelection     GroupType = "selection"
	GroupReplacement   GroupType = "replacement"
	GroupNonSelected   GroupType = "nonSelected"
	GroupDeadline      GroupType = "deadline"
	GroupSorry         GroupType = "sorry"
	GroupCancelled     GroupType = "cancelled"
	GroupGeneral       GroupType = "general"
)

// Invited reports whether the group concerns entrants who were offered a seat.
func (g GroupType) Invited() bool {
	return g == GroupSelected || g == GroupSelection
}

// NotificationRequest is a delivery job consumed by the dispatcher.
// swagger:model NotificationRequest
type NotificationRequest struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	Recipients   []string   `json:"recipients"`
	GroupType    GroupType  `json:"group_type"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	CreatedAt    time.Time  `json:"created_at"`
	Processed    bool       `json:"processed"`
	SentCount    int        `json:"sent_count"`
	FailureCount int        `json:"failure_count"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// Notice is what a lifecycle component asks to tell a set of entrants.
type Notice struct {
	Event *Event
	Group GroupType
	// Invited routes the preference check to prefInvited regardless of Group.
	Invited    bool
	Recipients []string
	// Data is passed to the message templates alongside the event fields.
	Data map[string]any
}

// NotificationRequestRepository stores delivery jobs.
type NotificationRequestRepository interface {
	Create(ctx context.Context, req *NotificationRequest) error
	// ExistsSince reports whether a request for (eventID, title) was created at or after since.
	ExistsSince(ctx context.Context, eventID, title string, since time.Time) (bool, error)
	// ClaimUnprocessed leases up to limit unprocessed requests to this caller.
	// Requests claimed before staleBefore are considered abandoned and reclaimed.
	ClaimUnprocessed(ctx context.Context, now, staleBefore time.Time, limit int) ([]*NotificationRequest, error)
	MarkProcessed(ctx context.Context, id string, sent, failed int, at time.Time) error
}

// Deduper guards the (eventID, title) dedup window. Acquire returns false
// when an identical notification was recorded inside the window. Release
// drops a claim whose request was never stored.
type Deduper interface {
	Acquire(ctx context.Context, eventID, title string) (bool, error)
	Release(ctx context.Context, eventID, title string) error
}

// PreferenceFilter drops recipients who opted out of a group.
type PreferenceFilter interface {
	Filter(ctx context.Context, uids []string, group GroupType, invited bool) []string
}

// Notifier turns notices into notification requests. A nil request with a
// nil error means the notice was filtered out or deduplicated.
type Notifier interface {
	// Prepare filters, deduplicates and renders without persisting, for
	// callers that store the request inside their own transaction.
	Prepare(ctx context.Context, notice Notice) (*NotificationRequest, error)
	// Notify is Prepare followed by a store write.
	Notify(ctx context.Context, notice Notice) (*NotificationRequest, error)
	// Release gives back the dedup claim of a prepared request that was not
	// committed. A nil req is ignored.
	Release(ctx context.Context, req *NotificationRequest)
}

// Sender delivers one request to one recipient.
type Sender interface {
	Name() string
	Send(ctx context.Context, to *Profile, req *NotificationRequest) error
}
