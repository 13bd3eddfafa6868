package domain

import (
	"context"
	"time"
)

// WaitlistEntry is an entrant's presence on an event's waitlist, with a
// denormalized profile snippet for organizer listings.
// swagger:model WaitlistEntry
type WaitlistEntry struct {
	EventID     string    `json:"event_id"`
	UID         string    `json:"uid"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// WaitlistRepository stores waitlist entries. Add and Remove keep the event's
// display counter in step within the same transaction.
type WaitlistRepository interface {
	// AddIfBelowCapacity inserts the entry only while the live count is below
	// capacity. created is false when the uid was already present;
	// ErrCapacityReached is returned when the conditional insert was refused.
	AddIfBelowCapacity(ctx context.Context, entry *WaitlistEntry, capacity int) (created bool, err error)
	// Remove deletes the entry and any non-selected tag. removed is false when absent.
	Remove(ctx context.Context, eventID, uid string) (removed bool, err error)
	Exists(ctx context.Context, eventID, uid string) (bool, error)
	Count(ctx context.Context, eventID string) (int, error)
	ListUIDs(ctx context.Context, eventID string) ([]string, error)
	List(ctx context.Context, eventID string, params PaginationParams) ([]*WaitlistEntry, int, error)
}

// WaitlistService is the entrant-facing waitlist surface.
type WaitlistService interface {
	// Join returns created=false on an idempotent re-join.
	Join(ctx context.Context, eventID, uid string) (created bool, err error)
	Leave(ctx context.Context, eventID, uid string) error
	IsJoined(ctx context.Context, eventID, uid string) (bool, error)
	List(ctx context.Context, eventID, organizerID string, params PaginationParams) ([]*WaitlistEntry, int, error)
}
