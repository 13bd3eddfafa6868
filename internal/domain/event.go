package domain

import (
	"context"
	"time"
)

// Event is an admission-controlled event. The four latch flags record
// one-time side effects and only ever move from false to true.
// ReplacementsOwed counts expired seats not yet handed to the replacement draw.
// swagger:model Event
type Event struct {
	ID                        string    `json:"id"`
	OrganizerID               string    `json:"organizer_id"`
	Title                     string    `json:"title"`
	Capacity                  int       `json:"capacity"`
	SampleSize                int       `json:"sample_size"`
	RegistrationStart         time.Time `json:"registration_start,omitzero"`
	RegistrationEnd           time.Time `json:"registration_end,omitzero"`
	Deadline                  time.Time `json:"deadline,omitzero"`
	EventStart                time.Time `json:"event_start,omitzero"`
	WaitlistCount             int       `json:"waitlist_count"`
	SelectionProcessed        bool      `json:"selection_processed"`
	SelectionNotificationSent bool      `json:"selection_notification_sent"`
	DeadlineNotificationSent  bool      `json:"deadline_notification_sent"`
	SorryNotificationSent     bool      `json:"sorry_notification_sent"`
	ReplacementsOwed          int       `json:"replacements_owed"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// NewEvent returns a new Event with the given fields. ID is set by the repository on create.
func NewEvent(organizerID, title string, capacity, sampleSize int, createdAt time.Time) *Event {
	return &Event{
		OrganizerID: organizerID,
		Title:       title,
		Capacity:    capacity,
		SampleSize:  sampleSize,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// Validate checks registrationStart < registrationEnd < deadline < eventStart,
// skipping any comparison where a side is unset.
func (e *Event) Validate() error {
	if e.Title == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if e.Capacity < 1 {
		return &ValidationError{Field: "capacity", Reason: "must be at least 1"}
	}
	if e.SampleSize < 0 {
		return &ValidationError{Field: "sample_size", Reason: "must not be negative"}
	}
	ordered := []struct {
		name string
		at   time.Time
	}{
		{"registration_start", e.RegistrationStart},
		{"registration_end", e.RegistrationEnd},
		{"deadline", e.Deadline},
		{"event_start", e.EventStart},
	}
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			a, b := ordered[i], ordered[j]
			if a.at.IsZero() || b.at.IsZero() {
				continue
			}
			if !a.at.Before(b.at) {
				return &ValidationError{Field: a.name, Reason: "must be before " + b.name}
			}
		}
	}
	return nil
}

// RegistrationOpen reports whether now lies in [RegistrationStart, RegistrationEnd].
func (e *Event) RegistrationOpen(now time.Time) bool {
	if !e.RegistrationStart.IsZero() && now.Before(e.RegistrationStart) {
		return false
	}
	if !e.RegistrationEnd.IsZero() && now.After(e.RegistrationEnd) {
		return false
	}
	return true
}

// Started reports whether the event start has passed. Unset means never.
func (e *Event) Started(now time.Time) bool {
	return !e.EventStart.IsZero() && !now.Before(e.EventStart)
}

// SelectionDue reports whether the lottery should run at now.
func (e *Event) SelectionDue(now time.Time) bool {
	if e.SelectionProcessed || e.RegistrationEnd.IsZero() {
		return false
	}
	return !now.Before(e.RegistrationEnd) && !e.Started(now)
}

// ValidationError describes a rejected field. It unwraps to ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

func (v *ValidationError) Error() string { return v.Field + " " + v.Reason }

func (v *ValidationError) Unwrap() error { return ErrInvalidInput }

// EventRepository defines the interface for event storage.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*Event, error)
	// ListActive returns events whose start is unset or after now.
	ListActive(ctx context.Context, now time.Time) ([]*Event, error)
	// SetWaitlistCount overwrites the display counter with a reconciled value.
	SetWaitlistCount(ctx context.Context, id string, count int) error
}

// EventService is the organizer-facing administration surface.
type EventService interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	ListEventsByOrganizer(ctx context.Context, organizerID string) ([]*Event, error)
	// RemoveEntrant cancels the entrant's pending invitation or waitlist entry
	// and refills the seat.
	RemoveEntrant(ctx context.Context, eventID, uid, organizerID string) error
}
