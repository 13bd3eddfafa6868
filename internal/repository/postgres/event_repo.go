package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"admissionengine/internal/domain"
)

const eventColumns = `id, organizer_id, title, capacity, sample_size,
		registration_start, registration_end, deadline, event_start,
		waitlist_count, selection_processed, selection_notification_sent,
		deadline_notification_sent, sorry_notification_sent, replacements_owed,
		created_at, updated_at`

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	var regStart, regEnd, deadline, start sql.NullTime
	err := row.Scan(
		&e.ID, &e.OrganizerID, &e.Title, &e.Capacity, &e.SampleSize,
		&regStart, &regEnd, &deadline, &start,
		&e.WaitlistCount, &e.SelectionProcessed, &e.SelectionNotificationSent,
		&e.DeadlineNotificationSent, &e.SorryNotificationSent, &e.ReplacementsOwed,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.RegistrationStart = fromNullTime(regStart)
	e.RegistrationEnd = fromNullTime(regEnd)
	e.Deadline = fromNullTime(deadline)
	e.EventStart = fromNullTime(start)
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (organizer_id, title, capacity, sample_size,
			registration_start, registration_end, deadline, event_start, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		e.OrganizerID, e.Title, e.Capacity, e.SampleSize,
		toNullTime(e.RegistrationStart), toNullTime(e.RegistrationEnd),
		toNullTime(e.Deadline), toNullTime(e.EventStart),
		e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	return storeErr(err)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, storeErr(err)
	}
	return e, nil
}

func (r *eventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE organizer_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, organizerID)
}

func (r *eventRepository) ListActive(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE event_start IS NULL OR event_start > $1
		ORDER BY created_at`
	return r.list(ctx, query, now)
}

func (r *eventRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, storeErr(rows.Err())
}

func (r *eventRepository) SetWaitlistCount(ctx context.Context, id string, count int) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE events SET waitlist_count = $2, updated_at = now() WHERE id = $1`, id, count)
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}
