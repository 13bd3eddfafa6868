package postgres

import (
	"context"
	"database/sql"

	"admissionengine/internal/domain"
)

type waitlistRepository struct {
	DB *sql.DB
}

func NewWaitlistRepository(db *sql.DB) domain.WaitlistRepository {
	return &waitlistRepository{
		DB: db,
	}
}

const waitlistExistsQuery = `SELECT EXISTS (SELECT 1 FROM waitlist_entries WHERE event_id = $1 AND uid = $2)`

func (r *waitlistRepository) AddIfBelowCapacity(ctx context.Context, entry *domain.WaitlistEntry, capacity int) (bool, error) {
	created := false
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, waitlistExistsQuery, entry.EventID, entry.UID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		insert := `
			INSERT INTO waitlist_entries (event_id, uid, display_name, email, photo_url, joined_at)
			SELECT $1, $2, $3, $4, $5, $6
			WHERE (SELECT COUNT(*) FROM waitlist_entries WHERE event_id = $1) < $7
			ON CONFLICT (event_id, uid) DO NOTHING
		`
		res, err := tx.ExecContext(ctx, insert,
			entry.EventID, entry.UID, entry.DisplayName, entry.Email, entry.PhotoURL, entry.JoinedAt, capacity)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Either the waitlist is full or a concurrent join for the same uid won.
			if err := tx.QueryRowContext(ctx, waitlistExistsQuery, entry.EventID, entry.UID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}
			return domain.ErrCapacityReached
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE events SET waitlist_count = waitlist_count + 1, updated_at = now() WHERE id = $1`,
			entry.EventID); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *waitlistRepository) Remove(ctx context.Context, eventID, uid string) (bool, error) {
	removed := false
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE event_id = $1 AND uid = $2`, eventID, uid)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM non_selected_entrants WHERE event_id = $1 AND uid = $2`, eventID, uid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE events SET waitlist_count = GREATEST(waitlist_count - 1, 0), updated_at = now() WHERE id = $1`,
			eventID); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (r *waitlistRepository) Exists(ctx context.Context, eventID, uid string) (bool, error) {
	var exists bool
	if err := r.DB.QueryRowContext(ctx, waitlistExistsQuery, eventID, uid).Scan(&exists); err != nil {
		return false, storeErr(err)
	}
	return exists, nil
}

func (r *waitlistRepository) Count(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM waitlist_entries WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func (r *waitlistRepository) ListUIDs(ctx context.Context, eventID string) ([]string, error) {
	return queryUIDs(ctx, r.DB, `SELECT uid FROM waitlist_entries WHERE event_id = $1 ORDER BY joined_at, uid`, eventID)
}

func (r *waitlistRepository) List(ctx context.Context, eventID string, params domain.PaginationParams) ([]*domain.WaitlistEntry, int, error) {
	total, err := r.Count(ctx, eventID)
	if err != nil {
		return nil, 0, err
	}
	query := `
		SELECT event_id, uid, display_name, email, photo_url, joined_at
		FROM waitlist_entries
		WHERE event_id = $1
		ORDER BY joined_at, uid
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, storeErr(err)
	}
	defer rows.Close()
	entries := make([]*domain.WaitlistEntry, 0)
	for rows.Next() {
		e := &domain.WaitlistEntry{}
		if err := rows.Scan(&e.EventID, &e.UID, &e.DisplayName, &e.Email, &e.PhotoURL, &e.JoinedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, storeErr(rows.Err())
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryUIDs(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	uids := make([]string, 0)
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		uids = append(uids, uid)
	}
	return uids, storeErr(rows.Err())
}
