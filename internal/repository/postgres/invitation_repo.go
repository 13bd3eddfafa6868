package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"admissionengine/internal/domain"
)

const invitationColumns = `id, event_id, uid, status, issued_at, deadline, responded_at, is_replacement`

type invitationRepository struct {
	DB *sql.DB
}

func NewInvitationRepository(db *sql.DB) domain.InvitationRepository {
	return &invitationRepository{
		DB: db,
	}
}

func scanInvitation(row rowScanner) (*domain.Invitation, error) {
	inv := &domain.Invitation{}
	var status string
	var deadline, responded sql.NullTime
	if err := row.Scan(&inv.ID, &inv.EventID, &inv.UID, &status, &inv.IssuedAt, &deadline, &responded, &inv.IsReplacement); err != nil {
		return nil, err
	}
	inv.Status = domain.InvitationStatus(status)
	inv.Deadline = fromNullTime(deadline)
	if responded.Valid {
		inv.RespondedAt = &responded.Time
	}
	return inv, nil
}

func scanInvitations(rows *sql.Rows) ([]*domain.Invitation, error) {
	defer rows.Close()
	out := make([]*domain.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, storeErr(rows.Err())
}

func (r *invitationRepository) GetByID(ctx context.Context, id string) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`
	inv, err := scanInvitation(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, storeErr(err)
	}
	return inv, nil
}

func (r *invitationRepository) ListByUser(ctx context.Context, uid string) ([]*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE uid = $1 ORDER BY issued_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, storeErr(err)
	}
	return scanInvitations(rows)
}

func (r *invitationRepository) ListExpiredPending(ctx context.Context, now time.Time) ([]*domain.Invitation, error) {
	query := `
		SELECT i.id, i.event_id, i.uid, i.status, i.issued_at, i.deadline, i.responded_at, i.is_replacement
		FROM invitations i
		JOIN events e ON e.id = i.event_id
		WHERE i.status = 'PENDING'
		  AND i.deadline < $1
		  AND (e.event_start IS NULL OR e.event_start > $1)
		ORDER BY i.event_id, i.deadline
	`
	rows, err := r.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, storeErr(err)
	}
	return scanInvitations(rows)
}

func (r *invitationRepository) CountPending(ctx context.Context, eventID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM invitations WHERE event_id = $1 AND status = 'PENDING'`, eventID)
}

func (r *invitationRepository) IsAdmitted(ctx context.Context, eventID, uid string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM admitted_entries WHERE event_id = $1 AND uid = $2)`,
		eventID, uid).Scan(&exists)
	if err != nil {
		return false, storeErr(err)
	}
	return exists, nil
}

func (r *invitationRepository) CountAdmitted(ctx context.Context, eventID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM admitted_entries WHERE event_id = $1`, eventID)
}

func (r *invitationRepository) ListSelectedUIDs(ctx context.Context, eventID string) ([]string, error) {
	return queryUIDs(ctx, r.DB, `SELECT uid FROM selected_entrants WHERE event_id = $1 ORDER BY uid`, eventID)
}

func (r *invitationRepository) ListNonSelectedUIDs(ctx context.Context, eventID string) ([]string, error) {
	return queryUIDs(ctx, r.DB, `SELECT uid FROM non_selected_entrants WHERE event_id = $1 ORDER BY uid`, eventID)
}

func (r *invitationRepository) ListCancelledUIDs(ctx context.Context, eventID string) ([]string, error) {
	return queryUIDs(ctx, r.DB, `SELECT uid FROM cancelled_entrants WHERE event_id = $1 ORDER BY uid`, eventID)
}

func (r *invitationRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}
