package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"admissionengine/internal/domain"
)

type admissionStore struct {
	DB *sql.DB
}

// NewAdmissionStore returns the transactional lifecycle store.
func NewAdmissionStore(db *sql.DB) domain.AdmissionStore {
	return &admissionStore{
		DB: db,
	}
}

func insertInvitation(ctx context.Context, tx *sql.Tx, inv *domain.Invitation) error {
	query := `
		INSERT INTO invitations (id, event_id, uid, status, issued_at, deadline, is_replacement)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query,
		inv.ID, inv.EventID, inv.UID, string(inv.Status), inv.IssuedAt, toNullTime(inv.Deadline), inv.IsReplacement)
	return err
}

func insertSelected(ctx context.Context, tx *sql.Tx, eventID, uid string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO selected_entrants (event_id, uid, selected_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, uid) DO NOTHING
	`, eventID, uid, at)
	return err
}

func invitationUIDs(invs []*domain.Invitation) []string {
	uids := make([]string, len(invs))
	for i, inv := range invs {
		uids[i] = inv.UID
	}
	return uids
}

func insertNotificationRequest(ctx context.Context, tx *sql.Tx, req *domain.NotificationRequest) error {
	if req == nil {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notification_requests (id, event_id, recipients, group_type, title, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, req.ID, req.EventID, pq.Array(req.Recipients), string(req.GroupType), req.Title, req.Message, req.CreatedAt)
	return err
}

func (s *admissionStore) CommitSelection(ctx context.Context, eventID string, invitations []*domain.Invitation, nonSelected []string, notice *domain.NotificationRequest, now time.Time) error {
	return withTx(ctx, s.DB, func(tx *sql.Tx) error {
		latch := `
			UPDATE events
			SET selection_processed = TRUE,
				selection_notification_sent = TRUE,
				waitlist_count = GREATEST(waitlist_count - $2, 0),
				updated_at = $3
			WHERE id = $1 AND selection_processed = FALSE
		`
		res, err := tx.ExecContext(ctx, latch, eventID, len(invitations), now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrAlreadyProcessed
		}
		for _, inv := range invitations {
			if err := insertInvitation(ctx, tx, inv); err != nil {
				return err
			}
			if err := insertSelected(ctx, tx, eventID, inv.UID, now); err != nil {
				return err
			}
		}
		if len(invitations) > 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM waitlist_entries WHERE event_id = $1 AND uid = ANY($2)`,
				eventID, pq.Array(invitationUIDs(invitations))); err != nil {
				return err
			}
		}
		if len(nonSelected) > 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO non_selected_entrants (event_id, uid, tagged_at)
				SELECT $1, unnest($2::text[]), $3
				ON CONFLICT (event_id, uid) DO NOTHING
			`, eventID, pq.Array(nonSelected), now); err != nil {
				return err
			}
		}
		return insertNotificationRequest(ctx, tx, notice)
	})
}

// respond moves a PENDING invitation to status. When no row matched it
// reports why: missing, already terminal, or past its deadline.
func respond(ctx context.Context, tx *sql.Tx, invitationID string, status domain.InvitationStatus, now time.Time, enforceDeadline bool) (*domain.Invitation, error) {
	query := `
		UPDATE invitations
		SET status = $2, responded_at = $3
		WHERE id = $1 AND status = 'PENDING'
		  AND ($4 = FALSE OR deadline IS NULL OR deadline >= $3)
		RETURNING ` + invitationColumns
	inv, err := scanInvitation(tx.QueryRowContext(ctx, query, invitationID, string(status), now, enforceDeadline))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM invitations WHERE id = $1`, invitationID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	if domain.InvitationStatus(current) == domain.InvitationPending {
		return nil, domain.ErrDeadlinePassed
	}
	return nil, domain.ErrInvalidState
}

func (s *admissionStore) Accept(ctx context.Context, invitationID string, now time.Time) (*domain.Invitation, error) {
	var accepted *domain.Invitation
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		inv, err := respond(ctx, tx, invitationID, domain.InvitationAccepted, now, true)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO admitted_entries (event_id, uid, admitted_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (event_id, uid) DO NOTHING
		`, inv.EventID, inv.UID, now); err != nil {
			return err
		}
		accepted = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

func (s *admissionStore) Decline(ctx context.Context, invitationID string, now time.Time) (*domain.Invitation, error) {
	var declined *domain.Invitation
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		inv, err := respond(ctx, tx, invitationID, domain.InvitationDeclined, now, false)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM selected_entrants WHERE event_id = $1 AND uid = $2`,
			inv.EventID, inv.UID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cancelled_entrants (event_id, uid, reason, cancelled_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (event_id, uid) DO NOTHING
		`, inv.EventID, inv.UID, string(domain.ReasonDeclined), now); err != nil {
			return err
		}
		declined = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return declined, nil
}

func (s *admissionStore) ExpirePending(ctx context.Context, eventID string, now time.Time) ([]*domain.Invitation, error) {
	var expired []*domain.Invitation
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		query := `
			UPDATE invitations
			SET status = 'CANCELLED'
			WHERE event_id = $1 AND status = 'PENDING' AND deadline < $2
			RETURNING ` + invitationColumns
		rows, err := tx.QueryContext(ctx, query, eventID, now)
		if err != nil {
			return err
		}
		invs, err := scanInvitations(rows)
		if err != nil {
			return err
		}
		if len(invs) == 0 {
			return nil
		}
		uids := pq.Array(invitationUIDs(invs))
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cancelled_entrants (event_id, uid, reason, cancelled_at)
			SELECT $1, unnest($2::text[]), $3, $4
			ON CONFLICT (event_id, uid) DO NOTHING
		`, eventID, uids, string(domain.ReasonMissedDeadline), now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM selected_entrants WHERE event_id = $1 AND uid = ANY($2)`,
			eventID, uids); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE events
			SET deadline_notification_sent = TRUE,
				replacements_owed = replacements_owed + $3,
				updated_at = $2
			WHERE id = $1
		`, eventID, now, len(invs)); err != nil {
			return err
		}
		expired = invs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *admissionStore) IssueReplacements(ctx context.Context, eventID string, invitations []*domain.Invitation, settled int, notice *domain.NotificationRequest) error {
	if len(invitations) == 0 {
		if settled <= 0 {
			return nil
		}
		_, err := s.DB.ExecContext(ctx,
			`UPDATE events SET replacements_owed = GREATEST(replacements_owed - $2, 0), updated_at = now() WHERE id = $1`,
			eventID, settled)
		return storeErr(err)
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		// The row lock serializes concurrent draws for the same event.
		var capacity, selected int
		err := tx.QueryRowContext(ctx, `SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&capacity)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrEventNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM selected_entrants WHERE event_id = $1`, eventID).Scan(&selected); err != nil {
			return err
		}
		if selected+len(invitations) > capacity {
			return domain.ErrAlreadyProcessed
		}

		for _, inv := range invitations {
			if err := insertInvitation(ctx, tx, inv); err != nil {
				return err
			}
			if err := insertSelected(ctx, tx, eventID, inv.UID, inv.IssuedAt); err != nil {
				return err
			}
		}
		uids := pq.Array(invitationUIDs(invitations))
		res, err := tx.ExecContext(ctx,
			`DELETE FROM waitlist_entries WHERE event_id = $1 AND uid = ANY($2)`,
			eventID, uids)
		if err != nil {
			return err
		}
		moved, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM non_selected_entrants WHERE event_id = $1 AND uid = ANY($2)`,
			eventID, uids); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE events
			SET waitlist_count = GREATEST(waitlist_count - $2, 0),
				replacements_owed = GREATEST(replacements_owed - $3, 0),
				updated_at = now()
			WHERE id = $1
		`, eventID, moved, settled); err != nil {
			return err
		}
		return insertNotificationRequest(ctx, tx, notice)
	})
	if isUniqueViolation(err) {
		return domain.ErrAlreadyProcessed
	}
	return err
}

func (s *admissionStore) CommitSorry(ctx context.Context, eventID string, notice *domain.NotificationRequest, now time.Time) (bool, error) {
	won := false
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE events
			SET sorry_notification_sent = TRUE, updated_at = $2
			WHERE id = $1 AND sorry_notification_sent = FALSE
		`, eventID, now)
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
		won = true
		return insertNotificationRequest(ctx, tx, notice)
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func (s *admissionStore) RemoveEntrant(ctx context.Context, eventID, uid string, reason domain.CancellationReason, now time.Time) (int, error) {
	cancelled := 0
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		var admitted bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM admitted_entries WHERE event_id = $1 AND uid = $2)`,
			eventID, uid).Scan(&admitted); err != nil {
			return err
		}
		if admitted {
			return domain.ErrInvalidState
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE invitations SET status = 'CANCELLED', responded_at = $3
			WHERE event_id = $1 AND uid = $2 AND status = 'PENDING'
		`, eventID, uid, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		cancelled = int(n)
		touched := n

		res, err = tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE event_id = $1 AND uid = $2`, eventID, uid)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		if n > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE events SET waitlist_count = GREATEST(waitlist_count - 1, 0), updated_at = $2 WHERE id = $1`,
				eventID, now); err != nil {
				return err
			}
		}
		touched += n

		res, err = tx.ExecContext(ctx, `DELETE FROM selected_entrants WHERE event_id = $1 AND uid = $2`, eventID, uid)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		touched += n
		if touched == 0 {
			return domain.ErrEntrantNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM non_selected_entrants WHERE event_id = $1 AND uid = $2`, eventID, uid); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cancelled_entrants (event_id, uid, reason, cancelled_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (event_id, uid) DO NOTHING
		`, eventID, uid, string(reason), now)
		return err
	})
	if err != nil {
		return 0, err
	}
	return cancelled, nil
}
