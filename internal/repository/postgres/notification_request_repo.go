package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"admissionengine/internal/domain"
)

type notificationRequestRepository struct {
	DB *sql.DB
}

func NewNotificationRequestRepository(db *sql.DB) domain.NotificationRequestRepository {
	return &notificationRequestRepository{
		DB: db,
	}
}

func (r *notificationRequestRepository) Create(ctx context.Context, req *domain.NotificationRequest) error {
	query := `
		INSERT INTO notification_requests (id, event_id, recipients, group_type, title, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.DB.ExecContext(ctx, query,
		req.ID, req.EventID, pq.Array(req.Recipients), string(req.GroupType), req.Title, req.Message, req.CreatedAt)
	return storeErr(err)
}

func (r *notificationRequestRepository) ExistsSince(ctx context.Context, eventID, title string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_requests
			WHERE event_id = $1 AND title = $2 AND created_at >= $3
		)
	`
	var exists bool
	if err := r.DB.QueryRowContext(ctx, query, eventID, title, since).Scan(&exists); err != nil {
		return false, storeErr(err)
	}
	return exists, nil
}

func (r *notificationRequestRepository) ClaimUnprocessed(ctx context.Context, now, staleBefore time.Time, limit int) ([]*domain.NotificationRequest, error) {
	query := `
		UPDATE notification_requests
		SET claimed_at = $1
		WHERE id IN (
			SELECT id FROM notification_requests
			WHERE processed = FALSE AND (claimed_at IS NULL OR claimed_at < $2)
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_id, recipients, group_type, title, message, created_at
	`
	rows, err := r.DB.QueryContext(ctx, query, now, staleBefore, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()
	out := make([]*domain.NotificationRequest, 0)
	for rows.Next() {
		req := &domain.NotificationRequest{}
		var group string
		if err := rows.Scan(&req.ID, &req.EventID, pq.Array(&req.Recipients), &group, &req.Title, &req.Message, &req.CreatedAt); err != nil {
			return nil, err
		}
		req.GroupType = domain.GroupType(group)
		out = append(out, req)
	}
	return out, storeErr(rows.Err())
}

func (r *notificationRequestRepository) MarkProcessed(ctx context.Context, id string, sent, failed int, at time.Time) error {
	query := `
		UPDATE notification_requests
		SET processed = TRUE, sent_count = $2, failure_count = $3, processed_at = $4
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, query, id, sent, failed, at)
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
