package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// UpsertBatch is all-or-nothing. A rewrite replaces the content of an
// existing notification but keeps its delivery state.
func (r *notificationRepository) UpsertBatch(ctx context.Context, notifications []*entity.ScheduledNotification) error {
	if len(notifications) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scheduled_notifications (id, recipient_id, title, body, scheduled_for, type, event_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		ON CONFLICT (id) DO UPDATE SET
			recipient_id = EXCLUDED.recipient_id,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			scheduled_for = EXCLUDED.scheduled_for,
			type = EXCLUDED.type,
			event_id = EXCLUDED.event_id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare notification upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, n := range notifications {
		_, err := stmt.ExecContext(ctx,
			n.ID,
			n.RecipientID,
			n.Title,
			n.Body,
			n.ScheduledFor,
			n.Type,
			n.EventID,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to write notification %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notifications: %w", err)
	}
	return nil
}

// GetDue returns unsent notifications scheduled at or before now, oldest first.
func (r *notificationRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledNotification, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, recipient_id, title, body, scheduled_for, type, COALESCE(event_id, ''),
			sent, retry_count, COALESCE(error, ''), created_at
		FROM scheduled_notifications
		WHERE sent = false AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due notifications: %w", err)
	}
	defer rows.Close()

	var result []*entity.ScheduledNotification
	for rows.Next() {
		var n entity.ScheduledNotification
		err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.Title,
			&n.Body,
			&n.ScheduledFor,
			&n.Type,
			&n.EventID,
			&n.Sent,
			&n.RetryCount,
			&n.Error,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return result, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time, tokenFound bool, errMsg string) error {
	query := `
		UPDATE scheduled_notifications
		SET sent = true, sent_at = $2, token_found = $3, error = NULLIF($4, '')
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, sentAt, tokenFound, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s sent: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrNotificationNotFound
	}
	return nil
}

// IncrementRetry records a failed attempt and returns the new retry count.
func (r *notificationRepository) IncrementRetry(ctx context.Context, id string, errMsg string) (int, error) {
	query := `
		UPDATE scheduled_notifications
		SET retry_count = retry_count + 1, error = $2
		WHERE id = $1
		RETURNING retry_count
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, id, errMsg).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, entity.ErrNotificationNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment retry for %s: %w", id, err)
	}
	return count, nil
}
