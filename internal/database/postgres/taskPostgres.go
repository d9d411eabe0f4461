package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

// GetByDueRange widens the window by one day on each side: older records keep
// a full timestamp in due_date, whose civil date can differ from its prefix.
func (r *taskRepository) GetByDueRange(ctx context.Context, start, end dates.Date) ([]*entity.Task, error) {
	query := `
		SELECT id, person_id, name, mobile, ward, block, gram_panchayat, type, due_date, status,
			COALESCE(action_taken, ''), COALESCE(completed_by, ''),
			call_sent, sms_sent, whatsapp_sent, created_at
		FROM tasks
		WHERE LEFT(due_date, 10) BETWEEN $1 AND $2
	`

	rows, err := r.db.QueryContext(ctx, query, start.AddDays(-1).String(), end.AddDays(1).String())
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		var t entity.Task
		err := rows.Scan(
			&t.ID,
			&t.PersonID,
			&t.Name,
			&t.Mobile,
			&t.Ward,
			&t.Block,
			&t.GramPanchayat,
			&t.Type,
			&t.DueDate,
			&t.Status,
			&t.ActionTaken,
			&t.CompletedBy,
			&t.CallSent,
			&t.SMSSent,
			&t.WhatsAppSent,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// UpsertBatch writes tasks keyed by id in a single transaction.
func (r *taskRepository) UpsertBatch(ctx context.Context, tasks []*entity.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (id, person_id, name, mobile, ward, block, gram_panchayat, type, due_date,
			status, action_taken, completed_by, call_sent, sms_sent, whatsapp_sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			action_taken = EXCLUDED.action_taken,
			completed_by = EXCLUDED.completed_by,
			call_sent = EXCLUDED.call_sent,
			sms_sent = EXCLUDED.sms_sent,
			whatsapp_sent = EXCLUDED.whatsapp_sent
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare task insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		_, err := stmt.ExecContext(ctx,
			t.ID,
			t.PersonID,
			t.Name,
			t.Mobile,
			t.Ward,
			t.Block,
			t.GramPanchayat,
			t.Type,
			t.DueDate,
			t.Status,
			t.ActionTaken,
			t.CompletedBy,
			t.CallSent,
			t.SMSSent,
			t.WhatsAppSent,
			t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to write task %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tasks: %w", err)
	}
	return nil
}
