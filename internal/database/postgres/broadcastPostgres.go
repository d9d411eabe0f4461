package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

type broadcastRepository struct {
	db *sql.DB
}

func NewBroadcastRepository(db *sql.DB) BroadcastRepository {
	return &broadcastRepository{db: db}
}

func (r *broadcastRepository) Create(ctx context.Context, event *entity.BroadcastEvent) error {
	recipients, err := json.Marshal(event.Recipients)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}

	query := `
		INSERT INTO broadcasts (id, title, scheduled_at, dial_number, access_code, language,
			audience, audience_value, recipients, creator_id, creator_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, NULLIF($11, ''), $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.ScheduledAt,
		event.DialNumber,
		event.AccessCode,
		event.Language,
		event.Audience,
		event.AudienceValue,
		recipients,
		event.CreatorID,
		event.CreatorToken,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create broadcast: %w", err)
	}
	return nil
}

func (r *broadcastRepository) GetByID(ctx context.Context, id string) (*entity.BroadcastEvent, error) {
	query := `
		SELECT id, title, scheduled_at, dial_number, access_code, language,
			COALESCE(audience, ''), COALESCE(audience_value, ''), recipients,
			creator_id, COALESCE(creator_token, ''), created_at
		FROM broadcasts
		WHERE id = $1
	`

	var (
		e          entity.BroadcastEvent
		recipients []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID,
		&e.Title,
		&e.ScheduledAt,
		&e.DialNumber,
		&e.AccessCode,
		&e.Language,
		&e.Audience,
		&e.AudienceValue,
		&recipients,
		&e.CreatorID,
		&e.CreatorToken,
		&e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrBroadcastNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast %s: %w", id, err)
	}

	if err := json.Unmarshal(recipients, &e.Recipients); err != nil {
		return nil, fmt.Errorf("failed to decode recipients: %w", err)
	}
	return &e, nil
}
