package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, id string) (*entity.Settings, error) {
	query := `SELECT id, COALESCE(recipient_id, ''), alerts, updated_at FROM settings WHERE id = $1`

	var (
		s      entity.Settings
		alerts []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.RecipientID, &alerts, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings %s: %w", id, err)
	}

	// unknown or missing keys keep their defaults
	s.Alerts = entity.DefaultAlertSettings()
	if len(alerts) > 0 {
		if err := json.Unmarshal(alerts, &s.Alerts); err != nil {
			return nil, fmt.Errorf("failed to decode alert settings: %w", err)
		}
	}
	return &s, nil
}

func (r *settingsRepository) Save(ctx context.Context, settings *entity.Settings) error {
	alerts, err := json.Marshal(settings.Alerts)
	if err != nil {
		return fmt.Errorf("failed to encode alert settings: %w", err)
	}

	query := `
		INSERT INTO settings (id, recipient_id, alerts, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			recipient_id = EXCLUDED.recipient_id,
			alerts = EXCLUDED.alerts,
			updated_at = EXCLUDED.updated_at
	`

	settings.UpdatedAt = time.Now()
	if _, err := r.db.ExecContext(ctx, query, settings.ID, settings.RecipientID, alerts, settings.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save settings %s: %w", settings.ID, err)
	}
	return nil
}
