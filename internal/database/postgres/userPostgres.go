package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `
		SELECT id, name, email, mobile, role, COALESCE(device_token, ''), created_at
		FROM users
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

// FindByRole returns the oldest account holding role.
func (r *userRepository) FindByRole(ctx context.Context, role string) (*entity.User, error) {
	query := `
		SELECT id, name, email, mobile, role, COALESCE(device_token, ''), created_at
		FROM users
		WHERE role = $1
		ORDER BY created_at ASC
		LIMIT 1
	`
	return r.getOne(ctx, query, role)
}

// GetDeviceToken returns the current push token, or "" when the user has none.
func (r *userRepository) GetDeviceToken(ctx context.Context, id string) (string, error) {
	query := `SELECT COALESCE(device_token, '') FROM users WHERE id = $1`

	var token string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", entity.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get device token for %s: %w", id, err)
	}
	return token, nil
}

func (r *userRepository) getOne(ctx context.Context, query string, arg string) (*entity.User, error) {
	var u entity.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Mobile,
		&u.Role,
		&u.DeviceToken,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
