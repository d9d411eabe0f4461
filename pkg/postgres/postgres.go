package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kodanda10/iConnect-sub000/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"dbname": cfg.DBName,
	}).Info("connected to PostgreSQL")
	return db, nil
}

// migrations are idempotent and applied in order on every start.
var migrations = []string{
	// dob and anniversary keep the raw stored form; the *_month/*_day
	// columns are derived on write and NULL when the source is unusable
	`CREATE TABLE IF NOT EXISTS persons (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		mobile VARCHAR(32) NOT NULL DEFAULT '',
		dob TEXT,
		anniversary TEXT,
		ward VARCHAR(100) NOT NULL DEFAULT '',
		block VARCHAR(100) NOT NULL DEFAULT '',
		gram_panchayat VARCHAR(100) NOT NULL DEFAULT '',
		dob_month SMALLINT,
		dob_day SMALLINT,
		anniversary_month SMALLINT,
		anniversary_day SMALLINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id VARCHAR(64) PRIMARY KEY,
		person_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		mobile VARCHAR(32) NOT NULL DEFAULT '',
		ward VARCHAR(100) NOT NULL DEFAULT '',
		block VARCHAR(100) NOT NULL DEFAULT '',
		gram_panchayat VARCHAR(100) NOT NULL DEFAULT '',
		type VARCHAR(20) NOT NULL,
		due_date TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		action_taken VARCHAR(50),
		completed_by VARCHAR(64),
		call_sent BOOLEAN NOT NULL DEFAULT FALSE,
		sms_sent BOOLEAN NOT NULL DEFAULT FALSE,
		whatsapp_sent BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS scheduled_notifications (
		id VARCHAR(200) PRIMARY KEY,
		recipient_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		body TEXT NOT NULL,
		scheduled_for TIMESTAMPTZ NOT NULL,
		type VARCHAR(30) NOT NULL,
		event_id VARCHAR(64),
		sent BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at TIMESTAMPTZ,
		token_found BOOLEAN,
		retry_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		id VARCHAR(64) PRIMARY KEY,
		recipient_id VARCHAR(64),
		alerts JSONB NOT NULL DEFAULT '{}',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		mobile VARCHAR(32) NOT NULL DEFAULT '',
		role VARCHAR(20) NOT NULL,
		device_token TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS broadcasts (
		id VARCHAR(64) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		scheduled_at TIMESTAMPTZ NOT NULL,
		dial_number VARCHAR(32) NOT NULL DEFAULT '',
		access_code VARCHAR(32) NOT NULL DEFAULT '',
		language VARCHAR(20) NOT NULL,
		audience VARCHAR(20),
		audience_value VARCHAR(100),
		recipients JSONB NOT NULL DEFAULT '[]',
		creator_id VARCHAR(64) NOT NULL,
		creator_token TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// Indexes
	`CREATE INDEX IF NOT EXISTS idx_persons_dob_md ON persons(dob_month, dob_day)`,
	`CREATE INDEX IF NOT EXISTS idx_persons_anniversary_md ON persons(anniversary_month, anniversary_day)`,
	`CREATE INDEX IF NOT EXISTS idx_persons_block ON persons(block)`,
	`CREATE INDEX IF NOT EXISTS idx_persons_gram_panchayat ON persons(gram_panchayat)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_due_prefix ON tasks((LEFT(due_date, 10)))`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_due ON scheduled_notifications(scheduled_for) WHERE sent = false`,
	`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role, created_at)`,
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", i, err)
		}
	}

	logrus.WithField("count", len(migrations)).Info("database migrations completed")
	return nil
}
