package repository

import (
	"context"
	"time"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

type PersonRepository interface {
	// Upsert creates or overwrites a person and recomputes its month/day index.
	Upsert(ctx context.Context, person *entity.Person) error
	GetByID(ctx context.Context, id string) (*entity.Person, error)
	GetAll(ctx context.Context) ([]*entity.Person, error)

	// Indexed lookups
	GetByMonthDay(ctx context.Context, days []dates.MonthDay) ([]*entity.Person, error)
	GetByAudience(ctx context.Context, audience entity.AudienceType, value string) ([]*entity.Person, error)
}

type TaskRepository interface {
	// GetByDueRange returns tasks whose due date may fall in [start, end].
	GetByDueRange(ctx context.Context, start, end dates.Date) ([]*entity.Task, error)
	UpsertBatch(ctx context.Context, tasks []*entity.Task) error
}

type NotificationRepository interface {
	// UpsertBatch writes all notifications in one transaction.
	UpsertBatch(ctx context.Context, notifications []*entity.ScheduledNotification) error
	GetDue(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledNotification, error)

	// Delivery bookkeeping
	MarkSent(ctx context.Context, id string, sentAt time.Time, tokenFound bool, errMsg string) error
	IncrementRetry(ctx context.Context, id string, errMsg string) (int, error)
}

type SettingsRepository interface {
	Get(ctx context.Context, id string) (*entity.Settings, error)
	Save(ctx context.Context, settings *entity.Settings) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	FindByRole(ctx context.Context, role string) (*entity.User, error)
	GetDeviceToken(ctx context.Context, id string) (string, error)
}

type BroadcastRepository interface {
	Create(ctx context.Context, event *entity.BroadcastEvent) error
	GetByID(ctx context.Context, id string) (*entity.BroadcastEvent, error)
}
