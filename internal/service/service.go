package service

import (
	"context"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

// MessageSender is the outbound transport. Calls are best effort and may be
// issued concurrently.
type MessageSender interface {
	SendPush(ctx context.Context, token, title, body string) (string, error)
	SendSMS(ctx context.Context, mobile, message string) (bool, error)
}

// ScanService runs task generation against the store.
type ScanService interface {
	// RunDaily scans today and tomorrow, persists new tasks and schedules the daily alerts.
	RunDaily(ctx context.Context) (*DailyRunResult, error)
	// Backfill generates tasks for every day in [start, end].
	Backfill(ctx context.Context, start, end dates.Date) (*entity.GenerationResult, error)
}

type PersonService interface {
	SavePerson(ctx context.Context, req *SavePersonRequest) (*entity.Person, error)
	GetPerson(ctx context.Context, id string) (*entity.Person, error)
}

type BroadcastService interface {
	// CreateBroadcast stores the event; the fan-out is started with OnEventCreated.
	CreateBroadcast(ctx context.Context, req *CreateBroadcastRequest) (*entity.BroadcastEvent, error)
	OnEventCreated(ctx context.Context, event *entity.BroadcastEvent) (*entity.BroadcastResult, error)
	SendDirect(ctx context.Context, eventID string, mobiles []string, message string) (*entity.BroadcastResult, error)
}

type PushService interface {
	// ProcessDue sends one page of due notifications.
	ProcessDue(ctx context.Context) (*entity.PollResult, error)
}

type DailyRunResult struct {
	Date          dates.Date               `json:"date"`
	Tasks         *entity.GenerationResult `json:"tasks"`
	Notifications *ScheduleResult          `json:"notifications"`
	RosterSource  string                   `json:"roster_source"`
}
