package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
)

type NotificationType string

const (
	NotificationAction  NotificationType = "ACTION_REMINDER"
	NotificationHeadsUp NotificationType = "HEADS_UP"
	NotificationEvening NotificationType = "EVENING_REMINDER"
	NotificationTenMin  NotificationType = "TEN_MIN_REMINDER"
)

type ScheduledNotification struct {
	ID           string           `json:"id" db:"id"`
	RecipientID  string           `json:"recipient_id" db:"recipient_id"`
	Title        string           `json:"title" db:"title"`
	Body         string           `json:"body" db:"body"`
	ScheduledFor time.Time        `json:"scheduled_for" db:"scheduled_for"`
	Type         NotificationType `json:"type" db:"type"`
	EventID      string           `json:"event_id,omitempty" db:"event_id"`
	Sent         bool             `json:"sent" db:"sent"`
	SentAt       *time.Time       `json:"sent_at,omitempty" db:"sent_at"`
	TokenFound   *bool            `json:"token_found,omitempty" db:"token_found"`
	RetryCount   int              `json:"retry_count" db:"retry_count"`
	Error        string           `json:"error,omitempty" db:"error"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

// NotificationID is derived only from kind, anchor date and recipient, so a
// re-run for the same day overwrites the earlier record.
func NotificationID(kind NotificationType, anchor dates.Date, recipientID string) string {
	return fmt.Sprintf("%s_%s_%s", strings.ToLower(string(kind)), anchor, recipientID)
}

// EventNotificationID keys reminders that belong to a broadcast event.
func EventNotificationID(kind NotificationType, eventID, recipientID string) string {
	return fmt.Sprintf("%s_%s_%s", strings.ToLower(string(kind)), eventID, recipientID)
}
