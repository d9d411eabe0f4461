package entity

import "time"

type AudienceType string

const (
	AudienceAll   AudienceType = "ALL"
	AudienceBlock AudienceType = "BLOCK"
	AudienceGP    AudienceType = "GP"
)

type Language string

const (
	LanguageHindi   Language = "HINDI"
	LanguageOdia    Language = "ODIA"
	LanguageEnglish Language = "ENGLISH"
)

// Recipient is a contact copied onto a broadcast event. Mobile may be empty.
type Recipient struct {
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
	Mobile   string `json:"mobile"`
}

// BroadcastEvent is a scheduled conference call announced to many contacts.
type BroadcastEvent struct {
	ID            string       `json:"id" db:"id"`
	Title         string       `json:"title" db:"title"`
	ScheduledAt   time.Time    `json:"scheduled_at" db:"scheduled_at"`
	DialNumber    string       `json:"dial_number" db:"dial_number"`
	AccessCode    string       `json:"access_code" db:"access_code"`
	Language      Language     `json:"language" db:"language"`
	Audience      AudienceType `json:"audience,omitempty" db:"audience"`
	AudienceValue string       `json:"audience_value,omitempty" db:"audience_value"`
	Recipients    []Recipient  `json:"recipients" db:"recipients"`
	CreatorID     string       `json:"creator_id" db:"creator_id"`
	CreatorToken  string       `json:"-" db:"creator_token"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

type DispatchMode string

const (
	DispatchDirect DispatchMode = "direct"
	DispatchQueued DispatchMode = "queued"
)

// BroadcastResult reports a fan-out. Queued counts recipients handed to the
// work queue. Partial is set when the time budget ran out before every direct
// batch was attempted.
type BroadcastResult struct {
	EventID   string       `json:"event_id"`
	Mode      DispatchMode `json:"mode"`
	Total     int          `json:"total"`
	Queued    int          `json:"queued"`
	Sent      int          `json:"sent"`
	Failed    int          `json:"failed"`
	Remaining int          `json:"remaining"`
	Batches   int          `json:"batches"`
	Partial   bool         `json:"partial"`
}

// PollResult reports one pass of the due-notification poller.
type PollResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	NoToken   int `json:"no_token"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
}
