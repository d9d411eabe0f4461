package entity

import (
	"fmt"
	"time"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
)

type TaskType string

const (
	TaskBirthday    TaskType = "BIRTHDAY"
	TaskAnniversary TaskType = "ANNIVERSARY"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskCompleted TaskStatus = "COMPLETED"
)

// Task is a follow-up for one occurrence of a person's event. Name, mobile and
// locality are copied from the person when the task is created and are not
// kept in sync afterwards.
type Task struct {
	ID            string      `json:"id" db:"id"`
	PersonID      string      `json:"person_id" db:"person_id"`
	Name          string      `json:"name" db:"name"`
	Mobile        string      `json:"mobile" db:"mobile"`
	Ward          string      `json:"ward" db:"ward"`
	Block         string      `json:"block" db:"block"`
	GramPanchayat string      `json:"gram_panchayat" db:"gram_panchayat"`
	Type          TaskType    `json:"type" db:"type"`
	DueDate       dates.Value `json:"due_date" db:"due_date"`
	Status        TaskStatus  `json:"status" db:"status"`
	ActionTaken   string      `json:"action_taken,omitempty" db:"action_taken"`
	CompletedBy   string      `json:"completed_by,omitempty" db:"completed_by"`
	CallSent      bool        `json:"call_sent" db:"call_sent"`
	SMSSent       bool        `json:"sms_sent" db:"sms_sent"`
	WhatsAppSent  bool        `json:"whatsapp_sent" db:"whatsapp_sent"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// TaskKey identifies one occurrence: person, event type and due date.
func TaskKey(personID string, typ TaskType, due dates.Date) string {
	return fmt.Sprintf("%s:%s:%s", personID, typ, due)
}

type DateRange struct {
	Start dates.Date `json:"start"`
	End   dates.Date `json:"end"`
}

// RecordError describes a roster record that was skipped during a scan.
type RecordError struct {
	PersonID string `json:"person_id"`
	Field    string `json:"field"`
	Value    string `json:"value"`
	Reason   string `json:"reason"`
}

// GenerationResult is the outcome of one task scan.
type GenerationResult struct {
	NewTasks          []*Task       `json:"new_tasks"`
	Count             int           `json:"count"`
	SkippedDuplicates int           `json:"skipped_duplicates"`
	BirthdayCount     int           `json:"birthday_count"`
	AnniversaryCount  int           `json:"anniversary_count"`
	DateRange         DateRange     `json:"date_range"`
	Errors            []RecordError `json:"errors"`
}
