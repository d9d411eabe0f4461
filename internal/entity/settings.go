package entity

import "time"

const (
	DefaultHeadsUpTemplate = "Tomorrow's Celebrations! 5 constituents have birthdays tomorrow. Tap to view the list and prepare."
	DefaultActionTemplate  = "Action Required! Send wishes to 5 people celebrating today. Don't miss out!"
)

// AlertSettings are the user-editable switches and texts of the two daily alerts.
type AlertSettings struct {
	HeadsUpEnabled      bool   `json:"heads_up_enabled"`
	HeadsUpTemplate     string `json:"heads_up_template"`
	IncludeNamesHeadsUp bool   `json:"include_names_heads_up"`
	ActionEnabled       bool   `json:"action_enabled"`
	ActionTemplate      string `json:"action_template"`
	IncludeNamesAction  bool   `json:"include_names_action"`
}

type Settings struct {
	ID          string        `json:"id" db:"id"`
	RecipientID string        `json:"recipient_id,omitempty" db:"recipient_id"`
	Alerts      AlertSettings `json:"alerts" db:"alerts"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		HeadsUpEnabled:  true,
		HeadsUpTemplate: DefaultHeadsUpTemplate,
		ActionEnabled:   true,
		ActionTemplate:  DefaultActionTemplate,
	}
}
