package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	repository "github.com/Kodanda10/iConnect-sub000/internal/database/postgres"
	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
	"github.com/Kodanda10/iConnect-sub000/pkg/redact"
)

const (
	actionTitle  = "Action Required"
	headsUpTitle = "Tomorrow's Celebrations"
)

// AlertSchedule configures when and for whom the daily alerts are written.
type AlertSchedule struct {
	Location      *time.Location
	ActionHour    int
	HeadsUpHour   int
	SettingsDocID string
	LeaderRole    string
}

// ScheduleResult describes one scheduling run.
type ScheduleResult struct {
	RecipientID string                          `json:"recipient_id,omitempty"`
	Today       DayDigest                       `json:"today"`
	Tomorrow    DayDigest                       `json:"tomorrow"`
	Scheduled   []*entity.ScheduledNotification `json:"scheduled"`
}

// NotificationScheduler writes the ACTION_REMINDER and HEADS_UP alerts for one
// civil day. Ids depend only on kind, date and recipient, so a re-run
// overwrites instead of duplicating.
type NotificationScheduler struct {
	settingsRepo     repository.SettingsRepository
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
	clock            dates.Clock
	cfg              AlertSchedule
}

func NewNotificationScheduler(
	settingsRepo repository.SettingsRepository,
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
	clock dates.Clock,
	cfg AlertSchedule,
) *NotificationScheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &NotificationScheduler{
		settingsRepo:     settingsRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		clock:            clock,
		cfg:              cfg,
	}
}

// ScheduleDaily counts today's and tomorrow's events in roster and upserts
// the enabled alerts in one batch. A missing recipient is logged and skipped.
func (s *NotificationScheduler) ScheduleDaily(ctx context.Context, roster []*entity.Person) (*ScheduleResult, error) {
	loc := s.cfg.Location
	today := dates.Today(s.clock, loc)
	tomorrow := today.AddDays(1)

	res := &ScheduleResult{
		Today:     digest(roster, today, "today", loc),
		Tomorrow:  digest(roster, tomorrow, "tomorrow", loc),
		Scheduled: []*entity.ScheduledNotification{},
	}

	settings, err := s.settingsRepo.Get(ctx, s.cfg.SettingsDocID)
	switch {
	case errors.Is(err, entity.ErrSettingsNotFound):
		logrus.WithField("settings_id", s.cfg.SettingsDocID).Warn("settings not found, using default alerts")
		settings = &entity.Settings{ID: s.cfg.SettingsDocID, Alerts: entity.DefaultAlertSettings()}
	case err != nil:
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	recipientID, err := s.resolveRecipient(ctx, settings)
	if errors.Is(err, entity.ErrNoRecipient) {
		logrus.WithField("role", s.cfg.LeaderRole).Warn("no notification recipient, skipping daily alerts")
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res.RecipientID = recipientID

	alerts := settings.Alerts
	if alerts.ActionEnabled && res.Today.Total() > 0 {
		res.Scheduled = append(res.Scheduled, &entity.ScheduledNotification{
			ID:           entity.NotificationID(entity.NotificationAction, today, recipientID),
			RecipientID:  recipientID,
			Title:        actionTitle,
			Body:         RenderAlertBody(alerts.ActionTemplate, res.Today, alerts.IncludeNamesAction),
			ScheduledFor: dates.At(today, s.cfg.ActionHour, 0, loc),
			Type:         entity.NotificationAction,
		})
	}
	if alerts.HeadsUpEnabled && res.Tomorrow.Total() > 0 {
		res.Scheduled = append(res.Scheduled, &entity.ScheduledNotification{
			ID:           entity.NotificationID(entity.NotificationHeadsUp, today, recipientID),
			RecipientID:  recipientID,
			Title:        headsUpTitle,
			Body:         RenderAlertBody(alerts.HeadsUpTemplate, res.Tomorrow, alerts.IncludeNamesHeadsUp),
			ScheduledFor: dates.At(today, s.cfg.HeadsUpHour, 0, loc),
			Type:         entity.NotificationHeadsUp,
		})
	}

	if len(res.Scheduled) > 0 {
		if err := s.notificationRepo.UpsertBatch(ctx, res.Scheduled); err != nil {
			return nil, fmt.Errorf("failed to store daily alerts: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"date":                    today.String(),
		"birthdays_today":         res.Today.Birthdays,
		"anniversaries_today":     res.Today.Anniversaries,
		"birthdays_tomorrow":      res.Tomorrow.Birthdays,
		"anniversaries_tomorrow":  res.Tomorrow.Anniversaries,
		"notifications_scheduled": len(res.Scheduled),
	}).Info("daily alerts scheduled")

	return res, nil
}

// resolveRecipient prefers the stored pointer and falls back to any account
// holding the leader role.
func (s *NotificationScheduler) resolveRecipient(ctx context.Context, settings *entity.Settings) (string, error) {
	if settings.RecipientID != "" {
		return settings.RecipientID, nil
	}

	user, err := s.userRepo.FindByRole(ctx, s.cfg.LeaderRole)
	if errors.Is(err, entity.ErrUserNotFound) {
		return "", entity.ErrNoRecipient
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up %s account: %w", s.cfg.LeaderRole, err)
	}
	logrus.WithFields(logrus.Fields{
		"role":    s.cfg.LeaderRole,
		"user_id": user.ID,
		"email":   redact.Email(user.Email),
	}).Info("no stored recipient, alerts go to the role account")
	return user.ID, nil
}

// digest counts the birthdays and anniversaries on day and collects the given
// names of the people involved, each person once.
func digest(roster []*entity.Person, day dates.Date, label string, loc *time.Location) DayDigest {
	d := DayDigest{Label: label}
	m := dates.NewSuffixMatcher(day.MonthDay(), loc)
	for _, p := range roster {
		if p == nil {
			continue
		}
		birthday, anniversary := m.Match(p.Dob), m.Match(p.Anniversary)
		if birthday {
			d.Birthdays++
		}
		if anniversary {
			d.Anniversaries++
		}
		if birthday || anniversary {
			if name := givenName(p.Name); name != "" {
				d.Names = append(d.Names, name)
			}
		}
	}
	return d
}
