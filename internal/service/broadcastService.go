package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	repository "github.com/Kodanda10/iConnect-sub000/internal/database/postgres"
	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
	"github.com/Kodanda10/iConnect-sub000/pkg/redact"
)

// CreateBroadcastRequest describes a conference call to announce. Recipients
// may be given explicitly or resolved from an audience.
type CreateBroadcastRequest struct {
	Title         string              `json:"title" binding:"required"`
	ScheduledAt   time.Time           `json:"scheduled_at" binding:"required"`
	DialNumber    string              `json:"dial_number"`
	AccessCode    string              `json:"access_code"`
	Language      entity.Language     `json:"language"`
	Audience      entity.AudienceType `json:"audience"`
	AudienceValue string              `json:"audience_value"`
	Recipients    []entity.Recipient  `json:"recipients"`
	CreatorID     string              `json:"creator_id" binding:"required"`
}

// DispatchLimits bounds a fan-out. See config.BroadcastConfig.
type DispatchLimits struct {
	BatchSize      int
	Concurrency    int
	TimeBudget     time.Duration
	MaxRecipients  int
	QueueThreshold int
	QueueBatchSize int
	Language       entity.Language
	EveningHour    int
	Location       *time.Location
}

// BatchPublisher hands a slice of recipients to the durable work queue.
type BatchPublisher interface {
	PublishBroadcastBatch(ctx context.Context, batch *BroadcastBatch) error
}

type BroadcastBatch struct {
	EventID string   `json:"event_id"`
	Index   int      `json:"index"`
	Mobiles []string `json:"mobiles"`
	Message string   `json:"message"`
}

type broadcastService struct {
	broadcastRepo    repository.BroadcastRepository
	personRepo       repository.PersonRepository
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
	sender           MessageSender
	queue            BatchPublisher
	clock            dates.Clock
	limits           DispatchLimits
}

// NewBroadcastService creates the dispatcher. queue may be nil, in which case
// every fan-out is sent directly.
func NewBroadcastService(
	broadcastRepo repository.BroadcastRepository,
	personRepo repository.PersonRepository,
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
	sender MessageSender,
	queue BatchPublisher,
	clock dates.Clock,
	limits DispatchLimits,
) BroadcastService {
	if limits.BatchSize <= 0 {
		limits.BatchSize = 25
	}
	if limits.Concurrency <= 0 {
		limits.Concurrency = limits.BatchSize
	}
	if limits.QueueBatchSize <= 0 {
		limits.QueueBatchSize = 100
	}
	if limits.Location == nil {
		limits.Location = time.UTC
	}
	return &broadcastService{
		broadcastRepo:    broadcastRepo,
		personRepo:       personRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		sender:           sender,
		queue:            queue,
		clock:            clock,
		limits:           limits,
	}
}

func (s *broadcastService) CreateBroadcast(ctx context.Context, req *CreateBroadcastRequest) (*entity.BroadcastEvent, error) {
	if strings.TrimSpace(req.Title) == "" || req.ScheduledAt.IsZero() {
		return nil, entity.ErrInvalidBroadcast
	}

	recipients := req.Recipients
	if len(recipients) == 0 && req.Audience != "" {
		persons, err := s.personRepo.GetByAudience(ctx, req.Audience, req.AudienceValue)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve audience: %w", err)
		}
		recipients = make([]entity.Recipient, 0, len(persons))
		for _, p := range persons {
			recipients = append(recipients, entity.Recipient{PersonID: p.ID, Name: p.Name, Mobile: p.Mobile})
		}
	}

	lang := req.Language
	if lang == "" {
		lang = s.limits.Language
	}

	event := &entity.BroadcastEvent{
		ID:            uuid.NewString(),
		Title:         req.Title,
		ScheduledAt:   req.ScheduledAt,
		DialNumber:    req.DialNumber,
		AccessCode:    req.AccessCode,
		Language:      lang,
		Audience:      req.Audience,
		AudienceValue: req.AudienceValue,
		Recipients:    recipients,
		CreatorID:     req.CreatorID,
		CreatedAt:     s.clock.Now(),
	}

	token, err := s.userRepo.GetDeviceToken(ctx, req.CreatorID)
	if err != nil {
		// the confirmation push is optional
		logrus.WithField("creator_id", req.CreatorID).Warnf("creator device token unavailable: %v", err)
	}
	event.CreatorToken = token

	if err := s.broadcastRepo.Create(ctx, event); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"recipients": len(event.Recipients),
		"audience":   event.Audience,
	}).Info("broadcast created")

	return event, nil
}

// OnEventCreated stores the creator's reminders, confirms to the creator and
// fans the conference message out to every recipient with a mobile number.
func (s *broadcastService) OnEventCreated(ctx context.Context, event *entity.BroadcastEvent) (*entity.BroadcastResult, error) {
	log := logrus.WithField("event_id", event.ID)

	if err := s.scheduleReminders(ctx, event); err != nil {
		return nil, err
	}
	s.confirm(ctx, event)

	mobiles := s.recipientMobiles(event)
	message := ConferenceMessage(event.Language, event.DialNumber, event.AccessCode)

	if len(mobiles) > s.limits.QueueThreshold && s.queue != nil {
		queued, err := s.enqueue(ctx, event.ID, mobiles, message)
		if err == nil {
			log.WithField("recipients", queued).Info("broadcast queued")
			return &entity.BroadcastResult{
				EventID: event.ID,
				Mode:    entity.DispatchQueued,
				Total:   len(mobiles),
				Queued:  queued,
				Batches: (queued + s.limits.QueueBatchSize - 1) / s.limits.QueueBatchSize,
			}, nil
		}

		log.WithFields(logrus.Fields{
			"queued":    queued,
			"remaining": len(mobiles) - queued,
		}).Errorf("enqueue failed, sending remainder directly: %v", err)

		res, sendErr := s.SendDirect(ctx, event.ID, mobiles[queued:], message)
		if res != nil {
			res.Total = len(mobiles)
			res.Queued = queued
		}
		return res, sendErr
	}

	return s.SendDirect(ctx, event.ID, mobiles, message)
}

// SendDirect sends message to mobiles in fixed-size batches. Sends within a
// batch run concurrently; batches run one after another. The time budget is
// checked only between batches, so a started batch always completes.
func (s *broadcastService) SendDirect(ctx context.Context, eventID string, mobiles []string, message string) (*entity.BroadcastResult, error) {
	log := logrus.WithField("event_id", eventID)
	start := s.clock.Now()

	res := &entity.BroadcastResult{
		EventID: eventID,
		Mode:    entity.DispatchDirect,
		Total:   len(mobiles),
	}

	attempted := 0
	for offset := 0; offset < len(mobiles); offset += s.limits.BatchSize {
		elapsed := s.clock.Now().Sub(start)
		if s.limits.TimeBudget > 0 && elapsed >= s.limits.TimeBudget {
			res.Partial = true
			log.WithFields(logrus.Fields{
				"elapsed":   elapsed.String(),
				"remaining": len(mobiles) - attempted,
			}).Warn("time budget exceeded, stopping broadcast")
			break
		}
		if ctx.Err() != nil {
			res.Partial = true
			log.Warnf("broadcast interrupted: %v", ctx.Err())
			break
		}

		end := offset + s.limits.BatchSize
		if end > len(mobiles) {
			end = len(mobiles)
		}
		sent, failed := s.sendBatch(ctx, mobiles[offset:end], message)
		res.Sent += sent
		res.Failed += failed
		res.Batches++
		attempted += end - offset
	}
	res.Remaining = len(mobiles) - attempted

	log.WithFields(logrus.Fields{
		"sent":      res.Sent,
		"failed":    res.Failed,
		"remaining": res.Remaining,
		"batches":   res.Batches,
	}).Info("direct broadcast finished")

	if attempted > 0 && res.Sent == 0 {
		return res, fmt.Errorf("%w: %d attempted", entity.ErrAllSendsFailed, attempted)
	}
	return res, nil
}

func (s *broadcastService) sendBatch(ctx context.Context, mobiles []string, message string) (int, int) {
	var sent, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.limits.Concurrency)
	for _, mobile := range mobiles {
		mobile := mobile
		g.Go(func() error {
			ok, err := s.sender.SendSMS(ctx, mobile, message)
			if err != nil || !ok {
				failed.Add(1)
				logrus.WithField("mobile", redact.Mobile(mobile)).Warnf("sms send failed: %v", err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(sent.Load()), int(failed.Load())
}

// enqueue publishes queue-sized batches and returns how many recipients were
// accepted before the first failure.
func (s *broadcastService) enqueue(ctx context.Context, eventID string, mobiles []string, message string) (int, error) {
	queued := 0
	for i, offset := 0, 0; offset < len(mobiles); i, offset = i+1, offset+s.limits.QueueBatchSize {
		end := offset + s.limits.QueueBatchSize
		if end > len(mobiles) {
			end = len(mobiles)
		}
		batch := &BroadcastBatch{
			EventID: eventID,
			Index:   i,
			Mobiles: mobiles[offset:end],
			Message: message,
		}
		if err := s.queue.PublishBroadcastBatch(ctx, batch); err != nil {
			return queued, err
		}
		queued = end
	}
	return queued, nil
}

// recipientMobiles drops recipients without a mobile and applies the cap.
func (s *broadcastService) recipientMobiles(event *entity.BroadcastEvent) []string {
	mobiles := make([]string, 0, len(event.Recipients))
	for _, r := range event.Recipients {
		m := strings.TrimSpace(r.Mobile)
		if m == "" {
			continue
		}
		mobiles = append(mobiles, m)
	}

	if s.limits.MaxRecipients > 0 && len(mobiles) > s.limits.MaxRecipients {
		logrus.WithFields(logrus.Fields{
			"event_id": event.ID,
			"dropped":  len(mobiles) - s.limits.MaxRecipients,
		}).Warn("recipient list capped")
		mobiles = mobiles[:s.limits.MaxRecipients]
	}
	return mobiles
}

// scheduleReminders writes the evening-before and ten-minute reminders for
// the creator. Instants already in the past are skipped.
func (s *broadcastService) scheduleReminders(ctx context.Context, event *entity.BroadcastEvent) error {
	if event.CreatorID == "" {
		return nil
	}

	now := s.clock.Now()
	evening, tenMin := dates.ReminderTimes(event.ScheduledAt, s.limits.EveningHour, s.limits.Location)

	candidates := []*entity.ScheduledNotification{
		{
			ID:           entity.EventNotificationID(entity.NotificationEvening, event.ID, event.CreatorID),
			RecipientID:  event.CreatorID,
			Title:        "Reminder: " + event.Title,
			Body:         "Your conference call is scheduled for tomorrow.",
			ScheduledFor: evening,
			Type:         entity.NotificationEvening,
			EventID:      event.ID,
		},
		{
			ID:           entity.EventNotificationID(entity.NotificationTenMin, event.ID, event.CreatorID),
			RecipientID:  event.CreatorID,
			Title:        "Starting Soon: " + event.Title,
			Body:         "Your conference call starts in 10 minutes. Prepare to join!",
			ScheduledFor: tenMin,
			Type:         entity.NotificationTenMin,
			EventID:      event.ID,
		},
	}

	var reminders []*entity.ScheduledNotification
	for _, n := range candidates {
		if n.ScheduledFor.Before(now) {
			logrus.WithFields(logrus.Fields{
				"event_id": event.ID,
				"type":     n.Type,
			}).Debug("reminder time already passed, skipped")
			continue
		}
		reminders = append(reminders, n)
	}

	if err := s.notificationRepo.UpsertBatch(ctx, reminders); err != nil {
		return fmt.Errorf("failed to store reminders: %w", err)
	}
	return nil
}

// confirm pushes an immediate confirmation to the creator. Failures are logged only.
func (s *broadcastService) confirm(ctx context.Context, event *entity.BroadcastEvent) {
	log := logrus.WithField("event_id", event.ID)
	if event.CreatorToken == "" {
		log.Info("creator has no device token, confirmation skipped")
		return
	}

	when := event.ScheduledAt.In(s.limits.Location).Format("02 Jan 2006, 03:04 PM")
	body := fmt.Sprintf(`You scheduled "%s" for %s`, event.Title, when)

	id, err := s.sender.SendPush(ctx, event.CreatorToken, "Meeting Scheduled", body)
	if err != nil {
		log.WithField("token", redact.Token(event.CreatorToken)).Errorf("confirmation push failed: %v", err)
		return
	}
	log.WithField("message_id", id).Info("confirmation push sent")
}
