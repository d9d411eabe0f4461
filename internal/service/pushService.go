package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	repository "github.com/Kodanda10/iConnect-sub000/internal/database/postgres"
	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
	"github.com/Kodanda10/iConnect-sub000/pkg/redact"
)

type pushService struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	sender           MessageSender
	clock            dates.Clock
	pageSize         int
	maxRetries       int
}

func NewPushService(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	sender MessageSender,
	clock dates.Clock,
	pageSize, maxRetries int,
) PushService {
	if pageSize <= 0 {
		pageSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &pushService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		sender:           sender,
		clock:            clock,
		pageSize:         pageSize,
		maxRetries:       maxRetries,
	}
}

// ProcessDue sends due, unsent notifications. A notification is marked sent
// even when its recipient has no device token, so it is not retried forever.
// Send errors are retried on later passes until maxRetries, after which the
// notification is marked sent with the error kept for inspection.
func (s *pushService) ProcessDue(ctx context.Context) (*entity.PollResult, error) {
	now := s.clock.Now()

	due, err := s.notificationRepo.GetDue(ctx, now, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load due notifications: %w", err)
	}

	res := &entity.PollResult{}
	for _, n := range due {
		if ctx.Err() != nil {
			logrus.Info("push processing interrupted by context cancellation")
			break
		}
		res.Processed++

		log := logrus.WithFields(logrus.Fields{
			"notification_id": n.ID,
			"type":            n.Type,
		})

		token, err := s.userRepo.GetDeviceToken(ctx, n.RecipientID)
		if err != nil && !errors.Is(err, entity.ErrUserNotFound) {
			s.recordFailure(ctx, n, true, err, res)
			continue
		}

		if token == "" {
			if err := s.notificationRepo.MarkSent(ctx, n.ID, now, false, ""); err != nil {
				log.Errorf("failed to mark notification sent: %v", err)
				continue
			}
			log.Info("recipient has no device token, marked sent")
			res.NoToken++
			continue
		}

		msgID, err := s.sender.SendPush(ctx, token, n.Title, n.Body)
		if err != nil {
			log.WithField("token", redact.Token(token)).Warnf("push send failed: %v", err)
			s.recordFailure(ctx, n, true, err, res)
			continue
		}

		if err := s.notificationRepo.MarkSent(ctx, n.ID, now, true, ""); err != nil {
			log.Errorf("push sent but not marked: %v", err)
			continue
		}
		log.WithField("message_id", msgID).Debug("push sent")
		res.Sent++
	}

	if res.Processed > 0 {
		logrus.WithFields(logrus.Fields{
			"processed": res.Processed,
			"sent":      res.Sent,
			"no_token":  res.NoToken,
			"retried":   res.Retried,
			"failed":    res.Failed,
		}).Info("push pass completed")
	}

	return res, nil
}

func (s *pushService) recordFailure(ctx context.Context, n *entity.ScheduledNotification, tokenFound bool, cause error, res *entity.PollResult) {
	log := logrus.WithField("notification_id", n.ID)

	count, err := s.notificationRepo.IncrementRetry(ctx, n.ID, cause.Error())
	if err != nil {
		log.Errorf("failed to record retry: %v", err)
		return
	}

	if count < s.maxRetries {
		res.Retried++
		return
	}

	if err := s.notificationRepo.MarkSent(ctx, n.ID, s.clock.Now(), tokenFound, cause.Error()); err != nil {
		log.Errorf("failed to mark notification permanently failed: %v", err)
		return
	}
	log.WithField("retries", count).Warnf("notification permanently failed: %v", cause)
	res.Failed++
}
