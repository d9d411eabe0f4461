package sms

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kodanda10/iConnect-sub000/pkg/redact"
)

type SMSSender interface {
	SendSMS(ctx context.Context, mobile, message string) (bool, error)
}

type PushSender interface {
	SendPush(ctx context.Context, token, title, body string) (string, error)
}

// LogSender only logs. It stands in for both transports when none is configured.
type LogSender struct{}

func (LogSender) SendSMS(_ context.Context, mobile, message string) (bool, error) {
	logrus.WithFields(logrus.Fields{
		"mobile":  redact.Mobile(mobile),
		"message": redact.Message(message),
	}).Info("sms (log only)")
	return true, nil
}

func (LogSender) SendPush(_ context.Context, token, title, body string) (string, error) {
	id := "log-" + uuid.NewString()
	logrus.WithFields(logrus.Fields{
		"token":      redact.Token(token),
		"title":      title,
		"body":       redact.Message(body),
		"message_id": id,
	}).Info("push (log only)")
	return id, nil
}

// Sender pairs a push transport with an SMS transport.
type Sender struct {
	push PushSender
	sms  SMSSender
}

func NewSender(push PushSender, sms SMSSender) *Sender {
	if push == nil {
		push = LogSender{}
	}
	if sms == nil {
		sms = LogSender{}
	}
	return &Sender{push: push, sms: sms}
}

func (s *Sender) SendPush(ctx context.Context, token, title, body string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("empty device token")
	}
	return s.push.SendPush(ctx, token, title, body)
}

func (s *Sender) SendSMS(ctx context.Context, mobile, message string) (bool, error) {
	if mobile == "" {
		return false, fmt.Errorf("empty mobile number")
	}
	return s.sms.SendSMS(ctx, mobile, message)
}
