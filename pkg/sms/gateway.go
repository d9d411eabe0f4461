package sms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kodanda10/iConnect-sub000/pkg/redact"
)

var ErrGatewayNotConfigured = errors.New("sms gateway base url is not configured")

// idempotencyHeader carries one key per message. Transport-level retries
// resend the same key so the gateway can drop the duplicate.
const idempotencyHeader = "Idempotency-Key"

type GatewayConfig struct {
	BaseURL  string
	APIKey   string
	SenderID string
	Timeout  time.Duration
}

type sendRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	SenderID string `json:"sender_id,omitempty"`
}

type sendResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Gateway sends SMS through an HTTP gateway.
type Gateway struct {
	client   *resty.Client
	senderID string
}

func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, ErrGatewayNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Gateway{client: client, senderID: cfg.SenderID}, nil
}

// SendSMS reports false with a nil error when the gateway rejects the message.
func (g *Gateway) SendSMS(ctx context.Context, mobile, message string) (bool, error) {
	var out sendResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader(idempotencyHeader, uuid.NewString()).
		SetBody(sendRequest{To: mobile, Message: message, SenderID: g.senderID}).
		SetResult(&out).
		SetError(&out).
		Post("/sms/send")
	if err != nil {
		return false, fmt.Errorf("failed to call sms gateway: %w", err)
	}

	if resp.IsError() {
		logrus.WithFields(logrus.Fields{
			"mobile": redact.Mobile(mobile),
			"status": resp.StatusCode(),
		}).Warnf("sms gateway rejected message: %s", out.Error)
		return false, fmt.Errorf("sms gateway error: status %d", resp.StatusCode())
	}
	if out.Status != "ok" {
		logrus.WithField("mobile", redact.Mobile(mobile)).Warnf("sms not accepted: %s", out.Error)
		return false, nil
	}

	logrus.WithFields(logrus.Fields{
		"mobile":     redact.Mobile(mobile),
		"message_id": out.MessageID,
	}).Debug("sms accepted by gateway")
	return true, nil
}
