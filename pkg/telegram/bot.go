package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// ErrNoToken is returned when the bot is used without a configured token.
var ErrNoToken = errors.New("telegram bot token is not configured")

// Bot delivers push alerts as Telegram messages. The recipient's device
// token is the chat id.
type Bot struct {
	token   string
	baseURL string
	client  *http.Client
}

func NewBot(token string, timeout time.Duration) *Bot {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Bot{
		token:   token,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the bot at another API host.
func (b *Bot) WithBaseURL(baseURL string) *Bot {
	b.baseURL = strings.TrimRight(baseURL, "/")
	return b
}

type sendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// SendMessage posts text to chatID and returns the Telegram message id.
func (b *Bot) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	if b.token == "" {
		return "", ErrNoToken
	}
	endpoint := b.baseURL + "/bot" + b.token + "/sendMessage"

	params := url.Values{}
	params.Add("chat_id", chatID)
	params.Add("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out sendResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Description != "" {
			return "", fmt.Errorf("telegram API error: %s: %s", resp.Status, out.Description)
		}
		return "", fmt.Errorf("telegram API error: %s", resp.Status)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode telegram response: %w", decodeErr)
	}
	if !out.OK {
		return "", fmt.Errorf("telegram API error: %s", out.Description)
	}

	return strconv.FormatInt(out.Result.MessageID, 10), nil
}

// SendPush renders title and body as one message.
func (b *Bot) SendPush(ctx context.Context, token, title, body string) (string, error) {
	text := body
	if title != "" {
		text = title + "\n" + body
	}
	return b.SendMessage(ctx, token, text)
}
