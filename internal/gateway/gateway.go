// internal/gateway/gateway.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"loanbot/internal/common/errors"
	httpclient "loanbot/internal/common/http"
	"loanbot/internal/common/logger"
)

// Sender is the one primitive the core needs from the messaging side.
type Sender interface {
	SendPrompt(ctx context.Context, userID, text string, quickReplies []string) error
}

// BotClient sends messages through the bot HTTP API (Telegram/Bale wire
// format: POST <base>/bot<token>/sendMessage).
type BotClient struct {
	apiBaseURL string
	token      string
	client     *httpclient.Client
	logger     logger.Logger
}

func NewBotClient(apiBaseURL, token string, timeout time.Duration, log logger.Logger) *BotClient {
	return &BotClient{
		apiBaseURL: apiBaseURL,
		token:      token,
		client:     httpclient.NewClient(timeout),
		logger:     log.WithFields(map[string]interface{}{"component": "gateway"}),
	}
}

type keyboardButton struct {
	Text string `json:"text"`
}

type replyMarkup struct {
	Keyboard        [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard"`
	OneTimeKeyboard bool               `json:"one_time_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	Text        string       `json:"text"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

func (b *BotClient) SendPrompt(ctx context.Context, userID, text string, quickReplies []string) error {
	payload := sendMessageRequest{
		ChatID: userID,
		Text:   text,
	}
	if len(quickReplies) > 0 {
		row := make([]keyboardButton, 0, len(quickReplies))
		for _, r := range quickReplies {
			row = append(row, keyboardButton{Text: r})
		}
		payload.ReplyMarkup = &replyMarkup{
			Keyboard:        [][]keyboardButton{row},
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.NewGatewaySendFailedError(err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", b.apiBaseURL, b.token)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.NewGatewaySendFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.DoWithContext(ctx, req)
	if err != nil {
		return errors.NewGatewaySendFailedError(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var smr sendMessageResponse
	if err := json.Unmarshal(raw, &smr); err != nil || !smr.OK {
		return errors.NewGatewaySendFailedError(
			fmt.Errorf("sendMessage status %d: %s", resp.StatusCode, smr.Description))
	}
	return nil
}
