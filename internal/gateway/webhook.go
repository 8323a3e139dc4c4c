// internal/gateway/webhook.go
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"loanbot/internal/common/errors"
	"loanbot/internal/common/logger"
	"loanbot/internal/common/metrics"
	"loanbot/internal/conversation"

	"github.com/go-chi/chi/v5"
)

const (
	msgNoSession    = "گفتگوی فعالی وجود ندارد. برای شروع ثبت درخواست /start را ارسال کنید."
	msgInternalFail = "خطایی رخ داد. لطفا چند لحظه بعد دوباره تلاش کنید."
)

// Conversation is the slice of the engine the webhook dispatches to.
type Conversation interface {
	StartSession(ctx context.Context, userID string) (*conversation.Reply, error)
	SubmitInput(ctx context.Context, userID, raw string) (*conversation.Reply, error)
	Cancel(ctx context.Context, userID string) (*conversation.Reply, error)
}

// Webhook decodes inbound bot API updates into engine calls.
type Webhook struct {
	engine Conversation
	sender Sender
	secret string
	logger logger.Logger
}

func NewWebhook(engine Conversation, sender Sender, secret string, log logger.Logger) *Webhook {
	return &Webhook{
		engine: engine,
		sender: sender,
		secret: secret,
		logger: log.WithFields(map[string]interface{}{"component": "webhook"}),
	}
}

type update struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// Handler serves POST /webhook/{secret}. It always answers 200 once the
// update is decoded: the bot platform would otherwise redeliver, and the
// engine already re-prompts on anything recoverable.
func (w *Webhook) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "secret") != w.secret {
			http.NotFound(rw, r)
			return
		}

		var u update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			w.logger.Warn("undecodable update", map[string]interface{}{"error": err})
			http.Error(rw, "bad request", http.StatusBadRequest)
			return
		}
		if u.Message.Chat.ID == 0 || u.Message.Text == "" {
			// Edits, stickers, joins: nothing for the engine.
			rw.WriteHeader(http.StatusOK)
			return
		}

		userID := strconv.FormatInt(u.Message.Chat.ID, 10)
		w.dispatch(r.Context(), userID, strings.TrimSpace(u.Message.Text))
		rw.WriteHeader(http.StatusOK)
	}
}

func (w *Webhook) dispatch(ctx context.Context, userID, text string) {
	var (
		reply *conversation.Reply
		err   error
	)

	switch text {
	case "/start":
		reply, err = w.engine.StartSession(ctx, userID)
	case "/cancel":
		reply, err = w.engine.Cancel(ctx, userID)
	default:
		reply, err = w.engine.SubmitInput(ctx, userID, text)
	}

	if err != nil {
		w.reportError(ctx, userID, err)
		return
	}

	metrics.MessagesProcessed.WithLabelValues("ok").Inc()
	if serr := w.sender.SendPrompt(ctx, userID, reply.Text, reply.QuickReplies); serr != nil {
		w.logger.Error("reply send failed", map[string]interface{}{
			"userId": userID,
			"error":  serr,
		})
	}
}

func (w *Webhook) reportError(ctx context.Context, userID string, err error) {
	text := msgInternalFail
	result := "error"
	if stdErr, ok := err.(*errors.StandardError); ok && stdErr.Code == errors.ErrCodeSessionNotFound {
		text = msgNoSession
		result = "no_session"
	} else {
		w.logger.Error("engine operation failed", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
	}
	metrics.MessagesProcessed.WithLabelValues(result).Inc()

	if serr := w.sender.SendPrompt(ctx, userID, text, nil); serr != nil {
		w.logger.Error("error reply send failed", map[string]interface{}{
			"userId": userID,
			"error":  serr,
		})
	}
}
