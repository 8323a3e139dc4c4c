package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanbot/internal/common/errors"
	"loanbot/internal/common/logger"
	"loanbot/internal/conversation"
)

// ==========================
// Test Fakes
// ==========================

type engineCall struct {
	op   string
	text string
}

type fakeConversation struct {
	calls []engineCall
	reply *conversation.Reply
	err   error
}

func (f *fakeConversation) StartSession(_ context.Context, userID string) (*conversation.Reply, error) {
	f.calls = append(f.calls, engineCall{op: "start"})
	return f.reply, f.err
}

func (f *fakeConversation) SubmitInput(_ context.Context, userID, raw string) (*conversation.Reply, error) {
	f.calls = append(f.calls, engineCall{op: "submit", text: raw})
	return f.reply, f.err
}

func (f *fakeConversation) Cancel(_ context.Context, userID string) (*conversation.Reply, error) {
	f.calls = append(f.calls, engineCall{op: "cancel"})
	return f.reply, f.err
}

type sentMessage struct {
	userID       string
	text         string
	quickReplies []string
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) SendPrompt(_ context.Context, userID, text string, quickReplies []string) error {
	f.sent = append(f.sent, sentMessage{userID: userID, text: text, quickReplies: quickReplies})
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

const testSecret = "hook-secret"

func newTestServer(t *testing.T, engine *fakeConversation, sender *fakeSender) *httptest.Server {
	wh := NewWebhook(engine, sender, testSecret, logger.NewTestLogger(t))
	r := chi.NewRouter()
	r.Post("/webhook/{secret}", wh.Handler())
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func postUpdate(t *testing.T, server *httptest.Server, secret string, chatID int64, text string) *http.Response {
	body, err := json.Marshal(map[string]interface{}{
		"message": map[string]interface{}{
			"chat": map[string]interface{}{"id": chatID},
			"text": text,
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(
		fmt.Sprintf("%s/webhook/%s", server.URL, secret),
		"application/json",
		bytes.NewReader(body),
	)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

// ==========================
// Webhook Tests
// ==========================

func TestWebhook_StartCommand(t *testing.T) {
	engine := &fakeConversation{reply: &conversation.Reply{Text: "سلام", QuickReplies: []string{"بله", "خیر"}}}
	sender := &fakeSender{}
	server := newTestServer(t, engine, sender)

	resp := postUpdate(t, server, testSecret, 42, "/start")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, engine.calls, 1)
	assert.Equal(t, "start", engine.calls[0].op)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "42", sender.sent[0].userID)
	assert.Equal(t, "سلام", sender.sent[0].text)
	assert.Equal(t, []string{"بله", "خیر"}, sender.sent[0].quickReplies)
}

func TestWebhook_CancelCommand(t *testing.T) {
	engine := &fakeConversation{reply: &conversation.Reply{Text: "done"}}
	server := newTestServer(t, engine, &fakeSender{})

	postUpdate(t, server, testSecret, 42, "/cancel")

	require.Len(t, engine.calls, 1)
	assert.Equal(t, "cancel", engine.calls[0].op)
}

func TestWebhook_PlainTextGoesToSubmit(t *testing.T) {
	engine := &fakeConversation{reply: &conversation.Reply{Text: "next"}}
	server := newTestServer(t, engine, &fakeSender{})

	postUpdate(t, server, testSecret, 42, "  1234567890  ")

	require.Len(t, engine.calls, 1)
	assert.Equal(t, "submit", engine.calls[0].op)
	assert.Equal(t, "1234567890", engine.calls[0].text)
}

func TestWebhook_WrongSecret(t *testing.T) {
	engine := &fakeConversation{reply: &conversation.Reply{Text: "x"}}
	server := newTestServer(t, engine, &fakeSender{})

	resp := postUpdate(t, server, "wrong", 42, "/start")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, engine.calls)
}

func TestWebhook_NonTextUpdateIgnored(t *testing.T) {
	engine := &fakeConversation{reply: &conversation.Reply{Text: "x"}}
	sender := &fakeSender{}
	server := newTestServer(t, engine, sender)

	// A sticker or join event has no text.
	resp := postUpdate(t, server, testSecret, 42, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, engine.calls)
	assert.Empty(t, sender.sent)
}

func TestWebhook_UndecodableBody(t *testing.T) {
	server := newTestServer(t, &fakeConversation{}, &fakeSender{})

	resp, err := http.Post(
		fmt.Sprintf("%s/webhook/%s", server.URL, testSecret),
		"application/json",
		bytes.NewReader([]byte("{not json")),
	)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhook_NoSessionFallback(t *testing.T) {
	engine := &fakeConversation{err: errors.NewSessionNotFoundError("42")}
	sender := &fakeSender{}
	server := newTestServer(t, engine, sender)

	resp := postUpdate(t, server, testSecret, 42, "1234567890")

	// The platform still gets a 200; the user gets the start hint.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].text, "/start")
}

// ==========================
// Bot Client Tests
// ==========================

func TestBotClient_SendPrompt(t *testing.T) {
	var gotPath string
	var gotReq sendMessageRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	}))
	t.Cleanup(server.Close)

	client := NewBotClient(server.URL, "bot-token", 5*time.Second, logger.NewTestLogger(t))
	err := client.SendPrompt(context.Background(), "42", "کد ملی پدر", []string{"بله", "خیر"})

	require.NoError(t, err)
	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "42", gotReq.ChatID)
	assert.Equal(t, "کد ملی پدر", gotReq.Text)
	require.NotNil(t, gotReq.ReplyMarkup)
	require.Len(t, gotReq.ReplyMarkup.Keyboard, 1)
	assert.Equal(t, "بله", gotReq.ReplyMarkup.Keyboard[0][0].Text)
	assert.True(t, gotReq.ReplyMarkup.OneTimeKeyboard)
}

func TestBotClient_SendPrompt_NoKeyboard(t *testing.T) {
	var gotReq sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	}))
	t.Cleanup(server.Close)

	client := NewBotClient(server.URL, "bot-token", 5*time.Second, logger.NewTestLogger(t))
	require.NoError(t, client.SendPrompt(context.Background(), "42", "متن", nil))
	assert.Nil(t, gotReq.ReplyMarkup)
}

func TestBotClient_SendPrompt_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(sendMessageResponse{OK: false, Description: "chat not found"})
	}))
	t.Cleanup(server.Close)

	client := NewBotClient(server.URL, "bot-token", 5*time.Second, logger.NewTestLogger(t))
	err := client.SendPrompt(context.Background(), "42", "متن", nil)
	require.Error(t, err)

	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeGatewaySendFailed, stdErr.Code)
}
