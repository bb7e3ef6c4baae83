package gateway

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/config"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/driver"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/messagebird"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/responder"
)

func testGatewayLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// upstream captures conversation starts sent to the provider.
type upstream struct {
	mu    sync.Mutex
	calls []messagebird.ConversationMessage
}

func (u *upstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg messagebird.ConversationMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		u.mu.Lock()
		u.calls = append(u.calls, msg)
		u.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(messagebird.Conversation{ID: "conv-1", Status: "active"})
	}
}

func (u *upstream) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

func (u *upstream) last() messagebird.ConversationMessage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[len(u.calls)-1]
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *upstream) {
	t.Helper()

	up := &upstream{}
	api := httptest.NewServer(up.handler())
	t.Cleanup(api.Close)

	cfg := config.Defaults()
	cfg.MessageBird.AccessKey = "test-key"
	cfg.MessageBird.BusinessNumber = "+31600000000"
	cfg.Journal.Enabled = false
	cfg.Responder.Echo = true
	if mutate != nil {
		mutate(cfg)
	}

	logger := testGatewayLogger()
	client := messagebird.NewClient(messagebird.ClientConfig{
		AccessKey: cfg.MessageBird.AccessKey,
		BaseURL:   api.URL,
		Timeout:   5 * time.Second,
		Logger:    logger,
	})
	drv := driver.New(cfg.MessageBird, client, logger)
	resp := responder.New(nil, cfg.Responder.Echo, logger)
	return New(cfg, drv, resp, nil, logger), up
}

func eventBody(t *testing.T, platform, from, to, direction, msgType, channelID, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"id":        "msg-1",
			"platform":  platform,
			"from":      from,
			"to":        to,
			"direction": direction,
			"type":      msgType,
			"channelId": channelID,
			"content":   map[string]any{"text": text},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func post(s *Server, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	rr := httptest.NewRecorder()
	s.Handler()(rr, req)
	return rr
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest("GET", "/webhook/whatsapp", nil)
	rr := httptest.NewRecorder()
	s.Handler()(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	s, up := newTestServer(t, nil)
	rr := post(s, []byte("not json"), nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if up.count() != 0 {
		t.Errorf("expected no upstream calls, got %d", up.count())
	}
}

func TestWebhook_OtherPlatformIgnored(t *testing.T) {
	s, up := newTestServer(t, nil)
	body := eventBody(t, "telegram", "+31611111111", "+31600000000", "received", "text", "chan-1", "hello")
	rr := post(s, body, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ignored" {
		t.Errorf("expected ignored, got %q", resp["status"])
	}
	if up.count() != 0 {
		t.Errorf("foreign platform must not reach the provider, got %d calls", up.count())
	}
}

func TestWebhook_TextEcho(t *testing.T) {
	s, up := newTestServer(t, nil)
	body := eventBody(t, "whatsapp", "+31611111111", "+31600000000", "received", "text", "chan-1", "hello bot")
	rr := post(s, body, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if up.count() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", up.count())
	}

	sent := up.last()
	if sent.To != "31611111111" {
		t.Errorf("recipient should lose the + prefix, got %q", sent.To)
	}
	if sent.ChannelID != "chan-1" {
		t.Errorf("expected the event channel id, got %q", sent.ChannelID)
	}
	if sent.Type != "text" || sent.Content.Text != "hello bot" {
		t.Errorf("unexpected reply content: %+v", sent)
	}
}

func TestWebhook_SentDirectionSuppressed(t *testing.T) {
	s, up := newTestServer(t, nil)
	body := eventBody(t, "whatsapp", "+31600000000", "+31611111111", "sent", "text", "chan-1", "our own echo")
	rr := post(s, body, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "suppressed" {
		t.Errorf("expected suppressed, got %q", resp["status"])
	}
	if up.count() != 0 {
		t.Errorf("outbound echoes must not loop, got %d calls", up.count())
	}
}

func TestWebhook_FallbackChannel(t *testing.T) {
	s, up := newTestServer(t, func(cfg *config.Config) {
		cfg.MessageBird.FallbackChannelID = "fallback-chan"
	})
	body := eventBody(t, "whatsapp", "+31611111111", "+31600000000", "received", "text", "", "hi")
	post(s, body, nil)
	if up.count() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", up.count())
	}
	if got := up.last().ChannelID; got != "fallback-chan" {
		t.Errorf("expected the fallback channel id, got %q", got)
	}
}

func TestWebhook_MissingChannelNeverSent(t *testing.T) {
	s, up := newTestServer(t, nil)
	body := eventBody(t, "whatsapp", "+31611111111", "+31600000000", "received", "text", "", "hi")
	rr := post(s, body, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if up.count() != 0 {
		t.Errorf("payload without a channel id must not reach the wire, got %d calls", up.count())
	}
}

func TestWebhook_SignatureRequired(t *testing.T) {
	s, up := newTestServer(t, func(cfg *config.Config) {
		cfg.MessageBird.SigningKey = "signing-secret"
	})
	body := eventBody(t, "whatsapp", "+31611111111", "+31600000000", "received", "text", "chan-1", "hi")

	rr := post(s, body, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unsigned delivery: expected 401, got %d", rr.Code)
	}
	if up.count() != 0 {
		t.Errorf("unsigned delivery must not be processed, got %d calls", up.count())
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := messagebird.NewValidator("signing-secret").Sign(ts, "", body)
	h := http.Header{}
	h.Set(messagebird.TimestampHeader, ts)
	h.Set(messagebird.SignatureHeader, sig)

	rr = post(s, body, h)
	if rr.Code != http.StatusOK {
		t.Errorf("signed delivery: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if up.count() != 1 {
		t.Errorf("signed delivery should be processed, got %d calls", up.count())
	}
}

func TestWebhook_UnhandledTypeAnswered(t *testing.T) {
	s, up := newTestServer(t, nil)
	body, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"platform":  "whatsapp",
			"from":      "+31611111111",
			"to":        "+31600000000",
			"direction": "received",
			"type":      "sticker",
			"channelId": "chan-1",
			"content":   map[string]any{},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	post(s, body, nil)
	if up.count() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", up.count())
	}
	if got := up.last().Content.Text; got != "MESSAGE TYPE NOT HANDLED." {
		t.Errorf("expected the not-handled notice, got %q", got)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()
	s.handleHealth(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}
