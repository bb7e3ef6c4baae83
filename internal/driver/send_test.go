package driver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/config"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/messagebird"
)

type capturedSend struct {
	calls int
	raw   map[string]any
}

func sendTestDriver(t *testing.T, businessNumber string) (*WhatsApp, *capturedSend) {
	t.Helper()
	captured := &capturedSend{}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		captured.calls++
		json.NewDecoder(r.Body).Decode(&captured.raw)
		rw.WriteHeader(http.StatusCreated)
		json.NewEncoder(rw).Encode(messagebird.Conversation{ID: "conv-1"})
	}))
	t.Cleanup(srv.Close)

	client := messagebird.NewClient(messagebird.ClientConfig{
		AccessKey: "k",
		BaseURL:   srv.URL,
		Logger:    testLogger(),
	})
	return New(config.MessageBirdConfig{BusinessNumber: businessNumber}, client, testLogger()), captured
}

func TestSend_Text(t *testing.T) {
	d, captured := sendTestDriver(t, "+3197000000000")
	err := d.Send(context.Background(), Payload{
		Recipient: "31612345678",
		ChannelID: "chan-1",
		Type:      TypeText,
		Text:      "hello",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if captured.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", captured.calls)
	}
	if captured.raw["to"] != "31612345678" || captured.raw["channelId"] != "chan-1" || captured.raw["type"] != "text" {
		t.Errorf("unexpected wire message: %v", captured.raw)
	}
	content := captured.raw["content"].(map[string]any)
	if content["text"] != "hello" {
		t.Errorf("unexpected content: %v", content)
	}
}

func TestSend_AudioContentShape(t *testing.T) {
	d, captured := sendTestDriver(t, "+3197000000000")
	err := d.Send(context.Background(), Payload{
		Recipient: "31612345678",
		ChannelID: "chan-1",
		Type:      TypeAudio,
		URL:       "http://x/voice.ogg",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	content := captured.raw["content"].(map[string]any)
	audio, ok := content["audio"].(map[string]any)
	if !ok {
		t.Fatalf("content should carry audio, got %v", content)
	}
	if audio["url"] != "http://x/voice.ogg" {
		t.Errorf("unexpected audio url: %v", audio["url"])
	}
	if len(audio) != 1 {
		t.Errorf("audio content should carry only url, got %v", audio)
	}
}

func TestSend_Location(t *testing.T) {
	d, captured := sendTestDriver(t, "+3197000000000")
	err := d.Send(context.Background(), Payload{
		Recipient: "31612345678",
		ChannelID: "chan-1",
		Type:      TypeLocation,
		Latitude:  52.1,
		Longitude: 4.3,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	content := captured.raw["content"].(map[string]any)
	loc, ok := content["location"].(map[string]any)
	if !ok {
		t.Fatalf("content should carry location, got %v", content)
	}
	if loc["latitude"] != 52.1 || loc["longitude"] != 4.3 {
		t.Errorf("unexpected coordinates: %v", loc)
	}
}

func TestSend_SelfAddressedSuppressed(t *testing.T) {
	d, captured := sendTestDriver(t, "+31612345678")
	err := d.Send(context.Background(), Payload{
		Recipient: "31612345678",
		ChannelID: "chan-1",
		Type:      TypeText,
		Text:      "loop",
	})
	if err != nil {
		t.Fatalf("suppressed send should not error: %v", err)
	}
	if captured.calls != 0 {
		t.Errorf("self-addressed send must not reach the provider, got %d calls", captured.calls)
	}
}

func TestSend_MissingChannelID(t *testing.T) {
	d, captured := sendTestDriver(t, "+3197000000000")
	err := d.Send(context.Background(), Payload{
		Recipient: "31612345678",
		Type:      TypeText,
		Text:      "x",
	})
	if !errors.Is(err, ErrMissingChannelID) {
		t.Errorf("expected ErrMissingChannelID, got %v", err)
	}
	if captured.calls != 0 {
		t.Errorf("invalid payload must not reach the provider, got %d calls", captured.calls)
	}
}

func TestSend_UnsupportedType(t *testing.T) {
	d, captured := sendTestDriver(t, "+3197000000000")
	err := d.Send(context.Background(), Payload{
		Recipient: "31612345678",
		ChannelID: "chan-1",
		Type:      "sticker",
	})
	if !errors.Is(err, ErrUnsupportedPayloadType) {
		t.Errorf("expected ErrUnsupportedPayloadType, got %v", err)
	}
	if captured.calls != 0 {
		t.Errorf("unsupported payload must not reach the provider, got %d calls", captured.calls)
	}
}

func TestSend_APIErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := messagebird.NewClient(messagebird.ClientConfig{AccessKey: "k", BaseURL: srv.URL, Logger: testLogger()})
	d := New(config.MessageBirdConfig{BusinessNumber: "+3197000000000"}, client, testLogger())

	err := d.Send(context.Background(), Payload{
		Recipient: "31612345678",
		ChannelID: "chan-1",
		Type:      TypeText,
		Text:      "x",
	})
	var apiErr *messagebird.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("expected APIError to propagate, got %v", err)
	}
}
