package messagebird

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_EndpointSelection(t *testing.T) {
	prod := NewClient(ClientConfig{AccessKey: "k"})
	if prod.BaseURL() != ConversationsEndpoint {
		t.Errorf("expected production endpoint, got %s", prod.BaseURL())
	}

	sandbox := NewClient(ClientConfig{AccessKey: "k", SandboxEnabled: true})
	if sandbox.BaseURL() != ConversationsWhatsAppSandboxEndpoint {
		t.Errorf("expected sandbox endpoint, got %s", sandbox.BaseURL())
	}
}

func TestStartConversation_Request(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody ConversationMessage

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		rw.WriteHeader(http.StatusCreated)
		json.NewEncoder(rw).Encode(Conversation{ID: "conv-1", Status: "active"})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{AccessKey: "live_abc", BaseURL: srv.URL})
	conv, err := client.StartConversation(context.Background(), ConversationMessage{
		To:        "31612345678",
		ChannelID: "chan-1",
		Type:      "text",
		Content:   MessageContent{Text: "hello"},
	})
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}

	if gotPath != "/conversations/start" {
		t.Errorf("expected /conversations/start, got %s", gotPath)
	}
	if gotAuth != "AccessKey live_abc" {
		t.Errorf("unexpected auth header: %s", gotAuth)
	}
	if gotBody.To != "31612345678" || gotBody.Type != "text" || gotBody.Content.Text != "hello" {
		t.Errorf("unexpected body: %+v", gotBody)
	}
	if conv.ID != "conv-1" {
		t.Errorf("expected conv-1, got %s", conv.ID)
	}
}

func TestStartConversation_MediaContentShape(t *testing.T) {
	var raw map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		json.NewEncoder(rw).Encode(Conversation{ID: "conv-2"})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{AccessKey: "k", BaseURL: srv.URL})
	_, err := client.StartConversation(context.Background(), ConversationMessage{
		To:      "31612345678",
		Type:    "audio",
		Content: MessageContent{Audio: &Media{URL: "http://x/a.ogg"}},
	})
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}

	content, ok := raw["content"].(map[string]any)
	if !ok {
		t.Fatalf("content missing: %v", raw)
	}
	audio, ok := content["audio"].(map[string]any)
	if !ok || audio["url"] != "http://x/a.ogg" {
		t.Errorf("unexpected audio content: %v", content)
	}
	// omitempty must keep the unused one-of fields off the wire
	for _, key := range []string{"text", "image", "video", "file", "location"} {
		if _, present := content[key]; present {
			t.Errorf("content key %s should be absent", key)
		}
	}
}

func TestStartConversation_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusUnauthorized)
		rw.Write([]byte(`{"errors":[{"code":2,"description":"Request not allowed"}]}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{AccessKey: "bad", BaseURL: srv.URL})
	_, err := client.StartConversation(context.Background(), ConversationMessage{
		To: "31612345678", Type: "text", Content: MessageContent{Text: "x"},
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", apiErr.StatusCode)
	}
}
