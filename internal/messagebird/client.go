package messagebird

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Conversations API base endpoints. The sandbox endpoint serves WhatsApp
// test traffic without reaching real end users.
const (
	ConversationsEndpoint                = "https://conversations.messagebird.com/v1"
	ConversationsWhatsAppSandboxEndpoint = "https://whatsapp-sandbox.messagebird.com/v1"
)

const (
	defaultTimeout           = 15 * time.Second
	defaultConnectionTimeout = 10 * time.Second
)

// ClientConfig configures the Conversations API client.
type ClientConfig struct {
	AccessKey         string
	SandboxEnabled    bool          // selects the WhatsApp sandbox base endpoint
	Timeout           time.Duration // overall request timeout (default 15s)
	ConnectionTimeout time.Duration // dial timeout (default 10s)
	BaseURL           string        // endpoint override, used by tests
	Logger            *slog.Logger
}

// Client talks to the MessageBird Conversations API. It is safe for
// concurrent use and should be constructed once and shared.
type Client struct {
	accessKey  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = defaultConnectionTimeout
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.SandboxEnabled {
			baseURL = ConversationsWhatsAppSandboxEndpoint
		} else {
			baseURL = ConversationsEndpoint
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		accessKey:  cfg.AccessKey,
		baseURL:    baseURL,
		httpClient: newHTTPClient(cfg.Timeout, cfg.ConnectionTimeout),
		logger:     logger,
	}
}

// BaseURL returns the endpoint the client dispatches against.
func (c *Client) BaseURL() string { return c.baseURL }

// newHTTPClient builds a pooled HTTP client with separate dial and overall
// timeouts.
func newHTTPClient(timeout, connectionTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   connectionTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   connectionTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// APIError is a non-2xx response from the Conversations API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messagebird API %d: %s", e.StatusCode, e.Body)
}

// StartConversation sends a message through the "start conversation"
// operation, creating the conversation if the recipient has none.
func (c *Client) StartConversation(ctx context.Context, msg ConversationMessage) (*Conversation, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	url := c.baseURL + "/conversations/start"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "AccessKey "+c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("start conversation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var conv Conversation
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("conversation started", "id", conv.ID, "status", conv.Status)
	return &conv, nil
}
