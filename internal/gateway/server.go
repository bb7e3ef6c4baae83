// Package gateway runs the webhook HTTP server and drives one delivery
// end to end: verify, classify, normalize, respond, dispatch.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/config"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/domain"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/driver"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/journal"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/messagebird"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/metrics"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/responder"
)

// maxBodySize caps webhook request bodies. Conversation events are small;
// anything larger is not a legitimate delivery.
const maxBodySize = 1 << 20

// Server is the webhook gateway. It owns the HTTP listener and wires the
// driver, responder, and journal together per delivery.
type Server struct {
	cfg       *config.Config
	drv       *driver.WhatsApp
	resp      *responder.Responder
	validator *messagebird.Validator
	store     *journal.Store // nil when journaling is disabled
	logger    *slog.Logger
	server    *http.Server
}

// New assembles the gateway. store may be nil.
func New(cfg *config.Config, drv *driver.WhatsApp, resp *responder.Responder, store *journal.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		drv:    drv,
		resp:   resp,
		store:  store,
		logger: logger,
	}
	if cfg.MessageBird.SigningKey != "" {
		s.validator = messagebird.NewValidator(cfg.MessageBird.SigningKey)
	}
	return s
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Webhook.Path, s.handleWebhook)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		mux.HandleFunc(s.cfg.Metrics.Endpoint, metrics.Collector.Handler())
	}

	addr := net.JoinHostPort(s.cfg.Webhook.Host, strconv.Itoa(s.cfg.Webhook.Port))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting", "addr", addr, "path", s.cfg.Webhook.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
}

// Handler exposes the webhook endpoint for tests.
func (s *Server) Handler() http.HandlerFunc { return s.handleWebhook }

func (s *Server) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	metrics.WebhooksTotal.Inc()
	metrics.WebhooksInflight.Inc()
	defer metrics.WebhooksInflight.Dec()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		metrics.WebhooksRejected.Inc()
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// With a signing key configured, unsigned or tampered deliveries never
	// reach the driver.
	if s.validator != nil && !s.validator.ValidateRequest(r, body) {
		metrics.WebhooksRejected.Inc()
		s.logger.Warn("rejected webhook with invalid signature", "remote", r.RemoteAddr)
		http.Error(rw, "Invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := driver.ParseEvent(body)
	if err != nil {
		metrics.WebhooksRejected.Inc()
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	req := s.drv.NewRequest(body, event, true)
	if !req.Matches() {
		// Not ours. Acknowledge so the provider does not retry.
		s.writeStatus(rw, http.StatusOK, "ignored")
		return
	}

	msgs := req.Messages()
	if len(msgs) == 0 {
		metrics.TurnsSuppressed.Inc()
		s.writeStatus(rw, http.StatusOK, "suppressed")
		return
	}

	for _, msg := range msgs {
		s.handleMessage(r.Context(), req, msg)
	}

	s.writeStatus(rw, http.StatusOK, "ok")
}

// handleMessage runs one normalized inbound message through respond and
// dispatch. Failures are logged and counted; the webhook is still
// acknowledged so the provider does not redeliver a turn we already saw.
func (s *Server) handleMessage(ctx context.Context, req *driver.Request, msg domain.IncomingMessage) {
	metrics.MessagesReceived.Inc()
	if msg.Text == domain.TypeNotHandled {
		metrics.UnhandledType.Inc()
	}

	s.logger.Info("message received", "sender", msg.Sender, "recipient", msg.Recipient, "text_len", len(msg.Text))
	s.journalIncoming(ctx, req, msg)

	out, ok := s.resp.Respond(msg)
	if !ok {
		return
	}

	extra := map[string]string{}
	if s.cfg.MessageBird.FallbackChannelID != "" {
		extra[driver.ExtraSenderChannelID] = s.cfg.MessageBird.FallbackChannelID
	}

	payload, err := req.BuildPayload(out, msg, extra)
	if err != nil {
		s.logger.Error("cannot build payload", "err", err)
		return
	}

	metrics.SendsTotal.Inc()
	start := time.Now()
	err = s.drv.Send(ctx, payload)
	metrics.SendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SendsFailed.Inc()
		s.logger.Error("dispatch failed", "recipient", payload.Recipient, "type", payload.Type, "err", err)
		return
	}

	s.journalOutgoing(ctx, payload)
}

func (s *Server) journalIncoming(ctx context.Context, req *driver.Request, msg domain.IncomingMessage) {
	if s.store == nil {
		return
	}
	entry := journal.Entry{
		Direction: journal.DirectionInbound,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Type:      driver.TypeText,
		Content:   msg.Text,
	}
	if m := req.EventMessage(); m != nil {
		entry.ChannelID = m.ChannelID
		entry.Type = m.Type
	}
	if err := s.store.Record(ctx, entry); err != nil {
		s.logger.Warn("cannot journal inbound message", "err", err)
	}
}

func (s *Server) journalOutgoing(ctx context.Context, p driver.Payload) {
	if s.store == nil {
		return
	}
	content := p.Text
	if content == "" {
		content = p.URL
	}
	entry := journal.Entry{
		Direction: journal.DirectionOutbound,
		Sender:    s.cfg.MessageBird.BusinessNumber,
		Recipient: p.Recipient,
		ChannelID: p.ChannelID,
		Type:      p.Type,
		Content:   content,
		Filename:  p.Filename,
	}
	if err := s.store.Record(ctx, entry); err != nil {
		s.logger.Warn("cannot journal outgoing message", "err", err)
	}
}

func (s *Server) writeStatus(rw http.ResponseWriter, code int, status string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	json.NewEncoder(rw).Encode(map[string]string{"status": status})
}
