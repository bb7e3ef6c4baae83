// Package responder supplies the application logic of the bot: it decides
// which outgoing message, if any, answers an inbound turn.
package responder

import (
	"log/slog"
	"strings"

	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/domain"
)

// Responder matches inbound messages against reply rules, with an optional
// echo fallback for sandbox testing.
type Responder struct {
	rules  []Rule
	echo   bool
	logger *slog.Logger
}

func New(rules []Rule, echo bool, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{rules: rules, echo: echo, logger: logger}
}

// Respond returns the reply for an inbound message. ok is false when the
// turn should not be answered.
//
// Unrecognized content is answered with the not-handled notice itself, so
// the user always gets a visible signal instead of silence.
func (r *Responder) Respond(msg domain.IncomingMessage) (domain.OutgoingMessage, bool) {
	if msg.Text == domain.TypeNotHandled {
		return domain.OutgoingMessage{Text: domain.TypeNotHandled}, true
	}

	text := strings.ToLower(msg.Text)
	for _, rule := range r.rules {
		for _, keyword := range rule.Match {
			if !strings.Contains(text, strings.ToLower(keyword)) {
				continue
			}
			r.logger.Debug("rule matched", "rule", rule.Name, "keyword", keyword)
			out := domain.OutgoingMessage{Text: rule.Reply.Text}
			if rule.Reply.Attachment != nil {
				out.Attachment = rule.Reply.Attachment.attachment()
			}
			return out, true
		}
	}

	if r.echo {
		return domain.OutgoingMessage{Text: msg.Text}, true
	}

	return domain.OutgoingMessage{}, false
}
