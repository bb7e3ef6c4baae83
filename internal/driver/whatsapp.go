// Package driver implements the MessageBird WhatsApp channel driver:
// webhook classification, normalization into the generic message model,
// outgoing payload construction, and dispatch through the Conversations API.
package driver

import (
	"log/slog"

	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/config"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/domain"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/messagebird"
)

// DriverName identifies this driver to the surrounding framework.
const DriverName = "MessagebirdWhatsapp"

// PlatformWhatsApp is the platform tag carried by events that belong to
// this channel.
const PlatformWhatsApp = "whatsapp"

// WhatsApp is the channel driver. It holds only process-wide collaborators;
// all per-delivery state lives on Request.
type WhatsApp struct {
	cfg    config.MessageBirdConfig
	client *messagebird.Client
	logger *slog.Logger
}

func New(cfg config.MessageBirdConfig, client *messagebird.Client, logger *slog.Logger) *WhatsApp {
	if logger == nil {
		logger = slog.Default()
	}
	return &WhatsApp{cfg: cfg, client: client, logger: logger}
}

func (d *WhatsApp) Name() string { return DriverName }

// Request is the scope of a single webhook delivery: the decoded event, the
// authenticity verdict from signature verification, and the memoized
// extraction result. One Request is created per delivery and discarded
// afterwards.
type Request struct {
	driver    *WhatsApp
	event     Event
	raw       []byte
	authentic bool

	extracted bool
	messages  []domain.IncomingMessage
}

// NewRequest opens the processing scope for one webhook delivery.
// authentic is the outcome of signature verification, decided by the caller.
func (d *WhatsApp) NewRequest(raw []byte, event Event, authentic bool) *Request {
	return &Request{driver: d, event: event, raw: raw, authentic: authentic}
}

// EventMessage exposes the decoded channel message, nil when the envelope
// carried none.
func (r *Request) EventMessage() *EventMessage {
	return r.event.Message
}

// Matches reports whether this delivery belongs to the WhatsApp channel.
// It must hold before any other processing; a non-match has no side effects.
func (r *Request) Matches() bool {
	msg := r.event.Message
	if msg == nil || msg.Platform == "" {
		return false
	}
	return msg.Platform == PlatformWhatsApp && r.authentic
}

// Messages normalizes the event into canonical incoming messages (0 or 1
// in this channel's model). The result is memoized so repeated calls observe
// the same snapshot of the turn without reparsing.
func (r *Request) Messages() []domain.IncomingMessage {
	if !r.extracted {
		r.messages = r.extract()
		r.extracted = true
	}
	return r.messages
}

func (r *Request) extract() []domain.IncomingMessage {
	msg := r.event.Message
	if msg == nil {
		return nil
	}

	sender := msg.From
	recipient := msg.To

	// Provider test fan-out can address a message to its own sender;
	// processing those would echo the bot back at itself.
	if sender == recipient {
		return nil
	}
	// "sent" events are echoes of our own outbound traffic, not new turns.
	if msg.Direction == DirectionSent {
		return nil
	}

	incoming := domain.IncomingMessage{
		Sender:    sender,
		Recipient: recipient,
		Raw:       r.raw,
	}

	switch msg.Type {
	case MessageTypeText:
		incoming.Text = msg.Content.Text

	case MessageTypeImage:
		var url, caption string
		if msg.Content.Image != nil {
			url = msg.Content.Image.URL
			caption = msg.Content.Image.Caption
		}
		incoming.Text = domain.ImagePattern
		incoming.Images = []domain.Attachment{*domain.NewImage(url, caption)}

	case MessageTypeAudio:
		var url string
		if msg.Content.Audio != nil {
			url = msg.Content.Audio.URL
		}
		incoming.Text = domain.AudioPattern
		incoming.Audio = []domain.Attachment{*domain.NewAudio(url)}

	default:
		// Unknown content degrades to a visible placeholder instead of an
		// error so the conversation does not stall silently.
		incoming.Text = domain.TypeNotHandled
	}

	return []domain.IncomingMessage{incoming}
}
