package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/messagebird"
)

var (
	// ErrUnsupportedPayloadType is returned for payloads whose type is unset
	// or outside the provider vocabulary. The payload never reaches the wire.
	ErrUnsupportedPayloadType = errors.New("unsupported payload type")

	// ErrMissingChannelID is returned when neither the inbound event nor the
	// caller supplied a channel id to send through.
	ErrMissingChannelID = errors.New("payload has no channel id")
)

// Send dispatches a built payload through the Conversations API
// start-conversation operation. Self-addressed payloads are suppressed
// silently so sandbox echo traffic can never loop the bot onto itself.
// Transport and API failures propagate to the caller; this layer applies no
// retry policy.
func (d *WhatsApp) Send(ctx context.Context, p Payload) error {
	msg := messagebird.ConversationMessage{
		To:        p.Recipient,
		ChannelID: p.ChannelID,
		Type:      p.Type,
	}

	switch p.Type {
	case TypeText:
		msg.Content.Text = p.Text
	case TypeImage:
		msg.Content.Image = &messagebird.Media{URL: p.URL}
	case TypeVideo:
		// The conversations channel expects a caption on video content.
		msg.Content.Video = &messagebird.Media{URL: p.URL, Caption: "video"}
	case TypeAudio:
		msg.Content.Audio = &messagebird.Media{URL: p.URL}
	case TypeFile:
		msg.Content.File = &messagebird.Media{URL: p.URL}
	case TypeLocation:
		msg.Content.Location = &messagebird.Location{Latitude: p.Latitude, Longitude: p.Longitude}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedPayloadType, p.Type)
	}

	if strings.Trim(d.cfg.BusinessNumber, "+") == strings.Trim(p.Recipient, "+") {
		d.logger.Debug("suppressed self-addressed send", "recipient", p.Recipient)
		return nil
	}

	if p.ChannelID == "" {
		return ErrMissingChannelID
	}

	_, err := d.client.StartConversation(ctx, msg)
	return err
}
