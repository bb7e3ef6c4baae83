package driver

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/domain"
)

// Payload types, matching the provider's message type vocabulary.
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypeFile     = "file"
	TypeLocation = "location"
)

// ExtraSenderChannelID is the extra-parameter key callers use to supply a
// fallback channel id when the inbound event carried none.
const ExtraSenderChannelID = "sender_channel_id"

// ErrUnsupportedAttachment is returned by BuildPayload for attachment
// variants outside the supported set.
var ErrUnsupportedAttachment = errors.New("unsupported attachment type")

// Payload is the canonical parameter set describing one outgoing send.
// Type determines which of the kind-specific fields are populated.
type Payload struct {
	Recipient string // channel address, without the leading '+'
	ChannelID string
	Type      string

	Text      string
	URL       string
	Latitude  float64
	Longitude float64

	// Filename is generated for audio sends so downstream media handling
	// has a stable name with the source extension. It is not transmitted.
	Filename string
}

// BuildPayload translates an outgoing message into send parameters, routed
// back to the sender of the triggering incoming message. extra seeds the
// payload with caller-supplied parameters; computed values win on conflict.
func (r *Request) BuildPayload(outgoing domain.OutgoingMessage, incoming domain.IncomingMessage, extra map[string]string) (Payload, error) {
	var p Payload

	// Channel addresses go on the wire without the international prefix.
	p.Recipient = strings.Trim(incoming.Sender, "+")

	// Channel id precedence: the inbound event's channel binding wins over
	// a caller-supplied fallback. Neither being present is not an error
	// here; the dispatcher rejects the payload before any network call.
	if msg := r.event.Message; msg != nil && msg.ChannelID != "" {
		p.ChannelID = msg.ChannelID
	} else if id, ok := extra[ExtraSenderChannelID]; ok {
		p.ChannelID = id
	}

	attachment := outgoing.Attachment
	if attachment == nil {
		p.Type = TypeText
		p.Text = outgoing.Text
		return p, nil
	}

	switch attachment.Type {
	case domain.AttachmentImage:
		// Image captions are deliberately not forwarded; only the URL is.
		p.Type = TypeImage
		p.URL = attachment.URL

	case domain.AttachmentVideo:
		p.Type = TypeVideo
		p.URL = attachment.URL

	case domain.AttachmentAudio:
		p.Type = TypeAudio
		p.URL = attachment.URL
		p.Filename = audioFilename(attachment.URL)

	case domain.AttachmentFile:
		p.Type = TypeFile
		p.URL = attachment.URL

	case domain.AttachmentLocation:
		p.Type = TypeLocation
		p.Latitude = attachment.Latitude
		p.Longitude = attachment.Longitude

	default:
		return Payload{}, fmt.Errorf("%w: %q", ErrUnsupportedAttachment, attachment.Type)
	}

	return p, nil
}

// audioFilename generates a unique name for an audio clip, keeping the
// source URL's extension.
func audioFilename(rawURL string) string {
	ext := path.Ext(rawURL)
	if u, err := url.Parse(rawURL); err == nil {
		ext = path.Ext(u.Path)
	}
	return uuid.NewString() + ext
}
