package driver

import "encoding/json"

// Message direction and content type tags used on the wire.
const (
	DirectionReceived = "received"
	DirectionSent     = "sent"

	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeAudio = "audio"
)

// Event is the webhook delivery envelope for conversation events.
type Event struct {
	Message *EventMessage `json:"message"`
}

// EventMessage is the channel-level message inside a webhook event.
type EventMessage struct {
	ID        string       `json:"id,omitempty"`
	Platform  string       `json:"platform"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Direction string       `json:"direction"`
	Type      string       `json:"type"`
	ChannelID string       `json:"channelId,omitempty"`
	Content   EventContent `json:"content"`
}

// EventContent carries the type-specific body. Only the field matching the
// message type tag is meaningful.
type EventContent struct {
	Text  string        `json:"text,omitempty"`
	Image *MediaContent `json:"image,omitempty"`
	Audio *MediaContent `json:"audio,omitempty"`
}

// MediaContent references inbound media hosted by the provider.
type MediaContent struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// ParseEvent decodes a webhook body into an Event.
func ParseEvent(body []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(body, &ev)
	return ev, err
}
