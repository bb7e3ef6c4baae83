package messagebird

// ConversationMessage is the wire-level body of the Conversations API
// "start conversation" operation. Content must match Type: exactly one of
// the content fields is set.
type ConversationMessage struct {
	To        string         `json:"to"` // channel-specific, e.g. MSISDN for WhatsApp
	ChannelID string         `json:"channelId"`
	Type      string         `json:"type"`
	Content   MessageContent `json:"content"`
}

// MessageContent is the one-of content envelope keyed by the message type.
type MessageContent struct {
	Text     string    `json:"text,omitempty"`
	Image    *Media    `json:"image,omitempty"`
	Video    *Media    `json:"video,omitempty"`
	Audio    *Media    `json:"audio,omitempty"`
	File     *Media    `json:"file,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// Media references hosted media by URL.
type Media struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// Location is a geographic point in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Conversation is the subset of the start-conversation response this driver
// cares about.
type Conversation struct {
	ID        string `json:"id"`
	ContactID string `json:"contactId"`
	Status    string `json:"status"`
}
