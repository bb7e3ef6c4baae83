package domain

// Sentinel text substituted for non-text content so the canonical text field
// is never left ambiguous. The image/audio patterns are BotMan's attachment
// placeholders; downstream consumers key on them to detect media-only turns.
const (
	ImagePattern   = "%%%_IMAGE_%%%"
	AudioPattern   = "%%%_AUDIO_%%%"
	TypeNotHandled = "MESSAGE TYPE NOT HANDLED."
)

// IncomingMessage is the canonical, provider-agnostic inbound unit.
// Constructed once per webhook event and never mutated afterwards. Exactly
// one content kind is populated: text, one image, one audio clip, or a
// sentinel for unrecognized content.
type IncomingMessage struct {
	Text      string
	Sender    string // channel address, e.g. a phone number
	Recipient string
	Raw       []byte // original webhook body, opaque to this package

	Images []Attachment // 0 or 1
	Audio  []Attachment // 0 or 1
}

// OutgoingMessage is produced by application logic in reply to an inbound
// turn. When Attachment is nil the message is plain text.
type OutgoingMessage struct {
	Text       string
	Attachment *Attachment
}
