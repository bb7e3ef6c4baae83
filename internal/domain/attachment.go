package domain

// AttachmentType discriminates the closed set of attachment variants.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentVideo    AttachmentType = "video"
	AttachmentAudio    AttachmentType = "audio"
	AttachmentFile     AttachmentType = "file"
	AttachmentLocation AttachmentType = "location"
	AttachmentUnknown  AttachmentType = ""
)

// Attachment is a tagged union over the supported media variants. Type
// determines which fields carry meaning: URL (and optional Title) for image,
// video, audio and file; Latitude/Longitude for location.
type Attachment struct {
	Type      AttachmentType
	URL       string
	Title     string
	Latitude  float64
	Longitude float64
}

func NewImage(url, title string) *Attachment {
	return &Attachment{Type: AttachmentImage, URL: url, Title: title}
}

func NewVideo(url string) *Attachment {
	return &Attachment{Type: AttachmentVideo, URL: url}
}

func NewAudio(url string) *Attachment {
	return &Attachment{Type: AttachmentAudio, URL: url}
}

func NewFile(url string) *Attachment {
	return &Attachment{Type: AttachmentFile, URL: url}
}

func NewLocation(latitude, longitude float64) *Attachment {
	return &Attachment{Type: AttachmentLocation, Latitude: latitude, Longitude: longitude}
}
