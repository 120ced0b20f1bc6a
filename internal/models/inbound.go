package models

// MediaRef points at an inbound attachment
type MediaRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Path     string `json:"path,omitempty"` // local copy, when downloaded
	URL      string `json:"url,omitempty"`
}

// InboundMessage is one message received from a contact on any channel.
// Interactive button replies arrive with the button title as Body.
type InboundMessage struct {
	From      string    `json:"from"`
	Body      string    `json:"body"`
	Image     *MediaRef `json:"image,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Channel   string    `json:"channel,omitempty"`
}
