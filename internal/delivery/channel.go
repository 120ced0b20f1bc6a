// Package delivery sends outbound WhatsApp messages over a free session channel
// and a paid official channel.
package delivery

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"
)

var (
	// ErrNotReady is returned by a channel without a live session
	ErrNotReady = errors.New("delivery: channel not ready")
	// ErrUnsupported is returned for a message kind the channel cannot send
	ErrUnsupported = errors.New("delivery: unsupported message kind")
)

// Message kinds, used as metric labels
const (
	KindText    = "text"
	KindMedia   = "media"
	KindButtons = "buttons"
)

// Channel is one outbound WhatsApp backend
type Channel interface {
	Name() string
	Ready() bool
	SendText(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to, filePath, caption string) error
	SendButtons(ctx context.Context, to, body string, options []string) error
}

// IsDocument reports whether the file is sent as a document rather than an image
func IsDocument(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".pdf"
}

// MimeType guesses the content type of an outbound attachment
func MimeType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "image/jpeg"
}
