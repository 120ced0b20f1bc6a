package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
)

// MessageProcessor runs one inbound message through the assistant
type MessageProcessor interface {
	HandleIncoming(ctx context.Context, msg models.InboundMessage)
}

// MediaDownloader fetches an inbound Cloud API attachment into dir
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaID, dir string) (*models.MediaRef, error)
}

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	processor   MessageProcessor
	media       MediaDownloader // may be nil
	verifyToken string
	uploadsDir  string

	// dispatch runs message processing after the webhook has been acknowledged
	dispatch func(fn func())
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(processor MessageProcessor, media MediaDownloader, verifyToken, uploadsDir string) *WhatsAppHandler {
	return &WhatsAppHandler{
		processor:   processor,
		media:       media,
		verifyToken: verifyToken,
		uploadsDir:  uploadsDir,
		dispatch:    func(fn func()) { go fn() },
	}
}

// Verify answers the Cloud API subscription handshake
func (h *WhatsAppHandler) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		logger.Info("✅ Webhook verified")
		return c.Status(fiber.StatusOK).SendString(challenge)
	}
	return c.SendStatus(fiber.StatusForbidden)
}

// CloudWebhookPayload is the Cloud API notification envelope
type CloudWebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []CloudMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// CloudMessage is one inbound Cloud API message
type CloudMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image *struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
		Caption  string `json:"caption"`
	} `json:"image,omitempty"`
	Interactive *struct {
		Type        string       `json:"type"`
		ButtonReply *replyOption `json:"button_reply,omitempty"`
		ListReply   *replyOption `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

type replyOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// text returns the user-visible text; a button or list choice arrives as its title
func (m CloudMessage) text() string {
	switch {
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		return m.Interactive.ButtonReply.Title
	case m.Interactive != nil && m.Interactive.ListReply != nil:
		return m.Interactive.ListReply.Title
	case m.Text != nil:
		return m.Text.Body
	case m.Image != nil:
		return m.Image.Caption
	}
	return ""
}

// HandleWebhook processes Cloud API events. Messages are handled after the
// 200 is returned so Meta does not retry slow replies.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload CloudWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		logger.Warn("Error parsing webhook", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}
	if payload.Object != "whatsapp_business_account" {
		return c.SendStatus(fiber.StatusNotFound)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				h.accept(m)
			}
		}
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *WhatsAppHandler) accept(m CloudMessage) {
	text := m.text()
	if text == "" && m.Image == nil {
		logger.Debug("Ignoring unsupported message", "from", m.From, "type", m.Type)
		return
	}
	logger.Info("📱 WhatsApp message received", "from", m.From, "type", m.Type)

	h.dispatch(func() {
		ctx := context.Background()
		msg := models.InboundMessage{
			From:      m.From,
			Body:      text,
			MessageID: m.ID,
			Channel:   "cloudapi",
		}
		if m.Image != nil {
			msg.Image = h.fetchImage(ctx, m.Image.ID, m.Image.MimeType)
		}
		h.processor.HandleIncoming(ctx, msg)
	})
}

func (h *WhatsAppHandler) fetchImage(ctx context.Context, mediaID, mimeType string) *models.MediaRef {
	ref := &models.MediaRef{ID: mediaID, MimeType: mimeType}
	if h.media == nil {
		return ref
	}
	got, err := h.media.DownloadMedia(ctx, mediaID, h.uploadsDir)
	if err != nil {
		logger.Warn("Failed to download inbound media", "media_id", mediaID, "error", err)
	}
	if got == nil {
		return ref
	}
	if got.MimeType == "" {
		got.MimeType = mimeType
	}
	return got
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid        string `form:"MessageSid"`
	AccountSid        string `form:"AccountSid"`
	From              string `form:"From"` // WhatsApp number (whatsapp:+919876543210)
	To                string `form:"To"`
	Body              string `form:"Body"`
	ButtonText        string `form:"ButtonText"`
	NumMedia          string `form:"NumMedia"`
	MediaUrl0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
}

// HandleTwilioWebhook processes messages arriving through the Twilio sender
func (h *WhatsAppHandler) HandleTwilioWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		logger.Warn("Error parsing Twilio webhook", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	msg := models.InboundMessage{
		From:      strings.TrimPrefix(payload.From, "whatsapp:"),
		Body:      payload.Body,
		MessageID: payload.MessageSid,
		Channel:   "twilio",
	}
	if payload.ButtonText != "" {
		msg.Body = payload.ButtonText
	}
	if n, _ := strconv.Atoi(payload.NumMedia); n > 0 && strings.HasPrefix(payload.MediaContentType0, "image/") {
		msg.Image = &models.MediaRef{ID: payload.MessageSid, MimeType: payload.MediaContentType0, URL: payload.MediaUrl0}
	}

	// Status callbacks carry neither body nor media
	if msg.From == "" || (msg.Body == "" && msg.Image == nil) {
		return c.SendStatus(fiber.StatusOK)
	}

	logger.Info("📱 WhatsApp message received", "from", msg.From, "channel", msg.Channel)
	h.dispatch(func() {
		h.processor.HandleIncoming(context.Background(), msg)
	})

	// Acknowledge webhook receipt
	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload is the development shortcut for simulating a message
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
	ImageID string `json:"image_id,omitempty"`
}

// HandleTestWebhook processes test WhatsApp messages synchronously (for development)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}
	if payload.From == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from is required",
		})
	}

	logger.Info("🧪 Test webhook received", "from", payload.From, "message", payload.Message)

	msg := models.InboundMessage{From: payload.From, Body: payload.Message, Channel: "test"}
	if payload.ImageID != "" {
		msg.Image = &models.MediaRef{ID: payload.ImageID}
	}
	h.processor.HandleIncoming(c.UserContext(), msg)

	return c.JSON(fiber.Map{
		"success": true,
	})
}
