package delivery

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/stayflow/stayflow-backend/internal/config"
	"github.com/stayflow/stayflow-backend/internal/logger"
)

// messageCreator is the slice of the Twilio REST API we use
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioChannel is the alternate paid channel. Media must be reachable by URL,
// so files are published under the uploads directory served at /api/uploads.
type TwilioChannel struct {
	api        messageCreator
	from       string // Format: "whatsapp:+14155238886"
	publicBase string
	uploadsDir string
}

// NewTwilioChannel creates the Twilio sender
func NewTwilioChannel(cfg config.TwilioConfig, publicBaseURL, uploadsDir string) (*TwilioChannel, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioChannel{
		api:        client.Api,
		from:       cfg.From,
		publicBase: strings.TrimRight(publicBaseURL, "/"),
		uploadsDir: uploadsDir,
	}, nil
}

func (t *TwilioChannel) Name() string { return "twilio" }

func (t *TwilioChannel) Ready() bool { return t.api != nil }

func (t *TwilioChannel) create(params *twilioApi.CreateMessageParams, to string) error {
	params.SetFrom(t.from)
	params.SetTo("whatsapp:+" + strings.TrimPrefix(to, "+"))

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		logger.Debug("✅ WhatsApp message sent via Twilio", "sid", *resp.Sid)
	}
	return nil
}

func (t *TwilioChannel) SendText(_ context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetBody(body)
	return t.create(params, to)
}

// SendButtons renders the options as a numbered list; replies arrive as text
func (t *TwilioChannel) SendButtons(ctx context.Context, to, body string, options []string) error {
	return t.SendText(ctx, to, NumberedOptions(body, options))
}

func (t *TwilioChannel) SendMedia(_ context.Context, to, filePath, caption string) error {
	if t.publicBase == "" {
		return fmt.Errorf("%w: PUBLIC_BASE_URL not set", ErrUnsupported)
	}
	name, err := t.publish(filePath)
	if err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetMediaUrl([]string{t.publicBase + "/api/uploads/" + name})
	if caption != "" {
		params.SetBody(caption)
	}
	return t.create(params, to)
}

// publish makes filePath available under uploadsDir and returns its served name
func (t *TwilioChannel) publish(filePath string) (string, error) {
	absUploads, err := filepath.Abs(t.uploadsDir)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filePath)
	if err != nil {
		return "", err
	}
	if filepath.Dir(absFile) == absUploads {
		if _, err := os.Stat(absFile); err != nil {
			return "", fmt.Errorf("twilio: %w", err)
		}
		return filepath.Base(absFile), nil
	}

	src, err := os.Open(absFile)
	if err != nil {
		return "", fmt.Errorf("twilio: open media: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(absUploads, 0o755); err != nil {
		return "", fmt.Errorf("twilio: uploads dir: %w", err)
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(absFile))
	dst, err := os.Create(filepath.Join(absUploads, name))
	if err != nil {
		return "", fmt.Errorf("twilio: publish media: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("twilio: publish media: %w", err)
	}
	return name, nil
}

// NumberedOptions renders button options as text for channels without buttons
func NumberedOptions(body string, options []string) string {
	var b strings.Builder
	b.WriteString(body)
	if len(options) > 0 {
		b.WriteString("\n")
	}
	for i, opt := range options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
	}
	if len(options) > 0 {
		b.WriteString("\n\n_Reply with the option name_")
	}
	return b.String()
}
