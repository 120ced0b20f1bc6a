package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stayflow/stayflow-backend/internal/config"
	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
)

const (
	maxReplyButtons    = 3
	maxButtonTitleLen  = 20
	maxListRows        = 10
	maxListRowTitleLen = 24
)

// CloudAPIChannel sends through the official WhatsApp Cloud API (Graph)
type CloudAPIChannel struct {
	baseURL       string
	token         string
	phoneNumberID string
	httpClient    *http.Client
	limiter       *rate.Limiter
}

// NewCloudAPIChannel creates the paid channel. Sends wait on a token bucket
// sized by cfg.RatePerSec.
func NewCloudAPIChannel(cfg config.WhatsAppConfig, httpClient *http.Client) *CloudAPIChannel {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &CloudAPIChannel{
		baseURL:       strings.TrimRight(cfg.APIBase, "/"),
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		httpClient:    httpClient,
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *CloudAPIChannel) Name() string { return "cloudapi" }

func (c *CloudAPIChannel) Ready() bool {
	return c.token != "" && c.phoneNumberID != ""
}

type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

func (c *CloudAPIChannel) do(ctx context.Context, path, contentType string, body io.Reader, out interface{}) error {
	if !c.Ready() {
		return ErrNotReady
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("cloudapi: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s/%s", c.baseURL, c.phoneNumberID, path), body)
	if err != nil {
		return fmt.Errorf("cloudapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloudapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("cloudapi: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var ge graphError
		if json.Unmarshal(raw, &ge) == nil && ge.Error != nil {
			return fmt.Errorf("cloudapi: status %d: %s (code %d)", resp.StatusCode, ge.Error.Message, ge.Error.Code)
		}
		return fmt.Errorf("cloudapi: status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("cloudapi: decode response: %w", err)
		}
	}
	return nil
}

func (c *CloudAPIChannel) sendMessage(ctx context.Context, payload map[string]interface{}) error {
	payload["messaging_product"] = "whatsapp"
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cloudapi: encode message: %w", err)
	}
	var out sendResponse
	if err := c.do(ctx, "messages", "application/json", bytes.NewReader(body), &out); err != nil {
		return err
	}
	if len(out.Messages) > 0 {
		logger.Debug("Message sent via Cloud API", "to", payload["to"], "id", out.Messages[0].ID)
	}
	return nil
}

func (c *CloudAPIChannel) SendText(ctx context.Context, to, body string) error {
	return c.sendMessage(ctx, map[string]interface{}{
		"to":   to,
		"type": "text",
		"text": map[string]string{"body": body},
	})
}

func (c *CloudAPIChannel) SendButtons(ctx context.Context, to, body string, options []string) error {
	if len(options) == 0 {
		return c.SendText(ctx, to, body)
	}
	return c.sendMessage(ctx, map[string]interface{}{
		"to":          to,
		"type":        "interactive",
		"interactive": interactivePayload(body, options),
	})
}

// interactivePayload renders up to three reply buttons, or a list for more options
func interactivePayload(body string, options []string) map[string]interface{} {
	if len(options) <= maxReplyButtons {
		buttons := make([]map[string]interface{}, 0, len(options))
		for i, opt := range options {
			buttons = append(buttons, map[string]interface{}{
				"type":  "reply",
				"reply": map[string]string{"id": fmt.Sprintf("btn_%d", i), "title": truncate(opt, maxButtonTitleLen)},
			})
		}
		return map[string]interface{}{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]interface{}{"buttons": buttons},
		}
	}

	rows := make([]map[string]string, 0, len(options))
	for i, opt := range options {
		if i == maxListRows {
			break
		}
		rows = append(rows, map[string]string{"id": fmt.Sprintf("btn_%d", i), "title": truncate(opt, maxListRowTitleLen)})
	}
	return map[string]interface{}{
		"type": "list",
		"body": map[string]string{"text": body},
		"action": map[string]interface{}{
			"button":   "Choose",
			"sections": []map[string]interface{}{{"title": "Options", "rows": rows}},
		},
	}
}

// Upload stores the file as WhatsApp media and returns its id
func (c *CloudAPIChannel) Upload(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("cloudapi: read %s: %w", filePath, err)
	}
	mimeType := MimeType(filePath)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("messaging_product", "whatsapp")
	_ = w.WriteField("type", mimeType)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(filePath)))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("cloudapi: multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("cloudapi: multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("cloudapi: multipart: %w", err)
	}

	var out uploadResponse
	if err := c.do(ctx, "media", w.FormDataContentType(), &buf, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("cloudapi: upload returned no media id")
	}
	return out.ID, nil
}

// SendMedia uploads the file, then sends a message referencing the media id
func (c *CloudAPIChannel) SendMedia(ctx context.Context, to, filePath, caption string) error {
	mediaID, err := c.Upload(ctx, filePath)
	if err != nil {
		return err
	}

	kind := "image"
	media := map[string]string{"id": mediaID}
	if caption != "" {
		media["caption"] = caption
	}
	if IsDocument(filePath) {
		kind = "document"
		media["filename"] = filepath.Base(filePath)
	}
	return c.sendMessage(ctx, map[string]interface{}{
		"to":   to,
		"type": kind,
		kind:   media,
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

func (c *CloudAPIChannel) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("cloudapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("cloudapi: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cloudapi: GET %s: status %d", url, resp.StatusCode)
	}
	return raw, nil
}

// DownloadMedia resolves an inbound media id and saves the file under dir.
// The returned reference keeps the id even when the download fails.
func (c *CloudAPIChannel) DownloadMedia(ctx context.Context, mediaID, dir string) (*models.MediaRef, error) {
	ref := &models.MediaRef{ID: mediaID}
	if !c.Ready() {
		return ref, ErrNotReady
	}

	raw, err := c.get(ctx, fmt.Sprintf("%s/%s", c.baseURL, mediaID))
	if err != nil {
		return ref, err
	}
	var info mediaInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return ref, fmt.Errorf("cloudapi: decode media info: %w", err)
	}
	ref.URL = info.URL
	ref.MimeType = info.MimeType
	if info.URL == "" {
		return ref, fmt.Errorf("cloudapi: media %s has no url", mediaID)
	}

	data, err := c.get(ctx, info.URL)
	if err != nil {
		return ref, err
	}
	path, err := saveInboundMedia(dir, data, info.MimeType)
	if err != nil {
		return ref, fmt.Errorf("cloudapi: store media: %w", err)
	}
	ref.Path = path
	return ref, nil
}
