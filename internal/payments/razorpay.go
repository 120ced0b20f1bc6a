// Package payments creates Razorpay payment links and decodes their webhooks.
package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/stayflow/stayflow-backend/internal/utils"
)

const (
	DefaultBaseURL = "https://api.razorpay.com"

	// EventPaymentLinkPaid is sent once a link has been fully paid
	EventPaymentLinkPaid = "payment_link.paid"

	placeholderEmail = "tenant@stayflow.com"
)

// ErrNotConfigured is returned when no key pair is set
var ErrNotConfigured = errors.New("razorpay: not configured")

// LinkRequest describes one tenant bill to collect
type LinkRequest struct {
	Amount      float64 // rupees
	Name        string
	Phone       string
	Room        string
	Description string
}

// RazorpayClient calls the Payment Links API
type RazorpayClient struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

func NewRazorpayClient(keyID, keySecret string, httpClient *http.Client) *RazorpayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &RazorpayClient{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    DefaultBaseURL,
		httpClient: httpClient,
	}
}

// WithBaseURL points the client at another host (tests)
func (c *RazorpayClient) WithBaseURL(base string) *RazorpayClient {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// Configured reports whether both keys are present
func (c *RazorpayClient) Configured() bool {
	return c != nil && c.keyID != "" && c.keySecret != ""
}

type linkCustomer struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
}

type linkNotify struct {
	SMS   bool `json:"sms"`
	Email bool `json:"email"`
}

type linkPayload struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	AcceptPartial  bool              `json:"accept_partial"`
	Description    string            `json:"description"`
	Customer       linkCustomer      `json:"customer"`
	Notify         linkNotify        `json:"notify"`
	ReminderEnable bool              `json:"reminder_enable"`
	Notes          map[string]string `json:"notes"`
}

type linkResponse struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Error    *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

// CreateLink creates a payment link and returns its short URL
func (c *RazorpayClient) CreateLink(ctx context.Context, req LinkRequest) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("razorpay: amount must be positive, got %.2f", req.Amount)
	}
	room := req.Room
	if room == "" {
		room = "N/A"
	}
	desc := req.Description
	if desc == "" {
		desc = fmt.Sprintf("StayFlow Rent & EB - %s (Room %s)", req.Name, room)
	}

	payload := linkPayload{
		Amount:        int64(math.Round(req.Amount * 100)),
		Currency:      "INR",
		AcceptPartial: false,
		Description:   desc,
		Customer: linkCustomer{
			Name:    req.Name,
			Contact: utils.LastTen(req.Phone),
			Email:   placeholderEmail,
		},
		Notify:         linkNotify{SMS: true, Email: true},
		ReminderEnable: true,
		Notes: map[string]string{
			"room":  room,
			"phone": utils.NormalizePhone(req.Phone),
			"name":  req.Name,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("razorpay: encode: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_links", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("razorpay: build request: %w", err)
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("razorpay: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("razorpay: read response: %w", err)
	}
	var decoded linkResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("razorpay: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		if decoded.Error != nil {
			return "", fmt.Errorf("razorpay: status %d: %s", resp.StatusCode, decoded.Error.Description)
		}
		return "", fmt.Errorf("razorpay: status %d", resp.StatusCode)
	}
	if decoded.ShortURL == "" {
		return "", errors.New("razorpay: response has no short_url")
	}
	return decoded.ShortURL, nil
}

// Sign returns the hex HMAC-SHA256 of body, the X-Razorpay-Signature format
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook body against its X-Razorpay-Signature header
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}

// WebhookEvent is the subset of a Razorpay webhook we act on
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			Entity struct {
				ID         string            `json:"id"`
				Amount     int64             `json:"amount"`
				AmountPaid int64             `json:"amount_paid"`
				Status     string            `json:"status"`
				Notes      map[string]string `json:"notes"`
				Customer   struct {
					Name    string `json:"name"`
					Contact string `json:"contact"`
				} `json:"customer"`
			} `json:"entity"`
		} `json:"payment_link"`
		Payment struct {
			Entity struct {
				ID     string `json:"id"`
				Amount int64  `json:"amount"`
				Method string `json:"method"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// LinkPayment is a decoded payment_link.paid event
type LinkPayment struct {
	LinkID    string
	PaymentID string
	Amount    float64 // rupees
	Phone     string
	Name      string
	Room      string
	Method    string
}

// ParseWebhook decodes body. ok is false for events other than payment_link.paid.
func ParseWebhook(body []byte) (LinkPayment, bool, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return LinkPayment{}, false, fmt.Errorf("razorpay: decode webhook: %w", err)
	}
	if ev.Event != EventPaymentLinkPaid {
		return LinkPayment{}, false, nil
	}

	link := ev.Payload.PaymentLink.Entity
	pay := ev.Payload.Payment.Entity

	paise := link.AmountPaid
	if paise == 0 {
		paise = pay.Amount
	}
	if paise == 0 {
		paise = link.Amount
	}

	phone := link.Notes["phone"]
	if phone == "" {
		phone = link.Customer.Contact
	}
	name := link.Notes["name"]
	if name == "" {
		name = link.Customer.Name
	}

	return LinkPayment{
		LinkID:    link.ID,
		PaymentID: pay.ID,
		Amount:    float64(paise) / 100,
		Phone:     phone,
		Name:      name,
		Room:      link.Notes["room"],
		Method:    pay.Method,
	}, true, nil
}
