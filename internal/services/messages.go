package services

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/stayflow/stayflow-backend/internal/models"
)

// Fixed replies
const (
	MsgNotUnderstood   = "I'm sorry, I couldn't understand that. Type HI to see what I can do!"
	MsgAssistantDown   = "I'm here to help, but having trouble thinking right now. Try a command like RENT or JOIN!"
	MsgNotRegistered   = "You are not registered. Type JOIN to start."
	MsgDialogCancelled = "❎ Cancelled. Type HI to see what I can do."
	MsgSomethingWrong  = "❌ Sorry, something went wrong. Please try again."

	MsgAskPhone       = "Confirm your Phone Number (the one we should track)"
	MsgAskRoom        = "Room Number"
	MsgAskSharing     = "Choose Sharing Type (Send number 1-4):\n1. One Sharing (₹9000)\n2. Two Sharing (₹7000)\n3. Three Sharing (₹6500)\n4. Four Sharing (₹6500)"
	MsgInvalidSharing = "Invalid choice. Please send 1, 2, 3, or 4."
	MsgAskAdvance     = "Advance Paid"
	MsgAskAadhaar     = "Please upload a photo of your Aadhaar Card."
	MsgNeedAadhaar    = "Please upload an *image* of your Aadhaar Card."
	MsgRegisterFailed = "❌ Registration failed. Please try again later."

	MsgAskProof       = "Please send transaction ID (and share screenshot if possible)."
	MsgSmartAskProof  = "Got it! Please share the *Transaction ID* or a screenshot of your payment."
	MsgAskCashAmount  = "Amount paid?"
	MsgSmartAskAmount = "I see you paid by cash! Please tell me the *Amount* you paid?"
	MsgAskCashDate    = "Date of payment? (DD/MM/YYYY)"
	MsgPaymentThanks  = "✅ Payment Received. Thank you."

	MsgHelpPrompt     = "How can we help you today?"
	MsgAnnouncePrompt = "What is the announcement?"
	MsgAnnounceSent   = "✅ Announcement sent to all active tenants."

	MsgSetEBUsage = "Usage: SET EB [ROOM] [UNITS]\nExample: SET EB 101 100"
	MsgBadUnits   = "❌ Invalid units. Please send a number."
)

var (
	helpOptions    = []string{"Food", "Payment", "Maintenance", "Other"}
	advanceOptions = []string{"ADJUST", "REFUND"}
)

// Default corrections when the validator rejects without a message
var validationDefaults = map[string]string{
	models.StepName:        "Please provide a valid full name.",
	models.StepPhoneNumber: "Please provide a valid phone number.",
	models.StepRoom:        "Please provide a valid room number (e.g., 101, G1).",
	models.StepAdvance:     "Please provide a valid advance amount (numbers only).",
	ValidateMoney:          "Please provide a valid amount.",
	ValidateDate:           "Please provide a valid date.",
	ValidateTransID:        "Please provide a valid Transaction ID.",
}

func rejection(kind string, res ValidationResult) string {
	msg := strings.TrimSpace(res.Message)
	if msg == "" {
		msg = validationDefaults[kind]
	}
	return "❌ " + msg
}

// formatAmount prints rupee values without trailing zeros ("7000", "7450.5")
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func rupees(v float64) string {
	return "₹" + formatAmount(v)
}

// parseAmount reads a rupee amount out of free text ("₹7,000", "7000 rs")
func parseAmount(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(strings.Trim(b.String(), "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func ordinal(day int) string {
	suffix := "th"
	switch {
	case day%100 >= 11 && day%100 <= 13:
	case day%10 == 1:
		suffix = "st"
	case day%10 == 2:
		suffix = "nd"
	case day%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", day, suffix)
}

// UPILink builds the upi:// intent for an amount
func UPILink(upiID, businessName string, amount float64) string {
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%s&cu=INR", upiID, url.PathEscape(businessName), formatAmount(amount))
}

func statusEmoji(status string) string {
	switch status {
	case models.TenantStatusPaid:
		return "✅"
	case models.TenantStatusPending:
		return "⏳"
	default:
		return "🔔"
	}
}

func historyEmoji(status string) string {
	if status == "" || status == models.TenantStatusPaid {
		return "✅"
	}
	return "⏳"
}

const divider = "━━━━━━━━━━━━━━━━━━━━"

func registrationDoneMessage(room string, rent float64, advance, joined string) string {
	return fmt.Sprintf("✅ Registration successful.\nRoom: %s\nMonthly Rent: %s\nAdvance Paid: ₹%s\nJoin Date: %s\nStatus: ACTIVE\n\nWelcome to StayFlow!",
		room, rupees(rent), advance, joined)
}

func billMessage(t *models.Tenant) string {
	return fmt.Sprintf("Hi %s,\n\nYour Current Bill:\n\nRent: %s\nEB: %s\nTotal: %s",
		t.Name, rupees(t.MonthlyRent), rupees(t.EBAmount), rupees(t.Due()))
}

func razorpayMessage(link string) string {
	return fmt.Sprintf("👇 *Pay Online Securely via Razorpay:*\n%s\n\n(Click to pay via UPI, Card, or Netbanking)", link)
}

func manualPaymentMessage(upiID string) string {
	return fmt.Sprintf("Payment Options:\n\n1️⃣ Cash to Owner\n2️⃣ UPI: %s\n\nAfter payment, type PAID and send transaction ID.", upiID)
}

func statusMessage(t *models.Tenant) string {
	return fmt.Sprintf("🏠 *Room:* %s\n💰 *Advance:* %s\n\n*Current Month Status:*\nRent: %s\nEB: %s\nTotal Due: %s\nStatus: *%s*",
		t.Room, rupees(t.Advance), rupees(t.MonthlyRent), rupees(t.EBAmount), rupees(t.Due()), t.Status)
}
