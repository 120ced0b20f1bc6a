package models

import "time"

// Dialog steps
const (
	StepName            = "NAME"
	StepPhoneNumber     = "PHONE_NUMBER"
	StepRoom            = "ROOM"
	StepSharingType     = "SHARING_TYPE"
	StepAdvance         = "ADVANCE"
	StepAadhaarUpload   = "AADHAAR_UPLOAD"
	StepPaymentProof    = "PAYMENT_PROOF"
	StepCashAmount      = "CASH_AMOUNT"
	StepCashDate        = "CASH_DATE"
	StepHelpReason      = "HELP_REASON"
	StepAdvanceChoice   = "ADVANCE_CHOICE"
	StepAnnounceMessage = "ANNOUNCE_MSG"
)

// Session field keys
const (
	FieldName        = "name"
	FieldPhone       = "phone"
	FieldRoom        = "room"
	FieldSharingType = "sharing_type"
	FieldMonthlyRent = "monthly_rent"
	FieldAdvance     = "advance"
	FieldAmount      = "amount"
)

// Session is the per-contact dialog state. An empty Step means no dialog is open;
// such a session only carries ContextName.
type Session struct {
	Phone       string            `json:"phone"`
	Step        string            `json:"step,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
	ContextName string            `json:"context_name,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	LastActive  time.Time         `json:"last_active"`
}

// NewSession opens a dialog at step
func NewSession(phone, step string) *Session {
	now := time.Now()
	return &Session{
		Phone:      phone,
		Step:       step,
		Data:       map[string]string{},
		CreatedAt:  now,
		LastActive: now,
	}
}

// InDialog reports whether a multi-step flow is open
func (s *Session) InDialog() bool {
	return s != nil && s.Step != ""
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Data = make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		c.Data[k] = v
	}
	return &c
}
