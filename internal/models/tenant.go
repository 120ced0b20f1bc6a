package models

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/stayflow/stayflow-backend/internal/utils"
)

// Tenant status values
const (
	TenantStatusActive  = "ACTIVE"
	TenantStatusPending = "PENDING"
	TenantStatusPaid    = "PAID"
	TenantStatusVacated = "VACATED"
)

// Payment modes
const (
	PaymentModeCash   = "CASH"
	PaymentModeUPI    = "UPI"
	PaymentModeOnline = "ONLINE"
)

// DefaultLocation is used when a tenant has no branch recorded
const DefaultLocation = "Main Branch"

// Tenant is a billed occupant of a room. One phone may be shared by several
// tenants; Name disambiguates them.
type Tenant struct {
	// gorm.Model gives us ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	Name          string    `json:"name"`
	Phone         string    `json:"phone" gorm:"index"` // normalized
	Room          string    `json:"room" gorm:"index"`
	Bed           string    `json:"bed"`
	Floor         string    `json:"floor"`
	Location      string    `json:"location"`
	SharingType   string    `json:"sharing_type"`
	Advance       float64   `json:"advance"`
	AadhaarImage  string    `json:"aadhaar_image"` // media reference
	MonthlyRent   float64   `json:"monthly_rent"`
	EBAmount      float64   `json:"eb_amount"`
	TotalAmount   float64   `json:"total_amount"`
	PaymentMode   string    `json:"payment_mode"`
	TransactionID string    `json:"transaction_id"`
	PaymentProof  string    `json:"payment_proof"`
	Status        string    `json:"status" gorm:"default:ACTIVE"`
	JoinDate      time.Time `json:"join_date"`
	PaidDate      string    `json:"paid_date"` // free-form, tenants may type it
}

// BeforeCreate normalizes the phone and fills defaults
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	t.Phone = utils.NormalizePhone(t.Phone)
	if t.Location == "" {
		t.Location = DefaultLocation
	}
	if t.Status == "" {
		t.Status = TenantStatusActive
	}
	if t.JoinDate.IsZero() {
		t.JoinDate = time.Now()
	}
	if t.TotalAmount == 0 {
		t.TotalAmount = t.MonthlyRent + t.EBAmount
	}
	return nil
}

// Due returns rent plus electricity for the current cycle
func (t *Tenant) Due() float64 {
	return t.MonthlyRent + t.EBAmount
}

// IsVacated reports whether the tenant has left
func (t *Tenant) IsVacated() bool {
	return t.Status == TenantStatusVacated
}

// MatchesName compares names case-insensitively ignoring surrounding space
func (t *Tenant) MatchesName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(t.Name), strings.TrimSpace(name))
}

// LocationOrDefault returns the branch name, defaulting to the main branch
func (t *Tenant) LocationOrDefault() string {
	if t.Location == "" {
		return DefaultLocation
	}
	return t.Location
}

// TenantRegistration is the data collected by the registration dialog
type TenantRegistration struct {
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Room         string  `json:"room"`
	SharingType  string  `json:"sharing_type"`
	MonthlyRent  float64 `json:"monthly_rent"`
	Advance      float64 `json:"advance"`
	AadhaarImage string  `json:"aadhaar_image"`
	Location     string  `json:"location,omitempty"`
}

// TenantUpdate is a partial update; nil fields are left untouched
type TenantUpdate struct {
	Status        *string  `json:"status,omitempty"`
	PaymentMode   *string  `json:"payment_mode,omitempty"`
	TransactionID *string  `json:"transaction_id,omitempty"`
	PaymentProof  *string  `json:"payment_proof,omitempty"`
	PaidDate      *string  `json:"paid_date,omitempty"`
	MonthlyRent   *float64 `json:"monthly_rent,omitempty"`
	EBAmount      *float64 `json:"eb_amount,omitempty"`
	TotalAmount   *float64 `json:"total_amount,omitempty"`
	Room          *string  `json:"room,omitempty"`
}

// Apply copies the non-nil fields onto t
func (u TenantUpdate) Apply(t *Tenant) {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.PaymentMode != nil {
		t.PaymentMode = *u.PaymentMode
	}
	if u.TransactionID != nil {
		t.TransactionID = *u.TransactionID
	}
	if u.PaymentProof != nil {
		t.PaymentProof = *u.PaymentProof
	}
	if u.PaidDate != nil {
		t.PaidDate = *u.PaidDate
	}
	if u.MonthlyRent != nil {
		t.MonthlyRent = *u.MonthlyRent
	}
	if u.EBAmount != nil {
		t.EBAmount = *u.EBAmount
	}
	if u.TotalAmount != nil {
		t.TotalAmount = *u.TotalAmount
	}
	if u.Room != nil {
		t.Room = *u.Room
	}
}

// Columns returns the column map used for SQL updates
func (u TenantUpdate) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.PaymentMode != nil {
		cols["payment_mode"] = *u.PaymentMode
	}
	if u.TransactionID != nil {
		cols["transaction_id"] = *u.TransactionID
	}
	if u.PaymentProof != nil {
		cols["payment_proof"] = *u.PaymentProof
	}
	if u.PaidDate != nil {
		cols["paid_date"] = *u.PaidDate
	}
	if u.MonthlyRent != nil {
		cols["monthly_rent"] = *u.MonthlyRent
	}
	if u.EBAmount != nil {
		cols["eb_amount"] = *u.EBAmount
	}
	if u.TotalAmount != nil {
		cols["total_amount"] = *u.TotalAmount
	}
	if u.Room != nil {
		cols["room"] = *u.Room
	}
	return cols
}

// IsEmpty reports whether the update changes nothing
func (u TenantUpdate) IsEmpty() bool {
	return len(u.Columns()) == 0
}

// MarkPaid builds the update recording a completed payment
func MarkPaid(mode, txnID, paidDate string) TenantUpdate {
	status := TenantStatusPaid
	u := TenantUpdate{
		Status:      &status,
		PaymentMode: &mode,
		PaidDate:    &paidDate,
	}
	if txnID != "" {
		u.TransactionID = &txnID
	}
	return u
}

// StatusUpdate builds an update changing only the status
func StatusUpdate(status string) TenantUpdate {
	return TenantUpdate{Status: &status}
}
