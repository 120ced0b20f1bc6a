package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentRecord is one row of the payment history ledger
type PaymentRecord struct {
	gorm.Model

	TenantID      uint      `json:"tenant_id" gorm:"index"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone" gorm:"index"`
	Room          string    `json:"room"`
	Location      string    `json:"location"`
	MonthYear     string    `json:"month_year"` // e.g. "March 2025"
	MonthlyRent   float64   `json:"monthly_rent"`
	EBAmount      float64   `json:"eb_amount"`
	TotalAmount   float64   `json:"total_amount"`
	PaymentMode   string    `json:"payment_mode"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	PaidAt        time.Time `json:"paid_at"`
}

// MonthYearOf formats the billing period label for t
func MonthYearOf(t time.Time) string {
	return t.Format("January 2006")
}
