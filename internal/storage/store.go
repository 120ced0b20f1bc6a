package storage

import (
	"errors"

	"github.com/stayflow/stayflow-backend/internal/models"
)

// ErrTenantNotFound is returned when no tenant matches a phone (and name)
var ErrTenantNotFound = errors.New("tenant not found")

var storeInstance Store

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Store defines the interface for tenant record operations.
// Phone lookups use utils.PhonesEquivalent; a non-empty name narrows the match
// to the tenant with that name (case-insensitive) when a phone is shared.
type Store interface {
	// Tenant operations
	GetTenantByPhone(phone, name string) (*models.Tenant, error)
	GetTenantByID(id uint) (*models.Tenant, error)
	GetAllTenants() ([]*models.Tenant, error)
	CreateTenant(reg *models.TenantRegistration) (*models.Tenant, error)
	UpdateTenant(phone string, update models.TenantUpdate, name string) (bool, error)
	UpdateTenantByID(id uint, update models.TenantUpdate) error
	DeleteTenant(phone, name string) (bool, error)

	// Payment history operations
	AppendPaymentHistory(t *models.Tenant, amount float64, mode, txnID string) error
	GetPaymentHistory(phone string, limit int) ([]*models.PaymentRecord, error)
	GetPaymentsForMonth(monthYear string) ([]*models.PaymentRecord, error)
}
