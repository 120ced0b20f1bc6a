package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/utils"
)

// MemoryStore holds all data in memory (tests and USE_MEMORY_STORE=true)
type MemoryStore struct {
	tenants  map[uint]*models.Tenant
	payments []*models.PaymentRecord

	// Mutexes for thread safety
	tenantMu  sync.RWMutex
	paymentMu sync.RWMutex

	// Counters for ID generation
	tenantCounter  uint
	paymentCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[uint]*models.Tenant),
	}
}

// Tenant operations

// findLocked returns the first tenant (by ID) matching phone and optional name.
// Caller holds tenantMu.
func (m *MemoryStore) findLocked(phone, name string) *models.Tenant {
	ids := make([]uint, 0, len(m.tenants))
	for id := range m.tenants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		t := m.tenants[id]
		if !utils.PhonesEquivalent(t.Phone, phone) {
			continue
		}
		if name != "" && !t.MatchesName(name) {
			continue
		}
		return t
	}
	return nil
}

func (m *MemoryStore) GetTenantByPhone(phone, name string) (*models.Tenant, error) {
	m.tenantMu.RLock()
	defer m.tenantMu.RUnlock()

	t := m.findLocked(phone, name)
	if t == nil {
		return nil, ErrTenantNotFound
	}
	c := *t
	return &c, nil
}

func (m *MemoryStore) GetTenantByID(id uint) (*models.Tenant, error) {
	m.tenantMu.RLock()
	defer m.tenantMu.RUnlock()

	t, exists := m.tenants[id]
	if !exists {
		return nil, ErrTenantNotFound
	}
	c := *t
	return &c, nil
}

func (m *MemoryStore) GetAllTenants() ([]*models.Tenant, error) {
	m.tenantMu.RLock()
	defer m.tenantMu.RUnlock()

	tenants := make([]*models.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		c := *t
		tenants = append(tenants, &c)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants, nil
}

func (m *MemoryStore) CreateTenant(reg *models.TenantRegistration) (*models.Tenant, error) {
	if reg.Name == "" || reg.Phone == "" {
		return nil, fmt.Errorf("name and phone are required")
	}

	m.tenantMu.Lock()
	defer m.tenantMu.Unlock()

	m.tenantCounter++
	now := time.Now()
	tenant := newTenantFromRegistration(reg)
	tenant.ID = m.tenantCounter
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	// Mirror the gorm hook so both stores persist identical rows
	if err := tenant.BeforeCreate(nil); err != nil {
		return nil, err
	}

	m.tenants[tenant.ID] = tenant
	c := *tenant
	return &c, nil
}

func (m *MemoryStore) UpdateTenant(phone string, update models.TenantUpdate, name string) (bool, error) {
	m.tenantMu.Lock()
	defer m.tenantMu.Unlock()

	t := m.findLocked(phone, name)
	if t == nil {
		return false, nil
	}
	update.Apply(t)
	t.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) UpdateTenantByID(id uint, update models.TenantUpdate) error {
	m.tenantMu.Lock()
	defer m.tenantMu.Unlock()

	t, exists := m.tenants[id]
	if !exists {
		return ErrTenantNotFound
	}
	update.Apply(t)
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) DeleteTenant(phone, name string) (bool, error) {
	m.tenantMu.Lock()
	defer m.tenantMu.Unlock()

	t := m.findLocked(phone, name)
	if t == nil {
		return false, nil
	}
	delete(m.tenants, t.ID)
	return true, nil
}

// Payment history operations

func (m *MemoryStore) AppendPaymentHistory(t *models.Tenant, amount float64, mode, txnID string) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}

	m.paymentMu.Lock()
	defer m.paymentMu.Unlock()

	m.paymentCounter++
	rec := newPaymentRecord(t, amount, mode, txnID, time.Now())
	rec.ID = m.paymentCounter
	rec.CreatedAt = rec.PaidAt
	rec.UpdatedAt = rec.PaidAt
	m.payments = append(m.payments, rec)
	return nil
}

func (m *MemoryStore) GetPaymentHistory(phone string, limit int) ([]*models.PaymentRecord, error) {
	m.paymentMu.RLock()
	defer m.paymentMu.RUnlock()

	var matching []*models.PaymentRecord
	// Newest first
	for i := len(m.payments) - 1; i >= 0; i-- {
		p := m.payments[i]
		if utils.PhonesEquivalent(p.Phone, phone) {
			c := *p
			matching = append(matching, &c)
		}
		if limit > 0 && len(matching) == limit {
			break
		}
	}
	return matching, nil
}

func (m *MemoryStore) GetPaymentsForMonth(monthYear string) ([]*models.PaymentRecord, error) {
	m.paymentMu.RLock()
	defer m.paymentMu.RUnlock()

	var matching []*models.PaymentRecord
	for _, p := range m.payments {
		if p.MonthYear == monthYear {
			c := *p
			matching = append(matching, &c)
		}
	}
	return matching, nil
}

func newTenantFromRegistration(reg *models.TenantRegistration) *models.Tenant {
	return &models.Tenant{
		Name:         reg.Name,
		Phone:        reg.Phone,
		Room:         reg.Room,
		Bed:          "N/A",
		Floor:        "1",
		Location:     reg.Location,
		SharingType:  reg.SharingType,
		Advance:      reg.Advance,
		AadhaarImage: reg.AadhaarImage,
		MonthlyRent:  reg.MonthlyRent,
		TotalAmount:  reg.MonthlyRent,
		Status:       models.TenantStatusActive,
	}
}

func newPaymentRecord(t *models.Tenant, amount float64, mode, txnID string, at time.Time) *models.PaymentRecord {
	return &models.PaymentRecord{
		TenantID:      t.ID,
		Name:          t.Name,
		Phone:         utils.NormalizePhone(t.Phone),
		Room:          t.Room,
		Location:      t.LocationOrDefault(),
		MonthYear:     models.MonthYearOf(at),
		MonthlyRent:   t.MonthlyRent,
		EBAmount:      t.EBAmount,
		TotalAmount:   amount,
		PaymentMode:   mode,
		TransactionID: txnID,
		Status:        models.TenantStatusPaid,
		PaidAt:        at,
	}
}
