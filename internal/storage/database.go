package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/utils"
)

// DatabaseStore persists tenants and payment history through gorm (postgres)
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store over an open gorm connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Migrate creates or updates the tables used by the store
func (d *DatabaseStore) Migrate() error {
	return d.db.AutoMigrate(&models.Tenant{}, &models.PaymentRecord{})
}

// candidates narrows by the last 10 digits in SQL; equivalence is then
// confirmed in Go so the rule matches utils.PhonesEquivalent exactly.
func (d *DatabaseStore) candidates(phone string) ([]*models.Tenant, error) {
	suffix := utils.LastTen(phone)
	if suffix == "" {
		return nil, nil
	}

	var rows []*models.Tenant
	if err := d.db.Where("phone LIKE ?", "%"+suffix).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	return rows, nil
}

func (d *DatabaseStore) find(phone, name string) (*models.Tenant, error) {
	rows, err := d.candidates(phone)
	if err != nil {
		return nil, err
	}
	for _, t := range rows {
		if !utils.PhonesEquivalent(t.Phone, phone) {
			continue
		}
		if name != "" && !t.MatchesName(name) {
			continue
		}
		return t, nil
	}
	return nil, ErrTenantNotFound
}

func (d *DatabaseStore) GetTenantByPhone(phone, name string) (*models.Tenant, error) {
	return d.find(phone, name)
}

func (d *DatabaseStore) GetTenantByID(id uint) (*models.Tenant, error) {
	var t models.Tenant
	if err := d.db.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (d *DatabaseStore) GetAllTenants() ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	if err := d.db.Order("id asc").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

func (d *DatabaseStore) CreateTenant(reg *models.TenantRegistration) (*models.Tenant, error) {
	if reg.Name == "" || reg.Phone == "" {
		return nil, fmt.Errorf("name and phone are required")
	}
	tenant := newTenantFromRegistration(reg)
	if err := d.db.Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return tenant, nil
}

func (d *DatabaseStore) UpdateTenant(phone string, update models.TenantUpdate, name string) (bool, error) {
	t, err := d.find(phone, name)
	if errors.Is(err, ErrTenantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := d.UpdateTenantByID(t.ID, update); err != nil {
		return false, err
	}
	return true, nil
}

func (d *DatabaseStore) UpdateTenantByID(id uint, update models.TenantUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	res := d.db.Model(&models.Tenant{}).Where("id = ?", id).Updates(update.Columns())
	if res.Error != nil {
		return fmt.Errorf("update tenant %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (d *DatabaseStore) DeleteTenant(phone, name string) (bool, error) {
	t, err := d.find(phone, name)
	if errors.Is(err, ErrTenantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := d.db.Delete(&models.Tenant{}, t.ID).Error; err != nil {
		return false, fmt.Errorf("delete tenant: %w", err)
	}
	return true, nil
}

func (d *DatabaseStore) AppendPaymentHistory(t *models.Tenant, amount float64, mode, txnID string) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	rec := newPaymentRecord(t, amount, mode, txnID, time.Now())
	if err := d.db.Create(rec).Error; err != nil {
		return fmt.Errorf("append payment history: %w", err)
	}
	return nil
}

func (d *DatabaseStore) GetPaymentHistory(phone string, limit int) ([]*models.PaymentRecord, error) {
	suffix := utils.LastTen(phone)
	if suffix == "" {
		return nil, nil
	}

	var rows []*models.PaymentRecord
	if err := d.db.Where("phone LIKE ?", "%"+suffix).Order("paid_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query payment history: %w", err)
	}

	matching := make([]*models.PaymentRecord, 0, len(rows))
	for _, p := range rows {
		if !utils.PhonesEquivalent(p.Phone, phone) {
			continue
		}
		matching = append(matching, p)
		if limit > 0 && len(matching) == limit {
			break
		}
	}
	return matching, nil
}

func (d *DatabaseStore) GetPaymentsForMonth(monthYear string) ([]*models.PaymentRecord, error) {
	var rows []*models.PaymentRecord
	if err := d.db.Where("month_year = ?", monthYear).Order("paid_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query payments for %s: %w", monthYear, err)
	}
	return rows, nil
}
