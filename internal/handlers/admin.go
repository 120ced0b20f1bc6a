package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stayflow/stayflow-backend/internal/activity"
	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/services"
	"github.com/stayflow/stayflow-backend/internal/storage"
)

// EBSetter applies an electricity reading and reports to the given contact
type EBSetter interface {
	SetEB(ctx context.Context, replyTo, room string, units float64)
}

// NotificationLog lists recorded outbound notifications
type NotificationLog interface {
	Recent(bucket, phone string, limit int) ([]activity.Event, error)
}

// AdminHandler serves the owner dashboard API
type AdminHandler struct {
	store         storage.Store
	billing       *services.BillingService
	eb            EBSetter
	sessions      services.SessionStore
	notifications NotificationLog // may be nil
	ownerPhone    string
	now           func() time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store storage.Store, billing *services.BillingService, eb EBSetter, sessions services.SessionStore, notifications NotificationLog, ownerPhone string) *AdminHandler {
	return &AdminHandler{
		store:         store,
		billing:       billing,
		eb:            eb,
		sessions:      sessions,
		notifications: notifications,
		ownerPhone:    ownerPhone,
		now:           time.Now,
	}
}

func serverError(c *fiber.Ctx, msg string, err error) error {
	logger.Error("❌ "+msg, "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": msg,
	})
}

// GetTenants lists every tenant record
func (h *AdminHandler) GetTenants(c *fiber.Ctx) error {
	tenants, err := h.store.GetAllTenants()
	if err != nil {
		return serverError(c, "Failed to fetch tenants", err)
	}
	return c.JSON(tenants)
}

// AddTenantRequest is the owner-side registration payload
type AddTenantRequest struct {
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	Room        string  `json:"room"`
	SharingType string  `json:"sharingType"`
	MonthlyRent float64 `json:"monthlyRent"`
	Advance     float64 `json:"advance"`
	Location    string  `json:"location"`
}

// AddTenant registers a tenant and sends them the house rules
func (h *AdminHandler) AddTenant(c *fiber.Ctx) error {
	var req AddTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Name == "" || req.Phone == "" {
		return badRequest(c, "name and phone are required")
	}

	t, err := h.store.CreateTenant(&models.TenantRegistration{
		Name:        req.Name,
		Phone:       req.Phone,
		Room:        req.Room,
		SharingType: req.SharingType,
		MonthlyRent: req.MonthlyRent,
		Advance:     req.Advance,
		Location:    req.Location,
	})
	if err != nil {
		return serverError(c, "Failed to add tenant", err)
	}
	h.billing.Welcome(c.UserContext(), t)

	return c.JSON(fiber.Map{
		"success": true,
		"tenant":  t,
	})
}

// GetDashboardStats returns occupancy and this month's collection figures
func (h *AdminHandler) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := services.BuildDashboardStats(h.store, h.now())
	if err != nil {
		return serverError(c, "Failed to build dashboard stats", err)
	}
	return c.JSON(stats)
}

// GetPayments returns a tenant's payment history, or this month's payments without ?phone=
func (h *AdminHandler) GetPayments(c *fiber.Ctx) error {
	phone := c.Query("phone")
	var (
		records []*models.PaymentRecord
		err     error
	)
	if phone != "" {
		records, err = h.store.GetPaymentHistory(phone, c.QueryInt("limit", 0))
	} else {
		records, err = h.store.GetPaymentsForMonth(models.MonthYearOf(h.now()))
	}
	if err != nil {
		return serverError(c, "Failed to fetch payments", err)
	}
	if records == nil {
		records = []*models.PaymentRecord{}
	}
	return c.JSON(records)
}

// GetRoomMap groups tenants by room, optionally for ?location=
func (h *AdminHandler) GetRoomMap(c *fiber.Ctx) error {
	rooms, err := services.BuildRoomMap(h.store, c.Query("location"))
	if err != nil {
		return serverError(c, "Failed to build room map", err)
	}
	return c.JSON(rooms)
}

// GetNotifications lists the last notifications sent to ?phone=
func (h *AdminHandler) GetNotifications(c *fiber.Ctx) error {
	phone := c.Query("phone")
	out := []fiber.Map{}
	if phone == "" || h.notifications == nil {
		return c.JSON(out)
	}

	events, err := h.notifications.Recent(activity.BucketNotifications, phone, 20)
	if err != nil {
		return serverError(c, "Failed to fetch notifications", err)
	}
	for _, ev := range events {
		out = append(out, fiber.Map{
			"phone":   ev.Phone,
			"name":    ev.Name,
			"type":    ev.Type,
			"date":    ev.At,
			"content": ev.Content,
			"status":  "SENT",
		})
	}
	return c.JSON(out)
}

type tenantRef struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// MarkPaid records a manual payment and sends the receipt
func (h *AdminHandler) MarkPaid(c *fiber.Ctx) error {
	var req struct {
		tenantRef
		Amount float64 `json:"amount"`
		Mode   string  `json:"mode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Phone == "" {
		return badRequest(c, "phone is required")
	}

	logger.Info("💰 Marking paid", "name", req.Name, "amount", req.Amount, "mode", req.Mode)
	t, err := h.billing.MarkPaid(c.UserContext(), req.Phone, req.Name, req.Amount, req.Mode)
	if errors.Is(err, storage.ErrTenantNotFound) {
		return notFound(c, "Tenant not found")
	}
	if err != nil {
		return serverError(c, "Mark paid failed", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"tenant":  t,
	})
}

// UpdateBill overwrites a tenant's rent and EB; the total follows
func (h *AdminHandler) UpdateBill(c *fiber.Ctx) error {
	var req struct {
		tenantRef
		Rent float64 `json:"rent"`
		EB   float64 `json:"eb"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	total := req.Rent + req.EB
	ok, err := h.store.UpdateTenant(req.Phone, models.TenantUpdate{
		MonthlyRent: &req.Rent,
		EBAmount:    &req.EB,
		TotalAmount: &total,
	}, req.Name)
	if err != nil {
		return serverError(c, "Failed to update bill", err)
	}
	if !ok {
		return notFound(c, "Tenant not found")
	}
	return c.JSON(fiber.Map{"success": true})
}

// DeleteTenant removes one tenant record
func (h *AdminHandler) DeleteTenant(c *fiber.Ctx) error {
	var req tenantRef
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	logger.Info("🗑️ Deleting tenant", "name", req.Name, "phone", req.Phone)
	ok, err := h.store.DeleteTenant(req.Phone, req.Name)
	if err != nil {
		return serverError(c, "Failed to delete tenant", err)
	}
	if !ok {
		return notFound(c, "Tenant not found to delete")
	}
	return c.JSON(fiber.Map{"success": true})
}

// Broadcast sends an announcement to every non-vacated tenant
func (h *AdminHandler) Broadcast(c *fiber.Ctx) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Message == "" {
		return badRequest(c, "Message is required")
	}

	n, err := h.billing.Broadcast(c.UserContext(), "📢 *StayFlow Announcement*\n\n"+req.Message)
	if err != nil {
		return serverError(c, "Broadcast failed", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"count":   n,
	})
}

// UpdateEB splits a room's electricity units; the summary goes to the owner
func (h *AdminHandler) UpdateEB(c *fiber.Ctx) error {
	var req struct {
		Room  string  `json:"room"`
		Units float64 `json:"units"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Room == "" || req.Units < 0 {
		return badRequest(c, "room and a non-negative units value are required")
	}

	h.eb.SetEB(c.UserContext(), h.ownerPhone, req.Room, req.Units)
	return c.JSON(fiber.Map{"success": true})
}

// NotifyTenant sends one tenant the invoice and remembers which tenant the
// phone's next messages refer to
func (h *AdminHandler) NotifyTenant(c *fiber.Ctx) error {
	var req tenantRef
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	t, err := h.store.GetTenantByPhone(req.Phone, req.Name)
	if errors.Is(err, storage.ErrTenantNotFound) {
		return notFound(c, "Tenant not found")
	}
	if err != nil {
		return serverError(c, "Tenant lookup failed", err)
	}

	h.sessions.SetContext(t.Phone, t.Name)
	h.billing.NotifyTenant(c.UserContext(), t)
	return c.JSON(fiber.Map{"success": true})
}

// GenerateInvoice renders a tenant's bill and returns its public URL
func (h *AdminHandler) GenerateInvoice(c *fiber.Ctx) error {
	var req tenantRef
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	t, err := h.store.GetTenantByPhone(req.Phone, req.Name)
	if errors.Is(err, storage.ErrTenantNotFound) {
		return notFound(c, "Tenant not found")
	}
	if err != nil {
		return serverError(c, "Tenant lookup failed", err)
	}

	path := h.billing.Invoice(t)
	if path == "" {
		return serverError(c, "Invoice rendering failed", errors.New("invoice could not be generated"))
	}
	return c.JSON(fiber.Map{
		"success": true,
		"url":     "/api/uploads/" + filepath.Base(path),
	})
}

// TriggerNotifications starts the monthly bill run in the background
func (h *AdminHandler) TriggerNotifications(c *fiber.Ctx) error {
	tenants, err := h.store.GetAllTenants()
	if err != nil {
		return serverError(c, "Failed to fetch tenants", err)
	}

	go func() {
		if _, err := h.billing.SendBills(context.Background()); err != nil {
			logger.Error("❌ Background bill run failed", "error", err)
		}
	}()

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Notification process started for %d potential recipients.", len(tenants)),
	})
}
