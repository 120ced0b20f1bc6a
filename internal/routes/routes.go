package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stayflow/stayflow-backend/internal/config"
	"github.com/stayflow/stayflow-backend/internal/handlers"
	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by SetupRoutes
type Handlers struct {
	Health   *handlers.HealthHandler
	WhatsApp *handlers.WhatsAppHandler
	Payment  *handlers.PaymentHandler
	Admin    *handlers.AdminHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, h Handlers) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to " + cfg.BusinessName + " Backend!",
			"version": h.Health.Version,
			"endpoints": fiber.Map{
				"health":         "/health",
				"metrics":        "/metrics",
				"api":            "/api",
				"webhook":        "/webhook",
				"webhook_twilio": "/webhook/twilio",
				"webhook_pay":    "/webhook/razorpay",
				"test_whatsapp":  "/test/whatsapp",
			},
		})
	})

	app.Get("/health", h.Health.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Rendered invoices and published media, also fetched by Twilio
	app.Static("/api/uploads", cfg.UploadsDir)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// Cloud API subscription and events
	webhooks.Get("", h.WhatsApp.Verify)
	webhooks.Post("", h.WhatsApp.HandleWebhook)

	// Twilio webhook - ENVIRONMENT-AWARE VALIDATION
	if cfg.IsDevelopment() || cfg.DisableWebhookValidation {
		webhooks.Post("/twilio", h.WhatsApp.HandleTwilioWebhook)
		logger.Warn("⚠️ Twilio webhook validation DISABLED")
	} else {
		webhooks.Post("/twilio", middleware.ValidateTwilioSignature(cfg.Twilio.AuthToken), h.WhatsApp.HandleTwilioWebhook)
	}

	webhooks.Post("/razorpay", middleware.ValidatePaymentSignature(cfg.Razorpay.WebhookSecret), h.Payment.HandleWebhook)

	// ========== TEST ROUTES ==========
	if cfg.IsDevelopment() {
		app.Post("/test/whatsapp", h.WhatsApp.HandleTestWebhook)
	} else {
		app.Post("/test/whatsapp", middleware.RequireAdminKey(cfg.AdminAPIKey), h.WhatsApp.HandleTestWebhook)
	}

	// ========== ADMIN ROUTES ==========
	api := app.Group("/api", middleware.RequireAdminKey(cfg.AdminAPIKey))

	api.Get("/tenants", h.Admin.GetTenants)
	api.Post("/add-tenant", h.Admin.AddTenant)
	api.Get("/dashboard-stats", h.Admin.GetDashboardStats)
	api.Get("/payments", h.Admin.GetPayments)
	api.Get("/room-map", h.Admin.GetRoomMap)
	api.Get("/notifications", h.Admin.GetNotifications)

	api.Post("/mark-paid", h.Admin.MarkPaid)
	api.Post("/update-bill", h.Admin.UpdateBill)
	api.Post("/delete-tenant", h.Admin.DeleteTenant)
	api.Post("/broadcast", h.Admin.Broadcast)
	api.Post("/update-eb", h.Admin.UpdateEB)
	api.Post("/notify-tenant", h.Admin.NotifyTenant)
	api.Post("/generate-invoice", h.Admin.GenerateInvoice)
	api.Post("/trigger-notifications", h.Admin.TriggerNotifications)
}
