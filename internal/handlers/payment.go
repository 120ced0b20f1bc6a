package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
	"github.com/stayflow/stayflow-backend/internal/payments"
	"github.com/stayflow/stayflow-backend/internal/storage"
)

// LinkPaymentRecorder applies a paid Razorpay link to the tenant records
type LinkPaymentRecorder interface {
	RecordLinkPayment(ctx context.Context, p payments.LinkPayment) (*models.Tenant, error)
}

type PaymentHandler struct {
	recorder LinkPaymentRecorder
}

func NewPaymentHandler(recorder LinkPaymentRecorder) *PaymentHandler {
	return &PaymentHandler{recorder: recorder}
}

// HandleWebhook processes Razorpay events. The signature has already been
// checked by middleware; unknown tenants are acknowledged so Razorpay stops retrying.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	p, ok, err := payments.ParseWebhook(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}
	if !ok {
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	logger.Info("💳 Razorpay payment received", "phone", p.Phone, "amount", p.Amount, "payment_id", p.PaymentID)
	t, err := h.recorder.RecordLinkPayment(c.UserContext(), p)
	if errors.Is(err, storage.ErrTenantNotFound) {
		logger.Warn("⚠️ Razorpay payment for unknown tenant", "phone", p.Phone, "name", p.Name, "link_id", p.LinkID)
		return c.JSON(fiber.Map{"status": "unmatched"})
	}
	if err != nil {
		logger.Error("❌ Failed to record Razorpay payment", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record payment",
		})
	}
	return c.JSON(fiber.Map{
		"status": "recorded",
		"tenant": t.Name,
	})
}
