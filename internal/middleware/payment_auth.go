package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/payments"
)

// ValidatePaymentSignature validates Razorpay webhook signatures
func ValidatePaymentSignature(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			logger.Error("❌ RAZORPAY_WEBHOOK_SECRET not set, rejecting payment webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		signature := c.Get("X-Razorpay-Signature")
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Razorpay signature",
			})
		}

		if !payments.VerifySignature(c.Body(), signature, secret) {
			logger.Warn("⚠️ Invalid Razorpay signature", "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}
