package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/avelisco/CoachBookBack/internal/payments"
	"github.com/avelisco/CoachBookBack/internal/services"
)

type paymentReconciler interface {
	ConfirmPayment(ctx context.Context, externalCheckoutID string) error
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

type PaymentHandler struct {
	service paymentReconciler
}

func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// ConfirmPayment is the synchronous confirmation path the client polls after
// returning from the payment page.
func (h *PaymentHandler) ConfirmPayment(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Query("sessionId"))
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sessionId is required"})
	}

	if err := h.service.ConfirmPayment(c.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentNotConfirmed):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Payment not confirmed"})
		case errors.Is(err, services.ErrBookingNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
		case errors.Is(err, services.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to confirm payment"})
		}
	}

	return c.JSON(fiber.Map{"message": "Payment confirmed"})
}

// Webhook receives provider pushes. Anything other than 2xx makes the
// provider redeliver, which reconciliation tolerates by design.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get("Stripe-Signature")

	if err := h.service.HandleWebhook(c.Context(), payload, signature); err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature), errors.Is(err, services.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid webhook payload"})
		case errors.Is(err, services.ErrBookingNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown booking"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process webhook"})
		}
	}

	return c.JSON(fiber.Map{"received": true})
}
