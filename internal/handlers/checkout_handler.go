package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/avelisco/CoachBookBack/internal/services"
)

type checkoutStarter interface {
	StartCheckout(ctx context.Context, req services.StartCheckoutRequest) (string, error)
}

type pendingBookingService interface {
	CreatePending(ctx context.Context, input services.CreatePendingInput) (*models.Booking, error)
	CleanupPendingForUser(ctx context.Context, email string) (int64, error)
}

type CheckoutHandler struct {
	checkout checkoutStarter
	bookings pendingBookingService
}

func NewCheckoutHandler(
	checkout *services.CheckoutService,
	bookings *services.BookingService,
) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, bookings: bookings}
}

type checkoutRequest struct {
	Email           string  `json:"email"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	BookingType     string  `json:"booking_type"`
	PreferredAt     string  `json:"preferred_at"`
	Message         *string `json:"message"`
	IsDiscoveryCall bool    `json:"is_discovery_call"`
	PlanID          *int64  `json:"plan_id"`
	PackID          *string `json:"pack_id"`
	Currency        string  `json:"currency"`
	IdempotencyKey  string  `json:"idempotency_key"`
}

// StartCheckout creates the pending booking for the payload and redirects the
// client to the external payment page.
func (h *CheckoutHandler) StartCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := validateCheckoutRequestBody(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	preferredAt, _ := time.Parse(time.RFC3339, strings.TrimSpace(req.PreferredAt))

	// A fresh checkout attempt clears orphaned pending rows from flows the
	// user abandoned earlier.
	if _, err := h.bookings.CleanupPendingForUser(c.Context(), email); err != nil {
		log.Printf("checkout: pending cleanup for %s: %v", email, err)
	}

	booking, err := h.bookings.CreatePending(c.Context(), services.CreatePendingInput{
		Email:           email,
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		BookingType:     models.BookingType(req.BookingType),
		PreferredAt:     preferredAt,
		Message:         req.Message,
		IsDiscoveryCall: req.IsDiscoveryCall,
		PackReference:   req.PackID,
	})
	if err != nil {
		return mapCheckoutError(c, err)
	}

	redirectURL, err := h.checkout.StartCheckout(c.Context(), services.StartCheckoutRequest{
		BookingID:      booking.ID,
		BookingType:    booking.BookingType,
		PlanID:         req.PlanID,
		PackID:         req.PackID,
		Currency:       req.Currency,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		// Best effort: do not leave the just-created pending row behind.
		if _, cleanupErr := h.bookings.CleanupPendingForUser(c.Context(), email); cleanupErr != nil {
			log.Printf("checkout: cleanup after failure for %s: %v", email, cleanupErr)
		}
		return mapCheckoutError(c, err)
	}

	return c.JSON(fiber.Map{"checkout_url": redirectURL})
}

func mapCheckoutError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrDuplicateBooking):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrBookingNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	case errors.Is(err, services.ErrBookingNotPending):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrCurrencyConversion):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Could not price the booking in the requested currency"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to start checkout"})
	}
}
