package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/avelisco/CoachBookBack/internal/services"
)

type quotaLedger interface {
	PackRemaining(ctx context.Context, packID string) (*models.SessionPack, error)
	SubscriptionStatus(ctx context.Context, userEmail string, subscriptionID int64) (*models.UserSubscription, int, error)
	CancelSubscription(ctx context.Context, userEmail string, subscriptionID int64) (*models.UserSubscription, error)
}

type QuotaHandler struct {
	service quotaLedger
}

func NewQuotaHandler(service *services.QuotaService) *QuotaHandler {
	return &QuotaHandler{service: service}
}

func (h *QuotaHandler) GetPack(c *fiber.Ctx) error {
	packID := strings.TrimSpace(c.Params("id"))
	if packID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pack id"})
	}

	pack, err := h.service.PackRemaining(c.Context(), packID)
	if err != nil {
		if errors.Is(err, services.ErrNoValidPack) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Pack not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load pack"})
	}

	return c.JSON(fiber.Map{"pack": pack})
}

func (h *QuotaHandler) GetSubscription(c *fiber.Ctx) error {
	subscriptionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || subscriptionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subscription id"})
	}
	email := strings.ToLower(strings.TrimSpace(c.Query("email")))
	if !strings.Contains(email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email must be a valid address"})
	}

	subscription, remaining, err := h.service.SubscriptionStatus(c.Context(), email, subscriptionID)
	if err != nil {
		if errors.Is(err, services.ErrSubscriptionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Subscription not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load subscription"})
	}

	return c.JSON(fiber.Map{
		"subscription":       subscription,
		"sessions_remaining": remaining,
	})
}

type cancelSubscriptionRequest struct {
	Email string `json:"email"`
}

func (h *QuotaHandler) CancelSubscription(c *fiber.Ctx) error {
	subscriptionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || subscriptionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid subscription id"})
	}

	var req cancelSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email must be a valid address"})
	}

	subscription, err := h.service.CancelSubscription(c.Context(), email, subscriptionID)
	if err != nil {
		if errors.Is(err, services.ErrSubscriptionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Subscription not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to cancel subscription"})
	}

	return c.JSON(fiber.Map{"subscription": subscription})
}
