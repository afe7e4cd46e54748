package handlers

import (
	"strings"
	"time"

	"github.com/avelisco/CoachBookBack/internal/models"
)

func validateCheckoutRequestBody(req checkoutRequest) string {
	if !strings.Contains(strings.TrimSpace(req.Email), "@") {
		return "email must be a valid address"
	}
	if strings.TrimSpace(req.FirstName) == "" {
		return "first_name is required"
	}
	if strings.TrimSpace(req.LastName) == "" {
		return "last_name is required"
	}
	if !models.BookingType(req.BookingType).Valid() {
		return "booking_type must be single_session, session_pack or subscription"
	}
	if _, err := time.Parse(time.RFC3339, strings.TrimSpace(req.PreferredAt)); err != nil {
		return "preferred_at must be a valid RFC3339 timestamp"
	}
	if req.Message != nil && strings.TrimSpace(*req.Message) == "" {
		return "message must not be empty"
	}
	if req.Currency != "" && len(strings.TrimSpace(req.Currency)) != 3 {
		return "currency must be a 3-letter code"
	}
	switch models.BookingType(req.BookingType) {
	case models.BookingTypeSingle:
		if req.PlanID != nil || req.PackID != nil {
			return "single_session bookings must not carry plan_id or pack_id"
		}
	case models.BookingTypePack:
		if req.PlanID == nil {
			return "session_pack bookings require plan_id"
		}
		if req.PackID == nil || strings.TrimSpace(*req.PackID) == "" {
			return "session_pack bookings require pack_id"
		}
	case models.BookingTypeSubscription:
		if req.PlanID == nil {
			return "subscription bookings require plan_id"
		}
	}
	return ""
}
