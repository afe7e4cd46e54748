package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/avelisco/CoachBookBack/internal/services"
)

type stubCheckoutStarter struct {
	redirectURL string
	err         error
	lastRequest services.StartCheckoutRequest
	calls       int
}

func (s *stubCheckoutStarter) StartCheckout(_ context.Context, req services.StartCheckoutRequest) (string, error) {
	s.calls++
	s.lastRequest = req
	return s.redirectURL, s.err
}

type stubPendingBookings struct {
	booking      *models.Booking
	createErr    error
	lastInput    services.CreatePendingInput
	createCalls  int
	cleanupCalls []string
}

func (s *stubPendingBookings) CreatePending(_ context.Context, input services.CreatePendingInput) (*models.Booking, error) {
	s.createCalls++
	s.lastInput = input
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.booking, nil
}

func (s *stubPendingBookings) CleanupPendingForUser(_ context.Context, email string) (int64, error) {
	s.cleanupCalls = append(s.cleanupCalls, email)
	return 0, nil
}

func newCheckoutApp(checkout *stubCheckoutStarter, bookings *stubPendingBookings) *fiber.App {
	handler := &CheckoutHandler{checkout: checkout, bookings: bookings}
	app := fiber.New()
	app.Post("/api/checkout", handler.StartCheckout)
	return app
}

func postCheckout(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

const validCheckoutBody = `{
	"email": "User@Example.com",
	"first_name": "Ada",
	"last_name": "Lovelace",
	"booking_type": "single_session",
	"preferred_at": "2026-10-01T10:00:00Z",
	"currency": "usd"
}`

func TestStartCheckoutReturnsRedirectURL(t *testing.T) {
	bookings := &stubPendingBookings{booking: &models.Booking{
		ID:          7,
		Email:       "user@example.com",
		BookingType: models.BookingTypeSingle,
		Pending:     true,
	}}
	checkout := &stubCheckoutStarter{redirectURL: "https://pay.example/cs_1"}
	app := newCheckoutApp(checkout, bookings)

	resp := postCheckout(t, app, validCheckoutBody)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["checkout_url"] != "https://pay.example/cs_1" {
		t.Fatalf("unexpected checkout url %q", body["checkout_url"])
	}
	if bookings.lastInput.Email != "user@example.com" {
		t.Fatalf("expected lowercased email, got %q", bookings.lastInput.Email)
	}
	if len(bookings.cleanupCalls) != 1 {
		t.Fatalf("expected one defensive cleanup, got %d", len(bookings.cleanupCalls))
	}
	if checkout.lastRequest.BookingID != 7 {
		t.Fatalf("expected booking 7 forwarded, got %d", checkout.lastRequest.BookingID)
	}
	if checkout.lastRequest.Currency != "usd" {
		t.Fatalf("expected currency passed through, got %q", checkout.lastRequest.Currency)
	}
}

func TestStartCheckoutRejectsInvalidBody(t *testing.T) {
	checkout := &stubCheckoutStarter{}
	bookings := &stubPendingBookings{}
	app := newCheckoutApp(checkout, bookings)

	cases := []string{
		`{"email": "not-an-email", "first_name": "A", "last_name": "B", "booking_type": "single_session", "preferred_at": "2026-10-01T10:00:00Z"}`,
		`{"email": "a@b.com", "first_name": "", "last_name": "B", "booking_type": "single_session", "preferred_at": "2026-10-01T10:00:00Z"}`,
		`{"email": "a@b.com", "first_name": "A", "last_name": "B", "booking_type": "mystery", "preferred_at": "2026-10-01T10:00:00Z"}`,
		`{"email": "a@b.com", "first_name": "A", "last_name": "B", "booking_type": "single_session", "preferred_at": "tomorrow"}`,
		`{"email": "a@b.com", "first_name": "A", "last_name": "B", "booking_type": "session_pack", "preferred_at": "2026-10-01T10:00:00Z"}`,
	}
	for _, payload := range cases {
		resp := postCheckout(t, app, payload)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", payload, resp.StatusCode)
		}
		resp.Body.Close()
	}
	if bookings.createCalls != 0 || checkout.calls != 0 {
		t.Fatal("invalid payloads must not reach the services")
	}
}

func TestStartCheckoutDuplicateBookingConflicts(t *testing.T) {
	bookings := &stubPendingBookings{createErr: services.ErrDuplicateBooking}
	app := newCheckoutApp(&stubCheckoutStarter{}, bookings)

	resp := postCheckout(t, app, validCheckoutBody)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestStartCheckoutFailureCleansUpPendingBooking(t *testing.T) {
	bookings := &stubPendingBookings{booking: &models.Booking{
		ID: 7, Email: "user@example.com", BookingType: models.BookingTypeSingle, Pending: true,
	}}
	checkout := &stubCheckoutStarter{err: services.ErrCurrencyConversion}
	app := newCheckoutApp(checkout, bookings)

	resp := postCheckout(t, app, validCheckoutBody)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if len(bookings.cleanupCalls) != 2 {
		t.Fatalf("expected cleanup before and after, got %d calls", len(bookings.cleanupCalls))
	}
}

func TestStartCheckoutPackForwardsPackReference(t *testing.T) {
	bookings := &stubPendingBookings{booking: &models.Booking{
		ID: 8, Email: "user@example.com", BookingType: models.BookingTypePack, Pending: true,
	}}
	checkout := &stubCheckoutStarter{redirectURL: "https://pay.example/cs_2"}
	app := newCheckoutApp(checkout, bookings)

	resp := postCheckout(t, app, `{
		"email": "user@example.com",
		"first_name": "Ada",
		"last_name": "Lovelace",
		"booking_type": "session_pack",
		"preferred_at": "2026-10-01T10:00:00Z",
		"plan_id": 2,
		"pack_id": "pack-uuid-1"
	}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if bookings.lastInput.PackReference == nil || *bookings.lastInput.PackReference != "pack-uuid-1" {
		t.Fatalf("expected pack reference on the pending booking, got %v", bookings.lastInput.PackReference)
	}
	if checkout.lastRequest.PlanID == nil || *checkout.lastRequest.PlanID != 2 {
		t.Fatalf("expected plan id forwarded, got %v", checkout.lastRequest.PlanID)
	}
	if preferred := bookings.lastInput.PreferredAt; !preferred.Equal(time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected preferred time %s", preferred)
	}
}
