package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/avelisco/CoachBookBack/internal/payments"
	"github.com/avelisco/CoachBookBack/internal/services"
)

type stubReconciler struct {
	confirmErr     error
	webhookErr     error
	lastCheckoutID string
	lastPayload    []byte
	lastSignature  string
}

func (s *stubReconciler) ConfirmPayment(_ context.Context, externalCheckoutID string) error {
	s.lastCheckoutID = externalCheckoutID
	return s.confirmErr
}

func (s *stubReconciler) HandleWebhook(_ context.Context, payload []byte, signatureHeader string) error {
	s.lastPayload = payload
	s.lastSignature = signatureHeader
	return s.webhookErr
}

func newPaymentApp(reconciler *stubReconciler) *fiber.App {
	handler := &PaymentHandler{service: reconciler}
	app := fiber.New()
	app.Post("/api/payments/confirm", handler.ConfirmPayment)
	app.Post("/api/payments/webhook", handler.Webhook)
	return app
}

func TestConfirmPaymentEndpointConfirms(t *testing.T) {
	reconciler := &stubReconciler{}
	app := newPaymentApp(reconciler)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/confirm?sessionId=cs_1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if reconciler.lastCheckoutID != "cs_1" {
		t.Fatalf("expected checkout cs_1 forwarded, got %q", reconciler.lastCheckoutID)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["message"] != "Payment confirmed" {
		t.Fatalf("unexpected message %q", body["message"])
	}
}

func TestConfirmPaymentEndpointRequiresSessionID(t *testing.T) {
	app := newPaymentApp(&stubReconciler{})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/confirm", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestConfirmPaymentEndpointUnpaidCheckout(t *testing.T) {
	app := newPaymentApp(&stubReconciler{confirmErr: services.ErrPaymentNotConfirmed})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/confirm?sessionId=cs_open", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebhookEndpointAcknowledges(t *testing.T) {
	reconciler := &stubReconciler{}
	app := newPaymentApp(reconciler)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(`{"type":"checkout.session.completed"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if reconciler.lastSignature != "t=1,v1=abc" {
		t.Fatalf("expected signature header forwarded, got %q", reconciler.lastSignature)
	}
	if string(reconciler.lastPayload) != `{"type":"checkout.session.completed"}` {
		t.Fatalf("expected raw payload forwarded, got %s", reconciler.lastPayload)
	}
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	app := newPaymentApp(&stubReconciler{webhookErr: payments.ErrInvalidSignature})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader("{}"))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebhookEndpointUnknownBooking(t *testing.T) {
	app := newPaymentApp(&stubReconciler{webhookErr: services.ErrBookingNotFound})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader("{}"))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
