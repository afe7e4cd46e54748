// Package payments abstracts the external payment provider behind the
// interface the booking core consumes. The Stripe adapter is the only
// place provider wire types appear.
package payments

import "context"

// CheckoutMode distinguishes one-off payments from recurring billing.
type CheckoutMode string

const (
	ModePayment      CheckoutMode = "payment"
	ModeSubscription CheckoutMode = "subscription"
)

const PaymentStatusPaid = "paid"

type CreateCheckoutParams struct {
	PriceID        string
	Quantity       int64
	Mode           CheckoutMode
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

type CheckoutIntent struct {
	ID          string
	RedirectURL string
}

type CheckoutStatus struct {
	ID             string
	PaymentStatus  string
	Metadata       map[string]string
	SubscriptionID *string
}

type EnsurePriceParams struct {
	ProductName string
	Currency    string
	Amount      float64
	Recurring   bool
}

type WebhookEvent struct {
	Type       string
	CheckoutID string
	Metadata   map[string]string
}

// Provider is the payment collaborator contract. Network calls take the
// caller's context and must never run inside a store transaction.
type Provider interface {
	CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*CheckoutIntent, error)
	GetCheckout(ctx context.Context, checkoutID string) (*CheckoutStatus, error)
	EnsurePrice(ctx context.Context, params EnsurePriceParams) (productID string, priceID string, err error)
	VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
	CancelSubscriptionAtPeriodEnd(ctx context.Context, subscriptionID string) error
	ArchivePrice(ctx context.Context, priceID string) error
}
