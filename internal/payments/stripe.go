package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/avelisco/CoachBookBack/internal/models"
)

// ErrInvalidSignature marks a webhook payload whose signature failed
// verification. Never retried.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// MinorUnits converts a decimal amount to the provider's integer unit_amount.
func MinorUnits(currency string, amount float64) int64 {
	if models.IsZeroDecimalCurrency(currency) {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}

type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreateCheckout(
	ctx context.Context,
	params CreateCheckoutParams,
) (*CheckoutIntent, error) {
	mode := stripe.CheckoutSessionModePayment
	if params.Mode == ModeSubscription {
		mode = stripe.CheckoutSessionModeSubscription
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(params.Quantity),
			},
		},
	}
	sessionParams.Context = ctx
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	for key, value := range params.Metadata {
		sessionParams.AddMetadata(key, value)
	}
	if params.IdempotencyKey != "" {
		sessionParams.SetIdempotencyKey(params.IdempotencyKey)
	}

	session, err := p.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutIntent{ID: session.ID, RedirectURL: session.URL}, nil
}

func (p *StripeProvider) GetCheckout(
	ctx context.Context,
	checkoutID string,
) (*CheckoutStatus, error) {
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx

	session, err := p.api.CheckoutSessions.Get(checkoutID, getParams)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	status := &CheckoutStatus{
		ID:            session.ID,
		PaymentStatus: string(session.PaymentStatus),
		Metadata:      session.Metadata,
	}
	if session.Subscription != nil && session.Subscription.ID != "" {
		subscriptionID := session.Subscription.ID
		status.SubscriptionID = &subscriptionID
	}
	return status, nil
}

func (p *StripeProvider) EnsurePrice(
	ctx context.Context,
	params EnsurePriceParams,
) (string, string, error) {
	productParams := &stripe.ProductParams{Name: stripe.String(params.ProductName)}
	productParams.Context = ctx
	product, err := p.api.Products.New(productParams)
	if err != nil {
		return "", "", fmt.Errorf("create product: %w", err)
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(product.ID),
		Currency:   stripe.String(strings.ToLower(params.Currency)),
		UnitAmount: stripe.Int64(MinorUnits(params.Currency, params.Amount)),
	}
	priceParams.Context = ctx
	if params.Recurring {
		priceParams.Recurring = &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		}
	}
	price, err := p.api.Prices.New(priceParams)
	if err != nil {
		return "", "", fmt.Errorf("create price: %w", err)
	}
	return product.ID, price.ID, nil
}

func (p *StripeProvider) VerifyWebhook(
	payload []byte,
	signatureHeader string,
) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	webhookEvent := &WebhookEvent{Type: string(event.Type)}
	if webhookEvent.Type == webhookEventCheckoutCompleted {
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session payload: %w", err)
		}
		webhookEvent.CheckoutID = session.ID
		webhookEvent.Metadata = session.Metadata
	}
	return webhookEvent, nil
}

func (p *StripeProvider) CancelSubscriptionAtPeriodEnd(
	ctx context.Context,
	subscriptionID string,
) error {
	updateParams := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	updateParams.Context = ctx
	if _, err := p.api.Subscriptions.Update(subscriptionID, updateParams); err != nil {
		return fmt.Errorf("cancel subscription at period end: %w", err)
	}
	return nil
}

func (p *StripeProvider) ArchivePrice(ctx context.Context, priceID string) error {
	updateParams := &stripe.PriceParams{Active: stripe.Bool(false)}
	updateParams.Context = ctx
	if _, err := p.api.Prices.Update(priceID, updateParams); err != nil {
		return fmt.Errorf("archive price: %w", err)
	}
	return nil
}
