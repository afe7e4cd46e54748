package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/avelisco/CoachBookBack/internal/payments"
)

type checkoutBookingStore interface {
	GetByID(ctx context.Context, bookingID int64) (*models.Booking, error)
	SetExternalCheckoutID(ctx context.Context, bookingID int64, externalCheckoutID string) error
}

type checkoutPriceStore interface {
	GetByID(ctx context.Context, priceID int64) (*models.SubscriptionPrice, error)
	GetFlatByType(ctx context.Context, bookingType models.BookingType) (*models.SubscriptionPrice, error)
	CacheStripePrice(ctx context.Context, priceID int64, stripeProductID, stripePriceID, currency string, amount float64) error
}

type staleCleaner interface {
	CleanupStale(ctx context.Context, email string, bookingType models.BookingType, packReference *string) (int64, error)
}

type currencyConverter interface {
	Normalize(currency string) string
	Convert(ctx context.Context, amountGBP float64, targetCurrency string) (float64, error)
}

type StartCheckoutRequest struct {
	BookingID      int64
	BookingType    models.BookingType
	PlanID         *int64
	PackID         *string
	Currency       string
	IdempotencyKey string
}

// CheckoutService turns a pending booking into an external payment redirect.
type CheckoutService struct {
	bookings   checkoutBookingStore
	prices     checkoutPriceStore
	cleaner    staleCleaner
	converter  currencyConverter
	provider   payments.Provider
	successURL string
	cancelURL  string
}

func NewCheckoutService(
	bookings checkoutBookingStore,
	prices checkoutPriceStore,
	cleaner staleCleaner,
	converter currencyConverter,
	provider payments.Provider,
	successURL string,
	cancelURL string,
) *CheckoutService {
	return &CheckoutService{
		bookings:   bookings,
		prices:     prices,
		cleaner:    cleaner,
		converter:  converter,
		provider:   provider,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// StartCheckout validates the request, prices it in the requested currency,
// creates the external checkout intent, and binds its id to the pending
// booking. Returns the provider redirect URL.
func (s *CheckoutService) StartCheckout(
	ctx context.Context,
	req StartCheckoutRequest,
) (string, error) {
	if err := validateCheckoutRequest(req); err != nil {
		return "", err
	}

	booking, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrBookingNotFound
		}
		return "", fmt.Errorf("load booking %d: %w", req.BookingID, err)
	}
	if !booking.Pending {
		return "", ErrBookingNotPending
	}

	// Retried client requests must not leave older pending rows behind.
	if _, err := s.cleaner.CleanupStale(ctx, booking.Email, req.BookingType, booking.PackReference); err != nil {
		return "", err
	}

	price, err := s.resolvePrice(ctx, req)
	if err != nil {
		return "", err
	}

	currency := s.converter.Normalize(req.Currency)
	amount, err := s.converter.Convert(ctx, price.AmountGBP, currency)
	if err != nil {
		log.Printf("checkout: converting %.2f GBP to %s: %v", price.AmountGBP, currency, err)
		return "", fmt.Errorf("%w: %v", ErrCurrencyConversion, err)
	}

	stripePriceID, err := s.ensureStripePrice(ctx, price, currency, amount)
	if err != nil {
		return "", err
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	metadata, err := checkoutMetadata(booking, req, currency)
	if err != nil {
		return "", err
	}

	mode := payments.ModePayment
	if req.BookingType == models.BookingTypeSubscription {
		mode = payments.ModeSubscription
	}

	intent, err := s.provider.CreateCheckout(ctx, payments.CreateCheckoutParams{
		PriceID:        stripePriceID,
		Quantity:       1,
		Mode:           mode,
		CustomerEmail:  booking.Email,
		SuccessURL:     s.successURL,
		CancelURL:      s.cancelURL,
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		log.Printf("checkout: creating checkout intent for booking %d: %v", booking.ID, err)
		return "", err
	}

	if err := s.bookings.SetExternalCheckoutID(ctx, booking.ID, intent.ID); err != nil {
		return "", fmt.Errorf("bind checkout %s to booking %d: %w", intent.ID, booking.ID, err)
	}

	return intent.RedirectURL, nil
}

func validateCheckoutRequest(req StartCheckoutRequest) error {
	if req.BookingID <= 0 || !req.BookingType.Valid() {
		return ErrValidation
	}
	switch req.BookingType {
	case models.BookingTypeSingle:
		if req.PlanID != nil || req.PackID != nil {
			return ErrValidation
		}
	case models.BookingTypePack:
		if req.PlanID == nil || req.PackID == nil {
			return ErrValidation
		}
	case models.BookingTypeSubscription:
		if req.PlanID == nil {
			return ErrValidation
		}
	}
	return nil
}

func (s *CheckoutService) resolvePrice(
	ctx context.Context,
	req StartCheckoutRequest,
) (*models.SubscriptionPrice, error) {
	if req.PlanID != nil {
		price, err := s.prices.GetByID(ctx, *req.PlanID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrValidation
			}
			return nil, fmt.Errorf("load plan %d: %w", *req.PlanID, err)
		}
		if price.BookingType != req.BookingType {
			return nil, ErrValidation
		}
		return price, nil
	}

	price, err := s.prices.GetFlatByType(ctx, models.BookingTypeSingle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrValidation
		}
		return nil, fmt.Errorf("load flat price: %w", err)
	}
	return price, nil
}

// ensureStripePrice reuses the cached external price object when its currency
// and amount still match, creating and caching a fresh one otherwise.
func (s *CheckoutService) ensureStripePrice(
	ctx context.Context,
	price *models.SubscriptionPrice,
	currency string,
	amount float64,
) (string, error) {
	if price.StripePriceID != nil && *price.StripePriceID != "" &&
		price.StripePriceCurrency != nil && *price.StripePriceCurrency == currency &&
		price.StripePriceAmount != nil && *price.StripePriceAmount == amount {
		return *price.StripePriceID, nil
	}

	productName := price.Name
	if price.BookingType == models.BookingTypePack && price.TotalSessions > 0 {
		productName = fmt.Sprintf("%s (%d sessions)", price.Name, price.TotalSessions)
	}

	productID, stripePriceID, err := s.provider.EnsurePrice(ctx, payments.EnsurePriceParams{
		ProductName: productName,
		Currency:    currency,
		Amount:      amount,
		Recurring:   price.BookingType == models.BookingTypeSubscription,
	})
	if err != nil {
		log.Printf("checkout: creating external price for plan %d: %v", price.ID, err)
		return "", err
	}

	if err := s.prices.CacheStripePrice(ctx, price.ID, productID, stripePriceID, currency, amount); err != nil {
		return "", fmt.Errorf("cache external price for plan %d: %w", price.ID, err)
	}
	return stripePriceID, nil
}

func checkoutMetadata(
	booking *models.Booking,
	req StartCheckoutRequest,
	currency string,
) (map[string]string, error) {
	typeValue, err := payments.BookingTypeMetadataValue(req.BookingType)
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{
		payments.MetaBookingID:   strconv.FormatInt(booking.ID, 10),
		payments.MetaBookingType: typeValue,
		payments.MetaCurrency:    currency,
	}
	if req.PlanID != nil {
		metadata[payments.MetaPlanID] = strconv.FormatInt(*req.PlanID, 10)
	}
	return metadata, nil
}
