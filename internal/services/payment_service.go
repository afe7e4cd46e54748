package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/avelisco/CoachBookBack/internal/payments"
	"github.com/avelisco/CoachBookBack/internal/repository"
)

// PaymentService reconciles provider confirmations against local booking and
// quota state. Both entry points, the webhook push and the client's explicit
// confirm call, funnel into ConfirmPayment, which is safe to invoke any
// number of times for the same checkout.
type PaymentService struct {
	db       txBeginner
	bookings *repository.BookingRepository
	provider payments.Provider
	notifier BookingNotifier
}

func NewPaymentService(
	db txBeginner,
	bookings *repository.BookingRepository,
	provider payments.Provider,
	notifier BookingNotifier,
) *PaymentService {
	return &PaymentService{
		db:       db,
		bookings: bookings,
		provider: provider,
		notifier: notifier,
	}
}

// ConfirmPayment drives the pending→paid transition for the booking bound to
// an external checkout id.
//
// The provider is the source of truth twice over: its payment status gates
// the transition, and its metadata (not the locally cached booking row)
// names the booking and offering being reconciled. The provider fetch happens
// before any transaction opens; the local writes then commit as one unit
// behind a conditional update, so a racing duplicate confirmation observes
// the transition already taken and returns success without debiting quota
// again.
func (s *PaymentService) ConfirmPayment(ctx context.Context, externalCheckoutID string) error {
	if externalCheckoutID == "" {
		return ErrValidation
	}

	known, err := s.bookings.GetByExternalCheckoutID(ctx, externalCheckoutID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("load booking for checkout %s: %w", externalCheckoutID, err)
	}
	if known != nil && known.Confirmed() {
		return nil
	}

	status, err := s.provider.GetCheckout(ctx, externalCheckoutID)
	if err != nil {
		log.Printf("reconcile: fetching checkout %s: %v", externalCheckoutID, err)
		return err
	}
	if status.PaymentStatus != payments.PaymentStatusPaid {
		return ErrPaymentNotConfirmed
	}

	bookingID, err := resolveBookingID(status.Metadata, known)
	if err != nil {
		return err
	}
	bookingType, err := payments.ParseBookingTypeMetadata(status.Metadata[payments.MetaBookingType])
	if err != nil {
		return fmt.Errorf("checkout %s: %w", externalCheckoutID, err)
	}

	booking, err := s.applyConfirmation(ctx, bookingID, bookingType, externalCheckoutID, status)
	if err != nil {
		return err
	}
	if booking != nil {
		go s.notifier.BookingConfirmed(context.WithoutCancel(ctx), booking)
	}
	return nil
}

// applyConfirmation runs the local half of reconciliation in one transaction:
// the conditional paid transition, the quota debit, and the lazy video
// session. A nil booking return means another confirmation already won.
func (s *PaymentService) applyConfirmation(
	ctx context.Context,
	bookingID int64,
	bookingType models.BookingType,
	externalCheckoutID string,
	status *payments.CheckoutStatus,
) (*models.Booking, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txBookings := repository.NewBookingRepository(tx)
	txVideoSessions := repository.NewVideoSessionRepository(tx)

	booking, err := txBookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("load booking %d: %w", bookingID, err)
	}

	// Recovery path: the webhook can arrive before the checkout id was
	// persisted onto the booking.
	if booking.ExternalCheckoutID == nil || *booking.ExternalCheckoutID == "" {
		if err := txBookings.SetExternalCheckoutID(ctx, bookingID, externalCheckoutID); err != nil {
			return nil, fmt.Errorf("attach checkout %s to booking %d: %w", externalCheckoutID, bookingID, err)
		}
	}

	if booking.Confirmed() {
		return nil, tx.Commit(ctx)
	}

	booking, err = txBookings.MarkPaidIfPending(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race, or the booking was soft-expired meanwhile.
			// Either way the transition is not ours to apply.
			return nil, tx.Commit(ctx)
		}
		return nil, fmt.Errorf("mark booking %d paid: %w", bookingID, err)
	}

	if err := s.applyQuota(ctx, tx, booking, bookingType, status); err != nil {
		return nil, err
	}

	if err := ensureVideoSession(ctx, txVideoSessions, booking); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return booking, nil
}

// applyQuota attributes the just-paid session to its quota unit inside the
// reconciliation transaction.
func (s *PaymentService) applyQuota(
	ctx context.Context,
	tx pgx.Tx,
	booking *models.Booking,
	bookingType models.BookingType,
	status *payments.CheckoutStatus,
) error {
	switch bookingType {
	case models.BookingTypePack:
		return s.createPurchasedPack(ctx, tx, booking, status)
	case models.BookingTypeSubscription:
		return s.registerSubscriptionUsage(ctx, tx, booking, status)
	default:
		return nil
	}
}

// createPurchasedPack mints the quota unit for a pack purchase. The first
// session is pre-consumed: it is the one being booked right now.
func (s *PaymentService) createPurchasedPack(
	ctx context.Context,
	tx pgx.Tx,
	booking *models.Booking,
	status *payments.CheckoutStatus,
) error {
	price, err := s.planFromMetadata(ctx, tx, status)
	if err != nil {
		return err
	}
	if price.TotalSessions <= 0 {
		return fmt.Errorf("plan %d has no session total", price.ID)
	}

	pack, err := repository.NewSessionPackRepository(tx).Create(ctx, repository.CreateSessionPackInput{
		ID:                uuid.NewString(),
		UserEmail:         booking.Email,
		TotalSessions:     price.TotalSessions,
		SessionsRemaining: price.TotalSessions - 1,
	})
	if err != nil {
		return fmt.Errorf("create session pack for booking %d: %w", booking.ID, err)
	}

	if err := repository.NewBookingRepository(tx).SetPackReference(ctx, booking.ID, pack.ID); err != nil {
		return fmt.Errorf("attach pack %s to booking %d: %w", pack.ID, booking.ID, err)
	}
	booking.PackReference = &pack.ID
	return nil
}

// registerSubscriptionUsage finds or creates the user's subscription record.
// A freshly created one starts with the just-purchased session already
// counted; an existing one goes through rollover-then-increment.
func (s *PaymentService) registerSubscriptionUsage(
	ctx context.Context,
	tx pgx.Tx,
	booking *models.Booking,
	status *payments.CheckoutStatus,
) error {
	price, err := s.planFromMetadata(ctx, tx, status)
	if err != nil {
		return err
	}

	txSubs := repository.NewUserSubscriptionRepository(tx)
	now := time.Now().UTC()

	sub, err := txSubs.GetByUserAndPriceForUpdate(ctx, booking.Email, price.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("load subscription for %s: %w", booking.Email, err)
		}
		_, err := txSubs.Create(ctx, repository.CreateUserSubscriptionInput{
			UserEmail:            booking.Email,
			PriceID:              price.ID,
			StripeSubscriptionID: status.SubscriptionID,
			SessionsUsed:         1,
			CurrentPeriodStart:   now,
			CurrentPeriodEnd:     now.AddDate(0, 1, 0),
		})
		if err != nil {
			return fmt.Errorf("create subscription for %s: %w", booking.Email, err)
		}
		return nil
	}

	if _, err := registerMonthlyUsage(ctx, txSubs, sub, price.MonthlyLimit, now); err != nil {
		return err
	}
	return nil
}

func (s *PaymentService) planFromMetadata(
	ctx context.Context,
	tx pgx.Tx,
	status *payments.CheckoutStatus,
) (*models.SubscriptionPrice, error) {
	planID, err := strconv.ParseInt(status.Metadata[payments.MetaPlanID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("checkout %s carries no usable plan id: %w", status.ID, err)
	}
	price, err := repository.NewPriceRepository(tx).GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load plan %d: %w", planID, err)
	}
	return price, nil
}

// resolveBookingID trusts provider metadata over local state, falling back to
// the locally bound booking only when the metadata is unusable.
func resolveBookingID(metadata map[string]string, known *models.Booking) (int64, error) {
	if raw, ok := metadata[payments.MetaBookingID]; ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	if known != nil {
		return known.ID, nil
	}
	return 0, ErrBookingNotFound
}

// HandleWebhook verifies and dispatches a provider push. Signature failures
// are fatal and mutate nothing; duplicate deliveries for an already handled
// checkout are no-op successes, so the provider's retries converge.
func (s *PaymentService) HandleWebhook(
	ctx context.Context,
	payload []byte,
	signatureHeader string,
) error {
	event, err := s.provider.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		log.Printf("webhook: rejected payload: %v", err)
		return err
	}

	if event.Type != "checkout.session.completed" {
		return nil
	}
	if event.CheckoutID == "" {
		return fmt.Errorf("%w: event carries no checkout id", ErrValidation)
	}

	booking, err := s.bookings.GetByExternalCheckoutID(ctx, event.CheckoutID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("load booking for checkout %s: %w", event.CheckoutID, err)
		}
		// The checkout id was never persisted locally; recover through the
		// provider-embedded booking id.
		bookingID, resolveErr := resolveBookingID(event.Metadata, nil)
		if resolveErr != nil {
			return fmt.Errorf("webhook checkout %s matches no booking", event.CheckoutID)
		}
		booking, err = s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrBookingNotFound
			}
			return fmt.Errorf("load booking %d: %w", bookingID, err)
		}
	}

	if booking.Paid || !booking.Pending {
		return nil
	}

	return s.ConfirmPayment(ctx, event.CheckoutID)
}
