package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/avelisco/CoachBookBack/internal/payments"
)

type packLedger interface {
	GetByID(ctx context.Context, packID string) (*models.SessionPack, error)
	ConsumeIfAvailable(ctx context.Context, userEmail, packID string) (*models.SessionPack, error)
	Restore(ctx context.Context, userEmail, packID string) (*models.SessionPack, error)
}

type subscriptionLedger interface {
	GetByID(ctx context.Context, subscriptionID int64) (*models.UserSubscription, error)
	ResetPeriod(ctx context.Context, subscriptionID int64, periodStart, periodEnd time.Time) (*models.UserSubscription, error)
	IncrementUsageIfUnder(ctx context.Context, subscriptionID int64, monthlyLimit int) (*models.UserSubscription, error)
	DecrementUsage(ctx context.Context, subscriptionID int64) (*models.UserSubscription, error)
	Deactivate(ctx context.Context, subscriptionID int64, cancelledAt, periodEnd time.Time) (*models.UserSubscription, error)
}

type quotaPriceReader interface {
	GetByID(ctx context.Context, priceID int64) (*models.SubscriptionPrice, error)
}

// QuotaService is the ledger for prepaid packs and monthly subscription
// allowances. Consumption is attributed to exactly one booking; every
// mutation is a single conditional statement so counters cannot go negative
// or overshoot under concurrent calls.
type QuotaService struct {
	packs    packLedger
	subs     subscriptionLedger
	prices   quotaPriceReader
	provider payments.Provider
	notifier BookingNotifier
}

func NewQuotaService(
	packs packLedger,
	subs subscriptionLedger,
	prices quotaPriceReader,
	provider payments.Provider,
	notifier BookingNotifier,
) *QuotaService {
	return &QuotaService{
		packs:    packs,
		subs:     subs,
		prices:   prices,
		provider: provider,
		notifier: notifier,
	}
}

// ConsumePackSession debits one session from a matching, unexpired pack with
// sessions left. ErrNoValidPack when none qualifies; nothing is mutated then.
func (s *QuotaService) ConsumePackSession(
	ctx context.Context,
	userEmail string,
	packID string,
) (*models.SessionPack, error) {
	pack, err := s.packs.ConsumeIfAvailable(ctx, userEmail, packID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoValidPack
		}
		return nil, fmt.Errorf("consume pack session: %w", err)
	}
	return pack, nil
}

// RollbackPackSession is the compensating action for a consumption whose
// surrounding flow failed afterwards.
func (s *QuotaService) RollbackPackSession(
	ctx context.Context,
	userEmail string,
	packID string,
) (*models.SessionPack, error) {
	pack, err := s.packs.Restore(ctx, userEmail, packID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoValidPack
		}
		return nil, fmt.Errorf("rollback pack session: %w", err)
	}
	return pack, nil
}

func (s *QuotaService) PackRemaining(
	ctx context.Context,
	packID string,
) (*models.SessionPack, error) {
	pack, err := s.packs.GetByID(ctx, packID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoValidPack
		}
		return nil, err
	}
	return pack, nil
}

// SubscriptionStatus returns the subscription together with how many sessions
// are left in the current period. A window that has already rolled over reads
// as a full allowance; the reset itself waits for the next registration.
func (s *QuotaService) SubscriptionStatus(
	ctx context.Context,
	userEmail string,
	subscriptionID int64,
) (*models.UserSubscription, int, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrSubscriptionNotFound
		}
		return nil, 0, err
	}
	if sub.UserEmail != userEmail {
		return nil, 0, ErrSubscriptionNotFound
	}

	price, err := s.prices.GetByID(ctx, sub.PriceID)
	if err != nil {
		return nil, 0, fmt.Errorf("load price %d: %w", sub.PriceID, err)
	}

	remaining := price.MonthlyLimit
	if !periodRolledOver(time.Now().UTC(), sub) {
		remaining -= sub.SessionsUsed
		if remaining < 0 {
			remaining = 0
		}
	}
	return sub, remaining, nil
}

// RegisterMonthlyUsage counts one session against the subscription's monthly
// allowance, resetting the counter and advancing the window first when the
// calendar has rolled into a new period.
func (s *QuotaService) RegisterMonthlyUsage(
	ctx context.Context,
	userEmail string,
	subscriptionID int64,
) (*models.UserSubscription, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("load subscription %d: %w", subscriptionID, err)
	}
	if sub.UserEmail != userEmail {
		return nil, ErrSubscriptionNotFound
	}

	price, err := s.prices.GetByID(ctx, sub.PriceID)
	if err != nil {
		return nil, fmt.Errorf("load price %d: %w", sub.PriceID, err)
	}

	return registerMonthlyUsage(ctx, s.subs, sub, price.MonthlyLimit, time.Now().UTC())
}

// RollbackMonthlyUsage undoes one registration, floored at zero.
func (s *QuotaService) RollbackMonthlyUsage(
	ctx context.Context,
	userEmail string,
	subscriptionID int64,
) (*models.UserSubscription, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if sub.UserEmail != userEmail {
		return nil, ErrSubscriptionNotFound
	}
	return s.subs.DecrementUsage(ctx, subscriptionID)
}

// CancelSubscription asks the provider for a cancel-at-period-end, then
// deactivates the local record with the period end pinned to the end of the
// current calendar month. No mid-period clawback.
func (s *QuotaService) CancelSubscription(
	ctx context.Context,
	userEmail string,
	subscriptionID int64,
) (*models.UserSubscription, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if sub.UserEmail != userEmail {
		return nil, ErrSubscriptionNotFound
	}

	if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID != "" {
		if err := s.provider.CancelSubscriptionAtPeriodEnd(ctx, *sub.StripeSubscriptionID); err != nil {
			log.Printf("cancel subscription %d: provider call failed: %v", subscriptionID, err)
			return nil, err
		}
	}

	now := time.Now().UTC()
	_, periodEnd := calendarMonthWindow(now)
	cancelled, err := s.subs.Deactivate(ctx, subscriptionID, now, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("deactivate subscription %d: %w", subscriptionID, err)
	}

	go s.notifier.SubscriptionCancelled(context.WithoutCancel(ctx), cancelled)
	return cancelled, nil
}

// registerMonthlyUsage applies rollover-then-increment against whichever
// ledger it is given, so the payment reconciler can run the same logic on a
// transaction-scoped repository.
func registerMonthlyUsage(
	ctx context.Context,
	subs subscriptionLedger,
	sub *models.UserSubscription,
	monthlyLimit int,
	now time.Time,
) (*models.UserSubscription, error) {
	if periodRolledOver(now, sub) {
		periodStart, periodEnd := calendarMonthWindow(now)
		reset, err := subs.ResetPeriod(ctx, sub.ID, periodStart, periodEnd)
		if err != nil {
			return nil, fmt.Errorf("reset subscription period: %w", err)
		}
		sub = reset
	}

	updated, err := subs.IncrementUsageIfUnder(ctx, sub.ID, monthlyLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMonthlyLimitReached
		}
		return nil, fmt.Errorf("register monthly usage: %w", err)
	}
	return updated, nil
}

// periodRolledOver reports whether the usage window no longer covers now.
// Leaving the window counts, and so does crossing into a new calendar month
// even when the seeded now+1month window would still be open.
func periodRolledOver(now time.Time, sub *models.UserSubscription) bool {
	if now.Before(sub.CurrentPeriodStart) || now.After(sub.CurrentPeriodEnd) {
		return true
	}
	return now.Year() != sub.CurrentPeriodStart.Year() || now.Month() != sub.CurrentPeriodStart.Month()
}

// calendarMonthWindow returns the first instants of now's month and the next.
func calendarMonthWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
