package repository

import (
	"context"
	"time"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/jackc/pgx/v5"
)

const userSubscriptionColumns = `id, user_email, price_id, stripe_subscription_id, sessions_used,
		current_period_start, current_period_end, is_active, cancelled_at, created_at`

type CreateUserSubscriptionInput struct {
	UserEmail            string
	PriceID              int64
	StripeSubscriptionID *string
	SessionsUsed         int
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
}

type UserSubscriptionRepository struct {
	db DBTX
}

func NewUserSubscriptionRepository(db DBTX) *UserSubscriptionRepository {
	return &UserSubscriptionRepository{db: db}
}

func scanUserSubscription(row pgx.Row) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := row.Scan(
		&sub.ID,
		&sub.UserEmail,
		&sub.PriceID,
		&sub.StripeSubscriptionID,
		&sub.SessionsUsed,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.IsActive,
		&sub.CancelledAt,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *UserSubscriptionRepository) Create(
	ctx context.Context,
	input CreateUserSubscriptionInput,
) (*models.UserSubscription, error) {
	query := `
		INSERT INTO user_subscriptions (user_email, price_id, stripe_subscription_id, sessions_used,
			current_period_start, current_period_end, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW())
		RETURNING ` + userSubscriptionColumns
	return scanUserSubscription(r.db.QueryRow(
		ctx,
		query,
		input.UserEmail,
		input.PriceID,
		input.StripeSubscriptionID,
		input.SessionsUsed,
		input.CurrentPeriodStart,
		input.CurrentPeriodEnd,
	))
}

func (r *UserSubscriptionRepository) GetByID(
	ctx context.Context,
	subscriptionID int64,
) (*models.UserSubscription, error) {
	query := `SELECT ` + userSubscriptionColumns + ` FROM user_subscriptions WHERE id = $1`
	return scanUserSubscription(r.db.QueryRow(ctx, query, subscriptionID))
}

func (r *UserSubscriptionRepository) GetByUserAndPrice(
	ctx context.Context,
	userEmail string,
	priceID int64,
) (*models.UserSubscription, error) {
	query := `
		SELECT ` + userSubscriptionColumns + `
		FROM user_subscriptions
		WHERE user_email = $1 AND price_id = $2 AND is_active
		ORDER BY id DESC
		LIMIT 1`
	return scanUserSubscription(r.db.QueryRow(ctx, query, userEmail, priceID))
}

func (r *UserSubscriptionRepository) GetByUserAndPriceForUpdate(
	ctx context.Context,
	userEmail string,
	priceID int64,
) (*models.UserSubscription, error) {
	query := `
		SELECT ` + userSubscriptionColumns + `
		FROM user_subscriptions
		WHERE user_email = $1 AND price_id = $2 AND is_active
		ORDER BY id DESC
		LIMIT 1
		FOR UPDATE`
	return scanUserSubscription(r.db.QueryRow(ctx, query, userEmail, priceID))
}

// ResetPeriod advances the usage window after a calendar rollover.
func (r *UserSubscriptionRepository) ResetPeriod(
	ctx context.Context,
	subscriptionID int64,
	periodStart time.Time,
	periodEnd time.Time,
) (*models.UserSubscription, error) {
	query := `
		UPDATE user_subscriptions
		SET sessions_used = 0, current_period_start = $2, current_period_end = $3
		WHERE id = $1
		RETURNING ` + userSubscriptionColumns
	return scanUserSubscription(r.db.QueryRow(ctx, query, subscriptionID, periodStart, periodEnd))
}

// IncrementUsageIfUnder bumps the monthly counter only while it is below the
// limit, so concurrent registrations cannot overshoot the allowance.
func (r *UserSubscriptionRepository) IncrementUsageIfUnder(
	ctx context.Context,
	subscriptionID int64,
	monthlyLimit int,
) (*models.UserSubscription, error) {
	query := `
		UPDATE user_subscriptions
		SET sessions_used = sessions_used + 1
		WHERE id = $1 AND sessions_used < $2
		RETURNING ` + userSubscriptionColumns
	return scanUserSubscription(r.db.QueryRow(ctx, query, subscriptionID, monthlyLimit))
}

func (r *UserSubscriptionRepository) DecrementUsage(
	ctx context.Context,
	subscriptionID int64,
) (*models.UserSubscription, error) {
	query := `
		UPDATE user_subscriptions
		SET sessions_used = GREATEST(sessions_used - 1, 0)
		WHERE id = $1
		RETURNING ` + userSubscriptionColumns
	return scanUserSubscription(r.db.QueryRow(ctx, query, subscriptionID))
}

// Deactivate records a cancellation and pins the period end so remaining-quota
// queries stop granting usage past it.
func (r *UserSubscriptionRepository) Deactivate(
	ctx context.Context,
	subscriptionID int64,
	cancelledAt time.Time,
	periodEnd time.Time,
) (*models.UserSubscription, error) {
	query := `
		UPDATE user_subscriptions
		SET is_active = FALSE, cancelled_at = $2, current_period_end = $3
		WHERE id = $1
		RETURNING ` + userSubscriptionColumns
	return scanUserSubscription(r.db.QueryRow(ctx, query, subscriptionID, cancelledAt, periodEnd))
}
