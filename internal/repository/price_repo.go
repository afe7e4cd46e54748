package repository

import (
	"context"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/jackc/pgx/v5"
)

const priceColumns = `id, name, booking_type, amount_gbp, monthly_limit, total_sessions,
		stripe_product_id, stripe_price_id, stripe_price_currency, stripe_price_amount, created_at`

type PriceRepository struct {
	db DBTX
}

func NewPriceRepository(db DBTX) *PriceRepository {
	return &PriceRepository{db: db}
}

func scanPrice(row pgx.Row) (*models.SubscriptionPrice, error) {
	var price models.SubscriptionPrice
	err := row.Scan(
		&price.ID,
		&price.Name,
		&price.BookingType,
		&price.AmountGBP,
		&price.MonthlyLimit,
		&price.TotalSessions,
		&price.StripeProductID,
		&price.StripePriceID,
		&price.StripePriceCurrency,
		&price.StripePriceAmount,
		&price.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *PriceRepository) GetByID(
	ctx context.Context,
	priceID int64,
) (*models.SubscriptionPrice, error) {
	query := `SELECT ` + priceColumns + ` FROM subscription_prices WHERE id = $1`
	return scanPrice(r.db.QueryRow(ctx, query, priceID))
}

// GetFlatByType resolves the flat price row for offerings without a plan id.
func (r *PriceRepository) GetFlatByType(
	ctx context.Context,
	bookingType models.BookingType,
) (*models.SubscriptionPrice, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM subscription_prices
		WHERE booking_type = $1
		ORDER BY id ASC
		LIMIT 1`
	return scanPrice(r.db.QueryRow(ctx, query, bookingType))
}

// CacheStripePrice stores the lazily created external price object so it is
// reused for subsequent checkouts with the same currency and amount.
func (r *PriceRepository) CacheStripePrice(
	ctx context.Context,
	priceID int64,
	stripeProductID string,
	stripePriceID string,
	currency string,
	amount float64,
) error {
	query := `
		UPDATE subscription_prices
		SET stripe_product_id = $2, stripe_price_id = $3, stripe_price_currency = $4, stripe_price_amount = $5
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, priceID, stripeProductID, stripePriceID, currency, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
