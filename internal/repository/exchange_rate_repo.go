package repository

import (
	"context"
	"time"

	"github.com/avelisco/CoachBookBack/internal/models"
)

type ExchangeRateRepository struct {
	db DBTX
}

func NewExchangeRateRepository(db DBTX) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: db}
}

// GetCurrent returns the cached rate for the pair if it has not expired,
// or pgx.ErrNoRows otherwise.
func (r *ExchangeRateRepository) GetCurrent(
	ctx context.Context,
	fromCurrency string,
	toCurrency string,
) (*models.ExchangeRate, error) {
	query := `
		SELECT id, from_currency, to_currency, rate, source, updated_at, expires_at
		FROM exchange_rates
		WHERE from_currency = $1 AND to_currency = $2 AND expires_at > NOW()`
	var rate models.ExchangeRate
	err := r.db.QueryRow(ctx, query, fromCurrency, toCurrency).Scan(
		&rate.ID,
		&rate.FromCurrency,
		&rate.ToCurrency,
		&rate.Rate,
		&rate.Source,
		&rate.UpdatedAt,
		&rate.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *ExchangeRateRepository) Upsert(
	ctx context.Context,
	fromCurrency string,
	toCurrency string,
	rate float64,
	source string,
	expiresAt time.Time,
) error {
	query := `
		INSERT INTO exchange_rates (from_currency, to_currency, rate, source, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, NOW(), $5)
		ON CONFLICT (from_currency, to_currency)
		DO UPDATE SET rate = EXCLUDED.rate, source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at`
	_, err := r.db.Exec(ctx, query, fromCurrency, toCurrency, rate, source, expiresAt)
	return err
}
