package models

import "time"

// SessionPack is a prepaid bundle of sessions owned by a user.
type SessionPack struct {
	ID                string     `json:"id"`
	UserEmail         string     `json:"user_email"`
	TotalSessions     int        `json:"total_sessions"`
	SessionsRemaining int        `json:"sessions_remaining"`
	ExpiresAt         *time.Time `json:"expires_at"`
	CreatedAt         time.Time  `json:"created_at"`
}

// SubscriptionPrice is a purchasable plan row. For packs TotalSessions
// carries the bundle size; for subscriptions MonthlyLimit carries the
// monthly allowance. The stripe_* columns cache the external price object
// so it is created at most once per (type, currency, amount, sessions).
type SubscriptionPrice struct {
	ID                  int64       `json:"id"`
	Name                string      `json:"name"`
	BookingType         BookingType `json:"booking_type"`
	AmountGBP           float64     `json:"amount_gbp"`
	MonthlyLimit        int         `json:"monthly_limit"`
	TotalSessions       int         `json:"total_sessions"`
	StripeProductID     *string     `json:"-"`
	StripePriceID       *string     `json:"-"`
	StripePriceCurrency *string     `json:"-"`
	StripePriceAmount   *float64    `json:"-"`
	CreatedAt           time.Time   `json:"created_at"`
}

// UserSubscription tracks one user's recurring plan and its monthly usage.
type UserSubscription struct {
	ID                   int64      `json:"id"`
	UserEmail            string     `json:"user_email"`
	PriceID              int64      `json:"price_id"`
	StripeSubscriptionID *string    `json:"-"`
	SessionsUsed         int        `json:"sessions_used"`
	CurrentPeriodStart   time.Time  `json:"current_period_start"`
	CurrentPeriodEnd     time.Time  `json:"current_period_end"`
	IsActive             bool       `json:"is_active"`
	CancelledAt          *time.Time `json:"cancelled_at"`
	CreatedAt            time.Time  `json:"created_at"`
}
