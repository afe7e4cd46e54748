package services

import "errors"

var (
	ErrValidation           = errors.New("invalid request")
	ErrDuplicateBooking     = errors.New("a booking for this slot is already in progress")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingNotPending    = errors.New("booking is not pending")
	ErrCurrencyConversion   = errors.New("currency conversion failed")
	ErrNoExchangeRate       = errors.New("no exchange rate available")
	ErrNoValidPack          = errors.New("no valid session pack")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrMonthlyLimitReached  = errors.New("monthly session limit reached")
	ErrPaymentNotConfirmed  = errors.New("payment not confirmed")
)
