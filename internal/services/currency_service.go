package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avelisco/CoachBookBack/internal/models"
)

// BaseCurrency is the currency all stored prices are denominated in.
const BaseCurrency = "GBP"

// fallbackRatesFromGBP backs conversions when both the cache and the
// upstream API are unavailable. Rough rates, refreshed by hand.
var fallbackRatesFromGBP = map[string]float64{
	"USD": 1.27,
	"EUR": 1.17,
	"CHF": 1.12,
	"CAD": 1.74,
	"AUD": 1.92,
	"NZD": 2.08,
	"JPY": 190.0,
	"SEK": 13.3,
	"NOK": 13.6,
	"DKK": 8.72,
	"PLN": 5.05,
	"CZK": 29.5,
	"BRL": 6.95,
	"INR": 106.0,
	"ZAR": 23.0,
	"SGD": 1.71,
	"HKD": 9.9,
	"KRW": 1730.0,
	"VND": 31500.0,
}

var supportedCurrencies = func() map[string]struct{} {
	set := map[string]struct{}{BaseCurrency: {}}
	for code := range fallbackRatesFromGBP {
		set[code] = struct{}{}
	}
	for _, code := range []string{"AED", "MXN", "TRY", "CNY", "THB", "ILS", "RON", "HUF"} {
		set[code] = struct{}{}
	}
	return set
}()

type rateStore interface {
	GetCurrent(ctx context.Context, fromCurrency, toCurrency string) (*models.ExchangeRate, error)
	Upsert(ctx context.Context, fromCurrency, toCurrency string, rate float64, source string, expiresAt time.Time) error
}

type rateFetcher interface {
	FetchLatest(ctx context.Context, baseCurrency string) (map[string]float64, error)
}

// CurrencyService resolves GBP prices into a requested currency through a
// store-resident rate cache with a throttled upstream refresh.
type CurrencyService struct {
	rates    rateStore
	fetcher  rateFetcher
	ttl      time.Duration
	cooldown time.Duration

	mu          sync.Mutex
	lastAPICall time.Time
}

func NewCurrencyService(
	rates rateStore,
	fetcher rateFetcher,
	ttl time.Duration,
	cooldown time.Duration,
) *CurrencyService {
	return &CurrencyService{
		rates:    rates,
		fetcher:  fetcher,
		ttl:      ttl,
		cooldown: cooldown,
	}
}

// Normalize coerces an unusable requested currency to the base currency.
// This is deliberately a warning, not an error: a bad currency hint from the
// client should not kill a checkout.
func (s *CurrencyService) Normalize(currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return BaseCurrency
	}
	if _, ok := supportedCurrencies[code]; !ok {
		log.Printf("currency: unsupported currency %q, falling back to %s", currency, BaseCurrency)
		return BaseCurrency
	}
	return code
}

// Convert resolves a GBP amount in the target currency. On total rate
// unavailability it returns the GBP amount unchanged alongside
// ErrNoExchangeRate so the caller still has a usable figure.
func (s *CurrencyService) Convert(
	ctx context.Context,
	amountGBP float64,
	targetCurrency string,
) (float64, error) {
	target := strings.ToUpper(strings.TrimSpace(targetCurrency))
	if target == "" {
		log.Printf("currency: empty target currency, treating amount as %s", BaseCurrency)
		return amountGBP, nil
	}
	if target == BaseCurrency {
		return amountGBP, nil
	}

	if rate, err := s.rates.GetCurrent(ctx, BaseCurrency, target); err == nil {
		return roundForCurrency(target, amountGBP*rate.Rate), nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return amountGBP, fmt.Errorf("read cached rate %s->%s: %w", BaseCurrency, target, err)
	}

	if s.tryAcquireRefresh() {
		if err := s.refreshRates(ctx); err != nil {
			log.Printf("currency: rate refresh failed: %v", err)
		} else if rate, err := s.rates.GetCurrent(ctx, BaseCurrency, target); err == nil {
			return roundForCurrency(target, amountGBP*rate.Rate), nil
		}
	}

	if fallback, ok := fallbackRatesFromGBP[target]; ok {
		expiresAt := time.Now().UTC().Add(s.ttl)
		if err := s.rates.Upsert(ctx, BaseCurrency, target, fallback, models.RateSourceFallback, expiresAt); err != nil {
			log.Printf("currency: caching fallback rate %s->%s: %v", BaseCurrency, target, err)
		}
		return roundForCurrency(target, amountGBP*fallback), nil
	}

	return amountGBP, ErrNoExchangeRate
}

// tryAcquireRefresh claims the upstream-call slot if the cooldown has
// elapsed. The timestamp is taken eagerly so concurrent converts cannot
// stampede the API while a refresh is in flight.
func (s *CurrencyService) tryAcquireRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if now.Sub(s.lastAPICall) < s.cooldown {
		return false
	}
	s.lastAPICall = now
	return true
}

// refreshRates pulls the full upstream table and caches every pair, not just
// the one that missed.
func (s *CurrencyService) refreshRates(ctx context.Context) error {
	fetched, err := s.fetcher.FetchLatest(ctx, BaseCurrency)
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(s.ttl)
	for code, rate := range fetched {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || code == BaseCurrency || rate <= 0 {
			continue
		}
		if err := s.rates.Upsert(ctx, BaseCurrency, code, rate, models.RateSourceAPI, expiresAt); err != nil {
			return fmt.Errorf("cache rate %s->%s: %w", BaseCurrency, code, err)
		}
	}
	return nil
}

func roundForCurrency(currency string, amount float64) float64 {
	if models.IsZeroDecimalCurrency(currency) {
		return math.Round(amount)
	}
	return math.Round(amount*100) / 100
}
