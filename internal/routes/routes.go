package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelisco/CoachBookBack/internal/config"
	"github.com/avelisco/CoachBookBack/internal/handlers"
	"github.com/avelisco/CoachBookBack/internal/payments"
	"github.com/avelisco/CoachBookBack/internal/rates"
	"github.com/avelisco/CoachBookBack/internal/repository"
	"github.com/avelisco/CoachBookBack/internal/services"
)

// Services groups the long-lived services so main can hand them to the
// background reaper as well as to the HTTP surface.
type Services struct {
	Bookings *services.BookingService
	Checkout *services.CheckoutService
	Payments *services.PaymentService
	Quota    *services.QuotaService
	Currency *services.CurrencyService
}

// RegisterRoutes wires repositories, services, and handlers onto the app.
// It fails when the offering metadata mapping is incomplete, so a missing
// entry surfaces at startup instead of mid-reconciliation.
func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) (*Services, error) {
	if err := payments.ValidateMetadataMapping(); err != nil {
		return nil, err
	}

	bookingRepo := repository.NewBookingRepository(db)
	packRepo := repository.NewSessionPackRepository(db)
	subscriptionRepo := repository.NewUserSubscriptionRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	rateRepo := repository.NewExchangeRateRepository(db)

	provider := payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	ratesClient := rates.NewClient(cfg.RatesAPIURL, cfg.RatesAPIKey)
	notifier := services.LogNotifier{}

	currencyService := services.NewCurrencyService(rateRepo, ratesClient, cfg.RateTTL, cfg.RateCooldown)
	bookingService := services.NewBookingService(db, bookingRepo, cfg.DuplicateWindow, cfg.StaleThreshold)
	checkoutService := services.NewCheckoutService(
		bookingRepo,
		priceRepo,
		bookingService,
		currencyService,
		provider,
		cfg.CheckoutSuccessURL,
		cfg.CheckoutCancelURL,
	)
	paymentService := services.NewPaymentService(db, bookingRepo, provider, notifier)
	quotaService := services.NewQuotaService(packRepo, subscriptionRepo, priceRepo, provider, notifier)

	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, bookingService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	quotaHandler := handlers.NewQuotaHandler(quotaService)

	api := app.Group("/api")

	api.Post("/checkout", checkoutHandler.StartCheckout)

	paymentsGroup := api.Group("/payments")
	paymentsGroup.Post("/confirm", paymentHandler.ConfirmPayment)
	paymentsGroup.Post("/webhook", paymentHandler.Webhook)

	api.Get("/packs/:id", quotaHandler.GetPack)
	api.Get("/subscriptions/:id", quotaHandler.GetSubscription)
	api.Post("/subscriptions/:id/cancel", quotaHandler.CancelSubscription)

	return &Services{
		Bookings: bookingService,
		Checkout: checkoutService,
		Payments: paymentService,
		Quota:    quotaService,
		Currency: currencyService,
	}, nil
}
