package services

import (
	"context"
	"log"

	"github.com/avelisco/CoachBookBack/internal/models"
)

// BookingNotifier is a fire-and-forget sink for booking lifecycle events.
// Email and calendar delivery live behind this boundary; failures are logged
// by implementations and never block a state transition.
type BookingNotifier interface {
	BookingConfirmed(ctx context.Context, booking *models.Booking)
	SubscriptionCancelled(ctx context.Context, subscription *models.UserSubscription)
}

// LogNotifier is the default sink used when no mail transport is configured.
type LogNotifier struct{}

func (LogNotifier) BookingConfirmed(_ context.Context, booking *models.Booking) {
	log.Printf("booking %d confirmed for %s", booking.ID, booking.Email)
}

func (LogNotifier) SubscriptionCancelled(_ context.Context, subscription *models.UserSubscription) {
	log.Printf("subscription %d cancelled for %s", subscription.ID, subscription.UserEmail)
}
