package models

import "time"

// BookingType is the fixed set of offerings a booking can be made against.
type BookingType string

const (
	BookingTypeSingle       BookingType = "single_session"
	BookingTypePack         BookingType = "session_pack"
	BookingTypeSubscription BookingType = "subscription"
)

func (t BookingType) Valid() bool {
	switch t {
	case BookingTypeSingle, BookingTypePack, BookingTypeSubscription:
		return true
	}
	return false
}

type Booking struct {
	ID                 int64       `json:"id"`
	Email              string      `json:"email"`
	FirstName          string      `json:"first_name"`
	LastName           string      `json:"last_name"`
	BookingType        BookingType `json:"booking_type"`
	PreferredAt        time.Time   `json:"preferred_at"`
	Message            *string     `json:"message"`
	IsDiscoveryCall    bool        `json:"is_discovery_call"`
	PackReference      *string     `json:"pack_reference"`
	ExternalCheckoutID *string     `json:"external_checkout_id"`
	Paid               bool        `json:"paid"`
	PaidAt             *time.Time  `json:"paid_at"`
	Pending            bool        `json:"pending"`
	CreatedAt          time.Time   `json:"created_at"`
}

// Confirmed reports whether the booking already went through payment
// reconciliation. Used as the idempotency short-circuit.
func (b *Booking) Confirmed() bool {
	return b.Paid && !b.Pending
}

// VideoSession is the call resource owned by a confirmed booking.
// At most one exists per booking, created lazily once the booking
// leaves the pending state.
type VideoSession struct {
	ID          int64     `json:"id"`
	BookingID   int64     `json:"booking_id"`
	RoomID      string    `json:"room_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at"`
}
