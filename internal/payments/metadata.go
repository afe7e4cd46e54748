package payments

import (
	"fmt"

	"github.com/avelisco/CoachBookBack/internal/models"
)

// Metadata keys attached to every checkout intent. The provider-held copy is
// the source of truth during reconciliation.
const (
	MetaBookingID   = "booking_id"
	MetaBookingType = "booking_type"
	MetaPlanID      = "plan_id"
	MetaCurrency    = "currency"
)

const webhookEventCheckoutCompleted = "checkout.session.completed"

// bookingTypeMetadata is the typed mapping between offerings and the strings
// carried in provider metadata. Validated at startup so a missing entry fails
// fast instead of surfacing as a silent parse fallback mid-reconciliation.
var bookingTypeMetadata = map[models.BookingType]string{
	models.BookingTypeSingle:       string(models.BookingTypeSingle),
	models.BookingTypePack:         string(models.BookingTypePack),
	models.BookingTypeSubscription: string(models.BookingTypeSubscription),
}

func BookingTypeMetadataValue(t models.BookingType) (string, error) {
	value, ok := bookingTypeMetadata[t]
	if !ok {
		return "", fmt.Errorf("no metadata mapping for booking type %q", t)
	}
	return value, nil
}

func ParseBookingTypeMetadata(value string) (models.BookingType, error) {
	for bookingType, mapped := range bookingTypeMetadata {
		if mapped == value {
			return bookingType, nil
		}
	}
	return "", fmt.Errorf("unknown booking type metadata %q", value)
}

// ValidateMetadataMapping checks every offering has a metadata entry.
// Called during route registration.
func ValidateMetadataMapping() error {
	for _, t := range []models.BookingType{
		models.BookingTypeSingle,
		models.BookingTypePack,
		models.BookingTypeSubscription,
	} {
		if _, ok := bookingTypeMetadata[t]; !ok {
			return fmt.Errorf("booking type %q missing from metadata mapping", t)
		}
	}
	return nil
}
