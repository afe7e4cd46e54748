package repository

import (
	"context"
	"time"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, email, first_name, last_name, booking_type, preferred_at, message,
		is_discovery_call, pack_reference, external_checkout_id, paid, paid_at, pending, created_at`

type CreateBookingInput struct {
	Email           string
	FirstName       string
	LastName        string
	BookingType     models.BookingType
	PreferredAt     time.Time
	Message         *string
	IsDiscoveryCall bool
	PackReference   *string
}

type ConfirmBookingUpdates struct {
	FirstName   string
	LastName    string
	PreferredAt time.Time
	Message     *string
}

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var booking models.Booking
	err := row.Scan(
		&booking.ID,
		&booking.Email,
		&booking.FirstName,
		&booking.LastName,
		&booking.BookingType,
		&booking.PreferredAt,
		&booking.Message,
		&booking.IsDiscoveryCall,
		&booking.PackReference,
		&booking.ExternalCheckoutID,
		&booking.Paid,
		&booking.PaidAt,
		&booking.Pending,
		&booking.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) Create(
	ctx context.Context,
	input CreateBookingInput,
) (*models.Booking, error) {
	query := `
		INSERT INTO bookings (email, first_name, last_name, booking_type, preferred_at, message,
			is_discovery_call, pack_reference, pending, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, NOW())
		RETURNING ` + bookingColumns
	return scanBooking(r.db.QueryRow(
		ctx,
		query,
		input.Email,
		input.FirstName,
		input.LastName,
		input.BookingType,
		input.PreferredAt,
		input.Message,
		input.IsDiscoveryCall,
		input.PackReference,
	))
}

// Reuse re-activates an existing row as the pending booking for a retried
// request, clearing any previous payment stamp.
func (r *BookingRepository) Reuse(
	ctx context.Context,
	bookingID int64,
	input CreateBookingInput,
) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET email = $2, first_name = $3, last_name = $4, booking_type = $5, preferred_at = $6,
			message = $7, is_discovery_call = $8, pack_reference = $9,
			pending = TRUE, paid = FALSE, paid_at = NULL, created_at = NOW()
		WHERE id = $1
		RETURNING ` + bookingColumns
	return scanBooking(r.db.QueryRow(
		ctx,
		query,
		bookingID,
		input.Email,
		input.FirstName,
		input.LastName,
		input.BookingType,
		input.PreferredAt,
		input.Message,
		input.IsDiscoveryCall,
		input.PackReference,
	))
}

func (r *BookingRepository) GetByID(ctx context.Context, bookingID int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.db.QueryRow(ctx, query, bookingID))
}

func (r *BookingRepository) GetByExternalCheckoutID(
	ctx context.Context,
	externalCheckoutID string,
) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE external_checkout_id = $1`
	return scanBooking(r.db.QueryRow(ctx, query, externalCheckoutID))
}

// FindPendingMatch returns the pending booking for the duplicate-detection
// tuple, or pgx.ErrNoRows when there is none.
func (r *BookingRepository) FindPendingMatch(
	ctx context.Context,
	email string,
	bookingType models.BookingType,
	preferredAt time.Time,
	packReference *string,
) (*models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE pending
		  AND email = $1
		  AND booking_type = $2
		  AND preferred_at = $3
		  AND pack_reference IS NOT DISTINCT FROM $4
		ORDER BY id DESC
		LIMIT 1`
	return scanBooking(r.db.QueryRow(ctx, query, email, bookingType, preferredAt, packReference))
}

func (r *BookingRepository) SetExternalCheckoutID(
	ctx context.Context,
	bookingID int64,
	externalCheckoutID string,
) error {
	query := `UPDATE bookings SET external_checkout_id = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, bookingID, externalCheckoutID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BookingRepository) SetPackReference(
	ctx context.Context,
	bookingID int64,
	packID string,
) error {
	query := `UPDATE bookings SET pack_reference = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, bookingID, packID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkPaidIfPending is the at-most-once paid transition. It only matches a
// booking that is still pending and unpaid, so a racing second confirmation
// observes pgx.ErrNoRows instead of double-applying.
func (r *BookingRepository) MarkPaidIfPending(
	ctx context.Context,
	bookingID int64,
) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET paid = TRUE, paid_at = NOW(), pending = FALSE
		WHERE id = $1 AND pending AND NOT paid
		RETURNING ` + bookingColumns
	return scanBooking(r.db.QueryRow(ctx, query, bookingID))
}

// ConfirmDetails merges the caller-supplied fields and flips the booking out
// of the pending state without touching the payment stamp.
func (r *BookingRepository) ConfirmDetails(
	ctx context.Context,
	bookingID int64,
	updates ConfirmBookingUpdates,
) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET first_name = $2, last_name = $3, preferred_at = $4, message = $5, pending = FALSE
		WHERE id = $1
		RETURNING ` + bookingColumns
	return scanBooking(r.db.QueryRow(
		ctx,
		query,
		bookingID,
		updates.FirstName,
		updates.LastName,
		updates.PreferredAt,
		updates.Message,
	))
}

// SoftExpire drops a booking out of the pending state without deleting it.
func (r *BookingRepository) SoftExpire(ctx context.Context, bookingID int64) error {
	query := `UPDATE bookings SET pending = FALSE WHERE id = $1 AND pending`
	_, err := r.db.Exec(ctx, query, bookingID)
	return err
}

func (r *BookingRepository) SoftExpireStale(
	ctx context.Context,
	email string,
	bookingType models.BookingType,
	packReference *string,
	olderThan time.Time,
) (int64, error) {
	query := `
		UPDATE bookings
		SET pending = FALSE
		WHERE pending
		  AND NOT paid
		  AND email = $1
		  AND booking_type = $2
		  AND pack_reference IS NOT DISTINCT FROM $3
		  AND created_at < $4`
	tag, err := r.db.Exec(ctx, query, email, bookingType, packReference, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SoftExpireOlderThan reaps abandoned pending bookings across all users.
func (r *BookingRepository) SoftExpireOlderThan(
	ctx context.Context,
	olderThan time.Time,
) (int64, error) {
	query := `
		UPDATE bookings
		SET pending = FALSE
		WHERE pending AND NOT paid AND created_at < $1`
	tag, err := r.db.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeletePendingByEmail removes every pending, unpaid booking for an identity.
// Used when a fresh checkout starts to clear orphans from abandoned flows.
func (r *BookingRepository) DeletePendingByEmail(
	ctx context.Context,
	email string,
) (int64, error) {
	query := `DELETE FROM bookings WHERE pending AND NOT paid AND email = $1`
	tag, err := r.db.Exec(ctx, query, email)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
