package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/avelisco/CoachBookBack/internal/repository"
)

// txBeginner is satisfied by *pgxpool.Pool. Services open a transaction per
// multi-entity mutation and build transaction-scoped repositories over it.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type CreatePendingInput struct {
	BookingID       int64 // 0 inserts fresh; otherwise the row is re-activated
	Email           string
	FirstName       string
	LastName        string
	BookingType     models.BookingType
	PreferredAt     time.Time
	Message         *string
	IsDiscoveryCall bool
	PackReference   *string
}

func (input CreatePendingInput) repoInput() repository.CreateBookingInput {
	return repository.CreateBookingInput{
		Email:           input.Email,
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		BookingType:     input.BookingType,
		PreferredAt:     input.PreferredAt,
		Message:         input.Message,
		IsDiscoveryCall: input.IsDiscoveryCall,
		PackReference:   input.PackReference,
	}
}

// BookingService owns the booking lifecycle: pending creation with
// duplicate detection, confirmation with lazy video-session creation, and
// stale-pending cleanup.
type BookingService struct {
	db              txBeginner
	bookings        *repository.BookingRepository
	duplicateWindow time.Duration
	staleThreshold  time.Duration
}

func NewBookingService(
	db txBeginner,
	bookings *repository.BookingRepository,
	duplicateWindow time.Duration,
	staleThreshold time.Duration,
) *BookingService {
	return &BookingService{
		db:              db,
		bookings:        bookings,
		duplicateWindow: duplicateWindow,
		staleThreshold:  staleThreshold,
	}
}

// CreatePending inserts (or re-activates) the pending booking for a request.
// An existing pending booking for the same (email, type, time, pack) tuple is
// soft-expired when stale (older than the duplicate window or never bound to
// a checkout) and rejected with ErrDuplicateBooking otherwise.
func (s *BookingService) CreatePending(
	ctx context.Context,
	input CreatePendingInput,
) (*models.Booking, error) {
	if input.Email == "" || !input.BookingType.Valid() || input.PreferredAt.IsZero() {
		return nil, ErrValidation
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txBookings := repository.NewBookingRepository(tx)

	existing, err := txBookings.FindPendingMatch(
		ctx,
		input.Email,
		input.BookingType,
		input.PreferredAt,
		input.PackReference,
	)
	switch {
	case err == nil:
		if !s.pendingIsStale(existing) {
			return nil, ErrDuplicateBooking
		}
		if err := txBookings.SoftExpire(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("expire stale duplicate %d: %w", existing.ID, err)
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("find pending duplicate: %w", err)
	}

	var booking *models.Booking
	if input.BookingID > 0 {
		booking, err = txBookings.Reuse(ctx, input.BookingID, input.repoInput())
		if errors.Is(err, pgx.ErrNoRows) {
			booking, err = txBookings.Create(ctx, input.repoInput())
		}
	} else {
		booking, err = txBookings.Create(ctx, input.repoInput())
	}
	if err != nil {
		return nil, fmt.Errorf("create pending booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return booking, nil
}

// pendingIsStale marks a pending booking as abandoned: past the duplicate
// window, or never bound to an external checkout at all.
func (s *BookingService) pendingIsStale(booking *models.Booking) bool {
	if booking.ExternalCheckoutID == nil || *booking.ExternalCheckoutID == "" {
		return true
	}
	return time.Since(booking.CreatedAt) > s.duplicateWindow
}

// Confirm merges the caller's updates, flips the booking out of pending, and
// lazily creates its video session, all within one transaction. Confirming an
// already non-pending booking is a no-op success.
func (s *BookingService) Confirm(
	ctx context.Context,
	bookingID int64,
	updates repository.ConfirmBookingUpdates,
) (*models.Booking, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txBookings := repository.NewBookingRepository(tx)
	txVideoSessions := repository.NewVideoSessionRepository(tx)

	booking, err := txBookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("load booking %d: %w", bookingID, err)
	}

	if booking.Pending {
		booking, err = txBookings.ConfirmDetails(ctx, bookingID, updates)
		if err != nil {
			return nil, fmt.Errorf("confirm booking %d: %w", bookingID, err)
		}
	}

	if err := ensureVideoSession(ctx, txVideoSessions, booking); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return booking, nil
}

// CleanupPendingForUser force-removes every pending booking for an identity.
// Run defensively when a new checkout starts so abandoned flows cannot leave
// orphaned pending rows behind.
func (s *BookingService) CleanupPendingForUser(ctx context.Context, email string) (int64, error) {
	removed, err := s.bookings.DeletePendingByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("cleanup pending bookings for %s: %w", email, err)
	}
	return removed, nil
}

// CleanupStale soft-expires pending bookings older than the stale threshold
// matching the filter; the rows stay behind as non-pending, unpaid history.
func (s *BookingService) CleanupStale(
	ctx context.Context,
	email string,
	bookingType models.BookingType,
	packReference *string,
) (int64, error) {
	olderThan := time.Now().UTC().Add(-s.staleThreshold)
	expired, err := s.bookings.SoftExpireStale(ctx, email, bookingType, packReference, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale bookings for %s: %w", email, err)
	}
	if expired > 0 {
		log.Printf("soft-expired %d stale pending bookings for %s", expired, email)
	}
	return expired, nil
}

// ExpireStalePending reaps abandoned pending bookings across all users.
// Invoked by the background reaper.
func (s *BookingService) ExpireStalePending(ctx context.Context) (int64, error) {
	olderThan := time.Now().UTC().Add(-s.staleThreshold)
	return s.bookings.SoftExpireOlderThan(ctx, olderThan)
}

// ensureVideoSession creates the booking's call resource when none exists.
func ensureVideoSession(
	ctx context.Context,
	videoSessions *repository.VideoSessionRepository,
	booking *models.Booking,
) error {
	_, err := videoSessions.GetByBookingID(ctx, booking.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("load video session for booking %d: %w", booking.ID, err)
	}
	if err := videoSessions.Create(ctx, booking.ID, uuid.NewString(), booking.PreferredAt); err != nil {
		return fmt.Errorf("create video session for booking %d: %w", booking.ID, err)
	}
	return nil
}
