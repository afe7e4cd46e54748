package repository

import (
	"context"
	"time"

	"github.com/avelisco/CoachBookBack/internal/models"
)

type VideoSessionRepository struct {
	db DBTX
}

func NewVideoSessionRepository(db DBTX) *VideoSessionRepository {
	return &VideoSessionRepository{db: db}
}

func (r *VideoSessionRepository) GetByBookingID(
	ctx context.Context,
	bookingID int64,
) (*models.VideoSession, error) {
	query := `
		SELECT id, booking_id, room_id, scheduled_at, created_at
		FROM video_sessions
		WHERE booking_id = $1`
	var session models.VideoSession
	err := r.db.QueryRow(ctx, query, bookingID).Scan(
		&session.ID,
		&session.BookingID,
		&session.RoomID,
		&session.ScheduledAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Create inserts the booking's single call resource. The unique constraint on
// booking_id plus ON CONFLICT DO NOTHING keeps a concurrent second confirm
// from creating a duplicate room.
func (r *VideoSessionRepository) Create(
	ctx context.Context,
	bookingID int64,
	roomID string,
	scheduledAt time.Time,
) error {
	query := `
		INSERT INTO video_sessions (booking_id, room_id, scheduled_at, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (booking_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, bookingID, roomID, scheduledAt)
	return err
}
