package repository

import (
	"context"
	"time"

	"github.com/avelisco/CoachBookBack/internal/models"
	"github.com/jackc/pgx/v5"
)

const sessionPackColumns = `id, user_email, total_sessions, sessions_remaining, expires_at, created_at`

type CreateSessionPackInput struct {
	ID                string
	UserEmail         string
	TotalSessions     int
	SessionsRemaining int
	ExpiresAt         *time.Time
}

type SessionPackRepository struct {
	db DBTX
}

func NewSessionPackRepository(db DBTX) *SessionPackRepository {
	return &SessionPackRepository{db: db}
}

func scanSessionPack(row pgx.Row) (*models.SessionPack, error) {
	var pack models.SessionPack
	err := row.Scan(
		&pack.ID,
		&pack.UserEmail,
		&pack.TotalSessions,
		&pack.SessionsRemaining,
		&pack.ExpiresAt,
		&pack.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

func (r *SessionPackRepository) Create(
	ctx context.Context,
	input CreateSessionPackInput,
) (*models.SessionPack, error) {
	query := `
		INSERT INTO session_packs (id, user_email, total_sessions, sessions_remaining, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + sessionPackColumns
	return scanSessionPack(r.db.QueryRow(
		ctx,
		query,
		input.ID,
		input.UserEmail,
		input.TotalSessions,
		input.SessionsRemaining,
		input.ExpiresAt,
	))
}

func (r *SessionPackRepository) GetByID(
	ctx context.Context,
	packID string,
) (*models.SessionPack, error) {
	query := `SELECT ` + sessionPackColumns + ` FROM session_packs WHERE id = $1`
	return scanSessionPack(r.db.QueryRow(ctx, query, packID))
}

// ConsumeIfAvailable decrements sessions_remaining only on a matching,
// unexpired pack that still has sessions left. pgx.ErrNoRows means no valid
// pack; the counter can never go below zero.
func (r *SessionPackRepository) ConsumeIfAvailable(
	ctx context.Context,
	userEmail string,
	packID string,
) (*models.SessionPack, error) {
	query := `
		UPDATE session_packs
		SET sessions_remaining = sessions_remaining - 1
		WHERE id = $1
		  AND user_email = $2
		  AND sessions_remaining > 0
		  AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING ` + sessionPackColumns
	return scanSessionPack(r.db.QueryRow(ctx, query, packID, userEmail))
}

// Restore undoes one consumption. Compensating action, not a transaction
// rollback; the count is capped at the purchased total.
func (r *SessionPackRepository) Restore(
	ctx context.Context,
	userEmail string,
	packID string,
) (*models.SessionPack, error) {
	query := `
		UPDATE session_packs
		SET sessions_remaining = LEAST(sessions_remaining + 1, total_sessions)
		WHERE id = $1 AND user_email = $2
		RETURNING ` + sessionPackColumns
	return scanSessionPack(r.db.QueryRow(ctx, query, packID, userEmail))
}
