package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avelisco/CoachBookBack/internal/models"
)

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		switch target := dest[i].(type) {
		case *int64:
			*target = r.values[i].(int64)
		case *int:
			*target = r.values[i].(int)
		case *string:
			*target = r.values[i].(string)
		case **string:
			*target = r.values[i].(*string)
		case *float64:
			*target = r.values[i].(float64)
		case **float64:
			*target = r.values[i].(*float64)
		case *bool:
			*target = r.values[i].(bool)
		case *time.Time:
			*target = r.values[i].(time.Time)
		case **time.Time:
			*target = r.values[i].(*time.Time)
		case *models.BookingType:
			*target = r.values[i].(models.BookingType)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type execCall struct {
	query string
	args  []any
}

type queryRowCall struct {
	query string
	args  []any
}

// stubTx routes repository SQL by substring, the same trick the rest of the
// suite uses for transaction-scoped repositories.
type stubTx struct {
	queryRowFn func(query string, args []any) stubRow
	execFn     func(query string, args []any) (pgconn.CommandTag, error)

	commits   int
	rollbacks int
	execs     []execCall
	queryRows []queryRowCall
}

func (tx *stubTx) Begin(_ context.Context) (pgx.Tx, error) { return tx, nil }

func (tx *stubTx) Commit(_ context.Context) error {
	tx.commits++
	return nil
}

func (tx *stubTx) Rollback(_ context.Context) error {
	tx.rollbacks++
	return nil
}

func (tx *stubTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}

func (tx *stubTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }

func (tx *stubTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (tx *stubTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}

func (tx *stubTx) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	tx.execs = append(tx.execs, execCall{query: query, args: args})
	if tx.execFn != nil {
		return tx.execFn(query, args)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (tx *stubTx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (tx *stubTx) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	tx.queryRows = append(tx.queryRows, queryRowCall{query: query, args: args})
	return tx.queryRowFn(query, args)
}

func (tx *stubTx) Conn() *pgx.Conn { return nil }

func (tx *stubTx) execContaining(substr string) *execCall {
	for i := range tx.execs {
		if containsSQL(tx.execs[i].query, substr) {
			return &tx.execs[i]
		}
	}
	return nil
}

func (tx *stubTx) queryRowContaining(substr string) *queryRowCall {
	for i := range tx.queryRows {
		if containsSQL(tx.queryRows[i].query, substr) {
			return &tx.queryRows[i]
		}
	}
	return nil
}

// stubPool stands in for the pgxpool: pool-bound repositories hit its DBTX
// methods directly, services open stub transactions through Begin.
type stubPool struct {
	tx     *stubTx
	begins int
}

func (p *stubPool) Begin(_ context.Context) (pgx.Tx, error) {
	p.begins++
	return p.tx, nil
}

func (p *stubPool) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return p.tx.Exec(ctx, query, args...)
}

func (p *stubPool) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return p.tx.Query(ctx, query, args...)
}

func (p *stubPool) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return p.tx.QueryRow(ctx, query, args...)
}

func containsSQL(query, substr string) bool {
	return strings.Contains(query, substr)
}

func bookingRowValues(b *models.Booking) []any {
	return []any{
		b.ID,
		b.Email,
		b.FirstName,
		b.LastName,
		b.BookingType,
		b.PreferredAt,
		b.Message,
		b.IsDiscoveryCall,
		b.PackReference,
		b.ExternalCheckoutID,
		b.Paid,
		b.PaidAt,
		b.Pending,
		b.CreatedAt,
	}
}

func priceRowValues(p *models.SubscriptionPrice) []any {
	return []any{
		p.ID,
		p.Name,
		p.BookingType,
		p.AmountGBP,
		p.MonthlyLimit,
		p.TotalSessions,
		p.StripeProductID,
		p.StripePriceID,
		p.StripePriceCurrency,
		p.StripePriceAmount,
		p.CreatedAt,
	}
}

func subscriptionRowValues(s *models.UserSubscription) []any {
	return []any{
		s.ID,
		s.UserEmail,
		s.PriceID,
		s.StripeSubscriptionID,
		s.SessionsUsed,
		s.CurrentPeriodStart,
		s.CurrentPeriodEnd,
		s.IsActive,
		s.CancelledAt,
		s.CreatedAt,
	}
}

func sessionPackRowValues(p *models.SessionPack) []any {
	return []any{
		p.ID,
		p.UserEmail,
		p.TotalSessions,
		p.SessionsRemaining,
		p.ExpiresAt,
		p.CreatedAt,
	}
}

func videoSessionRowValues(v *models.VideoSession) []any {
	return []any{
		v.ID,
		v.BookingID,
		v.RoomID,
		v.ScheduledAt,
		v.CreatedAt,
	}
}
