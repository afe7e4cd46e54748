package scheduler

import (
	"context"
	"log"
	"time"
)

type staleExpirer interface {
	ExpireStalePending(ctx context.Context) (int64, error)
}

// Reaper periodically soft-expires pending bookings whose checkout was
// abandoned, so stale rows stop blocking new attempts for the same slot.
type Reaper struct {
	bookings staleExpirer
	interval time.Duration
}

func NewReaper(bookings staleExpirer, interval time.Duration) *Reaper {
	return &Reaper{bookings: bookings, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("booking reaper started, interval %s", r.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("booking reaper stopped")
			return
		case <-ticker.C:
			expired, err := r.bookings.ExpireStalePending(ctx)
			if err != nil {
				log.Printf("booking reaper sweep failed: %v", err)
				continue
			}
			if expired > 0 {
				log.Printf("booking reaper expired %d stale pending bookings", expired)
			}
		}
	}
}
