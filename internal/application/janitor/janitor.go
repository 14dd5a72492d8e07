// Package janitor periodically removes dead credential records: used,
// expired, or older than the staleness deadline. The DynamoDB TTL backstop
// would eventually catch stragglers; the janitor keeps tables small now.
package janitor

import (
	"context"
	"log/slog"
	"time"
)

type sweeper interface {
	SweepStale(ctx context.Context, nowUnix int64) (int, error)
}

// Janitor sweeps the verification and reset credential tables. Sweeps are
// idempotent and safe next to live traffic: only terminal rows match the
// delete predicates.
type Janitor struct {
	verifications sweeper
	resets        sweeper
	interval      time.Duration
}

func New(verifications, resets sweeper, interval time.Duration) *Janitor {
	return &Janitor{verifications: verifications, resets: resets, interval: interval}
}

// Run sweeps on a ticker until ctx is canceled. One pass runs immediately
// on start.
func (j *Janitor) Run(ctx context.Context) {
	j.Sweep(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one pass over both tables. Errors are logged, never fatal —
// the next tick retries.
func (j *Janitor) Sweep(ctx context.Context) {
	now := time.Now().Unix()

	n, err := j.verifications.SweepStale(ctx, now)
	if err != nil {
		slog.Warn("verification credential sweep failed", "deleted", n, "err", err)
	} else if n > 0 {
		slog.Info("swept verification credentials", "deleted", n)
	}

	n, err = j.resets.SweepStale(ctx, now)
	if err != nil {
		slog.Warn("reset credential sweep failed", "deleted", n, "err", err)
	} else if n > 0 {
		slog.Info("swept reset credentials", "deleted", n)
	}
}
