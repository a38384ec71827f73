package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-fold/internal/lock"
	"github.com/noah-isme/backend-fold/internal/obs"
)

const reconcileLockKey = "lock:ledger:reconcile"

// Locker runs fn only while holding key. lock.Locker satisfies it.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// SweepStats summarises one reconciler pass.
type SweepStats struct {
	Scanned int
	Applied int
	Failed  int
}

// Reconciler re-drives grants for confirmed transactions whose credits were never applied.
type Reconciler struct {
	Service  *Service
	Locker   Locker
	Interval time.Duration
	Batch    int
	LockTTL  time.Duration
	Logger   zerolog.Logger
}

// Start sweeps on every tick until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	var stats SweepStats
	run := func(ctx context.Context) error {
		var err error
		stats, err = r.Sweep(ctx)
		return err
	}

	var err error
	if r.Locker != nil {
		err = r.Locker.TryWithLock(ctx, reconcileLockKey, r.LockTTL, run)
	} else {
		err = run(ctx)
	}
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		obs.Inc(obs.LedgerReconcileTotal, "skipped")
		r.Logger.Debug().Msg("reconcile skipped: lock held elsewhere")
	case err != nil:
		obs.Inc(obs.LedgerReconcileTotal, "error")
		r.Logger.Error().Err(err).Msg("reconcile sweep failed")
	default:
		obs.Inc(obs.LedgerReconcileTotal, "ok")
		if stats.Scanned > 0 {
			r.Logger.Info().
				Int("scanned", stats.Scanned).
				Int("applied", stats.Applied).
				Int("failed", stats.Failed).
				Msg("reconcile sweep")
		}
	}
}

// Sweep runs a single pass over at most Batch uncredited transactions.
func (r *Reconciler) Sweep(ctx context.Context) (SweepStats, error) {
	batch := r.Batch
	if batch <= 0 {
		batch = 100
	}
	pending, err := r.Service.Store.ListUncredited(ctx, batch)
	if err != nil {
		return SweepStats{}, err
	}
	stats := SweepStats{Scanned: len(pending)}
	for _, tx := range pending {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		switch r.Service.Grant(ctx, tx.OrderID, SourceReconciler) {
		case GrantApplied:
			stats.Applied++
		case GrantStorageUnavailable:
			stats.Failed++
		}
	}
	return stats, nil
}
