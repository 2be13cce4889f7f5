// Package dayroll runs the daily completion-row initialization sweep.
//
// Every active habit gets a status=false row for each day from the most
// recent initialized date through today, even when no client asks for it.
package dayroll

import (
	"context"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/services"
	"go.uber.org/zap"
)

// Backfiller is the ledger operation the roller drives.
type Backfiller interface {
	Backfill(ctx context.Context, userID *uint64) (*services.BackfillResult, error)
}

// Roller periodically backfills the completion ledger.
type Roller struct {
	ledger Backfiller
	log    *zap.Logger
}

// NewRoller creates a new Roller.
func NewRoller(ledger Backfiller, log *zap.Logger) *Roller {
	return &Roller{
		ledger: ledger,
		log:    log,
	}
}

// Start runs a sweep immediately and then every interval until ctx is done.
func (r *Roller) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info("dayroll_started", zap.Duration("interval", interval))

	r.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("dayroll_stopped")
			return
		case <-ticker.C:
			r.runLogged(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (r *Roller) RunOnce(ctx context.Context) (*services.BackfillResult, error) {
	start := time.Now()

	res, err := r.ledger.Backfill(ctx, nil)
	if err != nil {
		return nil, err
	}

	r.log.Info("dayroll_completed",
		zap.String("from", res.From),
		zap.String("to", res.To),
		zap.Int("days", res.Days),
		zap.Int64("inserted", res.Inserted),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (r *Roller) runLogged(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("dayroll_failed", zap.Error(err))
	}
}
