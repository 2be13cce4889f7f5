package syncer

import (
	"context"
	"time"
)

// Watch probes the server every interval until ctx is done. Reaching the
// server at startup or after being offline triggers a sync, as does any
// pending local edit found while online.
func (r *Reconciler) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info("watch_started", "interval", interval)

	online := false
	probe := func() {
		err := r.remote.Health(ctx)
		switch {
		case err == nil && !online:
			online = true
			r.log.Info("connectivity_restored")
			r.Trigger(ctx)
		case err == nil:
			if r.hasPending(ctx) {
				r.Trigger(ctx)
			}
		case online:
			online = false
			r.setState(StateOffline)
			r.log.Warn("connectivity_lost", "err", err)
		default:
			r.setState(StateOffline)
			r.log.Debug("server_unreachable", "err", err)
		}
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			r.Wait()
			r.log.Info("watch_stopped")
			return
		case <-ticker.C:
			probe()
		}
	}
}

func (r *Reconciler) hasPending(ctx context.Context) bool {
	pending, err := r.store.Pending(ctx)
	if err != nil {
		r.log.Error("pending_check_failed", "err", err)
		return false
	}
	return !pending.Empty()
}
