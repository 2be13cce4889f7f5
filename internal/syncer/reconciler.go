// Package syncer keeps the local replica aligned with the server: pull and
// merge, push local edits, adopt or drop what the server refused.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yukikurage/habit-tracker-api/internal/dto"
	"github.com/yukikurage/habit-tracker-api/internal/replica"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
)

// State is the reconciler's connectivity state.
type State int

const (
	StateOffline State = iota
	StateSyncing
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateSyncing:
		return "syncing"
	case StateSynced:
		return "synced"
	default:
		return "offline"
	}
}

// Remote is the server half of the protocol.
type Remote interface {
	Health(ctx context.Context) error
	Snapshot(ctx context.Context) (*dto.SnapshotResponse, error)
	Push(ctx context.Context, req dto.PushRequest) (*dto.PushResponse, error)
}

// Store is the local replica.
type Store interface {
	ApplySnapshot(ctx context.Context, snap replica.Snapshot) (*replica.MergeReport, error)
	Pending(ctx context.Context) (replica.Changes, error)
	MarkSynced(ctx context.Context, pushed replica.Changes) error
	AcceptServer(ctx context.Context, rows replica.Changes) error
	Discard(ctx context.Context, habits []uint64, completions []replica.CompletionKey) error
}

// Report summarizes one reconciliation.
type Report struct {
	Merge    *replica.MergeReport
	Pushed   int
	Accepted int
	// PushConflicts counts rows the server refused during push.
	PushConflicts int
	Started       time.Time
	Finished      time.Time
}

// Reconciler runs syncs one at a time. A trigger that arrives while a sync is
// running schedules exactly one more.
type Reconciler struct {
	remote Remote
	store  Store
	log    *log.Logger
	clock  utils.Clock

	runMu sync.Mutex

	mu      sync.Mutex
	state   State
	running bool
	pending bool
	idle    chan struct{}
	lastErr error
	last    *Report
}

// New creates a Reconciler in the offline state.
func New(remote Remote, store Store, logger *log.Logger, clock utils.Clock) *Reconciler {
	if clock == nil {
		clock = utils.SystemClock
	}
	idle := make(chan struct{})
	close(idle)
	return &Reconciler{
		remote: remote,
		store:  store,
		log:    logger,
		clock:  clock,
		idle:   idle,
	}
}

// State returns the current state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastReport returns the most recent successful report and the most recent
// error, either of which may be nil.
func (r *Reconciler) LastReport() (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.lastErr
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()
	if prev != s {
		r.log.Debug("sync_state", "from", prev, "to", s)
	}
}

// Trigger requests a sync in the background and returns immediately.
func (r *Reconciler) Trigger(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.pending = true
		r.mu.Unlock()
		return
	}
	r.running = true
	idle := make(chan struct{})
	r.idle = idle
	r.mu.Unlock()

	go func() {
		defer close(idle)
		for {
			// Failures are logged by Run and surface through LastReport.
			_, _ = r.Run(ctx)

			r.mu.Lock()
			if !r.pending || ctx.Err() != nil {
				r.pending = false
				r.running = false
				r.mu.Unlock()
				return
			}
			r.pending = false
			r.mu.Unlock()
		}
	}()
}

// Wait blocks until no triggered sync is running.
func (r *Reconciler) Wait() {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()
	<-idle
}

// Run performs one sync now, waiting for any sync already in progress.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.setState(StateSyncing)
	report, err := r.reconcile(ctx)

	r.mu.Lock()
	r.lastErr = err
	if err == nil {
		r.last = report
	}
	r.mu.Unlock()

	if err != nil {
		r.setState(StateOffline)
		r.log.Error("sync_failed", "err", err)
		return nil, err
	}
	r.setState(StateSynced)
	r.log.Info("sync_completed",
		"inserted", report.Merge.Inserted,
		"updated", report.Merge.Updated,
		"removed", report.Merge.Removed,
		"conflicts", len(report.Merge.Conflicts),
		"pushed", report.Pushed,
		"accepted", report.Accepted,
		"push_conflicts", report.PushConflicts,
		"duration", report.Finished.Sub(report.Started),
	)
	return report, nil
}

func (r *Reconciler) reconcile(ctx context.Context) (*Report, error) {
	report := &Report{Started: r.clock()}

	snap, err := r.remote.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	report.Merge, err = r.store.ApplySnapshot(ctx, toSnapshot(snap))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	for _, c := range report.Merge.Conflicts {
		r.log.Warn("sync_conflict",
			"table", c.Table,
			"key", c.Key,
			"winner", c.Winner,
			"local_version", c.LocalVersion,
			"server_version", c.ServerVersion,
		)
	}

	pending, err := r.store.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect changes: %w", err)
	}
	if !pending.Empty() {
		if err := r.push(ctx, pending, report); err != nil {
			return nil, err
		}
	}

	report.Finished = r.clock()
	return report, nil
}

func (r *Reconciler) push(ctx context.Context, pending replica.Changes, report *Report) error {
	res, err := r.remote.Push(ctx, toPushRequest(pending))
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	report.Pushed = pending.Len()
	report.Accepted = res.Accepted

	accepted, adopt, dropHabits, dropCompletions := splitPushResult(pending, res)
	report.PushConflicts = adopt.Len() + len(dropHabits) + len(dropCompletions)
	if report.PushConflicts > 0 {
		r.log.Warn("push_conflicts",
			"adopted", adopt.Len(),
			"dropped_habits", len(dropHabits),
			"dropped_completions", len(dropCompletions),
		)
	}

	if err := r.store.MarkSynced(ctx, accepted); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if !adopt.Empty() {
		if err := r.store.AcceptServer(ctx, adopt); err != nil {
			return fmt.Errorf("adopt server rows: %w", err)
		}
	}
	if len(dropHabits) > 0 || len(dropCompletions) > 0 {
		if err := r.store.Discard(ctx, dropHabits, dropCompletions); err != nil {
			return fmt.Errorf("drop refused rows: %w", err)
		}
	}
	return nil
}
