package services

import (
	"context"
	"errors"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/cache"
	"github.com/yukikurage/habit-tracker-api/internal/metrics"
	"github.com/yukikurage/habit-tracker-api/internal/models"
	"github.com/yukikurage/habit-tracker-api/internal/repository"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SyncService serves replica snapshots and applies pushed replica changes.
// A pushed row wins only when its version is newer than the stored one.
type SyncService struct {
	repos   *repository.Repositories
	tx      repository.TxRunner
	cache   cache.Cache
	metrics metrics.Recorder
	clock   utils.Clock
	log     *zap.Logger
}

// NewSyncService creates a new SyncService.
func NewSyncService(repos *repository.Repositories, tx repository.TxRunner, c cache.Cache, m metrics.Recorder, clock utils.Clock, log *zap.Logger) *SyncService {
	return &SyncService{
		repos:   repos,
		tx:      tx,
		cache:   c,
		metrics: m,
		clock:   clock,
		log:     log,
	}
}

// Snapshot is the full server state of one user.
type Snapshot struct {
	User        *models.User
	Habits      []models.Habit
	Completions []models.HabitCompletion
	ServerTime  time.Time
}

// HabitChange is a locally edited habit. UpdatedAt is its version.
type HabitChange struct {
	ID        uint64
	Name      string
	Frequency string
	Current   bool
	UpdatedAt time.Time
}

// CompletionChange is a locally edited completion row. Timestamp is its version.
type CompletionChange struct {
	HabitID   uint64
	Date      string
	Status    bool
	Timestamp time.Time
}

// PushInput is one batch of local changes.
type PushInput struct {
	Habits      []HabitChange
	Completions []CompletionChange
}

// HabitConflict is a rejected habit change. Server is nil when the habit is
// unknown or belongs to someone else.
type HabitConflict struct {
	ID     uint64
	Server *models.Habit
}

// CompletionConflict is a rejected completion change.
type CompletionConflict struct {
	HabitID uint64
	Date    string
	Server  *models.HabitCompletion
}

// PushResult reports how a push was applied.
type PushResult struct {
	Accepted            int
	HabitConflicts      []HabitConflict
	CompletionConflicts []CompletionConflict
}

// Conflicts returns the number of rejected rows.
func (r *PushResult) Conflicts() int {
	return len(r.HabitConflicts) + len(r.CompletionConflicts)
}

// Snapshot loads everything the replica mirrors for userID, including
// archived habits so history stays queryable offline.
func (s *SyncService) Snapshot(ctx context.Context, userID uint64) (*Snapshot, error) {
	user, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError("find user", err)
	}

	habits, err := s.repos.Habits.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, storageError("list habits", err)
	}

	completions, err := s.repos.Completions.ListForUser(ctx, userID)
	if err != nil {
		return nil, storageError("list completions", err)
	}

	return &Snapshot{
		User:        user,
		Habits:      habits,
		Completions: completions,
		ServerTime:  utils.Timestamp(s.clock()),
	}, nil
}

// Push applies a batch atomically. Each row is compared with the stored
// version: newer rows are written, identical rows are accepted unchanged, and
// anything else is returned as a conflict carrying the server's copy.
func (s *SyncService) Push(ctx context.Context, userID uint64, input PushInput) (*PushResult, error) {
	result := &PushResult{
		HabitConflicts:      []HabitConflict{},
		CompletionConflicts: []CompletionConflict{},
	}
	touched := map[uint64]struct{}{}

	err := s.tx.InTx(ctx, func(repos *repository.Repositories) error {
		owned := map[uint64]bool{}
		owns := func(habitID uint64) (bool, error) {
			if v, ok := owned[habitID]; ok {
				return v, nil
			}
			habit, err := repos.Habits.FindByID(ctx, habitID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				owned[habitID] = false
				return false, nil
			} else if err != nil {
				return false, err
			}
			owned[habitID] = habit.UserID == userID
			return owned[habitID], nil
		}

		for _, change := range input.Habits {
			ok, err := owns(change.ID)
			if err != nil {
				return err
			}
			if !ok {
				result.HabitConflicts = append(result.HabitConflicts, HabitConflict{ID: change.ID})
				continue
			}

			server, err := repos.Habits.FindByID(ctx, change.ID)
			if err != nil {
				return err
			}
			version := utils.Timestamp(change.UpdatedAt)
			switch {
			case version.After(server.UpdatedAt):
				server.Name = change.Name
				server.Frequency = change.Frequency
				server.Current = change.Current
				server.UpdatedAt = version
				if err := repos.Habits.Update(ctx, server); err != nil {
					return err
				}
				touched[change.ID] = struct{}{}
				result.Accepted++
			case sameHabit(server, change):
				result.Accepted++
			default:
				result.HabitConflicts = append(result.HabitConflicts, HabitConflict{ID: change.ID, Server: server})
			}
		}

		for _, change := range input.Completions {
			if !utils.IsDate(change.Date) {
				return ErrInvalidDate
			}
			ok, err := owns(change.HabitID)
			if err != nil {
				return err
			}
			if !ok {
				result.CompletionConflicts = append(result.CompletionConflicts, CompletionConflict{HabitID: change.HabitID, Date: change.Date})
				continue
			}

			version := utils.Timestamp(change.Timestamp)
			server, err := repos.Completions.Find(ctx, change.HabitID, change.Date)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
			case err != nil:
				return err
			case server.Status == change.Status && !version.After(server.Timestamp):
				result.Accepted++
				continue
			case !version.After(server.Timestamp):
				result.CompletionConflicts = append(result.CompletionConflicts, CompletionConflict{HabitID: change.HabitID, Date: change.Date, Server: server})
				continue
			}

			if _, err := repos.Completions.Upsert(ctx, change.HabitID, change.Date, change.Status, version); err != nil {
				return err
			}
			touched[change.HabitID] = struct{}{}
			result.Accepted++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidDate) {
			return nil, err
		}
		return nil, storageError("apply push", err)
	}

	for habitID := range touched {
		if err := s.cache.DeletePattern(ctx, cache.StreakPattern(habitID)); err != nil {
			s.log.Warn("streak_cache_invalidate_failed", zap.Uint64("habit_id", habitID), zap.Error(err))
		}
	}

	s.metrics.RecordSyncPush(result.Accepted, result.Conflicts())
	s.log.Info("sync_push_applied",
		zap.Uint64("user_id", userID),
		zap.Int("accepted", result.Accepted),
		zap.Int("conflicts", result.Conflicts()),
	)
	return result, nil
}

func sameHabit(server *models.Habit, change HabitChange) bool {
	return server.Name == change.Name &&
		server.Frequency == change.Frequency &&
		server.Current == change.Current
}
