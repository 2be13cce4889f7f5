package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/cache"
	"github.com/yukikurage/habit-tracker-api/internal/constants"
	"github.com/yukikurage/habit-tracker-api/internal/metrics"
	"github.com/yukikurage/habit-tracker-api/internal/models"
	"github.com/yukikurage/habit-tracker-api/internal/repository"
	"github.com/yukikurage/habit-tracker-api/internal/streak"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerService maintains per-day completion rows and the statistics derived
// from them.
type LedgerService struct {
	completions repository.CompletionRepository
	habits      repository.HabitRepository
	cache       cache.Cache
	metrics     metrics.Recorder
	clock       utils.Clock
	log         *zap.Logger
	streakTTL   time.Duration
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(repos *repository.Repositories, c cache.Cache, m metrics.Recorder, clock utils.Clock, log *zap.Logger) *LedgerService {
	return &LedgerService{
		completions: repos.Completions,
		habits:      repos.Habits,
		cache:       c,
		metrics:     m,
		clock:       clock,
		log:         log,
		streakTTL:   constants.StreakCacheTTL,
	}
}

// SetStreakTTL changes how long computed streaks stay cached.
func (s *LedgerService) SetStreakTTL(ttl time.Duration) {
	if ttl > 0 {
		s.streakTTL = ttl
	}
}

// Filter narrows ledger statistics to one user and/or a set of habits.
type Filter struct {
	UserID   *uint64
	HabitIDs []uint64
}

func (f Filter) repo() repository.CompletionFilter {
	return repository.CompletionFilter{UserID: f.UserID, HabitIDs: f.HabitIDs}
}

// DayPercentage is the completion percentage of one day.
type DayPercentage struct {
	Date       string
	Percentage float64
}

// StreakQuery selects the habit and window of a streak computation.
type StreakQuery struct {
	UserID  uint64
	HabitID uint64
	// From is the inclusive lower bound; empty means the epoch.
	From string
}

// StreakResult holds the streak figures of one habit.
type StreakResult struct {
	HabitID uint64 `json:"habitId"`
	Longest int    `json:"longest"`
	Current int    `json:"current"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// BackfillResult reports a backfill run.
type BackfillResult struct {
	From     string
	To       string
	Days     int
	Inserted int64
}

// Today returns the ledger's current calendar date.
func (s *LedgerService) Today() string {
	return utils.Today(s.clock)
}

func (s *LedgerService) resolveDate(date string) (string, error) {
	if date == "" {
		return s.Today(), nil
	}
	if !utils.IsDate(date) {
		return "", ErrInvalidDate
	}
	return date, nil
}

// InitializeDay inserts a status=false row on date for every habit in
// habitIDs that lacks one. Existing rows are never modified, so repeated
// calls are no-ops. It returns the number of rows created.
func (s *LedgerService) InitializeDay(ctx context.Context, date string, habitIDs []uint64) (int64, error) {
	day, err := s.resolveDate(date)
	if err != nil {
		return 0, err
	}

	inserted, err := s.completions.InsertMissing(ctx, day, habitIDs, utils.Timestamp(s.clock()))
	if err != nil {
		return 0, storageError("initialize day", err)
	}

	s.metrics.RecordRowsInitialized(inserted)
	s.log.Info("day_initialized",
		zap.String("date", day),
		zap.Int("habits", len(habitIDs)),
		zap.Int64("inserted", inserted),
	)
	return inserted, nil
}

// InitializeActive runs InitializeDay for every active habit, optionally
// restricted to one user.
func (s *LedgerService) InitializeActive(ctx context.Context, date string, userID *uint64) (int64, error) {
	ids, err := s.habits.ListCurrentIDs(ctx, userID)
	if err != nil {
		return 0, storageError("list active habits", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return s.InitializeDay(ctx, date, ids)
}

// Backfill initializes every day from the most recent initialized date
// through today for active habits. Gaps longer than a year start a year back.
func (s *LedgerService) Backfill(ctx context.Context, userID *uint64) (*BackfillResult, error) {
	today := s.Today()
	from := today

	latest, ok, err := s.completions.MostRecentDate(ctx, repository.CompletionFilter{UserID: userID})
	if err != nil {
		return nil, storageError("most recent date", err)
	}
	if ok && latest < today {
		from = latest
		earliest, _ := utils.AddDays(today, -(constants.MaxRangeDays - 1))
		if from < earliest {
			from = earliest
		}
	}

	dates, err := utils.DateRange(from, today, constants.MaxRangeDays)
	if err != nil {
		return nil, err
	}

	result := &BackfillResult{From: from, To: today, Days: len(dates)}
	for _, day := range dates {
		inserted, err := s.InitializeActive(ctx, day, userID)
		if err != nil {
			return nil, err
		}
		result.Inserted += inserted
	}
	return result, nil
}

// SetStatus records status for the habit on date (today when empty),
// creating the row if needed. Exactly one row exists per habit and date
// afterwards, holding the latest status.
func (s *LedgerService) SetStatus(ctx context.Context, habitID uint64, date string, status bool) (*models.HabitCompletion, error) {
	day, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}

	if _, err := s.habits.FindByID(ctx, habitID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, storageError("find habit", err)
	}

	row, err := s.completions.Upsert(ctx, habitID, day, status, utils.Timestamp(s.clock()))
	if err != nil {
		return nil, storageError("set status", err)
	}

	s.metrics.RecordStatusChange(status)
	s.invalidateStreaks(ctx, habitID)
	s.log.Info("completion_status_set",
		zap.Uint64("habit_id", habitID),
		zap.String("date", day),
		zap.Bool("status", status),
	)
	return row, nil
}

// CompletionPercentage returns completed rows over total rows for date as a
// value in [0, 100]. A day without rows yields 0.
func (s *LedgerService) CompletionPercentage(ctx context.Context, date string, filter Filter) (float64, error) {
	day, err := s.resolveDate(date)
	if err != nil {
		return 0, err
	}

	total, completed, err := s.completions.CountForDate(ctx, day, filter.repo())
	if err != nil {
		return 0, storageError("count completions", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(completed) / float64(total) * 100, nil
}

// CompletionPercentages returns CompletionPercentage for every day in
// [start, end].
func (s *LedgerService) CompletionPercentages(ctx context.Context, start, end string, filter Filter) ([]DayPercentage, error) {
	if !utils.IsDate(start) || !utils.IsDate(end) {
		return nil, ErrInvalidDate
	}
	dates, err := utils.DateRange(start, end, constants.MaxRangeDays)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRangeTooLarge, err)
	}

	out := make([]DayPercentage, 0, len(dates))
	for _, day := range dates {
		pct, err := s.CompletionPercentage(ctx, day, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, DayPercentage{Date: day, Percentage: pct})
	}
	return out, nil
}

// LongestStreak returns the longest run of completed days for the habit in
// [from, to]. Days without a row break a run.
func (s *LedgerService) LongestStreak(ctx context.Context, habitID uint64, from, to string) (int, error) {
	res, err := s.streak(ctx, habitID, from, to)
	if err != nil {
		return 0, err
	}
	return res.Longest, nil
}

// Streak returns the longest and current streak of a user's habit, from
// query.From through today.
func (s *LedgerService) Streak(ctx context.Context, query StreakQuery) (*StreakResult, error) {
	from := query.From
	if from == "" {
		from = constants.EpochDate
	}
	if !utils.IsDate(from) {
		return nil, ErrInvalidDate
	}

	habit, err := s.habits.FindByID(ctx, query.HabitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, storageError("find habit", err)
	}
	if habit.UserID != query.UserID {
		return nil, ErrHabitNotFound
	}

	to := s.Today()
	key := cache.StreakKey(query.HabitID, from, to)
	var cached StreakResult
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("streak_cache_get_failed", zap.String("key", key), zap.Error(err))
	}

	res, err := s.streak(ctx, query.HabitID, from, to)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, res, s.streakTTL); err != nil {
		s.log.Warn("streak_cache_set_failed", zap.String("key", key), zap.Error(err))
	}
	return res, nil
}

func (s *LedgerService) streak(ctx context.Context, habitID uint64, from, to string) (*StreakResult, error) {
	rows, err := s.completions.ListForHabit(ctx, habitID, from, to)
	if err != nil {
		return nil, storageError("list completions", err)
	}

	days := make([]streak.Day, 0, len(rows))
	for _, row := range rows {
		days = append(days, streak.Day{Date: row.Date, Status: row.Status})
	}

	res, err := streak.Compute(days, from, to)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &StreakResult{HabitID: habitID, Longest: res.Longest, Current: res.Current, From: from, To: to}, nil
}

// HabitsForDay returns the user's habits joined with their rows for date.
func (s *LedgerService) HabitsForDay(ctx context.Context, userID uint64, date string, allowDeleted bool) ([]repository.HabitDayRow, error) {
	day, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}
	rows, err := s.completions.HabitsForDay(ctx, userID, day, allowDeleted)
	if err != nil {
		return nil, storageError("habits for day", err)
	}
	return rows, nil
}

// CompletedHabitIDs lists habits marked complete on date.
func (s *LedgerService) CompletedHabitIDs(ctx context.Context, date string, filter Filter) ([]uint64, error) {
	day, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}
	ids, err := s.completions.CompletedHabitIDs(ctx, day, filter.repo())
	if err != nil {
		return nil, storageError("completed habits", err)
	}
	return ids, nil
}

// MostRecentDate returns the greatest date holding any row; ok is false when
// the ledger is empty.
func (s *LedgerService) MostRecentDate(ctx context.Context, filter Filter) (string, bool, error) {
	date, ok, err := s.completions.MostRecentDate(ctx, filter.repo())
	if err != nil {
		return "", false, storageError("most recent date", err)
	}
	return date, ok, nil
}

func (s *LedgerService) invalidateStreaks(ctx context.Context, habitID uint64) {
	if err := s.cache.DeletePattern(ctx, cache.StreakPattern(habitID)); err != nil {
		s.log.Warn("streak_cache_invalidate_failed", zap.Uint64("habit_id", habitID), zap.Error(err))
	}
}
