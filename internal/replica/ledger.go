package replica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/constants"
	"github.com/yukikurage/habit-tracker-api/internal/streak"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
)

// User returns the replicated profile of the logged-in user.
func (s *Store) User(ctx context.Context) (*User, error) {
	id, err := s.UserID(ctx)
	if err != nil {
		return nil, err
	}
	var (
		u       User
		updated string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, email, success_limit, failure_limit, updated_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.SuccessLimit, &u.FailureLimit, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}

// Habits lists the user's habits, archived ones only when asked.
func (s *Store) Habits(ctx context.Context, includeArchived bool) ([]Habit, error) {
	userID, err := s.UserID(ctx)
	if err != nil {
		return nil, err
	}
	where := `user_id = ?`
	if !includeArchived {
		where += ` AND is_current = 1`
	}
	return queryHabits(ctx, s.db, where, userID)
}

// Habit returns one of the user's habits.
func (s *Store) Habit(ctx context.Context, id uint64) (*Habit, error) {
	userID, err := s.UserID(ctx)
	if err != nil {
		return nil, err
	}
	habits, err := queryHabits(ctx, s.db, `id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, err
	}
	if len(habits) == 0 {
		return nil, ErrHabitNotFound
	}
	return &habits[0], nil
}

// RenameHabit changes a habit's name offline.
func (s *Store) RenameHabit(ctx context.Context, id uint64, name string, now time.Time) (*Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("habit name must not be empty")
	}
	return s.editHabit(ctx, id, now, `name = ?`, name)
}

// ArchiveHabit marks a habit as no longer current offline. History is kept.
func (s *Store) ArchiveHabit(ctx context.Context, id uint64, now time.Time) (*Habit, error) {
	return s.editHabit(ctx, id, now, `is_current = 0`)
}

func (s *Store) editHabit(ctx context.Context, id uint64, now time.Time, set string, args ...any) (*Habit, error) {
	if _, err := s.Habit(ctx, id); err != nil {
		return nil, err
	}
	args = append(args, formatTime(utils.Timestamp(now)), id)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE habits SET `+set+`, updated_at = ?, synced = 0 WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("failed to update habit %d: %w", id, err)
	}
	return s.Habit(ctx, id)
}

// InitializeDay inserts a false row for every current habit lacking one on
// date. Rows are created clean: the server's own sweep creates its copies,
// and the first pull after reconnecting adopts them.
func (s *Store) InitializeDay(ctx context.Context, date string, now time.Time) (int64, error) {
	if !utils.IsDate(date) {
		return 0, utils.ErrInvalidDate
	}
	userID, err := s.UserID(ctx)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO habit_completions (habit_id, date, status, timestamp, synced)
		 SELECT id, ?, 0, ?, 1 FROM habits WHERE user_id = ? AND is_current = 1
		 ON CONFLICT(habit_id, date) DO NOTHING`,
		date, formatTime(utils.Timestamp(now)), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize %s: %w", date, err)
	}
	return res.RowsAffected()
}

// SetStatus records a completion change locally and marks it for push.
func (s *Store) SetStatus(ctx context.Context, habitID uint64, date string, status bool, now time.Time) (*Completion, error) {
	if !utils.IsDate(date) {
		return nil, utils.ErrInvalidDate
	}
	if _, err := s.Habit(ctx, habitID); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO habit_completions (habit_id, date, status, timestamp, synced)
		 VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT(habit_id, date) DO UPDATE SET
			status = excluded.status,
			timestamp = excluded.timestamp,
			synced = 0`,
		habitID, date, boolInt(status), formatTime(utils.Timestamp(now)))
	if err != nil {
		return nil, fmt.Errorf("failed to set status: %w", err)
	}
	rows, err := queryCompletions(ctx, s.db, `habit_id = ? AND date = ?`, habitID, date)
	if err != nil {
		return nil, err
	}
	return &rows[0], nil
}

// HabitsForDay joins the user's habits with their rows for date. Habits
// without a row are omitted.
func (s *Store) HabitsForDay(ctx context.Context, date string, allowArchived bool) ([]DayRow, error) {
	if !utils.IsDate(date) {
		return nil, utils.ErrInvalidDate
	}
	userID, err := s.UserID(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT h.id, h.name, h.frequency, h.is_current, c.date, c.status, c.timestamp, c.synced
		FROM habit_completions c JOIN habits h ON h.id = c.habit_id
		WHERE h.user_id = ? AND c.date = ?`
	if !allowArchived {
		query += ` AND h.is_current = 1`
	}
	query += ` ORDER BY h.id`

	rows, err := s.db.QueryContext(ctx, query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits for %s: %w", date, err)
	}
	defer rows.Close()

	out := []DayRow{}
	for rows.Next() {
		var (
			r                       DayRow
			current, status, synced int
			ts                      string
		)
		if err := rows.Scan(&r.HabitID, &r.Name, &r.Frequency, &current, &r.Date, &status, &ts, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan day row: %w", err)
		}
		r.Current = current == 1
		r.Status = status == 1
		r.Synced = synced == 1
		if r.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CompletionPercentage is the share of the user's rows on date with status
// true, 0 when there are none.
func (s *Store) CompletionPercentage(ctx context.Context, date string) (float64, error) {
	if !utils.IsDate(date) {
		return 0, utils.ErrInvalidDate
	}
	userID, err := s.UserID(ctx)
	if err != nil {
		return 0, err
	}
	var total, done int64
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(c.status), 0)
		 FROM habit_completions c JOIN habits h ON h.id = c.habit_id
		 WHERE h.user_id = ? AND c.date = ?`, userID, date).Scan(&total, &done)
	if err != nil {
		return 0, fmt.Errorf("failed to compute percentage: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(done) * 100 / float64(total), nil
}

// LongestStreak computes streaks for one habit over [from, to]. An empty from
// scans from the epoch.
func (s *Store) LongestStreak(ctx context.Context, habitID uint64, from, to string) (streak.Result, error) {
	if from == "" {
		from = constants.EpochDate
	}
	if !utils.IsDate(from) || !utils.IsDate(to) {
		return streak.Result{}, utils.ErrInvalidDate
	}
	if _, err := s.Habit(ctx, habitID); err != nil {
		return streak.Result{}, err
	}
	rows, err := queryCompletions(ctx, s.db, `habit_id = ? AND date >= ? AND date <= ?`, habitID, from, to)
	if err != nil {
		return streak.Result{}, err
	}
	days := make([]streak.Day, 0, len(rows))
	for _, r := range rows {
		days = append(days, streak.Day{Date: r.Date, Status: r.Status})
	}
	return streak.Compute(days, from, to)
}

// MostRecentDate returns the latest date holding any of the user's rows, or
// "" when there are none.
func (s *Store) MostRecentDate(ctx context.Context) (string, error) {
	userID, err := s.UserID(ctx)
	if err != nil {
		return "", err
	}
	var date sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT MAX(c.date) FROM habit_completions c JOIN habits h ON h.id = c.habit_id
		 WHERE h.user_id = ?`, userID).Scan(&date)
	if err != nil {
		return "", fmt.Errorf("failed to read most recent date: %w", err)
	}
	return date.String, nil
}

// Backfill initializes every date from the most recent row through today.
// With no rows, only today is initialized. Gaps longer than a year start a
// year back.
func (s *Store) Backfill(ctx context.Context, today string, now time.Time) (int64, error) {
	from, err := s.MostRecentDate(ctx)
	if err != nil {
		return 0, err
	}
	if from == "" || from > today {
		from = today
	}
	// Gaps longer than the range limit restart that many days back.
	earliest, err := utils.AddDays(today, -(constants.MaxRangeDays - 1))
	if err != nil {
		return 0, err
	}
	if from < earliest {
		from = earliest
	}
	dates, err := utils.DateRange(from, today, constants.MaxRangeDays)
	if err != nil {
		return 0, err
	}
	var inserted int64
	for _, date := range dates {
		n, err := s.InitializeDay(ctx, date, now)
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}
