package replica

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/habit-tracker-api/internal/utils"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	store := newTestStore(t)
	archived := serverHabit(3, "Old", t0)
	archived.Current = false
	_, err := store.ApplySnapshot(context.Background(), testSnapshot(
		[]Habit{serverHabit(1, "Read", t0), serverHabit(2, "Run", t0), archived}, nil))
	require.NoError(t, err)
	return store
}

func TestInitializeDay(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	n, err := store.InitializeDay(ctx, "2024-11-17", t1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.SetStatus(ctx, 1, "2024-11-17", true, t2)
	require.NoError(t, err)

	n, err = store.InitializeDay(ctx, "2024-11-17", t3)
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, err := store.HabitsForDay(ctx, "2024-11-17", false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Status)
	assert.False(t, rows[0].Synced)
	assert.True(t, rows[1].Synced)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending.Completions, 1)

	_, err = store.InitializeDay(ctx, "17/11/2024", t1)
	assert.ErrorIs(t, err, utils.ErrInvalidDate)
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	row, err := store.SetStatus(ctx, 2, "2024-11-17", true, t1)
	require.NoError(t, err)
	assert.True(t, row.Status)
	assert.False(t, row.Synced)
	assert.True(t, row.Timestamp.Equal(t1))

	row, err = store.SetStatus(ctx, 2, "2024-11-17", false, t2)
	require.NoError(t, err)
	assert.False(t, row.Status)
	assert.True(t, row.Timestamp.Equal(t2))

	_, err = store.SetStatus(ctx, 99, "2024-11-17", true, t1)
	assert.ErrorIs(t, err, ErrHabitNotFound)
}

func TestCompletionPercentage(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	pct, err := store.CompletionPercentage(ctx, "2024-11-17")
	require.NoError(t, err)
	assert.Zero(t, pct)

	_, err = store.InitializeDay(ctx, "2024-11-17", t1)
	require.NoError(t, err)
	_, err = store.SetStatus(ctx, 1, "2024-11-17", true, t2)
	require.NoError(t, err)

	pct, err = store.CompletionPercentage(ctx, "2024-11-17")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, pct, 0.001)
}

func TestLongestStreak(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	for _, date := range []string{"2024-11-10", "2024-11-11", "2024-11-12", "2024-11-14", "2024-11-15"} {
		_, err := store.SetStatus(ctx, 1, date, true, t1)
		require.NoError(t, err)
	}
	_, err := store.SetStatus(ctx, 1, "2024-11-16", false, t1)
	require.NoError(t, err)

	res, err := store.LongestStreak(ctx, 1, "", "2024-11-17")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Longest)
	assert.Zero(t, res.Current)

	res, err = store.LongestStreak(ctx, 1, "2024-11-11", "2024-11-15")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Longest)
	assert.Equal(t, 2, res.Current)

	_, err = store.LongestStreak(ctx, 42, "", "2024-11-17")
	assert.ErrorIs(t, err, ErrHabitNotFound)
}

func TestHabitEdits(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	habit, err := store.RenameHabit(ctx, 1, "  Read books ", t1)
	require.NoError(t, err)
	assert.Equal(t, "Read books", habit.Name)
	assert.False(t, habit.Synced)
	assert.True(t, habit.UpdatedAt.Equal(t1))

	_, err = store.RenameHabit(ctx, 1, " ", t1)
	assert.Error(t, err)

	habit, err = store.ArchiveHabit(ctx, 2, t2)
	require.NoError(t, err)
	assert.False(t, habit.Current)

	current, err := store.Habits(ctx, false)
	require.NoError(t, err)
	assert.Len(t, current, 1)

	all, err := store.Habits(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending.Habits, 2)
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	date, err := store.MostRecentDate(ctx)
	require.NoError(t, err)
	assert.Empty(t, date)

	n, err := store.Backfill(ctx, "2024-11-17", t1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Backfill(ctx, "2024-11-20", t2)
	require.NoError(t, err)
	// 18th, 19th and 20th for two current habits.
	assert.Equal(t, int64(6), n)

	date, err = store.MostRecentDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-11-20", date)
}

func TestBackfill_LongGapStartsAYearBack(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)

	_, err := store.SetStatus(ctx, 1, "2023-01-01", true, t1)
	require.NoError(t, err)

	n, err := store.Backfill(ctx, "2024-11-17", t2)
	require.NoError(t, err)
	// 2023-11-18 through 2024-11-17 for two current habits.
	assert.Equal(t, int64(2*366), n)

	rows, err := store.HabitsForDay(ctx, "2023-11-17", false)
	require.NoError(t, err)
	assert.Empty(t, rows)
	rows, err = store.HabitsForDay(ctx, "2023-11-18", false)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
