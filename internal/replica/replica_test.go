package replica

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2024, 11, 17, 8, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
	t3 = t0.Add(3 * time.Hour)
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "replica.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.SetMeta(ctx, MetaUserID, "1"))
	return store
}

func testSnapshot(habits []Habit, completions []Completion) Snapshot {
	return Snapshot{
		User:        &User{ID: 1, Name: "Alice", Email: "alice@example.com", SuccessLimit: 80, FailureLimit: 50, UpdatedAt: t0},
		Habits:      habits,
		Completions: completions,
		ServerTime:  t1,
	}
}

func serverHabit(id uint64, name string, updated time.Time) Habit {
	return Habit{ID: id, UserID: 1, Name: name, Frequency: "daily", Current: true, CreatedAt: t0, UpdatedAt: updated}
}

func TestOpen_LoadRequiresInit(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestMeta(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	value, err := store.Meta(ctx, MetaServerURL)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.SetMeta(ctx, MetaServerURL, "http://a"))
	require.NoError(t, store.SetMeta(ctx, MetaServerURL, "http://b"))
	value, err = store.Meta(ctx, MetaServerURL)
	require.NoError(t, err)
	assert.Equal(t, "http://b", value)

	require.NoError(t, store.DeleteMeta(ctx, MetaServerURL, MetaUserID))
	_, err = store.UserID(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		local    *version
		incoming time.Time
		want     action
		winner   string
	}{
		{"absent", nil, t1, actionInsert, ""},
		{"clean older local", &version{current: t0, synced: true}, t1, actionTake, ""},
		{"clean same", &version{current: t1, synced: true}, t1, actionRebase, ""},
		{"dirty server unchanged", &version{current: t2, base: &t0}, t0, actionKeep, ""},
		{"dirty local newer", &version{current: t3, base: &t0}, t2, actionRebase, "local"},
		{"dirty server newer", &version{current: t1, base: &t0}, t2, actionTake, "server"},
		{"dirty tie goes to server", &version{current: t2, base: &t0}, t2, actionTake, "server"},
		{"dirty never seen", &version{current: t2}, t1, actionRebase, "local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conflict := resolve(tt.local, tt.incoming)
			assert.Equal(t, tt.want, got)
			if tt.winner == "" {
				assert.Nil(t, conflict)
				return
			}
			require.NotNil(t, conflict)
			assert.Equal(t, tt.winner, conflict.Winner)
		})
	}
}

func TestApplySnapshot_InsertsClean(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	report, err := store.ApplySnapshot(ctx, testSnapshot(
		[]Habit{serverHabit(1, "Read", t0), serverHabit(2, "Run", t0)},
		[]Completion{{HabitID: 1, Date: "2024-11-17", Status: true, Timestamp: t0}},
	))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Inserted)
	assert.Empty(t, report.Conflicts)

	user, err := store.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)

	habits, err := store.Habits(ctx, false)
	require.NoError(t, err)
	require.Len(t, habits, 2)
	assert.True(t, habits[0].Synced)
	require.NotNil(t, habits[0].BaseVersion)
	assert.True(t, habits[0].BaseVersion.Equal(t0))

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.True(t, pending.Empty())

	last, err := store.LastSync(ctx)
	require.NoError(t, err)
	assert.True(t, last.Equal(t1))
}

func TestApplySnapshot_CleanTakesNewer(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplySnapshot(ctx, testSnapshot([]Habit{serverHabit(1, "Read", t0)}, nil))
	require.NoError(t, err)

	report, err := store.ApplySnapshot(ctx, testSnapshot([]Habit{serverHabit(1, "Read more", t1)}, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	habit, err := store.Habit(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Read more", habit.Name)
}

func TestApplySnapshot_DirtyKeptWhenServerUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplySnapshot(ctx, testSnapshot(
		[]Habit{serverHabit(1, "Read", t0)},
		[]Completion{{HabitID: 1, Date: "2024-11-17", Status: false, Timestamp: t0}},
	))
	require.NoError(t, err)

	_, err = store.SetStatus(ctx, 1, "2024-11-17", true, t2)
	require.NoError(t, err)

	report, err := store.ApplySnapshot(ctx, testSnapshot(
		[]Habit{serverHabit(1, "Read", t0)},
		[]Completion{{HabitID: 1, Date: "2024-11-17", Status: false, Timestamp: t0}},
	))
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending.Completions, 1)
	assert.True(t, pending.Completions[0].Status)
	assert.True(t, pending.Completions[0].Timestamp.Equal(t2))
}

func TestApplySnapshot_TrueConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("local newer wins", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.ApplySnapshot(ctx, testSnapshot(
			[]Habit{serverHabit(1, "Read", t0)},
			[]Completion{{HabitID: 1, Date: "2024-11-17", Timestamp: t0}},
		))
		require.NoError(t, err)
		_, err = store.SetStatus(ctx, 1, "2024-11-17", true, t3)
		require.NoError(t, err)

		report, err := store.ApplySnapshot(ctx, testSnapshot(
			[]Habit{serverHabit(1, "Read", t0)},
			[]Completion{{HabitID: 1, Date: "2024-11-17", Status: false, Timestamp: t2}},
		))
		require.NoError(t, err)
		require.Len(t, report.Conflicts, 1)
		assert.Equal(t, "habit_completions", report.Conflicts[0].Table)
		assert.Equal(t, "1/2024-11-17", report.Conflicts[0].Key)
		assert.Equal(t, "local", report.Conflicts[0].Winner)

		pending, err := store.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending.Completions, 1)
		assert.True(t, pending.Completions[0].Status)
		require.NotNil(t, pending.Completions[0].BaseVersion)
		assert.True(t, pending.Completions[0].BaseVersion.Equal(t2))
	})

	t.Run("server newer wins", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.ApplySnapshot(ctx, testSnapshot([]Habit{serverHabit(1, "Read", t0)}, nil))
		require.NoError(t, err)
		_, err = store.RenameHabit(ctx, 1, "Local name", t1)
		require.NoError(t, err)

		report, err := store.ApplySnapshot(ctx, testSnapshot([]Habit{serverHabit(1, "Server name", t2)}, nil))
		require.NoError(t, err)
		require.Len(t, report.Conflicts, 1)
		assert.Equal(t, "server", report.Conflicts[0].Winner)

		habit, err := store.Habit(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Server name", habit.Name)
		assert.True(t, habit.Synced)
	})
}

func TestApplySnapshot_LocalEditBeforeDayRowPulled(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplySnapshot(ctx, testSnapshot([]Habit{serverHabit(1, "Read", t0)}, nil))
	require.NoError(t, err)
	_, err = store.SetStatus(ctx, 1, "2024-11-18", true, t2)
	require.NoError(t, err)

	// The server swept the day after the local edit was made but before it
	// was pushed.
	report, err := store.ApplySnapshot(ctx, testSnapshot(
		[]Habit{serverHabit(1, "Read", t0)},
		[]Completion{{HabitID: 1, Date: "2024-11-18", Status: false, Timestamp: t1}},
	))
	require.NoError(t, err)
	assert.Empty(t, report.Conflicts)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending.Completions, 1)
	assert.True(t, pending.Completions[0].Status)
	require.NotNil(t, pending.Completions[0].BaseVersion)
	assert.True(t, pending.Completions[0].BaseVersion.Equal(t1))

	t.Run("server completed elsewhere", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.ApplySnapshot(ctx, testSnapshot([]Habit{serverHabit(1, "Read", t0)}, nil))
		require.NoError(t, err)
		_, err = store.SetStatus(ctx, 1, "2024-11-18", false, t2)
		require.NoError(t, err)

		report, err := store.ApplySnapshot(ctx, testSnapshot(
			[]Habit{serverHabit(1, "Read", t0)},
			[]Completion{{HabitID: 1, Date: "2024-11-18", Status: true, Timestamp: t1}},
		))
		require.NoError(t, err)
		require.Len(t, report.Conflicts, 1)
		assert.Equal(t, "local", report.Conflicts[0].Winner)
	})
}

func TestApplySnapshot_RemovesPurgedRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplySnapshot(ctx, testSnapshot(
		[]Habit{serverHabit(1, "Read", t0), serverHabit(2, "Run", t0)},
		[]Completion{
			{HabitID: 1, Date: "2024-11-17", Timestamp: t0},
			{HabitID: 2, Date: "2024-11-17", Timestamp: t0},
		},
	))
	require.NoError(t, err)
	// Locally initialized row the server has never seen.
	_, err = store.InitializeDay(ctx, "2024-11-18", t1)
	require.NoError(t, err)

	report, err := store.ApplySnapshot(ctx, testSnapshot([]Habit{serverHabit(1, "Read", t0)}, nil))
	require.NoError(t, err)
	// Habit 2 with its rows, plus habit 1's confirmed row.
	assert.Equal(t, 2, report.Removed)

	habits, err := store.Habits(ctx, true)
	require.NoError(t, err)
	require.Len(t, habits, 1)

	rows, err := store.HabitsForDay(ctx, "2024-11-18", true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(1), rows[0].HabitID)

	rows, err = store.HabitsForDay(ctx, "2024-11-17", true)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMarkSynced(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplySnapshot(ctx, testSnapshot([]Habit{serverHabit(1, "Read", t0)}, nil))
	require.NoError(t, err)
	_, err = store.SetStatus(ctx, 1, "2024-11-17", true, t1)
	require.NoError(t, err)
	_, err = store.SetStatus(ctx, 1, "2024-11-18", true, t1)
	require.NoError(t, err)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, pending.Len())

	// Edited again after collection: must stay dirty.
	_, err = store.SetStatus(ctx, 1, "2024-11-18", false, t2)
	require.NoError(t, err)

	require.NoError(t, store.MarkSynced(ctx, pending))

	left, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, left.Completions, 1)
	assert.Equal(t, "2024-11-18", left.Completions[0].Date)
	assert.False(t, left.Completions[0].Status)
}

func TestAcceptServerAndDiscard(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplySnapshot(ctx, testSnapshot(
		[]Habit{serverHabit(1, "Read", t0), serverHabit(2, "Run", t0)}, nil))
	require.NoError(t, err)
	_, err = store.SetStatus(ctx, 1, "2024-11-17", true, t1)
	require.NoError(t, err)
	_, err = store.RenameHabit(ctx, 2, "Walk", t1)
	require.NoError(t, err)

	require.NoError(t, store.AcceptServer(ctx, Changes{
		Completions: []Completion{{HabitID: 1, Date: "2024-11-17", Status: false, Timestamp: t2}},
	}))
	require.NoError(t, store.Discard(ctx, []uint64{2}, nil))

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.True(t, pending.Empty())

	rows, err := store.HabitsForDay(ctx, "2024-11-17", false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Status)

	_, err = store.Habit(ctx, 2)
	assert.ErrorIs(t, err, ErrHabitNotFound)
}

func TestApplySnapshot_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	snap := testSnapshot(
		[]Habit{serverHabit(1, "Read", t0), serverHabit(2, "Run", t1)},
		[]Completion{
			{HabitID: 1, Date: "2024-11-16", Status: true, Timestamp: t0},
			{HabitID: 2, Date: "2024-11-17", Timestamp: t1},
		},
	)

	_, err := store.ApplySnapshot(ctx, snap)
	require.NoError(t, err)
	firstHabits, err := store.Habits(ctx, true)
	require.NoError(t, err)
	firstRows, err := store.HabitsForDay(ctx, "2024-11-17", true)
	require.NoError(t, err)

	report, err := store.ApplySnapshot(ctx, snap)
	require.NoError(t, err)
	assert.Zero(t, report.Inserted)
	assert.Zero(t, report.Updated)
	assert.Zero(t, report.Removed)
	assert.Equal(t, 4, report.Kept)
	assert.Empty(t, report.Conflicts)

	secondHabits, err := store.Habits(ctx, true)
	require.NoError(t, err)
	secondRows, err := store.HabitsForDay(ctx, "2024-11-17", true)
	require.NoError(t, err)
	assert.Equal(t, firstHabits, secondHabits)
	assert.Equal(t, firstRows, secondRows)
}
