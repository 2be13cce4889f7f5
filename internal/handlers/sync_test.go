package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/habit-tracker-api/internal/dto"
)

func TestSyncHandler_RequiresSession(t *testing.T) {
	env := setupAPITestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/sync/snapshot", nil)
	requireError(t, w, http.StatusUnauthorized, "UNAUTHORIZED")

	w = env.do(t, http.MethodPost, "/sync/push", dto.PushRequest{})
	requireError(t, w, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestSyncHandler_SnapshotAndPush(t *testing.T) {
	env := setupAPITestEnv(t, nil)
	user := env.signup(t, "s@example.com")
	habit := env.createHabit(t, user.ID, "Run")
	cookies := env.login(t, "s@example.com")

	w := env.do(t, http.MethodGet, "/sync/snapshot", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snap dto.SnapshotResponse
	decode(t, w, &snap)
	assert.Equal(t, user.ID, snap.User.ID)
	require.Len(t, snap.Habits, 1)
	require.Len(t, snap.Completions, 1)
	assert.Equal(t, "2025-11-17", snap.Completions[0].Date)

	later := fixedNow.Add(time.Hour)
	push := dto.PushRequest{
		Habits: []dto.HabitChangeDTO{
			{ID: habit.ID, Name: "Morning run", Frequency: "daily", Current: true, UpdatedAt: later},
			{ID: 9999, Name: "Ghost", Frequency: "daily", Current: true, UpdatedAt: later},
		},
		Completions: []dto.CompletionChangeDTO{
			{HabitID: habit.ID, Date: "2025-11-17", Status: true, Timestamp: later},
			{HabitID: habit.ID, Date: "2025-11-16", Status: true, Timestamp: fixedNow.Add(-time.Hour)},
		},
	}
	w = env.do(t, http.MethodPost, "/sync/push", push, cookies...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res dto.PushResponse
	decode(t, w, &res)
	assert.Equal(t, 3, res.Accepted)
	require.Len(t, res.Conflicts.Habits, 1)
	assert.Equal(t, uint64(9999), res.Conflicts.Habits[0].ID)
	assert.Nil(t, res.Conflicts.Habits[0].Server)
	assert.Empty(t, res.Conflicts.Completions)

	// Replaying an older version of today's row is a conflict carrying the server copy.
	stale := dto.PushRequest{Completions: []dto.CompletionChangeDTO{
		{HabitID: habit.ID, Date: "2025-11-17", Status: false, Timestamp: fixedNow},
	}}
	w = env.do(t, http.MethodPost, "/sync/push", stale, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	assert.Zero(t, res.Accepted)
	require.Len(t, res.Conflicts.Completions, 1)
	require.NotNil(t, res.Conflicts.Completions[0].Server)
	assert.True(t, res.Conflicts.Completions[0].Server.Status)
}

func TestSyncHandler_PushValidation(t *testing.T) {
	env := setupAPITestEnv(t, nil)
	env.signup(t, "s@example.com")
	cookies := env.login(t, "s@example.com")

	bad := map[string]interface{}{
		"completions": []map[string]interface{}{
			{"habitId": 1, "date": "17.11.2025", "status": true, "timestamp": fixedNow},
		},
	}
	w := env.do(t, http.MethodPost, "/sync/push", bad, cookies...)
	requireError(t, w, http.StatusBadRequest, "INVALID_FORMAT")
}
