package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/habit-tracker-api/internal/constants"
	"github.com/yukikurage/habit-tracker-api/internal/dto"
)

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	requireSession := func(w http.ResponseWriter, r *http.Request) bool {
		cookie, err := r.Cookie(constants.SessionCookieName)
		if err != nil || cookie.Value != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "UNAUTHORIZED", "error": "Authentication required"})
			return false
		}
		return true
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(HealthStatus{Status: "ok", Time: time.Now()})
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "password123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "INVALID_CREDENTIALS", "error": "Invalid credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: constants.SessionCookieName, Value: "s3cret", Path: "/"})
		_ = json.NewEncoder(w).Encode(dto.UserDTO{ID: 7, Name: "Alice", Email: body["email"]})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: constants.SessionCookieName, Value: "", Path: "/", MaxAge: -1})
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Logged out"})
	})
	mux.HandleFunc("/sync/snapshot", func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(dto.SnapshotResponse{
			User:   dto.UserDTO{ID: 7},
			Habits: []dto.HabitDTO{{ID: 1, Name: "Read", UserID: 7, Current: true}},
		})
	})
	mux.HandleFunc("/sync/push", func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}
		var req dto.PushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(dto.PushResponse{Accepted: len(req.Completions)})
	})
	mux.HandleFunc("/habits", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(dto.HabitDTO{ID: 9, Name: body["name"].(string), UserID: uint64(body["userId"].(float64))})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
	_, err = New("://nope")
	assert.Error(t, err)
}

func TestClient_LoginSnapshotPush(t *testing.T) {
	srv := fakeServer(t)
	ctx := context.Background()

	client, err := New(srv.URL + "/")
	require.NoError(t, err)
	require.NoError(t, client.Health(ctx))

	_, err = client.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	user, err := client.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), user.ID)
	assert.Equal(t, "s3cret", client.Session())

	snap, err := client.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Habits, 1)
	assert.Equal(t, "Read", snap.Habits[0].Name)

	res, err := client.Push(ctx, dto.PushRequest{Completions: []dto.CompletionChangeDTO{
		{HabitID: 1, Date: "2024-11-17", Status: true, Timestamp: time.Now()},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Accepted)

	require.NoError(t, client.Logout(ctx))
	assert.Empty(t, client.Session())
}

func TestClient_StatusError(t *testing.T) {
	srv := fakeServer(t)
	ctx := context.Background()

	client, err := New(srv.URL)
	require.NoError(t, err)
	_, err = client.Login(ctx, "alice@example.com", "wrong")
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "INVALID_CREDENTIALS", se.Code)
	assert.True(t, IsUnauthorized(err))

	stale, err := New(srv.URL, WithSession("expired"))
	require.NoError(t, err)
	_, err = stale.Snapshot(ctx)
	assert.True(t, IsUnauthorized(err))
}

func TestClient_CreateHabit(t *testing.T) {
	srv := fakeServer(t)

	client, err := New(srv.URL)
	require.NoError(t, err)
	habit, err := client.CreateHabit(context.Background(), 7, "Stretch", "daily")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), habit.ID)
	assert.Equal(t, uint64(7), habit.UserID)
}

func TestClient_HealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := New(url)
	require.NoError(t, err)
	assert.Error(t, client.Health(context.Background()))
}
