package services

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/habit-tracker-api/internal/cache"
	"github.com/yukikurage/habit-tracker-api/internal/database"
	"github.com/yukikurage/habit-tracker-api/internal/metrics"
	"github.com/yukikurage/habit-tracker-api/internal/models"
	"github.com/yukikurage/habit-tracker-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fixedNow is 2025-11-17 in local time, mid-morning so "today" is unambiguous.
var fixedNow = time.Date(2025, 11, 17, 9, 30, 0, 0, time.Local)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memCache is an in-process cache.Cache used to observe caching behaviour.
type memCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]interface{}{}}
}

func (m *memCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return cache.ErrMiss
	}
	res, ok := v.(*StreakResult)
	if !ok {
		return cache.ErrMiss
	}
	*(dest.(*StreakResult)) = *res
	return nil
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memCache) DeletePattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *memCache) Close() error { return nil }

func (m *memCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type testEnv struct {
	db     *gorm.DB
	repos  *repository.Repositories
	clock  *testClock
	cache  *memCache
	auth   *AuthService
	users  *UserService
	habits *HabitService
	ledger *LedgerService
	sync   *SyncService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Habit{}, &models.HabitCompletion{}))

	log := zap.NewNop()
	repos := repository.NewRepositories(db)
	clock := &testClock{now: fixedNow}
	c := newMemCache()

	return &testEnv{
		db:     db,
		repos:  repos,
		clock:  clock,
		cache:  c,
		auth:   NewAuthService(repos.Users, log),
		users:  NewUserService(repos.Users, log),
		habits: NewHabitService(repos, c, clock.Now, log),
		ledger: NewLedgerService(repos, c, metrics.Nop{}, clock.Now, log),
		sync:   NewSyncService(repos, repository.NewTxRunner(db), c, metrics.Nop{}, clock.Now, log),
	}
}

func (e *testEnv) signup(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := e.auth.Signup(context.Background(), SignupInput{Name: "Test User", Email: email, Password: "supersecret"})
	require.NoError(t, err)
	return user
}

func (e *testEnv) createHabit(t *testing.T, userID uint64, name string) *models.Habit {
	t.Helper()
	habit, err := e.habits.CreateHabit(context.Background(), CreateHabitInput{Name: name, Frequency: "daily", UserID: userID})
	require.NoError(t, err)
	return habit
}
