package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/habit-tracker-api/internal/config"
	"github.com/yukikurage/habit-tracker-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestConnectAndMigrate_SQLite(t *testing.T) {
	cfg := &config.Config{DBDriver: config.DriverSQLite, DBName: "file::memory:"}
	log := zap.NewNop()

	db, err := Connect(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db, log))
	// Re-running is a no-op.
	require.NoError(t, Migrate(db, log))

	assert.True(t, db.Migrator().HasIndex(&models.HabitCompletion{}, "idx_habit_completions_habit_date"))
	assert.True(t, db.Migrator().HasIndex(&models.Habit{}, "idx_habits_user_current"))
}

func TestCompletionUniqueness(t *testing.T) {
	cfg := &config.Config{DBDriver: config.DriverSQLite, DBName: "file::memory:"}
	db, err := Connect(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, Migrate(db, zap.NewNop()))

	user := models.User{Name: "A", Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	habit := models.Habit{Name: "Read", Frequency: "daily", UserID: user.ID, Current: true}
	require.NoError(t, db.Create(&habit).Error)

	require.NoError(t, db.Create(&models.HabitCompletion{HabitID: habit.ID, Date: "2025-11-17"}).Error)
	err = db.Create(&models.HabitCompletion{HabitID: habit.ID, Date: "2025-11-17"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestDialector_Unsupported(t *testing.T) {
	_, err := Dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}
