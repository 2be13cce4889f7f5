package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/habit-tracker-api/internal/database"
	"github.com/yukikurage/habit-tracker-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "Test", Email: email, PasswordHash: "hash", SuccessLimit: 80, FailureLimit: 50}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createHabit(t *testing.T, db *gorm.DB, userID uint64, name string) *models.Habit {
	t.Helper()
	habit := &models.Habit{Name: name, Frequency: "daily", UserID: userID, Current: true}
	require.NoError(t, db.Create(habit).Error)
	return habit
}

var testTime = time.Date(2025, 11, 17, 9, 0, 0, 0, time.UTC)

func TestCompletionRepository_InsertMissingIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "a@example.com")
	h1 := createHabit(t, db, user.ID, "Exercise")
	h2 := createHabit(t, db, user.ID, "Read")
	repo := NewCompletionRepository(db)

	_, err := repo.Upsert(ctx, h1.ID, "2025-11-17", true, testTime)
	require.NoError(t, err)

	inserted, err := repo.InsertMissing(ctx, "2025-11-17", []uint64{h1.ID, h2.ID}, testTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)

	inserted, err = repo.InsertMissing(ctx, "2025-11-17", []uint64{h1.ID, h2.ID}, testTime)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	var count int64
	require.NoError(t, db.Model(&models.HabitCompletion{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// The existing completed row was not overwritten.
	row, err := repo.Find(ctx, h1.ID, "2025-11-17")
	require.NoError(t, err)
	assert.True(t, row.Status)
}

func TestCompletionRepository_UpsertKeepsOneRow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "a@example.com")
	habit := createHabit(t, db, user.ID, "Exercise")
	repo := NewCompletionRepository(db)

	statuses := []bool{true, false, true, true, false}
	for i, status := range statuses {
		row, err := repo.Upsert(ctx, habit.ID, "2025-11-17", status, testTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, status, row.Status)
	}

	var rows []models.HabitCompletion
	require.NoError(t, db.Where("habit_id = ?", habit.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Status)
	assert.True(t, rows[0].Timestamp.Equal(testTime.Add(4*time.Minute)))
}

func TestCompletionRepository_CountsAndFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")
	a1 := createHabit(t, db, alice.ID, "Run")
	a2 := createHabit(t, db, alice.ID, "Read")
	b1 := createHabit(t, db, bob.ID, "Swim")
	repo := NewCompletionRepository(db)

	_, err := repo.InsertMissing(ctx, "2025-11-17", []uint64{a1.ID, a2.ID, b1.ID}, testTime)
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, a1.ID, "2025-11-17", true, testTime)
	require.NoError(t, err)

	total, completed, err := repo.CountForDate(ctx, "2025-11-17", CompletionFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(1), completed)

	total, completed, err = repo.CountForDate(ctx, "2025-11-17", CompletionFilter{UserID: &alice.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), completed)

	total, completed, err = repo.CountForDate(ctx, "2025-11-17", CompletionFilter{HabitIDs: []uint64{a2.ID}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(0), completed)

	total, _, err = repo.CountForDate(ctx, "2025-11-18", CompletionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)

	ids, err := repo.CompletedHabitIDs(ctx, "2025-11-17", CompletionFilter{UserID: &alice.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint64{a1.ID}, ids)
}

func TestCompletionRepository_HabitsForDay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "a@example.com")
	active := createHabit(t, db, user.ID, "Run")
	archived := createHabit(t, db, user.ID, "Old")
	require.NoError(t, db.Model(archived).Update("is_current", false).Error)
	repo := NewCompletionRepository(db)

	_, err := repo.InsertMissing(ctx, "2025-11-17", []uint64{active.ID, archived.ID}, testTime)
	require.NoError(t, err)

	rows, err := repo.HabitsForDay(ctx, user.ID, "2025-11-17", false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, active.ID, rows[0].HabitID)
	assert.Equal(t, "Run", rows[0].Name)
	assert.Equal(t, "2025-11-17", rows[0].Date)
	assert.True(t, rows[0].Current)

	rows, err = repo.HabitsForDay(ctx, user.ID, "2025-11-17", true)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCompletionRepository_MostRecentDateAndRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewCompletionRepository(db)

	_, ok, err := repo.MostRecentDate(ctx, CompletionFilter{})
	require.NoError(t, err)
	assert.False(t, ok)

	user := createUser(t, db, "a@example.com")
	habit := createHabit(t, db, user.ID, "Run")
	for _, d := range []string{"2025-11-15", "2025-11-17", "2025-11-16"} {
		_, err := repo.Upsert(ctx, habit.ID, d, true, testTime)
		require.NoError(t, err)
	}

	date, ok, err := repo.MostRecentDate(ctx, CompletionFilter{UserID: &user.ID})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2025-11-17", date)

	rows, err := repo.ListForHabit(ctx, habit.ID, "2025-11-16", "2025-11-17")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-11-17", rows[0].Date)
	assert.Equal(t, "2025-11-16", rows[1].Date)
}

func TestHabitRepository_DeleteForDate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "a@example.com")
	repo := NewHabitRepository(db)
	completions := NewCompletionRepository(db)

	fresh := &models.Habit{Name: "Fresh", Frequency: "daily", UserID: user.ID, Current: true}
	require.NoError(t, repo.CreateWithCompletion(ctx, fresh, &models.HabitCompletion{Date: "2025-11-17", Timestamp: testTime}))

	outcome, err := repo.DeleteForDate(ctx, fresh.ID, "2025-11-17", testTime)
	require.NoError(t, err)
	assert.Equal(t, HabitPurged, outcome)
	_, err = repo.FindByID(ctx, fresh.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	old := &models.Habit{Name: "Old", Frequency: "daily", UserID: user.ID, Current: true}
	require.NoError(t, repo.CreateWithCompletion(ctx, old, &models.HabitCompletion{Date: "2025-11-17", Timestamp: testTime}))
	_, err = completions.Upsert(ctx, old.ID, "2025-11-16", true, testTime)
	require.NoError(t, err)

	outcome, err = repo.DeleteForDate(ctx, old.ID, "2025-11-17", testTime)
	require.NoError(t, err)
	assert.Equal(t, HabitArchived, outcome)

	found, err := repo.FindByID(ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, found.Current)

	_, err = completions.Find(ctx, old.ID, "2025-11-17")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = completions.Find(ctx, old.ID, "2025-11-16")
	assert.NoError(t, err)

	_, err = repo.DeleteForDate(ctx, 9999, "2025-11-17", testTime)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestHabitRepository_ListAndUpdate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "a@example.com")
	run := createHabit(t, db, user.ID, "Run")
	read := createHabit(t, db, user.ID, "Read")
	repo := NewHabitRepository(db)

	read.Current = false
	read.UpdatedAt = testTime
	require.NoError(t, repo.Update(ctx, read))

	habits, err := repo.ListByUser(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, run.ID, habits[0].ID)

	habits, err = repo.ListByUser(ctx, user.ID, true)
	require.NoError(t, err)
	assert.Len(t, habits, 2)

	ids, err := repo.ListCurrentIDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{run.ID}, ids)

	err = repo.Update(ctx, &models.Habit{ID: 9999, Name: "x"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_List(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	var ids []uint64
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		ids = append(ids, createUser(t, db, email).ID)
	}
	repo := NewUserRepository(db)

	users, total, err := repo.List(ctx, UserQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, users, 2)
	assert.Equal(t, ids[:2], []uint64{users[0].ID, users[1].ID})

	users, total, err = repo.List(ctx, UserQuery{AfterID: ids[1], Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, users, 1)
	assert.Equal(t, "c@example.com", users[0].Email)

	users, _, err = repo.List(ctx, UserQuery{})
	require.NoError(t, err)
	assert.Len(t, users, 3)

	err = repo.Create(ctx, &models.User{Name: "dup", Email: "a@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestTxRunner_RollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "a@example.com")
	habit := createHabit(t, db, user.ID, "Run")

	boom := errors.New("boom")
	err := NewTxRunner(db).InTx(ctx, func(repos *Repositories) error {
		if _, err := repos.Completions.Upsert(ctx, habit.ID, "2025-11-17", true, testTime); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewCompletionRepository(db).Find(ctx, habit.ID, "2025-11-17")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func TestCompletionRepository_PropagatesStoreErrors(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCompletionRepository(db)
	ctx := context.Background()
	connErr := errors.New("connection reset by peer")

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "habit_completions"`)).WillReturnError(connErr)
	_, err := repo.Upsert(ctx, 1, "2025-11-17", true, testTime)
	assert.ErrorIs(t, err, connErr)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "habit_completions"`)).WillReturnError(connErr)
	_, err = repo.InsertMissing(ctx, "2025-11-17", []uint64{1, 2}, testTime)
	assert.ErrorIs(t, err, connErr)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(habit_completions.date)`)).WillReturnError(connErr)
	_, _, err = repo.MostRecentDate(ctx, CompletionFilter{})
	assert.ErrorIs(t, err, connErr)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletionRepository_MostRecentDateNull(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCompletionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(habit_completions.date)`)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	date, ok, err := repo.MostRecentDate(context.Background(), CompletionFilter{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, date)
	require.NoError(t, mock.ExpectationsWereMet())
}
