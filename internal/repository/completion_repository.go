package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCompletionRepository is a GORM implementation of CompletionRepository
type GormCompletionRepository struct {
	db *gorm.DB
}

// NewCompletionRepository creates a new CompletionRepository
func NewCompletionRepository(db *gorm.DB) CompletionRepository {
	return &GormCompletionRepository{db: db}
}

// InsertMissing inserts a status=false row for every habit lacking one on date.
// Rows that already exist, including ones created concurrently, are skipped.
func (r *GormCompletionRepository) InsertMissing(ctx context.Context, date string, habitIDs []uint64, at time.Time) (int64, error) {
	if len(habitIDs) == 0 {
		return 0, nil
	}

	rows := make([]models.HabitCompletion, 0, len(habitIDs))
	for _, id := range habitIDs {
		rows = append(rows, models.HabitCompletion{HabitID: id, Date: date, Status: false, Timestamp: at})
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if result.Error == nil {
		return result.RowsAffected, nil
	}
	if !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return 0, result.Error
	}

	// Dialect rejected the batch on a duplicate; retry row by row.
	var inserted int64
	for _, row := range rows {
		row := row
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, gorm.ErrDuplicatedKey):
		default:
			return inserted, err
		}
	}
	return inserted, nil
}

// Upsert sets status and timestamp on the (habitID, date) row, creating it if absent
func (r *GormCompletionRepository) Upsert(ctx context.Context, habitID uint64, date string, status bool, at time.Time) (*models.HabitCompletion, error) {
	row := models.HabitCompletion{HabitID: habitID, Date: date, Status: status, Timestamp: at}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "timestamp"}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}

	// The returned ID is not reliable on the update path for every dialect.
	return r.Find(ctx, habitID, date)
}

// Find finds the row for (habitID, date)
func (r *GormCompletionRepository) Find(ctx context.Context, habitID uint64, date string) (*models.HabitCompletion, error) {
	var row models.HabitCompletion
	if err := r.db.WithContext(ctx).Where("habit_id = ? AND date = ?", habitID, date).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CountForDate returns the total and completed row counts for date
func (r *GormCompletionRepository) CountForDate(ctx context.Context, date string, filter CompletionFilter) (int64, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Where("habit_completions.date = ?", date).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return 0, 0, nil
	}

	var completed int64
	err := r.filtered(ctx, filter).
		Where("habit_completions.date = ? AND habit_completions.status = ?", date, true).
		Count(&completed).Error
	if err != nil {
		return 0, 0, err
	}
	return total, completed, nil
}

// ListForHabit lists a habit's rows within [from, to], most recent first
func (r *GormCompletionRepository) ListForHabit(ctx context.Context, habitID uint64, from, to string) ([]models.HabitCompletion, error) {
	rows := []models.HabitCompletion{}
	err := r.db.WithContext(ctx).
		Where("habit_id = ? AND date >= ? AND date <= ?", habitID, from, to).
		Order("date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListForUser lists every row belonging to the user's habits
func (r *GormCompletionRepository) ListForUser(ctx context.Context, userID uint64) ([]models.HabitCompletion, error) {
	rows := []models.HabitCompletion{}
	err := r.filtered(ctx, CompletionFilter{UserID: &userID}).
		Order("habit_completions.habit_id ASC, habit_completions.date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CompletedHabitIDs lists habits with status=true on date
func (r *GormCompletionRepository) CompletedHabitIDs(ctx context.Context, date string, filter CompletionFilter) ([]uint64, error) {
	ids := []uint64{}
	err := r.filtered(ctx, filter).
		Where("habit_completions.date = ? AND habit_completions.status = ?", date, true).
		Order("habit_completions.habit_id ASC").
		Pluck("habit_completions.habit_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// HabitsForDay joins a user's habits with their rows for date
func (r *GormCompletionRepository) HabitsForDay(ctx context.Context, userID uint64, date string, allowDeleted bool) ([]HabitDayRow, error) {
	query := r.db.WithContext(ctx).
		Table("habit_completions").
		Select(`habit_completions.id AS id,
			habit_completions.habit_id AS habit_id,
			habits.name AS name,
			habits.frequency AS frequency,
			habit_completions.date AS date,
			habit_completions.status AS status,
			habit_completions.timestamp AS timestamp,
			habits.is_current AS is_current`).
		Joins("JOIN habits ON habits.id = habit_completions.habit_id").
		Where("habits.user_id = ? AND habit_completions.date = ?", userID, date)
	if !allowDeleted {
		query = query.Where("habits.is_current = ?", true)
	}

	rows := []HabitDayRow{}
	if err := query.Order("habits.id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MostRecentDate returns the greatest date with any row
func (r *GormCompletionRepository) MostRecentDate(ctx context.Context, filter CompletionFilter) (string, bool, error) {
	var maxDate sql.NullString
	row := r.filtered(ctx, filter).Select("MAX(habit_completions.date)").Row()
	if err := row.Scan(&maxDate); err != nil {
		return "", false, err
	}
	return maxDate.String, maxDate.Valid, nil
}

func (r *GormCompletionRepository) filtered(ctx context.Context, filter CompletionFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.HabitCompletion{})
	if filter.UserID != nil {
		query = query.Joins("JOIN habits ON habits.id = habit_completions.habit_id").
			Where("habits.user_id = ?", *filter.UserID)
	}
	if len(filter.HabitIDs) > 0 {
		query = query.Where("habit_completions.habit_id IN ?", filter.HabitIDs)
	}
	return query
}
