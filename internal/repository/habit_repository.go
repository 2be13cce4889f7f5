package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/models"
	"gorm.io/gorm"
)

// GormHabitRepository is a GORM implementation of HabitRepository
type GormHabitRepository struct {
	db *gorm.DB
}

// NewHabitRepository creates a new HabitRepository
func NewHabitRepository(db *gorm.DB) HabitRepository {
	return &GormHabitRepository{db: db}
}

// CreateWithCompletion creates a habit and its first completion row atomically
func (r *GormHabitRepository) CreateWithCompletion(ctx context.Context, habit *models.Habit, completion *models.HabitCompletion) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(habit).Error; err != nil {
			return fmt.Errorf("create habit: %w", err)
		}

		completion.HabitID = habit.ID
		if err := tx.Create(completion).Error; err != nil {
			return fmt.Errorf("create completion: %w", err)
		}

		return nil
	})
}

// FindByID finds a habit by ID
func (r *GormHabitRepository) FindByID(ctx context.Context, id uint64) (*models.Habit, error) {
	var habit models.Habit
	if err := r.db.WithContext(ctx).First(&habit, id).Error; err != nil {
		return nil, err
	}
	return &habit, nil
}

// ListByUser lists a user's habits; archived ones only when includeArchived is set
func (r *GormHabitRepository) ListByUser(ctx context.Context, userID uint64, includeArchived bool) ([]models.Habit, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeArchived {
		query = query.Where("is_current = ?", true)
	}

	habits := []models.Habit{}
	if err := query.Order("id ASC").Find(&habits).Error; err != nil {
		return nil, err
	}
	return habits, nil
}

// ListCurrentIDs returns the IDs of active habits, optionally for a single user
func (r *GormHabitRepository) ListCurrentIDs(ctx context.Context, userID *uint64) ([]uint64, error) {
	query := r.db.WithContext(ctx).Model(&models.Habit{}).Where("is_current = ?", true)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	ids := []uint64{}
	if err := query.Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Update writes name, frequency, current and updated_at exactly as given
func (r *GormHabitRepository) Update(ctx context.Context, habit *models.Habit) error {
	result := r.db.WithContext(ctx).Model(&models.Habit{}).Where("id = ?", habit.ID).UpdateColumns(map[string]interface{}{
		"name":       habit.Name,
		"frequency":  habit.Frequency,
		"is_current": habit.Current,
		"updated_at": habit.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteForDate removes the habit's row for date, then archives the habit when
// history remains or purges it otherwise.
func (r *GormHabitRepository) DeleteForDate(ctx context.Context, id uint64, date string, at time.Time) (DeleteOutcome, error) {
	var outcome DeleteOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var habit models.Habit
		if err := tx.First(&habit, id).Error; err != nil {
			return err
		}

		if err := tx.Where("habit_id = ? AND date = ?", id, date).Delete(&models.HabitCompletion{}).Error; err != nil {
			return fmt.Errorf("delete completion: %w", err)
		}

		var remaining int64
		if err := tx.Model(&models.HabitCompletion{}).Where("habit_id = ?", id).Count(&remaining).Error; err != nil {
			return fmt.Errorf("count completions: %w", err)
		}

		if remaining > 0 {
			err := tx.Model(&models.Habit{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
				"is_current": false,
				"updated_at": at,
			}).Error
			if err != nil {
				return fmt.Errorf("archive habit: %w", err)
			}
			outcome = HabitArchived
			return nil
		}

		if err := tx.Delete(&models.Habit{}, id).Error; err != nil {
			return fmt.Errorf("purge habit: %w", err)
		}
		outcome = HabitPurged
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}
