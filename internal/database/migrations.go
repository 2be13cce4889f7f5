package database

import (
	"fmt"

	"github.com/yukikurage/habit-tracker-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddIndexes adds the composite indexes the ledger queries rely on.
func AddIndexes(db *gorm.DB, log *zap.Logger) error {
	indexes := []struct {
		model   interface{}
		table   string
		name    string
		columns string
	}{
		// Habits listed per user, filtered by current
		{&models.Habit{}, "habits", "idx_habits_user_current", "user_id, is_current"},
		// Completions counted per day and status
		{&models.HabitCompletion{}, "habit_completions", "idx_habit_completions_date_status", "date, status"},
	}

	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.model, idx.name) {
			log.Debug("index_exists", zap.String("index", idx.name))
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.Info("index_created", zap.String("index", idx.name), zap.String("table", idx.table))
	}

	return nil
}
