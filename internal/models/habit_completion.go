package models

import (
	"time"
)

// HabitCompletion is the status of one habit on one calendar day.
// At most one row exists per (habit_id, date).
type HabitCompletion struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	HabitID   uint64    `gorm:"not null;uniqueIndex:idx_habit_completions_habit_date" json:"habitId"`
	Date      string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_habit_completions_habit_date;index" json:"date"`
	Status    bool      `gorm:"not null" json:"status"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}
