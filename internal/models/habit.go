package models

import (
	"time"
)

// Habit is a recurring task. Current=false marks a soft-deleted habit whose
// completion history is kept.
type Habit struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Frequency string    `gorm:"type:varchar(64);not null" json:"frequency"`
	UserID    uint64    `gorm:"not null;index" json:"userId"`
	Current   bool      `gorm:"column:is_current;not null" json:"current"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`

	// Relations
	Completions []HabitCompletion `gorm:"foreignKey:HabitID;constraint:OnDelete:CASCADE" json:"-"`
}
