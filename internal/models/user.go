package models

import (
	"time"
)

type User struct {
	ID                   uint64    `gorm:"primarykey" json:"id"`
	Name                 string    `gorm:"type:varchar(255);not null" json:"name"`
	Email                string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash         string    `gorm:"type:varchar(255);not null" json:"-"`
	ThemePreference      string    `gorm:"type:varchar(32);not null" json:"themePreference"`
	Language             string    `gorm:"type:varchar(16);not null" json:"language"`
	DataProcessingAgreed bool      `gorm:"not null" json:"dataProcessingAgreed"`
	NotificationsEnabled bool      `gorm:"not null" json:"notificationsEnabled"`
	NotificationTime     string    `gorm:"type:varchar(5)" json:"notificationTime"`
	SuccessLimit         int       `gorm:"not null" json:"successLimit"`
	FailureLimit         int       `gorm:"not null" json:"failureLimit"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`

	// Relations
	Habits []Habit `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
