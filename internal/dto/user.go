package dto

import (
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/models"
)

// UserDTO represents a user in API responses. The password hash never leaves the server.
type UserDTO struct {
	ID                   uint64    `json:"id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	ThemePreference      string    `json:"themePreference"`
	Language             string    `json:"language"`
	DataProcessingAgreed bool      `json:"dataProcessingAgreed"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	NotificationTime     string    `json:"notificationTime"`
	SuccessLimit         int       `json:"successLimit"`
	FailureLimit         int       `json:"failureLimit"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:                   user.ID,
		Name:                 user.Name,
		Email:                user.Email,
		ThemePreference:      user.ThemePreference,
		Language:             user.Language,
		DataProcessingAgreed: user.DataProcessingAgreed,
		NotificationsEnabled: user.NotificationsEnabled,
		NotificationTime:     user.NotificationTime,
		SuccessLimit:         user.SuccessLimit,
		FailureLimit:         user.FailureLimit,
		CreatedAt:            user.CreatedAt,
		UpdatedAt:            user.UpdatedAt,
	}
}

// ToUserDTOs converts a slice of users.
func ToUserDTOs(users []models.User) []UserDTO {
	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserDTO(u))
	}
	return out
}
