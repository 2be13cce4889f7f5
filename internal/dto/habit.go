package dto

import (
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/models"
	"github.com/yukikurage/habit-tracker-api/internal/repository"
)

// HabitDTO represents a habit in API responses
type HabitDTO struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Frequency string    `json:"frequency"`
	UserID    uint64    `json:"userId"`
	Current   bool      `json:"current"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CompletionDTO represents a completion row in API responses
type CompletionDTO struct {
	ID        uint64    `json:"id"`
	HabitID   uint64    `json:"habitId"`
	Date      string    `json:"date"`
	Status    bool      `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HabitDayRowDTO is a habit joined with its completion row for one day.
// ID is the completion row's ID.
type HabitDayRowDTO struct {
	ID        uint64    `json:"id"`
	HabitID   uint64    `json:"habitId"`
	Name      string    `json:"name"`
	Frequency string    `json:"frequency"`
	Date      string    `json:"date"`
	Status    bool      `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Current   bool      `json:"current"`
}

// ToHabitDTO converts a Habit model to HabitDTO
func ToHabitDTO(habit models.Habit) HabitDTO {
	return HabitDTO{
		ID:        habit.ID,
		Name:      habit.Name,
		Frequency: habit.Frequency,
		UserID:    habit.UserID,
		Current:   habit.Current,
		CreatedAt: habit.CreatedAt,
		UpdatedAt: habit.UpdatedAt,
	}
}

// ToHabitDTOs converts a slice of habits.
func ToHabitDTOs(habits []models.Habit) []HabitDTO {
	out := make([]HabitDTO, 0, len(habits))
	for _, h := range habits {
		out = append(out, ToHabitDTO(h))
	}
	return out
}

// ToCompletionDTO converts a HabitCompletion model to CompletionDTO
func ToCompletionDTO(row models.HabitCompletion) CompletionDTO {
	return CompletionDTO{
		ID:        row.ID,
		HabitID:   row.HabitID,
		Date:      row.Date,
		Status:    row.Status,
		Timestamp: row.Timestamp,
	}
}

// ToCompletionDTOs converts a slice of completion rows.
func ToCompletionDTOs(rows []models.HabitCompletion) []CompletionDTO {
	out := make([]CompletionDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, ToCompletionDTO(r))
	}
	return out
}

// ToHabitDayRowDTOs converts joined habit-for-day rows.
func ToHabitDayRowDTOs(rows []repository.HabitDayRow) []HabitDayRowDTO {
	out := make([]HabitDayRowDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, HabitDayRowDTO{
			ID:        r.ID,
			HabitID:   r.HabitID,
			Name:      r.Name,
			Frequency: r.Frequency,
			Date:      r.Date,
			Status:    r.Status,
			Timestamp: r.Timestamp,
			Current:   r.Current,
		})
	}
	return out
}
