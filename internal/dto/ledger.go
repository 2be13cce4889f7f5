package dto

// StreakResponse is the body of GET /habit-streaks.
type StreakResponse struct {
	HabitID         uint64 `json:"habitId"`
	Streak          int    `json:"streak"`
	CurrentStreak   int    `json:"currentStreak"`
	StartsAfterDate string `json:"startsAfterDate"`
	Through         string `json:"through"`
}

// PercentageDTO is the completion percentage of one day.
type PercentageDTO struct {
	Date       string  `json:"date"`
	Percentage float64 `json:"percentage"`
}

// MostRecentDateResponse carries the latest ledger date; null when the ledger is empty.
type MostRecentDateResponse struct {
	MaxDate *string `json:"maxDate"`
}

// InitializeResponse reports an initialization sweep.
type InitializeResponse struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Days     int    `json:"days"`
	Inserted int64  `json:"inserted"`
}
