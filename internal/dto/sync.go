package dto

import (
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/services"
)

// SnapshotResponse is everything a replica mirrors for its user.
type SnapshotResponse struct {
	User        UserDTO         `json:"user"`
	Habits      []HabitDTO      `json:"habits"`
	Completions []CompletionDTO `json:"completions"`
	ServerTime  time.Time       `json:"serverTime"`
}

// HabitChangeDTO is a habit edited on a replica. UpdatedAt is its version.
type HabitChangeDTO struct {
	ID        uint64    `json:"id" binding:"required"`
	Name      string    `json:"name" binding:"required"`
	Frequency string    `json:"frequency" binding:"required"`
	Current   bool      `json:"current"`
	UpdatedAt time.Time `json:"updatedAt" binding:"required"`
}

// CompletionChangeDTO is a completion row edited on a replica. Timestamp is its version.
type CompletionChangeDTO struct {
	HabitID   uint64    `json:"habitId" binding:"required"`
	Date      string    `json:"date" binding:"required,isodate"`
	Status    bool      `json:"status"`
	Timestamp time.Time `json:"timestamp" binding:"required"`
}

// PushRequest is the body of POST /sync/push.
type PushRequest struct {
	Habits      []HabitChangeDTO      `json:"habits" binding:"dive"`
	Completions []CompletionChangeDTO `json:"completions" binding:"dive"`
}

// HabitConflictDTO is a rejected habit change. Server is null for habits the
// caller does not own.
type HabitConflictDTO struct {
	ID     uint64    `json:"id"`
	Server *HabitDTO `json:"server"`
}

// CompletionConflictDTO is a rejected completion change.
type CompletionConflictDTO struct {
	HabitID uint64         `json:"habitId"`
	Date    string         `json:"date"`
	Server  *CompletionDTO `json:"server"`
}

// ConflictsDTO groups rejected rows by table.
type ConflictsDTO struct {
	Habits      []HabitConflictDTO      `json:"habits"`
	Completions []CompletionConflictDTO `json:"completions"`
}

// PushResponse is the body returned by POST /sync/push.
type PushResponse struct {
	Accepted  int          `json:"accepted"`
	Conflicts ConflictsDTO `json:"conflicts"`
}

// ToSnapshotResponse converts a service snapshot.
func ToSnapshotResponse(s *services.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		User:        ToUserDTO(*s.User),
		Habits:      ToHabitDTOs(s.Habits),
		Completions: ToCompletionDTOs(s.Completions),
		ServerTime:  s.ServerTime,
	}
}

// ToPushInput converts a push request into service input.
func (r PushRequest) ToPushInput() services.PushInput {
	input := services.PushInput{
		Habits:      make([]services.HabitChange, 0, len(r.Habits)),
		Completions: make([]services.CompletionChange, 0, len(r.Completions)),
	}
	for _, h := range r.Habits {
		input.Habits = append(input.Habits, services.HabitChange{
			ID:        h.ID,
			Name:      h.Name,
			Frequency: h.Frequency,
			Current:   h.Current,
			UpdatedAt: h.UpdatedAt,
		})
	}
	for _, c := range r.Completions {
		input.Completions = append(input.Completions, services.CompletionChange{
			HabitID:   c.HabitID,
			Date:      c.Date,
			Status:    c.Status,
			Timestamp: c.Timestamp,
		})
	}
	return input
}

// ToPushResponse converts a service push result.
func ToPushResponse(res *services.PushResult) PushResponse {
	out := PushResponse{
		Accepted: res.Accepted,
		Conflicts: ConflictsDTO{
			Habits:      make([]HabitConflictDTO, 0, len(res.HabitConflicts)),
			Completions: make([]CompletionConflictDTO, 0, len(res.CompletionConflicts)),
		},
	}
	for _, c := range res.HabitConflicts {
		conflict := HabitConflictDTO{ID: c.ID}
		if c.Server != nil {
			h := ToHabitDTO(*c.Server)
			conflict.Server = &h
		}
		out.Conflicts.Habits = append(out.Conflicts.Habits, conflict)
	}
	for _, c := range res.CompletionConflicts {
		conflict := CompletionConflictDTO{HabitID: c.HabitID, Date: c.Date}
		if c.Server != nil {
			row := ToCompletionDTO(*c.Server)
			conflict.Server = &row
		}
		out.Conflicts.Completions = append(out.Conflicts.Completions, conflict)
	}
	return out
}
