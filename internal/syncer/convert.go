package syncer

import (
	"github.com/yukikurage/habit-tracker-api/internal/dto"
	"github.com/yukikurage/habit-tracker-api/internal/replica"
)

func toSnapshot(s *dto.SnapshotResponse) replica.Snapshot {
	out := replica.Snapshot{
		User: &replica.User{
			ID:           s.User.ID,
			Name:         s.User.Name,
			Email:        s.User.Email,
			SuccessLimit: s.User.SuccessLimit,
			FailureLimit: s.User.FailureLimit,
			UpdatedAt:    s.User.UpdatedAt,
		},
		Habits:      make([]replica.Habit, 0, len(s.Habits)),
		Completions: make([]replica.Completion, 0, len(s.Completions)),
		ServerTime:  s.ServerTime,
	}
	for _, h := range s.Habits {
		out.Habits = append(out.Habits, toHabit(h))
	}
	for _, c := range s.Completions {
		out.Completions = append(out.Completions, toCompletion(c))
	}
	return out
}

func toHabit(h dto.HabitDTO) replica.Habit {
	return replica.Habit{
		ID:        h.ID,
		UserID:    h.UserID,
		Name:      h.Name,
		Frequency: h.Frequency,
		Current:   h.Current,
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
	}
}

func toCompletion(c dto.CompletionDTO) replica.Completion {
	return replica.Completion{
		HabitID:   c.HabitID,
		Date:      c.Date,
		Status:    c.Status,
		Timestamp: c.Timestamp,
	}
}

func toPushRequest(changes replica.Changes) dto.PushRequest {
	req := dto.PushRequest{
		Habits:      make([]dto.HabitChangeDTO, 0, len(changes.Habits)),
		Completions: make([]dto.CompletionChangeDTO, 0, len(changes.Completions)),
	}
	for _, h := range changes.Habits {
		req.Habits = append(req.Habits, dto.HabitChangeDTO{
			ID:        h.ID,
			Name:      h.Name,
			Frequency: h.Frequency,
			Current:   h.Current,
			UpdatedAt: h.UpdatedAt,
		})
	}
	for _, c := range changes.Completions {
		req.Completions = append(req.Completions, dto.CompletionChangeDTO{
			HabitID:   c.HabitID,
			Date:      c.Date,
			Status:    c.Status,
			Timestamp: c.Timestamp,
		})
	}
	return req
}

// splitPushResult sorts pushed rows into those the server took, server
// copies to adopt, and rows to drop because the server refused them outright.
func splitPushResult(pushed replica.Changes, res *dto.PushResponse) (accepted, adopt replica.Changes, dropHabits []uint64, dropCompletions []replica.CompletionKey) {
	rejectedHabits := make(map[uint64]bool, len(res.Conflicts.Habits))
	for _, c := range res.Conflicts.Habits {
		rejectedHabits[c.ID] = true
		if c.Server == nil {
			dropHabits = append(dropHabits, c.ID)
			continue
		}
		adopt.Habits = append(adopt.Habits, toHabit(*c.Server))
	}

	rejectedRows := make(map[replica.CompletionKey]bool, len(res.Conflicts.Completions))
	for _, c := range res.Conflicts.Completions {
		key := replica.CompletionKey{HabitID: c.HabitID, Date: c.Date}
		rejectedRows[key] = true
		if c.Server == nil {
			dropCompletions = append(dropCompletions, key)
			continue
		}
		adopt.Completions = append(adopt.Completions, toCompletion(*c.Server))
	}

	for _, h := range pushed.Habits {
		if !rejectedHabits[h.ID] {
			accepted.Habits = append(accepted.Habits, h)
		}
	}
	for _, c := range pushed.Completions {
		if !rejectedRows[c.Key()] {
			accepted.Completions = append(accepted.Completions, c)
		}
	}
	return accepted, adopt, dropHabits, dropCompletions
}
