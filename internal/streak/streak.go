// Package streak computes completion streaks.
//
// A day without a completion row counts as not completed: gaps break a streak
// exactly like an explicit false.
package streak

import (
	"github.com/yukikurage/habit-tracker-api/internal/utils"
)

// Day is one habit's status on one calendar date.
type Day struct {
	Date   string
	Status bool
}

// Result holds both streak figures for one habit over a window.
type Result struct {
	Longest int
	// Current is the run that ends on the window's last day.
	Current int
}

// Compute scans the window [from, to] descending from to. days may be in any
// order and may omit dates; omitted dates and dates outside the window are
// treated as not completed and ignored respectively.
func Compute(days []Day, from, to string) (Result, error) {
	start, err := utils.ParseDate(from)
	if err != nil {
		return Result{}, err
	}
	end, err := utils.ParseDate(to)
	if err != nil {
		return Result{}, err
	}

	done := make(map[string]bool, len(days))
	earliest := ""
	for _, d := range days {
		if !d.Status || d.Date < from || d.Date > to {
			continue
		}
		done[d.Date] = true
		if earliest == "" || d.Date < earliest {
			earliest = d.Date
		}
	}
	if earliest == "" {
		return Result{}, nil
	}
	// Nothing before the earliest completed day can extend a run.
	start, _ = utils.ParseDate(earliest)

	var result Result
	run := 0
	leading := true
	for day := end; !day.Before(start); day = day.AddDate(0, 0, -1) {
		if done[utils.FormatDate(day)] {
			run++
			if run > result.Longest {
				result.Longest = run
			}
			if leading {
				result.Current = run
			}
			continue
		}
		run = 0
		leading = false
	}
	return result, nil
}
