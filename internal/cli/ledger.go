package cli

import (
	"fmt"

	"github.com/yukikurage/habit-tracker-api/internal/utils"
)

type TodayCmd struct {
	Date string `help:"Day to show (YYYY-MM-DD), defaults to today."`
}

func (c *TodayCmd) Run(ctx *Context) error {
	date, err := ctx.DateOrToday(c.Date)
	if err != nil {
		return err
	}
	store, err := ctx.Store()
	if err != nil {
		return err
	}
	// Today also fills any days missed since the replica was last used.
	if date == ctx.Today() {
		_, err = store.Backfill(ctx.Ctx, date, ctx.Now())
	} else {
		_, err = store.InitializeDay(ctx.Ctx, date, ctx.Now())
	}
	if err != nil {
		return err
	}
	rows, err := store.HabitsForDay(ctx.Ctx, date, false)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "Habits for %s\n", date)
	if len(rows) == 0 {
		fmt.Fprintln(ctx.Out, "No habits found.")
		return nil
	}
	for _, r := range rows {
		mark := " "
		if r.Status {
			mark = "x"
		}
		pending := ""
		if !r.Synced {
			pending = " *"
		}
		fmt.Fprintf(ctx.Out, "[%s] %4d  %s%s\n", mark, r.HabitID, r.Name, pending)
	}

	pct, err := store.CompletionPercentage(ctx.Ctx, date)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%.0f%% complete\n", pct)
	return nil
}

type CompleteCmd struct {
	HabitID uint64 `arg:"" help:"Habit id."`
	Date    string `help:"Day to mark (YYYY-MM-DD), defaults to today."`
}

func (c *CompleteCmd) Run(ctx *Context) error {
	return setStatus(ctx, c.HabitID, c.Date, true)
}

type UncompleteCmd struct {
	HabitID uint64 `arg:"" help:"Habit id."`
	Date    string `help:"Day to unmark (YYYY-MM-DD), defaults to today."`
}

func (c *UncompleteCmd) Run(ctx *Context) error {
	return setStatus(ctx, c.HabitID, c.Date, false)
}

func setStatus(ctx *Context, habitID uint64, rawDate string, status bool) error {
	date, err := ctx.DateOrToday(rawDate)
	if err != nil {
		return err
	}
	store, err := ctx.Store()
	if err != nil {
		return err
	}
	row, err := store.SetStatus(ctx.Ctx, habitID, date, status, ctx.Now())
	if err != nil {
		return err
	}
	verb := "Completed"
	if !row.Status {
		verb = "Uncompleted"
	}
	fmt.Fprintf(ctx.Out, "%s habit %d on %s\n", verb, row.HabitID, row.Date)
	ctx.syncAfterEdit()
	return nil
}

type StreakCmd struct {
	HabitID uint64 `arg:"" help:"Habit id."`
	Since   string `help:"Only count days on or after this date (YYYY-MM-DD)."`
}

func (c *StreakCmd) Run(ctx *Context) error {
	if c.Since != "" && !utils.IsDate(c.Since) {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", c.Since)
	}
	store, err := ctx.Store()
	if err != nil {
		return err
	}
	habit, err := store.Habit(ctx.Ctx, c.HabitID)
	if err != nil {
		return err
	}
	res, err := store.LongestStreak(ctx.Ctx, c.HabitID, c.Since, ctx.Today())
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%s: longest streak %d days, current streak %d days\n", habit.Name, res.Longest, res.Current)
	return nil
}
