package cli

import (
	"errors"
	"fmt"
	"strings"
)

type HabitCmd struct {
	List    HabitListCmd    `cmd:"" help:"List habits." default:"1"`
	Add     HabitAddCmd     `cmd:"" help:"Create a habit on the server."`
	Rename  HabitRenameCmd  `cmd:"" help:"Rename a habit."`
	Archive HabitArchiveCmd `cmd:"" help:"Stop tracking a habit, keeping its history."`
}

type HabitListCmd struct {
	All bool `help:"Include archived habits."`
}

func (c *HabitListCmd) Run(ctx *Context) error {
	store, err := ctx.Store()
	if err != nil {
		return err
	}
	habits, err := store.Habits(ctx.Ctx, c.All)
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		fmt.Fprintln(ctx.Out, "No habits found.")
		return nil
	}
	for _, h := range habits {
		var tags []string
		if !h.Current {
			tags = append(tags, "archived")
		}
		if !h.Synced {
			tags = append(tags, "unsynced")
		}
		suffix := ""
		if len(tags) > 0 {
			suffix = " [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Fprintf(ctx.Out, "%4d  %-24s %s%s\n", h.ID, h.Name, h.Frequency, suffix)
	}
	return nil
}

type HabitAddCmd struct {
	Name      string `arg:"" help:"Habit name."`
	Frequency string `default:"daily" help:"How often the habit is due."`
}

func (c *HabitAddCmd) Run(ctx *Context) error {
	if ctx.Offline {
		return errors.New("habits are created on the server, drop --offline")
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return errors.New("habit name must not be empty")
	}
	store, err := ctx.Store()
	if err != nil {
		return err
	}
	userID, err := store.UserID(ctx.Ctx)
	if err != nil {
		return err
	}
	client, err := ctx.Client()
	if err != nil {
		return err
	}
	habit, err := client.CreateHabit(ctx.Ctx, userID, name, c.Frequency)
	if err != nil {
		return fmt.Errorf("failed to create habit: %w", err)
	}
	fmt.Fprintf(ctx.Out, "Added habit %d: %s\n", habit.ID, habit.Name)

	r, err := ctx.Reconciler()
	if err != nil {
		return err
	}
	if _, err := r.Run(ctx.Ctx); err != nil {
		fmt.Fprintf(ctx.Out, "Pull failed, run 'habitsync sync': %v\n", err)
	}
	return ctx.SaveSession()
}

type HabitRenameCmd struct {
	ID   uint64 `arg:"" help:"Habit id."`
	Name string `arg:"" help:"New name."`
}

func (c *HabitRenameCmd) Run(ctx *Context) error {
	store, err := ctx.Store()
	if err != nil {
		return err
	}
	habit, err := store.RenameHabit(ctx.Ctx, c.ID, c.Name, ctx.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Renamed habit %d to %s\n", habit.ID, habit.Name)
	ctx.syncAfterEdit()
	return nil
}

type HabitArchiveCmd struct {
	ID uint64 `arg:"" help:"Habit id."`
}

func (c *HabitArchiveCmd) Run(ctx *Context) error {
	store, err := ctx.Store()
	if err != nil {
		return err
	}
	habit, err := store.ArchiveHabit(ctx.Ctx, c.ID, ctx.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Archived habit %d: %s\n", habit.ID, habit.Name)
	ctx.syncAfterEdit()
	return nil
}
