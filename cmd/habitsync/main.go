package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/yukikurage/habit-tracker-api/internal/cli"
	"github.com/yukikurage/habit-tracker-api/internal/clilog"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
)

var CLI struct {
	DataDir string        `help:"Directory holding the local replica and logs." type:"path" default:"~/.habitsync" env:"HABITSYNC_DATA_DIR"`
	Server  string        `help:"Server address, overrides the one saved by init." env:"HABITSYNC_SERVER"`
	Debug   bool          `help:"Log to stderr as well as the log file."`
	Offline bool          `help:"Never contact the server."`
	Timeout time.Duration `help:"Per-request server timeout." default:"15s" env:"HABITSYNC_TIMEOUT"`

	Init       cli.InitCmd       `cmd:"" help:"Create the local replica."`
	Login      cli.LoginCmd      `cmd:"" help:"Log in and pull your data."`
	Logout     cli.LogoutCmd     `cmd:"" help:"Log out and clear the local replica."`
	Sync       cli.SyncCmd       `cmd:"" help:"Reconcile the replica with the server now."`
	Watch      cli.WatchCmd      `cmd:"" help:"Sync whenever the server becomes reachable."`
	Status     cli.StatusCmd     `cmd:"" help:"Show replica and connectivity status."`
	Today      cli.TodayCmd      `cmd:"" help:"Show the habits for a day." default:"1"`
	Complete   cli.CompleteCmd   `cmd:"" help:"Mark a habit done."`
	Uncomplete cli.UncompleteCmd `cmd:"" help:"Mark a habit not done."`
	Streak     cli.StreakCmd     `cmd:"" help:"Show a habit's streaks."`
	Habit      cli.HabitCmd      `cmd:"" help:"Manage habits."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("habitsync"),
		kong.Description("Offline-first habit tracker client"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
	)

	logger, err := clilog.New(clilog.Config{Debug: CLI.Debug, DataDir: CLI.DataDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	appCtx := &cli.Context{
		Ctx:       context.Background(),
		DataDir:   CLI.DataDir,
		ServerURL: CLI.Server,
		Offline:   CLI.Offline,
		Timeout:   CLI.Timeout,
		Out:       os.Stdout,
		Log:       logger.Logger,
		Clock:     utils.SystemClock,
	}

	err = ctx.Run(appCtx)
	if closeErr := appCtx.Close(); closeErr != nil {
		logger.Warn("close_replica_failed", "err", closeErr)
	}
	_ = logger.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
