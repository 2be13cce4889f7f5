package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/apiclient"
	"github.com/yukikurage/habit-tracker-api/internal/replica"
	"github.com/yukikurage/habit-tracker-api/internal/syncer"
)

type InitCmd struct{}

func (cmd *InitCmd) Run(ctx *Context) error {
	store, err := replica.Open(ctx.Ctx, ctx.DBPath())
	if err != nil {
		return err
	}
	ctx.store = store

	server := ctx.ServerURL
	if server == "" {
		if server, err = store.Meta(ctx.Ctx, replica.MetaServerURL); err != nil {
			return err
		}
	}
	if server == "" {
		server = DefaultServerURL
	}
	if _, err := apiclient.New(server); err != nil {
		return err
	}
	if err := store.SetMeta(ctx.Ctx, replica.MetaServerURL, server); err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "Initialized replica at %s (server %s)\n", store.Path(), server)
	return nil
}

type LoginCmd struct {
	Email    string `required:"" help:"Account email."`
	Password string `required:"" env:"HABITSYNC_PASSWORD" help:"Account password."`
}

func (cmd *LoginCmd) Run(ctx *Context) error {
	store, err := ctx.Store()
	if err != nil {
		return err
	}
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	user, err := client.Login(ctx.Ctx, cmd.Email, cmd.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	// A different account must not inherit the previous user's rows.
	if previous, err := store.UserID(ctx.Ctx); err == nil && previous != user.ID {
		if err := store.Reset(ctx.Ctx); err != nil {
			return err
		}
	}
	if err := store.SetMeta(ctx.Ctx, replica.MetaUserID, strconv.FormatUint(user.ID, 10)); err != nil {
		return err
	}
	if err := ctx.SaveSession(); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Logged in as %s <%s>\n", user.Name, user.Email)

	r, err := ctx.Reconciler()
	if err != nil {
		return err
	}
	report, err := r.Run(ctx.Ctx)
	if err != nil {
		fmt.Fprintf(ctx.Out, "Initial sync failed: %v\n", err)
		return nil
	}
	printReport(ctx, report)
	return nil
}

type LogoutCmd struct {
	Force bool `help:"Discard unsynced local changes."`
}

func (cmd *LogoutCmd) Run(ctx *Context) error {
	store, err := ctx.Store()
	if err != nil {
		return err
	}
	pending, err := store.Pending(ctx.Ctx)
	if err != nil {
		return err
	}
	if !pending.Empty() && !cmd.Force {
		return fmt.Errorf("%d unsynced changes, run 'habitsync sync' first or pass --force", pending.Len())
	}

	if !ctx.Offline {
		client, err := ctx.Client()
		if err != nil {
			return err
		}
		if err := client.Logout(ctx.Ctx); err != nil {
			ctx.Log.Warn("logout_request_failed", "err", err)
		}
	}

	if err := store.DeleteMeta(ctx.Ctx, replica.MetaSessionCookie, replica.MetaUserID, replica.MetaLastSync); err != nil {
		return err
	}
	if err := store.Reset(ctx.Ctx); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, "Logged out.")
	return nil
}

type SyncCmd struct{}

func (cmd *SyncCmd) Run(ctx *Context) error {
	if ctx.Offline {
		return errors.New("sync needs the server, drop --offline")
	}
	r, err := ctx.Reconciler()
	if err != nil {
		return err
	}
	report, err := r.Run(ctx.Ctx)
	if err != nil {
		if errors.Is(err, apiclient.ErrNoSession) || apiclient.IsUnauthorized(err) {
			return fmt.Errorf("%w, run 'habitsync login'", err)
		}
		return err
	}
	if err := ctx.SaveSession(); err != nil {
		return err
	}
	printReport(ctx, report)
	return nil
}

func printReport(ctx *Context, report *syncer.Report) {
	fmt.Fprintf(ctx.Out, "Synced: %d new, %d updated, %d removed from server; %d pushed, %d accepted\n",
		report.Merge.Inserted, report.Merge.Updated, report.Merge.Removed, report.Pushed, report.Accepted)
	for _, c := range report.Merge.Conflicts {
		fmt.Fprintf(ctx.Out, "  conflict %s %s: %s copy kept\n", c.Table, c.Key, c.Winner)
	}
	if report.PushConflicts > 0 {
		fmt.Fprintf(ctx.Out, "  %d changes refused by the server, server copies kept\n", report.PushConflicts)
	}
}

type WatchCmd struct {
	Interval time.Duration `default:"30s" help:"How often to probe the server."`
	For      time.Duration `help:"Stop after this long, zero runs until interrupted."`
}

func (cmd *WatchCmd) Run(ctx *Context) error {
	if cmd.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	r, err := ctx.Reconciler()
	if err != nil {
		return err
	}

	watchCtx, stop := signal.NotifyContext(ctx.Ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cmd.For > 0 {
		var cancel context.CancelFunc
		watchCtx, cancel = context.WithTimeout(watchCtx, cmd.For)
		defer cancel()
	}

	fmt.Fprintf(ctx.Out, "Watching %s every %s, Ctrl-C to stop\n", mustClientURL(ctx), cmd.Interval)
	r.Watch(watchCtx, cmd.Interval)

	report, lastErr := r.LastReport()
	switch {
	case lastErr != nil:
		fmt.Fprintf(ctx.Out, "Stopped, last sync failed: %v\n", lastErr)
	case report != nil:
		fmt.Fprintln(ctx.Out, "Stopped after sync.")
		printReport(ctx, report)
	default:
		fmt.Fprintln(ctx.Out, "Stopped, nothing synced.")
	}
	return ctx.SaveSession()
}

func mustClientURL(ctx *Context) string {
	client, err := ctx.Client()
	if err != nil {
		return "?"
	}
	return client.BaseURL()
}

type StatusCmd struct{}

func (cmd *StatusCmd) Run(ctx *Context) error {
	store, err := ctx.Store()
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "Replica:  %s\n", store.Path())
	fmt.Fprintf(ctx.Out, "Server:   %s\n", mustClientURL(ctx))

	if user, err := store.User(ctx.Ctx); err == nil {
		fmt.Fprintf(ctx.Out, "User:     %s <%s>\n", user.Name, user.Email)
	} else if errors.Is(err, replica.ErrNotLoggedIn) {
		fmt.Fprintln(ctx.Out, "User:     not logged in")
	} else {
		return err
	}

	last, err := store.LastSync(ctx.Ctx)
	if err != nil {
		return err
	}
	if last.IsZero() {
		fmt.Fprintln(ctx.Out, "Synced:   never")
	} else {
		fmt.Fprintf(ctx.Out, "Synced:   %s\n", last.Local().Format(time.DateTime))
	}

	pending, err := store.Pending(ctx.Ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Pending:  %d habits, %d completions\n", len(pending.Habits), len(pending.Completions))

	if ctx.Offline {
		return nil
	}
	client, err := ctx.Client()
	if err != nil {
		return err
	}
	probeCtx, cancel := context.WithTimeout(ctx.Ctx, 5*time.Second)
	defer cancel()
	if err := client.Health(probeCtx); err != nil {
		fmt.Fprintln(ctx.Out, "Server is offline")
		return nil
	}
	fmt.Fprintln(ctx.Out, "Server is online")

	_, err = client.Me(probeCtx)
	switch {
	case err == nil:
		fmt.Fprintln(ctx.Out, "Session:  active")
	case errors.Is(err, apiclient.ErrNoSession):
		fmt.Fprintln(ctx.Out, "Session:  none, run 'habitsync login'")
	case apiclient.IsUnauthorized(err):
		fmt.Fprintln(ctx.Out, "Session:  expired, run 'habitsync login'")
	default:
		return fmt.Errorf("failed to check session: %w", err)
	}
	return nil
}
