// Package cli holds the habitsync commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yukikurage/habit-tracker-api/internal/apiclient"
	"github.com/yukikurage/habit-tracker-api/internal/replica"
	"github.com/yukikurage/habit-tracker-api/internal/syncer"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
)

// DefaultServerURL is used by init when no server is given.
const DefaultServerURL = "http://localhost:8080"

// syncTimeout bounds the best-effort sync after a local edit.
const syncTimeout = 10 * time.Second

// Context is shared by every command.
type Context struct {
	Ctx     context.Context
	DataDir string
	// ServerURL overrides the address saved by init when set.
	ServerURL string
	// Offline skips every server call.
	Offline bool
	// Timeout bounds each server request; zero keeps the client default.
	Timeout time.Duration
	Out     io.Writer
	Log     *log.Logger
	Clock   utils.Clock

	store  *replica.Store
	client *apiclient.Client
}

// DBPath is the replica file location.
func (c *Context) DBPath() string {
	return filepath.Join(c.DataDir, "replica.db")
}

// Store loads the replica, once.
func (c *Context) Store() (*replica.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	store, err := replica.Load(c.Ctx, c.DBPath())
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// Client builds the API client from the saved server address and session.
func (c *Context) Client() (*apiclient.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	store, err := c.Store()
	if err != nil {
		return nil, err
	}
	server := c.ServerURL
	if server == "" {
		if server, err = store.Meta(c.Ctx, replica.MetaServerURL); err != nil {
			return nil, err
		}
	}
	if server == "" {
		server = DefaultServerURL
	}
	session, err := store.Meta(c.Ctx, replica.MetaSessionCookie)
	if err != nil {
		return nil, err
	}
	opts := []apiclient.Option{apiclient.WithSession(session)}
	if c.Timeout > 0 {
		opts = append(opts, apiclient.WithHTTPClient(&http.Client{Timeout: c.Timeout}))
	}
	client, err := apiclient.New(server, opts...)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Reconciler wires the replica to the server.
func (c *Context) Reconciler() (*syncer.Reconciler, error) {
	store, err := c.Store()
	if err != nil {
		return nil, err
	}
	client, err := c.Client()
	if err != nil {
		return nil, err
	}
	return syncer.New(client, store, c.Log, c.Clock), nil
}

// SaveSession persists the client's current session cookie.
func (c *Context) SaveSession() error {
	if c.client == nil || c.store == nil {
		return nil
	}
	if session := c.client.Session(); session != "" {
		return c.store.SetMeta(c.Ctx, replica.MetaSessionCookie, session)
	}
	return c.store.DeleteMeta(c.Ctx, replica.MetaSessionCookie)
}

// Now returns the current time.
func (c *Context) Now() time.Time {
	return c.Clock()
}

// Today returns the local calendar date.
func (c *Context) Today() string {
	return utils.Today(c.Clock)
}

// DateOrToday validates an optional --date flag.
func (c *Context) DateOrToday(date string) (string, error) {
	if date == "" {
		return c.Today(), nil
	}
	if !utils.IsDate(date) {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return date, nil
}

// Close releases the replica.
func (c *Context) Close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

// syncAfterEdit pushes a local edit right away when the server answers.
// Failure is not an error: the edit stays queued in the replica.
func (c *Context) syncAfterEdit() {
	if c.Offline {
		fmt.Fprintln(c.Out, "Saved locally.")
		return
	}
	r, err := c.Reconciler()
	if err != nil {
		c.Log.Warn("sync_unavailable", "err", err)
		fmt.Fprintln(c.Out, "Saved locally.")
		return
	}
	ctx, cancel := context.WithTimeout(c.Ctx, syncTimeout)
	defer cancel()
	if _, err := r.Run(ctx); err != nil {
		if errors.Is(err, apiclient.ErrNoSession) || apiclient.IsUnauthorized(err) {
			fmt.Fprintln(c.Out, "Saved locally. Log in to sync.")
			return
		}
		fmt.Fprintln(c.Out, "Saved locally; will sync when the server is reachable.")
		return
	}
	if err := c.SaveSession(); err != nil {
		c.Log.Warn("save_session_failed", "err", err)
	}
	fmt.Fprintln(c.Out, "Saved and synced.")
}
