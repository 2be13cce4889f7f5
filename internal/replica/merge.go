package replica

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type action int

const (
	actionInsert action = iota
	actionTake
	actionKeep
	// actionRebase keeps the local row but records the incoming version as its base.
	actionRebase
)

// resolve decides what a pull does with one row. local is nil when the
// replica does not hold the row.
func resolve(local *version, incoming time.Time) (action, *Conflict) {
	if local == nil {
		return actionInsert, nil
	}
	if local.synced {
		if incoming.After(local.current) {
			return actionTake, nil
		}
		return actionRebase, nil
	}
	if local.base != nil && incoming.Equal(*local.base) {
		return actionKeep, nil
	}

	conflict := &Conflict{LocalVersion: local.current, ServerVersion: incoming}
	if local.current.After(incoming) {
		conflict.Winner = "local"
		return actionRebase, conflict
	}
	conflict.Winner = "server"
	return actionTake, conflict
}

type version struct {
	current time.Time
	base    *time.Time
	synced  bool
}

// ApplySnapshot merges server state into the replica in one transaction.
// Unsynced local edits survive unless the server changed the same row since
// it was last seen and the server's copy is at least as new.
func (s *Store) ApplySnapshot(ctx context.Context, snap Snapshot) (*MergeReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	report := &MergeReport{Conflicts: []Conflict{}}

	if snap.User != nil {
		if err := upsertUser(ctx, tx, *snap.User); err != nil {
			return nil, err
		}
	}

	if err := mergeHabits(ctx, tx, snap.Habits, report); err != nil {
		return nil, err
	}
	if err := mergeCompletions(ctx, tx, snap.Completions, report); err != nil {
		return nil, err
	}

	if !snap.ServerTime.IsZero() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			MetaLastSync, formatTime(snap.ServerTime)); err != nil {
			return nil, fmt.Errorf("failed to record sync time: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit merge: %w", err)
	}
	return report, nil
}

func mergeHabits(ctx context.Context, tx *sql.Tx, incoming []Habit, report *MergeReport) error {
	local, err := queryHabits(ctx, tx, `1 = 1`)
	if err != nil {
		return err
	}
	byID := make(map[uint64]Habit, len(local))
	for _, h := range local {
		byID[h.ID] = h
	}

	seen := make(map[uint64]bool, len(incoming))
	for _, in := range incoming {
		seen[in.ID] = true

		var v *version
		if h, ok := byID[in.ID]; ok {
			v = &version{current: h.UpdatedAt, base: h.BaseVersion, synced: h.Synced}
		}
		act, conflict := resolve(v, in.UpdatedAt)
		if conflict != nil {
			conflict.Table = "habits"
			conflict.Key = strconv.FormatUint(in.ID, 10)
			report.Conflicts = append(report.Conflicts, *conflict)
		}

		switch act {
		case actionInsert, actionTake:
			if err := upsertHabit(ctx, tx, clean(in)); err != nil {
				return err
			}
			if act == actionInsert {
				report.Inserted++
			} else {
				report.Updated++
			}
		case actionRebase:
			if _, err := tx.ExecContext(ctx,
				`UPDATE habits SET base_version = ? WHERE id = ?`,
				formatTime(in.UpdatedAt), in.ID); err != nil {
				return fmt.Errorf("failed to rebase habit %d: %w", in.ID, err)
			}
			report.Kept++
		case actionKeep:
			report.Kept++
		}
	}

	// Habits the server no longer has were purged there.
	for id := range byID {
		if seen[id] {
			continue
		}
		if err := deleteHabit(ctx, tx, id); err != nil {
			return err
		}
		report.Removed++
	}
	return nil
}

func mergeCompletions(ctx context.Context, tx *sql.Tx, incoming []Completion, report *MergeReport) error {
	local, err := queryCompletions(ctx, tx, `1 = 1`)
	if err != nil {
		return err
	}
	byKey := make(map[CompletionKey]Completion, len(local))
	for _, c := range local {
		byKey[c.Key()] = c
	}

	habits, err := habitIDs(ctx, tx)
	if err != nil {
		return err
	}

	seen := make(map[CompletionKey]bool, len(incoming))
	for _, in := range incoming {
		if !habits[in.HabitID] {
			continue
		}
		seen[in.Key()] = true

		var v *version
		c, ok := byKey[in.Key()]
		if ok {
			v = &version{current: c.Timestamp, base: c.BaseVersion, synced: c.Synced}
		}
		act, conflict := resolve(v, in.Timestamp)
		if conflict != nil && quietCompletion(c, in) {
			conflict = nil
		}
		if conflict != nil {
			conflict.Table = "habit_completions"
			conflict.Key = fmt.Sprintf("%d/%s", in.HabitID, in.Date)
			report.Conflicts = append(report.Conflicts, *conflict)
		}

		switch act {
		case actionInsert, actionTake:
			if err := upsertCompletion(ctx, tx, cleanCompletion(in)); err != nil {
				return err
			}
			if act == actionInsert {
				report.Inserted++
			} else {
				report.Updated++
			}
		case actionRebase:
			if _, err := tx.ExecContext(ctx,
				`UPDATE habit_completions SET base_version = ? WHERE habit_id = ? AND date = ?`,
				formatTime(in.Timestamp), in.HabitID, in.Date); err != nil {
				return fmt.Errorf("failed to rebase completion: %w", err)
			}
			report.Kept++
		case actionKeep:
			report.Kept++
		}
	}

	// A clean row the server once confirmed and no longer has was deleted
	// there. Rows the server never saw are left for the next push.
	for key, c := range byKey {
		if seen[key] || !c.Synced || c.BaseVersion == nil || !habits[key.HabitID] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM habit_completions WHERE habit_id = ? AND date = ?`,
			key.HabitID, key.Date); err != nil {
			return fmt.Errorf("failed to remove completion: %w", err)
		}
		report.Removed++
	}
	return nil
}

// quietCompletion reports whether a diverging completion is not worth
// reporting: the local row was never seen by the server and the server holds
// either the untouched day row or the same status.
func quietCompletion(local, incoming Completion) bool {
	if local.BaseVersion != nil {
		return false
	}
	return !incoming.Status || incoming.Status == local.Status
}

// Pending returns every row edited locally and not yet accepted by the server.
func (s *Store) Pending(ctx context.Context) (Changes, error) {
	habits, err := queryHabits(ctx, s.db, `synced = 0`)
	if err != nil {
		return Changes{}, err
	}
	completions, err := queryCompletions(ctx, s.db, `synced = 0`)
	if err != nil {
		return Changes{}, err
	}
	return Changes{Habits: habits, Completions: completions}, nil
}

// MarkSynced flags pushed rows as clean. A row edited again after it was
// collected keeps its dirty flag.
func (s *Store) MarkSynced(ctx context.Context, pushed Changes) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, h := range pushed.Habits {
		if _, err := tx.ExecContext(ctx,
			`UPDATE habits SET synced = 1, base_version = updated_at
			 WHERE id = ? AND updated_at = ?`,
			h.ID, formatTime(h.UpdatedAt)); err != nil {
			return fmt.Errorf("failed to mark habit %d synced: %w", h.ID, err)
		}
	}
	for _, c := range pushed.Completions {
		if _, err := tx.ExecContext(ctx,
			`UPDATE habit_completions SET synced = 1, base_version = timestamp
			 WHERE habit_id = ? AND date = ? AND timestamp = ?`,
			c.HabitID, c.Date, formatTime(c.Timestamp)); err != nil {
			return fmt.Errorf("failed to mark completion synced: %w", err)
		}
	}
	return tx.Commit()
}

// AcceptServer overwrites local rows with server copies, clean.
func (s *Store) AcceptServer(ctx context.Context, rows Changes) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, h := range rows.Habits {
		if err := upsertHabit(ctx, tx, clean(h)); err != nil {
			return err
		}
	}
	habits, err := habitIDs(ctx, tx)
	if err != nil {
		return err
	}
	for _, c := range rows.Completions {
		if !habits[c.HabitID] {
			continue
		}
		if err := upsertCompletion(ctx, tx, cleanCompletion(c)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Discard drops local rows the server refused outright.
func (s *Store) Discard(ctx context.Context, habits []uint64, completions []CompletionKey) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range habits {
		if err := deleteHabit(ctx, tx, id); err != nil {
			return err
		}
	}
	for _, key := range completions {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM habit_completions WHERE habit_id = ? AND date = ?`,
			key.HabitID, key.Date); err != nil {
			return fmt.Errorf("failed to discard completion: %w", err)
		}
	}
	return tx.Commit()
}

func clean(h Habit) Habit {
	base := h.UpdatedAt
	h.BaseVersion = &base
	h.Synced = true
	return h
}

func cleanCompletion(c Completion) Completion {
	base := c.Timestamp
	c.BaseVersion = &base
	c.Synced = true
	return c
}

func upsertUser(ctx context.Context, q querier, u User) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (id, name, email, success_limit, failure_limit, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			success_limit = excluded.success_limit,
			failure_limit = excluded.failure_limit,
			updated_at = excluded.updated_at`,
		u.ID, u.Name, u.Email, u.SuccessLimit, u.FailureLimit, formatTime(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save user %d: %w", u.ID, err)
	}
	return nil
}

func upsertHabit(ctx context.Context, q querier, h Habit) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO habits (id, user_id, name, frequency, is_current, created_at, updated_at, base_version, synced)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			frequency = excluded.frequency,
			is_current = excluded.is_current,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			base_version = excluded.base_version,
			synced = excluded.synced`,
		h.ID, h.UserID, h.Name, h.Frequency, boolInt(h.Current),
		formatTime(h.CreatedAt), formatTime(h.UpdatedAt), nullTime(h.BaseVersion), boolInt(h.Synced))
	if err != nil {
		return fmt.Errorf("failed to save habit %d: %w", h.ID, err)
	}
	return nil
}

func upsertCompletion(ctx context.Context, q querier, c Completion) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO habit_completions (habit_id, date, status, timestamp, base_version, synced)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(habit_id, date) DO UPDATE SET
			status = excluded.status,
			timestamp = excluded.timestamp,
			base_version = excluded.base_version,
			synced = excluded.synced`,
		c.HabitID, c.Date, boolInt(c.Status), formatTime(c.Timestamp), nullTime(c.BaseVersion), boolInt(c.Synced))
	if err != nil {
		return fmt.Errorf("failed to save completion %d/%s: %w", c.HabitID, c.Date, err)
	}
	return nil
}

func deleteHabit(ctx context.Context, q querier, id uint64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM habit_completions WHERE habit_id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove completions of habit %d: %w", id, err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove habit %d: %w", id, err)
	}
	return nil
}

func habitIDs(ctx context.Context, q querier) (map[uint64]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM habits`)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	ids := map[uint64]bool{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func queryHabits(ctx context.Context, q querier, where string, args ...any) ([]Habit, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, name, frequency, is_current, created_at, updated_at, base_version, synced
		 FROM habits WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	habits := []Habit{}
	for rows.Next() {
		var (
			h                  Habit
			current, synced    int
			createdAt, updated string
			base               sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Frequency, &current,
			&createdAt, &updated, &base, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		h.Current = current == 1
		h.Synced = synced == 1
		if h.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if h.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		if h.BaseVersion, err = scanNullTime(base); err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func queryCompletions(ctx context.Context, q querier, where string, args ...any) ([]Completion, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT habit_id, date, status, timestamp, base_version, synced
		 FROM habit_completions WHERE `+where+` ORDER BY date, habit_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	out := []Completion{}
	for rows.Next() {
		var (
			c              Completion
			status, synced int
			ts             string
			base           sql.NullString
		)
		if err := rows.Scan(&c.HabitID, &c.Date, &status, &ts, &base, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		c.Status = status == 1
		c.Synced = synced == 1
		if c.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if c.BaseVersion, err = scanNullTime(base); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
