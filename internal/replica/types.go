package replica

import "time"

// User is the replicated profile of the logged-in user.
type User struct {
	ID           uint64
	Name         string
	Email        string
	SuccessLimit int
	FailureLimit int
	UpdatedAt    time.Time
}

// Habit is a replicated habit. UpdatedAt is its version.
type Habit struct {
	ID        uint64
	UserID    uint64
	Name      string
	Frequency string
	Current   bool
	CreatedAt time.Time
	UpdatedAt time.Time
	// BaseVersion is the server UpdatedAt this row was last reconciled with.
	// Nil for rows the server has never confirmed.
	BaseVersion *time.Time
	Synced      bool
}

// Completion is a replicated completion row. Timestamp is its version.
type Completion struct {
	HabitID     uint64
	Date        string
	Status      bool
	Timestamp   time.Time
	BaseVersion *time.Time
	Synced      bool
}

// CompletionKey identifies a completion row.
type CompletionKey struct {
	HabitID uint64
	Date    string
}

// Key returns the row's identity.
func (c Completion) Key() CompletionKey {
	return CompletionKey{HabitID: c.HabitID, Date: c.Date}
}

// Snapshot is the server state the replica merges in on pull.
type Snapshot struct {
	User        *User
	Habits      []Habit
	Completions []Completion
	ServerTime  time.Time
}

// Changes is a set of rows, either pending push or accepted from the server.
type Changes struct {
	Habits      []Habit
	Completions []Completion
}

// Empty reports whether there is nothing in the set.
func (c Changes) Empty() bool {
	return len(c.Habits) == 0 && len(c.Completions) == 0
}

// Len counts rows in the set.
func (c Changes) Len() int {
	return len(c.Habits) + len(c.Completions)
}

// Conflict is a row changed both locally and on the server since the last
// sync.
type Conflict struct {
	Table string
	Key   string
	// Winner is "local" or "server".
	Winner        string
	LocalVersion  time.Time
	ServerVersion time.Time
}

// MergeReport summarizes one pull.
type MergeReport struct {
	Inserted  int
	Updated   int
	Kept      int
	Removed   int
	Conflicts []Conflict
}

// DayRow is a habit joined with its completion row for one date.
type DayRow struct {
	HabitID   uint64
	Name      string
	Frequency string
	Current   bool
	Date      string
	Status    bool
	Timestamp time.Time
	Synced    bool
}
