package repository

import (
	"context"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/models"
)

// UserQuery is a keyset page over users: IDs above AfterID, at most Limit.
type UserQuery struct {
	AfterID uint64
	Limit   int
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// List retrieves users after q.AfterID ordered by ID, with the total count
	List(ctx context.Context, q UserQuery) ([]models.User, int64, error)

	// Update persists every profile column of user, including zero values
	Update(ctx context.Context, user *models.User) error
}

// HabitRepository defines the interface for habit data access
type HabitRepository interface {
	// CreateWithCompletion creates a habit and its first completion row atomically
	CreateWithCompletion(ctx context.Context, habit *models.Habit, completion *models.HabitCompletion) error

	// FindByID finds a habit by ID
	FindByID(ctx context.Context, id uint64) (*models.Habit, error)

	// ListByUser lists a user's habits; archived ones only when includeArchived is set
	ListByUser(ctx context.Context, userID uint64, includeArchived bool) ([]models.Habit, error)

	// ListCurrentIDs returns the IDs of active habits, optionally for a single user
	ListCurrentIDs(ctx context.Context, userID *uint64) ([]uint64, error)

	// Update writes name, frequency, current and updated_at exactly as given
	Update(ctx context.Context, habit *models.Habit) error

	// DeleteForDate removes the habit's row for date, then archives the habit
	// when history remains or purges it otherwise
	DeleteForDate(ctx context.Context, id uint64, date string, at time.Time) (DeleteOutcome, error)
}

// DeleteOutcome reports what DeleteForDate did with the habit row.
type DeleteOutcome int

const (
	// HabitArchived means the habit was kept with current=false.
	HabitArchived DeleteOutcome = iota + 1
	// HabitPurged means the habit had no history and was removed.
	HabitPurged
)

// CompletionRepository defines the interface for completion ledger data access
type CompletionRepository interface {
	// InsertMissing inserts a status=false row for every habit lacking one on date
	// and returns how many rows were created. Existing rows are left untouched.
	InsertMissing(ctx context.Context, date string, habitIDs []uint64, at time.Time) (int64, error)

	// Upsert sets status and timestamp on the (habitID, date) row, creating it if absent
	Upsert(ctx context.Context, habitID uint64, date string, status bool, at time.Time) (*models.HabitCompletion, error)

	// Find finds the row for (habitID, date)
	Find(ctx context.Context, habitID uint64, date string) (*models.HabitCompletion, error)

	// CountForDate returns the total and completed row counts for date
	CountForDate(ctx context.Context, date string, filter CompletionFilter) (total int64, completed int64, err error)

	// ListForHabit lists a habit's rows within [from, to], most recent first
	ListForHabit(ctx context.Context, habitID uint64, from, to string) ([]models.HabitCompletion, error)

	// ListForUser lists every row belonging to the user's habits
	ListForUser(ctx context.Context, userID uint64) ([]models.HabitCompletion, error)

	// CompletedHabitIDs lists habits with status=true on date
	CompletedHabitIDs(ctx context.Context, date string, filter CompletionFilter) ([]uint64, error)

	// HabitsForDay joins a user's habits with their rows for date
	HabitsForDay(ctx context.Context, userID uint64, date string, allowDeleted bool) ([]HabitDayRow, error)

	// MostRecentDate returns the greatest date with any row; ok is false when none exist
	MostRecentDate(ctx context.Context, filter CompletionFilter) (date string, ok bool, err error)
}

// CompletionFilter restricts ledger queries to a user and/or a habit subset.
type CompletionFilter struct {
	UserID   *uint64
	HabitIDs []uint64
}

// HabitDayRow is one habit joined with its completion row for a day.
type HabitDayRow struct {
	ID        uint64
	HabitID   uint64
	Name      string
	Frequency string
	Date      string
	Status    bool
	Timestamp time.Time
	Current   bool `gorm:"column:is_current"`
}

// Repositories bundles repositories sharing one store handle.
type Repositories struct {
	Users       UserRepository
	Habits      HabitRepository
	Completions CompletionRepository
}

// TxRunner runs fn with repositories bound to a single transaction.
// Returning an error from fn rolls the transaction back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(repos *Repositories) error) error
}
