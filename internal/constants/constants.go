package constants

import "time"

// Session and context keys
const (
	ContextKeyUserID    = "user_id"
	ContextKeyRequestID = "request_id"
	SessionCookieName   = "habit_session"
	HeaderRequestID     = "X-Request-ID"
)

// User listing
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Users
const (
	MinPasswordLength   = 6
	DefaultSuccessLimit = 80
	DefaultFailureLimit = 50
	MinLimit            = 0
	MaxLimit            = 100
)

// Dates
const (
	DateLayout = "2006-01-02"
	// EpochDate is the default lower bound for streak scans.
	EpochDate = "1970-01-01"
	// MaxRangeDays caps range queries and backfills.
	MaxRangeDays = 366
)

// Cache
const (
	StreakCacheTTL = 10 * time.Minute
)
