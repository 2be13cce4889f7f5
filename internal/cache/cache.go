package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Cache stores JSON-encoded values for derived statistics.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// DeletePattern removes every key matching a glob pattern.
	DeletePattern(ctx context.Context, pattern string) error
	Close() error
}

// StreakKey identifies a cached streak result.
func StreakKey(habitID uint64, from, to string) string {
	return fmt.Sprintf("streak:%d:%s:%s", habitID, from, to)
}

// StreakPattern matches every cached streak of a habit.
func StreakPattern(habitID uint64) string {
	return fmt.Sprintf("streak:%d:*", habitID)
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string, interface{}) error { return ErrMiss }

func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (Noop) DeletePattern(context.Context, string) error { return nil }

func (Noop) Close() error { return nil }
