package repository

import (
	"context"

	"gorm.io/gorm"
)

// NewRepositories creates gorm-backed repositories over db.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(db),
		Habits:      NewHabitRepository(db),
		Completions: NewCompletionRepository(db),
	}
}

// GormTxRunner is a GORM implementation of TxRunner
type GormTxRunner struct {
	db *gorm.DB
}

// NewTxRunner creates a new TxRunner
func NewTxRunner(db *gorm.DB) TxRunner {
	return &GormTxRunner{db: db}
}

// InTx runs fn inside a transaction.
func (r *GormTxRunner) InTx(ctx context.Context, fn func(repos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
