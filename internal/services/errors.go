package services

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFields        = errors.New("missing required fields")
	ErrInvalidDate          = errors.New("date must be formatted as YYYY-MM-DD")
	ErrRangeTooLarge        = errors.New("date range is too large")
	ErrUserNotFound         = errors.New("user not found")
	ErrHabitNotFound        = errors.New("habit not found")
	ErrEmailTaken           = errors.New("Email already exists")
	ErrInvalidCredentials   = errors.New("Invalid credentials")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrInvalidLimit         = errors.New("limit must be a number between 0 and 100")
	ErrLimitOrder           = errors.New("failureLimit must be lower than successLimit")
	ErrInvalidNotification  = errors.New("notificationTime must be formatted as HH:MM")
	ErrFailedToHashPassword = errors.New("failed to hash password")
)

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
