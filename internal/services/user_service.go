package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/habit-tracker-api/internal/constants"
	"github.com/yukikurage/habit-tracker-api/internal/models"
	"github.com/yukikurage/habit-tracker-api/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService handles profile listing and updates.
type UserService struct {
	userRepo repository.UserRepository
	log      *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, log *zap.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		log:      log,
	}
}

// UpdateUserInput lists the profile fields a user may change. Nil means unchanged.
type UpdateUserInput struct {
	Name                 *string
	Email                *string
	Password             *string
	ThemePreference      *string
	Language             *string
	DataProcessingAgreed *bool
	NotificationsEnabled *bool
	NotificationTime     *string
	SuccessLimit         *int
	FailureLimit         *int
}

// ListUsers returns up to limit users with an ID above afterID, and the
// total number of users.
func (s *UserService) ListUsers(ctx context.Context, afterID uint64, limit int) ([]models.User, int64, error) {
	users, total, err := s.userRepo.List(ctx, repository.UserQuery{AfterID: afterID, Limit: limit})
	if err != nil {
		return nil, 0, storageError("list users", err)
	}
	return users, total, nil
}

// UpdateUser applies input to the user. Limits must stay within 0..100 and
// failureLimit must remain below successLimit after the update.
func (s *UserService) UpdateUser(ctx context.Context, id uint64, input UpdateUserInput) (*models.User, error) {
	if err := validateLimit("successLimit", input.SuccessLimit); err != nil {
		return nil, err
	}
	if err := validateLimit("failureLimit", input.FailureLimit); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError("find user", err)
	}

	var updated []string
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrMissingFields)
		}
		user.Name = name
		updated = append(updated, "name")
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", ErrMissingFields)
		}
		if email != user.Email {
			if existing, err := s.userRepo.FindByEmail(ctx, email); err == nil && existing.ID != user.ID {
				return nil, ErrEmailTaken
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, storageError("find user by email", err)
			}
		}
		user.Email = email
		updated = append(updated, "email")
	}
	if input.Password != nil {
		if len(*input.Password) < constants.MinPasswordLength {
			return nil, ErrPasswordTooShort
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, ErrFailedToHashPassword
		}
		user.PasswordHash = string(hashed)
		updated = append(updated, "password")
	}
	if input.ThemePreference != nil {
		user.ThemePreference = *input.ThemePreference
		updated = append(updated, "themePreference")
	}
	if input.Language != nil {
		user.Language = *input.Language
		updated = append(updated, "language")
	}
	if input.DataProcessingAgreed != nil {
		user.DataProcessingAgreed = *input.DataProcessingAgreed
		updated = append(updated, "dataProcessingAgreed")
	}
	if input.NotificationsEnabled != nil {
		user.NotificationsEnabled = *input.NotificationsEnabled
		updated = append(updated, "notificationsEnabled")
	}
	if input.NotificationTime != nil {
		if *input.NotificationTime != "" {
			if _, err := time.Parse("15:04", *input.NotificationTime); err != nil {
				return nil, ErrInvalidNotification
			}
		}
		user.NotificationTime = *input.NotificationTime
		updated = append(updated, "notificationTime")
	}
	if input.SuccessLimit != nil {
		user.SuccessLimit = *input.SuccessLimit
		updated = append(updated, "successLimit")
	}
	if input.FailureLimit != nil {
		user.FailureLimit = *input.FailureLimit
		updated = append(updated, "failureLimit")
	}

	if user.FailureLimit >= user.SuccessLimit {
		return nil, ErrLimitOrder
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, storageError("update user", err)
	}

	s.log.Info("user_updated", zap.Uint64("user_id", user.ID), zap.Strings("fields", updated))
	return user, nil
}

func validateLimit(field string, value *int) error {
	if value == nil {
		return nil
	}
	if *value < constants.MinLimit || *value > constants.MaxLimit {
		return fmt.Errorf("%w: %s must be a number between %d and %d", ErrInvalidLimit, field, constants.MinLimit, constants.MaxLimit)
	}
	return nil
}
