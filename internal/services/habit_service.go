package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/habit-tracker-api/internal/cache"
	"github.com/yukikurage/habit-tracker-api/internal/models"
	"github.com/yukikurage/habit-tracker-api/internal/repository"
	"github.com/yukikurage/habit-tracker-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HabitService handles habit lifecycle.
type HabitService struct {
	habitRepo repository.HabitRepository
	userRepo  repository.UserRepository
	cache     cache.Cache
	clock     utils.Clock
	log       *zap.Logger
}

// NewHabitService creates a new HabitService.
func NewHabitService(repos *repository.Repositories, c cache.Cache, clock utils.Clock, log *zap.Logger) *HabitService {
	return &HabitService{
		habitRepo: repos.Habits,
		userRepo:  repos.Users,
		cache:     c,
		clock:     clock,
		log:       log,
	}
}

// CreateHabitInput represents input for creating a habit
type CreateHabitInput struct {
	Name      string
	Frequency string
	UserID    uint64
}

// UpdateHabitInput represents input for updating a habit
type UpdateHabitInput struct {
	Name      *string
	Frequency *string
}

// DeleteResult describes what DeleteHabit did.
type DeleteResult struct {
	// Habit is the archived habit; nil when it was purged.
	Habit  *models.Habit
	Purged bool
}

// ListHabits returns the user's active habits.
func (s *HabitService) ListHabits(ctx context.Context, userID uint64) ([]models.Habit, error) {
	habits, err := s.habitRepo.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, storageError("list habits", err)
	}
	return habits, nil
}

// CreateHabit creates a habit and today's status=false completion row.
func (s *HabitService) CreateHabit(ctx context.Context, input CreateHabitInput) (*models.Habit, error) {
	name := strings.TrimSpace(input.Name)
	frequency := strings.TrimSpace(input.Frequency)
	if name == "" || frequency == "" || input.UserID == 0 {
		return nil, fmt.Errorf("%w: Name, frequency, and userId are required", ErrMissingFields)
	}

	if _, err := s.userRepo.FindByID(ctx, input.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError("find user", err)
	}

	now := s.clock()
	at := utils.Timestamp(now)
	habit := &models.Habit{
		Name:      name,
		Frequency: frequency,
		UserID:    input.UserID,
		Current:   true,
		CreatedAt: at,
		UpdatedAt: at,
	}
	completion := &models.HabitCompletion{
		Date:      utils.FormatDate(now),
		Status:    false,
		Timestamp: at,
	}

	if err := s.habitRepo.CreateWithCompletion(ctx, habit, completion); err != nil {
		return nil, storageError("create habit", err)
	}

	s.log.Info("habit_created", zap.Uint64("habit_id", habit.ID), zap.Uint64("user_id", habit.UserID))
	return habit, nil
}

// GetHabit retrieves a habit by ID.
func (s *HabitService) GetHabit(ctx context.Context, id uint64) (*models.Habit, error) {
	habit, err := s.habitRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, storageError("find habit", err)
	}
	return habit, nil
}

// UpdateHabit renames a habit or changes its frequency.
func (s *HabitService) UpdateHabit(ctx context.Context, id uint64, input UpdateHabitInput) (*models.Habit, error) {
	habit, err := s.GetHabit(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrMissingFields)
		}
		habit.Name = name
	}
	if input.Frequency != nil {
		frequency := strings.TrimSpace(*input.Frequency)
		if frequency == "" {
			return nil, fmt.Errorf("%w: frequency cannot be empty", ErrMissingFields)
		}
		habit.Frequency = frequency
	}
	habit.UpdatedAt = utils.Timestamp(s.clock())

	if err := s.habitRepo.Update(ctx, habit); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, storageError("update habit", err)
	}

	s.log.Info("habit_updated", zap.Uint64("habit_id", habit.ID))
	return habit, nil
}

// DeleteHabit removes today's row for the habit, then archives it when it has
// history or deletes it outright when it has none.
func (s *HabitService) DeleteHabit(ctx context.Context, id uint64) (*DeleteResult, error) {
	now := s.clock()
	outcome, err := s.habitRepo.DeleteForDate(ctx, id, utils.FormatDate(now), utils.Timestamp(now))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, storageError("delete habit", err)
	}

	if err := s.cache.DeletePattern(ctx, cache.StreakPattern(id)); err != nil {
		s.log.Warn("streak_cache_invalidate_failed", zap.Uint64("habit_id", id), zap.Error(err))
	}

	if outcome == repository.HabitPurged {
		s.log.Info("habit_purged", zap.Uint64("habit_id", id))
		return &DeleteResult{Purged: true}, nil
	}

	habit, err := s.GetHabit(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("habit_archived", zap.Uint64("habit_id", id))
	return &DeleteResult{Habit: habit}, nil
}
