package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/habit-tracker-api/internal/dto"
	"github.com/yukikurage/habit-tracker-api/internal/services"
	"go.uber.org/zap"
)

// HabitHandler serves habit CRUD.
type HabitHandler struct {
	habitService *services.HabitService
	log          *zap.Logger
}

// NewHabitHandler creates a new HabitHandler.
func NewHabitHandler(habitService *services.HabitService, log *zap.Logger) *HabitHandler {
	return &HabitHandler{
		habitService: habitService,
		log:          log,
	}
}

// ListHabits returns the active habits of ?userId=.
func (h *HabitHandler) ListHabits(c *gin.Context) {
	var query struct {
		UserID uint64 `form:"userId" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	habits, err := h.habitService.ListHabits(c.Request.Context(), query.UserID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToHabitDTOs(habits))
}

// CreateHabit creates a habit along with today's completion row.
func (h *HabitHandler) CreateHabit(c *gin.Context) {
	type CreateHabitRequest struct {
		Name      string `json:"name"`
		Frequency string `json:"frequency"`
		UserID    uint64 `json:"userId"`
	}

	var req CreateHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	habit, err := h.habitService.CreateHabit(c.Request.Context(), services.CreateHabitInput{
		Name:      req.Name,
		Frequency: req.Frequency,
		UserID:    req.UserID,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToHabitDTO(*habit))
}

// GetHabit returns a specific habit by ID
func (h *HabitHandler) GetHabit(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	habit, err := h.habitService.GetHabit(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToHabitDTO(*habit))
}

// UpdateHabit renames a habit or changes its frequency.
func (h *HabitHandler) UpdateHabit(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	type UpdateHabitRequest struct {
		Name      *string `json:"name"`
		Frequency *string `json:"frequency"`
	}

	var req UpdateHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	habit, err := h.habitService.UpdateHabit(c.Request.Context(), id, services.UpdateHabitInput{
		Name:      req.Name,
		Frequency: req.Frequency,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToHabitDTO(*habit))
}

// DeleteHabit archives a habit with history (200 with the habit) or removes
// one without history (204).
func (h *HabitHandler) DeleteHabit(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	res, err := h.habitService.DeleteHabit(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	if res.Purged {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, dto.ToHabitDTO(*res.Habit))
}
