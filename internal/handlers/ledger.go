package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/habit-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/habit-tracker-api/internal/errors"
	"github.com/yukikurage/habit-tracker-api/internal/services"
	"go.uber.org/zap"
)

// LedgerHandler serves completion rows and the statistics derived from them.
type LedgerHandler struct {
	ledger *services.LedgerService
	log    *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger *services.LedgerService, log *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: ledger,
		log:    log,
	}
}

type dayRequest struct {
	Date string `json:"date" form:"date" binding:"omitempty,isodate"`
}

// Complete marks the habit complete on the given date (today by default).
func (h *LedgerHandler) Complete(c *gin.Context) {
	h.setStatus(c, true)
}

// Uncomplete marks the habit incomplete on the given date (today by default).
func (h *LedgerHandler) Uncomplete(c *gin.Context) {
	h.setStatus(c, false)
}

func (h *LedgerHandler) setStatus(c *gin.Context, status bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dayRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	row, err := h.ledger.SetStatus(c.Request.Context(), id, req.Date, status)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCompletionDTO(*row))
}

// HabitsForDay returns the user's habits joined with their rows for a date.
func (h *LedgerHandler) HabitsForDay(c *gin.Context) {
	var query struct {
		UserID       uint64 `form:"userId" binding:"required"`
		Date         string `form:"date" binding:"omitempty,isodate"`
		AllowDeleted bool   `form:"allowDeleted"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	rows, err := h.ledger.HabitsForDay(c.Request.Context(), query.UserID, query.Date, query.AllowDeleted)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToHabitDayRowDTOs(rows))
}

// InitializeCompletions creates missing status=false rows for active habits,
// either for one day or, with backfill, for every day since the latest row.
func (h *LedgerHandler) InitializeCompletions(c *gin.Context) {
	var req struct {
		Date     string  `json:"date" binding:"omitempty,isodate"`
		UserID   *uint64 `json:"userId"`
		Backfill bool    `json:"backfill"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	if req.Backfill {
		res, err := h.ledger.Backfill(c.Request.Context(), req.UserID)
		if err != nil {
			respondServiceError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, dto.InitializeResponse{From: res.From, To: res.To, Days: res.Days, Inserted: res.Inserted})
		return
	}

	date := req.Date
	if date == "" {
		date = h.ledger.Today()
	}
	inserted, err := h.ledger.InitializeActive(c.Request.Context(), date, req.UserID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.InitializeResponse{From: date, To: date, Days: 1, Inserted: inserted})
}

// MostRecentDate returns the latest date holding any completion row.
func (h *LedgerHandler) MostRecentDate(c *gin.Context) {
	var query struct {
		UserID *uint64 `form:"userId"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	date, ok, err := h.ledger.MostRecentDate(c.Request.Context(), services.Filter{UserID: query.UserID})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	var res dto.MostRecentDateResponse
	if ok {
		res.MaxDate = &date
	}
	c.JSON(http.StatusOK, res)
}

// HabitStreaks returns the longest and current streak of a habit.
func (h *LedgerHandler) HabitStreaks(c *gin.Context) {
	var query struct {
		UserID          uint64 `form:"userId" binding:"required"`
		HabitID         uint64 `form:"habitId" binding:"required"`
		StartsAfterDate string `form:"startsAfterDate" binding:"omitempty,isodate"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.ledger.Streak(c.Request.Context(), services.StreakQuery{
		UserID:  query.UserID,
		HabitID: query.HabitID,
		From:    query.StartsAfterDate,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.StreakResponse{
		HabitID:         res.HabitID,
		Streak:          res.Longest,
		CurrentStreak:   res.Current,
		StartsAfterDate: res.From,
		Through:         res.To,
	})
}

type statsQuery struct {
	UserID   *uint64 `form:"userId"`
	HabitIDs string  `form:"habitIds"`
}

func (q statsQuery) filter(c *gin.Context) (services.Filter, bool) {
	ids, err := parseIDList(q.HabitIDs)
	if err != nil {
		apierrors.InvalidFormat(c, "habitIds must be a comma-separated list of ids")
		return services.Filter{}, false
	}
	return services.Filter{UserID: q.UserID, HabitIDs: ids}, true
}

// CompletedHabits lists the ids of habits completed on a date.
func (h *LedgerHandler) CompletedHabits(c *gin.Context) {
	var query struct {
		statsQuery
		Date string `form:"date" binding:"omitempty,isodate"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}
	filter, ok := query.filter(c)
	if !ok {
		return
	}

	ids, err := h.ledger.CompletedHabitIDs(c.Request.Context(), query.Date, filter)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, ids)
}

// CompletionPercentage returns the share of completed rows on a date.
func (h *LedgerHandler) CompletionPercentage(c *gin.Context) {
	var query struct {
		statsQuery
		Date string `form:"date" binding:"omitempty,isodate"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}
	filter, ok := query.filter(c)
	if !ok {
		return
	}

	date := query.Date
	if date == "" {
		date = h.ledger.Today()
	}
	pct, err := h.ledger.CompletionPercentage(c.Request.Context(), date, filter)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.PercentageDTO{Date: date, Percentage: pct})
}

// CompletionPercentages returns one percentage per day of an inclusive range.
func (h *LedgerHandler) CompletionPercentages(c *gin.Context) {
	var query struct {
		statsQuery
		StartDate string `form:"startDate" binding:"required,isodate"`
		EndDate   string `form:"endDate" binding:"required,isodate"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}
	filter, ok := query.filter(c)
	if !ok {
		return
	}

	days, err := h.ledger.CompletionPercentages(c.Request.Context(), query.StartDate, query.EndDate, filter)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	out := make([]dto.PercentageDTO, 0, len(days))
	for _, d := range days {
		out = append(out, dto.PercentageDTO{Date: d.Date, Percentage: d.Percentage})
	}
	c.JSON(http.StatusOK, out)
}
