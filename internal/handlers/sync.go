package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/habit-tracker-api/internal/dto"
	apierrors "github.com/yukikurage/habit-tracker-api/internal/errors"
	"github.com/yukikurage/habit-tracker-api/internal/middleware"
	"github.com/yukikurage/habit-tracker-api/internal/services"
	"go.uber.org/zap"
)

// SyncHandler serves replica snapshots and change pushes for the session user.
type SyncHandler struct {
	syncService *services.SyncService
	log         *zap.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncService *services.SyncService, log *zap.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		log:         log,
	}
}

// Snapshot returns everything the session user's replica mirrors.
func (h *SyncHandler) Snapshot(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	snap, err := h.syncService.Snapshot(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToSnapshotResponse(snap))
}

// Push applies a batch of replica changes. Rows older than the server copy
// come back as conflicts.
func (h *SyncHandler) Push(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var req dto.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.syncService.Push(c.Request.Context(), userID, req.ToPushInput())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPushResponse(res))
}
