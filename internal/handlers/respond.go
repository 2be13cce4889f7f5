package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/habit-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/habit-tracker-api/internal/errors"
	"github.com/yukikurage/habit-tracker-api/internal/services"
	"go.uber.org/zap"
)

// respondServiceError maps service errors to HTTP responses. Anything not
// recognised is an internal error and is logged with its cause.
func respondServiceError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrMissingFields):
		apierrors.MissingField(c, err.Error())
	case errors.Is(err, services.ErrInvalidDate):
		apierrors.InvalidFormat(c, err.Error())
	case errors.Is(err, services.ErrInvalidLimit),
		errors.Is(err, services.ErrLimitOrder):
		apierrors.RespondWithError(c, http.StatusBadRequest, apierrors.NewAPIError(apierrors.ErrCodeInvalidLimit, err.Error()))
	case errors.Is(err, services.ErrRangeTooLarge),
		errors.Is(err, services.ErrInvalidNotification):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrPasswordTooShort):
		apierrors.BadRequest(c, fmt.Sprintf("Password must be at least %d characters", constants.MinPasswordLength))
	case errors.Is(err, services.ErrEmailTaken):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.InvalidCredentials(c, err.Error())
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrHabitNotFound):
		apierrors.NotFound(c, err.Error())
	default:
		apierrors.InternalError(c, log, err)
	}
}
