package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/habit-tracker-api/internal/errors"
	"go.uber.org/zap"
)

// Recovery turns a panicking handler into a 500 response.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic_recovered",
					zap.Any("panic", r),
					zap.String("request_id", GetRequestID(c)),
				)
				apierrors.InternalError(c, log, fmt.Errorf("panic: %v", r))
			}
		}()
		c.Next()
	}
}
