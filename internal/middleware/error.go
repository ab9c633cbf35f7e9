package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "geumjjoki/internal/errors"
	"geumjjoki/internal/logger"
)

// ErrorHandler renders the last error attached to the Gin context as
// {"error":{"code","message"}}. Binding errors become INVALID_INPUT; any
// error that is not an AppError is logged and reported as INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		requestID := c.GetString(requestIDKey)

		var appErr *apperrors.AppError
		switch {
		case errors.As(last.Err, &appErr):
			if appErr.Internal != nil {
				logger.Get().Errorw("app error",
					"request_id", requestID,
					"code", appErr.Code,
					"internal", appErr.Internal.Error(),
					"path", c.Request.URL.Path,
				)
			}
		case last.IsType(gin.ErrorTypeBind):
			appErr = apperrors.WithMessage(apperrors.ErrInvalidInput, last.Error())
		default:
			logger.Get().Errorw("unexpected error",
				"request_id", requestID,
				"error", last.Error(),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			appErr = apperrors.ErrInternalServer
		}

		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}
