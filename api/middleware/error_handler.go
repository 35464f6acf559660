// api/middleware/error_handler.go
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-apigen/api/models"
	"github.com/Annany2002/nebula-apigen/internal/auth"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/logger"
	"github.com/Annany2002/nebula-apigen/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// CredentialsDetail is the only body sent for authentication failures.
const CredentialsDetail = "Could not validate credentials"

// ErrorHandler creates a Gin middleware for centralized error handling.
// Handlers attach errors with c.Error and return; the last one decides the
// response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		customLog.Debugf("[ErrorHandler] Detected error: %v | Type: %T", err, err)

		statusCode, detail := Status(err)
		if statusCode == http.StatusUnauthorized {
			c.Header("WWW-Authenticate", "Bearer")
		}

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(statusCode, models.ErrorResponse{Detail: detail})
		} else {
			customLog.Warnf("[ErrorHandler] Response already written before handling error: %v", err)
		}
	}
}

// Status maps an error to its HTTP status and the detail shown to clients.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrRecordNotFound),
		errors.Is(err, storage.ErrTableNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, storage.ErrConstraintViolation):
		return http.StatusConflict, err.Error()

	case errors.Is(err, storage.ErrColumnNotFound),
		errors.Is(err, storage.ErrMissingColumn),
		errors.Is(err, storage.ErrTypeMismatch),
		errors.Is(err, storage.ErrInvalidFilterValue),
		errors.Is(err, storage.ErrInvalidKey),
		errors.Is(err, storage.ErrKeyImmutable),
		errors.Is(err, core.ErrBadRequest):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenClaimsInvalid),
		errors.Is(err, auth.ErrUnexpectedSigningMethod):
		return http.StatusUnauthorized, CredentialsDetail

	default:
		customLog.Errorf("Unhandled error type: %T, Error: %v", err, err)
		return http.StatusInternalServerError, "An unexpected internal server error occurred."
	}
}
