package server

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	affiliatedomain "github.com/steadfastapp/steadfast/internal/affiliate/domain"
	authdomain "github.com/steadfastapp/steadfast/internal/auth/domain"
	blockruledomain "github.com/steadfastapp/steadfast/internal/blockrule/domain"
	compliancedomain "github.com/steadfastapp/steadfast/internal/compliance/domain"
	giftcodedomain "github.com/steadfastapp/steadfast/internal/giftcode/domain"
	paymentdomain "github.com/steadfastapp/steadfast/internal/payment/domain"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrSubscriptionRequired = errors.New("Active subscription required")
	ErrNotFound             = errors.New("not_found")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrRateLimited          = errors.New("Too many requests")
	ErrInternal             = errors.New("internal_error")
	ErrServiceUnavailable   = errors.New("Service temporarily unavailable")
)

// ErrorHandlingMiddleware renders the last unwritten gin error as the JSON
// error envelope. Handlers push domain errors via AbortWithError and never
// write error bodies themselves. Server-side failures (5xx) are logged here
// with the operation and the acting user before the generic body goes out.
func ErrorHandlingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			fields := []zap.Field{
				zap.String("operation", c.Request.Method+" "+c.FullPath()),
				zap.Error(lastErr.Err),
			}
			if user := currentUser(c); user != nil {
				fields = append(fields, zap.Int64("user_id", int64(user.ID)))
			}
			log.Error("request failed", fields...)
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, giftcodedomain.ErrAdminRequired):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrSubscriptionRequired):
		return http.StatusForbidden, errorPayload{
			Type:    "subscription_required",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case isInvalidStateError(err):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_state",
			Message: err.Error(),
		}
	case errors.Is(err, authdomain.ErrUserExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: err.Error(),
		}
	case isUnavailableError(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: ErrServiceUnavailable.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, compliancedomain.ErrInvalidViolationType),
		errors.Is(err, affiliatedomain.ErrInvalidAmount),
		errors.Is(err, affiliatedomain.ErrMissingBankDetails),
		errors.Is(err, giftcodedomain.ErrInvalidDuration),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrUnknownEventType):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrUserNotFound),
		errors.Is(err, affiliatedomain.ErrCodeNotFound),
		errors.Is(err, giftcodedomain.ErrGiftCodeNotFound),
		errors.Is(err, giftcodedomain.ErrCodeNotRedeemable),
		errors.Is(err, blockruledomain.ErrRuleNotFound),
		errors.Is(err, paymentdomain.ErrUnknownCustomer),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// isUnavailableError matches storage and downstream outages: the connection
// is gone or the call timed out, not that the data is bad.
func isUnavailableError(err error) bool {
	if errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gorm.ErrInvalidDB) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isInvalidStateError(err error) bool {
	switch {
	case errors.Is(err, affiliatedomain.ErrBelowMinimum),
		errors.Is(err, affiliatedomain.ErrInsufficientBalance),
		errors.Is(err, giftcodedomain.ErrCodeNotDeletable):
		return true
	default:
		return false
	}
}
