package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	affiliatedomain "github.com/kadkita/kadkita/internal/affiliate/domain"
	billplzdomain "github.com/kadkita/kadkita/internal/billplz/domain"
	coupondomain "github.com/kadkita/kadkita/internal/coupon/domain"
	invitationdomain "github.com/kadkita/kadkita/internal/invitation/domain"
	orderdomain "github.com/kadkita/kadkita/internal/order/domain"
	plandomain "github.com/kadkita/kadkita/internal/plan/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
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
	case errors.Is(err, coupondomain.ErrUsageLimitReached):
		// Distinct from not-found so the UI can message it differently.
		return http.StatusBadRequest, errorPayload{
			Type:    "usage_limit_reached",
			Message: "coupon usage limit reached",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, billplzdomain.ErrMissingSignature),
		errors.Is(err, billplzdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, invitationdomain.ErrNotOwner):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, affiliatedomain.ErrAlreadyApplied),
		errors.Is(err, affiliatedomain.ErrNotPending),
		errors.Is(err, coupondomain.ErrDuplicateCode):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, billplzdomain.ErrGatewayRejected):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_error",
			Message: "payment gateway error",
		}
	case errors.Is(err, billplzdomain.ErrNotConfigured):
		// Never leak which credential is missing.
		return http.StatusInternalServerError, errorPayload{
			Type:    "configuration_error",
			Message: "payment configuration error",
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
		errors.Is(err, orderdomain.ErrInvalidRequest),
		errors.Is(err, plandomain.ErrUnknownPlan),
		errors.Is(err, coupondomain.ErrInvalidCoupon),
		errors.Is(err, affiliatedomain.ErrInvalidAffiliate):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, coupondomain.ErrCouponNotFound),
		errors.Is(err, coupondomain.ErrCouponInactive),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, affiliatedomain.ErrAffiliateNotFound),
		errors.Is(err, invitationdomain.ErrInvitationNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "", payload.Type
	}
}
