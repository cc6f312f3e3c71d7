package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	creditdomain "github.com/storyforge/storyforge/internal/credit/domain"
	generationdomain "github.com/storyforge/storyforge/internal/generation/domain"
	organizationdomain "github.com/storyforge/storyforge/internal/organization/domain"
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
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
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
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}

	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}

	case errors.Is(err, generationdomain.ErrBatchTerminal):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}

	case errors.Is(err, generationdomain.ErrBatchNotFound),
		errors.Is(err, contentdomain.ErrItemNotFound),
		errors.Is(err, organizationdomain.ErrOrgNotFound),
		errors.Is(err, organizationdomain.ErrProfileNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}

	case errors.Is(err, creditdomain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, errorPayload{Type: "insufficient_credits", Message: err.Error()}

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, generationdomain.ErrEmptyBatch),
		errors.Is(err, generationdomain.ErrInvalidBatchID),
		errors.Is(err, generationdomain.ErrModelNotAllowed),
		errors.Is(err, generationdomain.ErrInvalidOrgContext),
		errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidOrganization),
		errors.Is(err, contentdomain.ErrInvalidContent):
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}

	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}
