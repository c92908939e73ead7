package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/tenantry/internal/auth/domain"
	"github.com/smallbiznis/tenantry/internal/authorization"
	billingdomain "github.com/smallbiznis/tenantry/internal/billing/domain"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInternal       = errors.New("internal_error")
)

// ErrorHandlingMiddleware renders the last handler error as a JSON envelope.
// Handlers record failures with AbortWithError and never write error bodies
// themselves, so every error leaves through this single mapping.
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := sentinelCode(err, validationSentinels...)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    sentinelCode(err, forbiddenSentinels...),
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    sentinelCode(err, conflictSentinels...),
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, workspacedomain.ErrInvitationExpired):
		return http.StatusGone, errorPayload{
			Type:    "invitation_expired",
			Message: "invitation expired",
		}
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, authdomain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, errorPayload{
			Type:    err.Error(),
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	workspacedomain.ErrInvalidName,
	workspacedomain.ErrInvalidSlug,
	workspacedomain.ErrInvalidUser,
	workspacedomain.ErrInvalidOrganization,
	workspacedomain.ErrInvalidEmail,
	workspacedomain.ErrInvalidRole,
	workspacedomain.ErrCannotRemoveSelf,
	authdomain.ErrInvalidEmail,
	authdomain.ErrInvalidCode,
	authdomain.ErrCodeExpired,
	billingdomain.ErrInvalidEvent,
	billingdomain.ErrInvalidProvider,
	billingdomain.ErrUnknownPrice,
}

var unauthorizedSentinels = []error{
	ErrUnauthorized,
	authdomain.ErrInvalidSession,
	authdomain.ErrSessionNotFound,
	authdomain.ErrSessionExpired,
	authdomain.ErrSessionRevoked,
}

var forbiddenSentinels = []error{
	ErrForbidden,
	workspacedomain.ErrForbidden,
	workspacedomain.ErrNotMember,
	workspacedomain.ErrLastOwnerProtected,
	workspacedomain.ErrPersonalWorkspace,
	workspacedomain.ErrInvitationEmailMismatch,
	authorization.ErrForbidden,
}

var conflictSentinels = []error{
	workspacedomain.ErrSlugTaken,
	workspacedomain.ErrMemberExists,
	workspacedomain.ErrInvitationExists,
	workspacedomain.ErrInvitationResolved,
}

var notFoundSentinels = []error{
	ErrNotFound,
	workspacedomain.ErrNotFound,
	workspacedomain.ErrMemberNotFound,
	workspacedomain.ErrInvitationNotFound,
	authdomain.ErrUserNotFound,
	gorm.ErrRecordNotFound,
}

func isValidationError(err error) bool {
	return matchesAny(err, validationSentinels)
}

func isUnauthorizedError(err error) bool {
	return matchesAny(err, unauthorizedSentinels)
}

func isForbiddenError(err error) bool {
	return matchesAny(err, forbiddenSentinels)
}

func isConflictError(err error) bool {
	return matchesAny(err, conflictSentinels)
}

func isNotFoundError(err error) bool {
	return matchesAny(err, notFoundSentinels)
}

func matchesAny(err error, sentinels []error) bool {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// sentinelCode returns the bare code of the sentinel err matches, so wrapped
// errors never leak their wrapping text into responses.
func sentinelCode(err error, sentinels ...error) string {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "error"
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

// classifyErrorForLog feeds the request logger's error_type/error_code fields
// without rendering a body.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", payload.Type
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth", payload.Type
	case status == http.StatusTooManyRequests:
		return "rate_limit", payload.Type
	default:
		return "client", payload.Type
	}
}
