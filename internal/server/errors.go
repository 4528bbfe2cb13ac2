package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/shelterbill/internal/billing/domain"
	catalogdomain "github.com/smallbiznis/shelterbill/internal/catalog/domain"
	"github.com/smallbiznis/shelterbill/internal/lock"
	recorddomain "github.com/smallbiznis/shelterbill/internal/record/domain"
	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
	"github.com/smallbiznis/shelterbill/pkg/dates"
	"github.com/smallbiznis/shelterbill/pkg/db/pagination"
	"github.com/smallbiznis/shelterbill/pkg/money"
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

type conflictPayload struct {
	VersionID  string  `json:"version_id"`
	ActionCode string  `json:"action_code"`
	ValidFrom  string  `json:"valid_from"`
	ValidTo    *string `json:"valid_to"`
}

type errorPayload struct {
	Type     string            `json:"type"`
	Message  string            `json:"message"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Conflict *conflictPayload  `json:"conflict,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationSentinels are matched in order; the first hit names the error code.
var validationSentinels = []error{
	ErrInvalidRequest,
	catalogdomain.ErrInvalidActionName,
	catalogdomain.ErrInvalidCurrency,
	catalogdomain.ErrInvalidPrice,
	catalogdomain.ErrInvalidDate,
	catalogdomain.ErrInvalidID,
	catalogdomain.ErrInvalidRange,
	recorddomain.ErrInvalidID,
	recorddomain.ErrInvalidSubject,
	recorddomain.ErrInvalidServiceDate,
	recorddomain.ErrInvalidQuantity,
	recorddomain.ErrInvalidRange,
	recorddomain.ErrBillingFieldsImmutable,
	reportdomain.ErrInvalidRange,
	reportdomain.ErrInvalidDate,
	reportdomain.ErrInvalidGranularity,
	reportdomain.ErrInvalidFormat,
	reportdomain.ErrInvalidPreset,
	pagination.ErrInvalidPageToken,
	dates.ErrInvalidDate,
	money.ErrInvalidCurrency,
	money.ErrNegativeAmount,
	money.ErrTooPrecise,
	money.ErrOverflow,
	money.ErrInvalidQuantity,
	lock.ErrLockKeyEmpty,
}

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

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
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

	if sentinel := validationSentinel(err); sentinel != nil {
		code := sentinel.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(err, code),
				},
			},
		}
	}

	var overlap *catalogdomain.OverlapError
	if errors.As(err, &overlap) {
		payload := errorPayload{
			Type:    "conflict",
			Message: "version overlaps an existing version of this action",
		}
		if overlap.Conflict != nil {
			payload.Conflict = &conflictPayload{
				VersionID:  overlap.Conflict.ID.String(),
				ActionCode: overlap.Conflict.ActionCode,
				ValidFrom:  dates.Format(overlap.Conflict.ValidFrom),
				ValidTo:    formatOptionalDate(overlap.Conflict.ValidTo),
			}
		}
		return http.StatusConflict, payload
	}

	switch {
	case errors.Is(err, billingdomain.ErrNoPriceForDate):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "no_price_for_date",
			Message: billingdomain.NoPriceForDateMessage,
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, catalogdomain.ErrOverlap),
		errors.Is(err, catalogdomain.ErrVersionInUse),
		errors.Is(err, recorddomain.ErrIdempotencyKeyReused):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorPayload{
			Type:    "timeout",
			Message: "request timed out",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, lock.ErrLockTimeout):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
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

func validationSentinel(err error) error {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrNoOpenVersion),
		errors.Is(err, recorddomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, catalogdomain.ErrVersionInUse):
		return "version is referenced by service records"
	case errors.Is(err, recorddomain.ErrIdempotencyKeyReused):
		return "idempotency key was used for a different record"
	default:
		return "conflict"
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "billing_fields_immutable":
		return "billing"
	case "invalid_range":
		return "range"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

// validationErrorMessage keeps typed error detail such as the offending dates.
func validationErrorMessage(err error, code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "billing_fields_immutable":
		return "action_name, service_date and quantity cannot be changed after creation"
	case "invalid_range":
		return err.Error()
	default:
		return "invalid value"
	}
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := dates.Format(*t)
	return &formatted
}
