package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	carrierdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	dealdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/deal/domain"
	downlinedomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/downline/domain"
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
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrDealLocked     = errors.New("deal_locked")

	ErrServiceUnavailable = errors.New("service_unavailable")
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
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isUnprocessableError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
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

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isAgentValidationError(err),
		isCarrierValidationError(err),
		isCommissionValidationError(err),
		isDealValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, agentdomain.ErrNotFound),
		errors.Is(err, carrierdomain.ErrNotFound),
		errors.Is(err, dealdomain.ErrNotFound),
		errors.Is(err, commissiondomain.ErrDealNotFound),
		errors.Is(err, downlinedomain.ErrRootNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, agentdomain.ErrCycleDetected),
		errors.Is(err, downlinedomain.ErrCycleDetected),
		errors.Is(err, ErrDealLocked):
		return true
	default:
		return false
	}
}

// Unprocessable: the request parsed but the domain refuses it outright.
func isUnprocessableError(err error) bool {
	switch {
	case errors.Is(err, commissiondomain.ErrInactiveAgent),
		errors.Is(err, commissiondomain.ErrInconsistentSplit),
		errors.Is(err, downlinedomain.ErrDepthLimitExceeded):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if code == "invalid_request" {
		return "request"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog buckets an error for request log fields.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", payload.Type
	case status == http.StatusTooManyRequests:
		return "rate_limited", payload.Type
	default:
		return "client", payload.Type
	}
}

func isAgentValidationError(err error) bool {
	switch err {
	case agentdomain.ErrInvalidName,
		agentdomain.ErrInvalidLevel,
		agentdomain.ErrInvalidStatus,
		agentdomain.ErrInvalidID,
		agentdomain.ErrUplineNotFound:
		return true
	default:
		return false
	}
}

func isCarrierValidationError(err error) bool {
	switch err {
	case carrierdomain.ErrInvalidName,
		carrierdomain.ErrInvalidLine,
		carrierdomain.ErrInvalidRate,
		carrierdomain.ErrInvalidID,
		carrierdomain.ErrUnknownInsuranceType:
		return true
	default:
		return false
	}
}

func isCommissionValidationError(err error) bool {
	switch err {
	case commissiondomain.ErrInvalidPremium,
		commissiondomain.ErrUnknownInsuranceType,
		commissiondomain.ErrInvalidRate:
		return true
	default:
		return false
	}
}

func isDealValidationError(err error) bool {
	switch err {
	case dealdomain.ErrInvalidID,
		dealdomain.ErrNothingToAmend,
		dealdomain.ErrCarrierRequired:
		return true
	default:
		return false
	}
}
