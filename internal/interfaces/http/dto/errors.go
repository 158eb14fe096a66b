package dto

import "net/http"

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeValidation is used for request validation failures
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "NOT_FOUND"
)

// errorCodeHTTPStatus maps domain error codes to HTTP status codes.
// Validation-shaped codes map to 400, state-shaped codes to 422,
// contention to 409, upstream gateway failures to 502.
var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeNotFound:     http.StatusNotFound,

	"INVALID_SCHOOL":         http.StatusBadRequest,
	"INVALID_STUDENT":        http.StatusBadRequest,
	"INVALID_TEMPLATE":       http.StatusBadRequest,
	"INVALID_TEMPLATE_NAME":  http.StatusBadRequest,
	"INVALID_TEMPLATE_ITEMS": http.StatusBadRequest,
	"INVALID_AMOUNT":         http.StatusBadRequest,
	"INVALID_DISCOUNT":       http.StatusBadRequest,
	"INVALID_DUE_DATE":       http.StatusBadRequest,
	"INVALID_PAYMENT_MODE":   http.StatusBadRequest,
	"INVALID_COLLECTOR":      http.StatusBadRequest,
	"INVALID_RECORD":         http.StatusBadRequest,
	"INVALID_RECORD_NUMBER":  http.StatusBadRequest,
	"INVALID_RECEIPT_NUMBER": http.StatusBadRequest,
	"INVALID_FINE_POLICY":    http.StatusBadRequest,
	"INVALID_FINE_PERIOD":    http.StatusBadRequest,
	"MISSING_PAYMENT_FIELD":  http.StatusBadRequest,

	"ALREADY_EXISTS":       http.StatusConflict,
	"CONFLICT":             http.StatusConflict,
	"CONCURRENCY_CONFLICT": http.StatusConflict,

	"INVALID_STATE":           http.StatusUnprocessableEntity,
	"BALANCE_EXCEEDED":        http.StatusUnprocessableEntity,
	"TEMPLATE_IN_USE":         http.StatusUnprocessableEntity,
	"TEMPLATE_INACTIVE":       http.StatusUnprocessableEntity,
	"NOT_OVERDUE":             http.StatusUnprocessableEntity,
	"FINE_ALREADY_APPLIED":    http.StatusUnprocessableEntity,
	"NO_RECEIPT":              http.StatusUnprocessableEntity,
	"GATEWAY_AMOUNT_MISMATCH": http.StatusUnprocessableEntity,

	"INVALID_GATEWAY_ORDER":   http.StatusBadRequest,
	"INVALID_GATEWAY_PAYMENT": http.StatusBadRequest,
	"GATEWAY_ERROR":           http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for a domain error code.
// Unknown codes map to 500 so they surface during development.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
