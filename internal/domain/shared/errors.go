package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrValidation          = NewDomainError("VALIDATION_ERROR", "Invalid input provided")
	ErrConflict            = NewDomainError("CONFLICT", "Operation conflicts with current state")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrBalanceExceeded     = NewDomainError("BALANCE_EXCEEDED", "Payment exceeds outstanding balance")
	ErrGateway             = NewDomainError("GATEWAY_ERROR", "Payment gateway request failed")
)
