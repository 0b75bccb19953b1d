package repositories

import "fmt"

// CartErrorCode enumerates repository error causes for cart storage.
type CartErrorCode string

const (
	// CartErrorUnknown represents an unspecified failure.
	CartErrorUnknown CartErrorCode = "cart_unknown"
	// CartErrorNotFound indicates no cart exists for the register.
	CartErrorNotFound CartErrorCode = "cart_not_found"
	// CartErrorInvalidRegister indicates a blank or malformed register id.
	CartErrorInvalidRegister CartErrorCode = "cart_invalid_register"
)

// CartError wraps cart storage failures with machine readable codes.
type CartError struct {
	Op      string
	Code    CartErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CartError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CartError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound implements RepositoryError.
func (e *CartError) IsNotFound() bool { return e != nil && e.Code == CartErrorNotFound }

// IsConflict implements RepositoryError.
func (e *CartError) IsConflict() bool { return false }

// IsUnavailable implements RepositoryError.
func (e *CartError) IsUnavailable() bool {
	return e != nil && e.Code == CartErrorUnknown
}

// NewCartError constructs a typed cart storage error.
func NewCartError(code CartErrorCode, message string, err error) *CartError {
	if message == "" {
		message = string(code)
	}
	return &CartError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
