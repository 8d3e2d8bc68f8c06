package shared

import "errors"

// Error kinds understood by the HTTP layer. Domain packages never return these
// directly; they build their own sentinels on top with NewError.
var (
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the entity is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates a sale would drive stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict indicates the request clashes with current state.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// DomainError carries a user facing message tagged with one of the error kinds.
type DomainError struct {
	Kind    error
	Message string
}

// NewError builds a DomainError. errors.Is(err, kind) reports true for the result.
func NewError(kind error, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap exposes the kind to errors.Is.
func (e *DomainError) Unwrap() error {
	return e.Kind
}

// UserSafeMessage returns the message of the first DomainError in the chain, or a
// generic text when err comes from the store or another collaborator.
func UserSafeMessage(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
