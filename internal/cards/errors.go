package cards

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates empty card text or a malformed identifier.
	ErrValidation = errors.New("cards: validation failed")
	// ErrNotFound indicates an operation referenced an unknown card id.
	ErrNotFound = errors.New("cards: card not found")
	// ErrPersistence indicates the persistence collaborator failed; in-memory state is kept.
	ErrPersistence = errors.New("cards: persistence failed")
)

// ServiceError carries a dotted operation code alongside its cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
