package services

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError signals malformed, user-correctable input.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

func validationErrorf(format string, params ...any) ValidationError {
	return ValidationError(fmt.Sprintf(format, params...))
}

// NotFoundError signals an unknown id or code within the caller's scope.
type NotFoundError string

func (e NotFoundError) Error() string {
	return string(e)
}

// ConflictError signals a uniqueness or referential conflict.
type ConflictError string

func (e ConflictError) Error() string {
	return string(e)
}

// QuotaExceededError signals that the publisher's plan limit is reached.
type QuotaExceededError string

func (e QuotaExceededError) Error() string {
	return string(e)
}

var (
	ErrDuplicateDomain    = ConflictError("this domain is already registered")
	ErrDuplicateAuthor    = ConflictError("an author with this email already exists")
	ErrDuplicatePublisher = ConflictError("a publisher with this email already exists")
	ErrDomainInUse        = ConflictError("domain is referenced by active certificates; revoke or delete them first")

	ErrDomainNotVerified = errors.New("domain must be verified first")
	ErrUnauthorized      = errors.New("unauthorized")
)
