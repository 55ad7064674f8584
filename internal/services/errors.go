package services

import (
	"github.com/pkg/errors"

	"short-drama-service/internal/repository"
)

var (
	// ErrNotFound covers both missing records and records owned by someone else.
	ErrNotFound      = errors.New("not found")
	// ErrSceneNotFound is reported when the project is visible but the scene is
	// not. It still matches ErrNotFound.
	ErrSceneNotFound = errors.WithMessage(ErrNotFound, "scene")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateEmail     = repository.ErrDuplicateEmail
)

// ValidationError is a caller mistake reported back verbatim with HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
