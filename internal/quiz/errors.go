package quiz

import (
	"errors"
	"fmt"

	"flashquiz-backend/internal/models"
)

var (
	ErrNotActive        = errors.New("quiz is not active")
	ErrAlreadyAnswered  = errors.New("item already answered")
	ErrNothingToReview  = errors.New("no incorrect items to review")
	ErrUnsupported      = errors.New("operation not supported by this quiz type")
	ErrNotAuthenticated = errors.New("no current user")
	ErrNoSession        = errors.New("no open quiz session")
	ErrInvalidInput     = errors.New("invalid answer input")
)

// LoadError reports a failed set or session fetch. The engine stays in
// PhaseLoading.
type LoadError struct {
	SetID string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load set %s: %v", e.SetID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

type InvalidSetError struct {
	SetID     string
	SetType   models.QuizType
	Requested models.QuizType
	Reason    string
}

func (e *InvalidSetError) Error() string {
	if e.Requested != "" {
		return fmt.Sprintf("set %s (%s) cannot be studied as %s: %s", e.SetID, e.SetType, e.Requested, e.Reason)
	}
	return fmt.Sprintf("set %s is invalid: %s", e.SetID, e.Reason)
}

type StorageWriteError struct {
	Op  string
	Key models.SessionKey
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("failed to %s for set %s (%s): %v", e.Op, e.Key.SetID, e.Key.QuizType, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
