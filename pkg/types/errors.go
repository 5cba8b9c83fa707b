package types

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// ErrInvalidInput covers empty queries and unusable request values
	ErrInvalidInput = errors.New("invalid input")
	// ErrCollaboratorUnavailable means the store, vector index or embedder failed or timed out
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrInconsistentData means one collaborator referenced data another cannot resolve
	ErrInconsistentData = errors.New("inconsistent data")

	ErrEmptyContent = errors.New("content cannot be empty")
)

// CollaboratorError wraps a failure of an external collaborator
type CollaboratorError struct {
	Collaborator string // "store", "vector_index" or "embedder"
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCollaboratorUnavailable) true for every CollaboratorError
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorUnavailable
}
