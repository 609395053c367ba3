package engine

import (
	"errors"
	"fmt"

	"github.com/seantiz/benchkit/internal/model"
)

var (
	// ErrDuplicateIdentifier is returned when two identifiers in one batch
	// share a canonical key.
	ErrDuplicateIdentifier = errors.New("duplicated identifier")

	// ErrUnknownResult is returned when an executor produces no recognizable
	// result.
	ErrUnknownResult = errors.New("unknown benchmark result")
)

// FailedError aborts a run when a benchmark fails and exit-on-error is set.
type FailedError struct {
	Identifier model.Identifier
	Failure    model.Failure
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("benchmark %s has failed: %v\nYou can find details in %s",
		e.Identifier, e.Failure.Err, e.Identifier.WorkDir)
}

func (e *FailedError) Unwrap() error {
	return e.Failure.Err
}
