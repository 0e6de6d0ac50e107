package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned for a rule kind that has no extractor
	ErrUnknownKind = errors.New("unknown extraction kind")
)

// EvaluationError reports that a page could not evaluate a function, for
// example because the session closed, navigation interrupted the call or the
// execution context was destroyed.
type EvaluationError struct {
	Func string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("page evaluation failed: %v", e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// NewEvaluationError wraps err, unless it is nil or already an EvaluationError.
func NewEvaluationError(fn string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	return &EvaluationError{Func: fn, Err: err}
}

// IsEvaluationFailure reports whether err, or anything it wraps, is an EvaluationError.
func IsEvaluationFailure(err error) bool {
	var evalErr *EvaluationError
	return errors.As(err, &evalErr)
}
