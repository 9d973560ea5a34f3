package ml

import (
	"errors"
	"fmt"

	"claimcast/claims"
)

var (
	// ErrInvalidInput marks caller input that cannot be interpreted, such as
	// an unparseable target date.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSegmentNotFound means no trained model exists for the county/claim type.
	ErrSegmentNotFound = errors.New("no model found for this county/claim type")
	// ErrInsufficientHistory is returned when a segment has too few rows to train.
	ErrInsufficientHistory = claims.ErrInsufficientHistory
	// ErrSingularFit indicates the regression produced non-finite coefficients.
	ErrSingularFit = errors.New("regression produced non-finite coefficients")
	// ErrFeatureMismatch indicates a model and a feature row disagree on shape or columns.
	ErrFeatureMismatch = errors.New("feature mismatch")
	// ErrUnsupportedFormat is returned when loading a store written in another format version.
	ErrUnsupportedFormat = errors.New("unsupported model store format")
	// ErrModelNotTrained indicates a model without coefficients.
	ErrModelNotTrained = errors.New("model not trained")
)

// InvalidInputError describes which input field was rejected.
type InvalidInputError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}
