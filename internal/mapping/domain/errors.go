package mapping

import (
	"context"
	"errors"

	schema "datamap-cloud/internal/schema/domain"
)

// Failure kinds surfaced past the engine boundary.
var (
	// ErrNotFound indicates the referenced dataset does not exist.
	ErrNotFound = errors.New("mapping: dataset not found")
	// ErrInvalidIdentifier indicates a malformed or non-positive dataset id.
	ErrInvalidIdentifier = errors.New("mapping: invalid dataset identifier")
	// ErrBadRequest indicates the suggestion source rejected the request.
	ErrBadRequest = errors.New("mapping: suggestion request rejected")
	// ErrNoMappings indicates a submission without any complete row.
	ErrNoMappings = errors.New("mapping: no mapped fields")
	// ErrTransient indicates a retryable collaborator failure.
	ErrTransient = errors.New("mapping: transient failure")
	// ErrPersistence indicates the mapping store rejected a submission.
	ErrPersistence = errors.New("mapping: persistence failure")
)

// Local command validation errors.
var (
	ErrUnknownRow        = errors.New("mapping: unknown row")
	ErrUnknownField      = errors.New("mapping: unknown canonical field")
	ErrUnknownColumn     = errors.New("mapping: unknown source column")
	ErrRequestInProgress = errors.New("mapping: suggestion request already in progress")
	ErrNoDataset         = errors.New("mapping: no active dataset")
	ErrNotReady          = errors.New("mapping: session not hydrated")
)

// Failure is a classified engine error.
type Failure struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

// NewFailure constructs a failure of the given kind.
func NewFailure(kind error, op, message string, cause error) *Failure {
	return &Failure{Kind: kind, Op: op, Message: message, Err: cause}
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	if f.Message != "" {
		return f.Message
	}
	if f.Kind != nil {
		return f.Kind.Error()
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return "mapping: failure"
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (f *Failure) Unwrap() []error {
	if f == nil {
		return nil
	}
	var errs []error
	if f.Kind != nil {
		errs = append(errs, f.Kind)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// Retryable reports whether the user may retry without changing input.
func (f *Failure) Retryable() bool {
	if f == nil {
		return false
	}
	return f.Kind == ErrTransient || f.Kind == ErrPersistence
}

// NoMappingsError is returned by projection when nothing is mapped.
func NoMappingsError() *Failure {
	return NewFailure(ErrNoMappings, "project", "map at least one field before submitting", nil)
}

// InvalidIdentifierError is returned for non-positive dataset ids.
func InvalidIdentifierError(op string) *Failure {
	return NewFailure(ErrInvalidIdentifier, op, "dataset id must be a positive integer", nil)
}

var kinds = []error{ErrNotFound, ErrInvalidIdentifier, ErrBadRequest, ErrNoMappings, ErrTransient, ErrPersistence}

// Classify converts a collaborator error into a Failure. fallback is used
// when the error carries no known kind.
func Classify(op string, err error, fallback error) error {
	if err == nil {
		return nil
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	if errors.Is(err, schema.ErrDatasetNotFound) {
		return NewFailure(ErrNotFound, op, "please upload a dataset first", err)
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return NewFailure(kind, op, "", err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewFailure(ErrTransient, op, "request timed out, please retry", err)
	}
	if fallback == nil {
		fallback = ErrTransient
	}
	return NewFailure(fallback, op, "", err)
}

// KindOf returns the failure kind of err, or nil.
func KindOf(err error) error {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return nil
}
