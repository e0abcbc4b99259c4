package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyAccepted   = errors.New("requisition item already accepted")
	ErrEmptyPlan         = errors.New("plan has no allocations")
	ErrInvalidTransition = errors.New("order status transition not allowed")
)

// FieldError names one offending input field, using the JSON path of the field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (f FieldError) String() string {
	return f.Field + " " + f.Reason
}

// ValidationError is returned when caller input is missing or malformed.
// Nothing is mutated when it is returned.
type ValidationError struct {
	Fields []FieldError
	Err    error
}

func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// HasField reports whether field is among the failing fields.
func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// ConflictError rejects an operation against the current state: a missing
// record or an item that was already accepted.
type ConflictError struct {
	Resource string
	ID       string
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Resource, e.ID, e.Err)
}

func (e *ConflictError) Unwrap() []error {
	return []error{ErrConflict, e.Err}
}

func NotFound(resource, id string) error {
	return &ConflictError{Resource: resource, ID: id, Err: ErrNotFound}
}

func Conflict(resource, id string, err error) error {
	return &ConflictError{Resource: resource, ID: id, Err: err}
}
