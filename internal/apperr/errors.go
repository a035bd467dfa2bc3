// Package apperr holds the error kinds shared by every layer of the booking core.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrInfrastructure = errors.New("infrastructure failure")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError enumerates every missing or malformed input field.
type ValidationError struct {
	Fields []FieldError
}

// Invalid returns a ValidationError for a single field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Merge folds err into e when err is a ValidationError and reports whether it was.
func (e *ValidationError) Merge(err error) bool {
	var other *ValidationError
	if !errors.As(err, &other) {
		return false
	}
	e.Fields = append(e.Fields, other.Fields...)
	return true
}

// OrNil returns e when at least one field problem was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InfrastructureError marks a data store or lock failure the core does not retry.
type InfrastructureError struct {
	Op  string
	Err error
}

// Infra wraps err as an InfrastructureError unless it already is one.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *InfrastructureError
	if errors.As(err, &existing) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

func (e *InfrastructureError) Is(target error) bool {
	return target == ErrInfrastructure
}
