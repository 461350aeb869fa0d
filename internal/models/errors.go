package models

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	// ErrFileNotFound is returned when the map path does not name a readable file.
	ErrFileNotFound = errors.New("map file not found")
	// ErrIO is returned when the map file exists but cannot be read.
	ErrIO = errors.New("map file read failed")
	// ErrEmptyInput is returned by aggregates that are undefined on no survivors.
	ErrEmptyInput = errors.New("empty input")
)

// ParseError is a load-time failure. It aborts the pipeline.
type ParseError struct {
	Kind error
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Path)
}

// Unwrap exposes both the kind and the underlying cause
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsTransient reports whether retrying the load could succeed
func (e *ParseError) IsTransient() bool {
	return errors.Is(e.Kind, ErrIO)
}

// ValidationError represents a rejected field value
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
