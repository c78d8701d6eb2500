package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("concurrent edit conflict")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func NotFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type Reason string

const (
	ReasonMissingRequired   Reason = "missing_required"
	ReasonTypeMismatch      Reason = "type_mismatch"
	ReasonUnknownNotAllowed Reason = "unknown_not_allowed"
	ReasonOutOfRange        Reason = "out_of_range"
	ReasonUnknownField      Reason = "unknown_field"
)

type FieldError struct {
	FieldID string `json:"fieldId"`
	Reason  Reason `json:"reason"`
}

// ValidationError reports bad input. Fields is set when the error comes from
// checking a submission; schema edits only carry a Message.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Message
	}
	parts := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		parts[i] = fe.FieldID + ": " + string(fe.Reason)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type ConflictError struct {
	SchemaID string
	Version  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schema %q changed since version %d", e.SchemaID, e.Version)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
