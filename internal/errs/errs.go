package errs

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUnknownTemplate = errors.New("unknown template")
	ErrEventNotFound   = errors.New("event not found")
	ErrLogNotFound     = errors.New("log not found")
	ErrContactNotFound = errors.New("contact not found")
)

// ValidationError reports malformed input. Fields maps a field path to its problems.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
