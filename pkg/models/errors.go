package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrConfig matches every *ConfigError.
	ErrConfig = errors.New("invalid factory configuration")
)

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Kind string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " does not exist"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConfigError is returned when a factory is first constructed without one of
// its mandatory collaborators.
type ConfigError struct {
	Factory string
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s factory: missing %s", e.Factory, e.Missing)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// ValidationError is returned when a record is constructed without a
// required field.
type ValidationError struct {
	Table string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.Table, e.Field)
}
