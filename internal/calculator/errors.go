package calculator

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration    = errors.New("invalid indicator configuration")
	ErrMissingColumn    = errors.New("required column missing")
	ErrInsufficientData = errors.New("insufficient data")
)

// ConfigurationError reports invalid period parameters.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrConfiguration, e.Param, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// MissingColumnError reports a required price column absent from the input series.
type MissingColumnError struct {
	Column    string
	Available string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%v: %q (available: %s)", ErrMissingColumn, e.Column, e.Available)
}

func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }

// InsufficientDataError reports fewer usable rows than the requested periods need.
type InsufficientDataError struct {
	What string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%v: %s needs %d rows, got %d", ErrInsufficientData, e.What, e.Need, e.Got)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }
