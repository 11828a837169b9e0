package ics

import (
	"errors"
	"fmt"
)

var (
	ErrStartAndEndDateNotDefined = errors.New("start time and end time not defined")
	// ErrorPropertyNotFound is the error returned if the requested valid
	// property is not set.
	ErrorPropertyNotFound = errors.New("property not found")

	ErrUnterminatedComponent = errors.New("component has no matching END")
	ErrUnbalancedEnd         = errors.New("unbalanced end")
	ErrMalformedCalendar     = errors.New("malformed calendar")

	ErrMissingFrequency     = errors.New("recurrence rule has no FREQ")
	ErrRestrictedFrequency  = errors.New("recurrence frequency is restricted")
	ErrPeriodEndBeforeStart = errors.New("period end is before its start")
	ErrNegativeDuration     = errors.New("period duration is negative")
	ErrInvalidEncoding      = errors.New("invalid encoding")
)

// SyntaxError reports a content line that does not follow the RFC 5545
// grammar. Line and Column are 1 based; zero means unknown.
type SyntaxError struct {
	Line   int
	Column int
	Raw    string
	Err    error
}

func (e *SyntaxError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("syntax error at line %d column %d: %v", e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("syntax error at line %d: %v", e.Line, e.Err)
	case e.Column > 0:
		return fmt.Sprintf("syntax error at column %d in %q: %v", e.Column, e.Raw, e.Err)
	}
	return fmt.Sprintf("syntax error in %q: %v", e.Raw, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// ValueError is returned when a property value does not match the grammar of
// its value type. The raw value stays on the property, so callers may keep
// it as a fallback.
type ValueError struct {
	Property string
	Value    string
	Err      error
}

func (e *ValueError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("invalid value %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s value %q: %v", e.Property, e.Value, e.Err)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

func valueError(property string, value string, err error) error {
	var ve *ValueError
	if errors.As(err, &ve) {
		if ve.Property == "" {
			ve.Property = property
		}
		return ve
	}
	return &ValueError{Property: property, Value: value, Err: err}
}
