// Package domain defines core types, interfaces, and errors for the metrics layer.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigurationError indicates a metric or semantic-model definition that
// cannot be compiled: an unknown measure reference, an unsupported metric
// type, or a ratio metric missing an operand. It is fatal to the one compile
// call that hits it and is never silently recovered.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnknownMeasure reports a metric referencing a measure absent from the
// active semantic model.
func ErrUnknownMeasure(measure string) *ConfigurationError {
	return ErrConfiguration("unknown measure %q: not defined in the active semantic model", measure)
}

// ErrUnsupportedMetricType reports a metric whose type is neither simple nor ratio.
func ErrUnsupportedMetricType(metricType string) *ConfigurationError {
	return ErrConfiguration("unsupported metric type %q: must be simple or ratio", metricType)
}

// ErrMissingRatioOperand reports a ratio metric lacking a numerator or denominator.
func ErrMissingRatioOperand(metric string) *ConfigurationError {
	return ErrConfiguration("ratio metric %q requires both numerator and denominator", metric)
}
