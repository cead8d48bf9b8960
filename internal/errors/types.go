// Package errors defines the typed errors that flow through a contact
// submission and the rules for turning them into the single message a
// visitor sees.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeDestination ErrorType = "destination"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeInternal    ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeRequiredFields     = "ERR_REQUIRED_FIELDS"
	ErrCodeInvalidEmail       = "ERR_INVALID_EMAIL"
	ErrCodeRelayRejected      = "ERR_RELAY_REJECTED"
	ErrCodeConversionRejected = "ERR_CONVERSION_REJECTED"
	ErrCodeTransport          = "ERR_TRANSPORT"
	ErrCodeNoDestination      = "ERR_NO_DESTINATION"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeInternalError      = "ERR_INTERNAL"
	ErrCodeRateLimited        = "ERR_RATE_LIMITED"
	ErrCodeMalformedRequest   = "ERR_MALFORMED_REQUEST"
)

// GenericNetworkMessage replaces transport error text that means nothing to a
// visitor.
const GenericNetworkMessage = "Something went wrong. Please check your connection and try again."

// SiteError is a structured error type with context.
type SiteError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Destination string
	Context     map[string]interface{}
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Destination != "" {
		parts = append(parts, "destination:"+e.Destination)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SiteError) Is(target error) bool {
	var t *SiteError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SiteError) WithContext(key string, value interface{}) *SiteError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithDestination records which destination produced the error.
func (e *SiteError) WithDestination(name string) *SiteError {
	e.Destination = name

	return e
}

// NewValidationError creates a validation error. The message is shown to the
// visitor as-is.
func NewValidationError(code, message string) *SiteError {
	return &SiteError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewDestinationError creates an error for a destination that answered with
// an explicit failure.
func NewDestinationError(code, destination, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeDestination,
		Code:        code,
		Message:     message,
		Destination: destination,
	}
}

// NewNetworkError creates a transport-level error.
func NewNetworkError(destination string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeNetwork,
		Code:        ErrCodeTransport,
		Message:     "request failed",
		Cause:       cause,
		Destination: destination,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SiteError {
	return &SiteError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrNoDestination is returned when a submission has nowhere to go.
func ErrNoDestination() *SiteError {
	return NewConfigError(
		ErrCodeNoDestination,
		"No form submission endpoints configured. Please set up a webhook or form relay.",
	)
}

// IsType reports whether err is a SiteError of the given type.
func IsType(err error, t ErrorType) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Type == t
	}

	return false
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsDestination checks if an error came from a required destination.
func IsDestination(err error) bool { return IsType(err, ErrorTypeDestination) }

// IsNetwork checks if an error is a transport failure.
func IsNetwork(err error) bool { return IsType(err, ErrorTypeNetwork) }

// IsConfig checks if an error is a configuration error.
func IsConfig(err error) bool { return IsType(err, ErrorTypeConfig) }

// genericTransportFragments are the error texts produced by fetch and by
// net/http dial failures that carry no useful information for a visitor.
var genericTransportFragments = []string{
	"failed to fetch",
	"networkerror",
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"context deadline exceeded",
	"network is unreachable",
	"unexpected eof",
}

// UserMessage returns the text a visitor should see for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var se *SiteError
	if errors.As(err, &se) {
		switch se.Type {
		case ErrorTypeNetwork, ErrorTypeInternal:
			return GenericNetworkMessage
		default:
			if se.Message == "" {
				return GenericNetworkMessage
			}
			return se.Message
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return GenericNetworkMessage
	}

	msg := err.Error()
	if msg == "" || isGenericTransport(msg) {
		return GenericNetworkMessage
	}

	return msg
}

func isGenericTransport(msg string) bool {
	lower := strings.ToLower(msg)
	for _, fragment := range genericTransportFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}

	return false
}

// ErrorHandler provides centralized error logging.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err at a level matching its type and returns the visitor
// message for it.
func (h *ErrorHandler) Handle(ctx context.Context, err error) string {
	if err == nil {
		return ""
	}

	if h.logger != nil {
		var se *SiteError
		if errors.As(err, &se) {
			switch se.Type {
			case ErrorTypeValidation:
				h.logger.Warn(ctx, err, "Submission rejected",
					"type", se.Type,
					"code", se.Code)
			case ErrorTypeDestination:
				h.logger.Warn(ctx, err, "Destination refused submission",
					"type", se.Type,
					"code", se.Code,
					"destination", se.Destination)
			default:
				h.logger.Error(ctx, err, "Form submission error",
					"type", se.Type,
					"code", se.Code,
					"destination", se.Destination)
			}
		} else {
			h.logger.Error(ctx, err, "Form submission error")
		}
	}

	return UserMessage(err)
}
