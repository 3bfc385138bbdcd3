package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedModel is returned when no adapter can serve a model id.
	ErrUnsupportedModel = errors.New("unsupported model")
	// ErrNoModelSpecified is returned when neither the request nor the conversation names a model.
	ErrNoModelSpecified = errors.New("no model specified")
	// ErrPolicyViolation is returned when the admission policy blocks a message.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrInvalidRequest is returned for malformed client input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMalformedPayload marks an AdapterError caused by an unparseable provider reply.
	ErrMalformedPayload = errors.New("malformed provider payload")
	// ErrStreamAborted is returned when the caller abandons a streaming request.
	ErrStreamAborted = errors.New("stream aborted")
	// ErrStreamConsumed is yielded when a fragment sequence is iterated twice.
	ErrStreamConsumed = errors.New("fragment stream already consumed")
)

// AdapterError is a transport or provider-side failure.
type AdapterError struct {
	Provider   string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %v", e.Provider, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("provider %q error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// NewMalformedError wraps a decode failure as a malformed-payload AdapterError.
func NewMalformedError(provider string, cause error) *AdapterError {
	if cause == nil {
		return &AdapterError{Provider: provider, Cause: ErrMalformedPayload}
	}
	return &AdapterError{Provider: provider, Cause: fmt.Errorf("%w: %v", ErrMalformedPayload, cause)}
}

// IsAdapterError reports whether err is, or wraps, an AdapterError.
func IsAdapterError(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae)
}

// ErrorCode maps an error onto the stable code reported to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnsupportedModel):
		return "unsupported_model"
	case errors.Is(err, ErrNoModelSpecified):
		return "no_model_specified"
	case errors.Is(err, ErrPolicyViolation):
		return "policy_violation"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrStreamAborted):
		return "stream_aborted"
	case IsAdapterError(err):
		return "adapter_failure"
	default:
		return "internal_error"
	}
}
