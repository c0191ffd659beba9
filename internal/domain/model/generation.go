package model

import (
	"errors"
	"fmt"

	"local-chat-assistant/internal/domain"
)

type GenerationErrorKind string

const (
	GenErrTransport  GenerationErrorKind = "transport"
	GenErrTimeout    GenerationErrorKind = "timeout"
	GenErrHTTPStatus GenerationErrorKind = "http_status"
	GenErrMalformed  GenerationErrorKind = "malformed_response"
)

// GenerationError describes why an inference call produced no text.
type GenerationError struct {
	Kind       GenerationErrorKind
	StatusCode int
	Cause      error
}

func (e *GenerationError) Error() string {
	switch {
	case e.Kind == GenErrHTTPStatus && e.Cause != nil:
		return fmt.Sprintf("http status %d: %v", e.StatusCode, e.Cause)
	case e.Kind == GenErrHTTPStatus:
		return fmt.Sprintf("http status %d", e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return string(e.Kind)
	}
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// Generation is the outcome of one inference call: either Text or Err.
type Generation struct {
	Text string
	Err  *GenerationError
}

func (g Generation) OK() bool { return g.Err == nil }

// ErrorKind returns the failure kind, or "" on success.
func (g Generation) ErrorKind() string {
	if g.Err == nil {
		return ""
	}
	return string(g.Err.Kind)
}

// Display renders the generation as user-visible text. A response that came
// back without its text field shows fallback when one is given; any other
// failure shows "prefix: reason".
func (g Generation) Display(prefix, fallback string) string {
	if g.Err == nil {
		return g.Text
	}
	if fallback != "" && errors.Is(g.Err, domain.ErrEmptyResponse) {
		return fallback
	}
	return prefix + ": " + g.Err.Error()
}
