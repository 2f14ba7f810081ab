package core

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction is a link extraction configuration failure.
	ErrExtraction = errors.New("extraction error")
	// ErrTransport is a network or HTTP failure talking to a catalog.
	ErrTransport = errors.New("transport error")
	// ErrNotFound means the catalog has no data for an id.
	ErrNotFound = errors.New("not found")
	// ErrUnsupported means the catalog cannot perform the operation (e.g. albums on YouTube).
	ErrUnsupported = errors.New("unsupported operation")
	// ErrTooManyPages is returned when a listing exceeds the configured page bound.
	ErrTooManyPages = errors.New("too many pages")
)

// TransportError wraps a catalog call failure.
type TransportError struct {
	Service Service
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Ref ResourceRef
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Ref)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewTransportError wraps err unless it already describes a missing resource.
func NewTransportError(service Service, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnsupported) {
		return err
	}
	return &TransportError{Service: service, Op: op, Err: err}
}

// ErrorKind classifies err for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrTooManyPages):
		return "too_many_pages"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
