package extend

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by this package matches exactly one
// of these through errors.Is.
var (
	// ErrNetwork indicates a name resolution, connection, I/O or HTTP status failure.
	ErrNetwork = errors.New("extend: network error")

	// ErrProtocol indicates the server answered but violated the protocol contract.
	ErrProtocol = errors.New("extend: protocol error")

	// ErrConfiguration indicates the runtime lacks something the protocol requires.
	ErrConfiguration = errors.New("extend: configuration error")
)

// NetworkError wraps a transport failure with request context.
type NetworkError struct {
	// Op is the operation that failed (e.g. "fetch", "resolve").
	Op string

	// URL is the request URL, if any.
	URL string

	// StatusCode is the HTTP status for non-2xx responses, 0 otherwise.
	StatusCode int

	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected HTTP status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": network failure"
	}
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// ProtocolError reports a response that does not satisfy the protocol:
// a non-"ok" status, a missing field or a malformed value.
type ProtocolError struct {
	// Method is the service method whose response was rejected, if known.
	Method string

	// Field names the offending response element, if any.
	Field string

	// Stat is the raw status attribute for rejected responses.
	Stat string

	Msg string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Method != "" {
		return e.Method + ": " + e.Msg
	}
	return e.Msg
}

// Is reports whether target is ErrProtocol.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// ConfigurationError reports that a required digest is not available.
// It is raised with panic: the protocol cannot work without it.
type ConfigurationError struct {
	Algorithm string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("digest algorithm %s is not available", e.Algorithm)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func statusError(stat string) *ProtocolError {
	return &ProtocolError{Stat: stat, Msg: "request failed: " + stat}
}

func missingFieldError(method, field, what string) *ProtocolError {
	return &ProtocolError{
		Method: method,
		Field:  field,
		Msg:    "missing " + what,
	}
}

func invalidFieldError(field, raw string) *ProtocolError {
	return &ProtocolError{
		Field: field,
		Msg:   fmt.Sprintf("invalid %s: %q", field, raw),
	}
}

// withMethod returns a copy of err annotated with the service method if err
// is a *ProtocolError without one. Other errors are returned unchanged.
func withMethod(err error, method string) error {
	var perr *ProtocolError
	if errors.As(err, &perr) && perr.Method == "" {
		annotated := *perr
		annotated.Method = method
		return &annotated
	}
	return err
}
