package reroute

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ConflictError is returned by Build when two leaves resolve to the same
// (path, method) pair or two static siblings share segment text. It is a
// build-time error: the tree is rejected, never silently merged.
type ConflictError struct {
	Path   string
	Method string
}

func (e *ConflictError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("route conflict: %s %s registered twice", e.Method, e.Path)
	}
	return fmt.Sprintf("route conflict: duplicate segment at %s", e.Path)
}

// ConfigError reports malformed route configuration detected at build time,
// such as a cache behavior on a mutating verb or an uncompilable pattern.
type ConfigError struct {
	Path   string
	Method string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("route config: %s %s: %s", e.Method, e.Path, e.Reason)
}

// NotFoundError is returned by Lookup when no leaf matches the path.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string   { return fmt.Sprintf("no route for %s", e.Path) }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// MethodNotAllowedError is returned by Lookup when a leaf matches the path
// but does not implement the requested verb.
type MethodNotAllowedError struct {
	Path    string
	Method  string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("%s not allowed for %s (allowed: %s)", e.Method, e.Path, strings.Join(e.Allowed, ", "))
}

func (e *MethodNotAllowedError) StatusCode() int { return http.StatusMethodNotAllowed }

// MissingParamError reports a required parameter with no default that was
// absent from its source.
type MissingParamError struct {
	Param  string
	Source Source
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("missing required %s parameter %q", e.Source, e.Param)
}

func (e *MissingParamError) StatusCode() int { return http.StatusBadRequest }

// CoercionError reports a raw value that could not be converted to the
// parameter's declared kind.
type CoercionError struct {
	Param string
	Kind  Kind
	Value string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("parameter %q: cannot coerce %q to %s", e.Param, e.Value, e.Kind)
}

func (e *CoercionError) StatusCode() int { return http.StatusBadRequest }

// ValidationError reports the first declared constraint a scalar parameter
// value violated.
type ValidationError struct {
	Param      string
	Constraint string
	Message    string
	Value      any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Param, e.Message)
}

func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// FieldError describes a single invalid field in a structured body payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// BodyError aggregates every invalid field of a structured body payload so
// the response can report them all at once. Unlike scalar parameters, body
// validation does not short-circuit on the first failure.
type BodyError struct {
	Param  string
	Fields []FieldError
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("body parameter %q: %d invalid field(s)", e.Param, len(e.Fields))
}

func (e *BodyError) StatusCode() int { return http.StatusBadRequest }

// RateLimitError is returned when a fixed-window bucket exceeds its limit.
type RateLimitError struct {
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d per %s", e.Limit, e.Window)
}

func (e *RateLimitError) StatusCode() int { return http.StatusTooManyRequests }

// AuthError is returned by the auth guard before any other behavior runs.
// Anonymous callers get 401, authenticated callers missing a role get 403.
type AuthError struct {
	Subject string
	Roles   []string
}

func (e *AuthError) Error() string {
	if e.Subject == "" {
		return "authentication required"
	}
	return fmt.Sprintf("subject %q lacks required role (want one of %s)", e.Subject, strings.Join(e.Roles, ", "))
}

func (e *AuthError) StatusCode() int {
	if e.Subject == "" {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// TimeoutError is returned when a handler invocation exceeds its timeout.
// The in-flight invocation is abandoned, not interrupted.
type TimeoutError struct {
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("handler exceeded %s timeout", e.Limit)
}

func (e *TimeoutError) StatusCode() int { return http.StatusGatewayTimeout }

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// ProblemDetail is an RFC 9457 problem details response, produced by the
// HTTP adapter when translating errors.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type   string       `json:"type,omitempty"`
	Title  string       `json:"title,omitempty"`
	Status int          `json:"status"`
	Detail string       `json:"detail,omitempty"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }
