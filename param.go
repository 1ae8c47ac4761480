package reroute

import (
	"fmt"
	"regexp"
)

// Source identifies where a parameter's raw value is extracted from.
type Source string

// Parameter sources. Header and cookie lookup are case-insensitive; all
// other sources are case-sensitive.
const (
	SourceQuery  Source = "query"
	SourcePath   Source = "path"
	SourceHeader Source = "header"
	SourceCookie Source = "cookie"
	SourceBody   Source = "body"
	SourceForm   Source = "form"
	SourceFile   Source = "file"
)

// Kind is the closed set of target types a raw value may be coerced to.
type Kind string

// Coercion kinds.
const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindModel  Kind = "model"
	KindFile   Kind = "file"
)

// ParamSpec declares how to extract, coerce, and validate one request value.
// Specs are created at registration time and read-only afterward.
type ParamSpec struct {
	Name     string
	Source   Source
	Kind     Kind
	Required bool
	Default  string // mutually exclusive with Required

	// Model is a prototype value (struct or pointer to struct) for
	// KindModel parameters. The body is decoded into a fresh copy.
	Model any

	// Validators, applied in order: range, length, pattern.
	Minimum   *float64
	Maximum   *float64
	MinLength *int
	MaxLength *int
	Pattern   *regexp.Regexp

	patternErr error // deferred Pattern compile failure, rejected at build
}

// ParamOption configures a ParamSpec at declaration time.
type ParamOption func(*ParamSpec)

// Required marks the parameter as required (no default permitted).
func Required() ParamOption {
	return func(s *ParamSpec) { s.Required = true }
}

// Default sets the fallback raw value used when the parameter is absent.
func Default(v string) ParamOption {
	return func(s *ParamSpec) { s.Default = v }
}

// Min sets the minimum numeric value.
func Min(v float64) ParamOption {
	return func(s *ParamSpec) { s.Minimum = &v }
}

// Max sets the maximum numeric value.
func Max(v float64) ParamOption {
	return func(s *ParamSpec) { s.Maximum = &v }
}

// MinLen sets the minimum string length.
func MinLen(n int) ParamOption {
	return func(s *ParamSpec) { s.MinLength = &n }
}

// MaxLen sets the maximum string length.
func MaxLen(n int) ParamOption {
	return func(s *ParamSpec) { s.MaxLength = &n }
}

// Pattern sets a regular expression the string value must match.
// An invalid expression is rejected at build time.
func Pattern(expr string) ParamOption {
	return func(s *ParamSpec) {
		re, err := regexp.Compile(expr)
		if err != nil {
			s.Pattern = nil
			s.patternErr = fmt.Errorf("pattern %q: %w", expr, err)
			return
		}
		s.Pattern = re
	}
}

// Query declares a query-string parameter.
func Query(name string, kind Kind, opts ...ParamOption) ParamSpec {
	return newSpec(name, SourceQuery, kind, opts)
}

// PathParam declares a path-segment parameter captured by a dynamic segment.
// Path parameters are always required.
func PathParam(name string, kind Kind, opts ...ParamOption) ParamSpec {
	s := newSpec(name, SourcePath, kind, opts)
	s.Required = true
	return s
}

// HeaderParam declares a header parameter (case-insensitive lookup).
func HeaderParam(name string, kind Kind, opts ...ParamOption) ParamSpec {
	return newSpec(name, SourceHeader, kind, opts)
}

// CookieParam declares a cookie parameter (case-insensitive lookup).
func CookieParam(name string, kind Kind, opts ...ParamOption) ParamSpec {
	return newSpec(name, SourceCookie, kind, opts)
}

// Body declares the request body parameter. For KindModel pass the model
// prototype via Model; for scalar kinds the raw bytes are coerced directly.
func Body(name string, kind Kind, model any, opts ...ParamOption) ParamSpec {
	s := newSpec(name, SourceBody, kind, opts)
	s.Model = model
	return s
}

// Form declares a parsed form field parameter.
func Form(name string, kind Kind, opts ...ParamOption) ParamSpec {
	return newSpec(name, SourceForm, kind, opts)
}

// File declares an uploaded file parameter. Its kind is always KindFile.
func File(name string, opts ...ParamOption) ParamSpec {
	return newSpec(name, SourceFile, KindFile, opts)
}

func newSpec(name string, src Source, kind Kind, opts []ParamOption) ParamSpec {
	s := ParamSpec{Name: name, Source: src, Kind: kind}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// check validates the spec itself. Violations are structural and fatal at
// build time; they are never deferred to request time.
func (s ParamSpec) check() error {
	if s.Name == "" {
		return fmt.Errorf("parameter with empty name")
	}
	if s.patternErr != nil {
		return fmt.Errorf("parameter %q: %w", s.Name, s.patternErr)
	}
	if s.Required && s.Default != "" {
		return fmt.Errorf("parameter %q: required and default are mutually exclusive", s.Name)
	}
	switch s.Kind {
	case KindString, KindInt, KindFloat, KindBool:
	case KindModel:
		if s.Source != SourceBody {
			return fmt.Errorf("parameter %q: model kind requires body source", s.Name)
		}
		if s.Model == nil {
			return fmt.Errorf("parameter %q: model kind requires a prototype", s.Name)
		}
	case KindFile:
		if s.Source != SourceFile {
			return fmt.Errorf("parameter %q: file kind requires file source", s.Name)
		}
	default:
		return fmt.Errorf("parameter %q: unsupported kind %q", s.Name, s.Kind)
	}
	if s.Default != "" && s.Kind != KindModel && s.Kind != KindFile {
		// A default that cannot be coerced is a registration mistake,
		// not a request-time condition.
		if _, err := coerceScalar(s, s.Default); err != nil {
			return fmt.Errorf("parameter %q: default %q does not coerce to %s", s.Name, s.Default, s.Kind)
		}
	}
	return nil
}
