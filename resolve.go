package reroute

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Arg is one resolved argument: the spec it was resolved for and the
// coerced value.
type Arg struct {
	Spec  ParamSpec
	Value any
}

// Args is the ordered argument list handed to a handler. Order follows the
// route's parameter declaration order.
type Args []Arg

// Lookup returns the resolved value for a parameter name.
func (a Args) Lookup(name string) (any, bool) {
	for _, arg := range a {
		if arg.Spec.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// String returns the named string argument, or "" when absent.
func (a Args) String(name string) string {
	v, _ := a.Lookup(name)
	s, _ := v.(string)
	return s
}

// Int returns the named integer argument, or 0 when absent.
func (a Args) Int(name string) int64 {
	v, _ := a.Lookup(name)
	n, _ := v.(int64)
	return n
}

// Float returns the named float argument, or 0 when absent.
func (a Args) Float(name string) float64 {
	v, _ := a.Lookup(name)
	f, _ := v.(float64)
	return f
}

// Bool returns the named boolean argument, or false when absent.
func (a Args) Bool(name string) bool {
	v, _ := a.Lookup(name)
	b, _ := v.(bool)
	return b
}

// Model returns the named decoded body model (a pointer to the model
// struct), or nil when absent.
func (a Args) Model(name string) any {
	v, _ := a.Lookup(name)
	return v
}

// File returns the named upload, or nil when absent.
func (a Args) File(name string) *Upload {
	v, _ := a.Lookup(name)
	u, _ := v.(*Upload)
	return u
}

// Resolve extracts, coerces, and validates every declared parameter of the
// route from the request context, in declaration order. Scalar parameters
// short-circuit on the first failing validator; a structured body model is
// validated whole, with field errors aggregated into a single BodyError.
func Resolve(rt *Route, rc RequestContext) (Args, error) {
	args := make(Args, 0, len(rt.Params))

	for _, spec := range rt.Params {
		switch spec.Source {
		case SourceBody:
			v, err := resolveBody(spec, rc)
			if err != nil {
				return nil, err
			}
			args = append(args, Arg{Spec: spec, Value: v})

		case SourceFile:
			u, ok := rc.File(spec.Name)
			if !ok {
				if spec.Required {
					return nil, &MissingParamError{Param: spec.Name, Source: spec.Source}
				}
				args = append(args, Arg{Spec: spec, Value: nil})
				continue
			}
			args = append(args, Arg{Spec: spec, Value: u})

		default:
			v, err := resolveScalar(spec, rc)
			if err != nil {
				return nil, err
			}
			args = append(args, Arg{Spec: spec, Value: v})
		}
	}

	return args, nil
}

// resolveScalar handles the query/path/header/cookie/form sources.
func resolveScalar(spec ParamSpec, rc RequestContext) (any, error) {
	raw, ok := extract(spec, rc)
	if !ok || raw == "" {
		if spec.Default != "" {
			raw = spec.Default
		} else if spec.Required {
			return nil, &MissingParamError{Param: spec.Name, Source: spec.Source}
		} else {
			return nil, nil
		}
	}

	v, err := coerceScalar(spec, raw)
	if err != nil {
		return nil, &CoercionError{Param: spec.Name, Kind: spec.Kind, Value: raw}
	}
	if verr := validateScalar(spec, v); verr != nil {
		return nil, verr
	}
	return v, nil
}

func extract(spec ParamSpec, rc RequestContext) (string, bool) {
	switch spec.Source {
	case SourceQuery:
		return rc.Query(spec.Name)
	case SourcePath:
		return rc.PathValue(spec.Name)
	case SourceHeader:
		return rc.Header(spec.Name)
	case SourceCookie:
		return rc.Cookie(spec.Name)
	case SourceForm:
		return rc.Form(spec.Name)
	default:
		return "", false
	}
}

// coerceScalar converts a raw string to the declared kind. Boolean
// coercion accepts only true/false/1/0, case-insensitive.
func coerceScalar(spec ParamSpec, raw string) (any, error) {
	switch spec.Kind {
	case KindString:
		return raw, nil
	case KindInt:
		return strconv.ParseInt(raw, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(raw, 64)
	case KindBool:
		switch strings.ToLower(raw) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		default:
			return nil, fmt.Errorf("not a boolean literal: %q", raw)
		}
	default:
		return nil, fmt.Errorf("kind %s is not scalar", spec.Kind)
	}
}

// validateScalar applies declared validators in order: range, length,
// pattern. The first violation wins.
func validateScalar(spec ParamSpec, v any) error {
	var num float64
	var isNum bool
	switch n := v.(type) {
	case int64:
		num, isNum = float64(n), true
	case float64:
		num, isNum = n, true
	}

	if isNum {
		if spec.Minimum != nil && num < *spec.Minimum {
			return &ValidationError{
				Param:      spec.Name,
				Constraint: "minimum",
				Message:    fmt.Sprintf("must be at least %v", *spec.Minimum),
				Value:      v,
			}
		}
		if spec.Maximum != nil && num > *spec.Maximum {
			return &ValidationError{
				Param:      spec.Name,
				Constraint: "maximum",
				Message:    fmt.Sprintf("must be at most %v", *spec.Maximum),
				Value:      v,
			}
		}
	}

	if s, ok := v.(string); ok {
		if spec.MinLength != nil && len(s) < *spec.MinLength {
			return &ValidationError{
				Param:      spec.Name,
				Constraint: "minLength",
				Message:    fmt.Sprintf("must be at least %d characters", *spec.MinLength),
				Value:      s,
			}
		}
		if spec.MaxLength != nil && len(s) > *spec.MaxLength {
			return &ValidationError{
				Param:      spec.Name,
				Constraint: "maxLength",
				Message:    fmt.Sprintf("must be at most %d characters", *spec.MaxLength),
				Value:      s,
			}
		}
		if spec.Pattern != nil && !spec.Pattern.MatchString(s) {
			return &ValidationError{
				Param:      spec.Name,
				Constraint: "pattern",
				Message:    fmt.Sprintf("must match pattern %s", spec.Pattern),
				Value:      s,
			}
		}
	}

	return nil
}

// resolveBody handles the body source. A scalar kind coerces the raw bytes
// directly; a model kind decodes JSON into a fresh model instance and
// validates the whole payload against its constraint tags in one step.
func resolveBody(spec ParamSpec, rc RequestContext) (any, error) {
	raw, err := rc.Body()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(raw) == 0 {
		if spec.Default != "" {
			raw = []byte(spec.Default)
		} else if spec.Required {
			return nil, &MissingParamError{Param: spec.Name, Source: spec.Source}
		} else {
			return nil, nil
		}
	}

	if spec.Kind != KindModel {
		v, cerr := coerceScalar(spec, string(raw))
		if cerr != nil {
			return nil, &CoercionError{Param: spec.Name, Kind: spec.Kind, Value: truncate(string(raw), 64)}
		}
		if verr := validateScalar(spec, v); verr != nil {
			return nil, verr
		}
		return v, nil
	}

	inst := newModel(spec.Model)
	if err := json.Unmarshal(raw, inst); err != nil {
		return nil, &CoercionError{Param: spec.Name, Kind: KindModel, Value: truncate(string(raw), 64)}
	}
	if fields := checkModel(inst); len(fields) > 0 {
		return nil, &BodyError{Param: spec.Name, Fields: fields}
	}
	return inst, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
