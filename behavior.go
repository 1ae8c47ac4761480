package reroute

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Behavior is a declarative cross-cutting descriptor attached to a route at
// registration time. The engine applies behaviors in a fixed global order
// (Requires, RateLimit, Cache, Timeout, Log) regardless of the order they
// were declared in.
type Behavior interface {
	behavior()
}

// Requires guards the route behind role membership. An empty role list only
// demands an authenticated (non-anonymous) caller.
type Requires struct {
	Roles []string
}

// RateLimit applies fixed-window rate limiting keyed by (route, caller).
// Windows are not sliding: a caller may burst up to twice the limit across
// a window boundary.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// Cache stores the handler's response for TTL and serves repeats without
// invoking the handler. Only read-only verbs may carry this behavior;
// attaching it to a mutating verb fails the build.
type Cache struct {
	TTL time.Duration
}

// Timeout bounds the handler invocation only, never the auth, rate-limit,
// or cache bookkeeping around it.
type Timeout struct {
	Limit time.Duration
}

// Log emits a structured log record for each invocation of the route.
type Log struct{}

func (Requires) behavior()  {}
func (RateLimit) behavior() {}
func (Cache) behavior()     {}
func (Timeout) behavior()   {}
func (Log) behavior()       {}

// rate period literals accepted by ParseRate.
var ratePeriods = map[string]time.Duration{
	"sec":    time.Second,
	"second": time.Second,
	"min":    time.Minute,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRate parses a limit expression like "5/min" or "100/hour" into a
// RateLimit behavior.
func ParseRate(s string) (RateLimit, error) {
	count, period, ok := strings.Cut(s, "/")
	if !ok {
		return RateLimit{}, fmt.Errorf("invalid rate %q: want form like 5/min", s)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || limit <= 0 {
		return RateLimit{}, fmt.Errorf("invalid rate %q: bad count", s)
	}
	window, ok := ratePeriods[strings.ToLower(strings.TrimSpace(period))]
	if !ok {
		return RateLimit{}, fmt.Errorf("invalid rate %q: period must be one of sec, min, hour, day", s)
	}
	return RateLimit{Limit: limit, Window: window}, nil
}

// checkBehaviors validates a route's behavior list at build time.
func checkBehaviors(method, path string, behaviors []Behavior, cacheable map[string]bool) error {
	for _, b := range behaviors {
		switch b := b.(type) {
		case Requires:
		case RateLimit:
			if b.Limit <= 0 || b.Window <= 0 {
				return &ConfigError{Path: path, Method: method, Reason: "rate limit needs a positive limit and window"}
			}
		case Cache:
			if b.TTL <= 0 {
				return &ConfigError{Path: path, Method: method, Reason: "cache needs a positive TTL"}
			}
			if !cacheable[method] {
				return &ConfigError{Path: path, Method: method, Reason: fmt.Sprintf("cache behavior not allowed on %s", method)}
			}
		case Timeout:
			if b.Limit <= 0 {
				return &ConfigError{Path: path, Method: method, Reason: "timeout needs a positive duration"}
			}
		case Log:
		default:
			return &ConfigError{Path: path, Method: method, Reason: fmt.Sprintf("unknown behavior %T", b)}
		}
	}
	return nil
}
