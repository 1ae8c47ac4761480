package reroute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"
)

// EngineConfig wires an Engine's dependencies. Zero-value fields fall back
// to in-process defaults so the zero config is usable in tests.
type EngineConfig struct {
	// Cache backs Cache behaviors. Default: in-memory cache.
	Cache CacheStore
	// Limits backs RateLimit behaviors. Default: in-memory store.
	Limits RateLimitStore
	// Logger receives Log behavior records. Default: slog.Default().
	Logger *slog.Logger
	// Config supplies engine-wide settings. Default: DefaultConfig().
	Config *Config
	// Now overrides the clock (for tests). Default: time.Now.
	Now func() time.Time
}

// Engine applies a route's cross-cutting behaviors around its handler in a
// fixed order: auth guard, rate limit, cache read, timeout-bounded handler
// invocation, cache write, log. Declaration order on the route never
// changes this sequence. An Engine is safe for concurrent use.
type Engine struct {
	cache  CacheStore
	limits RateLimitStore
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

// NewEngine creates an Engine from the given wiring.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		cache:  cfg.Cache,
		limits: cfg.Limits,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
	if cfg.Config != nil {
		e.cfg = *cfg.Config
	} else {
		e.cfg = DefaultConfig()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.cache == nil {
		e.cache = NewMemoryCache(MemoryCacheConfig{SweepInterval: e.cfg.CacheSweepInterval.Std()})
	}
	if e.limits == nil {
		e.limits = NewMemoryRateLimitStore()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Close releases the engine's stores.
func (e *Engine) Close() error {
	return e.cache.Close()
}

// routeBehaviors is the per-route behavior set in evaluation order. At most
// one behavior of each kind applies; a later duplicate overrides an earlier
// one.
type routeBehaviors struct {
	requires *Requires
	limit    *RateLimit
	cache    *Cache
	timeout  *Timeout
	log      bool
}

func splitBehaviors(list []Behavior) routeBehaviors {
	var rb routeBehaviors
	for _, b := range list {
		switch b := b.(type) {
		case Requires:
			rb.requires = &b
		case RateLimit:
			rb.limit = &b
		case Cache:
			rb.cache = &b
		case Timeout:
			rb.timeout = &b
		case Log:
			rb.log = true
		}
	}
	return rb
}

// Invoke runs one request through the route's behavior chain and handler.
// Rejected requests (auth, rate limit) exit before parameter resolution so
// a throttled caller costs no coercion or validation work. A cache hit
// returns the stored response as json.RawMessage without invoking the
// handler; only the handler itself runs under the timeout bound.
func (e *Engine) Invoke(ctx context.Context, rt *Route, rc RequestContext) (any, error) {
	rb := splitBehaviors(rt.Behaviors)
	start := e.now()

	resp, cached, err := e.invoke(ctx, rt, rb, rc)
	if rb.log {
		e.logInvocation(ctx, rt, rc, start, cached, err)
	}
	return resp, err
}

func (e *Engine) invoke(ctx context.Context, rt *Route, rb routeBehaviors, rc RequestContext) (resp any, cached bool, err error) {
	if rb.requires != nil {
		if err := checkAccess(*rb.requires, rc.Identity()); err != nil {
			return nil, false, err
		}
	}

	if rb.limit != nil {
		if err := e.checkRate(ctx, rt, *rb.limit, rc); err != nil {
			return nil, false, err
		}
	}

	args, err := Resolve(rt, rc)
	if err != nil {
		return nil, false, err
	}

	var key string
	if rb.cache != nil {
		key = cacheKey(rt, args)
		val, hit, gerr := e.cache.Get(ctx, key)
		if gerr != nil {
			// A broken cache degrades to a miss rather than failing
			// the request.
			e.logger.WarnContext(ctx, "cache read failed", "route", rt.Path, "error", gerr)
		} else if hit {
			return json.RawMessage(val), true, nil
		}
	}

	limit := e.cfg.DefaultTimeout.Std()
	if rb.timeout != nil {
		limit = rb.timeout.Limit
	}
	resp, err = e.callWithTimeout(ctx, rt, args, limit)
	if err != nil {
		return nil, false, err
	}

	if rb.cache != nil {
		val, merr := json.Marshal(resp)
		if merr != nil {
			e.logger.WarnContext(ctx, "cache encode failed", "route", rt.Path, "error", merr)
		} else if serr := e.cache.Set(ctx, key, val, rb.cache.TTL); serr != nil {
			e.logger.WarnContext(ctx, "cache write failed", "route", rt.Path, "error", serr)
		}
	}

	return resp, false, nil
}

// checkAccess enforces the Requires guard. Anonymous callers are rejected
// outright; authenticated callers must hold at least one listed role when
// roles are listed.
func checkAccess(req Requires, id Identity) error {
	if id.Anonymous() {
		return &AuthError{}
	}
	if len(req.Roles) == 0 {
		return nil
	}
	for _, role := range req.Roles {
		if id.HasRole(role) {
			return nil
		}
	}
	return &AuthError{Subject: id.Subject, Roles: req.Roles}
}

// checkRate spends one unit of the caller's fixed-window budget. Budgets
// are keyed by (route, method, caller); an anonymous caller is keyed by
// remote address.
func (e *Engine) checkRate(ctx context.Context, rt *Route, rl RateLimit, rc RequestContext) error {
	caller := rc.Identity().Subject
	if caller == "" {
		caller = rc.RemoteAddr()
	}
	key := rt.Method + " " + rt.Path + "|" + caller

	now := e.now()
	count, err := e.limits.Incr(ctx, key, rl.Window, now)
	if err != nil {
		return fmt.Errorf("rate limit store: %w", err)
	}
	if count > rl.Limit {
		idx := now.UnixNano() / rl.Window.Nanoseconds()
		windowEnd := time.Unix(0, (idx+1)*rl.Window.Nanoseconds())
		return &RateLimitError{
			Limit:      rl.Limit,
			Window:     rl.Window,
			RetryAfter: windowEnd.Sub(now),
		}
	}
	return nil
}

// callWithTimeout invokes the handler, bounded by limit when positive. On
// expiry the invocation goroutine is abandoned; callHandler's recover keeps
// an abandoned panic from crashing the process, and the buffered channel
// lets the goroutine finish without a receiver.
func (e *Engine) callWithTimeout(ctx context.Context, rt *Route, args Args, limit time.Duration) (any, error) {
	if limit <= 0 {
		return callHandler(ctx, rt, args)
	}

	tctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type result struct {
		resp any
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := callHandler(tctx, rt, args)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Limit: limit}
		}
		return nil, tctx.Err()
	}
}

func (e *Engine) logInvocation(ctx context.Context, rt *Route, rc RequestContext, start time.Time, cached bool, err error) {
	attrs := []any{
		"method", rt.Method,
		"route", rt.Path,
		"subject", rc.Identity().Subject,
		"duration", e.now().Sub(start),
		"cached", cached,
	}
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if err != nil {
		attrs = append(attrs, "status", ErrorStatus(err), "error", err.Error())
		e.logger.ErrorContext(ctx, "request failed", attrs...)
		return
	}
	e.logger.InfoContext(ctx, "request handled", attrs...)
}

// cacheKey derives a stable key from the route identity and every resolved
// argument. Two requests resolving to identical arguments share an entry.
func cacheKey(rt *Route, args Args) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s %s", rt.Method, rt.Path)
	for _, arg := range args {
		fmt.Fprintf(h, "|%s:%s=", arg.Spec.Source, arg.Spec.Name)
		switch v := arg.Value.(type) {
		case nil:
		case *Upload:
			fmt.Fprint(h, v.Filename)
		default:
			fmt.Fprintf(h, "%v", v)
		}
	}
	return fmt.Sprintf("%s%s:%x", rt.Method, rt.Path, h.Sum64())
}
