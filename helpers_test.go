package reroute_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bjaus/reroute"
)

// getHandler is a GET-only test handler.
type getHandler struct {
	fn func(ctx context.Context, args reroute.Args) (any, error)
}

func (h getHandler) Get(ctx context.Context, args reroute.Args) (any, error) {
	if h.fn == nil {
		return "ok", nil
	}
	return h.fn(ctx, args)
}

// postHandler is a POST-only test handler.
type postHandler struct {
	fn func(ctx context.Context, args reroute.Args) (any, error)
}

func (h postHandler) Post(ctx context.Context, args reroute.Args) (any, error) {
	if h.fn == nil {
		return "created", nil
	}
	return h.fn(ctx, args)
}

func getEndpoint(fn func(context.Context, reroute.Args) (any, error), params []reroute.ParamSpec, behaviors ...reroute.Behavior) *reroute.Endpoint {
	ep := &reroute.Endpoint{Handler: getHandler{fn: fn}}
	if params != nil {
		ep.Params = map[string][]reroute.ParamSpec{http.MethodGet: params}
	}
	if len(behaviors) > 0 {
		ep.Behaviors = map[string][]reroute.Behavior{http.MethodGet: behaviors}
	}
	return ep
}

func postEndpoint(fn func(context.Context, reroute.Args) (any, error), params []reroute.ParamSpec, behaviors ...reroute.Behavior) *reroute.Endpoint {
	ep := &reroute.Endpoint{Handler: postHandler{fn: fn}}
	if params != nil {
		ep.Params = map[string][]reroute.ParamSpec{http.MethodPost: params}
	}
	if len(behaviors) > 0 {
		ep.Behaviors = map[string][]reroute.Behavior{http.MethodPost: behaviors}
	}
	return ep
}

func dir(name string, ep *reroute.Endpoint, children ...*reroute.Dir) *reroute.Dir {
	return &reroute.Dir{Name: name, Endpoint: ep, Children: children}
}

func rootDir(children ...*reroute.Dir) *reroute.Dir {
	return &reroute.Dir{Name: "", Children: children}
}

func buildTree(t *testing.T, root *reroute.Dir) *reroute.Tree {
	t.Helper()
	tree, err := reroute.Build(root)
	require.NoError(t, err)
	return tree
}

// fakeClock is a manually advanced clock for window and TTL tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
