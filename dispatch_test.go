package reroute_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/reroute"
)

// hookedHandler implements GET plus whichever hooks its fields enable.
type hookedHandler struct {
	get    func(ctx context.Context, args reroute.Args) (any, error)
	before func(ctx context.Context, rc reroute.RequestContext) (any, error)
	after  func(ctx context.Context, resp any) any
}

func (h hookedHandler) Get(ctx context.Context, args reroute.Args) (any, error) {
	if h.get == nil {
		return "ok", nil
	}
	return h.get(ctx, args)
}

func (h hookedHandler) BeforeRequest(ctx context.Context, rc reroute.RequestContext) (any, error) {
	if h.before == nil {
		return nil, nil
	}
	return h.before(ctx, rc)
}

func (h hookedHandler) AfterRequest(ctx context.Context, resp any) any {
	if h.after == nil {
		return resp
	}
	return h.after(ctx, resp)
}

// translatingHandler additionally translates errors.
type translatingHandler struct {
	hookedHandler
	onError func(ctx context.Context, err error) (any, error)
}

func (h translatingHandler) OnError(ctx context.Context, err error) (any, error) {
	return h.onError(ctx, err)
}

func newTestDispatcher(t *testing.T) *reroute.Dispatcher {
	t.Helper()
	engine := reroute.NewEngine(reroute.EngineConfig{Logger: discardLogger()})
	t.Cleanup(func() {
		require.NoError(t, engine.Close())
	})
	return reroute.NewDispatcher(engine)
}

func dispatchRoute(t *testing.T, h any, behaviors ...reroute.Behavior) *reroute.Route {
	t.Helper()
	ep := &reroute.Endpoint{Handler: h}
	if len(behaviors) > 0 {
		ep.Behaviors = map[string][]reroute.Behavior{http.MethodGet: behaviors}
	}
	return singleRoute(t, ep, http.MethodGet)
}

func TestDispatch_plainHandler(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)
	rt := dispatchRoute(t, getHandler{})

	resp, err := d.Dispatch(context.Background(), rt, &reroute.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestDispatch_hookOrder(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)

	var order []string
	rt := dispatchRoute(t, hookedHandler{
		before: func(context.Context, reroute.RequestContext) (any, error) {
			order = append(order, "before")
			return nil, nil
		},
		get: func(context.Context, reroute.Args) (any, error) {
			order = append(order, "handler")
			return "ok", nil
		},
		after: func(_ context.Context, resp any) any {
			order = append(order, "after")
			return resp
		},
	})

	_, err := d.Dispatch(context.Background(), rt, &reroute.Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "handler", "after"}, order)
}

func TestDispatch_beforeShortCircuit(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)

	handlerRan := false
	rt := dispatchRoute(t, hookedHandler{
		before: func(context.Context, reroute.RequestContext) (any, error) {
			return "cached elsewhere", nil
		},
		get: func(context.Context, reroute.Args) (any, error) {
			handlerRan = true
			return "ok", nil
		},
		after: func(_ context.Context, resp any) any {
			return map[string]any{"wrapped": resp}
		},
	})

	resp, err := d.Dispatch(context.Background(), rt, &reroute.Request{})
	require.NoError(t, err)
	assert.False(t, handlerRan, "short-circuit skips the engine")
	assert.Equal(t, map[string]any{"wrapped": "cached elsewhere"}, resp, "AfterRequest still runs")
}

func TestDispatch_beforeError(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)

	boom := errors.New("before failed")
	rt := dispatchRoute(t, hookedHandler{
		before: func(context.Context, reroute.RequestContext) (any, error) {
			return nil, boom
		},
	})

	_, err := d.Dispatch(context.Background(), rt, &reroute.Request{})
	require.ErrorIs(t, err, boom)
}

func TestDispatch_onErrorTranslates(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)

	afterRan := false
	rt := dispatchRoute(t, translatingHandler{
		hookedHandler: hookedHandler{
			get: func(context.Context, reroute.Args) (any, error) {
				return nil, errors.New("boom")
			},
			after: func(_ context.Context, resp any) any {
				afterRan = true
				return resp
			},
		},
		onError: func(_ context.Context, err error) (any, error) {
			return map[string]string{"fallback": err.Error()}, nil
		},
	})

	resp, err := d.Dispatch(context.Background(), rt, &reroute.Request{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"fallback": "boom"}, resp)
	assert.False(t, afterRan, "a translated response skips AfterRequest")
}

func TestDispatch_onErrorPropagates(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)

	translated := errors.New("translated")
	rt := dispatchRoute(t, translatingHandler{
		hookedHandler: hookedHandler{
			get: func(context.Context, reroute.Args) (any, error) {
				return nil, errors.New("boom")
			},
		},
		onError: func(_ context.Context, err error) (any, error) {
			return nil, translated
		},
	})

	_, err := d.Dispatch(context.Background(), rt, &reroute.Request{})
	require.ErrorIs(t, err, translated)
}

func TestDispatch_onErrorSeesBehaviorErrors(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t)

	var seen error
	rt := dispatchRoute(t, translatingHandler{
		hookedHandler: hookedHandler{},
		onError: func(_ context.Context, err error) (any, error) {
			seen = err
			return "degraded", nil
		},
	}, reroute.Requires{}, reroute.RateLimit{Limit: 1, Window: time.Minute})

	resp, err := d.Dispatch(context.Background(), rt, &reroute.Request{})
	require.NoError(t, err)
	assert.Equal(t, "degraded", resp)

	var aerr *reroute.AuthError
	assert.ErrorAs(t, seen, &aerr, "auth failures reach OnError")
}
