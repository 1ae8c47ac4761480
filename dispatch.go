package reroute

import "context"

// Dispatcher runs a route's lifecycle hooks around the engine: a
// BeforeRequest short-circuit, the behavior chain and handler, OnError
// translation, and AfterRequest post-processing. Hooks are optional
// interfaces on the handler; a handler implementing none of them
// dispatches straight through the engine.
type Dispatcher struct {
	engine *Engine
}

// NewDispatcher creates a Dispatcher around the engine.
func NewDispatcher(engine *Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Engine exposes the wrapped engine, for adapters that need direct access
// to its configuration.
func (d *Dispatcher) Engine() *Engine { return d.engine }

// Dispatch runs one request through hooks and engine.
//
// BeforeRequest runs first; a non-nil response from it skips the engine
// entirely but still flows through AfterRequest, so response shaping stays
// uniform. Errors from any stage go to OnError when the handler implements
// it: a response from OnError becomes the reply (bypassing AfterRequest,
// since the handler already shaped it), an error propagates to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, rt *Route, rc RequestContext) (any, error) {
	resp, err := d.run(ctx, rt, rc)
	if err == nil {
		return resp, nil
	}

	if hook, ok := rt.handler.(ErrorHooker); ok {
		return hook.OnError(ctx, err)
	}
	return nil, err
}

func (d *Dispatcher) run(ctx context.Context, rt *Route, rc RequestContext) (any, error) {
	if hook, ok := rt.handler.(BeforeRequester); ok {
		resp, err := hook.BeforeRequest(ctx, rc)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return d.after(ctx, rt, resp), nil
		}
	}

	resp, err := d.engine.Invoke(ctx, rt, rc)
	if err != nil {
		return nil, err
	}
	return d.after(ctx, rt, resp), nil
}

func (d *Dispatcher) after(ctx context.Context, rt *Route, resp any) any {
	if hook, ok := rt.handler.(AfterRequester); ok {
		return hook.AfterRequest(ctx, resp)
	}
	return resp
}
