package reroute

import (
	"context"
	"fmt"
	"net/http"
)

// Verb capability interfaces. A handler implements only the subset of verbs
// it supports; the route tree records which verbs are present at
// registration time rather than probing at call time.
type (
	// GetHandler handles GET requests.
	GetHandler interface {
		Get(ctx context.Context, args Args) (any, error)
	}

	// PostHandler handles POST requests.
	PostHandler interface {
		Post(ctx context.Context, args Args) (any, error)
	}

	// PutHandler handles PUT requests.
	PutHandler interface {
		Put(ctx context.Context, args Args) (any, error)
	}

	// PatchHandler handles PATCH requests.
	PatchHandler interface {
		Patch(ctx context.Context, args Args) (any, error)
	}

	// DeleteHandler handles DELETE requests.
	DeleteHandler interface {
		Delete(ctx context.Context, args Args) (any, error)
	}

	// HeadHandler handles HEAD requests.
	HeadHandler interface {
		Head(ctx context.Context, args Args) (any, error)
	}

	// OptionsHandler handles OPTIONS requests.
	OptionsHandler interface {
		Options(ctx context.Context, args Args) (any, error)
	}
)

// Lifecycle hooks, optionally implemented by handlers.
type (
	// BeforeRequester runs before the cross-cutting chain. Returning a
	// non-nil response short-circuits the chain; AfterRequest still runs
	// on the short-circuit response.
	BeforeRequester interface {
		BeforeRequest(ctx context.Context, rc RequestContext) (any, error)
	}

	// AfterRequester post-processes every successful response, including
	// short-circuit responses from BeforeRequest.
	AfterRequester interface {
		AfterRequest(ctx context.Context, resp any) any
	}

	// ErrorHooker translates an error raised anywhere in the chain.
	// Returning a non-nil response makes it the reply; returning an error
	// propagates it to the adapter unhandled.
	ErrorHooker interface {
		OnError(ctx context.Context, err error) (any, error)
	}

	// Tagger optionally labels a handler for adapter documentation use.
	Tagger interface {
		Tag() string
	}
)

// Endpoint binds a handler to its per-verb parameter specs and behavior
// metadata. It is the leaf-marker payload of the file tree: one Route is
// produced per verb the Handler implements.
type Endpoint struct {
	Handler any

	// Params and Behaviors are keyed by HTTP method (http.MethodGet etc).
	// They form the explicit metadata table built during registration.
	Params    map[string][]ParamSpec
	Behaviors map[string][]Behavior
}

// verbOrder is the registration order for route entries at a leaf.
var verbOrder = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

// implements reports whether h supports the verb.
func implements(h any, method string) bool {
	switch method {
	case http.MethodGet:
		_, ok := h.(GetHandler)
		return ok
	case http.MethodPost:
		_, ok := h.(PostHandler)
		return ok
	case http.MethodPut:
		_, ok := h.(PutHandler)
		return ok
	case http.MethodPatch:
		_, ok := h.(PatchHandler)
		return ok
	case http.MethodDelete:
		_, ok := h.(DeleteHandler)
		return ok
	case http.MethodHead:
		_, ok := h.(HeadHandler)
		return ok
	case http.MethodOptions:
		_, ok := h.(OptionsHandler)
		return ok
	default:
		return false
	}
}

// callHandler dispatches to the verb method recorded for the route. Panics
// in the handler are recovered and surfaced as errors so a timed-out,
// abandoned invocation can never crash the process from its goroutine.
func callHandler(ctx context.Context, rt *Route, args Args) (resp any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()

	switch rt.Method {
	case http.MethodGet:
		return rt.handler.(GetHandler).Get(ctx, args)
	case http.MethodPost:
		return rt.handler.(PostHandler).Post(ctx, args)
	case http.MethodPut:
		return rt.handler.(PutHandler).Put(ctx, args)
	case http.MethodPatch:
		return rt.handler.(PatchHandler).Patch(ctx, args)
	case http.MethodDelete:
		return rt.handler.(DeleteHandler).Delete(ctx, args)
	case http.MethodHead:
		return rt.handler.(HeadHandler).Head(ctx, args)
	case http.MethodOptions:
		return rt.handler.(OptionsHandler).Options(ctx, args)
	default:
		return nil, fmt.Errorf("unsupported method %s", rt.Method)
	}
}

// Identity describes the caller as established by the hosting adapter.
// The zero value is an anonymous caller.
type Identity struct {
	Subject string
	Roles   []string
}

// Anonymous reports whether no caller identity was established.
func (id Identity) Anonymous() bool { return id.Subject == "" }

// HasRole reports whether the identity carries the given role.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}
