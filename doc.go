// Package reroute is a file-tree-driven request routing engine. Routes are
// discovered from a directory structure (a directory name like "[id]"
// declares a dynamic path segment) and each leaf binds a handler plus
// explicit parameter specs and cross-cutting behavior metadata.
//
// Handlers express only the verbs they support:
//
//	type users struct{}
//
//	func (users) Get(ctx context.Context, args reroute.Args) (any, error) {
//	    return fetchUser(ctx, args.Int("id"))
//	}
//
// Leaves declare where each value comes from and how it is validated:
//
//	ep := &reroute.Endpoint{
//	    Handler: users{},
//	    Params: map[string][]reroute.ParamSpec{
//	        http.MethodGet: {
//	            reroute.PathParam("id", reroute.KindInt, reroute.Min(1)),
//	        },
//	    },
//	    Behaviors: map[string][]reroute.Behavior{
//	        http.MethodGet: {
//	            reroute.Cache{TTL: time.Minute},
//	            reroute.RateLimit{Limit: 100, Window: time.Minute},
//	        },
//	    },
//	}
//
// Build assembles the route tree and rejects conflicts and malformed specs
// up front; nothing structural is deferred to request time. The Engine then
// applies behaviors in a fixed order around every invocation (auth guard,
// rate limit, cache read, timeout-bounded handler, cache write, log) and
// Mount exposes the whole thing as a standard http.Handler:
//
//	tree, err := reroute.Build(root)
//	engine := reroute.NewEngine(reroute.EngineConfig{})
//	http.ListenAndServe(":8080", reroute.Mount(tree, reroute.NewDispatcher(engine)))
//
// Middleware uses the standard func(http.Handler) http.Handler signature,
// so the entire Go middleware ecosystem works natively.
package reroute
