package reroute

import (
	"fmt"
	"sort"
	"strings"
)

// Dir is the static file-tree abstraction routes are discovered from. A
// name written "[param]" declares a dynamic segment bound to the path
// parameter "param"; any other name is a static segment. A Dir carrying an
// Endpoint is a leaf: it defines one Route per verb its handler implements.
type Dir struct {
	Name     string
	Endpoint *Endpoint
	Children []*Dir
}

// Route is one (method, handler) entry at a leaf of the tree, together
// with its ordered parameter specs and behavior metadata. Routes are
// immutable once built.
type Route struct {
	Method    string
	Path      string
	Params    []ParamSpec
	Behaviors []Behavior
	Tag       string

	handler    any
	paramNames []string // dynamic segment names along the path, in order
}

// node is one path segment in the built tree. Static children are scanned
// linearly; at most one dynamic child exists per node.
type node struct {
	segment string
	param   string // non-empty for dynamic nodes
	static  []*node
	dynamic *node
	routes  map[string]*Route // keyed by method at a leaf
	path    string
}

func (n *node) findStatic(segment string) *node {
	for _, c := range n.static {
		if c.segment == segment {
			return c
		}
	}
	return nil
}

// Tree is the immutable route table produced by Build. It is safe for
// unsynchronized concurrent reads.
type Tree struct {
	root  *node
	index map[string][]*Route
}

// BuildOption configures a Build pass.
type BuildOption func(*builder)

// WithConfig applies engine configuration (cacheable verbs) to the build.
func WithConfig(cfg Config) BuildOption {
	return func(b *builder) { b.cfg = cfg }
}

type builder struct {
	cfg   Config
	index map[string][]*Route
}

// Build walks the directory tree and produces the route table. Traversal
// is recursive with no depth limit. Structural problems (duplicate
// segments, duplicate (path, method) leaves, malformed parameter specs,
// cache behaviors on mutating verbs) abort the build; they are never
// deferred to request time.
func Build(root *Dir, opts ...BuildOption) (*Tree, error) {
	b := &builder{
		cfg:   DefaultConfig(),
		index: make(map[string][]*Route),
	}
	for _, opt := range opts {
		opt(b)
	}

	rootNode := &node{path: "/"}
	if root.Endpoint != nil {
		if err := b.addLeaf(rootNode, root.Endpoint, nil); err != nil {
			return nil, err
		}
	}
	for _, child := range root.Children {
		if err := b.addDir(rootNode, child, nil); err != nil {
			return nil, err
		}
	}

	return &Tree{root: rootNode, index: b.index}, nil
}

// addDir attaches one directory under parent and recurses into children.
func (b *builder) addDir(parent *node, d *Dir, params []string) error {
	seg, param, err := parseSegment(d.Name)
	if err != nil {
		return fmt.Errorf("under %s: %w", parent.path, err)
	}

	var n *node
	if param == "" {
		if parent.findStatic(seg) != nil {
			return &ConflictError{Path: joinPath(parent.path, seg)}
		}
		if parent.dynamic != nil && parent.dynamic.segment == seg {
			return &ConflictError{Path: joinPath(parent.path, seg)}
		}
		n = &node{segment: seg, path: joinPath(parent.path, seg)}
		parent.static = append(parent.static, n)
	} else {
		if parent.dynamic != nil {
			return &ConflictError{Path: joinPath(parent.path, seg)}
		}
		n = &node{segment: seg, param: param, path: joinPath(parent.path, seg)}
		parent.dynamic = n
		// Full slice expression so sibling branches never share a
		// backing array.
		params = append(params[:len(params):len(params)], param)
	}

	if d.Endpoint != nil {
		if err := b.addLeaf(n, d.Endpoint, params); err != nil {
			return err
		}
	}
	for _, child := range d.Children {
		if err := b.addDir(n, child, params); err != nil {
			return err
		}
	}
	return nil
}

// addLeaf registers one Route per verb the endpoint's handler implements.
func (b *builder) addLeaf(n *node, ep *Endpoint, params []string) error {
	if ep.Handler == nil {
		return &ConfigError{Path: n.path, Reason: "endpoint without handler"}
	}

	var tag string
	if t, ok := ep.Handler.(Tagger); ok {
		tag = t.Tag()
	}

	registered := 0
	for _, method := range verbOrder {
		if !implements(ep.Handler, method) {
			continue
		}
		registered++

		if n.routes == nil {
			n.routes = make(map[string]*Route)
		}
		if _, dup := n.routes[method]; dup {
			return &ConflictError{Path: n.path, Method: method}
		}

		rt := &Route{
			Method:     method,
			Path:       n.path,
			Params:     ep.Params[method],
			Behaviors:  ep.Behaviors[method],
			Tag:        tag,
			handler:    ep.Handler,
			paramNames: params,
		}
		if err := b.checkRoute(rt); err != nil {
			return err
		}
		n.routes[method] = rt
		b.index[n.path] = append(b.index[n.path], rt)
	}

	if registered == 0 {
		return &ConfigError{Path: n.path, Reason: "handler implements no verb"}
	}
	return nil
}

// checkRoute validates parameter specs and behavior metadata for one route.
func (b *builder) checkRoute(rt *Route) error {
	seen := make(map[string]bool, len(rt.Params))
	for _, spec := range rt.Params {
		if err := spec.check(); err != nil {
			return &ConfigError{Path: rt.Path, Method: rt.Method, Reason: err.Error()}
		}
		key := string(spec.Source) + ":" + spec.Name
		if seen[key] {
			return &ConfigError{Path: rt.Path, Method: rt.Method, Reason: fmt.Sprintf("duplicate %s parameter %q", spec.Source, spec.Name)}
		}
		seen[key] = true

		if spec.Source == SourcePath && !contains(rt.paramNames, spec.Name) {
			return &ConfigError{Path: rt.Path, Method: rt.Method, Reason: fmt.Sprintf("path parameter %q has no matching [%s] segment", spec.Name, spec.Name)}
		}
	}
	return checkBehaviors(rt.Method, rt.Path, rt.Behaviors, b.cfg.cacheableSet())
}

// Lookup resolves an inbound (method, path) to its Route and the captured
// path parameters. At each level a static child is tried before the dynamic
// child; the first full-depth match wins, so a static leaf always shadows a
// dynamic sibling for paths they both cover.
func (t *Tree) Lookup(method, path string) (*Route, map[string]string, error) {
	segments := splitPath(path)

	leaf := match(t.root, segments)
	if leaf == nil {
		return nil, nil, &NotFoundError{Path: path}
	}

	rt, ok := leaf.routes[method]
	if !ok {
		allowed := make([]string, 0, len(leaf.routes))
		for _, m := range verbOrder {
			if _, ok := leaf.routes[m]; ok {
				allowed = append(allowed, m)
			}
		}
		return nil, nil, &MethodNotAllowedError{Path: path, Method: method, Allowed: allowed}
	}

	captured := make(map[string]string, len(rt.paramNames))
	captureParams(t.root, segments, captured)
	return rt, captured, nil
}

// match walks segments depth-first, static before dynamic, backtracking to
// the dynamic sibling when the static branch dead-ends.
func match(n *node, segments []string) *node {
	if len(segments) == 0 {
		if n.routes != nil {
			return n
		}
		return nil
	}

	if c := n.findStatic(segments[0]); c != nil {
		if leaf := match(c, segments[1:]); leaf != nil {
			return leaf
		}
	}
	if n.dynamic != nil {
		if leaf := match(n.dynamic, segments[1:]); leaf != nil {
			return leaf
		}
	}
	return nil
}

// captureParams re-walks the matched branch recording dynamic captures.
func captureParams(n *node, segments []string, out map[string]string) bool {
	if len(segments) == 0 {
		return n.routes != nil
	}
	if c := n.findStatic(segments[0]); c != nil {
		if captureParams(c, segments[1:], out) {
			return true
		}
	}
	if n.dynamic != nil {
		if captureParams(n.dynamic, segments[1:], out) {
			out[n.dynamic.param] = segments[0]
			return true
		}
	}
	return false
}

// Routes returns the flat path→route index, ordered by path then verb.
func (t *Tree) Routes() []*Route {
	paths := make([]string, 0, len(t.index))
	for p := range t.index {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []*Route
	for _, p := range paths {
		out = append(out, t.index[p]...)
	}
	return out
}

// RoutesFor returns the routes registered at an exact declared path, such
// as "/users/[id]".
func (t *Tree) RoutesFor(path string) []*Route {
	return append([]*Route(nil), t.index[path]...)
}

// parseSegment classifies a directory name as static or dynamic. The
// dynamic form is a bracketed identifier: "[id]".
func parseSegment(name string) (segment, param string, err error) {
	if name == "" {
		return "", "", fmt.Errorf("empty segment name")
	}
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		param = name[1 : len(name)-1]
		if param == "" {
			return "", "", fmt.Errorf("segment %q: empty parameter name", name)
		}
		if strings.ContainsAny(param, "[]/") {
			return "", "", fmt.Errorf("segment %q: invalid parameter name", name)
		}
		return name, param, nil
	}
	if strings.ContainsAny(name, "[]/") {
		return "", "", fmt.Errorf("segment %q: brackets and slashes are reserved", name)
	}
	return name, "", nil
}

func joinPath(parent, segment string) string {
	if parent == "/" {
		return "/" + segment
	}
	return parent + "/" + segment
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
