package reroute

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// IdentityFunc establishes the caller identity for one request. The default
// reads the X-Subject and X-Roles headers, which suits deployments behind
// an authenticating proxy; real deployments usually supply their own.
type IdentityFunc func(r *http.Request) Identity

// MountOption configures Mount.
type MountOption func(*mount)

// WithIdentity sets the identity function.
func WithIdentity(fn IdentityFunc) MountOption {
	return func(m *mount) { m.identity = fn }
}

// WithMiddleware wraps the mounted handler in middleware, first listed
// outermost.
func WithMiddleware(mws ...Middleware) MountOption {
	return func(m *mount) { m.middlewares = append(m.middlewares, mws...) }
}

// WithMaxBody overrides the request body size cap.
func WithMaxBody(n int64) MountOption {
	return func(m *mount) { m.maxBody = n }
}

type mount struct {
	tree        *Tree
	dispatcher  *Dispatcher
	identity    IdentityFunc
	maxBody     int64
	logger      *slog.Logger
	middlewares []Middleware
}

// Mount exposes a built route tree as an http.Handler: lookup, request
// capture, dispatch, JSON response. Errors render as RFC 9457 problem
// details with the status their type carries.
func Mount(tree *Tree, d *Dispatcher, opts ...MountOption) http.Handler {
	m := &mount{
		tree:       tree,
		dispatcher: d,
		identity:   headerIdentity,
		maxBody:    d.Engine().cfg.MaxBodyBytes,
		logger:     d.Engine().logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	var h http.Handler = http.HandlerFunc(m.serveHTTP)
	for i := len(m.middlewares) - 1; i >= 0; i-- {
		h = m.middlewares[i](h)
	}
	return h
}

func (m *mount) serveHTTP(w http.ResponseWriter, r *http.Request) {
	rt, captured, err := m.tree.Lookup(r.Method, r.URL.Path)
	if err != nil {
		m.writeError(w, r, err)
		return
	}

	rc, err := FromHTTP(r, captured, m.identity(r), m.maxBody)
	if err != nil {
		m.writeError(w, r, &ProblemDetail{
			Title:  "Bad Request",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
		return
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			m.logger.WarnContext(r.Context(), "close uploads", "error", cerr)
		}
	}()

	resp, err := m.dispatcher.Dispatch(r.Context(), rt, rc)
	if err != nil {
		m.writeError(w, r, err)
		return
	}

	m.writeJSON(w, resp)
}

func (m *mount) writeJSON(w http.ResponseWriter, resp any) {
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if raw, ok := resp.(json.RawMessage); ok {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // nothing to do about a failed response write
		w.Write(raw)
		return
	}

	buf, err := json.Marshal(resp)
	if err != nil {
		m.logger.Error("encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // nothing to do about a failed response write
	w.Write(buf)
}

// writeError renders an error as an RFC 9457 problem details response.
// Rate-limit and method-not-allowed errors carry their advisory headers.
func (m *mount) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := ErrorStatus(err)

	var mna *MethodNotAllowedError
	if errors.As(err, &mna) {
		w.Header().Set("Allow", strings.Join(mna.Allowed, ", "))
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		secs := int(rle.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", fmt.Sprint(secs))
	}

	problem := &ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
	}
	if status < http.StatusInternalServerError {
		problem.Detail = err.Error()
	} else {
		m.logger.ErrorContext(r.Context(), "request error",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	var be *BodyError
	if errors.As(err, &be) {
		problem.Errors = be.Fields
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing to do about a failed response write
	json.NewEncoder(w).Encode(problem)
}

// headerIdentity is the default IdentityFunc: subject from X-Subject, roles
// comma-separated in X-Roles.
func headerIdentity(r *http.Request) Identity {
	id := Identity{Subject: r.Header.Get("X-Subject")}
	if roles := r.Header.Get("X-Roles"); roles != "" {
		for _, role := range strings.Split(roles, ",") {
			if role = strings.TrimSpace(role); role != "" {
				id.Roles = append(id.Roles, role)
			}
		}
	}
	return id
}
