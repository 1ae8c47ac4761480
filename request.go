package reroute

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// RequestContext is the uniform read-only view of one inbound request that
// the hosting adapter supplies. The resolver only reads from it; it never
// mutates it.
type RequestContext interface {
	// Query returns a query-string entry by exact name.
	Query(name string) (string, bool)
	// PathValue returns a captured path parameter by exact name.
	PathValue(name string) (string, bool)
	// Header returns a header value; lookup is case-insensitive.
	Header(name string) (string, bool)
	// Cookie returns a cookie value; lookup is case-insensitive.
	Cookie(name string) (string, bool)
	// Form returns a parsed form field by exact name.
	Form(name string) (string, bool)
	// File returns an uploaded file handle by exact field name.
	File(name string) (*Upload, bool)
	// Body returns the raw request body bytes.
	Body() ([]byte, error)
	// Identity returns the caller identity established by the adapter.
	Identity() Identity
	// RemoteAddr returns the client address, used for rate-limit keying
	// when the caller is anonymous.
	RemoteAddr() string
}

// Upload is an uploaded file handle. Content is opened lazily so a request
// carrying files the handler never reads costs no descriptors.
type Upload struct {
	Filename string
	Size     int64
	Header   *multipart.FileHeader

	file multipart.File
}

// Open returns a reader for the uploaded file contents. The handle stays
// cached on the Upload; Close releases it.
func (u *Upload) Open() (io.ReadCloser, error) {
	if u.file != nil {
		return u.file, nil
	}
	if u.Header == nil {
		return nil, fmt.Errorf("no file header")
	}
	f, err := u.Header.Open()
	if err != nil {
		return nil, err
	}
	u.file = f
	return f, nil
}

// Close releases the handle left cached by Open. Closing an unopened
// Upload is a no-op, and the Upload can be reopened afterward.
func (u *Upload) Close() error {
	if u.file == nil {
		return nil
	}
	f := u.file
	u.file = nil
	return f.Close()
}

// Request is the concrete RequestContext used by the HTTP adapter and by
// tests. Fields are set once before resolution; the zero value is an empty
// request.
type Request struct {
	QueryValues url.Values
	PathParams  map[string]string
	Headers     http.Header
	Cookies     map[string]string
	FormValues  url.Values
	Files       map[string]*Upload
	RawBody     []byte
	Caller      Identity
	Remote      string
}

// Query implements RequestContext.
func (r *Request) Query(name string) (string, bool) {
	if r.QueryValues == nil {
		return "", false
	}
	vs, ok := r.QueryValues[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// PathValue implements RequestContext.
func (r *Request) PathValue(name string) (string, bool) {
	v, ok := r.PathParams[name]
	return v, ok
}

// Header implements RequestContext. Lookup is case-insensitive via
// canonical MIME header form.
func (r *Request) Header(name string) (string, bool) {
	if r.Headers == nil {
		return "", false
	}
	vs := r.Headers.Values(name)
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Cookie implements RequestContext with case-insensitive name lookup.
func (r *Request) Cookie(name string) (string, bool) {
	for k, v := range r.Cookies {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Form implements RequestContext.
func (r *Request) Form(name string) (string, bool) {
	if r.FormValues == nil {
		return "", false
	}
	vs, ok := r.FormValues[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// File implements RequestContext.
func (r *Request) File(name string) (*Upload, bool) {
	u, ok := r.Files[name]
	return u, ok
}

// Body implements RequestContext.
func (r *Request) Body() ([]byte, error) { return r.RawBody, nil }

// Identity implements RequestContext.
func (r *Request) Identity() Identity { return r.Caller }

// RemoteAddr implements RequestContext.
func (r *Request) RemoteAddr() string { return r.Remote }

// Close releases every upload handle opened during the request. The HTTP
// adapter calls it once dispatch returns.
func (r *Request) Close() error {
	var first error
	for _, u := range r.Files {
		if err := u.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// maxMultipartMemory bounds in-memory multipart form parsing (32 MB).
const maxMultipartMemory = 32 << 20

// FromHTTP builds a Request from an *http.Request and the path parameters
// captured by Tree.Lookup. The body is read eagerly (bounded by maxBody
// when positive) so resolution stays a pure read-then-transform step.
func FromHTTP(r *http.Request, pathParams map[string]string, id Identity, maxBody int64) (*Request, error) {
	req := &Request{
		QueryValues: r.URL.Query(),
		PathParams:  pathParams,
		Headers:     r.Header,
		Cookies:     make(map[string]string),
		Caller:      id,
		Remote:      r.RemoteAddr,
	}

	for _, c := range r.Cookies() {
		req.Cookies[c.Name] = c.Value
	}

	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		req.FormValues = r.MultipartForm.Value
		req.Files = make(map[string]*Upload)
		for name, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			h := headers[0]
			req.Files[name] = &Upload{Filename: h.Filename, Size: h.Size, Header: h}
		}
	case strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		req.FormValues = r.PostForm
	default:
		if r.Body != nil {
			body := io.Reader(r.Body)
			if maxBody > 0 {
				body = io.LimitReader(body, maxBody)
			}
			raw, err := io.ReadAll(body)
			if err != nil {
				return nil, fmt.Errorf("read body: %w", err)
			}
			req.RawBody = raw
		}
	}

	return req, nil
}
