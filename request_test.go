package reroute_test

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/reroute"
)

func TestFromHTTP_basics(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/users/7?limit=10", nil)
	r.Header.Set("X-Trace", "abc")
	r.AddCookie(&http.Cookie{Name: "session", Value: "tok"})

	req, err := reroute.FromHTTP(r, map[string]string{"id": "7"}, reroute.Identity{Subject: "ada"}, 0)
	require.NoError(t, err)

	v, ok := req.Query("limit")
	require.True(t, ok)
	assert.Equal(t, "10", v)

	v, ok = req.PathValue("id")
	require.True(t, ok)
	assert.Equal(t, "7", v)

	v, ok = req.Header("x-trace")
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	v, ok = req.Cookie("SESSION")
	require.True(t, ok)
	assert.Equal(t, "tok", v)

	assert.Equal(t, "ada", req.Identity().Subject)
}

func TestFromHTTP_rawBody(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/items", strings.NewReader(`{"a":1}`))
	r.Header.Set("Content-Type", "application/json")

	req, err := reroute.FromHTTP(r, nil, reroute.Identity{}, 0)
	require.NoError(t, err)

	body, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))
}

func TestFromHTTP_bodyCap(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/items", strings.NewReader(strings.Repeat("x", 100)))

	req, err := reroute.FromHTTP(r, nil, reroute.Identity{}, 10)
	require.NoError(t, err)

	body, err := req.Body()
	require.NoError(t, err)
	assert.Len(t, body, 10)
}

func TestFromHTTP_urlencodedForm(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/items", strings.NewReader("name=ada&role=admin"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req, err := reroute.FromHTTP(r, nil, reroute.Identity{}, 0)
	require.NoError(t, err)

	v, ok := req.Form("name")
	require.True(t, ok)
	assert.Equal(t, "ada", v)
}

func TestFromHTTP_multipart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("caption", "holiday"))

	fw, err := w.CreateFormFile("photo", "pic.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("image-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest("POST", "/upload", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())

	req, err := reroute.FromHTTP(r, nil, reroute.Identity{}, 0)
	require.NoError(t, err)

	v, ok := req.Form("caption")
	require.True(t, ok)
	assert.Equal(t, "holiday", v)

	upload, ok := req.File("photo")
	require.True(t, ok)
	assert.Equal(t, "pic.png", upload.Filename)
	assert.Equal(t, int64(len("image-bytes")), upload.Size)

	f, err := upload.Open()
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(content))
	require.NoError(t, req.Close())
}

func TestRequest_closeReleasesUploads(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("doc", "a.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("contents"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest("POST", "/upload", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())

	req, err := reroute.FromHTTP(r, nil, reroute.Identity{}, 0)
	require.NoError(t, err)

	upload, ok := req.File("doc")
	require.True(t, ok)

	_, err = upload.Open()
	require.NoError(t, err)
	require.NoError(t, req.Close())

	// A released upload reopens from its header.
	f, err := upload.Open()
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "contents", string(content))

	require.NoError(t, upload.Close())
	require.NoError(t, upload.Close())
}

func TestUpload_openWithoutHeader(t *testing.T) {
	t.Parallel()

	_, err := (&reroute.Upload{Filename: "ghost.txt"}).Open()
	assert.Error(t, err)
}
