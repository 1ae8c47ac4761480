package reroute_test

import (
	"net/http"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/reroute"
)

func TestBuildFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"health/endpoint.json":            {Data: []byte("{}")},
		"users/endpoint.json":             {Data: []byte("{}")},
		"users/me/endpoint.json":          {Data: []byte("{}")},
		"users/[id]/endpoint.json":        {Data: []byte("{}")},
		"users/[id]/notes.txt":            {Data: []byte("not a marker")},
		"users/[id]/posts/endpoint.json":  {Data: []byte("{}")},
	}

	endpoints := map[string]*reroute.Endpoint{
		"/health":           getEndpoint(nil, nil),
		"/users":            getEndpoint(nil, nil),
		"/users/me":         getEndpoint(nil, nil),
		"/users/[id]":       getEndpoint(nil, []reroute.ParamSpec{reroute.PathParam("id", reroute.KindInt)}),
		"/users/[id]/posts": getEndpoint(nil, nil),
	}

	tree, err := reroute.BuildFS(fsys, "endpoint.json", endpoints)
	require.NoError(t, err)

	rt, params, err := tree.Lookup(http.MethodGet, "/users/42/posts")
	require.NoError(t, err)
	assert.Equal(t, "/users/[id]/posts", rt.Path)
	assert.Equal(t, map[string]string{"id": "42"}, params)

	rt, _, err = tree.Lookup(http.MethodGet, "/users/me")
	require.NoError(t, err)
	assert.Equal(t, "/users/me", rt.Path)

	assert.Len(t, tree.Routes(), 5)
}

func TestBuildFS_markerWithoutEndpoint(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"orphan/endpoint.json": {Data: []byte("{}")},
	}

	_, err := reroute.BuildFS(fsys, "endpoint.json", map[string]*reroute.Endpoint{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/orphan")
	assert.Contains(t, err.Error(), "no endpoint definition")
}

func TestBuildFS_endpointWithoutMarker(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"users/endpoint.json": {Data: []byte("{}")},
	}

	endpoints := map[string]*reroute.Endpoint{
		"/users":   getEndpoint(nil, nil),
		"/ghost":   getEndpoint(nil, nil),
		"/phantom": getEndpoint(nil, nil),
	}

	_, err := reroute.BuildFS(fsys, "endpoint.json", endpoints)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/ghost")
	assert.Contains(t, err.Error(), "/phantom")
}

func TestBuildFS_directoriesWithoutMarkersAreNotRoutes(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"api/v1/users/endpoint.json": {Data: []byte("{}")},
	}

	tree, err := reroute.BuildFS(fsys, "endpoint.json", map[string]*reroute.Endpoint{
		"/api/v1/users": getEndpoint(nil, nil),
	})
	require.NoError(t, err)

	_, _, err = tree.Lookup(http.MethodGet, "/api/v1")
	var nf *reroute.NotFoundError
	require.ErrorAs(t, err, &nf)

	_, _, err = tree.Lookup(http.MethodGet, "/api/v1/users")
	require.NoError(t, err)
}

func TestBuildFS_propagatesBuildConflicts(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"users/[id]/endpoint.json":   {Data: []byte("{}")},
		"users/[name]/endpoint.json": {Data: []byte("{}")},
	}

	_, err := reroute.BuildFS(fsys, "endpoint.json", map[string]*reroute.Endpoint{
		"/users/[id]":   getEndpoint(nil, []reroute.ParamSpec{reroute.PathParam("id", reroute.KindString)}),
		"/users/[name]": getEndpoint(nil, []reroute.ParamSpec{reroute.PathParam("name", reroute.KindString)}),
	})
	var conflict *reroute.ConflictError
	require.ErrorAs(t, err, &conflict)
}
