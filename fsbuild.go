package reroute

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
)

// BuildFS discovers the directory tree from a filesystem and builds the
// route table from it. A directory containing a file named marker (for
// example "endpoint.json") is a leaf; its endpoint definition is looked up
// in endpoints by the directory's route path ("/" for the root). Directory
// names follow the same rules as Dir names: "[param]" is dynamic, anything
// else is static.
//
// The walk is purely structural: marker file contents are ignored, the
// endpoints map is the source of handler wiring. A marker with no matching
// endpoints entry fails the build, as does an endpoints entry no marker
// claims.
func BuildFS(fsys fs.FS, marker string, endpoints map[string]*Endpoint, opts ...BuildOption) (*Tree, error) {
	root := &Dir{Name: ""}
	claimed := make(map[string]bool, len(endpoints))

	if err := walkFS(fsys, ".", "/", marker, root, endpoints, claimed); err != nil {
		return nil, err
	}

	var missing []string
	for p := range endpoints {
		if !claimed[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("endpoints with no %s marker on disk: %v", marker, missing)
	}

	return Build(root, opts...)
}

func walkFS(fsys fs.FS, dir, routePath, marker string, node *Dir, endpoints map[string]*Endpoint, claimed map[string]bool) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			if entry.Name() != marker {
				continue
			}
			ep, ok := endpoints[routePath]
			if !ok {
				return fmt.Errorf("%s at %s has no endpoint definition", marker, routePath)
			}
			node.Endpoint = ep
			claimed[routePath] = true
			continue
		}

		child := &Dir{Name: entry.Name()}
		node.Children = append(node.Children, child)

		childRoute := routePath
		if childRoute == "/" {
			childRoute = "/" + entry.Name()
		} else {
			childRoute = childRoute + "/" + entry.Name()
		}
		if err := walkFS(fsys, path.Join(dir, entry.Name()), childRoute, marker, child, endpoints, claimed); err != nil {
			return err
		}
	}
	return nil
}
