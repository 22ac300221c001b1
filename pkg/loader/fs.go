package loader

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// FS loads references from a file system, typically the pages directory.
type FS struct {
	fsys fs.FS
}

// NewFS creates an FS loader rooted at fsys.
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

// Load implements Loader. Leading slashes and query strings are ignored.
func (l *FS) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := ref
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = path.Clean("/" + name)[1:]
	if name == "" || !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid path %q", ref)
	}

	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
