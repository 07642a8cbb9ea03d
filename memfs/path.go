package memfs

import "github.com/memfsdev/memfs/internal/pathutil"

// normalize wraps pathutil.Normalize so the rest of the package has one
// call site to change if path handling ever needs filesystem-specific
// extensions.
func normalize(p string) (string, error) {
	return pathutil.Normalize(p)
}

// splitSegments returns npath's component names, assuming npath is already
// normalized.
func splitSegments(npath string) []string {
	return pathutil.Segments(npath)
}

// splitPath returns the normalized parent directory and base name of an
// already-normalized npath. The root path has parent "" and empty base.
func splitPath(npath string) (dir, base string, err error) {
	if npath == "/" {
		return "", "", nil
	}
	return pathutil.Split(npath)
}
