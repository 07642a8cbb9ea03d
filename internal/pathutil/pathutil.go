// Package pathutil normalizes virtual filesystem paths: it canonicalizes
// separators, collapses "." and ".." segments, and rejects paths that would
// traverse above the filesystem root.
package pathutil

import (
	"path"
	"strings"

	"github.com/memfsdev/memfs/internal/mfserrors"
)

// Normalize converts path to its canonical absolute form ("/" as the
// separator, no trailing slash except for the root itself, "." and ".."
// segments resolved).
//
// Normalize simulates resolution from the root while scanning segments: each
// non-empty, non-"." segment increases the simulated depth by one, and each
// ".." segment decreases it by one. If the simulated depth would go negative
// — i.e. the path tries to climb above "/" — Normalize returns a
// *mfserrors.PathTraversalError without resolving the path any further. This
// mirrors resolving the path one segment at a time from the root, rather
// than trusting path.Clean/filepath.Clean's ".." collapsing, which would
// silently absorb an out-of-bounds climb for a relative input.
func Normalize(p string) (string, error) {
	converted := strings.ReplaceAll(p, "\\", "/")
	if converted == "" {
		return "/", nil
	}

	depth := 0
	for _, part := range strings.Split(converted, "/") {
		switch part {
		case "..":
			depth--
			if depth < 0 {
				return "", &mfserrors.PathTraversalError{Path: p}
			}
		case "", ".":
			// no-op
		default:
			depth++
		}
	}

	if !strings.HasPrefix(converted, "/") {
		converted = "/" + converted
	}

	return path.Clean(converted), nil
}

// Join concatenates base and elems with "/" separators and normalizes the
// result, so callers building child paths (e.g. "dir"+"/"+"name") get the
// same traversal checking as any externally supplied path. Unlike path.Join,
// Join does not pre-collapse ".." segments itself — that is Normalize's job,
// and doing it twice would let a ".." that climbs above the root slip past
// undetected before Normalize ever sees it.
func Join(base string, elems ...string) (string, error) {
	all := append([]string{base}, elems...)
	return Normalize(strings.Join(all, "/"))
}

// Split returns the normalized parent directory and base name of p, the way
// path.Split does but operating on a pre-normalized path. The root "/" has
// itself as parent and an empty base name.
func Split(p string) (dir, base string, err error) {
	norm, err := Normalize(p)
	if err != nil {
		return "", "", err
	}
	if norm == "/" {
		return "/", "", nil
	}
	idx := strings.LastIndexByte(norm, '/')
	dir = norm[:idx]
	if dir == "" {
		dir = "/"
	}
	base = norm[idx+1:]
	return dir, base, nil
}

// Segments splits a normalized non-root path into its component names, e.g.
// "/a/b/c" -> ["a", "b", "c"]. The root path yields an empty slice.
func Segments(normalized string) []string {
	if normalized == "/" {
		return nil
	}
	trimmed := strings.TrimPrefix(normalized, "/")
	return strings.Split(trimmed, "/")
}

