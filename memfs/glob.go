package memfs

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/memfsdev/memfs/internal/node"
)

// Glob returns a sorted list of absolute paths matching pattern. Supported
// wildcards are "*", "?", and "[seq]" (single path segment, shell-style, via
// path/filepath.Match), plus "**" as a whole segment meaning "zero or more
// directory levels". A relative pattern is rooted at "/". No match returns
// an empty slice, never an error.
func (fs *FS) Glob(pattern string) []string {
	normalized := strings.ReplaceAll(pattern, "\\", "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	var parts []string
	for _, p := range strings.Split(normalized, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	var results []string
	fs.globMatch(fs.nodes.Root(), "/", parts, 0, &results)
	sort.Strings(results)
	return results
}

// globMatch must be called with fs.mu held.
func (fs *FS) globMatch(dir *node.Directory, currentPath string, parts []string, idx int, results *[]string) {
	if idx >= len(parts) {
		return
	}
	part := parts[idx]
	isLast := idx == len(parts)-1

	if part == "**" {
		if idx+1 >= len(parts) {
			// "**" at the end of the pattern matches everything below
			// dir; collectAllPaths already recurses through every
			// nested directory, so nothing else needs to run here.
			fs.collectAllPaths(dir, currentPath, results)
			return
		}

		// Zero levels: try the remaining pattern directly against dir.
		fs.globMatch(dir, currentPath, parts, idx+1, results)
		// One or more levels: only directories can supply an additional
		// level, so recurse into each at the same idx to give "**" another
		// chance to absorb it.
		for name, id := range dir.Children {
			if childDir, ok := fs.nodes.Get(id).(*node.Directory); ok {
				childPath := joinForError(currentPath, name)
				fs.globMatch(childDir, childPath, parts, idx, results)
			}
		}
		return
	}

	for name, id := range dir.Children {
		if !matchSegment(part, name) {
			continue
		}
		childPath := joinForError(currentPath, name)
		child := fs.nodes.Get(id)
		if isLast {
			*results = append(*results, childPath)
			continue
		}
		if childDir, ok := child.(*node.Directory); ok {
			fs.globMatch(childDir, childPath, parts, idx+1, results)
		}
	}
}

// collectAllPaths appends every path in the subtree rooted at dir,
// depth-first. Caller must hold fs.mu.
func (fs *FS) collectAllPaths(dir *node.Directory, currentPath string, results *[]string) {
	for name, id := range dir.Children {
		childPath := joinForError(currentPath, name)
		*results = append(*results, childPath)
		if childDir, ok := fs.nodes.Get(id).(*node.Directory); ok {
			fs.collectAllPaths(childDir, childPath, results)
		}
	}
}

func matchSegment(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}
