package memfs

import (
	"fmt"

	"github.com/memfsdev/memfs/internal/mfserrors"
	"github.com/memfsdev/memfs/internal/node"
)

// MkDir creates path as a directory, creating any missing intermediate
// directories along the way. If path already exists as a directory, MkDir
// succeeds when existOk is true and fails with ErrExists otherwise. If path
// exists as a file, MkDir always fails.
func (fs *FS) MkDir(path string, existOk bool) error {
	npath, err := normalize(path)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch existing := fs.resolvePath(npath).(type) {
	case *node.Directory:
		if !existOk {
			return fmt.Errorf("directory exists: %q: %w", path, mfserrors.ErrExists)
		}
		return nil
	case *node.File:
		return fmt.Errorf("file exists at path: %q: %w", path, mfserrors.ErrExists)
	}

	_, err = fs.makeDirs(npath, nil)
	if err != nil {
		return err
	}
	fs.reportMetrics()
	return nil
}

// makeDirs creates every missing directory component of npath, recording
// each newly created directory's path in createdDirs (if non-nil) for a
// caller that needs to roll them back on a later failure. Caller must hold
// fs.mu.
func (fs *FS) makeDirs(npath string, createdDirs *[]string) (*node.Directory, error) {
	current := fs.nodes.Root()
	currentPath := ""
	for _, part := range splitSegments(npath) {
		nextPath := currentPath + "/" + part
		if id, ok := current.Children[part]; ok {
			child, ok := fs.nodes.Get(id).(*node.Directory)
			if !ok {
				return nil, fmt.Errorf("a file exists at path component %q: %w", part, mfserrors.ErrExists)
			}
			current = child
		} else {
			newDir, err := fs.nodes.AllocDirectory(fs.clock.Now())
			if err != nil {
				return nil, err
			}
			current.Children[part] = newDir.NodeID()
			current = newDir
			if createdDirs != nil {
				*createdDirs = append(*createdDirs, nextPath)
			}
		}
		currentPath = nextPath
	}
	return current, nil
}

// rollbackCreatedDirs removes, in reverse creation order, any directory in
// createdDirs that is still empty and still attached at its original
// position. Caller must hold fs.mu.
func (fs *FS) rollbackCreatedDirs(createdDirs []string) {
	for i := len(createdDirs) - 1; i >= 0; i-- {
		dpath := createdDirs[i]
		dir, ok := fs.resolvePath(dpath).(*node.Directory)
		if !ok || len(dir.Children) > 0 {
			continue
		}
		parent, name, ok := fs.resolveParent(dpath)
		if !ok || parent.Children[name] != dir.NodeID() {
			continue
		}
		delete(parent.Children, name)
		fs.nodes.Delete(dir.NodeID())
	}
}

// Rename detaches src from its parent and attaches it under dst's parent
// with dst's base name. src must exist, dst must not, dst's parent must
// exist, and no file in the src subtree may be open. The root directory may
// not be renamed.
func (fs *FS) Rename(src, dst string) error {
	return fs.renameOrMove(src, dst, false)
}

// Move behaves like Rename, except it auto-creates any missing intermediate
// directories for dst.
func (fs *FS) Move(src, dst string) error {
	return fs.renameOrMove(src, dst, true)
}

func (fs *FS) renameOrMove(src, dst string, autoCreateParents bool) error {
	nsrc, err := normalize(src)
	if err != nil {
		return err
	}
	ndst, err := normalize(dst)
	if err != nil {
		return err
	}
	if nsrc == "/" {
		return fmt.Errorf("cannot rename the root directory: %w", mfserrors.ErrInvalidArgument)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	srcNode := fs.resolvePath(nsrc)
	if srcNode == nil {
		return fmt.Errorf("no such file or directory: %q: %w", src, mfserrors.ErrNotFound)
	}
	if fs.resolvePath(ndst) != nil {
		return fmt.Errorf("destination already exists: %q: %w", dst, mfserrors.ErrExists)
	}

	dstDirPath, dstName, err := splitPath(ndst)
	if err != nil {
		return err
	}
	if autoCreateParents && fs.resolvePath(dstDirPath) == nil {
		if _, err := fs.makeDirs(dstDirPath, nil); err != nil {
			return err
		}
	}
	dstParent, _, ok := fs.resolveParent(ndst)
	if !ok {
		return fmt.Errorf("destination parent does not exist: %q: %w", dst, mfserrors.ErrNotFound)
	}

	if err := fs.assertNoOpenHandles(srcNode, nsrc); err != nil {
		return err
	}

	srcParent, srcName, ok := fs.resolveParent(nsrc)
	if !ok {
		return fmt.Errorf("no such file or directory: %q: %w", src, mfserrors.ErrNotFound)
	}
	delete(srcParent.Children, srcName)
	dstParent.Children[dstName] = srcNode.NodeID()

	fs.reportMetrics()
	return nil
}

// assertNoOpenHandles walks n (located at pathForError for error messages)
// and fails with ErrBlocking if any descendant file currently has an open
// handle. Caller must hold fs.mu.
func (fs *FS) assertNoOpenHandles(n node.Node, pathForError string) error {
	switch t := n.(type) {
	case *node.File:
		if t.Lock.IsLocked() {
			return fmt.Errorf("file is open: %q: %w", pathForError, mfserrors.ErrBlocking)
		}
	case *node.Directory:
		for name, id := range t.Children {
			child := fs.nodes.Get(id)
			if err := fs.assertNoOpenHandles(child, joinForError(pathForError, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinForError(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// Remove deletes the file at path. path must exist, must not be a
// directory, and must not currently be open.
func (fs *FS) Remove(path string) error {
	npath, err := normalize(path)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := fs.resolvePath(npath)
	if n == nil {
		return fmt.Errorf("no such file: %q: %w", path, mfserrors.ErrNotFound)
	}
	fnode, ok := n.(*node.File)
	if !ok {
		return fmt.Errorf("is a directory: %q: %w", path, mfserrors.ErrIsDir)
	}
	if fnode.Lock.IsLocked() {
		return fmt.Errorf("file is open: %q: %w", path, mfserrors.ErrBlocking)
	}

	size := fnode.Storage.QuotaUsage()
	parent, name, ok := fs.resolveParent(npath)
	if !ok {
		return fmt.Errorf("no such file: %q: %w", path, mfserrors.ErrNotFound)
	}
	delete(parent.Children, name)
	fs.nodes.Delete(fnode.NodeID())
	fs.quota.Release(size)

	fs.reportMetrics()
	return nil
}

// RmTree recursively removes the directory at path and everything beneath
// it. path must exist, must be a directory, must not be the root, and no
// descendant file may be open. The quota released by the whole subtree is
// released in a single step.
func (fs *FS) RmTree(path string) error {
	npath, err := normalize(path)
	if err != nil {
		return err
	}
	if npath == "/" {
		return fmt.Errorf("cannot remove the root directory: %w", mfserrors.ErrInvalidArgument)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := fs.resolvePath(npath)
	if n == nil {
		return fmt.Errorf("no such directory: %q: %w", path, mfserrors.ErrNotFound)
	}
	dir, ok := n.(*node.Directory)
	if !ok {
		return fmt.Errorf("not a directory: %q: %w", path, mfserrors.ErrNotDir)
	}

	if err := fs.assertNoOpenHandles(dir, npath); err != nil {
		return err
	}

	total := fs.calcSubtreeQuota(dir)
	if parent, name, ok := fs.resolveParent(npath); ok {
		delete(parent.Children, name)
	}
	fs.removeSubtree(dir)
	fs.quota.Release(total)

	fs.reportMetrics()
	return nil
}

func (fs *FS) calcSubtreeQuota(n node.Node) int64 {
	switch t := n.(type) {
	case *node.File:
		return t.Storage.QuotaUsage()
	case *node.Directory:
		var total int64
		for _, id := range t.Children {
			total += fs.calcSubtreeQuota(fs.nodes.Get(id))
		}
		return total
	}
	return 0
}

func (fs *FS) removeSubtree(n node.Node) {
	if dir, ok := n.(*node.Directory); ok {
		for _, id := range dir.Children {
			fs.removeSubtree(fs.nodes.Get(id))
		}
		dir.Children = make(map[string]node.ID)
	}
	fs.nodes.Delete(n.NodeID())
}
