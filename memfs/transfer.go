package memfs

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/memfsdev/memfs/internal/mfserrors"
	"github.com/memfsdev/memfs/internal/node"
	"github.com/memfsdev/memfs/internal/storage"
)

// ExportAsBytes returns a copy of the file at path's contents. The file is
// read-locked only while the copy is made. If maxSize is positive and the
// file exceeds it, ExportAsBytes fails without copying. The returned slice
// lives outside quota accounting.
func (fs *FS) ExportAsBytes(path string, maxSize int64) ([]byte, error) {
	npath, err := normalize(path)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	n := fs.resolvePath(npath)
	fnode, ok := n.(*node.File)
	if n == nil {
		fs.mu.Unlock()
		return nil, fmt.Errorf("no such file: %q: %w", path, mfserrors.ErrNotFound)
	}
	if !ok {
		fs.mu.Unlock()
		return nil, fmt.Errorf("is a directory: %q: %w", path, mfserrors.ErrIsDir)
	}
	if err := fnode.Lock.AcquireRead(Infinite); err != nil {
		fs.mu.Unlock()
		return nil, err
	}
	fs.mu.Unlock()

	defer fnode.Lock.ReleaseRead()

	size := fnode.Storage.Size()
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("file size %d exceeds max size %d: %w", size, maxSize, mfserrors.ErrInvalidArgument)
	}
	return fnode.Storage.ReadAt(0, size), nil
}

// exportEntry pairs an absolute path with the file node found there, and is
// used internally to collect the tree under the global lock before reading
// file bytes outside of it.
type exportEntry struct {
	path  string
	fnode *node.File
}

// ExportTree collects every file under prefix (prefix defaults to "/" when
// empty) and returns their absolute path mapped to their current bytes. When
// onlyDirty is true, only files with Generation > 0 are included. File reads
// are fanned out concurrently via errgroup, each under its own file's read
// lock; the tree itself is only walked once, under the global lock.
func (fs *FS) ExportTree(prefix string, onlyDirty bool) (map[string][]byte, error) {
	if prefix == "" {
		prefix = "/"
	}
	nprefix, err := normalize(prefix)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	var entries []exportEntry
	fs.collectFiles(fs.resolvePath(nprefix), nprefix, &entries)
	if onlyDirty {
		filtered := entries[:0]
		for _, e := range entries {
			if e.fnode.Generation > 0 {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	fs.mu.Unlock()

	result := make(map[string][]byte, len(entries))
	var mu sync.Mutex
	g := new(errgroup.Group)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			fs.mu.Lock()
			stillLive := fs.nodes.Get(e.fnode.NodeID()) != nil
			fs.mu.Unlock()
			if !stillLive {
				return nil
			}
			if err := e.fnode.Lock.AcquireRead(Infinite); err != nil {
				return err
			}
			data := e.fnode.Storage.ReadAt(0, e.fnode.Storage.Size())
			e.fnode.Lock.ReleaseRead()

			mu.Lock()
			result[e.path] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// collectFiles appends every file reachable from n (located at currentPath)
// to result. Caller must hold fs.mu.
func (fs *FS) collectFiles(n node.Node, currentPath string, result *[]exportEntry) {
	switch t := n.(type) {
	case nil:
		return
	case *node.File:
		*result = append(*result, exportEntry{currentPath, t})
	case *node.Directory:
		for name, id := range t.Children {
			fs.collectFiles(fs.nodes.Get(id), joinForError(currentPath, name), result)
		}
	}
}

// ImportTree atomically replaces the files named in tree (absolute path ->
// contents) with fresh file nodes bulk-loaded from the given bytes. The
// whole operation is all-or-nothing: if any step fails, every node created
// so far is rolled back, every replaced node is restored, and any
// auto-created parent directory left empty is removed, leaving the
// filesystem exactly as it was before the call. Only on success is the net
// quota delta applied, in one step.
func (fs *FS) ImportTree(tree map[string][]byte) error {
	if len(tree) == 0 {
		return nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	normalized := make(map[string][]byte, len(tree))
	for path, data := range tree {
		npath, err := normalize(path)
		if err != nil {
			return err
		}
		normalized[npath] = data
	}

	for npath := range normalized {
		if fnode, ok := fs.resolvePath(npath).(*node.File); ok && fnode.Lock.IsLocked() {
			return fmt.Errorf("cannot import: file is open: %q: %w", npath, mfserrors.ErrBlocking)
		}
	}

	var oldQuota int64
	oldNodes := make(map[string]*node.File, len(normalized))
	for npath := range normalized {
		if fnode, ok := fs.resolvePath(npath).(*node.File); ok {
			oldQuota += fnode.Storage.QuotaUsage()
			oldNodes[npath] = fnode
		} else {
			oldNodes[npath] = nil
		}
	}

	chunkOverhead := int64(fs.cfg.ChunkOverheadEstimate)
	if chunkOverhead == 0 {
		chunkOverhead = storage.ChunkOverheadEstimate
	}
	var newQuota int64
	for _, data := range normalized {
		if len(data) > 0 {
			newQuota += int64(len(data)) + chunkOverhead
		}
	}

	net := newQuota - oldQuota
	if net > 0 {
		if free := fs.quota.Free(); net > free {
			return &mfserrors.QuotaExceededError{Requested: net, Available: free}
		}
	}

	var writtenPaths []string
	newNodes := make(map[string]*node.File, len(normalized))
	var createdDirs []string

	// rollback undoes every entry written so far, one at a time. A path
	// whose parent can no longer be resolved is an internal inconsistency
	// (it should always still be there, since only this call's own
	// auto-created directories are removable, and only after this loop
	// returns) rather than an expected failure; rollback does not abort on
	// one such path, it keeps undoing the rest and joins every
	// inconsistency it hits into the error ultimately reported alongside
	// the failure that triggered the rollback.
	rollback := func() error {
		var inconsistencies error
		for _, npath := range writtenPaths {
			if fn, ok := newNodes[npath]; ok {
				fs.nodes.Delete(fn.NodeID())
			}
			parent, name, ok := fs.resolveParent(npath)
			if !ok {
				inconsistencies = multierr.Append(inconsistencies,
					fmt.Errorf("rollback: parent directory vanished for %q", npath))
				continue
			}
			if old := oldNodes[npath]; old != nil {
				fs.nodes.Reinsert(old)
				parent.Children[name] = old.NodeID()
			} else {
				delete(parent.Children, name)
			}
		}
		fs.rollbackCreatedDirs(createdDirs)
		return inconsistencies
	}

	for npath, data := range normalized {
		if err := fs.ensureParents(npath, &createdDirs); err != nil {
			return multierr.Append(err, rollback())
		}
		fileStorage := fs.createStorage()
		fileStorage.BulkLoad(data)
		fnode, err := fs.nodes.AllocFile(fileStorage, fs.clock.Now())
		if err != nil {
			return multierr.Append(err, rollback())
		}
		parent, name, ok := fs.resolveParent(npath)
		if !ok {
			fs.nodes.Delete(fnode.NodeID())
			err := fmt.Errorf("parent directory does not exist for %q: %w", npath, mfserrors.ErrNotFound)
			return multierr.Append(err, rollback())
		}
		if old := oldNodes[npath]; old != nil {
			fs.nodes.Delete(old.NodeID())
		}
		parent.Children[name] = fnode.NodeID()
		newNodes[npath] = fnode
		writtenPaths = append(writtenPaths, npath)
	}

	switch {
	case net > 0:
		fs.quota.ForceReserve(net)
	case net < 0:
		fs.quota.Release(-net)
	}

	fs.reportMetrics()
	return nil
}

// ensureParents creates any missing parent directories of npath, recording
// them in createdDirs. Caller must hold fs.mu.
func (fs *FS) ensureParents(npath string, createdDirs *[]string) error {
	dirPath, _, err := splitPath(npath)
	if err != nil {
		return err
	}
	if dirPath == "" {
		return nil
	}
	if fs.resolvePath(dirPath) == nil {
		if _, err := fs.makeDirs(dirPath, createdDirs); err != nil {
			return err
		}
	}
	return nil
}

// Copy copies the file at src to a new file at dst. src must exist and not
// be a directory; dst must not already exist. The source is read-locked
// only while its bytes are copied.
func (fs *FS) Copy(src, dst string) error {
	nsrc, err := normalize(src)
	if err != nil {
		return err
	}
	ndst, err := normalize(dst)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	srcNode := fs.resolvePath(nsrc)
	srcFile, ok := srcNode.(*node.File)
	if srcNode == nil {
		return fmt.Errorf("no such file: %q: %w", src, mfserrors.ErrNotFound)
	}
	if !ok {
		return fmt.Errorf("is a directory: %q: %w", src, mfserrors.ErrIsDir)
	}
	if fs.resolvePath(ndst) != nil {
		return fmt.Errorf("destination already exists: %q: %w", dst, mfserrors.ErrExists)
	}

	if err := srcFile.Lock.AcquireRead(Infinite); err != nil {
		return err
	}
	data := srcFile.Storage.ReadAt(0, srcFile.Storage.Size())
	srcFile.Lock.ReleaseRead()

	dstFile, err := fs.createFile(ndst)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		n, promoted, releaseAfter, err := dstFile.Storage.WriteAt(0, data, fs.quota)
		if promoted != nil {
			dstFile.Storage = promoted
			fs.quota.Release(releaseAfter)
			fs.metrics.IncPromotions()
		}
		if err != nil {
			fs.rollbackCreatedFile(ndst, dstFile)
			return err
		}
		if n > 0 {
			dstFile.Generation++
		}
	}

	fs.reportMetrics()
	return nil
}

// CopyTree deep-copies the subtree rooted at src to dst. dst must not
// already exist; dst's parent must exist. The total bytes to copy are
// pre-checked against free quota before any node is allocated. If any
// allocation fails midway, every node created so far is removed, leaving no
// orphan nodes or stray parent edges; on success the whole subtree's quota
// is reserved in one step.
func (fs *FS) CopyTree(src, dst string) error {
	nsrc, err := normalize(src)
	if err != nil {
		return err
	}
	ndst, err := normalize(dst)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	srcNode := fs.resolvePath(nsrc)
	srcDir, ok := srcNode.(*node.Directory)
	if srcNode == nil {
		return fmt.Errorf("no such file or directory: %q: %w", src, mfserrors.ErrNotFound)
	}
	if !ok {
		return fmt.Errorf("not a directory: %q: %w", src, mfserrors.ErrNotDir)
	}
	if fs.resolvePath(ndst) != nil {
		return fmt.Errorf("destination already exists: %q: %w", dst, mfserrors.ErrExists)
	}
	dstParent, dstName, ok := fs.resolveParent(ndst)
	if !ok {
		return fmt.Errorf("destination parent does not exist: %q: %w", dst, mfserrors.ErrNotFound)
	}

	totalData := fs.calcSubtreeQuota(srcDir)
	if totalData > 0 {
		if free := fs.quota.Free(); totalData > free {
			return &mfserrors.QuotaExceededError{Requested: totalData, Available: free}
		}
	}

	var createdIDs []node.ID
	newRoot, err := fs.deepCopySubtree(srcDir, &createdIDs)
	if err != nil {
		// Node deletion cannot itself fail, so there is nothing here to
		// combine with multierr the way ImportTree's rollback does.
		for i := len(createdIDs) - 1; i >= 0; i-- {
			fs.nodes.Delete(createdIDs[i])
		}
		return err
	}

	dstParent.Children[dstName] = newRoot.NodeID()
	if totalData > 0 {
		fs.quota.ForceReserve(totalData)
	}

	fs.reportMetrics()
	return nil
}

// deepCopySubtree clones n (a Directory or File) into a brand-new node tree,
// appending every allocated id to createdIDs so a caller can roll the whole
// clone back on a later failure. Caller must hold fs.mu.
func (fs *FS) deepCopySubtree(n node.Node, createdIDs *[]node.ID) (node.Node, error) {
	switch t := n.(type) {
	case *node.File:
		if err := t.Lock.AcquireRead(Infinite); err != nil {
			return nil, err
		}
		data := t.Storage.ReadAt(0, t.Storage.Size())
		t.Lock.ReleaseRead()

		fileStorage := fs.createStorage()
		fileStorage.BulkLoad(data)
		newFile, err := fs.nodes.AllocFile(fileStorage, fs.clock.Now())
		if err != nil {
			return nil, err
		}
		*createdIDs = append(*createdIDs, newFile.NodeID())
		return newFile, nil

	case *node.Directory:
		newDir, err := fs.nodes.AllocDirectory(fs.clock.Now())
		if err != nil {
			return nil, err
		}
		*createdIDs = append(*createdIDs, newDir.NodeID())
		for name, id := range t.Children {
			child := fs.nodes.Get(id)
			newChild, err := fs.deepCopySubtree(child, createdIDs)
			if err != nil {
				return nil, err
			}
			newDir.Children[name] = newChild.NodeID()
		}
		return newDir, nil
	}
	return nil, fmt.Errorf("unknown node type: %T", n)
}
