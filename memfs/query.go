package memfs

import (
	"fmt"
	"time"

	"github.com/memfsdev/memfs/internal/mfserrors"
	"github.com/memfsdev/memfs/internal/node"
)

// StatResult reports a node's metadata. For a directory, Size is 0 and
// Generation is 0.
type StatResult struct {
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
	Generation int64
	IsDir      bool
}

// Stats is a point-in-time aggregate snapshot of the whole filesystem.
type Stats struct {
	UsedBytes           int64
	QuotaBytes          int64
	FreeBytes           int64
	FileCount           int
	DirCount            int
	ChunkCount          int
	OverheadPerChunkEst int64
}

// ListDir returns the names of path's immediate children. path must exist
// and be a directory.
func (fs *FS) ListDir(path string) ([]string, error) {
	npath, err := normalize(path)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, err := fs.resolveDir(npath, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dir.Children))
	for name := range dir.Children {
		names = append(names, name)
	}
	return names, nil
}

func (fs *FS) resolveDir(npath, pathForError string) (*node.Directory, error) {
	n := fs.resolvePath(npath)
	if n == nil {
		return nil, fmt.Errorf("no such directory: %q: %w", pathForError, mfserrors.ErrNotFound)
	}
	dir, ok := n.(*node.Directory)
	if !ok {
		return nil, fmt.Errorf("not a directory: %q: %w", pathForError, mfserrors.ErrNotDir)
	}
	return dir, nil
}

// Exists reports whether path resolves to any node. A path-traversal
// attempt is coerced to false rather than returned as an error.
func (fs *FS) Exists(path string) bool {
	npath, err := normalize(path)
	if err != nil {
		return false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.resolvePath(npath) != nil
}

// IsDir reports whether path resolves to a directory.
func (fs *FS) IsDir(path string) bool {
	npath, err := normalize(path)
	if err != nil {
		return false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.resolvePath(npath).(*node.Directory)
	return ok
}

// IsFile reports whether path resolves to a file.
func (fs *FS) IsFile(path string) bool {
	npath, err := normalize(path)
	if err != nil {
		return false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.resolvePath(npath).(*node.File)
	return ok
}

// Stat returns metadata for path, which must exist.
func (fs *FS) Stat(path string) (StatResult, error) {
	npath, err := normalize(path)
	if err != nil {
		return StatResult{}, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := fs.resolvePath(npath)
	switch t := n.(type) {
	case nil:
		return StatResult{}, fmt.Errorf("no such file or directory: %q: %w", path, mfserrors.ErrNotFound)
	case *node.Directory:
		return StatResult{CreatedAt: t.CreatedAt, ModifiedAt: t.ModifiedAt, IsDir: true}, nil
	case *node.File:
		return StatResult{
			Size:       t.Storage.Size(),
			CreatedAt:  t.CreatedAt,
			ModifiedAt: t.ModifiedAt,
			Generation: t.Generation,
		}, nil
	}
	panic("memfs: unreachable node type in Stat")
}

// Stats returns an aggregate snapshot of the whole filesystem.
func (fs *FS) Stats() Stats {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var fileCount, dirCount, chunkCount int
	fs.countNodes(fs.nodes.Root(), &fileCount, &dirCount, &chunkCount)

	maximum, used, free := fs.quota.Snapshot()
	return Stats{
		UsedBytes:           used,
		QuotaBytes:          maximum,
		FreeBytes:           free,
		FileCount:           fileCount,
		DirCount:            dirCount,
		ChunkCount:          chunkCount,
		OverheadPerChunkEst: int64(fs.cfg.ChunkOverheadEstimate),
	}
}

func (fs *FS) countNodes(dir *node.Directory, fileCount, dirCount, chunkCount *int) {
	*dirCount++
	for _, id := range dir.Children {
		switch t := fs.nodes.Get(id).(type) {
		case *node.Directory:
			fs.countNodes(t, fileCount, dirCount, chunkCount)
		case *node.File:
			*fileCount++
			if seq, ok := t.Storage.(interface{ ChunkCount() int }); ok {
				*chunkCount += seq.ChunkCount()
			}
		}
	}
}

// GetSize returns the size of the file at path, which must exist and must
// not be a directory.
func (fs *FS) GetSize(path string) (int64, error) {
	npath, err := normalize(path)
	if err != nil {
		return 0, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n := fs.resolvePath(npath)
	switch t := n.(type) {
	case nil:
		return 0, fmt.Errorf("no such file: %q: %w", path, mfserrors.ErrNotFound)
	case *node.Directory:
		return 0, fmt.Errorf("is a directory: %q: %w", path, mfserrors.ErrIsDir)
	case *node.File:
		return t.Storage.Size(), nil
	}
	panic("memfs: unreachable node type in GetSize")
}

// WalkFunc is called once per visited directory during Walk, with its
// absolute path and the names of its immediate subdirectories and files. A
// non-nil return stops the walk and is returned from Walk unchanged.
type WalkFunc func(dir string, dirs, files []string) error

// Walk visits path and every directory beneath it, top-down, calling fn once
// per directory with a snapshot of that directory's children taken under
// the tree lock. Deeper levels are snapshotted lazily, outside the lock held
// for any other level, so the walk provides only weak consistency: a
// directory deleted between levels is silently skipped, and concurrently
// created entries may or may not be observed.
func (fs *FS) Walk(path string, fn WalkFunc) error {
	npath, err := normalize(path)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	dir, err := fs.resolveDir(npath, path)
	fs.mu.Unlock()
	if err != nil {
		return err
	}
	return fs.walkDir(npath, dir, fn)
}

func (fs *FS) walkDir(dirPath string, dir *node.Directory, fn WalkFunc) error {
	type childDir struct {
		path string
		dir  *node.Directory
	}

	var dirNames, fileNames []string
	var childDirs []childDir

	fs.mu.Lock()
	for name, id := range dir.Children {
		switch t := fs.nodes.Get(id).(type) {
		case *node.Directory:
			dirNames = append(dirNames, name)
			childDirs = append(childDirs, childDir{joinForError(dirPath, name), t})
		case *node.File:
			fileNames = append(fileNames, name)
		}
	}
	fs.mu.Unlock()

	if err := fn(dirPath, dirNames, fileNames); err != nil {
		return err
	}

	for _, cd := range childDirs {
		fs.mu.Lock()
		stillLive := fs.nodes.Get(cd.dir.NodeID()) != nil
		fs.mu.Unlock()
		if !stillLive {
			continue
		}
		if err := fs.walkDir(cd.path, cd.dir, fn); err != nil {
			return err
		}
	}
	return nil
}
