package memfs

import (
	"fmt"
	"time"

	"github.com/memfsdev/memfs/internal/mfserrors"
	"github.com/memfsdev/memfs/internal/node"
	"github.com/memfsdev/memfs/internal/rwmutex"
)

// Mode selects how Open treats an existing or missing file. Text modes are
// not supported at this layer; every mode here is binary.
type Mode string

const (
	// ModeRead requires the file to already exist and opens it for
	// reading only, positioned at 0.
	ModeRead Mode = "read_binary"
	// ModeWriteTruncate creates the file if absent, or truncates it to
	// zero length if present, and opens it for writing only.
	ModeWriteTruncate Mode = "write_truncate_binary"
	// ModeAppend creates the file if absent and opens it for writing
	// only; every Write repositions the cursor to the current end first.
	ModeAppend Mode = "append_binary"
	// ModeReadWrite requires the file to already exist and opens it for
	// reading and writing, positioned at 0.
	ModeReadWrite Mode = "read_write_binary"
	// ModeExclusiveCreate requires the file not to already exist, then
	// creates and opens it for writing only.
	ModeExclusiveCreate Mode = "exclusive_create_binary"
)

func (m Mode) valid() bool {
	switch m {
	case ModeRead, ModeWriteTruncate, ModeAppend, ModeReadWrite, ModeExclusiveCreate:
		return true
	}
	return false
}

// Infinite, passed as lockTimeout to Open, waits with no deadline for the
// per-file lock. A zero timeout fails immediately if the lock is held.
const Infinite = rwmutex.Infinite

// Open resolves path under the given mode, acquiring the file's per-file
// lock (read for ModeRead, write otherwise) within lockTimeout, and returns
// a Handle. If preallocate is positive, the file is grown to at least that
// size before Open returns; any failure during preallocation closes the
// freshly minted handle (releasing the lock, and deleting the file if Open
// itself just created it) before returning the error.
func (fs *FS) Open(path string, mode Mode, preallocate int64, lockTimeout time.Duration) (*Handle, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("invalid mode %q: %w", mode, mfserrors.ErrInvalidMode)
	}
	npath, err := normalize(path)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	existing := fs.resolvePath(npath)
	if _, isDir := existing.(*node.Directory); isDir {
		return nil, fmt.Errorf("is a directory: %q: %w", path, mfserrors.ErrIsDir)
	}
	fnode, _ := existing.(*node.File)
	createdHere := false

	var h *Handle

	switch mode {
	case ModeRead:
		if fnode == nil {
			return nil, fmt.Errorf("no such file: %q: %w", path, mfserrors.ErrNotFound)
		}
		if err := fnode.Lock.AcquireRead(lockTimeout); err != nil {
			return nil, err
		}
		h = newHandle(fs, fnode, npath, mode, false)

	case ModeWriteTruncate:
		if fnode == nil {
			if fnode, err = fs.createFile(npath); err != nil {
				return nil, err
			}
			createdHere = true
			if err := fnode.Lock.AcquireWrite(lockTimeout); err != nil {
				fs.rollbackCreatedFile(npath, fnode)
				return nil, err
			}
		} else {
			if err := fnode.Lock.AcquireWrite(lockTimeout); err != nil {
				return nil, err
			}
			if err := fnode.Storage.Truncate(0, fs.quota); err != nil {
				fnode.Lock.ReleaseWrite()
				return nil, err
			}
			fnode.Generation++
			fnode.ModifiedAt = fs.clock.Now()
		}
		h = newHandle(fs, fnode, npath, mode, false)

	case ModeAppend:
		if fnode == nil {
			if fnode, err = fs.createFile(npath); err != nil {
				return nil, err
			}
			createdHere = true
		}
		if err := fnode.Lock.AcquireWrite(lockTimeout); err != nil {
			if createdHere {
				fs.rollbackCreatedFile(npath, fnode)
			}
			return nil, err
		}
		h = newHandle(fs, fnode, npath, mode, true)

	case ModeReadWrite:
		if fnode == nil {
			return nil, fmt.Errorf("no such file: %q: %w", path, mfserrors.ErrNotFound)
		}
		if err := fnode.Lock.AcquireWrite(lockTimeout); err != nil {
			return nil, err
		}
		h = newHandle(fs, fnode, npath, mode, false)

	case ModeExclusiveCreate:
		if fnode != nil {
			return nil, fmt.Errorf("file exists: %q: %w", path, mfserrors.ErrExists)
		}
		if fnode, err = fs.createFile(npath); err != nil {
			return nil, err
		}
		createdHere = true
		if err := fnode.Lock.AcquireWrite(lockTimeout); err != nil {
			fs.rollbackCreatedFile(npath, fnode)
			return nil, err
		}
		h = newHandle(fs, fnode, npath, mode, false)
	}

	if preallocate > 0 {
		current := fnode.Storage.Size()
		if preallocate > current {
			zeros := make([]byte, preallocate-current)
			n, promoted, releaseAfter, err := fnode.Storage.WriteAt(current, zeros, fs.quota)
			if promoted != nil {
				fnode.Storage = promoted
				fs.quota.Release(releaseAfter)
				fs.metrics.IncPromotions()
			}
			if err != nil {
				_ = h.Close()
				if createdHere {
					fs.rollbackCreatedFile(npath, fnode)
				}
				return nil, err
			}
			if n > 0 {
				fnode.Generation++
			}
		}
	}

	fs.reportMetrics()
	return h, nil
}

// rollbackCreatedFile detaches and deletes a file node that Open just
// created, used when a later step in the same Open call fails. Caller must
// hold fs.mu.
func (fs *FS) rollbackCreatedFile(npath string, fnode *node.File) {
	parent, name, ok := fs.resolveParent(npath)
	if ok && parent.Children[name] == fnode.NodeID() {
		delete(parent.Children, name)
	}
	fs.nodes.Delete(fnode.NodeID())
}
