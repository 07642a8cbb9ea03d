package memfs

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/memfsdev/memfs/internal/mfserrors"
	"github.com/memfsdev/memfs/internal/node"
)

// Whence values for Handle.Seek, matching io.Seeker's constants but declared
// independently since Handle deliberately does not implement io.Seeker (its
// END semantics reject a positive offset, unlike io.SeekEnd).
const (
	SeekSet = iota
	SeekCurrent
	SeekEnd
)

// Handle is an open reference to a file: a cursor, mode enforcement, and the
// file's per-file lock, held for the handle's entire lifetime. A Handle is
// not safe for concurrent use by multiple goroutines.
type Handle struct {
	fs     *FS
	fnode  *node.File
	path   string
	mode   Mode
	append bool

	cursor int64
	closed atomic.Bool
}

func newHandle(fs *FS, fnode *node.File, path string, mode Mode, isAppend bool) *Handle {
	h := &Handle{
		fs:     fs,
		fnode:  fnode,
		path:   path,
		mode:   mode,
		append: isAppend,
	}
	if isAppend {
		h.cursor = fnode.Storage.Size()
	}
	runtime.SetFinalizer(h, finalizeHandle)
	return h
}

func finalizeHandle(h *Handle) {
	if h.closed.Load() {
		return
	}
	h.fs.log.Warn("file handle garbage collected without Close", "path", h.path)
	_ = h.Close()
}

func (h *Handle) assertOpen() error {
	if h.closed.Load() {
		return fmt.Errorf("%q: %w", h.path, mfserrors.ErrClosed)
	}
	return nil
}

func (h *Handle) assertReadable() error {
	switch h.mode {
	case ModeWriteTruncate, ModeAppend, ModeExclusiveCreate:
		return fmt.Errorf("not readable in mode %q: %w", h.mode, mfserrors.ErrInvalidMode)
	}
	return nil
}

func (h *Handle) assertWritable() error {
	if h.mode == ModeRead {
		return fmt.Errorf("not writable in mode %q: %w", h.mode, mfserrors.ErrInvalidMode)
	}
	return nil
}

// Read reads up to len(p) bytes starting at the cursor into p, returning the
// number of bytes read and advancing the cursor by that amount. Reading at
// or past the end of the file returns (0, nil), not an error.
func (h *Handle) Read(p []byte) (int, error) {
	if err := h.assertOpen(); err != nil {
		return 0, err
	}
	if err := h.assertReadable(); err != nil {
		return 0, err
	}
	size := h.fnode.Storage.Size()
	if h.cursor >= size {
		return 0, nil
	}
	data := h.fnode.Storage.ReadAt(h.cursor, int64(len(p)))
	n := copy(p, data)
	h.cursor += int64(n)
	return n, nil
}

// ReadAll reads the remainder of the file from the cursor to the end.
func (h *Handle) ReadAll() ([]byte, error) {
	if err := h.assertOpen(); err != nil {
		return nil, err
	}
	if err := h.assertReadable(); err != nil {
		return nil, err
	}
	size := h.fnode.Storage.Size()
	if h.cursor >= size {
		return nil, nil
	}
	data := h.fnode.Storage.ReadAt(h.cursor, -1)
	h.cursor += int64(len(data))
	return data, nil
}

// Write writes data at the cursor (or, in ModeAppend, at the file's current
// end, ignoring any prior seek), advances the cursor by the number of bytes
// written, and bumps the file's generation and modification time on any
// positive write.
func (h *Handle) Write(data []byte) (int, error) {
	if err := h.assertOpen(); err != nil {
		return 0, err
	}
	if err := h.assertWritable(); err != nil {
		return 0, err
	}
	if h.append {
		h.cursor = h.fnode.Storage.Size()
	}

	n, promoted, releaseAfter, err := h.fnode.Storage.WriteAt(h.cursor, data, h.fs.quota)
	if promoted != nil {
		h.fnode.Storage = promoted
		h.fs.quota.Release(releaseAfter)
		h.fs.metrics.IncPromotions()
		h.fs.log.Debug("storage promoted sequential to random_access", "path", h.path)
	}
	if err != nil {
		return 0, err
	}
	h.cursor += int64(n)
	if n > 0 {
		h.fnode.Generation++
		h.fnode.ModifiedAt = h.fs.clock.Now()
	}
	return n, nil
}

// Seek repositions the cursor. whence == SeekEnd rejects a positive offset
// (seeking past end-of-file is only reachable via Write/Truncate); any
// resulting negative cursor is an error.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	if err := h.assertOpen(); err != nil {
		return 0, err
	}
	var newPos int64
	switch whence {
	case SeekSet:
		if offset < 0 {
			return 0, fmt.Errorf("seek offset must be >= 0 for SEEK_SET: %w", mfserrors.ErrInvalidArgument)
		}
		newPos = offset
	case SeekCurrent:
		newPos = h.cursor + offset
	case SeekEnd:
		if offset > 0 {
			return 0, fmt.Errorf("seeking past end-of-file is not supported: %w", mfserrors.ErrInvalidArgument)
		}
		newPos = h.fnode.Storage.Size() + offset
	default:
		return 0, fmt.Errorf("invalid whence %d: %w", whence, mfserrors.ErrInvalidArgument)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("resulting cursor position %d is negative: %w", newPos, mfserrors.ErrInvalidArgument)
	}
	h.cursor = newPos
	return h.cursor, nil
}

// Tell returns the current cursor position.
func (h *Handle) Tell() (int64, error) {
	if err := h.assertOpen(); err != nil {
		return 0, err
	}
	return h.cursor, nil
}

// Truncate resizes the file to size (defaulting to the current cursor when
// size is negative), clamping the cursor down if it now exceeds the new
// size, and bumps generation/modification time on any actual size change.
func (h *Handle) Truncate(size int64) (int64, error) {
	if err := h.assertOpen(); err != nil {
		return 0, err
	}
	if err := h.assertWritable(); err != nil {
		return 0, err
	}
	target := size
	if target < 0 {
		target = h.cursor
	}
	before := h.fnode.Storage.Size()
	if err := h.fnode.Storage.Truncate(target, h.fs.quota); err != nil {
		return 0, err
	}
	if h.cursor > target {
		h.cursor = target
	}
	if before != target {
		h.fnode.Generation++
		h.fnode.ModifiedAt = h.fs.clock.Now()
	}
	return target, nil
}

// Flush is a no-op: storage writes are synchronous.
func (h *Handle) Flush() error {
	return h.assertOpen()
}

// Readable reports whether the handle's mode permits Read.
func (h *Handle) Readable() bool { return h.assertReadable() == nil }

// Writable reports whether the handle's mode permits Write/Truncate.
func (h *Handle) Writable() bool { return h.assertWritable() == nil }

// Seekable always reports true: every mode supports Seek.
func (h *Handle) Seekable() bool { return true }

// Close releases the handle's per-file lock. It is idempotent: a second
// Close is a no-op. Close never acquires the filesystem's global tree lock.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(h, nil)
	switch h.mode {
	case ModeRead:
		h.fnode.Lock.ReleaseRead()
	default:
		h.fnode.Lock.ReleaseWrite()
	}
	return nil
}
