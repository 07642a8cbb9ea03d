// Package storage implements the two byte-storage representations backing
// memfs files: Sequential, optimized for append-only writes with per-chunk
// overhead accounting, and RandomAccess, a flat resizable buffer. A
// Sequential file promotes itself to RandomAccess the first time it is
// written at an offset other than its current end.
package storage

import (
	"sort"

	"github.com/memfsdev/memfs/internal/mfserrors"
	"github.com/memfsdev/memfs/internal/quota"
)

// ChunkOverheadEstimate is the per-chunk bookkeeping cost charged against
// quota for every chunk appended to a Sequential file, approximating the
// overhead of a byte-slice header plus its slot in the chunk list. Unlike
// the original implementation's runtime sys.getsizeof calibration — which
// has no Go analogue, since the language exposes no object memory-footprint
// introspection — this is a fixed constant tuned to the same order of
// magnitude (a small multiple of two machine words).
const ChunkOverheadEstimate int64 = 80

// DefaultPromotionHardLimit is the largest Sequential file size, in bytes,
// that may still be promoted to RandomAccess. Above this size, a
// non-sequential write fails rather than doubling memory use during
// promotion.
const DefaultPromotionHardLimit int64 = 512 * 1024 * 1024

// ShrinkThreshold: when a RandomAccess truncate leaves the buffer at or
// below this fraction of its pre-truncate size, the backing array is
// reallocated at its new, smaller size instead of keeping the old
// capacity around.
const ShrinkThreshold = 0.25

// Storage is the data-plane contract each file node stores its bytes
// behind. Offsets and sizes are always non-negative; callers validate that
// before calling in (storage itself does not re-validate arguments already
// checked by memfs).
type Storage interface {
	// ReadAt returns up to size bytes starting at offset. A negative size
	// means "to the end of the file". Reading past the end, or at/after
	// the end of the file, returns an empty slice, never an error.
	ReadAt(offset int64, size int64) []byte

	// WriteAt writes data at offset, returning the number of bytes
	// written and, if this call caused a Sequential file to promote to
	// RandomAccess, the resulting RandomAccess storage plus releaseAfter,
	// the quota already reserved for the promotion's temporary old/new
	// overlap. The caller must replace its reference to this Storage with
	// the returned promoted value when it is non-nil, and must then call
	// q.Release(releaseAfter) now that the overlap is gone.
	WriteAt(offset int64, data []byte, q *quota.Manager) (written int, promoted *RandomAccess, releaseAfter int64, err error)

	// Truncate resizes the file to size, reserving quota for growth (the
	// new bytes are POSIX-zero-filled) or releasing it on shrink.
	Truncate(size int64, q *quota.Manager) error

	// Size returns the current logical file size.
	Size() int64

	// QuotaUsage returns the number of bytes currently charged against
	// quota for this storage, which for Sequential includes per-chunk
	// overhead on top of the logical size.
	QuotaUsage() int64

	// BulkLoad replaces the storage's contents with data directly,
	// bypassing quota accounting. It is only valid to call this when the
	// caller has already reserved equivalent quota itself, as part of an
	// atomic multi-step operation such as ImportTree or CopyTree.
	BulkLoad(data []byte)
}

// Sequential is an append-optimized representation: writes at the current
// end of file are appended as a new chunk in O(1) (amortized) without
// copying existing data; any other write offset triggers promotion to
// RandomAccess.
type Sequential struct {
	chunks         [][]byte
	cumulative     []int64 // cumulative[i] = byte offset just past chunks[i]
	size           int64
	chunkOverhead  int64
	promotionLimit int64
	allowPromotion bool
}

// NewSequential returns an empty Sequential file. chunkOverhead and
// promotionLimit default to ChunkOverheadEstimate and
// DefaultPromotionHardLimit when zero. allowPromotion false means a
// non-appending write returns mfserrors.ErrUnsupported instead of
// promoting — the "sequential-only" storage policy.
func NewSequential(chunkOverhead, promotionLimit int64, allowPromotion bool) *Sequential {
	if chunkOverhead == 0 {
		chunkOverhead = ChunkOverheadEstimate
	}
	if promotionLimit == 0 {
		promotionLimit = DefaultPromotionHardLimit
	}
	return &Sequential{
		chunkOverhead:  chunkOverhead,
		promotionLimit: promotionLimit,
		allowPromotion: allowPromotion,
	}
}

func (s *Sequential) Size() int64 { return s.size }

// ChunkCount returns the number of chunks currently backing the file, used
// by memfs.Stats to report aggregate chunk counts.
func (s *Sequential) ChunkCount() int { return len(s.chunks) }

func (s *Sequential) QuotaUsage() int64 {
	return s.size + int64(len(s.chunks))*s.chunkOverhead
}

func (s *Sequential) ReadAt(offset int64, size int64) []byte {
	if offset >= s.size || size == 0 {
		return nil
	}
	end := s.size
	if size >= 0 && offset+size < end {
		end = offset + size
	}

	startIdx := sort.Search(len(s.cumulative), func(i int) bool { return s.cumulative[i] > offset })

	var result []byte
	for i := startIdx; i < len(s.chunks); i++ {
		var chunkStart int64
		if i > 0 {
			chunkStart = s.cumulative[i-1]
		}
		chunkEnd := s.cumulative[i]

		lo := offset
		if chunkStart > lo {
			lo = chunkStart
		}
		lo -= chunkStart

		hi := end
		if chunkEnd < hi {
			hi = chunkEnd
		}
		hi -= chunkStart

		result = append(result, s.chunks[i][lo:hi]...)
		if chunkEnd >= end {
			break
		}
	}
	return result
}

func (s *Sequential) WriteAt(offset int64, data []byte, q *quota.Manager) (int, *RandomAccess, int64, error) {
	if offset != s.size {
		if !s.allowPromotion {
			return 0, nil, 0, mfserrors.ErrUnsupported
		}
		return s.promoteAndWrite(offset, data, q)
	}

	n := int64(len(data))
	if n == 0 {
		return 0, nil, 0, nil
	}

	err := q.Reserve(n+s.chunkOverhead, func() error {
		s.chunks = append(s.chunks, data)
		s.size += n
		s.cumulative = append(s.cumulative, s.size)
		return nil
	})
	if err != nil {
		return 0, nil, 0, err
	}
	return len(data), nil, 0, nil
}

func (s *Sequential) Truncate(size int64, q *quota.Manager) error {
	if size == s.size {
		return nil
	}
	if size > s.size {
		pad := make([]byte, size-s.size)
		return q.Reserve(int64(len(pad))+s.chunkOverhead, func() error {
			s.chunks = append(s.chunks, pad)
			s.size = size
			s.cumulative = append(s.cumulative, size)
			return nil
		})
	}

	joined := s.joinChunks()[:size]
	oldOverhead := int64(len(s.chunks)) * s.chunkOverhead
	if len(joined) > 0 {
		s.chunks = [][]byte{joined}
		s.cumulative = []int64{size}
	} else {
		s.chunks = nil
		s.cumulative = nil
	}
	newOverhead := int64(len(s.chunks)) * s.chunkOverhead
	releaseBytes := (s.size - size) + (oldOverhead - newOverhead)
	q.Release(releaseBytes)
	s.size = size
	return nil
}

func (s *Sequential) BulkLoad(data []byte) {
	if len(data) > 0 {
		s.chunks = [][]byte{data}
		s.size = int64(len(data))
		s.cumulative = []int64{s.size}
	} else {
		s.chunks = nil
		s.size = 0
		s.cumulative = nil
	}
}

func (s *Sequential) joinChunks() []byte {
	out := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out
}

// promoteAndWrite converts s into a RandomAccess file and performs the
// requested out-of-order write against it. Quota for the doubled
// (chunk-list + flat-buffer) memory footprint mid-promotion is reserved
// for the original size, then the per-chunk overhead is released once the
// chunk list is discarded. The returned releaseAfter (= currentSize) is
// the temporary overlap still outstanding once this call returns; the
// caller must release it once the promoted storage is installed in place
// of s.
func (s *Sequential) promoteAndWrite(offset int64, data []byte, q *quota.Manager) (int, *RandomAccess, int64, error) {
	currentSize := s.size
	if currentSize > s.promotionLimit {
		return 0, nil, 0, mfserrors.ErrUnsupported
	}

	var buf []byte
	err := q.Reserve(currentSize, func() error {
		buf = s.joinChunks()
		return nil
	})
	if err != nil {
		return 0, nil, 0, err
	}

	oldOverhead := int64(len(s.chunks)) * s.chunkOverhead
	q.Release(oldOverhead)

	promoted := FromBuffer(buf)
	written, _, _, err := promoted.WriteAt(offset, data, q)
	if err != nil {
		return 0, nil, 0, err
	}
	return written, promoted, currentSize, nil
}

// RandomAccess is a flat, resizable byte buffer supporting writes and
// truncation at any offset.
type RandomAccess struct {
	buf []byte
}

// NewRandomAccess returns an empty RandomAccess file.
func NewRandomAccess() *RandomAccess {
	return &RandomAccess{}
}

// FromBuffer wraps an existing byte slice as a RandomAccess file's backing
// store without copying it.
func FromBuffer(buf []byte) *RandomAccess {
	return &RandomAccess{buf: buf}
}

func (r *RandomAccess) Size() int64       { return int64(len(r.buf)) }
func (r *RandomAccess) QuotaUsage() int64 { return int64(len(r.buf)) }

func (r *RandomAccess) ReadAt(offset int64, size int64) []byte {
	if offset < 0 || offset >= int64(len(r.buf)) {
		return nil
	}
	if size < 0 {
		return append([]byte(nil), r.buf[offset:]...)
	}
	end := offset + size
	if end > int64(len(r.buf)) {
		end = int64(len(r.buf))
	}
	return append([]byte(nil), r.buf[offset:end]...)
}

func (r *RandomAccess) WriteAt(offset int64, data []byte, q *quota.Manager) (int, *RandomAccess, int64, error) {
	n := int64(len(data))
	if n == 0 {
		return 0, nil, 0, nil
	}

	currentLen := int64(len(r.buf))
	newSize := currentLen
	if offset+n > newSize {
		newSize = offset + n
	}
	extend := newSize - currentLen

	if extend > 0 {
		err := q.Reserve(extend, func() error {
			if offset > currentLen {
				r.buf = append(r.buf, make([]byte, offset-currentLen)...)
				r.buf = append(r.buf, data...)
			} else {
				overlap := currentLen - offset
				copy(r.buf[offset:currentLen], data[:overlap])
				r.buf = append(r.buf, data[overlap:]...)
			}
			return nil
		})
		if err != nil {
			return 0, nil, 0, err
		}
	} else {
		copy(r.buf[offset:offset+n], data)
	}
	return len(data), nil, 0, nil
}

func (r *RandomAccess) Truncate(size int64, q *quota.Manager) error {
	oldSize := int64(len(r.buf))
	if size == oldSize {
		return nil
	}
	if size > oldSize {
		extend := size - oldSize
		return q.Reserve(extend, func() error {
			r.buf = append(r.buf, make([]byte, extend)...)
			return nil
		})
	}

	release := oldSize - size
	r.buf = r.buf[:size]
	if oldSize > 0 && float64(size) <= float64(oldSize)*ShrinkThreshold {
		shrunk := make([]byte, size)
		copy(shrunk, r.buf)
		r.buf = shrunk
	}
	q.Release(release)
	return nil
}

func (r *RandomAccess) BulkLoad(data []byte) {
	r.buf = append([]byte(nil), data...)
}

var (
	_ Storage = (*Sequential)(nil)
	_ Storage = (*RandomAccess)(nil)
)
