package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memfsdev/memfs/internal/quota"
	"github.com/memfsdev/memfs/internal/storage"
)

func TestSequentialAppendAndRead(t *testing.T) {
	q := quota.New(1 << 20)
	s := storage.NewSequential(0, 0, true)

	n, promoted, _, err := s.WriteAt(0, []byte("hello "), q)
	require.NoError(t, err)
	assert.Nil(t, promoted)
	assert.Equal(t, 6, n)

	n, promoted, _, err = s.WriteAt(6, []byte("world"), q)
	require.NoError(t, err)
	assert.Nil(t, promoted)
	assert.Equal(t, 5, n)

	assert.Equal(t, []byte("hello world"), s.ReadAt(0, -1))
	assert.Equal(t, []byte("world"), s.ReadAt(6, -1))
	assert.Equal(t, []byte("lo wo"), s.ReadAt(3, 5))
	assert.EqualValues(t, 11, s.Size())
}

func TestSequentialWriteChargesChunkOverhead(t *testing.T) {
	q := quota.New(1000)
	s := storage.NewSequential(50, 0, true)

	_, _, _, err := s.WriteAt(0, []byte("abc"), q)
	require.NoError(t, err)
	assert.EqualValues(t, 53, s.QuotaUsage())
	assert.EqualValues(t, 53, q.Used())
}

func TestSequentialPromotesOnRandomWrite(t *testing.T) {
	q := quota.New(1 << 20)
	s := storage.NewSequential(0, 0, true)

	_, _, _, err := s.WriteAt(0, []byte("aaaa"), q)
	require.NoError(t, err)

	n, promoted, releaseAfter, err := s.WriteAt(0, []byte("bb"), q)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("bbaa"), promoted.ReadAt(0, -1))

	// releaseAfter is the temporary old/new overlap reserved during
	// promotion; once the caller installs promoted and releases it, total
	// quota usage must equal exactly the promoted storage's own usage.
	assert.EqualValues(t, 4, releaseAfter)
	q.Release(releaseAfter)
	assert.EqualValues(t, promoted.QuotaUsage(), q.Used())
}

func TestSequentialDisallowedPromotionReturnsUnsupported(t *testing.T) {
	q := quota.New(1 << 20)
	s := storage.NewSequential(0, 0, false)

	_, _, _, err := s.WriteAt(0, []byte("aaaa"), q)
	require.NoError(t, err)

	_, promoted, _, err := s.WriteAt(0, []byte("b"), q)
	require.Error(t, err)
	assert.Nil(t, promoted)
}

func TestSequentialPromotionHardLimit(t *testing.T) {
	q := quota.New(1 << 30)
	s := storage.NewSequential(0, 10, true) // promotion limit of 10 bytes

	_, _, _, err := s.WriteAt(0, make([]byte, 20), q)
	require.NoError(t, err)

	_, promoted, _, err := s.WriteAt(0, []byte("x"), q)
	require.Error(t, err)
	assert.Nil(t, promoted)
}

func TestSequentialTruncateGrowAndShrink(t *testing.T) {
	q := quota.New(1 << 20)
	s := storage.NewSequential(0, 0, true)
	_, _, _, err := s.WriteAt(0, []byte("hello"), q)
	require.NoError(t, err)

	require.NoError(t, s.Truncate(10, q))
	assert.EqualValues(t, 10, s.Size())
	assert.Equal(t, []byte("hello\x00\x00\x00\x00\x00"), s.ReadAt(0, -1))

	require.NoError(t, s.Truncate(2, q))
	assert.EqualValues(t, 2, s.Size())
	assert.Equal(t, []byte("he"), s.ReadAt(0, -1))
}

func TestSequentialBulkLoadBypassesQuota(t *testing.T) {
	q := quota.New(1)
	s := storage.NewSequential(0, 0, true)
	s.BulkLoad([]byte("this is way more than one byte"))
	assert.EqualValues(t, 30, s.Size())
	assert.EqualValues(t, 0, q.Used())
}

func TestRandomAccessWriteReadRoundtrip(t *testing.T) {
	q := quota.New(1 << 20)
	r := storage.NewRandomAccess()

	_, _, _, err := r.WriteAt(5, []byte("hi"), q)
	require.NoError(t, err)
	assert.EqualValues(t, 7, r.Size())
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 'h', 'i'}, r.ReadAt(0, -1))

	_, _, _, err = r.WriteAt(0, []byte("AB"), q)
	require.NoError(t, err)
	assert.Equal(t, []byte{'A', 'B', 0, 0, 0, 'h', 'i'}, r.ReadAt(0, -1))
}

func TestRandomAccessTruncateShrinkReallocates(t *testing.T) {
	q := quota.New(1 << 20)
	r := storage.NewRandomAccess()
	_, _, _, err := r.WriteAt(0, make([]byte, 100), q)
	require.NoError(t, err)

	require.NoError(t, r.Truncate(10, q)) // 10 <= 100*0.25
	assert.EqualValues(t, 10, r.Size())
	assert.EqualValues(t, 10, q.Used())
}

func TestRandomAccessBulkLoad(t *testing.T) {
	q := quota.New(1)
	r := storage.NewRandomAccess()
	r.BulkLoad([]byte("abc"))
	assert.EqualValues(t, 3, r.Size())
	assert.EqualValues(t, 0, q.Used())
}
