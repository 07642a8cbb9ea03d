package memfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobSingleSegmentWildcard(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	mustCreateFile(t, fs, "/a.txt")
	mustCreateFile(t, fs, "/b.txt")
	mustCreateFile(t, fs, "/c.log")

	matches := fs.Glob("/*.txt")
	assert.ElementsMatch(t, []string{"/a.txt", "/b.txt"}, matches)
}

func TestGlobQuestionMarkAndCharacterClass(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	mustCreateFile(t, fs, "/a1.txt")
	mustCreateFile(t, fs, "/a2.txt")
	mustCreateFile(t, fs, "/ab.txt")

	assert.ElementsMatch(t, []string{"/a1.txt", "/a2.txt"}, fs.Glob("/a?.txt"))
	assert.ElementsMatch(t, []string{"/a1.txt", "/a2.txt"}, fs.Glob("/a[12].txt"))
}

func TestGlobDoubleStarMatchesZeroOrMoreLevels(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	mustCreateFile(t, fs, "/top.txt")
	require.NoError(t, fs.MkDir("/a/b", false))
	mustCreateFile(t, fs, "/a/mid.txt")
	mustCreateFile(t, fs, "/a/b/deep.txt")

	matches := fs.Glob("/**/*.txt")
	assert.ElementsMatch(t, []string{"/top.txt", "/a/mid.txt", "/a/b/deep.txt"}, matches)
}

func TestGlobDoubleStarAtEndCollectsEverything(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	require.NoError(t, fs.MkDir("/a/b", false))
	mustCreateFile(t, fs, "/a/b/deep.txt")

	matches := fs.Glob("/a/**")
	assert.ElementsMatch(t, []string{"/a/b", "/a/b/deep.txt"}, matches)
}

func TestGlobNoMatchReturnsEmptySlice(t *testing.T) {
	fs, _ := newTestFS(t, 0)
	matches := fs.Glob("/nothing/*.txt")
	assert.Empty(t, matches)
}
