package storage

import (
	"testing"

	"github.com/emberdb/emberdb/internal/bufferpool"
	"github.com/stretchr/testify/require"
)

func newTestDiskManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(LocalFileSet{Dir: t.TempDir(), Base: "main"})
}

func TestDiskManager_WriteThenReadRoundTrips(t *testing.T) {
	m := newTestDiskManager(t)

	src := make([]byte, bufferpool.PageSize)
	for i := range src {
		src[i] = byte(i)
	}
	require.NoError(t, m.WritePage(3, src))

	dst := make([]byte, bufferpool.PageSize)
	require.NoError(t, m.ReadPage(3, dst))
	require.Equal(t, src, dst)
}

func TestDiskManager_ReadUnwrittenPageIsZeroFilled(t *testing.T) {
	m := newTestDiskManager(t)

	dst := make([]byte, bufferpool.PageSize)
	for i := range dst {
		dst[i] = 0xFF
	}
	require.NoError(t, m.ReadPage(42, dst))

	for _, b := range dst {
		require.Equal(t, byte(0), b)
	}
}

func TestDiskManager_WriteRejectsWrongSize(t *testing.T) {
	m := newTestDiskManager(t)
	err := m.WritePage(0, make([]byte, 10))
	require.Error(t, err)
}

func TestDiskManager_ReadRejectsWrongSize(t *testing.T) {
	m := newTestDiskManager(t)
	err := m.ReadPage(0, make([]byte, 10))
	require.Error(t, err)
}

func TestDiskManager_CrossesSegmentBoundary(t *testing.T) {
	m := newTestDiskManager(t)

	pagesPerSeg := int64(pagesPerSegment)
	lastInFirstSeg := bufferpool.PageID(pagesPerSeg - 1)
	firstInSecondSeg := bufferpool.PageID(pagesPerSeg)

	a := make([]byte, bufferpool.PageSize)
	a[0] = 1
	b := make([]byte, bufferpool.PageSize)
	b[0] = 2

	require.NoError(t, m.WritePage(lastInFirstSeg, a))
	require.NoError(t, m.WritePage(firstInSecondSeg, b))

	gotA := make([]byte, bufferpool.PageSize)
	gotB := make([]byte, bufferpool.PageSize)
	require.NoError(t, m.ReadPage(lastInFirstSeg, gotA))
	require.NoError(t, m.ReadPage(firstInSecondSeg, gotB))

	require.Equal(t, byte(1), gotA[0])
	require.Equal(t, byte(2), gotB[0])
}

func TestDiskManager_DeallocateIsAdvisoryNoop(t *testing.T) {
	m := newTestDiskManager(t)

	src := make([]byte, bufferpool.PageSize)
	src[0] = 9
	require.NoError(t, m.WritePage(5, src))
	require.NoError(t, m.DeallocatePage(5))

	dst := make([]byte, bufferpool.PageSize)
	require.NoError(t, m.ReadPage(5, dst))
	require.Equal(t, byte(9), dst[0])
}

func TestLocalFileSet_SegmentNaming(t *testing.T) {
	lfs := LocalFileSet{Dir: t.TempDir(), Base: "main"}
	require.Equal(t, "main", lfs.segmentName(0))
	require.Equal(t, "main.1", lfs.segmentName(1))
	require.Equal(t, "main.7", lfs.segmentName(7))
}
