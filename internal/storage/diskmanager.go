package storage

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/emberdb/emberdb/internal/bufferpool"
	"github.com/emberdb/emberdb/pkg/util"
)

var _ bufferpool.DiskManager = (*Manager)(nil)

// pagesPerSegment computes how many fixed-size pages fit in one segment
// file.
const pagesPerSegment = SegmentSize / bufferpool.PageSize

// Manager is a segment-file-backed disk manager: it maps a PageID to
// (segment, offset) and satisfies bufferpool.DiskManager.
type Manager struct {
	fs LocalFileSet
}

// NewManager returns a disk manager storing pages under fs.
func NewManager(fs LocalFileSet) *Manager {
	return &Manager{fs: fs}
}

func (m *Manager) locate(id bufferpool.PageID) (segNo int64, offset int64) {
	segNo = int64(id) / pagesPerSegment
	pageInSeg := int64(id) % pagesPerSegment
	offset = pageInSeg * bufferpool.PageSize
	return segNo, offset
}

// ReadPage fills dst (exactly bufferpool.PageSize bytes) with id's on-disk
// contents. Reads past the end of the segment file are zero-filled, so a
// page that was never written reads back as all-zero.
func (m *Manager) ReadPage(id bufferpool.PageID, dst []byte) error {
	if len(dst) != bufferpool.PageSize {
		return fmt.Errorf("storage: dst must be exactly %d bytes, got %d", bufferpool.PageSize, len(dst))
	}
	segNo, off := m.locate(id)
	f, err := m.fs.OpenSegment(segNo)
	if err != nil {
		return err
	}
	defer util.CloseFileFunc(f)

	n, err := f.ReadAt(dst, off)
	if err != nil && err != io.EOF {
		return fmt.Errorf("storage: read page %d: %w", id, err)
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// WritePage persists src (exactly bufferpool.PageSize bytes) to id's
// location on disk.
func (m *Manager) WritePage(id bufferpool.PageID, src []byte) error {
	if len(src) != bufferpool.PageSize {
		return fmt.Errorf("storage: src must be exactly %d bytes, got %d", bufferpool.PageSize, len(src))
	}
	segNo, off := m.locate(id)
	f, err := m.fs.OpenSegment(segNo)
	if err != nil {
		return err
	}
	defer util.CloseFileFunc(f)

	n, err := f.WriteAt(src, off)
	if err != nil {
		return fmt.Errorf("storage: write page %d: %w", id, err)
	}
	if n != len(src) {
		return fmt.Errorf("storage: write page %d: %w", id, io.ErrShortWrite)
	}
	return nil
}

// DeallocatePage is advisory: this disk manager never reclaims segment
// space, so deallocation is logged and otherwise a no-op, matching the
// buffer pool spec's "allocation policy: page ids are never reused within a
// run; deallocation is advisory to disk."
func (m *Manager) DeallocatePage(id bufferpool.PageID) error {
	slog.Debug("storage: deallocate page", "page_id", id)
	return nil
}
