// Package storage implements the disk manager the buffer pool reads from
// and writes to: a segment-file-backed, page-addressable block store.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// SegmentSize bounds each on-disk segment file to 1 GiB, matching the
// teacher's own StorageManager layout.
const SegmentSize = 1 << 30

// LocalFileSet is a directory plus a base file name. Pages are stored
// across segment files named Base, Base.1, Base.2, ... as the logical page
// space grows past SegmentSize bytes.
type LocalFileSet struct {
	Dir  string
	Base string
}

// segmentName returns the on-disk file name for segNo.
func (lfs LocalFileSet) segmentName(segNo int64) string {
	if segNo <= 0 {
		return lfs.Base
	}
	return fmt.Sprintf("%s.%d", lfs.Base, segNo)
}

// OpenSegment opens (creating if necessary) the file backing segNo.
func (lfs LocalFileSet) OpenSegment(segNo int64) (*os.File, error) {
	if err := os.MkdirAll(lfs.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", lfs.Dir, err)
	}
	path := filepath.Join(lfs.Dir, lfs.segmentName(segNo))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open segment %s: %w", path, err)
	}
	return f, nil
}
