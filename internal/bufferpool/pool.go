package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrOutOfFrames is returned by NewPage/FetchPage when every frame is
	// either occupied by a pinned page or there is otherwise no evictable
	// or free frame available.
	ErrOutOfFrames = errors.New("bufferpool: no free or evictable frame available")

	// ErrPagePinned is returned by DeletePage when the target page is
	// currently pinned.
	ErrPagePinned = errors.New("bufferpool: page is pinned")

	// ErrInvalidPageID is returned by FlushPage when called with
	// InvalidPageID.
	ErrInvalidPageID = errors.New("bufferpool: invalid page id")
)

// DiskManager is the block-addressable disk store the buffer pool reads
// from and writes to. It is an external collaborator: the buffer pool
// treats it as page-addressable storage and does not concern itself with
// how pages are laid out on disk.
type DiskManager interface {
	ReadPage(id PageID, dst []byte) error
	WritePage(id PageID, src []byte) error
	DeallocatePage(id PageID) error
}

// LogManager is the write-ahead-log sink the buffer pool consults before
// writing a dirty page to disk. It is optional: a nil LogManager means the
// pool writes dirty pages straight to disk without logging them first.
type LogManager interface {
	// LogPageWrite appends a redo image of data for id and returns the LSN
	// assigned to that record.
	LogPageWrite(id PageID, data []byte) (uint64, error)
	// Flush durably persists every logged record up to and including upto.
	Flush(upto uint64) error
}

// Manager is the buffer pool manager: it owns the frame array, the free
// list, the page table, and the replacer, and mediates every access to
// persistent pages.
type Manager struct {
	mu sync.Mutex

	poolSize  int
	frames    []*Frame
	freeList  []FrameID
	pageTable map[PageID]FrameID

	replacer *Replacer
	disk     DiskManager
	log      LogManager

	nextPageID PageID
}

// NewManager constructs a buffer pool of poolSize frames using an LRU-K
// replacer with history depth replacerK, backed by disk. log may be nil.
func NewManager(poolSize, replacerK int, disk DiskManager, log LogManager) (*Manager, error) {
	if poolSize < 1 {
		return nil, fmt.Errorf("bufferpool: pool_size must be >= 1, got %d", poolSize)
	}
	if replacerK < 1 {
		return nil, fmt.Errorf("bufferpool: replacer_k must be >= 1, got %d", replacerK)
	}
	if disk == nil {
		return nil, errors.New("bufferpool: disk manager is required")
	}

	frames := make([]*Frame, poolSize)
	freeList := make([]FrameID, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = newFrame()
		freeList[i] = FrameID(i)
	}

	return &Manager{
		poolSize:  poolSize,
		frames:    frames,
		freeList:  freeList,
		pageTable: make(map[PageID]FrameID),
		replacer:  NewReplacer(poolSize, replacerK),
		disk:      disk,
		log:       log,
	}, nil
}

// getFreeFrame returns a frame index usable for a new resident page,
// evicting and, if necessary, flushing a victim. Callers must hold mu.
func (m *Manager) getFreeFrame() (FrameID, error) {
	if n := len(m.freeList); n > 0 {
		frameID := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return frameID, nil
	}

	frameID, ok := m.replacer.Evict()
	if !ok {
		return 0, ErrOutOfFrames
	}

	frame := m.frames[frameID]
	if frame.IsDirty {
		if err := m.flushFrameLocked(frame.PageID, frame); err != nil {
			// Put the victim back as evictable: no partial state change
			// should be visible to the caller on failure.
			_ = m.replacer.RecordAccess(frameID)
			_ = m.replacer.SetEvictable(frameID, true)
			return 0, fmt.Errorf("bufferpool: flush victim page %d: %w", frame.PageID, err)
		}
	}

	delete(m.pageTable, frame.PageID)
	return frameID, nil
}

// flushFrameLocked writes frame's buffer to disk and clears its dirty flag,
// honoring write-ahead logging: the page's redo image must reach stable log
// storage before the page itself is written. It does not itself lock:
// getFreeFrame and FlushAllPages call it with mu held, and FlushPage calls
// it without taking mu.
func (m *Manager) flushFrameLocked(pageID PageID, frame *Frame) error {
	if m.log != nil {
		lsn, err := m.log.LogPageWrite(pageID, frame.Data)
		if err != nil {
			return fmt.Errorf("log page %d before write: %w", pageID, err)
		}
		if err := m.log.Flush(lsn); err != nil {
			return fmt.Errorf("flush log before writing page %d: %w", pageID, err)
		}
	}
	if err := m.disk.WritePage(pageID, frame.Data); err != nil {
		return err
	}
	frame.IsDirty = false
	return nil
}

func (m *Manager) allocatePageID() PageID {
	id := m.nextPageID
	m.nextPageID++
	return id
}

// NewPage allocates a fresh page id, materializes it in a frame pinned
// once, and returns that frame. It returns ErrOutOfFrames if the pool has
// no free or evictable frame.
func (m *Manager) NewPage() (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.freeList) == 0 && m.replacer.Size() == 0 {
		return nil, ErrOutOfFrames
	}

	frameID, err := m.getFreeFrame()
	if err != nil {
		return nil, err
	}

	pageID := m.allocatePageID()
	frame := m.frames[frameID]
	frame.reset()
	frame.PageID = pageID
	frame.PinCount = 1
	m.pageTable[pageID] = frameID

	if err := m.replacer.RecordAccess(frameID); err != nil {
		return nil, err
	}
	if err := m.replacer.SetEvictable(frameID, false); err != nil {
		return nil, err
	}

	return frame, nil
}

// FetchPage pins and returns the frame holding pageID, loading it from disk
// if it is not already resident. It returns ErrOutOfFrames if pageID is not
// resident and the pool has no free or evictable frame.
func (m *Manager) FetchPage(pageID PageID) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frameID, ok := m.pageTable[pageID]; ok {
		frame := m.frames[frameID]
		frame.PinCount++
		if err := m.replacer.RecordAccess(frameID); err != nil {
			return nil, err
		}
		if err := m.replacer.SetEvictable(frameID, false); err != nil {
			return nil, err
		}
		return frame, nil
	}

	if len(m.freeList) == 0 && m.replacer.Size() == 0 {
		return nil, ErrOutOfFrames
	}

	frameID, err := m.getFreeFrame()
	if err != nil {
		return nil, err
	}

	frame := m.frames[frameID]
	frame.reset()
	frame.PageID = pageID
	frame.PinCount = 1
	m.pageTable[pageID] = frameID

	if err := m.disk.ReadPage(pageID, frame.Data); err != nil {
		// No partial state visible on failure: return the frame to the
		// free list rather than leaving it half-installed.
		delete(m.pageTable, pageID)
		frame.reset()
		m.freeList = append(m.freeList, frameID)
		return nil, fmt.Errorf("bufferpool: read page %d: %w", pageID, err)
	}

	if err := m.replacer.RecordAccess(frameID); err != nil {
		return nil, err
	}
	if err := m.replacer.SetEvictable(frameID, false); err != nil {
		return nil, err
	}

	return frame, nil
}

// UnpinPage decrements pageID's pin count and, if it reaches zero, marks
// its frame evictable. isDirty is OR-ed into the frame's sticky dirty flag.
// It returns false if pageID is not resident or already unpinned.
func (m *Manager) UnpinPage(pageID PageID, isDirty bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.pageTable[pageID]
	if !ok {
		return false
	}
	frame := m.frames[frameID]
	if frame.PinCount == 0 {
		return false
	}

	frame.PinCount--
	if frame.PinCount == 0 {
		if err := m.replacer.SetEvictable(frameID, true); err != nil {
			slog.Error("bufferpool: mark evictable", "frame_id", frameID, "err", err)
		}
	}
	frame.IsDirty = frame.IsDirty || isDirty
	return true
}

// FlushPage writes pageID's current buffer to disk and clears its dirty
// flag. Unlike the other exported Manager methods, FlushPage does NOT take
// mu. Eviction does not go through FlushPage: getFreeFrame flushes a dirty
// victim by calling flushFrameLocked directly while holding mu. External
// callers invoking FlushPage concurrently with other Manager activity are
// responsible for not racing; FlushAllPages is the locked alternative for
// whole-pool flushes.
func (m *Manager) FlushPage(pageID PageID) (bool, error) {
	if pageID == InvalidPageID {
		return false, ErrInvalidPageID
	}
	frameID, ok := m.pageTable[pageID]
	if !ok {
		return false, nil
	}
	if err := m.flushFrameLocked(pageID, m.frames[frameID]); err != nil {
		return false, err
	}
	return true, nil
}

// FlushAllPages writes every resident dirty frame to disk and clears their
// dirty flags.
func (m *Manager) FlushAllPages() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pageID, frameID := range m.pageTable {
		frame := m.frames[frameID]
		if !frame.IsDirty {
			continue
		}
		if err := m.flushFrameLocked(pageID, frame); err != nil {
			return fmt.Errorf("bufferpool: flush page %d: %w", pageID, err)
		}
	}
	return nil
}

// DeletePage removes pageID from the buffer pool, discarding any dirty
// content, and advises the disk manager that the page id is free. It
// returns true if pageID is not resident (vacuously deleted) or was
// successfully deleted, and false if pageID is pinned.
func (m *Manager) DeletePage(pageID PageID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, ok := m.pageTable[pageID]
	if !ok {
		return true, nil
	}
	frame := m.frames[frameID]
	if frame.PinCount > 0 {
		return false, nil
	}

	delete(m.pageTable, pageID)
	if err := m.replacer.Remove(frameID); err != nil {
		return false, err
	}
	frame.reset()
	m.freeList = append(m.freeList, frameID)

	if err := m.disk.DeallocatePage(pageID); err != nil {
		return true, fmt.Errorf("bufferpool: deallocate page %d: %w", pageID, err)
	}
	return true, nil
}

// FetchPageBasic fetches pageID and wraps it in a BasicPageGuard.
func (m *Manager) FetchPageBasic(pageID PageID) (*BasicPageGuard, error) {
	frame, err := m.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	return newBasicGuard(m, frame), nil
}

// FetchPageRead fetches pageID and wraps it in a ReadPageGuard, acquiring
// the frame's shared latch.
func (m *Manager) FetchPageRead(pageID PageID) (*ReadPageGuard, error) {
	frame, err := m.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	return newReadGuard(m, frame), nil
}

// FetchPageWrite fetches pageID and wraps it in a WritePageGuard, acquiring
// the frame's exclusive latch.
func (m *Manager) FetchPageWrite(pageID PageID) (*WritePageGuard, error) {
	frame, err := m.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	return newWriteGuard(m, frame), nil
}

// NewPageGuarded allocates a fresh page and wraps it in a BasicPageGuard.
func (m *Manager) NewPageGuarded() (*BasicPageGuard, error) {
	frame, err := m.NewPage()
	if err != nil {
		return nil, err
	}
	return newBasicGuard(m, frame), nil
}
