package bufferpool

import "sync"

// noCopy embeds into a struct to make `go vet`'s copylocks check flag
// accidental copies of guard values. A guard's zero value is never valid on
// its own, so this mirrors the same trick sync.WaitGroup uses to document
// "pass by pointer, or move by assignment, never copy" for a plain struct.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// BasicPageGuard holds a pin on a frame but no latch. The caller is
// responsible for external synchronization of Data; use ReadPageGuard or
// WritePageGuard when concurrent access is possible.
type BasicPageGuard struct {
	noCopy

	mgr    *Manager
	frame  *Frame
	pageID PageID
	dirty  bool
	once   sync.Once
}

func newBasicGuard(mgr *Manager, frame *Frame) *BasicPageGuard {
	return &BasicPageGuard{mgr: mgr, frame: frame, pageID: frame.PageID}
}

// PageID returns the id of the page this guard holds a pin on.
func (g *BasicPageGuard) PageID() PageID { return g.pageID }

// Data returns the frame's buffer for read-only access.
func (g *BasicPageGuard) Data() []byte { return g.frame.Data }

// DataMut returns the frame's buffer for mutation and marks the page dirty.
func (g *BasicPageGuard) DataMut() []byte {
	g.dirty = true
	return g.frame.Data
}

// MarkDirty flags the page as modified without going through DataMut.
func (g *BasicPageGuard) MarkDirty() { g.dirty = true }

// Drop releases the pin, marking the frame dirty if the caller mutated it.
// Safe to call multiple times or via defer; only the first call has effect.
func (g *BasicPageGuard) Drop() {
	g.once.Do(func() {
		g.mgr.UnpinPage(g.pageID, g.dirty)
	})
}

// ReadPageGuard holds a pin plus a shared latch on the frame's buffer.
type ReadPageGuard struct {
	noCopy

	mgr    *Manager
	frame  *Frame
	pageID PageID
	once   sync.Once
}

func newReadGuard(mgr *Manager, frame *Frame) *ReadPageGuard {
	frame.Latch.RLock()
	return &ReadPageGuard{mgr: mgr, frame: frame, pageID: frame.PageID}
}

// PageID returns the id of the page this guard holds a pin on.
func (g *ReadPageGuard) PageID() PageID { return g.pageID }

// Data returns the frame's buffer for read-only access.
func (g *ReadPageGuard) Data() []byte { return g.frame.Data }

// Drop releases the shared latch, then the pin, in that order.
func (g *ReadPageGuard) Drop() {
	g.once.Do(func() {
		g.frame.Latch.RUnlock()
		g.mgr.UnpinPage(g.pageID, false)
	})
}

// WritePageGuard holds a pin plus an exclusive latch on the frame's buffer.
// Every WritePageGuard is assumed to mutate the page: Drop always marks it
// dirty.
type WritePageGuard struct {
	noCopy

	mgr    *Manager
	frame  *Frame
	pageID PageID
	once   sync.Once
}

func newWriteGuard(mgr *Manager, frame *Frame) *WritePageGuard {
	frame.Latch.Lock()
	return &WritePageGuard{mgr: mgr, frame: frame, pageID: frame.PageID}
}

// PageID returns the id of the page this guard holds a pin on.
func (g *WritePageGuard) PageID() PageID { return g.pageID }

// Data returns the frame's buffer for read-only access.
func (g *WritePageGuard) Data() []byte { return g.frame.Data }

// DataMut returns the frame's buffer for mutation.
func (g *WritePageGuard) DataMut() []byte { return g.frame.Data }

// Drop releases the exclusive latch, then the pin, in that order.
func (g *WritePageGuard) Drop() {
	g.once.Do(func() {
		g.frame.Latch.Unlock()
		g.mgr.UnpinPage(g.pageID, true)
	})
}
