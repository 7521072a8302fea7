package bufferpool

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidFrame is returned when a frame id falls outside [0, poolSize).
var ErrInvalidFrame = errors.New("bufferpool: frame id out of range")

// ErrNotEvictable is returned by Remove when called on a tracked frame that
// is not currently marked evictable.
var ErrNotEvictable = errors.New("bufferpool: remove called on a non-evictable frame")

// lruKNode is the replacer's per-frame bookkeeping: a bounded history of the
// last up to K access timestamps (oldest first) and the evictable flag.
type lruKNode struct {
	frameID   FrameID
	history   []int64
	evictable bool
}

// Replacer selects which resident frame to evict under the LRU-K policy: a
// frame with fewer than K recorded accesses (the "cold" pool) is always
// preferred for eviction over one with K or more (the "warm" pool), oldest
// first in each pool.
type Replacer struct {
	mu sync.Mutex

	poolSize int
	k        int

	currentTimestamp int64
	curSize          int

	cold   *orderedList
	warm   *orderedList
	nodes  map[FrameID]*list.Element // present in exactly one of cold/warm
	inWarm map[FrameID]bool
}

// NewReplacer creates a replacer tracking up to poolSize frames using
// history depth k. k must be >= 1.
func NewReplacer(poolSize, k int) *Replacer {
	return &Replacer{
		poolSize: poolSize,
		k:        k,
		cold:     newOrderedList(),
		warm:     newOrderedList(),
		nodes:    make(map[FrameID]*list.Element),
		inWarm:   make(map[FrameID]bool),
	}
}

func (r *Replacer) checkRange(frameID FrameID) error {
	if frameID < 0 || int(frameID) >= r.poolSize {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidFrame, frameID, r.poolSize)
	}
	return nil
}

// RecordAccess appends the current logical timestamp to frameID's history,
// creating a new entry if frameID is not yet tracked (in the cold pool, or
// directly in the warm pool when k == 1), and moving the node from cold to
// warm (or repositioning it within warm) once its history reaches length k.
func (r *Replacer) RecordAccess(frameID FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRange(frameID); err != nil {
		return err
	}

	r.currentTimestamp++

	elem, tracked := r.nodes[frameID]
	if !tracked {
		node := &lruKNode{frameID: frameID, history: []int64{r.currentTimestamp}}
		// A frame can reach k accesses on its very first RecordAccess when
		// k == 1: route it straight into the warm pool rather than always
		// seeding the cold pool, or a later promotion would try to unlink it
		// from a list it was never inserted into.
		if len(node.history) >= r.k {
			r.nodes[frameID] = r.insertWarm(node)
			r.inWarm[frameID] = true
		} else {
			r.nodes[frameID] = r.cold.PushBack(node)
		}
		return nil
	}

	node := elem.Value.(*lruKNode)
	node.history = append(node.history, r.currentTimestamp)

	if len(node.history) < r.k {
		return nil
	}

	// r.inWarm records which list elem actually lives in; this must drive
	// which list we unlink from, not the size of node.history, since the
	// two can disagree right after the k==1 fast path above.
	if r.inWarm[frameID] {
		r.warm.Remove(elem)
		node.history = node.history[1:]
	} else {
		r.cold.Remove(elem)
	}

	r.nodes[frameID] = r.insertWarm(node)
	r.inWarm[frameID] = true
	return nil
}

// insertWarm inserts node into the warm pool at the position that keeps the
// pool sorted ascending by the node's K-th most recent access (the front of
// its history), scanning from the front and inserting before the first
// element whose key is strictly greater.
func (r *Replacer) insertWarm(node *lruKNode) *list.Element {
	kth := node.history[0]
	for e := r.warm.Front(); e != nil; e = e.Next() {
		if e.Value.(*lruKNode).history[0] > kth {
			return r.warm.InsertBefore(node, e)
		}
	}
	return r.warm.PushBack(node)
}

// SetEvictable idempotently toggles whether frameID may be chosen by Evict.
// It is a no-op if frameID is not tracked.
func (r *Replacer) SetEvictable(frameID FrameID, evictable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRange(frameID); err != nil {
		return err
	}

	elem, tracked := r.nodes[frameID]
	if !tracked {
		return nil
	}
	node := elem.Value.(*lruKNode)
	if node.evictable == evictable {
		return nil
	}
	node.evictable = evictable
	if evictable {
		r.curSize++
	} else {
		r.curSize--
	}
	return nil
}

// Evict returns the frame the LRU-K policy selects for eviction: the
// earliest-inserted evictable frame in the cold pool if one exists,
// otherwise the evictable frame at the front of the warm pool. The chosen
// frame is untracked as a side effect.
func (r *Replacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e := r.findEvictable(r.cold); e != nil {
		return r.takeVictim(r.cold, e), true
	}
	if e := r.findEvictable(r.warm); e != nil {
		return r.takeVictim(r.warm, e), true
	}
	return 0, false
}

func (r *Replacer) findEvictable(pool *orderedList) *list.Element {
	for e := pool.Front(); e != nil; e = e.Next() {
		if e.Value.(*lruKNode).evictable {
			return e
		}
	}
	return nil
}

func (r *Replacer) takeVictim(pool *orderedList, e *list.Element) FrameID {
	node := e.Value.(*lruKNode)
	pool.Remove(e)
	delete(r.nodes, node.frameID)
	delete(r.inWarm, node.frameID)
	r.curSize--
	return node.frameID
}

// Remove forcibly untracks frameID. It is a no-op if frameID is not
// tracked, and fails with ErrNotEvictable if the tracked node is not
// currently evictable.
func (r *Replacer) Remove(frameID FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRange(frameID); err != nil {
		return err
	}

	elem, tracked := r.nodes[frameID]
	if !tracked {
		return nil
	}
	node := elem.Value.(*lruKNode)
	if !node.evictable {
		return fmt.Errorf("%w: frame %d", ErrNotEvictable, frameID)
	}

	if r.inWarm[frameID] {
		r.warm.Remove(elem)
	} else {
		r.cold.Remove(elem)
	}
	delete(r.nodes, frameID)
	delete(r.inWarm, frameID)
	r.curSize--
	return nil
}

// Size returns the count of tracked, evictable frames.
func (r *Replacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curSize
}
