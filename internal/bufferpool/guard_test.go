package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuard_BasicDropIsIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t, 2, 2)
	guard, err := mgr.NewPageGuarded()
	require.NoError(t, err)

	frameID := mgr.pageTable[guard.PageID()]
	require.Equal(t, int32(1), mgr.frames[frameID].PinCount)

	guard.Drop()
	require.Equal(t, int32(0), mgr.frames[frameID].PinCount)

	// Second Drop must not double-unpin.
	guard.Drop()
	require.Equal(t, int32(0), mgr.frames[frameID].PinCount)
}

func TestGuard_BasicDataMutMarksDirty(t *testing.T) {
	mgr, disk := newTestManager(t, 2, 2)
	guard, err := mgr.NewPageGuarded()
	require.NoError(t, err)
	pageID := guard.PageID()

	buf := guard.DataMut()
	buf[0] = 0x42
	guard.Drop()

	frameID, ok := mgr.pageTable[pageID]
	require.True(t, ok)
	require.True(t, mgr.frames[frameID].IsDirty)

	_, err = mgr.FlushPage(pageID)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), disk.get(pageID)[0])
}

func TestGuard_MarkDirtyWithoutDataMut(t *testing.T) {
	mgr, _ := newTestManager(t, 2, 2)
	guard, err := mgr.NewPageGuarded()
	require.NoError(t, err)
	pageID := guard.PageID()

	guard.MarkDirty()
	guard.Drop()

	frameID := mgr.pageTable[pageID]
	require.True(t, mgr.frames[frameID].IsDirty)
}

func TestGuard_ReadGuardTakesSharedLatch(t *testing.T) {
	mgr, _ := newTestManager(t, 2, 2)
	frame, err := mgr.NewPage()
	require.NoError(t, err)
	pageID := frame.PageID
	require.True(t, mgr.UnpinPage(pageID, false))

	g1, err := mgr.FetchPageRead(pageID)
	require.NoError(t, err)
	g2, err := mgr.FetchPageRead(pageID)
	require.NoError(t, err)

	require.Equal(t, int32(2), frame.PinCount)

	g1.Drop()
	require.Equal(t, int32(1), frame.PinCount)
	g2.Drop()
	require.Equal(t, int32(0), frame.PinCount)
}

func TestGuard_WriteGuardAlwaysMarksDirty(t *testing.T) {
	mgr, disk := newTestManager(t, 2, 2)
	frame, err := mgr.NewPage()
	require.NoError(t, err)
	pageID := frame.PageID
	require.True(t, mgr.UnpinPage(pageID, false))

	g, err := mgr.FetchPageWrite(pageID)
	require.NoError(t, err)
	data := g.DataMut()
	data[0] = 0x99
	g.Drop()

	require.True(t, frame.IsDirty)
	_, err = mgr.FlushPage(pageID)
	require.NoError(t, err)
	require.Equal(t, byte(0x99), disk.get(pageID)[0])
}
