package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpledb-go/kernel/internal/file"
	"github.com/simpledb-go/kernel/internal/log"
)

func newTestPool(t *testing.T, numBuffs int, maxWait time.Duration) (*file.Manager, *Manager) {
	t.Helper()
	fm, err := file.NewManager(t.TempDir(), 400)
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })

	lm, err := log.NewManager(fm, "test.log")
	require.NoError(t, err)

	bm, err := NewManager(fm, lm, numBuffs, maxWait)
	require.NoError(t, err)
	return fm, bm
}

// TestManager_PinUnpinAccounting mirrors spec.md §8 scenario 1.
func TestManager_PinUnpinAccounting(t *testing.T) {
	_, bm := newTestPool(t, 3, 0)

	b1, err := bm.Pin(file.NewBlockID("f", 1))
	require.NoError(t, err)
	assert.Equal(t, 2, bm.Available())

	_, err = bm.Pin(file.NewBlockID("f", 2))
	require.NoError(t, err)
	assert.Equal(t, 1, bm.Available())

	_, err = bm.Pin(file.NewBlockID("f", 3))
	require.NoError(t, err)
	assert.Equal(t, 0, bm.Available())

	bm.Unpin(b1)
	assert.Equal(t, 1, bm.Available())

	_, err = bm.Pin(file.NewBlockID("f", 4))
	require.NoError(t, err)
	assert.Equal(t, 0, bm.Available())
}

// TestManager_PinTimesOut mirrors spec.md §8 scenario 2.
func TestManager_PinTimesOut(t *testing.T) {
	_, bm := newTestPool(t, 3, 100*time.Millisecond)

	for i := 1; i <= 3; i++ {
		_, err := bm.Pin(file.NewBlockID("f", i))
		require.NoError(t, err)
	}

	start := time.Now()
	_, err := bm.Pin(file.NewBlockID("f", 4))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBufferAbort)
	assert.Contains(t, err.Error(), "timeout")
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestManager_PinReturnsSameBufferForSameBlock(t *testing.T) {
	_, bm := newTestPool(t, 3, 0)

	blk := file.NewBlockID("f", 1)
	b1, err := bm.Pin(blk)
	require.NoError(t, err)
	avail := bm.Available()

	b2, err := bm.Pin(blk)
	require.NoError(t, err)

	assert.Same(t, b1, b2)
	assert.Equal(t, avail, bm.Available(), "re-pinning an already-pinned block must not consume a slot")
}

func TestManager_UnpinSaturatesAtZero(t *testing.T) {
	_, bm := newTestPool(t, 2, 0)

	b1, err := bm.Pin(file.NewBlockID("f", 1))
	require.NoError(t, err)

	bm.Unpin(b1)
	assert.Equal(t, 2, bm.Available())

	// unpinning an already-unpinned buffer must not push available above pool size
	bm.Unpin(b1)
	assert.Equal(t, 2, bm.Available())
}

func TestManager_FlushAllFlushesOnlyMatchingTxn(t *testing.T) {
	_, bm := newTestPool(t, 2, 0)

	b1, err := bm.Pin(file.NewBlockID("f", 1))
	require.NoError(t, err)
	b1.Contents().SetInt(0, 42)
	b1.SetModified(7, -1)

	b2, err := bm.Pin(file.NewBlockID("f", 2))
	require.NoError(t, err)
	b2.Contents().SetInt(0, 99)
	b2.SetModified(8, -1)

	require.NoError(t, bm.FlushAll(7))

	assert.Equal(t, -1, b1.ModifyingTx())
	assert.Equal(t, 8, b2.ModifyingTx())
}
