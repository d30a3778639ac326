package buffer

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/simpledb-go/kernel/internal/file"
	"github.com/simpledb-go/kernel/internal/log"
)

// DefaultMaxWait is the default time Pin will wait for an unpinned
// buffer before giving up, per spec.md's 10s default.
const DefaultMaxWait = 10 * time.Second

// ErrBufferAbort is returned by Pin when no buffer becomes available
// within the configured wait. Callers are expected to treat it as a
// transaction abort signal.
var ErrBufferAbort = errors.New("buffer manager: timeout waiting for an available buffer")

// Manager maintains a fixed-size pool of Buffer slots, mapping blocks
// to slots on demand under a pin/unpin discipline.
type Manager struct {
	bufferpool   []*Buffer
	numAvailable int
	maxWait      time.Duration
	mu           sync.Mutex
	cond         *sync.Cond
	log          logrus.FieldLogger
}

// NewManager allocates numBuffs empty slots. maxWait <= 0 selects
// DefaultMaxWait.
func NewManager(fileManager *file.Manager, logManager *log.Manager, numBuffs int, maxWait time.Duration) (*Manager, error) {
	if numBuffs <= 0 {
		return nil, errors.New("number of buffers must be positive")
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	bufferpool := make([]*Buffer, 0, numBuffs)
	for range numBuffs {
		bufferpool = append(bufferpool, NewBuffer(fileManager, logManager))
	}

	bm := &Manager{
		bufferpool:   bufferpool,
		numAvailable: numBuffs,
		maxWait:      maxWait,
		log:          logrus.WithField("component", "buffer"),
	}
	bm.cond = sync.NewCond(&bm.mu)
	return bm, nil
}

// Available returns the current count of unpinned slots.
func (bm *Manager) Available() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.numAvailable
}

// FlushAll flushes every slot last dirtied by txnum, forcing each
// slot's log dependency to disk before its page write-back.
func (bm *Manager) FlushAll(txnum int) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for _, buff := range bm.bufferpool {
		if buff.ModifyingTx() == txnum {
			if err := buff.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Unpin decrements buff's pin count and, if it reaches zero, wakes any
// goroutines waiting in Pin for a free slot.
func (bm *Manager) Unpin(buff *Buffer) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if !buff.IsPinned() {
		return
	}
	buff.unpin()
	if !buff.IsPinned() {
		bm.numAvailable++
		bm.cond.Broadcast()
	}
}

// Pin pins a buffer to blk. If blk is already resident, that slot's
// pin count is incremented; otherwise an unpinned slot is chosen,
// flushed if dirty, and reassigned. Pin blocks up to maxWait for a
// slot to free up and returns ErrBufferAbort if none does.
func (bm *Manager) Pin(blk *file.BlockID) (*Buffer, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	deadline := time.Now().Add(bm.maxWait)

	buff, err := bm.tryToPin(blk)
	if err != nil {
		return nil, err
	}

	for buff == nil && time.Now().Before(deadline) {
		// Wake ourselves periodically in case the signalling unpin
		// already happened on another block before we started waiting.
		go func() {
			time.Sleep(10 * time.Millisecond)
			bm.cond.Broadcast()
		}()

		bm.cond.Wait()
		buff, err = bm.tryToPin(blk)
		if err != nil {
			return nil, err
		}
	}

	if buff == nil {
		bm.log.WithField("block", blk.String()).Warn("pin timed out waiting for a free buffer")
		return nil, ErrBufferAbort
	}
	return buff, nil
}

// tryToPin attempts to pin a buffer to blk without waiting. It returns
// (nil, nil) if no slot is currently available.
func (bm *Manager) tryToPin(blk *file.BlockID) (*Buffer, error) {
	buff := bm.findExistingBuffer(blk)

	if buff == nil {
		buff = bm.chooseUnpinnedBuffer()
		if buff == nil {
			return nil, nil
		}
		if err := buff.assignToBlock(blk); err != nil {
			return nil, errors.Wrapf(err, "assign buffer to block %s", blk)
		}
	}

	if !buff.IsPinned() {
		bm.numAvailable--
	}
	buff.pin()

	return buff, nil
}

func (bm *Manager) findExistingBuffer(blk *file.BlockID) *Buffer {
	for _, b := range bm.bufferpool {
		if block := b.Block(); block != nil && block.Equals(blk) {
			return b
		}
	}
	return nil
}

func (bm *Manager) chooseUnpinnedBuffer() *Buffer {
	for _, b := range bm.bufferpool {
		if !b.IsPinned() {
			return b
		}
	}
	return nil
}
