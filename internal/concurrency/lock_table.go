package concurrency

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/simpledb-go/kernel/internal/file"
)

// DefaultMaxWait is the default time a lock request waits before
// aborting, per spec.md's 10s default.
const DefaultMaxWait = 10 * time.Second

// ErrLockAbort is returned by LockTable.SLock/XLock when the requested
// lock could not be granted within the configured wait. Callers are
// expected to treat it as a transaction abort signal.
var ErrLockAbort = errors.New("lock abort")

type blockKey struct {
	filename string
	blkNum   int
}

func makeKey(block *file.BlockID) blockKey {
	return blockKey{filename: block.Filename(), blkNum: block.Number()}
}

// LockTable holds shared/exclusive block-level locks. The package keeps
// no global instance: each NewLockTable call returns an independent
// table, and only managers built on the same table exclude each other.
// A single condition variable serves every waiter;
// unlocking any block broadcasts to all of them, which is spurious but
// correct (spec.md §9).
type LockTable struct {
	mu      sync.Mutex
	cond    *sync.Cond
	locks   map[blockKey]int // n>0: n shared holders, -1: one exclusive holder
	maxWait time.Duration
	log     logrus.FieldLogger
}

// NewLockTable constructs an empty lock table. maxWait <= 0 selects
// DefaultMaxWait.
func NewLockTable(maxWait time.Duration) *LockTable {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	lt := &LockTable{
		locks:   make(map[blockKey]int),
		maxWait: maxWait,
		log:     logrus.WithField("component", "lock-table"),
	}
	lt.cond = sync.NewCond(&lt.mu)
	return lt
}

// SLock grants a shared lock on block, waiting out any exclusive
// holder up to maxWait.
func (lt *LockTable) SLock(block *file.BlockID) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	key := makeKey(block)
	deadline := time.Now().Add(lt.maxWait)

	for lt.locks[key] == -1 && time.Now().Before(deadline) {
		lt.waitUntil(deadline)
	}
	if lt.locks[key] == -1 {
		lt.log.WithField("block", block.String()).Warn("slock timed out")
		return errors.Wrapf(ErrLockAbort, "slock on %s timed out", block)
	}

	lt.locks[key]++
	return nil
}

// XLock upgrades or grants an exclusive lock on block. Per the
// concurrency manager's locking protocol, the caller is expected to
// already hold a shared lock, so XLock only waits out *other* shared
// holders: a lock count of exactly 1 is assumed to be the caller's own
// ticket and is overwritten immediately rather than waited on.
func (lt *LockTable) XLock(block *file.BlockID) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	key := makeKey(block)
	deadline := time.Now().Add(lt.maxWait)

	for lt.locks[key] > 1 && time.Now().Before(deadline) {
		lt.waitUntil(deadline)
	}
	if lt.locks[key] > 1 {
		lt.log.WithField("block", block.String()).Warn("xlock timed out")
		return errors.Wrapf(ErrLockAbort, "xlock on %s timed out", block)
	}

	lt.locks[key] = -1
	return nil
}

// Unlock releases one holder's lock on block. If other shared holders
// remain, the count is decremented; otherwise the entry is removed. In
// both cases every waiter is woken to re-check its condition.
func (lt *LockTable) Unlock(block *file.BlockID) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	key := makeKey(block)
	if lt.locks[key] > 1 {
		lt.locks[key]--
	} else {
		delete(lt.locks, key)
	}
	lt.cond.Broadcast()
}

// HasXLock returns true if the block has an exclusive lock.
func (lt *LockTable) HasXLock(block *file.BlockID) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.locks[makeKey(block)] == -1
}

// HasSLock returns true if the block has one or more shared locks.
func (lt *LockTable) HasSLock(block *file.BlockID) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.locks[makeKey(block)] > 0
}

// waitUntil blocks on the condition variable, guaranteeing a wakeup at
// deadline even if no unlock happens in the meantime. lt.mu must be
// held on entry; it is released while waiting and reacquired on return.
func (lt *LockTable) waitUntil(deadline time.Time) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return
	}

	timer := time.AfterFunc(remaining, func() {
		lt.mu.Lock()
		lt.cond.Broadcast()
		lt.mu.Unlock()
	})
	lt.cond.Wait()
	timer.Stop()
}
