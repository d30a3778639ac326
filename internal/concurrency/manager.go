package concurrency

import (
	"sync"

	"github.com/simpledb-go/kernel/internal/file"
)

type lockMode int

const (
	lockShared lockMode = iota
	lockExclusive
)

// Manager is a per-transaction concurrency manager: it tracks which
// locks its owning transaction currently holds, and serializes them
// through the LockTable it was built with. Its own mutex only
// protects that bookkeeping map; the actual blocking happens inside
// the shared LockTable.
type Manager struct {
	lockTable *LockTable
	locks     map[blockKey]lockMode
	mu        sync.Mutex
}

// NewManager builds a concurrency manager sharing lockTable with every
// other transaction in the process.
func NewManager(lockTable *LockTable) *Manager {
	return &Manager{
		lockTable: lockTable,
		locks:     make(map[blockKey]lockMode),
	}
}

// SLock acquires a shared lock on block for the owning transaction, a
// no-op if the transaction already holds some lock on it.
func (cm *Manager) SLock(block *file.BlockID) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.sLockLocked(block)
}

func (cm *Manager) sLockLocked(block *file.BlockID) error {
	key := makeKey(block)
	if _, exists := cm.locks[key]; exists {
		return nil
	}

	if err := cm.lockTable.SLock(block); err != nil {
		return err
	}
	cm.locks[key] = lockShared
	return nil
}

// XLock acquires an exclusive lock on block for the owning transaction.
// If the transaction does not yet hold a lock on block, it first takes
// a shared lock and then upgrades in place, so that the lock table only
// ever has to wait out other transactions' shared holders, never its
// own.
func (cm *Manager) XLock(block *file.BlockID) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	key := makeKey(block)
	if cm.locks[key] == lockExclusive {
		return nil
	}

	if err := cm.sLockLocked(block); err != nil {
		return err
	}

	if err := cm.lockTable.XLock(block); err != nil {
		return err
	}

	cm.locks[key] = lockExclusive
	return nil
}

// Release drops every lock the owning transaction holds.
func (cm *Manager) Release() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for key := range cm.locks {
		block := file.NewBlockID(key.filename, key.blkNum)
		cm.lockTable.Unlock(block)
	}
	cm.locks = make(map[blockKey]lockMode)
}
