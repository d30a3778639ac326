package log

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/simpledb-go/kernel/internal/file"
)

// Manager serializes variable-length records into a single append-only
// log file, assigning each a monotone LSN. Appends are buffered in an
// in-memory tail page; durability is only guaranteed after Flush.
type Manager struct {
	fileManager  *file.Manager
	logFilename  string
	logPage      *file.Page
	currentBlk   *file.BlockID
	latestLSN    int
	lastSavedLSN int
	mu           sync.Mutex
	log          logrus.FieldLogger
}

// NewManager creates a new log manager. The log manager maintains a
// single "current block" where new records are appended.
// If the log file is empty, it creates and initializes the first block.
// If the log file exists, it uses the last block as the current block.
//
// Block initialization:
//   - New blocks have boundary set to blockSize (indicating completely empty)
//   - Existing blocks are read to get their current state (boundary + existing records)
func NewManager(fm *file.Manager, logFilename string) (*Manager, error) {
	logPage := file.NewPage(fm.BlockSize())

	totalBlocks, err := fm.GetTotalBlocks(logFilename)
	if err != nil {
		return nil, errors.Wrap(err, "get total blocks in log file")
	}

	var currentBlk *file.BlockID

	if totalBlocks == 0 {
		// Create and initialize new block
		// Set boundary to blockSize, this indicates the block is completely empty
		currentBlk, err = fm.Append(logFilename)
		if err != nil {
			return nil, errors.Wrap(err, "append first block to log file")
		}
		logPage.SetInt(0, fm.BlockSize())
		if err := fm.Write(currentBlk, logPage); err != nil {
			return nil, errors.Wrap(err, "write first block to log file")
		}
	} else {
		// Use the last block (blocks are zero-indexed, so the last block is totalBlocks - 1)
		// This makes the last existing block the current log block for appending new records.
		currentBlk = file.NewBlockID(logFilename, totalBlocks-1)
		if err := fm.Read(currentBlk, logPage); err != nil {
			return nil, errors.Wrap(err, "read last block from log file")
		}
	}

	return &Manager{
		fileManager:  fm,
		logFilename:  logFilename,
		logPage:      logPage,
		currentBlk:   currentBlk,
		latestLSN:    0,
		lastSavedLSN: 0,
		log:          logrus.WithField("component", "log"),
	}, nil
}

// Close flushes the tail page to disk. It closes no files; the log
// file's handle belongs to the file.Manager.
func (lm *Manager) Close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	return lm.flush()
}

// Flush forces the tail page to disk if lsn is at least as new as the
// highest LSN already known to be durable; otherwise it is a no-op.
func (lm *Manager) Flush(lsn int) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lsn >= lm.lastSavedLSN {
		return lm.flush()
	}
	return nil
}

// Iterator flushes the tail page and returns an iterator that walks
// the log newest-to-oldest. The iterator is finite and forward-only.
func (lm *Manager) Iterator() (*Iterator, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if err := lm.flush(); err != nil {
		return nil, errors.Wrap(err, "flush log page before iterating")
	}
	return NewIterator(lm.fileManager, lm.currentBlk)
}

// flush is an internal method that writes the current log page to disk.
// It assumes that the mutex is already locked.
func (lm *Manager) flush() error {
	if err := lm.fileManager.Write(lm.currentBlk, lm.logPage); err != nil {
		return errors.Wrap(err, "write log page to disk")
	}
	lm.lastSavedLSN = lm.latestLSN
	return nil
}

// Append adds a new log record to the log file and returns its LSN.
//
// Block Layout:
//
//	[0-3]: boundary pointer (4 bytes) - points to start of used space (where records begin)
//	[4 to boundary-1]: free space
//	[boundary to blockSize-1]: log records (newest at boundary, oldest at end)
//
// Example of a block with records:
//
//	Block size: 100 bytes
//	Boundary: 60 (stored at offset 0-3)
//
//	Layout:
//	[0-3]:   boundary = 60
//	[4-59]:  free space (56 bytes available)
//	[60-69]: record3 (10 bytes: 4-byte length + 6-byte data)
//	[70-79]: record2 (10 bytes: 4-byte length + 6-byte data)
//	[80-99]: record1 (20 bytes: 4-byte length + 16-byte data)
//
//	When appending record4 (8 bytes data):
//	- Need 12 bytes total (4 for length + 8 for data)
//	- New position: 60 - 12 = 48
//	- Check: 12 <= 60 - 4? Yes (12 <= 56), so it fits
//	- Write record at position 48-59
//	- Update boundary to 48
func (lm *Manager) Append(logrec []byte) (int, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	boundary := lm.logPage.GetInt(0)
	bytesNeeded := len(logrec) + 4

	// The record should fit entirely within [4, boundary] in the current block.
	// If not, flush the tail and roll over to a new block.
	availableSpace := boundary - 4
	if bytesNeeded > availableSpace {
		if err := lm.flush(); err != nil {
			return 0, err
		}

		var err error
		lm.currentBlk, err = lm.fileManager.Append(lm.logFilename)
		if err != nil {
			return 0, errors.Wrap(err, "append new log block")
		}
		lm.logPage.SetInt(0, lm.fileManager.BlockSize())
		if err := lm.fileManager.Write(lm.currentBlk, lm.logPage); err != nil {
			return 0, errors.Wrap(err, "initialize new log block")
		}

		lm.log.WithField("block", lm.currentBlk.Number()).Debug("rolled over to new log block")

		boundary = lm.logPage.GetInt(0)
	}

	// Records grow downward from the boundary.
	recpos := boundary - bytesNeeded
	lm.logPage.SetBytes(recpos, logrec)
	lm.logPage.SetInt(0, recpos)
	lm.latestLSN++

	return lm.latestLSN, nil
}
