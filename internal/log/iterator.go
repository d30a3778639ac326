package log

import (
	"github.com/pkg/errors"

	"github.com/simpledb-go/kernel/internal/file"
)

// Iterator walks the log newest-to-oldest, one record at a time.
// ITERATION STRATEGY:
// - Start at the current block's boundary (newest record in that block)
// - Read records moving toward blockSize (newest to oldest within block)
// - When block is exhausted, move to previous block and repeat
type Iterator struct {
	fm         *file.Manager
	blk        *file.BlockID
	page       *file.Page
	currentpos int
	boundary   int
}

// NewIterator creates a new iterator for the log file, starting at the given block.
func NewIterator(fm *file.Manager, blk *file.BlockID) (*Iterator, error) {
	it := &Iterator{
		fm:   fm,
		blk:  blk,
		page: file.NewPage(fm.BlockSize()),
	}
	if err := it.moveToBlock(blk); err != nil {
		return nil, err
	}
	return it, nil
}

// HasNext returns true if there are more log records to read.
func (it *Iterator) HasNext() bool {
	return it.currentpos < it.fm.BlockSize() || it.blk.Number() > 0
}

// Next returns the next log record, or nil once the sequence is exhausted.
func (it *Iterator) Next() ([]byte, error) {
	// If we've read all records in current block, move to previous block
	if it.currentpos >= it.fm.BlockSize() {
		if it.blk.Number() == 0 {
			return nil, nil
		}
		next := file.NewBlockID(it.blk.Filename(), it.blk.Number()-1)
		if err := it.moveToBlock(next); err != nil {
			return nil, err
		}
		it.blk = next
	}

	// Read current record and advance position
	rec := it.page.GetBytes(it.currentpos)
	it.currentpos += 4 + len(rec) // Move past this record (4 bytes length + data)
	return rec, nil
}

// moveToBlock moves the iterator to the specified block and reads its contents.
func (it *Iterator) moveToBlock(blk *file.BlockID) error {
	if err := it.fm.Read(blk, it.page); err != nil {
		return errors.Wrapf(err, "read log block %s", blk)
	}
	it.boundary = it.page.GetInt(0)
	// Start at the boundary (newest record)
	it.currentpos = it.boundary
	return nil
}
