package buffer

import (
	"github.com/pkg/errors"

	"github.com/simpledb-go/kernel/internal/file"
	"github.com/simpledb-go/kernel/internal/log"
)

// Buffer is one pool slot: an owned Page plus the bookkeeping needed to
// decide when it can be reassigned and what must happen before it is
// written back.
type Buffer struct {
	fileManager *file.Manager
	logManager  *log.Manager
	contents    *file.Page
	blk         *file.BlockID
	pins        int
	txNum       int
	lsn         int
}

func NewBuffer(fm *file.Manager, lm *log.Manager) *Buffer {
	return &Buffer{
		fileManager: fm,
		logManager:  lm,
		contents:    file.NewPage(fm.BlockSize()),
		blk:         nil,
		pins:        0,
		txNum:       -1,
		lsn:         -1,
	}
}

func (b *Buffer) Contents() *file.Page {
	return b.contents
}

func (b *Buffer) Block() *file.BlockID {
	return b.blk
}

func (b *Buffer) IsPinned() bool {
	return b.pins > 0
}

// SetModified marks this buffer as modified by the specified transaction.
// If lsn is non-negative, it also sets the log sequence number; a
// negative lsn means "no log record associated" (e.g. metadata pages).
func (b *Buffer) SetModified(txnum int, lsn int) {
	b.txNum = txnum
	if lsn >= 0 {
		b.lsn = lsn
	}
}

// ModifyingTx returns the transaction number that last dirtied this
// buffer, or -1 if it is clean.
func (b *Buffer) ModifyingTx() int {
	return b.txNum
}

// assignToBlock flushes whatever this slot currently holds, then
// assigns it to blk, extending the underlying file if blk does not yet
// exist, and reads blk's contents into the slot.
func (b *Buffer) assignToBlock(blk *file.BlockID) error {
	if err := b.flush(); err != nil {
		return err
	}
	b.blk = blk

	numBlocks, err := b.fileManager.GetTotalBlocks(blk.Filename())
	if err != nil {
		return errors.Wrapf(err, "count blocks in %s", blk.Filename())
	}

	for numBlocks <= blk.Number() {
		if _, err := b.fileManager.Append(blk.Filename()); err != nil {
			return errors.Wrapf(err, "extend %s to hold block %s", blk.Filename(), blk)
		}
		numBlocks++
	}

	if err := b.fileManager.Read(blk, b.contents); err != nil {
		return errors.Wrapf(err, "read block %s into buffer", blk)
	}

	b.pins = 0
	return nil
}

// flush is the WAL rule: if this slot is dirty, force its log
// dependency to disk before writing the page back, then mark it clean.
func (b *Buffer) flush() error {
	if b.txNum < 0 {
		return nil
	}

	if err := b.logManager.Flush(b.lsn); err != nil {
		return errors.Wrap(err, "force log before page write-back")
	}
	if err := b.fileManager.Write(b.blk, b.contents); err != nil {
		return errors.Wrapf(err, "write back block %s", b.blk)
	}
	b.txNum = -1
	return nil
}

func (b *Buffer) pin() {
	b.pins++
}

// unpin decrements the pin count, saturating at 0 so repeated unpins of
// an already-unpinned slot never underflow.
func (b *Buffer) unpin() {
	if b.pins > 0 {
		b.pins--
	}
}
