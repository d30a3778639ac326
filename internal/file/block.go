package file

import "fmt"

// BlockID identifies one fixed-size block within a named file.
// It is a value type: two BlockIDs are equal iff their filename and
// number are equal, and callers are free to copy it at will.
type BlockID struct {
	filename string
	blkNum   int
}

// NewBlockID creates a new BlockID instance
func NewBlockID(filename string, blkNum int) *BlockID {
	return &BlockID{
		filename: filename,
		blkNum:   blkNum,
	}
}

// Filename returns the name of the file containing this block
func (b *BlockID) Filename() string {
	return b.filename
}

// Number returns the block number
func (b *BlockID) Number() int {
	return b.blkNum
}

// Equals reports whether b and other identify the same block.
func (b *BlockID) Equals(other *BlockID) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.filename == other.filename && b.blkNum == other.blkNum
}

func (b *BlockID) String() string {
	return fmt.Sprintf("[file %s, block %d]", b.filename, b.blkNum)
}
