package file

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// tempFilePrefix names the scratch files a higher layer (temp tables,
// sort runs) creates and expects to be swept away on a fresh start.
const tempFilePrefix = "temp"

// Manager manages disk files as fixed-size blocks.
// Each block is the same size as a Page.
// Page is the in-memory representation of a block
// - Read: BlockID → load block from disk → store in Page
// - Modify: change data in Page
// - Write: Page → write back to disk at BlockID location
type Manager struct {
	blockSize   int
	dbDir       string
	isNew       bool
	openedFiles map[string]*os.File
	mu          sync.Mutex
}

// NewManager creates a new file manager rooted at dbDir. If dbDir does
// not exist it is created and IsNew reports true for the lifetime of
// this Manager. Any existing entry whose name begins with "temp" is
// deleted, mirroring the cleanup a restarted server performs on the
// scratch tables a higher layer leaves behind.
func NewManager(dbDir string, blockSize int) (*Manager, error) {
	_, err := os.Stat(dbDir)
	isNew := os.IsNotExist(err)
	if isNew {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create database directory %s", dbDir)
		}
	} else if err != nil {
		return nil, errors.Wrapf(err, "stat database directory %s", dbDir)
	}

	entries, err := os.ReadDir(dbDir)
	if err != nil {
		return nil, errors.Wrapf(err, "list database directory %s", dbDir)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), tempFilePrefix) {
			if err := os.Remove(filepath.Join(dbDir, entry.Name())); err != nil {
				return nil, errors.Wrapf(err, "remove stale temp file %s", entry.Name())
			}
		}
	}

	return &Manager{
		blockSize:   blockSize,
		dbDir:       dbDir,
		isNew:       isNew,
		openedFiles: make(map[string]*os.File),
	}, nil
}

// BlockSize returns the block size
func (fm *Manager) BlockSize() int {
	return fm.blockSize
}

// IsNew reports whether the database directory had to be created by
// this call to NewManager, letting callers distinguish a cold start.
func (fm *Manager) IsNew() bool {
	return fm.isNew
}

// Read reads the contents of the specified block into the provided page.
// Can only read blocks that exist (0 to numBlocks-1).
func (fm *Manager) Read(blk *BlockID, p *Page) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if blk.Number() < 0 {
		return errors.Errorf("negative block number in %s", blk)
	}

	f, err := fm.getFile(blk.Filename())
	if err != nil {
		return errors.Wrapf(err, "open file for block %s", blk)
	}

	numBlocks, err := fm.getTotalBlocksLocked(blk.Filename())
	if err != nil {
		return errors.Wrapf(err, "stat file for block %s", blk)
	}

	// Can only read blocks that actually exist in the file
	if blk.Number() >= numBlocks {
		return errors.Errorf("cannot read block %s: file only has %d blocks", blk, numBlocks)
	}

	_, err = f.ReadAt(p.Bytes(), int64(blk.Number())*int64(fm.blockSize))
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "read block %s", blk)
	}

	return nil
}

// Write writes the contents of the provided page to the specified
// block and forces the write to the block device before returning.
func (fm *Manager) Write(blk *BlockID, p *Page) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if blk.Number() < 0 {
		return errors.Errorf("negative block number in %s", blk)
	}

	f, err := fm.getFile(blk.Filename())
	if err != nil {
		return errors.Wrapf(err, "open file for block %s", blk)
	}

	if _, err := f.WriteAt(p.Bytes(), int64(blk.Number())*int64(fm.blockSize)); err != nil {
		return errors.Wrapf(err, "write block %s", blk)
	}

	if err := f.Sync(); err != nil {
		return errors.Wrapf(err, "sync file after writing block %s", blk)
	}

	return nil
}

// Append adds a new zero-filled block to the end of filename and
// returns its BlockID, syncing before returning.
func (fm *Manager) Append(filename string) (*BlockID, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	numBlocks, err := fm.getTotalBlocksLocked(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "stat file %s", filename)
	}

	blk := NewBlockID(filename, numBlocks)
	emptyBytes := make([]byte, fm.blockSize)

	f, err := fm.getFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open file %s", filename)
	}

	if _, err := f.WriteAt(emptyBytes, int64(blk.Number())*int64(fm.blockSize)); err != nil {
		return nil, errors.Wrapf(err, "append block %s", blk)
	}

	if err := f.Sync(); err != nil {
		return nil, errors.Wrapf(err, "sync file after appending block %s", blk)
	}

	return blk, nil
}

// Close closes all opened files
func (fm *Manager) Close() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	for name, f := range fm.openedFiles {
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "close file %s", name)
		}
		delete(fm.openedFiles, name)
	}
	return nil
}

// GetTotalBlocks returns the number of blocks in the specified file.
// Blocks are 0-indexed, so a file with blocks 0,1,2,3,4 has count 5.
func (fm *Manager) GetTotalBlocks(filename string) (int, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.getTotalBlocksLocked(filename)
}

func (fm *Manager) getTotalBlocksLocked(filename string) (int, error) {
	f, err := fm.getFile(filename)
	if err != nil {
		return 0, err
	}

	fi, err := f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat file %s", filename)
	}

	return int(fi.Size() / int64(fm.blockSize)), nil
}

// getFile returns the file with the specified filename, creating it if
// it does not exist. Callers must hold fm.mu.
func (fm *Manager) getFile(filename string) (*os.File, error) {
	f, ok := fm.openedFiles[filename]
	if ok {
		return f, nil
	}

	f, err := os.OpenFile(filepath.Join(fm.dbDir, filename), os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open file %s", filename)
	}
	fm.openedFiles[filename] = f

	return f, nil
}
