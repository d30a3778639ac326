package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_WriteRead(t *testing.T) {
	tempDir := t.TempDir()

	blockSize := 400
	fm, err := NewManager(tempDir, blockSize)
	require.NoError(t, err)
	defer fm.Close()

	filename := "test.db"

	blk0, err := fm.Append(filename)
	require.NoError(t, err)
	assert.Equal(t, 0, blk0.Number(), "first block should be 0")

	page := NewPage(blockSize)
	data := "Hello, World!"
	page.SetString(0, data)
	require.NoError(t, fm.Write(blk0, page))

	readPage := NewPage(blockSize)
	require.NoError(t, fm.Read(blk0, readPage))
	assert.Equal(t, data, readPage.GetString(0))

	blk1, err := fm.Append(filename)
	require.NoError(t, err)
	assert.Equal(t, 1, blk1.Number(), "second block should be 1")

	data2 := "Second block data"
	page.SetString(0, data2)
	require.NoError(t, fm.Write(blk1, page))

	require.NoError(t, fm.Read(blk0, readPage))
	assert.Equal(t, data, readPage.GetString(0), "block 0 data should be unchanged")

	require.NoError(t, fm.Read(blk1, readPage))
	assert.Equal(t, data2, readPage.GetString(0))
}

func TestManager_ReadPastEOFFails(t *testing.T) {
	tempDir := t.TempDir()

	fm, err := NewManager(tempDir, 400)
	require.NoError(t, err)
	defer fm.Close()

	// no blocks have been appended yet
	err = fm.Read(NewBlockID("test.db", 0), NewPage(400))
	assert.Error(t, err)
}

func TestManager_TotalBlocks(t *testing.T) {
	tempDir := t.TempDir()

	blockSize := 400
	fm, err := NewManager(tempDir, blockSize)
	require.NoError(t, err)
	defer fm.Close()

	filename1 := "test1.db"
	for i := 0; i < 5; i++ {
		blk, err := fm.Append(filename1)
		require.NoError(t, err)
		assert.Equal(t, i, blk.Number())
	}

	numBlocks, err := fm.GetTotalBlocks(filename1)
	require.NoError(t, err)
	assert.Equal(t, 5, numBlocks)

	filename2 := "test2.db"
	numBlocks, err = fm.GetTotalBlocks(filename2)
	require.NoError(t, err)
	assert.Equal(t, 0, numBlocks, "new file should have 0 blocks")
}

func TestNewManager_CreatesDirAndReportsIsNew(t *testing.T) {
	parent := t.TempDir()
	dbDir := filepath.Join(parent, "dbdata")

	fm, err := NewManager(dbDir, 400)
	require.NoError(t, err)
	defer fm.Close()

	assert.True(t, fm.IsNew())
	_, err = os.Stat(dbDir)
	assert.NoError(t, err)

	fm2, err := NewManager(dbDir, 400)
	require.NoError(t, err)
	defer fm2.Close()
	assert.False(t, fm2.IsNew())
}

func TestNewManager_SweepsTempFiles(t *testing.T) {
	dbDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dbDir, "tempsortrun1"), []byte("x"), 0666))
	require.NoError(t, os.WriteFile(filepath.Join(dbDir, "tables.tbl"), []byte("keep"), 0666))

	fm, err := NewManager(dbDir, 400)
	require.NoError(t, err)
	defer fm.Close()

	_, err = os.Stat(filepath.Join(dbDir, "tempsortrun1"))
	assert.True(t, os.IsNotExist(err), "temp* file should have been swept")

	_, err = os.Stat(filepath.Join(dbDir, "tables.tbl"))
	assert.NoError(t, err, "non-temp file should survive")
}
