package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"flexiseat/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test_dir")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.PingContext(context.Background())
	assert.NoError(t, err)
}

func TestDeskCache(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	db.SetDesks([]models.Desk{
		{ID: "B-2", Zone: "Creative Hub", Level: 4},
		{ID: "A-1", Zone: "Creative Hub", Level: 3},
		{ID: "A-2", Zone: "Creative Hub", Level: 3},
	})

	desks := db.GetDesks()
	require.Len(t, desks, 3)
	// Sorted by level, then id
	assert.Equal(t, "A-1", desks[0].ID)
	assert.Equal(t, "A-2", desks[1].ID)
	assert.Equal(t, "B-2", desks[2].ID)

	d, ok := db.GetDesk("B-2")
	require.True(t, ok)
	assert.Equal(t, 4, d.Level)

	_, ok = db.GetDesk("Z-9")
	assert.False(t, ok)

	level3 := db.DesksByLevel(3)
	assert.Len(t, level3, 2)

	assert.Equal(t, []int{3, 4}, db.Levels())
}
