package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "fileutil-test-")
	require.NoError(t, err)
	defer Cleanup(tempDir)

	exists, err := Exists(filepath.Join(tempDir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)

	path := filepath.Join(tempDir, "file")
	err = Touch(path)
	require.NoError(t, err)

	exists, err = Exists(path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestIsDir(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "fileutil-test-")
	require.NoError(t, err)
	defer Cleanup(tempDir)

	assert.True(t, IsDir(tempDir))

	path := filepath.Join(tempDir, "file")
	err = Touch(path)
	require.NoError(t, err)
	assert.False(t, IsDir(path))

	assert.False(t, IsDir(filepath.Join(tempDir, "missing")))
}
