package archiveutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code-intelligence.com/fuzzgate/internal/testutil"
)

func TestUnzip(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "archiveutil-test-")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	archivePath := filepath.Join(tempDir, "archive.zip")
	testutil.WriteZip(t, archivePath, map[string]string{
		"fuzzer":          "binary",
		"seeds/input.txt": "hello",
	})

	destDir := filepath.Join(tempDir, "dest")
	require.NoError(t, Unzip(archivePath, destDir))

	content, err := os.ReadFile(filepath.Join(destDir, "fuzzer"))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(content))

	content, err = os.ReadFile(filepath.Join(destDir, "seeds", "input.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestUnzip_RejectsPathTraversal(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "archiveutil-test-")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	archivePath := filepath.Join(tempDir, "archive.zip")
	testutil.WriteZip(t, archivePath, map[string]string{
		"../evil": "payload",
	})

	destDir := filepath.Join(tempDir, "dest")
	err = Unzip(archivePath, destDir)
	require.Error(t, err)

	exists, statErr := os.Stat(filepath.Join(tempDir, "evil"))
	assert.True(t, os.IsNotExist(statErr), "file escaped the destination: %v", exists)
}

func TestUnzip_MissingArchive(t *testing.T) {
	err := Unzip("/does/not/exist.zip", os.TempDir())
	assert.Error(t, err)
}
