package testutil

import (
	"archive/zip"
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// ZipBytes builds an in-memory zip archive from name→content entries.
func ZipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// WriteZip writes a zip archive with the given entries to path.
func WriteZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, ZipBytes(t, files), 0644))
}
