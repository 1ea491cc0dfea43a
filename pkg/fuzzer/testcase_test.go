package fuzzer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestCasePath(t *testing.T) {
	diagnostics := `==1== ERROR: AddressSanitizer: heap-buffer-overflow on address 0x602000000070
SUMMARY: AddressSanitizer: heap-buffer-overflow
artifact_prefix='./'; Test unit written to ./crash-da39a3ee5e6b4b0d3255bfef95601890afd80709
Base64: aGVsbG8=
`
	assert.Equal(t,
		filepath.Join("/work/out", "crash-da39a3ee5e6b4b0d3255bfef95601890afd80709"),
		TestCasePath(diagnostics, "/work/out"))
}

func TestTestCasePath_StopsAtWhitespace(t *testing.T) {
	assert.Equal(t,
		filepath.Join("/work/out", "crash-abc123"),
		TestCasePath("Test unit written to ./crash-abc123 and more text", "/work/out"))
}

func TestTestCasePath_NoMarker(t *testing.T) {
	assert.Empty(t, TestCasePath("==1== ERROR: AddressSanitizer: SEGV on unknown address", "/work/out"))
	assert.Empty(t, TestCasePath("", "/work/out"))
	// The path must be relative to the out directory
	assert.Empty(t, TestCasePath("Test unit written to /tmp/crash-abc123", "/work/out"))
}
