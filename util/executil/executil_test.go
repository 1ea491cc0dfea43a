//go:build !windows

package executil

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdoutTeePipe_ReadSync(t *testing.T) {
	var tee bytes.Buffer
	cmd := Command("echo", "hello")
	pipe, err := cmd.StdoutTeePipe(&tee)
	require.NoError(t, err)

	// Wait closes the write end of the pipe, so reading all of it
	// afterwards does not block
	err = cmd.Run()
	require.NoError(t, err)

	fromPipe, err := io.ReadAll(pipe)
	require.NoError(t, err)
	require.NoError(t, pipe.Close())

	assert.Equal(t, "hello\n", string(fromPipe))
	assert.Equal(t, "hello\n", tee.String())
}

func TestStdoutTeePipe_ReadAsync(t *testing.T) {
	var tee bytes.Buffer
	cmd := Command("echo", "hello")
	pipe, err := cmd.StdoutTeePipe(&tee)
	require.NoError(t, err)

	err = cmd.Start()
	require.NoError(t, err)

	doneCh := make(chan string)
	go func() {
		fromPipe, err := io.ReadAll(pipe)
		require.NoError(t, err)
		doneCh <- string(fromPipe)
	}()

	err = cmd.Wait()
	require.NoError(t, err)

	assert.Equal(t, "hello\n", <-doneCh)
	require.NoError(t, pipe.Close())
	assert.Equal(t, "hello\n", tee.String())
}

func TestTerminateProcessGroupWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cmd := CommandContext(ctx, "sleep", "30")
	cmd.TerminateProcessGroupWhenContextDone = true

	start := time.Now()
	err := cmd.Run()
	require.Error(t, err)
	assert.True(t, cmd.TerminatedAfterContextDone())
	assert.Less(t, time.Since(start), 10*time.Second)
}
