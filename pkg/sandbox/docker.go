package sandbox

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"code-intelligence.com/fuzzgate/pkg/log"
	"code-intelligence.com/fuzzgate/util/executil"
	"code-intelligence.com/fuzzgate/util/stringutil"
)

type DockerRunner struct {
	Strategy MountStrategy

	// LogOutput additionally receives the container's stderr while it
	// is captured, so users can observe fuzzing progress in real time.
	// When nil, stderr is only captured.
	LogOutput io.Writer
}

func NewDockerRunner(strategy MountStrategy) *DockerRunner {
	return &DockerRunner{Strategy: strategy}
}

// Command builds the docker command line for the given request.
func (r *DockerRunner) Command(request *Request) []string {
	args := []string{"run", "--rm", "--privileged"}
	if request.TTY {
		args = append(args, "-t")
	}
	args = append(args, r.Strategy.Args(request.Mounts)...)
	for _, e := range request.Env {
		args = append(args, "-e", e)
	}
	image := request.Image
	if image == "" {
		image = BaseRunnerImage
	}
	args = append(args, image)
	args = append(args, request.Args...)
	return args
}

func (r *DockerRunner) Run(ctx context.Context, request *Request) (*Result, error) {
	cmdCtx := ctx
	if request.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, request.Timeout)
		defer cancel()
	}

	dockerArgs := r.Command(request)
	cmd := executil.CommandContext(cmdCtx, "docker", dockerArgs...)
	cmd.TerminateProcessGroupWhenContextDone = true

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	// Write the command's stderr to both a pipe and the log output, so
	// that we can hand the full text to the crash classification while
	// the caller still observes status and progress in realtime.
	stderrOutput := r.LogOutput
	if stderrOutput == nil {
		stderrOutput = io.Discard
	}
	stderrPipe, err := cmd.StderrTeePipe(stderrOutput)
	if err != nil {
		return nil, err
	}

	log.Debugf("Running command: docker %s", strings.Join(stringutil.QuotedStrings(dockerArgs), " "))
	err = cmd.Start()
	if err != nil {
		return nil, err
	}

	var stderr bytes.Buffer
	routines := errgroup.Group{}
	routines.Go(func() error {
		_, err := io.Copy(&stderr, stderrPipe)
		if err != nil {
			return errors.WithStack(err)
		}
		// Tee pipes need to be closed when all reads have completed
		return errors.WithStack(stderrPipe.Close())
	})

	waitErr := cmd.Wait()
	err = routines.Wait()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		TimedOut: cmd.TerminatedAfterContextDone(),
	}
	if waitErr != nil && !result.TimedOut {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			// Something unexpected happened, e.g. docker could not be
			// executed at all.
			return nil, waitErr
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}
