// Package sandbox invokes commands inside the OSS-Fuzz base-runner
// container and reports their outcome. It is the only place that knows
// how the isolated execution environment is driven; callers describe
// what to run via a Request and observe exit status, output and
// timeouts via a Result.
package sandbox

import (
	"context"
	"time"
)

// BaseRunnerImage is the container image wrapping fuzz target
// invocations with instrumentation and resource limits.
const BaseRunnerImage = "gcr.io/oss-fuzz-base/base-runner"

// Mount maps a host path to a location inside the container. How the
// mapping is realized depends on the MountStrategy in use.
type Mount struct {
	HostPath      string
	ContainerPath string
}

type Request struct {
	// Image to run; BaseRunnerImage when empty.
	Image string
	// Args is the command executed inside the container.
	Args []string
	// Env holds KEY=VALUE pairs passed into the container.
	Env []string
	// Mounts are translated into invocation fragments by the runner's
	// mount strategy.
	Mounts []*Mount
	// TTY allocates a pseudo terminal for the container.
	TTY bool
	// Timeout is the wall-clock bound for the whole invocation. When it
	// is exceeded the process group is forcibly terminated and the
	// result carries TimedOut instead of an error. Zero means no bound.
	Timeout time.Duration
}

type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimedOut bool
}

// Runner executes a single blocking sandboxed invocation. Errors are
// reserved for failures of the supervision itself (e.g. the container
// runtime could not be started); a non-zero exit of the sandboxed
// command is reported via Result.ExitCode.
type Runner interface {
	Run(ctx context.Context, request *Request) (*Result, error)
}
