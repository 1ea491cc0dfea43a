// Package fuzzer drives a single fuzz-testing run for a bounded time
// and classifies a discovered crash as a new regression or a
// pre-existing defect. It is the decision core of the CI gate: every
// failure on the fetch/verify/resolve path is absorbed into an
// optional or boolean result here, so callers only ever observe
// (test case, diagnostic output) or nothing.
package fuzzer

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"code-intelligence.com/fuzzgate/pkg/log"
	"code-intelligence.com/fuzzgate/pkg/sandbox"
	"code-intelligence.com/fuzzgate/util/envutil"
)

const (
	// LibFuzzerOptions are passed to every gate run. The seed is fixed
	// so runs against the current and the baseline build behave the
	// same, and length control is disabled because short gate runs
	// don't profit from it.
	LibFuzzerOptions = "-seed=1337 -len_control=0"

	// ReproduceAttempts is the number of times a crashing input is
	// replayed before the crash is considered non-reproducible.
	// Crashes can be flaky, a single successful replay within this
	// ceiling is sufficient evidence the crash is real.
	ReproduceAttempts = 10

	// ReproduceRuns is the number of executions per replay invocation.
	ReproduceRuns = 100

	// BufferTime is granted on top of the fuzzing duration before the
	// sandboxed process is forcibly terminated. The inner fuzzing loop
	// is itself time-bounded, so exceeding this bound means the outer
	// supervision misbehaved, not the target.
	BufferTime = 10 * time.Second
)

// BuildFetcher materializes baseline builds and seed corpora.
// Implemented by clusterfuzz.Client.
type BuildFetcher interface {
	DownloadLatestBuild(project, targetName string) (string, error)
	DownloadLatestCorpus(project, targetName string) (string, error)
}

type Options struct {
	// TargetPath is the location of the fuzz target binary.
	TargetPath string
	// Duration is the length of time the target should fuzz.
	Duration time.Duration
	// OutDir is where output artifacts are stored. It must already
	// exist.
	OutDir string
	// Project is the OSS-Fuzz project the target belongs to. Empty
	// means the target is standalone and no baseline comparison is
	// possible.
	Project string

	Runner  sandbox.Runner
	Fetcher BuildFetcher

	// The following are overridable for tests; zero values fall back
	// to the package constants.
	ReproduceAttempts int
	BufferTime        time.Duration
}

// FuzzTarget manages a single fuzz target for the lifetime of one run.
// It is not safe for concurrent use; callers running targets in
// parallel must use separate out directories.
type FuzzTarget struct {
	*Options
	targetName string
}

func NewFuzzTarget(options *Options) (*FuzzTarget, error) {
	if options.TargetPath == "" {
		return nil, errors.New("no fuzz target path specified")
	}
	if options.Duration <= 0 {
		return nil, errors.Errorf("invalid fuzzing duration: %s", options.Duration)
	}
	if options.Runner == nil {
		return nil, errors.New("no sandbox runner specified")
	}
	if options.ReproduceAttempts == 0 {
		options.ReproduceAttempts = ReproduceAttempts
	}
	if options.BufferTime == 0 {
		options.BufferTime = BufferTime
	}
	return &FuzzTarget{
		Options:    options,
		targetName: filepath.Base(options.TargetPath),
	}, nil
}

func (t *FuzzTarget) Name() string {
	return t.targetName
}

// Fuzz runs the fuzz target for the configured duration. It returns
// the path to a crashing test case and the fuzzer's diagnostic output
// when the run discovered a crash that was classified as introduced by
// the change under test, and ("", "") in every other case: clean run,
// wall-clock timeout, unlocatable crash artifact, non-reproducible
// crash, or a crash that already exists in the baseline build.
func (t *FuzzTarget) Fuzz(ctx context.Context) (string, string) {
	log.Infof("Fuzzer %s started", t.targetName)

	command := "run_fuzzer " + t.targetName + " " +
		LibFuzzerOptions + " -max_total_time=" + strconv.Itoa(int(t.Duration.Seconds()))

	// If a corpus can be downloaded, use it for fuzzing
	corpusDir := t.downloadCorpus()
	if corpusDir != "" {
		command += " " + corpusDir
	}

	request := &sandbox.Request{
		Args:    []string{"bash", "-c", command},
		Env:     t.fuzzerEnvironment(),
		Mounts:  []*sandbox.Mount{{HostPath: t.OutDir, ContainerPath: "/out"}},
		Timeout: t.Duration + t.Options.BufferTime,
	}

	result, err := t.Runner.Run(ctx, request)
	if err != nil {
		log.Error(err, "Failed to run fuzzer "+t.targetName+": "+err.Error())
		return "", ""
	}
	if result.TimedOut {
		log.Warnf("Fuzzer %s timed out, ending fuzzing", t.targetName)
		return "", ""
	}

	// The libfuzzer timeout has been reached
	if result.ExitCode == 0 {
		log.Infof("Fuzzer %s finished with no crashes discovered", t.targetName)
		return "", ""
	}

	// A crash has been discovered
	log.Infof("Fuzzer %s ended before timeout", t.targetName)
	diagnostics := string(result.Stderr)
	testCase := TestCasePath(diagnostics, t.OutDir)
	if testCase == "" {
		log.Error(errors.New("no test case found in stack trace"),
			"No test case found in stack trace:\n"+diagnostics)
		return "", ""
	}
	if t.checkReproducibilityAndRegression(ctx, testCase) {
		return testCase, diagnostics
	}
	return "", ""
}

// isReproducible replays the test case against the target binary in
// buildDir. It returns true as soon as one replay invocation exits
// non-zero (the crash recurred), and false when the attempt ceiling is
// exhausted without a reproduction.
func (t *FuzzTarget) isReproducible(ctx context.Context, testCase, buildDir string) bool {
	if _, err := os.Stat(testCase); err != nil {
		log.Warnf("Test case %s is not found", testCase)
		return false
	}
	if _, err := os.Stat(buildDir); err == nil {
		// The binary must be executable by the user inside the runner
		// image, which is not the user that unpacked the archive.
		err = os.Chmod(filepath.Join(buildDir, t.targetName), 0777)
		if err != nil {
			log.Warnf("Unable to make %s executable: %v", t.targetName, err)
		}
	}

	request := &sandbox.Request{
		Args: []string{"reproduce", t.targetName, "-runs=" + strconv.Itoa(ReproduceRuns)},
		Mounts: []*sandbox.Mount{
			{HostPath: buildDir, ContainerPath: "/out"},
			{HostPath: testCase, ContainerPath: "/testcase"},
		},
		TTY: true,
	}

	// Attempts are strictly sequential: we stop at the first
	// reproduction instead of taking a majority vote.
	for i := 0; i < t.Options.ReproduceAttempts; i++ {
		result, err := t.Runner.Run(ctx, request)
		if err != nil {
			log.Error(err, "Failed to run reproduce command: "+err.Error())
			continue
		}
		if result.ExitCode != 0 {
			log.Infof("Output of the reproduce command:\n%s", string(result.Stdout))
			return true
		}
	}
	return false
}

// checkReproducibilityAndRegression checks whether the crash is
// reproducible and, if it is, whether it is a new regression that
// cannot be reproduced with the latest published build of the project.
// A target without a project is assumed to have introduced any
// reproducible crash, because there is no baseline to compare against.
func (t *FuzzTarget) checkReproducibilityAndRegression(ctx context.Context, testCase string) bool {
	reproducible := t.isReproducible(ctx, testCase, filepath.Dir(t.TargetPath))
	if t.Project == "" {
		return reproducible
	}

	if !reproducible {
		log.Info("Failed to reproduce the crash using the obtained test case")
		return false
	}

	if t.Fetcher == nil {
		log.Warn("No baseline build source configured, can't confirm the regression")
		return false
	}
	baselineDir, err := t.Fetcher.DownloadLatestBuild(t.Project, t.targetName)
	if err != nil {
		// Without a baseline we can't claim the change under test
		// introduced the crash.
		log.Warnf("Could not obtain a baseline build for %s: %v", t.Project, err)
		return false
	}

	if t.isReproducible(ctx, testCase, baselineDir) {
		log.Info("The crash is reproducible without the change under test")
		return false
	}
	log.Info("The crash is reproducible and does not reproduce on the baseline build. " +
		"The change under test probably introduced it")
	return true
}

// downloadCorpus opportunistically fetches the backup corpus for the
// target. Failure only reduces fuzzing effectiveness, so it is logged
// and swallowed.
func (t *FuzzTarget) downloadCorpus() string {
	if t.Project == "" || t.Fetcher == nil {
		return ""
	}
	corpusDir, err := t.Fetcher.DownloadLatestCorpus(t.Project, t.targetName)
	if err != nil {
		log.Warnf("Continuing without a seed corpus: %v", err)
		return ""
	}
	return corpusDir
}

func (t *FuzzTarget) fuzzerEnvironment() []string {
	var env []string
	var err error
	env, err = envutil.Setenv(env, "FUZZING_ENGINE", "libfuzzer")
	if err == nil {
		env, err = envutil.Setenv(env, "SANITIZER", "address")
	}
	if err == nil {
		env, err = envutil.Setenv(env, "RUN_FUZZER_MODE", "interactive")
	}
	if err != nil {
		// The keys and values above are constants, this can't happen
		panic(err)
	}
	return env
}
