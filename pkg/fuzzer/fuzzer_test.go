package fuzzer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"code-intelligence.com/fuzzgate/pkg/mocks"
	"code-intelligence.com/fuzzgate/pkg/sandbox"
	"code-intelligence.com/fuzzgate/util/fileutil"
)

const targetName = "parse_fuzzer"

var (
	crashed = &sandbox.Result{ExitCode: 77}
	clean   = &sandbox.Result{ExitCode: 0}
)

// newFuzzTarget sets up a fuzz target with a real binary directory and
// out directory below a temp dir.
func newFuzzTarget(t *testing.T, project string, runner sandbox.Runner, fetcher BuildFetcher) *FuzzTarget {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "fuzzer-test-")
	require.NoError(t, err)
	t.Cleanup(func() { fileutil.Cleanup(tempDir) })

	buildDir := filepath.Join(tempDir, "build")
	require.NoError(t, os.Mkdir(buildDir, 0755))
	require.NoError(t, fileutil.Touch(filepath.Join(buildDir, targetName)))

	outDir := filepath.Join(tempDir, "out")
	require.NoError(t, os.Mkdir(outDir, 0755))

	target, err := NewFuzzTarget(&Options{
		TargetPath: filepath.Join(buildDir, targetName),
		Duration:   60 * time.Second,
		OutDir:     outDir,
		Project:    project,
		Runner:     runner,
		Fetcher:    fetcher,
	})
	require.NoError(t, err)
	return target
}

// newBaselineDir creates a directory which looks like an unpacked
// baseline build containing the target binary.
func newBaselineDir(t *testing.T) string {
	t.Helper()
	baselineDir, err := os.MkdirTemp("", "baseline-build-")
	require.NoError(t, err)
	t.Cleanup(func() { fileutil.Cleanup(baselineDir) })
	require.NoError(t, fileutil.Touch(filepath.Join(baselineDir, targetName)))
	return baselineDir
}

// newTestCase writes a crashing input into the out directory.
func newTestCase(t *testing.T, target *FuzzTarget) string {
	t.Helper()
	testCase := filepath.Join(target.OutDir, "crash-abc123")
	require.NoError(t, fileutil.Touch(testCase))
	return testCase
}

func isFuzzRequest(request *sandbox.Request) bool {
	return len(request.Args) > 0 && request.Args[0] == "bash"
}

func isReproduceRequest(buildDir string) func(*sandbox.Request) bool {
	return func(request *sandbox.Request) bool {
		return len(request.Args) > 0 && request.Args[0] == "reproduce" &&
			len(request.Mounts) > 0 && request.Mounts[0].HostPath == buildDir
	}
}

func TestIsReproducible_FirstAttemptSucceeds(t *testing.T) {
	runner := &mocks.RunnerMock{}
	target := newFuzzTarget(t, "", runner, nil)
	testCase := newTestCase(t, target)

	runner.On("Run", mock.Anything, mock.Anything).Return(crashed, nil).Once()

	assert.True(t, target.isReproducible(context.Background(), testCase, filepath.Dir(target.TargetPath)))
	runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestIsReproducible_ShortCircuitsOnFlakyCrash(t *testing.T) {
	runner := &mocks.RunnerMock{}
	target := newFuzzTarget(t, "", runner, nil)
	testCase := newTestCase(t, target)

	// The crash only reproduces on the third attempt
	runner.On("Run", mock.Anything, mock.Anything).Return(clean, nil).Twice()
	runner.On("Run", mock.Anything, mock.Anything).Return(crashed, nil).Once()

	assert.True(t, target.isReproducible(context.Background(), testCase, filepath.Dir(target.TargetPath)))
	runner.AssertNumberOfCalls(t, "Run", 3)
}

func TestIsReproducible_CeilingExhausted(t *testing.T) {
	runner := &mocks.RunnerMock{}
	target := newFuzzTarget(t, "", runner, nil)
	testCase := newTestCase(t, target)

	runner.On("Run", mock.Anything, mock.Anything).Return(clean, nil)

	assert.False(t, target.isReproducible(context.Background(), testCase, filepath.Dir(target.TargetPath)))
	// Never an 11th attempt
	runner.AssertNumberOfCalls(t, "Run", ReproduceAttempts)
}

func TestIsReproducible_TestCaseMissing(t *testing.T) {
	runner := &mocks.RunnerMock{}
	target := newFuzzTarget(t, "", runner, nil)

	missing := filepath.Join(target.OutDir, "crash-missing")
	assert.False(t, target.isReproducible(context.Background(), missing, filepath.Dir(target.TargetPath)))
	runner.AssertNumberOfCalls(t, "Run", 0)
}

func TestCheckRegression_NoProject(t *testing.T) {
	runner := &mocks.RunnerMock{}
	target := newFuzzTarget(t, "", runner, nil)
	testCase := newTestCase(t, target)

	runner.On("Run", mock.Anything, mock.Anything).Return(crashed, nil).Once()

	// Without a project the verdict equals current-build reproducibility
	assert.True(t, target.checkReproducibilityAndRegression(context.Background(), testCase))
}

func TestCheckRegression_NotReproducibleInCurrentBuild(t *testing.T) {
	runner := &mocks.RunnerMock{}
	fetcher := &mocks.BuildFetcherMock{}
	target := newFuzzTarget(t, "systemd", runner, fetcher)
	testCase := newTestCase(t, target)

	runner.On("Run", mock.Anything, mock.Anything).Return(clean, nil)

	assert.False(t, target.checkReproducibilityAndRegression(context.Background(), testCase))
	fetcher.AssertNotCalled(t, "DownloadLatestBuild", mock.Anything, mock.Anything)
}

func TestCheckRegression_BaselineUnavailable(t *testing.T) {
	runner := &mocks.RunnerMock{}
	fetcher := &mocks.BuildFetcherMock{}
	target := newFuzzTarget(t, "systemd", runner, fetcher)
	testCase := newTestCase(t, target)

	runner.On("Run", mock.Anything, mock.Anything).Return(crashed, nil)
	fetcher.On("DownloadLatestBuild", "systemd", targetName).
		Return("", errors.New("transport failure"))

	// Without a basis for comparison we must not claim a regression
	assert.False(t, target.checkReproducibilityAndRegression(context.Background(), testCase))
}

func TestCheckRegression_PreExistingDefect(t *testing.T) {
	runner := &mocks.RunnerMock{}
	fetcher := &mocks.BuildFetcherMock{}
	target := newFuzzTarget(t, "systemd", runner, fetcher)
	testCase := newTestCase(t, target)
	baselineDir := newBaselineDir(t)

	currentDir := filepath.Dir(target.TargetPath)
	runner.On("Run", mock.Anything, mock.MatchedBy(isReproduceRequest(currentDir))).Return(crashed, nil)
	runner.On("Run", mock.Anything, mock.MatchedBy(isReproduceRequest(baselineDir))).Return(crashed, nil)
	fetcher.On("DownloadLatestBuild", "systemd", targetName).Return(baselineDir, nil)

	// Reproducible in both builds: the defect predates the change
	assert.False(t, target.checkReproducibilityAndRegression(context.Background(), testCase))
}

func TestCheckRegression_NewRegression(t *testing.T) {
	runner := &mocks.RunnerMock{}
	fetcher := &mocks.BuildFetcherMock{}
	target := newFuzzTarget(t, "systemd", runner, fetcher)
	testCase := newTestCase(t, target)
	baselineDir := newBaselineDir(t)

	currentDir := filepath.Dir(target.TargetPath)
	runner.On("Run", mock.Anything, mock.MatchedBy(isReproduceRequest(currentDir))).Return(crashed, nil)
	runner.On("Run", mock.Anything, mock.MatchedBy(isReproduceRequest(baselineDir))).Return(clean, nil)
	fetcher.On("DownloadLatestBuild", "systemd", targetName).Return(baselineDir, nil)

	assert.True(t, target.checkReproducibilityAndRegression(context.Background(), testCase))
	// The baseline verification must exhaust the full attempt ceiling
	baselineCalls := 0
	for _, call := range runner.Calls {
		if isReproduceRequest(baselineDir)(call.Arguments.Get(1).(*sandbox.Request)) {
			baselineCalls++
		}
	}
	assert.Equal(t, ReproduceAttempts, baselineCalls)
}

func TestFuzz_CleanRun(t *testing.T) {
	runner := &mocks.RunnerMock{}
	target := newFuzzTarget(t, "", runner, nil)

	runner.On("Run", mock.Anything, mock.MatchedBy(isFuzzRequest)).Return(clean, nil).Once()

	testCase, diagnostics := target.Fuzz(context.Background())
	assert.Empty(t, testCase)
	assert.Empty(t, diagnostics)
	runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestFuzz_WallClockTimeout(t *testing.T) {
	runner := &mocks.RunnerMock{}
	target := newFuzzTarget(t, "", runner, nil)

	runner.On("Run", mock.Anything, mock.MatchedBy(isFuzzRequest)).
		Return(&sandbox.Result{TimedOut: true}, nil).Once()

	testCase, diagnostics := target.Fuzz(context.Background())
	assert.Empty(t, testCase)
	assert.Empty(t, diagnostics)
	// No artifact lookup or reproduction is attempted
	runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestFuzz_CrashWithoutProject(t *testing.T) {
	runner := &mocks.RunnerMock{}
	target := newFuzzTarget(t, "", runner, nil)

	diagnostics := "==1== ERROR: AddressSanitizer: heap-buffer-overflow\n" +
		"Test unit written to ./crash-abc123\n"
	runner.On("Run", mock.Anything, mock.MatchedBy(isFuzzRequest)).
		Run(func(args mock.Arguments) {
			// The fuzzer writes the crashing input into the out dir
			require.NoError(t, fileutil.Touch(filepath.Join(target.OutDir, "crash-abc123")))
		}).
		Return(&sandbox.Result{ExitCode: 77, Stderr: []byte(diagnostics)}, nil).Once()
	runner.On("Run", mock.Anything, mock.MatchedBy(isReproduceRequest(filepath.Dir(target.TargetPath)))).
		Return(crashed, nil).Once()

	testCase, gotDiagnostics := target.Fuzz(context.Background())
	assert.Equal(t, filepath.Join(target.OutDir, "crash-abc123"), testCase)
	assert.Equal(t, diagnostics, gotDiagnostics)
}

func TestFuzz_CrashButBaselineFetchFails(t *testing.T) {
	runner := &mocks.RunnerMock{}
	fetcher := &mocks.BuildFetcherMock{}
	target := newFuzzTarget(t, "systemd", runner, fetcher)

	fetcher.On("DownloadLatestCorpus", "systemd", targetName).
		Return("", errors.New("transport failure"))
	fetcher.On("DownloadLatestBuild", "systemd", targetName).
		Return("", errors.New("transport failure"))

	diagnostics := "Test unit written to ./crash-abc123\n"
	runner.On("Run", mock.Anything, mock.MatchedBy(isFuzzRequest)).
		Run(func(args mock.Arguments) {
			require.NoError(t, fileutil.Touch(filepath.Join(target.OutDir, "crash-abc123")))
		}).
		Return(&sandbox.Result{ExitCode: 77, Stderr: []byte(diagnostics)}, nil).Once()
	runner.On("Run", mock.Anything, mock.MatchedBy(isReproduceRequest(filepath.Dir(target.TargetPath)))).
		Return(crashed, nil)

	// A real crash, but without a baseline it must not fail the gate
	testCase, gotDiagnostics := target.Fuzz(context.Background())
	assert.Empty(t, testCase)
	assert.Empty(t, gotDiagnostics)
}

func TestFuzz_CrashWithoutLocatableArtifact(t *testing.T) {
	runner := &mocks.RunnerMock{}
	target := newFuzzTarget(t, "", runner, nil)

	runner.On("Run", mock.Anything, mock.MatchedBy(isFuzzRequest)).
		Return(&sandbox.Result{ExitCode: 77, Stderr: []byte("SEGV on unknown address")}, nil).Once()

	testCase, diagnostics := target.Fuzz(context.Background())
	assert.Empty(t, testCase)
	assert.Empty(t, diagnostics)
	runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestFuzz_RequestCarriesDurationAndCorpus(t *testing.T) {
	runner := &mocks.RunnerMock{}
	fetcher := &mocks.BuildFetcherMock{}
	target := newFuzzTarget(t, "systemd", runner, fetcher)

	corpusDir := filepath.Join(target.OutDir, "backup_corpus", targetName)
	require.NoError(t, os.MkdirAll(corpusDir, 0755))
	fetcher.On("DownloadLatestCorpus", "systemd", targetName).Return(corpusDir, nil)

	var request *sandbox.Request
	runner.On("Run", mock.Anything, mock.MatchedBy(isFuzzRequest)).
		Run(func(args mock.Arguments) {
			request = args.Get(1).(*sandbox.Request)
		}).
		Return(clean, nil).Once()

	target.Fuzz(context.Background())

	require.NotNil(t, request)
	command := request.Args[len(request.Args)-1]
	assert.Contains(t, command, "run_fuzzer "+targetName)
	assert.Contains(t, command, "-seed=1337")
	assert.Contains(t, command, "-max_total_time=60")
	assert.True(t, strings.HasSuffix(command, " "+corpusDir))
	assert.Equal(t, 60*time.Second+BufferTime, request.Timeout)
	assert.Contains(t, request.Env, "FUZZING_ENGINE=libfuzzer")
	assert.Contains(t, request.Env, "SANITIZER=address")
	assert.Contains(t, request.Env, "RUN_FUZZER_MODE=interactive")
	require.Len(t, request.Mounts, 1)
	assert.Equal(t, target.OutDir, request.Mounts[0].HostPath)
	assert.Equal(t, "/out", request.Mounts[0].ContainerPath)
}

func TestNewFuzzTarget_Validation(t *testing.T) {
	runner := &mocks.RunnerMock{}

	_, err := NewFuzzTarget(&Options{Duration: time.Minute, Runner: runner})
	assert.Error(t, err)

	_, err = NewFuzzTarget(&Options{TargetPath: "/out/parse_fuzzer", Runner: runner})
	assert.Error(t, err)

	_, err = NewFuzzTarget(&Options{TargetPath: "/out/parse_fuzzer", Duration: time.Minute})
	assert.Error(t, err)

	target, err := NewFuzzTarget(&Options{
		TargetPath: "/out/parse_fuzzer",
		Duration:   time.Minute,
		Runner:     runner,
	})
	require.NoError(t, err)
	assert.Equal(t, "parse_fuzzer", target.Name())
}
