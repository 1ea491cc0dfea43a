package run

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-zglob"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"code-intelligence.com/fuzzgate/internal/config"
	"code-intelligence.com/fuzzgate/pkg/clusterfuzz"
	"code-intelligence.com/fuzzgate/pkg/cmdutils"
	"code-intelligence.com/fuzzgate/pkg/dependencies"
	"code-intelligence.com/fuzzgate/pkg/fuzzer"
	"code-intelligence.com/fuzzgate/pkg/log"
	"code-intelligence.com/fuzzgate/pkg/report"
	"code-intelligence.com/fuzzgate/pkg/sandbox"
	"code-intelligence.com/fuzzgate/util/sliceutil"
	"code-intelligence.com/fuzzgate/util/stringutil"
)

type runOptions struct {
	fs *afero.Afero

	fuzzTargets []string
	duration    time.Duration
	outDir      string
	project     string
	targetGlob  string
	printJSON   bool
}

// applyConfig merges the project config into all flags the user did not
// set explicitly, so the precedence is command line over config file
// over defaults.
func (opts *runOptions) applyConfig(flags *pflag.FlagSet) error {
	cwd, err := os.Getwd()
	if err != nil {
		return errors.WithStack(err)
	}
	conf, err := config.Load(cwd, opts.fs)
	if err != nil {
		log.Error(err, err.Error())
		return cmdutils.ErrSilent
	}

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		switch f.Name {
		case "duration":
			opts.duration = conf.Duration
		case "out-dir":
			opts.outDir = conf.OutDir
		case "project":
			opts.project = conf.Project
		case "target-glob":
			opts.targetGlob = conf.TargetGlob
		}
	})
	return nil
}

func (opts *runOptions) validate() error {
	// The out directory is both where targets live and where artifacts
	// end up, nothing works without it
	isDir, err := opts.fs.IsDir(opts.outDir)
	if err != nil || !isDir {
		err = errors.Errorf("out directory %s does not exist", opts.outDir)
		log.Error(err, err.Error())
		return cmdutils.WrapSilentError(err)
	}

	if opts.duration <= 0 {
		err := errors.Errorf("invalid fuzzing duration: %s", opts.duration)
		log.Error(err, err.Error())
		return cmdutils.WrapIncorrectUsageError(err)
	}

	return nil
}

type runCmd struct {
	*cobra.Command
	opts *runOptions
}

func New(fs *afero.Afero) *cobra.Command {
	opts := &runOptions{fs: fs}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run fuzz targets and fail on newly introduced crashes",
		Long: "This command runs each fuzz target for a bounded time in a container " +
			"sandbox. A crash only fails the gate when it is reproducible and does " +
			"not already reproduce on the latest published build of the project.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			err := opts.applyConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return opts.validate()
		},
		RunE: func(c *cobra.Command, args []string) error {
			cmd := runCmd{c, opts}
			return cmd.run()
		},
	}

	cmd.Flags().StringArrayVarP(&opts.fuzzTargets, "fuzz-target", "f", nil,
		"Fuzz target to run, either a name relative to the out directory or a path.\nCan be specified multiple times. When omitted, targets are discovered\nvia the target glob.")
	cmd.Flags().DurationVar(&opts.duration, "duration", config.DefaultDuration,
		"How long each fuzz target runs.")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", config.DefaultOutDir,
		"Directory containing the fuzz target binaries. Crash artifacts, baseline\nbuilds and seed corpora are stored below it.")
	cmd.Flags().StringVar(&opts.project, "project", "",
		"Name of the OSS-Fuzz project the fuzz targets belong to. When set, crashes\nwhich already reproduce on the latest published build of the project do\nnot fail the gate.")
	cmd.Flags().StringVar(&opts.targetGlob, "target-glob", config.DefaultTargetGlob,
		"Glob used to discover fuzz targets in the out directory.")
	cmd.Flags().BoolVar(&opts.printJSON, "json", false,
		"Print findings as JSON to stdout.")

	return cmd
}

func (c *runCmd) run() error {
	depsOk, err := dependencies.Check([]dependencies.Key{dependencies.DOCKER}, dependencies.Default)
	if err != nil {
		return err
	}
	if !depsOk {
		err := errors.New("unmet dependencies")
		log.Error(err, err.Error())
		return cmdutils.WrapSilentError(err)
	}

	targets, err := c.discoverTargets()
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		err := errors.Errorf("no fuzz targets found in %s", c.opts.outDir)
		log.Error(err, err.Error())
		return cmdutils.WrapSilentError(err)
	}

	runner := sandbox.NewDockerRunner(sandbox.DetectMountStrategy())
	if viper.GetBool("verbose") {
		runner.LogOutput = c.ErrOrStderr()
	}
	fetcher := clusterfuzz.NewClient(c.opts.outDir)
	handler := report.NewHandler(&report.HandlerOptions{
		OutDir:    c.opts.outDir,
		PrintJSON: c.opts.printJSON,
	})

	for _, targetPath := range targets {
		target, err := fuzzer.NewFuzzTarget(&fuzzer.Options{
			TargetPath: targetPath,
			Duration:   c.opts.duration,
			OutDir:     c.opts.outDir,
			Project:    c.opts.project,
			Runner:     runner,
			Fetcher:    fetcher,
		})
		if err != nil {
			return err
		}

		testCase, diagnostics := target.Fuzz(context.Background())
		if testCase == "" {
			log.Successf("Fuzzer %s found no new crashes", target.Name())
			continue
		}

		err = handler.Handle(&report.Finding{
			TargetName: target.Name(),
			InputPath:  testCase,
			Logs:       stringutil.SplitLines(diagnostics),
		})
		if err != nil {
			return err
		}
	}

	if len(handler.Findings) > 0 {
		err := errors.Errorf("%d of %d fuzz target(s) found a new crash", len(handler.Findings), len(targets))
		log.Error(err, err.Error())
		return cmdutils.WrapSilentError(err)
	}

	log.Successf("All %d fuzz target(s) passed", len(targets))
	return nil
}

// discoverTargets resolves the targets to run. Explicitly named targets
// win over glob discovery, and short names are resolved relative to the
// out directory.
func (c *runCmd) discoverTargets() ([]string, error) {
	var targets []string

	for _, target := range c.opts.fuzzTargets {
		if !filepath.IsAbs(target) && !strings.ContainsRune(target, filepath.Separator) {
			target = filepath.Join(c.opts.outDir, target)
		}
		exists, err := c.opts.fs.Exists(target)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if !exists {
			err := errors.Errorf("fuzz target %s does not exist", target)
			log.Error(err, err.Error())
			return nil, cmdutils.WrapSilentError(err)
		}
		if !sliceutil.Contains(targets, target) {
			targets = append(targets, target)
		}
	}
	if len(targets) > 0 {
		return targets, nil
	}

	matches, err := zglob.Glob(filepath.Join(c.opts.outDir, c.opts.targetGlob))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, match := range matches {
		isDir, err := c.opts.fs.IsDir(match)
		if err != nil || isDir {
			continue
		}
		if !sliceutil.Contains(targets, match) {
			targets = append(targets, match)
		}
	}
	log.Debugf("Discovered %d fuzz target(s) in %s", len(targets), c.opts.outDir)
	return targets, nil
}
