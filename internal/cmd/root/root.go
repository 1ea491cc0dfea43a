package root

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"code-intelligence.com/fuzzgate/internal/cmd"
	runCmd "code-intelligence.com/fuzzgate/internal/cmd/run"
	"code-intelligence.com/fuzzgate/pkg/cmdutils"
	"code-intelligence.com/fuzzgate/pkg/log"
)

func New() *cobra.Command {
	var workdir string

	rootCmd := &cobra.Command{
		Use:   "fuzzgate",
		Short: "Run your fuzz targets as a CI gate",
		// We are using our custom ErrSilent instead to support a more specific
		// error handling
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if workdir != "" {
				err := os.Chdir(workdir)
				if err != nil {
					err = errors.WithStack(err)
					log.Error(err, err.Error())
					return cmdutils.ErrSilent
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"Show more verbose output, can be helpful for debugging problems")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.PersistentFlags().StringVarP(&workdir, "directory", "C", "",
		"Change the directory before performing any operations")
	viper.BindPFlag("directory", rootCmd.PersistentFlags().Lookup("directory"))

	rootCmd.PersistentFlags().Bool("no-notifications", false,
		"Don't send desktop notifications about findings")
	viper.BindPFlag("no-notifications", rootCmd.PersistentFlags().Lookup("no-notifications"))

	fs := &afero.Afero{Fs: afero.NewOsFs()}
	rootCmd.AddCommand(cmd.NewCmdInit(fs))
	rootCmd.AddCommand(runCmd.New(fs))

	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd := New()
	if cmd, err := rootCmd.ExecuteC(); err != nil {

		// Errors that are not ErrSilent are not expected and we want to show their full stacktrace
		var silentErr *cmdutils.SilentError
		if !errors.As(err, &silentErr) {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), pterm.Style{pterm.Bold, pterm.FgRed}.Sprintf("%+v\n", err))
		}

		// We only want to print the usage message if an IncorrectUsageError
		// was returned or it's an error produced by cobra which was
		// caused by incorrect usage
		var usageErr *cmdutils.IncorrectUsageError
		if errors.As(err, &usageErr) ||
			strings.HasPrefix(err.Error(), "required flag") ||
			strings.HasPrefix(err.Error(), "unknown command") ||
			regexp.MustCompile(`(accepts|requires).*arg\(s\)`).MatchString(err.Error()) {
			// Ensure that there is an extra newline between the error
			// and the usage message
			if !strings.HasSuffix(err.Error(), "\n") {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr())
			}
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), cmd.UsageString())
		}

		os.Exit(1)
	}
}
