package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"code-intelligence.com/fuzzgate/internal/config"
	"code-intelligence.com/fuzzgate/pkg/cmdutils"
	"code-intelligence.com/fuzzgate/pkg/log"
)

func NewCmdInit(fs *afero.Afero) *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Set up a project for use with fuzzgate",
		Long: "This command sets up a project for use with fuzzgate, creating a " +
			"`fuzzgate.yaml` config file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitCommand(fs)
		},
	}

	return initCmd
}

func runInitCommand(fs *afero.Afero) error {
	cwd, err := os.Getwd()
	if err != nil {
		return errors.WithStack(err)
	}
	log.Debugf("Using current working directory: %s", cwd)

	configpath, err := config.CreateProjectConfig(cwd, fs)
	if err != nil {
		// explicitly inform the user about an existing config file
		if os.IsExist(errors.Cause(err)) && configpath != "" {
			log.Warnf("Config already exists in %s", configpath)
			err = cmdutils.WrapSilentError(err)
		}
		log.Error(err, "Failed to create config")
		return err
	}

	log.Successf("Configuration saved in %s", configpath)
	log.Info("\nUse 'fuzzgate run' to run your fuzz targets as a CI gate")
	return nil
}
