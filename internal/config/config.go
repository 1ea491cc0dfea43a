package config

import (
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const ProjectConfigFile = "fuzzgate.yaml"

const (
	DefaultDuration   = 10 * time.Minute
	DefaultOutDir     = "out"
	DefaultTargetGlob = "*_fuzzer"
)

// Config holds the per-project settings of the gate. Command line flags
// take precedence over the config file, which takes precedence over the
// defaults.
type Config struct {
	Project    string
	Duration   time.Duration
	OutDir     string
	TargetGlob string
}

func NewDefault() *Config {
	return &Config{
		Duration:   DefaultDuration,
		OutDir:     DefaultOutDir,
		TargetGlob: DefaultTargetGlob,
	}
}

// Load reads the project config file from dir. A missing config file is
// not an error, the defaults are returned.
func Load(dir string, fs afero.Fs) (*Config, error) {
	config := NewDefault()

	configPath := filepath.Join(dir, ProjectConfigFile)
	exists, err := afero.Exists(fs, configPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !exists {
		return config, nil
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(configPath)
	err = v.ReadInConfig()
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %s", configPath)
	}

	if v.IsSet("project") {
		config.Project = v.GetString("project")
	}
	if v.IsSet("duration") {
		config.Duration = v.GetDuration("duration")
		if config.Duration <= 0 {
			return nil, errors.Errorf("invalid fuzzing duration in %s: %s", configPath, v.GetString("duration"))
		}
	}
	if v.IsSet("out-dir") {
		config.OutDir = v.GetString("out-dir")
	}
	if v.IsSet("target-glob") {
		config.TargetGlob = v.GetString("target-glob")
	}
	return config, nil
}

type projectConfig struct {
	LastUpdated string
}

const projectConfigTemplate = `## Configuration for a fuzzgate project
## Generated on {{.LastUpdated}}

## Name of the OSS-Fuzz project the fuzz targets belong to. When set,
## crashes which already reproduce on the latest published build of the
## project do not fail the gate.
# project: my-project

## How long each fuzz target runs.
# duration: 10m

## Directory containing the fuzz target binaries. Crash artifacts,
## baseline builds and seed corpora are stored below it.
# out-dir: out

## Glob used to discover fuzz targets in the out directory.
# target-glob: "*_fuzzer"
`

// CreateProjectConfig creates a new project config in the given directory
func CreateProjectConfig(path string, fs afero.Fs) (configpath string, err error) {

	// try to open the target file, returns error if already exists
	configpath = filepath.Join(path, ProjectConfigFile)
	f, err := fs.OpenFile(configpath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return configpath, errors.WithStack(err)
		}
		return "", errors.WithStack(err)
	}
	defer f.Close()

	config := projectConfig{
		LastUpdated: time.Now().Format("2006-01-02"),
	}

	t, err := template.New("project_config").Parse(projectConfigTemplate)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if err = t.Execute(f, config); err != nil {
		return "", errors.WithStack(err)
	}

	return
}
