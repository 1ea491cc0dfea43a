package dependencies

import (
	"fmt"
	"os/exec"
	"regexp"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

/*
Note: we made the "patch" part of the semver (when parsing the output with regex) optional
to be more lenient when a command returns something like 1.2 instead of 1.2.0
*/
var dockerRegex = regexp.MustCompile(`(?m)Docker version (?P<version>\d+\.\d+(\.\d+)?)`)

// returns the currently installed docker client version
func dockerVersion(dep *Dependency) (*semver.Version, error) {
	path, err := exec.LookPath("docker")
	if err != nil {
		return nil, errors.WithStack(err)
	}

	version, err := getVersionFromCommand(path, []string{"--version"}, dockerRegex, dep.Key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return version, nil
}

// takes a command + args and parses the output for a semver
func getVersionFromCommand(cmdPath string, args []string, re *regexp.Regexp, key Key) (*semver.Version, error) {
	cmd := exec.Command(cmdPath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return extractVersion(string(output), re, key)
}

func extractVersion(output string, re *regexp.Regexp, key Key) (*semver.Version, error) {
	result := re.FindStringSubmatch(output)
	if len(result) <= 1 {
		return nil, fmt.Errorf("No matching version string for %s", key)
	}

	version, err := semver.NewVersion(result[1])
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return version, nil
}
