package dependencies

import (
	"os/exec"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

type Dependencies map[Key]*Dependency

var Default Dependencies

func init() {
	setDefaults()
}

func setDefaults() {
	deps, err := Define([]Key{
		DOCKER,
	})

	if err != nil {
		panic("Unable to define default dependencies")
	}
	Default = deps
}

func ResetDefaultsForTestsOnly() {
	setDefaults()
}

// Defines a set of dependencies
func Define(keys []Key) (Dependencies, error) {
	deps := Dependencies{}
	for _, key := range keys {
		if dep, found := all[key]; found {
			// make a copy of the dependency to be able to modify it
			// without side effects, for example in tests
			newDep := dep
			deps[key] = &newDep
			continue
		}
		return nil, errors.Errorf("Unknown dependency %s", key)
	}
	return deps, nil
}

// List of all known dependencies
var all = map[Key]Dependency{
	DOCKER: {
		Key: DOCKER,
		// docker cp with the -a flag and stable --format handling need
		// a reasonably recent client
		MinVersion: *semver.MustParse("17.6.0"),
		GetVersion: dockerVersion,
		Installed: func(dep *Dependency) bool {
			_, err := exec.LookPath("docker")
			return err == nil
		},
	},
}
