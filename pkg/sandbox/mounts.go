package sandbox

import (
	"os"
	"strings"

	"code-intelligence.com/fuzzgate/util/fileutil"
)

// MountStrategy translates host→container path mappings into docker
// invocation fragments. Which strategy applies depends on whether we
// are running inside a container ourselves, so the choice is made once
// at startup and injected into the runner.
type MountStrategy interface {
	Args(mounts []*Mount) []string
}

// VolumesFromStrategy reuses the volumes of the container this process
// runs in. The host paths can't be bind-mounted in that situation, so
// they are passed via environment variables named after the mount
// point (OUT, TESTCASE), which is what the base-runner scripts expect.
type VolumesFromStrategy struct {
	Container string
}

func (s *VolumesFromStrategy) Args(mounts []*Mount) []string {
	args := []string{"--volumes-from", s.Container}
	for _, m := range mounts {
		name := strings.ToUpper(strings.TrimPrefix(m.ContainerPath, "/"))
		args = append(args, "-e", name+"="+m.HostPath)
	}
	return args
}

// BindMountStrategy maps host paths directly into the container.
type BindMountStrategy struct{}

func (*BindMountStrategy) Args(mounts []*Mount) []string {
	var args []string
	for _, m := range mounts {
		args = append(args, "-v", m.HostPath+":"+m.ContainerPath)
	}
	return args
}

// DetectMountStrategy probes whether this process runs inside a docker
// container and returns the matching strategy. Inside a container the
// hostname is the container id, which --volumes-from accepts.
func DetectMountStrategy() MountStrategy {
	if exists, err := fileutil.Exists("/.dockerenv"); err == nil && exists {
		if hostname, err := os.Hostname(); err == nil && hostname != "" {
			return &VolumesFromStrategy{Container: hostname}
		}
	}
	return &BindMountStrategy{}
}
