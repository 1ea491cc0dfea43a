package urlutil

import (
	"path"
	"strings"
)

// Join joins URL sections with posix path semantics, without touching
// the scheme and authority of the first section. path.Join alone can't
// be used on a full URL because it collapses the "//" after the scheme.
func Join(sections ...string) string {
	if len(sections) == 0 {
		return ""
	}
	base := strings.TrimSuffix(sections[0], "/")
	rest := path.Join(sections[1:]...)
	if rest == "" {
		return base
	}
	return base + "/" + rest
}
