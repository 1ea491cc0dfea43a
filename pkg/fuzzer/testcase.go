package fuzzer

import (
	"path/filepath"
	"regexp"

	"code-intelligence.com/fuzzgate/util/regexutil"
)

// libFuzzer announces the file it wrote a crashing input to with this
// marker. The path after the marker is relative to the working
// directory of the fuzzer, which is the out directory.
var testCaseRegex = regexp.MustCompile(`\bTest unit written to \./(?P<file>[^\s]+)`)

// TestCasePath extracts the path of the failure-reproducing input from
// the fuzzer's diagnostic output and resolves it against outDir. This
// is a best-effort scrape over unstructured output: when the marker is
// absent the result is "", never an error.
func TestCasePath(diagnostics, outDir string) string {
	match, found := regexutil.FindNamedGroupsMatch(testCaseRegex, diagnostics)
	if !found {
		return ""
	}
	return filepath.Join(outDir, match["file"])
}
