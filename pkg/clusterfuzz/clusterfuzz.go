// Package clusterfuzz resolves and materializes baseline artifacts
// published by ClusterFuzz for OSS-Fuzz projects: the latest build of a
// project's fuzz targets and the backup seed corpus of a single target.
// Both are cached on disk below the target's out directory.
package clusterfuzz

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-filemutex"
	"github.com/pkg/errors"

	"code-intelligence.com/fuzzgate/pkg/download"
	"code-intelligence.com/fuzzgate/pkg/log"
	"code-intelligence.com/fuzzgate/util/fileutil"
	"code-intelligence.com/fuzzgate/util/urlutil"
)

const (
	// GCSBaseURL is the Google Cloud Storage endpoint serving public
	// ClusterFuzz artifacts.
	GCSBaseURL = "https://storage.googleapis.com/"

	// ClusterFuzzBuilds is the bucket holding the latest OSS-Fuzz builds.
	ClusterFuzzBuilds = "clusterfuzz-builds"

	// Sanitizer is the sanitizer flavor of the baseline builds we
	// compare against.
	Sanitizer = "address"

	// corpusZipName is the archive name under which ClusterFuzz backs
	// up a target's corpus.
	corpusZipName = "public.zip"

	buildCacheDir  = "oss_fuzz_latest"
	corpusCacheDir = "backup_corpus"
)

type Client struct {
	// BaseURL of the storage serving builds and corpora; GCSBaseURL
	// unless overridden (tests).
	BaseURL string
	// OutDir is the fuzz target's output directory. It must exist
	// before any download is attempted; cache directories below it are
	// created on demand.
	OutDir string
}

func NewClient(outDir string) *Client {
	return &Client{
		BaseURL: GCSBaseURL,
		OutDir:  outDir,
	}
}

// LatestBuildVersion resolves the version token of the most recent
// published build of the project's fuzzers.
func (c *Client) LatestBuildVersion(project string) (string, error) {
	versionFile := fmt.Sprintf("%s-%s-latest.version", project, Sanitizer)
	versionURL := urlutil.Join(c.BaseURL, ClusterFuzzBuilds, project, versionFile)

	resp, err := http.Get(versionURL)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("getting latest build version for %s from %s: %s", project, versionURL, resp.Status)
	}

	version, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return strings.TrimSpace(string(version)), nil
}

// DownloadLatestBuild materializes the latest published build of the
// project below the out directory and returns its path. The build is
// cached: once the directory contains the target binary, subsequent
// calls return it without fetching. A baseline archive which does not
// contain the target binary (target added after the baseline was
// published) is reported as an error, so callers treat it as "no
// baseline available".
func (c *Client) DownloadLatestBuild(project, targetName string) (string, error) {
	if project == "" {
		return "", errors.New("no project specified")
	}
	exists, err := fileutil.Exists(c.OutDir)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errors.Errorf("out directory %s does not exist", c.OutDir)
	}

	buildDir := filepath.Join(c.OutDir, buildCacheDir, project)
	binaryPath := filepath.Join(buildDir, targetName)
	if exists, err := fileutil.Exists(binaryPath); err == nil && exists {
		return buildDir, nil
	}

	err = os.MkdirAll(buildDir, 0755)
	if err != nil {
		return "", errors.WithStack(err)
	}

	// Hold a file lock while materializing the build, so that multiple
	// targets of the same project running in parallel don't download
	// the same archive twice.
	mutex, err := filemutex.New(filepath.Join(c.OutDir, buildCacheDir, "."+project+".lock"))
	if err != nil {
		return "", errors.WithStack(err)
	}
	err = mutex.Lock()
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer func() {
		err := mutex.Unlock()
		if err != nil {
			log.Warnf("Unable to release lock on baseline build cache: %v", err)
		}
	}()

	// Another invocation might have fetched the build while we were
	// waiting for the lock.
	if exists, err := fileutil.Exists(binaryPath); err == nil && exists {
		return buildDir, nil
	}

	version, err := c.LatestBuildVersion(project)
	if err != nil {
		return "", err
	}

	buildURL := urlutil.Join(c.BaseURL, ClusterFuzzBuilds, project, version)
	err = download.Zip(buildURL, buildDir)
	if err != nil {
		return "", err
	}

	exists, err = fileutil.Exists(binaryPath)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errors.Errorf("target %s is missing from the baseline build of %s", targetName, project)
	}
	return buildDir, nil
}

// DownloadLatestCorpus fetches the backup corpus of the target into a
// directory below the out directory and returns its path. In contrast
// to the build cache there is no existence short-circuit: the fetch is
// attempted on every call, a stale corpus only degrades fuzzing
// effectiveness.
func (c *Client) DownloadLatestCorpus(project, targetName string) (string, error) {
	if project == "" {
		return "", errors.New("no project specified")
	}
	exists, err := fileutil.Exists(c.OutDir)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errors.Errorf("out directory %s does not exist", c.OutDir)
	}

	corpusDir := filepath.Join(c.OutDir, corpusCacheDir, targetName)
	err = os.MkdirAll(corpusDir, 0755)
	if err != nil {
		return "", errors.WithStack(err)
	}

	corpusURL := urlutil.Join(c.BaseURL,
		fmt.Sprintf("%s-backup.clusterfuzz-external.appspot.com", project),
		"corpus", "libFuzzer",
		QualifiedTargetName(project, targetName),
		corpusZipName)
	err = download.Zip(corpusURL, corpusDir)
	if err != nil {
		return "", err
	}
	return corpusDir, nil
}

// QualifiedTargetName prefixes the target name with "<project>_" the
// way ClusterFuzz names corpus buckets, unless it is already qualified.
func QualifiedTargetName(project, targetName string) string {
	prefix := project + "_"
	if strings.HasPrefix(targetName, prefix) {
		return targetName
	}
	return prefix + targetName
}
