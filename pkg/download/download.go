// Package download provides the generic "fetch archive at URL and
// unpack into directory" capability used to materialize baseline
// builds and seed corpora.
package download

import (
	"io"
	"net/http"
	"os"

	"github.com/mitchellh/ioprogress"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"code-intelligence.com/fuzzgate/util/archiveutil"
	"code-intelligence.com/fuzzgate/util/fileutil"
)

// Zip downloads the archive at url and extracts all its contents into
// destDir, which must already exist. The archive is spooled through a
// uniquely named temporary file which is removed again regardless of
// outcome, so concurrent downloads never collide.
func Zip(url, destDir string) error {
	exists, err := fileutil.Exists(destDir)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Errorf("destination directory %s does not exist", destDir)
	}

	tmpFile, err := os.CreateTemp("", "fuzzgate-download-*.zip")
	if err != nil {
		return errors.WithStack(err)
	}
	defer fileutil.Cleanup(tmpFile.Name())
	defer tmpFile.Close()

	resp, err := http.Get(url)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("downloading %s: %s", url, resp.Status)
	}

	var body io.Reader = resp.Body
	if showProgress(resp.ContentLength) {
		body = &ioprogress.Reader{
			Reader:   resp.Body,
			Size:     resp.ContentLength,
			DrawFunc: ioprogress.DrawTerminalf(os.Stderr, ioprogress.DrawTextFormatBytes),
		}
	}

	_, err = io.Copy(tmpFile, body)
	if err != nil {
		return errors.WithStack(err)
	}
	err = tmpFile.Close()
	if err != nil {
		return errors.WithStack(err)
	}

	err = archiveutil.Unzip(tmpFile.Name(), destDir)
	if err != nil {
		return errors.WithMessagef(err, "unpacking archive from %s", url)
	}
	return nil
}

func showProgress(size int64) bool {
	return size > 0 &&
		viper.GetBool("verbose") &&
		term.IsTerminal(int(os.Stderr.Fd()))
}
