package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/otiai10/copy"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"code-intelligence.com/fuzzgate/pkg/desktop"
	"code-intelligence.com/fuzzgate/pkg/log"
	"code-intelligence.com/fuzzgate/util/fileutil"
	"code-intelligence.com/fuzzgate/util/stringutil"
)

// Finding is a crash which was reproduced and classified as introduced
// by the change under test.
type Finding struct {
	TargetName string    `json:"target_name,omitempty"`
	InputPath  string    `json:"input_path,omitempty"`
	Logs       []string  `json:"logs,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`

	// ArtifactPath is where the crashing input was archived. Set by the
	// handler.
	ArtifactPath string `json:"artifact_path,omitempty"`
}

func (f *Finding) ShortDescription() string {
	return fmt.Sprintf("%s: crashing input %s", f.TargetName, filepath.Base(f.InputPath))
}

type HandlerOptions struct {
	// OutDir is the directory findings are archived below, in
	// artifacts/<target name>/.
	OutDir    string
	PrintJSON bool
}

// Handler archives and prints findings. It keeps every finding of the
// run so callers can decide the final verdict after all targets ran.
type Handler struct {
	*HandlerOptions

	jsonOutput *os.File

	Findings []*Finding
}

func NewHandler(options *HandlerOptions) *Handler {
	return &Handler{
		HandlerOptions: options,
		jsonOutput:     os.Stdout,
	}
}

// Handle archives the crashing input and prints the finding. The
// original input below the out directory is left in place, the copy
// under artifacts/ is the stable location CI systems should upload.
func (h *Handler) Handle(f *Finding) error {
	f.CreatedAt = time.Now()
	h.Findings = append(h.Findings, f)

	err := h.saveArtifact(f)
	if err != nil {
		return err
	}

	if h.PrintJSON {
		return h.printJSON(f)
	}

	if !term.IsTerminal(int(os.Stderr.Fd())) {
		color.Disable()
	}
	log.Print("\n")
	log.Printf("💥 %s", color.Red.Render(f.ShortDescription()))
	if f.ArtifactPath != "" {
		log.Notef("Crashing input archived at %s", fileutil.PrettifyPath(f.ArtifactPath))
	}
	if len(f.Logs) > 0 {
		log.Print(strings.Join(f.Logs, "\n") + "\n")
	}

	desktop.Notify("fuzzgate finding", f.ShortDescription())

	return nil
}

func (h *Handler) saveArtifact(f *Finding) error {
	if f.InputPath == "" {
		return nil
	}
	artifactDir := filepath.Join(h.OutDir, "artifacts", f.TargetName)
	err := os.MkdirAll(artifactDir, 0755)
	if err != nil {
		return errors.WithStack(err)
	}
	artifactPath := filepath.Join(artifactDir, filepath.Base(f.InputPath))
	err = copy.Copy(f.InputPath, artifactPath)
	if err != nil {
		return errors.WithStack(err)
	}
	f.ArtifactPath = artifactPath
	return nil
}

func (h *Handler) printJSON(f *Finding) error {
	var jsonString string
	var err error
	// Print with color if the output stream is a TTY
	if term.IsTerminal(int(h.jsonOutput.Fd())) {
		var bytes []byte
		bytes, err = prettyjson.Marshal(f)
		if err != nil {
			return errors.WithStack(err)
		}
		jsonString = string(bytes)
	} else {
		jsonString, err = stringutil.ToJsonString(f)
		if err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintln(h.jsonOutput, jsonString)
	return nil
}
