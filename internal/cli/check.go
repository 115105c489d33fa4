package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/analysis"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/docx"
)

// ErrIssuesFound is returned by Check when the document has findings.
var ErrIssuesFound = errors.New("issues found")

// CheckOptions configures Check.
type CheckOptions struct {
	Path       string
	Mode       analysis.Mode
	BodyStyles []string
	Format     converter.OutputFormat
}

// CheckResult is what Check prints in the structured formats.
type CheckResult struct {
	Path   string           `json:"path" yaml:"path" toml:"path"`
	Mode   analysis.Mode    `json:"mode" yaml:"mode" toml:"mode"`
	Issues []analysis.Issue `json:"issues" yaml:"issues" toml:"issues"`
}

// Check analyzes the .docx at opts.Path and prints the findings to w. It
// returns ErrIssuesFound when there are any.
func Check(opts CheckOptions, logger *slog.Logger, w io.Writer) (CheckResult, error) {
	res := CheckResult{Path: opts.Path, Mode: opts.Mode}
	doc, err := docx.OpenFile(opts.Path)
	if err != nil {
		return res, err
	}
	issues, err := analysis.NewDefaultAnalyzer(logger.Handler(), opts.BodyStyles).Check(doc, opts.Mode)
	if err != nil {
		return res, err
	}
	res.Issues = issues
	logger.Debug("Document checked", slog.String("path", opts.Path), slog.String("mode", string(opts.Mode)), slog.Int("issues", len(issues)))

	if opts.Format == converter.OutputFormatText || opts.Format == "" {
		err = writeCheckText(w, res)
	} else {
		err = encode(w, res, opts.Format)
	}
	if err != nil {
		return res, fmt.Errorf("write check result: %w", err)
	}
	if len(issues) > 0 {
		return res, fmt.Errorf("%w: %d in %s", ErrIssuesFound, len(issues), opts.Path)
	}
	return res, nil
}

func writeCheckText(w io.Writer, res CheckResult) error {
	var b strings.Builder
	if len(res.Issues) == 0 {
		fmt.Fprintf(&b, "%s: no issues (%s)\n", res.Path, res.Mode)
	} else {
		fmt.Fprintf(&b, "%s: %s\n", res.Path, errorStyle.Render(fmt.Sprintf("%d issue(s)", len(res.Issues))))
		for _, i := range res.Issues {
			fmt.Fprintf(&b, "  %s\n", i)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// FixOptions configures Fix.
type FixOptions struct {
	Path string
	// Out is the repaired copy; empty means "<stem>_fixed.docx" next to Path.
	Out    string
	Anchor string
	Force  bool
}

// FixedPath returns the default output of Fix for path.
func FixedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_fixed" + ext
}

// Fix merges split placeholders and rebuilds the anchor paragraph of the
// template at opts.Path, writing the result to a new file. The source is
// never modified.
func Fix(opts FixOptions, logger *slog.Logger, w io.Writer) (analysis.RepairReport, error) {
	out := opts.Out
	if out == "" {
		out = FixedPath(opts.Path)
	}
	if opts.Anchor == "" {
		opts.Anchor = converter.DefaultAnchor
	}
	if same, _ := samePath(opts.Path, out); same {
		return analysis.RepairReport{}, fmt.Errorf("refusing to overwrite the source template %s", opts.Path)
	}
	if _, err := os.Stat(out); err == nil && !opts.Force {
		return analysis.RepairReport{}, fmt.Errorf("%w: %s (use --force to overwrite)", ErrOutputExists, out)
	}

	doc, err := docx.OpenFile(opts.Path)
	if err != nil {
		return analysis.RepairReport{}, err
	}
	rep, err := analysis.Repair(doc, opts.Anchor)
	if err != nil {
		return rep, err
	}
	if err := doc.Save(out); err != nil {
		return rep, fmt.Errorf("%w: %s: %w", converter.ErrWriteFailed, out, err)
	}
	logger.Info("Template repaired",
		slog.String("path", opts.Path),
		slog.String("output", out),
		slog.Int("merged", rep.Merged),
		slog.Bool("anchorRebuilt", rep.AnchorRebuilt),
	)

	anchor := "not found"
	switch {
	case rep.AnchorRebuilt:
		anchor = "rebuilt"
	case rep.AnchorFound:
		anchor = "already clean"
	}
	_, err = fmt.Fprintf(w, "%s -> %s: merged %d split placeholder(s), anchor {{%s}} %s\n",
		opts.Path, out, rep.Merged, opts.Anchor, anchor)
	return rep, err
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
