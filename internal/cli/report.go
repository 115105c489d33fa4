package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
)

// maxListedWarnings caps the warnings shown in the text report.
const maxListedWarnings = 20

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("30"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(11)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// WriteReport renders report to w in format. An empty format means text.
func WriteReport(w io.Writer, report converter.Report, format converter.OutputFormat) error {
	if format == converter.OutputFormatText || format == "" {
		_, err := io.WriteString(w, textReport(report))
		return err
	}
	return encode(w, report, format)
}

// encode writes v to w in one of the structured formats.
func encode(w io.Writer, v any, format converter.OutputFormat) error {
	switch format {
	case converter.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case converter.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case converter.OutputFormatTOML:
		return toml.NewEncoder(w).Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func textReport(report converter.Report) string {
	s := report.Summary
	var b strings.Builder

	status := "Conversion complete"
	if s.FatalErrorOccurred {
		status = "Conversion stopped"
	}
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render(status), fmt.Sprintf("(%.2fs)", s.DurationSeconds))
	line := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(label), value)
	}
	line("Input:", s.InputPath)
	line("Output:", s.OutputPath)
	line("Template:", s.TemplatePath)
	if s.ProfileUsed != "" {
		line("Profile:", s.ProfileUsed)
	}
	line("Files:", fmt.Sprintf("%d scanned, %d converted, %d cached, %d skipped, %d failed",
		s.TotalFilesScanned, s.ConvertedCount, s.CachedCount, s.SkippedCount, s.ErrorCount))
	line("Warnings:", fmt.Sprint(s.WarningCount))

	if len(report.Converted) > 0 {
		b.WriteString("\nDocuments:\n")
		for _, f := range report.Converted {
			suffix := ""
			if f.CacheStatus == converter.CacheStatusHit {
				suffix = " (cached)"
			}
			fmt.Fprintf(&b, "  %s -> %s%s\n", f.Path, f.OutputPath, suffix)
		}
	}

	listed := 0
	for _, f := range report.Converted {
		for _, w := range f.Warnings {
			if listed == 0 {
				b.WriteString("\n" + warningStyle.Render("Warnings:") + "\n")
			}
			if listed == maxListedWarnings {
				fmt.Fprintf(&b, "  ... %d more\n", s.WarningCount-listed)
				break
			}
			fmt.Fprintf(&b, "  %s: [%s] %s\n", f.Path, w.Code, w.Message)
			listed++
		}
		if listed == maxListedWarnings {
			break
		}
	}

	if len(report.Errors) > 0 {
		b.WriteString("\n" + errorStyle.Render("Errors:") + "\n")
		for _, e := range report.Errors {
			fatal := ""
			if e.IsFatal {
				fatal = " (fatal)"
			}
			fmt.Fprintf(&b, "  %s: %s%s\n", e.Path, e.Error, fatal)
		}
	}
	return b.String()
}
