// Package template names generated documents. Output names are Go
// text/template strings evaluated against NameData.
package template

import (
	"fmt"
	"io"
	"path"
	"strings"
	"text/template"
	"time"
)

// DefaultSingle names the document of a single conversion, matching the
// "<software>_<version>_软件说明书.docx" convention.
const DefaultSingle = `{{ safe .SoftwareName }}_{{ safe .Version }}_软件说明书.docx`

// DefaultBatch names each document of a batch after its Markdown source.
const DefaultBatch = `{{ .Stem }}.docx`

// NameData is what an output name template can refer to.
type NameData struct {
	SoftwareName string
	Version      string
	// Stem is the source file name without its extension.
	Stem string
	// SourcePath is slash-separated and relative to the input directory.
	SourcePath string
	Values     map[string]string
	GitInfo    *GitInfo
	Now        time.Time
}

// GitInfo holds the last commit touching the source, when Git metadata is on.
type GitInfo struct {
	Commit      string
	Author      string
	AuthorEmail string
	DateISO     string
}

// NameExecutor renders an output name template.
type NameExecutor interface {
	Execute(w io.Writer, tmpl *template.Template, data *NameData) error
}

// GoTemplateExecutor is the text/template implementation of NameExecutor.
type GoTemplateExecutor struct{}

func NewGoTemplateExecutor() *GoTemplateExecutor {
	return &GoTemplateExecutor{}
}

// Execute runs tmpl, or DefaultBatch when tmpl is nil.
func (e *GoTemplateExecutor) Execute(w io.Writer, tmpl *template.Template, data *NameData) error {
	if tmpl == nil {
		var err error
		if tmpl, err = Parse("batch", DefaultBatch); err != nil {
			return err
		}
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("output name template %q: %w", tmpl.Name(), err)
	}
	return nil
}

var funcs = template.FuncMap{
	"safe": SafeFilename,
	"formatDate": func(layout string, t time.Time) string {
		if layout == "" {
			layout = "2006-01-02"
		}
		return t.Format(layout)
	},
	"short": func(commit string) string {
		if len(commit) > 7 {
			return commit[:7]
		}
		return commit
	},
}

// Parse compiles an output name template with the naming helpers registered.
func Parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse output name template %q: %w", name, err)
	}
	return tmpl, nil
}

// Render executes tmpl and cleans the result into a relative, slash-separated
// file name. Directory parts produced by the template are kept but can never
// climb above the output directory.
func Render(exec NameExecutor, tmpl *template.Template, data *NameData) (string, error) {
	var sb strings.Builder
	if err := exec.Execute(&sb, tmpl, data); err != nil {
		return "", err
	}
	name := path.Clean("/" + strings.ReplaceAll(strings.TrimSpace(sb.String()), `\`, "/"))
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "", fmt.Errorf("output name template produced an empty name")
	}
	return name, nil
}

// SafeFilename replaces path separators with "_" and falls back to
// "output" for blank input.
func SafeFilename(s string) string {
	s = strings.NewReplacer(`\`, "_", "/", "_").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return "output"
	}
	return s
}
