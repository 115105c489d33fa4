// Package analysis inspects a docx template or generated document for
// constructs that break placeholder substitution or make Word and WPS show
// compatibility prompts, and repairs the ones that can be fixed mechanically.
package analysis

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/docx"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/style"
)

// Mode selects which checks run.
type Mode string

const (
	// ModeTemplate looks for split placeholders, misplaced body styles and
	// external field instructions.
	ModeTemplate Mode = "template"
	// ModeOutput looks for external relationships.
	ModeOutput Mode = "output"
	// ModeAll runs every check.
	ModeAll Mode = "all"
)

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeTemplate, ModeOutput, ModeAll:
		return m, nil
	case "":
		return ModeTemplate, nil
	default:
		return "", fmt.Errorf("unknown check mode %q (want template, output or all)", s)
	}
}

func (m Mode) template() bool { return m == ModeTemplate || m == ModeAll }
func (m Mode) output() bool   { return m == ModeOutput || m == ModeAll }

// Code identifies the kind of an Issue.
type Code string

const (
	CodeRunSplit          Code = "RUN_SPLIT"
	CodeBodyStyleLocation Code = "BODY_STYLE_LOCATION"
	CodeExternalRels      Code = "EXTERNAL_RELS"
	CodeFieldExternal     Code = "FIELD_EXTERNAL"
	CodeEmbeddedObject    Code = "EMBEDDED_OBJECT"
)

// Issue is one finding. Paragraph is the zero-based index of the paragraph
// within Part, or -1 when the finding is not tied to a paragraph.
type Issue struct {
	Code      Code   `json:"code" yaml:"code" toml:"code"`
	Part      string `json:"part" yaml:"part" toml:"part"`
	Paragraph int    `json:"paragraph" yaml:"paragraph" toml:"paragraph"`
	// Detail is the offending token, style name, target or instruction.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty" toml:"detail,omitempty"`
	// Text is the visible text of the paragraph, if any.
	Text string `json:"text,omitempty" yaml:"text,omitempty" toml:"text,omitempty"`
}

// String renders the issue on one line.
func (i Issue) String() string {
	loc := i.Part
	if i.Paragraph >= 0 {
		loc = fmt.Sprintf("%s#p%d", i.Part, i.Paragraph)
	}
	text := i.Text
	if text == "" && i.Paragraph >= 0 {
		text = "[空段落]"
	}
	switch i.Code {
	case CodeRunSplit:
		return fmt.Sprintf("%s %s: %s | %s", i.Code, loc, i.Detail, text)
	case CodeBodyStyleLocation:
		return fmt.Sprintf("%s %s style=%s in header/footer/table/textbox: %s", i.Code, loc, i.Detail, text)
	case CodeEmbeddedObject:
		return fmt.Sprintf("%s %s", i.Code, loc)
	default:
		return fmt.Sprintf("%s %s: %s", i.Code, loc, i.Detail)
	}
}

// Analyzer checks a docx package.
type Analyzer interface {
	// Check returns every issue found in doc for mode, in part order.
	// Parts that fail to parse are skipped.
	Check(doc *docx.Document, mode Mode) ([]Issue, error)
}

// DefaultAnalyzer implements Analyzer with etree.
type DefaultAnalyzer struct {
	logger     *slog.Logger
	bodyStyles map[string]struct{}
}

// NewDefaultAnalyzer returns an analyzer treating bodyStyles as the display
// names of body paragraph styles. An empty list means style.BodyNames.
func NewDefaultAnalyzer(handler slog.Handler, bodyStyles []string) *DefaultAnalyzer {
	if len(bodyStyles) == 0 {
		bodyStyles = style.BodyNames()
	}
	set := make(map[string]struct{}, len(bodyStyles))
	for _, s := range bodyStyles {
		if s = strings.TrimSpace(s); s != "" {
			set[s] = struct{}{}
		}
	}
	return &DefaultAnalyzer{
		logger:     slog.New(handler).With(slog.String("component", "analyzer")),
		bodyStyles: set,
	}
}

// tokenRe matches any {{...}} span, including ones the resolver rejects.
var tokenRe = regexp.MustCompile(`(?s)\{\{.*?\}\}`)

// externalFields are field codes that pull content from outside the package.
var externalFields = map[string]bool{
	"INCLUDETEXT": true, "INCLUDEPICTURE": true, "LINK": true, "DDE": true, "DDEAUTO": true,
}

// Check implements Analyzer.
func (a *DefaultAnalyzer) Check(doc *docx.Document, mode Mode) ([]Issue, error) {
	catalog, err := doc.Styles()
	if err != nil {
		a.logger.Warn("styles.xml unreadable, using raw style IDs", slog.String("error", err.Error()))
	}
	var issues []Issue
	if mode.template() {
		for _, part := range wordXMLParts(doc) {
			x, err := doc.Part(part)
			if err != nil || x.Root() == nil {
				a.logger.Debug("Skipping unparsable part", slog.String("part", part))
				continue
			}
			for idx, p := range docx.Paragraphs(x.Root()) {
				issues = append(issues, runSplits(p, part, idx)...)
				if issue, ok := a.bodyStyleLocation(p, part, idx, catalog); ok {
					issues = append(issues, issue)
				}
			}
			issues = append(issues, externalFieldIssues(x.Root(), part)...)
		}
	}
	if mode.output() {
		issues = append(issues, a.externalRels(doc)...)
	}
	for _, name := range doc.Names() {
		if strings.HasPrefix(name, "word/embeddings/") || strings.HasPrefix(name, "word/activeX/") {
			issues = append(issues, Issue{Code: CodeEmbeddedObject, Part: name, Paragraph: -1})
		}
	}
	a.logger.Debug("Check finished", slog.String("mode", string(mode)), slog.Int("issues", len(issues)))
	return issues, nil
}

// wordXMLParts lists the XML parts directly under word/.
func wordXMLParts(doc *docx.Document) []string {
	var out []string
	for _, name := range doc.Names() {
		if path.Dir(name) == "word" && path.Ext(name) == ".xml" {
			out = append(out, name)
		}
	}
	return out
}

// runSplits reports every token whose characters come from more than one run.
func runSplits(p *etree.Element, part string, idx int) []Issue {
	runs := paragraphRuns(p)
	var buf strings.Builder
	var owner []int
	for i, r := range runs {
		s := runText(r)
		buf.WriteString(s)
		for range len(s) {
			owner = append(owner, i)
		}
	}
	text := buf.String()
	if !strings.Contains(text, "{{") {
		return nil
	}
	var out []Issue
	for _, m := range tokenRe.FindAllStringIndex(text, -1) {
		if owner[m[0]] == owner[m[1]-1] {
			continue
		}
		out = append(out, Issue{
			Code:      CodeRunSplit,
			Part:      part,
			Paragraph: idx,
			Detail:    strings.ReplaceAll(text[m[0]:m[1]], "\n", `\n`),
			Text:      strings.TrimSpace(docx.ParagraphText(p)),
		})
	}
	return out
}

// paragraphRuns returns the w:r elements of p, including those inside
// hyperlinks and fields, but not those of nested text box paragraphs.
func paragraphRuns(p *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			switch {
			case c.Space == "w" && c.Tag == "r":
				out = append(out, c)
			case c.Space == "w" && c.Tag == "p":
			default:
				walk(c)
			}
		}
	}
	walk(p)
	return out
}

// runText is docx.RunText plus field instruction text, so that a token
// typed into a field code is also checked.
func runText(r *etree.Element) string {
	s := docx.RunText(r)
	for _, c := range r.SelectElements("w:instrText") {
		s += c.Text()
	}
	return s
}

func (a *DefaultAnalyzer) bodyStyleLocation(p *etree.Element, part string, idx int, catalog *docx.Catalog) (Issue, bool) {
	id := docx.StyleOf(p)
	if id == "" {
		return Issue{}, false
	}
	name := id
	if catalog != nil {
		name = catalog.NameOf(id)
	}
	if _, ok := a.bodyStyles[name]; !ok {
		return Issue{}, false
	}
	for _, tag := range []string{"hdr", "ftr", "tbl", "txbxContent"} {
		if docx.Ancestor(p, tag) != nil {
			return Issue{
				Code:      CodeBodyStyleLocation,
				Part:      part,
				Paragraph: idx,
				Detail:    name,
				Text:      strings.TrimSpace(docx.ParagraphText(p)),
			}, true
		}
	}
	return Issue{}, false
}

func externalFieldIssues(root *etree.Element, part string) []Issue {
	var out []Issue
	check := func(instr string) {
		fields := strings.Fields(strings.ToUpper(instr))
		if len(fields) > 0 && externalFields[fields[0]] {
			out = append(out, Issue{Code: CodeFieldExternal, Part: part, Paragraph: -1, Detail: strings.TrimSpace(instr)})
		}
	}
	for _, e := range root.FindElements(".//w:instrText") {
		check(e.Text())
	}
	for _, e := range root.FindElements(".//w:fldSimple") {
		check(e.SelectAttrValue("w:instr", ""))
	}
	return out
}

func (a *DefaultAnalyzer) externalRels(doc *docx.Document) []Issue {
	var out []Issue
	for _, name := range doc.Names() {
		if !strings.HasPrefix(name, "word/_rels/") || !strings.HasSuffix(name, ".rels") {
			continue
		}
		x, err := doc.Part(name)
		if err != nil || x.Root() == nil {
			a.logger.Debug("Skipping unparsable relationships", slog.String("part", name))
			continue
		}
		for _, rel := range x.Root().SelectElements("Relationship") {
			if strings.EqualFold(rel.SelectAttrValue("TargetMode", ""), "External") {
				out = append(out, Issue{
					Code:      CodeExternalRels,
					Part:      name,
					Paragraph: -1,
					Detail:    rel.SelectAttrValue("Target", ""),
				})
			}
		}
	}
	return out
}
