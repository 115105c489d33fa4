// Package markdown turns Markdown source into the ordered block sequence
// consumed by the document assembler. Only headings, paragraphs, lists,
// block quotes, fenced code, pipe tables and stand-alone images are
// recognised; everything else degrades to paragraph text. Parse never fails.
package markdown

import (
	"regexp"
	"strings"
)

// DefaultIndentUnit is the number of columns that make up one list nesting level.
const DefaultIndentUnit = 2

// Default caption grammars. A table caption must sit directly above the
// table; an image caption follows the image after one blank line.
var (
	DefaultTableCaption = regexp.MustCompile(`^表\s*\d+\s+\S`)
	DefaultImageCaption = regexp.MustCompile(`^图\s*\d+`)
)

// Config controls the few grammar points that vary between documents.
type Config struct {
	IndentUnit   int
	TableCaption *regexp.Regexp
	ImageCaption *regexp.Regexp
}

// Option mutates a Config.
type Option func(*Config)

// WithIndentUnit sets the indent width of one list level. Values below 1 are ignored.
func WithIndentUnit(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.IndentUnit = n
		}
	}
}

// WithTableCaption overrides the table caption grammar.
func WithTableCaption(re *regexp.Regexp) Option {
	return func(c *Config) {
		if re != nil {
			c.TableCaption = re
		}
	}
}

// WithImageCaption overrides the image caption grammar.
func WithImageCaption(re *regexp.Regexp) Option {
	return func(c *Config) {
		if re != nil {
			c.ImageCaption = re
		}
	}
}

var (
	headingRe   = regexp.MustCompile(`^ {0,3}(#+)(?:[ \t]+(.*?))?[ \t]*$`)
	closingHash = regexp.MustCompile(`[ \t]+#+$`)
	fenceRe     = regexp.MustCompile("^( {0,3})(`{3,}|~{3,})[ \t]*(.*)$")
	bulletRe    = regexp.MustCompile(`^([ \t]*)([-*+])[ \t]+(.*)$`)
	orderedRe   = regexp.MustCompile(`^([ \t]*)(\d{1,9})[.)][ \t]+(.*)$`)
	quoteRe     = regexp.MustCompile(`^ {0,3}> ?(.*)$`)
	imageLineRe = regexp.MustCompile(`^\s*!\[([^\]]*)\]\(\s*<?([^\s<>()]+(?:\([^\s()]*\)[^\s<>()]*)*)>?(?:\s+"([^"]*)")?\s*\)\s*$`)
	sepCellRe   = regexp.MustCompile(`^:?-+:?$`)
)

// admonitionPrefixes pairs each recognised quote label with its kind.
var admonitionPrefixes = []struct {
	prefix string
	kind   Admonition
}{
	{"提示:", AdmonitionTip}, {"提示：", AdmonitionTip},
	{"注意:", AdmonitionNote}, {"注意：", AdmonitionNote},
	{"警告:", AdmonitionWarning}, {"警告：", AdmonitionWarning},
}

// Parse converts Markdown text into blocks in source order. Input that
// contains at least one non-blank line always yields at least one block.
func Parse(src string, opts ...Option) []Block {
	cfg := Config{
		IndentUnit:   DefaultIndentUnit,
		TableCaption: DefaultTableCaption,
		ImageCaption: DefaultImageCaption,
	}
	for _, o := range opts {
		o(&cfg)
	}
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	src = strings.TrimPrefix(src, "\ufeff")
	s := &scanner{cfg: cfg, lines: strings.Split(src, "\n")}
	s.run()
	return s.blocks
}

type scanner struct {
	cfg    Config
	lines  []string
	pos    int
	blocks []Block
}

func isBlank(line string) bool { return strings.TrimSpace(line) == "" }

func (s *scanner) emit(b Block) { s.blocks = append(s.blocks, b) }

func (s *scanner) run() {
	for s.pos < len(s.lines) {
		line := s.lines[s.pos]
		switch {
		case isBlank(line):
			s.pos++
		case fenceRe.MatchString(line):
			s.fence()
		case headingRe.MatchString(line):
			s.heading()
		case quoteRe.MatchString(line):
			s.quote()
		case s.isTableStart(s.pos):
			s.table("")
		case s.isCaptionedTable(s.pos):
			caption := strings.TrimSpace(line)
			s.pos++
			s.table(caption)
		case imageLineRe.MatchString(line):
			s.image()
		case s.listMarker(line) != nil:
			s.listItem()
		default:
			s.paragraph()
		}
	}
}

// startsBlock reports whether line i opens anything other than a paragraph.
func (s *scanner) startsBlock(i int) bool {
	line := s.lines[i]
	return fenceRe.MatchString(line) ||
		headingRe.MatchString(line) ||
		quoteRe.MatchString(line) ||
		imageLineRe.MatchString(line) ||
		s.listMarker(line) != nil ||
		s.isTableStart(i) ||
		s.isCaptionedTable(i)
}

func (s *scanner) heading() {
	m := headingRe.FindStringSubmatch(s.lines[s.pos])
	s.pos++
	level := len(m[1])
	if level > MaxHeadingLevel {
		level = MaxHeadingLevel
	}
	text := closingHash.ReplaceAllString(m[2], "")
	if strings.Trim(text, "#") == "" {
		text = ""
	}
	s.emit(&Heading{Level: level, Spans: ParseInline(strings.TrimSpace(text))})
}

func (s *scanner) fence() {
	open := s.lines[s.pos]
	m := fenceRe.FindStringSubmatch(open)
	indent, marker, info := len(m[1]), m[2], strings.TrimSpace(m[3])
	if marker[0] == '`' && strings.Contains(info, "`") {
		s.rawParagraph(open)
		return
	}
	for j := s.pos + 1; j < len(s.lines); j++ {
		if isClosingFence(s.lines[j], marker) {
			body := make([]string, 0, j-s.pos-1)
			for _, l := range s.lines[s.pos+1 : j] {
				body = append(body, trimIndent(l, indent))
			}
			lang := ""
			if f := strings.Fields(info); len(f) > 0 {
				lang = f[0]
			}
			s.emit(&CodeBlock{Language: lang, Lines: body})
			s.pos = j + 1
			return
		}
	}
	// Unterminated fence: the opener becomes literal text and scanning resumes below it.
	s.rawParagraph(open)
}

func (s *scanner) rawParagraph(line string) {
	s.emit(&Paragraph{Spans: []Span{{Kind: SpanText, Text: strings.TrimSpace(line)}}})
	s.pos++
}

func isClosingFence(line, marker string) bool {
	t := strings.TrimLeft(line, " ")
	if len(line)-len(t) > 3 {
		return false
	}
	t = strings.TrimRight(t, " \t")
	if len(t) < len(marker) {
		return false
	}
	for i := 0; i < len(t); i++ {
		if t[i] != marker[0] {
			return false
		}
	}
	return true
}

func trimIndent(line string, n int) string {
	for n > 0 && strings.HasPrefix(line, " ") {
		line = line[1:]
		n--
	}
	return line
}

func (s *scanner) quote() {
	var raw []string
	for s.pos < len(s.lines) {
		m := quoteRe.FindStringSubmatch(s.lines[s.pos])
		if m == nil {
			break
		}
		raw = append(raw, m[1])
		s.pos++
	}
	// The first labelled line decides the kind and loses its label.
	q := &BlockQuote{Admonition: AdmonitionPlain}
	labelled := false
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if !labelled {
			for _, p := range admonitionPrefixes {
				if strings.HasPrefix(l, p.prefix) {
					labelled = true
					q.Admonition = p.kind
					l = strings.TrimSpace(strings.TrimPrefix(l, p.prefix))
					break
				}
			}
			if l == "" {
				continue
			}
		}
		q.Lines = append(q.Lines, ParseInline(l))
	}
	s.emit(q)
}

func (s *scanner) image() {
	m := imageLineRe.FindStringSubmatch(s.lines[s.pos])
	img := &Image{Alt: m[1], Path: m[2], Title: m[3]}
	s.pos++
	if s.pos+1 < len(s.lines) && isBlank(s.lines[s.pos]) {
		next := strings.TrimSpace(s.lines[s.pos+1])
		if next != "" && s.cfg.ImageCaption.MatchString(next) && !s.startsBlock(s.pos+1) {
			img.Caption = next
			s.pos += 2
		}
	}
	s.emit(img)
}

type listMatch struct {
	ordered bool
	indent  string
	text    string
}

func (s *scanner) listMarker(line string) *listMatch {
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		if isThematicBreak(line) {
			return nil
		}
		return &listMatch{indent: m[1], text: m[3]}
	}
	if m := orderedRe.FindStringSubmatch(line); m != nil {
		return &listMatch{ordered: true, indent: m[1], text: m[3]}
	}
	return nil
}

func isThematicBreak(line string) bool {
	t := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, line)
	if len(t) < 3 {
		return false
	}
	return strings.Count(t, t[:1]) == len(t) && strings.ContainsAny(t[:1], "-*_")
}

// depth converts leading whitespace to a nesting level. A tab counts as one
// full indent unit; partial units round down.
func (s *scanner) depth(indent string) int {
	cols := 0
	for _, r := range indent {
		if r == '\t' {
			cols += s.cfg.IndentUnit
		} else {
			cols++
		}
	}
	return cols / s.cfg.IndentUnit
}

func (s *scanner) listItem() {
	m := s.listMarker(s.lines[s.pos])
	s.pos++
	parts := []string{strings.TrimSpace(m.text)}
	// Indented lazy continuation lines belong to the item.
	for s.pos < len(s.lines) {
		l := s.lines[s.pos]
		if isBlank(l) || !strings.HasPrefix(l, " ") && !strings.HasPrefix(l, "\t") || s.startsBlock(s.pos) {
			break
		}
		parts = append(parts, strings.TrimSpace(l))
		s.pos++
	}
	s.emit(&ListItem{
		Ordered: m.ordered,
		Depth:   s.depth(m.indent),
		Spans:   ParseInline(strings.Join(parts, " ")),
	})
}

func (s *scanner) paragraph() {
	parts := []string{strings.TrimSpace(s.lines[s.pos])}
	s.pos++
	for s.pos < len(s.lines) && !isBlank(s.lines[s.pos]) && !s.startsBlock(s.pos) {
		parts = append(parts, strings.TrimSpace(s.lines[s.pos]))
		s.pos++
	}
	s.emit(&Paragraph{Spans: ParseInline(strings.Join(parts, " "))})
}

func (s *scanner) isCaptionedTable(i int) bool {
	if i+1 >= len(s.lines) {
		return false
	}
	line := strings.TrimSpace(s.lines[i])
	return s.cfg.TableCaption.MatchString(line) && !strings.Contains(line, "|") && s.isTableStart(i+1)
}

func (s *scanner) isTableStart(i int) bool {
	if i+1 >= len(s.lines) || !strings.Contains(s.lines[i], "|") {
		return false
	}
	header := splitRow(s.lines[i])
	sep, ok := separatorCells(s.lines[i+1])
	return ok && len(header) == sep
}

// separatorCells validates a delimiter row and returns its column count.
func separatorCells(line string) (int, bool) {
	t := strings.TrimSpace(line)
	if t == "" || strings.Trim(t, "-:| \t") != "" || !strings.Contains(t, "-") {
		return 0, false
	}
	if !strings.Contains(t, "|") && isThematicBreak(t) {
		return 0, false
	}
	cells := splitRow(t)
	for _, c := range cells {
		if !sepCellRe.MatchString(strings.ReplaceAll(c, " ", "")) {
			return 0, false
		}
	}
	return len(cells), true
}

func (s *scanner) table(caption string) {
	t := &Table{Caption: caption}
	for _, c := range splitRow(s.lines[s.pos]) {
		t.Header = append(t.Header, ParseInline(c))
	}
	s.pos += 2
	for s.pos < len(s.lines) {
		l := s.lines[s.pos]
		if isBlank(l) || !strings.Contains(l, "|") {
			break
		}
		var row []Cell
		for _, c := range splitRow(l) {
			row = append(row, ParseInline(c))
		}
		t.Rows = append(t.Rows, row)
		s.pos++
	}
	s.emit(t)
}

// splitRow splits a table line on unescaped pipes. Leading and trailing
// pipes are optional and "\|" yields a literal pipe.
func splitRow(line string) []string {
	t := strings.TrimSpace(line)
	t = strings.TrimPrefix(t, "|")
	if strings.HasSuffix(t, "|") && !strings.HasSuffix(t, `\|`) {
		t = t[:len(t)-1]
	}
	var cells []string
	var cur strings.Builder
	for i := 0; i < len(t); i++ {
		switch {
		case t[i] == '\\' && i+1 < len(t) && t[i+1] == '|':
			cur.WriteByte('|')
			i++
		case t[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(t[i])
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}
