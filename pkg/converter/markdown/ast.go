package markdown

import "strings"

// Kind identifies the variant of a Block.
type Kind int

// Block kinds produced by Parse.
const (
	KindParagraph Kind = iota
	KindHeading
	KindListItem
	KindBlockQuote
	KindCodeBlock
	KindTable
	KindImage
)

var kindNames = [...]string{
	KindParagraph:  "paragraph",
	KindHeading:    "heading",
	KindListItem:   "list_item",
	KindBlockQuote: "blockquote",
	KindCodeBlock:  "code_block",
	KindTable:      "table",
	KindImage:      "image",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Block is one structural unit of a parsed document. The set of
// implementations is closed; callers switch on the concrete type.
type Block interface {
	Kind() Kind
	block()
}

// SpanKind identifies the inline formatting of a Span.
type SpanKind int

// Inline span kinds.
const (
	SpanText SpanKind = iota
	SpanCode
	SpanEmphasis
	SpanStrong
	SpanStrongEmphasis
)

// Span is a run of inline text sharing one formatting.
type Span struct {
	Kind SpanKind
	Text string
}

// Cell is the inline content of one table cell.
type Cell []Span

// MaxHeadingLevel is the deepest heading level kept; deeper headings are clamped to it.
const MaxHeadingLevel = 4

// Heading is an ATX heading. Level is always within 1..MaxHeadingLevel.
type Heading struct {
	Level int
	Spans []Span
}

// Paragraph is a run of ordinary text lines joined by single spaces.
type Paragraph struct {
	Spans []Span
}

// ListItem is one ordered or unordered list entry. Depth is 0 for top-level items.
type ListItem struct {
	Ordered bool
	Depth   int
	Spans   []Span
}

// Admonition classifies a block quote.
type Admonition string

// Admonition kinds. The zero value is not used; plain quotes are AdmonitionPlain.
const (
	AdmonitionPlain   Admonition = "plain"
	AdmonitionTip     Admonition = "tip"
	AdmonitionNote    Admonition = "note"
	AdmonitionWarning Admonition = "warning"
)

// BlockQuote groups a contiguous run of '>' lines. For tip, note and warning
// quotes the recognised label prefix has already been removed from Lines.
type BlockQuote struct {
	Admonition Admonition
	Lines      [][]Span
}

// CodeBlock is a fenced code block. Lines hold the interior verbatim.
type CodeBlock struct {
	Language string
	Lines    []string
}

// Table is a pipe table. Caption is empty unless a caption line sat directly above it.
type Table struct {
	Caption string
	Header  []Cell
	Rows    [][]Cell
}

// Columns returns the width of the widest row, header included.
func (t *Table) Columns() int {
	n := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// Image is an image that stood alone on its line.
type Image struct {
	Alt     string
	Path    string
	Title   string
	Caption string
}

func (*Heading) Kind() Kind    { return KindHeading }
func (*Paragraph) Kind() Kind  { return KindParagraph }
func (*ListItem) Kind() Kind   { return KindListItem }
func (*BlockQuote) Kind() Kind { return KindBlockQuote }
func (*CodeBlock) Kind() Kind  { return KindCodeBlock }
func (*Table) Kind() Kind      { return KindTable }
func (*Image) Kind() Kind      { return KindImage }

func (*Heading) block()    {}
func (*Paragraph) block()  {}
func (*ListItem) block()   {}
func (*BlockQuote) block() {}
func (*CodeBlock) block()  {}
func (*Table) block()      {}
func (*Image) block()      {}

// PlainText concatenates the text of spans, dropping formatting.
func PlainText(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}
