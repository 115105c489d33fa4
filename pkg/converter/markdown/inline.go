package markdown

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// inlineParser only knows paragraphs, so text that happens to look like a
// list marker or a heading after block recognition stays literal.
var inlineParser = parser.NewParser(
	parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 100)),
	parser.WithInlineParsers(parser.DefaultInlineParsers()...),
)

// ParseInline splits one logical line of Markdown into formatted spans.
// Links keep their label, images keep their alt text and raw HTML is kept
// as literal text.
func ParseInline(s string) []Span {
	if s == "" {
		return nil
	}
	source := []byte(s)
	doc := inlineParser.Parse(text.NewReader(source))
	w := &spanWriter{source: source}
	first := true
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if !first {
			w.emit(SpanText, " ")
		}
		first = false
		w.walk(n, 0)
	}
	return w.spans
}

type spanWriter struct {
	source []byte
	spans  []Span
}

const (
	fmtEmphasis = 1 << iota
	fmtStrong
)

func kindFor(style int) SpanKind {
	switch style {
	case fmtEmphasis:
		return SpanEmphasis
	case fmtStrong:
		return SpanStrong
	case fmtEmphasis | fmtStrong:
		return SpanStrongEmphasis
	}
	return SpanText
}

func (w *spanWriter) emit(kind SpanKind, s string) {
	if s == "" {
		return
	}
	if n := len(w.spans); n > 0 && w.spans[n-1].Kind == kind {
		w.spans[n-1].Text += s
		return
	}
	w.spans = append(w.spans, Span{Kind: kind, Text: s})
}

func (w *spanWriter) walk(n ast.Node, style int) {
	switch node := n.(type) {
	case *ast.Text:
		value := node.Segment.Value(w.source)
		w.emit(kindFor(style), unescape(value))
		if node.SoftLineBreak() || node.HardLineBreak() {
			w.emit(kindFor(style), " ")
		}
		return
	case *ast.String:
		w.emit(kindFor(style), string(node.Value))
		return
	case *ast.CodeSpan:
		w.emit(SpanCode, w.rawText(node))
		return
	case *ast.RawHTML:
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			w.emit(kindFor(style), string(seg.Value(w.source)))
		}
		return
	case *ast.AutoLink:
		w.emit(kindFor(style), string(node.Label(w.source)))
		return
	case *ast.Emphasis:
		if node.Level >= 2 {
			style |= fmtStrong
		} else {
			style |= fmtEmphasis
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.walk(c, style)
	}
}

// rawText collects the verbatim text below n without unescaping.
func (w *spanWriter) rawText(n ast.Node) string {
	var out []byte
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			out = append(out, t.Segment.Value(w.source)...)
		case *ast.String:
			out = append(out, t.Value...)
		default:
			out = append(out, w.rawText(c)...)
		}
	}
	return string(out)
}

func unescape(b []byte) string {
	b = util.UnescapePunctuations(b)
	b = util.ResolveNumericReferences(b)
	b = util.ResolveEntityNames(b)
	return string(b)
}
