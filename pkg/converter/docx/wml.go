package docx

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Namespaces written into parts created from scratch.
const (
	NSWordML        = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSPackageRels   = "http://schemas.openxmlformats.org/package/2006/relationships"
	NSContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
)

// Paragraphs returns every w:p below root in document order, including
// paragraphs nested in tables and text boxes.
func Paragraphs(root *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			if c.Space == "w" && c.Tag == "p" {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

// ignorable run-level siblings that never split a run group.
var ignorable = map[string]bool{
	"proofErr": true, "bookmarkStart": true, "bookmarkEnd": true,
	"commentRangeStart": true, "commentRangeEnd": true,
	"permStart": true, "permEnd": true,
}

// containers hold runs that belong to the paragraph text flow.
var containers = map[string]bool{"hyperlink": true, "ins": true, "smartTag": true, "customXml": true}

// RunGroups splits the runs of p into maximal sequences of contiguous text
// runs. Field characters, drawings, w:fldSimple and container boundaries
// end a sequence. Runs inside inline content controls are grouped through
// their w:sdtContent.
func RunGroups(p *etree.Element) [][]*etree.Element {
	var groups [][]*etree.Element
	var cur []*etree.Element
	flush := func() {
		if len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
		}
	}
	var walk func(*etree.Element)
	walk = func(parent *etree.Element) {
		for _, c := range parent.ChildElements() {
			switch {
			case c.Space != "w":
				flush()
			case c.Tag == "r":
				if IsTextRun(c) {
					cur = append(cur, c)
				} else {
					flush()
				}
			case ignorable[c.Tag], c.Tag == "pPr":
			case containers[c.Tag]:
				flush()
				walk(c)
				flush()
			case c.Tag == "sdt":
				flush()
				if content := c.SelectElement("w:sdtContent"); content != nil {
					walk(content)
				}
				flush()
			default:
				flush()
			}
		}
	}
	walk(p)
	flush()
	return groups
}

// IsTextRun reports whether r holds nothing but formatting and text content.
func IsTextRun(r *etree.Element) bool {
	for _, c := range r.ChildElements() {
		if c.Space != "w" {
			return false
		}
		switch c.Tag {
		case "rPr", "t", "tab", "cr", "lastRenderedPageBreak", "noBreakHyphen", "softHyphen":
		case "br":
			if t := c.SelectAttrValue("w:type", ""); t != "" && t != "textWrapping" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// RunText returns the visible text of a run. Tabs become '\t' and line
// breaks '\n'.
func RunText(r *etree.Element) string {
	var b strings.Builder
	for _, c := range r.ChildElements() {
		switch c.Tag {
		case "t":
			b.WriteString(c.Text())
		case "tab":
			b.WriteByte('\t')
		case "br", "cr":
			b.WriteByte('\n')
		case "noBreakHyphen":
			b.WriteRune('\u2011')
		}
	}
	return b.String()
}

// SetRunText replaces the text content of r, keeping its w:rPr.
func SetRunText(r *etree.Element, s string) {
	for _, c := range r.ChildElements() {
		if c.Tag != "rPr" {
			r.RemoveChild(c)
		}
	}
	appendText(r, s)
}

// ParagraphText concatenates the text of every run in p.
func ParagraphText(p *etree.Element) string {
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			switch {
			case c.Tag == "r":
				b.WriteString(RunText(c))
			case c.Tag == "p" && c != p:
				// nested text box paragraphs are reported separately
			default:
				walk(c)
			}
		}
	}
	walk(p)
	return b.String()
}

func appendText(r *etree.Element, s string) {
	var seg strings.Builder
	flushText := func() {
		if seg.Len() == 0 {
			return
		}
		t := r.CreateElement("w:t")
		t.CreateAttr("xml:space", "preserve")
		t.SetText(seg.String())
		seg.Reset()
	}
	for _, ch := range s {
		switch ch {
		case '\t':
			flushText()
			r.CreateElement("w:tab")
		case '\n':
			flushText()
			r.CreateElement("w:br")
		default:
			seg.WriteRune(ch)
		}
	}
	flushText()
}

// NewParagraph returns a w:p with the given paragraph style. An empty
// styleID leaves the template default in effect.
func NewParagraph(styleID string) *etree.Element {
	p := etree.NewElement("w:p")
	if styleID != "" {
		PPr(p).CreateElement("w:pStyle").CreateAttr("w:val", styleID)
	}
	return p
}

// PPr returns the w:pPr of p, creating it as the first child when absent.
func PPr(p *etree.Element) *etree.Element {
	if pPr := p.SelectElement("w:pPr"); pPr != nil {
		return pPr
	}
	pPr := etree.NewElement("w:pPr")
	p.InsertChildAt(0, pPr)
	return pPr
}

// RunProps describes the formatting of a new run.
type RunProps struct {
	StyleID string
	Bold    bool
	Italic  bool
}

// AddRun appends a run carrying text to p.
func AddRun(p *etree.Element, text string, props RunProps) *etree.Element {
	r := p.CreateElement("w:r")
	if props.StyleID != "" || props.Bold || props.Italic {
		rPr := r.CreateElement("w:rPr")
		if props.StyleID != "" {
			rPr.CreateElement("w:rStyle").CreateAttr("w:val", props.StyleID)
		}
		if props.Bold {
			rPr.CreateElement("w:b")
			rPr.CreateElement("w:bCs")
		}
		if props.Italic {
			rPr.CreateElement("w:i")
			rPr.CreateElement("w:iCs")
		}
	}
	appendText(r, text)
	return r
}

// SetJustification sets w:jc on p. Values follow ST_Jc, e.g. "center".
func SetJustification(p *etree.Element, val string) {
	pPr := PPr(p)
	if jc := pPr.SelectElement("w:jc"); jc != nil {
		jc.CreateAttr("w:val", val)
		return
	}
	pPr.CreateElement("w:jc").CreateAttr("w:val", val)
}

// SetIndentLeft sets the left indentation of p in twentieths of a point.
func SetIndentLeft(p *etree.Element, twips int) {
	pPr := PPr(p)
	ind := pPr.SelectElement("w:ind")
	if ind == nil {
		ind = pPr.CreateElement("w:ind")
	}
	ind.CreateAttr("w:left", strconv.Itoa(twips))
}

// pPr children that precede w:numPr in schema order.
var beforeNumPr = map[string]bool{
	"pStyle": true, "keepNext": true, "keepLines": true,
	"pageBreakBefore": true, "framePr": true, "widowControl": true,
}

// SetListLevel sets w:numPr/w:ilvl on p. The numbering definition itself
// comes from the paragraph style.
func SetListLevel(p *etree.Element, level int) {
	pPr := PPr(p)
	numPr := pPr.SelectElement("w:numPr")
	if numPr == nil {
		at := 0
		for i, c := range pPr.Child {
			if e, ok := c.(*etree.Element); ok && beforeNumPr[e.Tag] {
				at = i + 1
			}
		}
		numPr = etree.NewElement("w:numPr")
		pPr.InsertChildAt(at, numPr)
	}
	ilvl := numPr.SelectElement("w:ilvl")
	if ilvl == nil {
		ilvl = etree.NewElement("w:ilvl")
		numPr.InsertChildAt(0, ilvl)
	}
	ilvl.CreateAttr("w:val", strconv.Itoa(level))
}

// SetKeepNext marks p to stay on the same page as the following paragraph.
func SetKeepNext(p *etree.Element) {
	pPr := PPr(p)
	if pPr.SelectElement("w:keepNext") == nil {
		pPr.CreateElement("w:keepNext")
	}
}

// StyleOf returns the w:pStyle value of p, or "".
func StyleOf(p *etree.Element) string {
	pPr := p.SelectElement("w:pPr")
	if pPr == nil {
		return ""
	}
	if ps := pPr.SelectElement("w:pStyle"); ps != nil {
		return ps.SelectAttrValue("w:val", "")
	}
	return ""
}

// Ancestor returns the nearest ancestor of e in the w namespace with the given tag.
func Ancestor(e *etree.Element, tag string) *etree.Element {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if p.Space == "w" && p.Tag == tag {
			return p
		}
	}
	return nil
}
