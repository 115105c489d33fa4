package style

import "github.com/CharlieHasAHeart/CyanScript/pkg/converter/markdown"

// Shape tells the assembler what document structure a block becomes.
type Shape int

// Emission shapes.
const (
	ShapeParagraph        Shape = iota // one paragraph
	ShapeParagraphPerLine              // one paragraph for every source line
	ShapeTable                         // caption paragraph, then a table
	ShapeImage                         // picture paragraph, then a caption paragraph
)

// Binding is the result of mapping one block.
type Binding struct {
	Role  Role
	Name  string
	Shape Shape
	// Label is the canonical admonition label, such as "提示：". Empty otherwise.
	Label string
}

var headingRoles = [...]Role{RoleHeading1, RoleHeading2, RoleHeading3, RoleHeading4}

var admonitions = map[markdown.Admonition]struct {
	role  Role
	label string
}{
	markdown.AdmonitionTip:     {RoleTip, "提示："},
	markdown.AdmonitionNote:    {RoleNote, "注意："},
	markdown.AdmonitionWarning: {RoleWarning, "警告："},
}

// Map returns the binding for b. Unknown block types map to the paragraph role.
func Map(b markdown.Block) Binding {
	switch n := b.(type) {
	case *markdown.Heading:
		lvl := n.Level
		if lvl < 1 {
			lvl = 1
		}
		if lvl > len(headingRoles) {
			lvl = len(headingRoles)
		}
		return bind(headingRoles[lvl-1], ShapeParagraph)
	case *markdown.ListItem:
		if n.Ordered {
			return bind(RoleListOrdered, ShapeParagraph)
		}
		return bind(RoleListUnordered, ShapeParagraph)
	case *markdown.BlockQuote:
		if a, ok := admonitions[n.Admonition]; ok {
			bd := bind(a.role, ShapeParagraph)
			bd.Label = a.label
			return bd
		}
		return bind(RoleQuote, ShapeParagraph)
	case *markdown.CodeBlock:
		return bind(RoleCode, ShapeParagraphPerLine)
	case *markdown.Table:
		return bind(RoleTable, ShapeTable)
	case *markdown.Image:
		return bind(RoleFigure, ShapeImage)
	}
	return bind(RoleParagraph, ShapeParagraph)
}

func bind(role Role, shape Shape) Binding {
	return Binding{Role: role, Name: Name(role), Shape: shape}
}

// SpanBinding describes how an inline span is rendered inside a run.
// Emphasis and strong are run properties, never paragraph styles.
type SpanBinding struct {
	Role   Role // RoleInlineCode for code spans, empty otherwise
	Bold   bool
	Italic bool
}

// MapSpan returns the run formatting for kind.
func MapSpan(kind markdown.SpanKind) SpanBinding {
	switch kind {
	case markdown.SpanCode:
		return SpanBinding{Role: RoleInlineCode}
	case markdown.SpanEmphasis:
		return SpanBinding{Italic: true}
	case markdown.SpanStrong:
		return SpanBinding{Bold: true}
	case markdown.SpanStrongEmphasis:
		return SpanBinding{Bold: true, Italic: true}
	}
	return SpanBinding{}
}
