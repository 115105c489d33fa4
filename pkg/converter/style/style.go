// Package style holds the fixed vocabulary of template style names and the
// mapping from parsed Markdown blocks to that vocabulary. Style name literals
// live only here, so re-skinning a template touches nothing else.
package style

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrTemplateContract indicates the template lacks a style or anchor the
// conversion depends on. It is always fatal.
var ErrTemplateContract = errors.New("template contract violation")

// Role is a logical style slot independent of any template's naming.
type Role string

// Roles used by the assembler.
const (
	RoleHeading1      Role = "heading1"
	RoleHeading2      Role = "heading2"
	RoleHeading3      Role = "heading3"
	RoleHeading4      Role = "heading4"
	RoleParagraph     Role = "paragraph"
	RoleListOrdered   Role = "list_ordered"
	RoleListUnordered Role = "list_unordered"
	RoleQuote         Role = "quote"
	RoleTip           Role = "tip"
	RoleNote          Role = "note"
	RoleWarning       Role = "warning"
	RoleCode          Role = "code"
	RoleCodeLanguage  Role = "code_language"
	RoleInlineCode    Role = "inline_code"
	RoleTable         Role = "table"
	RoleTableHeader   Role = "table_header"
	RoleTableBody     Role = "table_body"
	RoleCaption       Role = "caption"
	RoleTableCaption  Role = "table_caption"
	RoleFigure        Role = "figure"
	RoleFigureCaption Role = "figure_caption"
)

// Type is the OOXML style type a role must resolve to.
type Type string

// Style types as written in styles.xml.
const (
	TypeParagraph Type = "paragraph"
	TypeCharacter Type = "character"
	TypeTable     Type = "table"
)

// Definition describes how one role is looked up in a template. Names are
// tried in order, canonical name first. An optional role that matches none
// of its names borrows the style of Fallback, or is left unstyled when
// Fallback is empty.
type Definition struct {
	Role     Role
	Type     Type
	Names    []string
	Required bool
	Fallback Role
}

// Canonical returns the first name, which is what template authors are told to define.
func (d Definition) Canonical() string { return d.Names[0] }

var definitions = []Definition{
	{Role: RoleHeading1, Type: TypeParagraph, Required: true, Names: []string{"标题 1", "heading 1", "Heading 1"}},
	{Role: RoleHeading2, Type: TypeParagraph, Required: true, Names: []string{"标题 2", "heading 2", "Heading 2"}},
	{Role: RoleHeading3, Type: TypeParagraph, Required: true, Names: []string{"标题 3", "heading 3", "Heading 3"}},
	{Role: RoleHeading4, Type: TypeParagraph, Required: true, Names: []string{"标题 4", "heading 4", "Heading 4"}},
	{Role: RoleParagraph, Type: TypeParagraph, Required: true, Names: []string{"正文", "Normal"}},
	{Role: RoleListOrdered, Type: TypeParagraph, Required: true, Names: []string{"列表-有序", "List Number", "List Paragraph"}},
	{Role: RoleListUnordered, Type: TypeParagraph, Required: true, Names: []string{"列表-无序", "List Bullet", "List Paragraph"}},
	{Role: RoleQuote, Type: TypeParagraph, Required: true, Names: []string{"引用块", "Quote", "Intense Quote"}},
	{Role: RoleTip, Type: TypeParagraph, Names: []string{"提示块"}, Fallback: RoleQuote},
	{Role: RoleNote, Type: TypeParagraph, Names: []string{"注意块"}, Fallback: RoleQuote},
	{Role: RoleWarning, Type: TypeParagraph, Names: []string{"警告块", "Intense Quote"}, Fallback: RoleQuote},
	{Role: RoleCode, Type: TypeParagraph, Required: true, Names: []string{"代码块", "Code", "HTML Preformatted"}},
	{Role: RoleCodeLanguage, Type: TypeParagraph, Names: []string{"代码语言标记"}, Fallback: RoleCode},
	{Role: RoleInlineCode, Type: TypeCharacter, Required: true, Names: []string{"行内代码", "Inline Code", "HTML Code"}},
	{Role: RoleTable, Type: TypeTable, Names: []string{"CyanScript Table", "Table Grid", "Normal Table"}},
	{Role: RoleTableHeader, Type: TypeParagraph, Required: true, Names: []string{"表格-表头", "表格表头"}},
	{Role: RoleTableBody, Type: TypeParagraph, Required: true, Names: []string{"表格-正文", "表格正文"}},
	{Role: RoleCaption, Type: TypeParagraph, Required: true, Names: []string{"题注", "Caption", "图注"}},
	{Role: RoleTableCaption, Type: TypeParagraph, Names: []string{"表注"}, Fallback: RoleCaption},
	{Role: RoleFigure, Type: TypeParagraph, Names: []string{"图片"}, Fallback: RoleParagraph},
	{Role: RoleFigureCaption, Type: TypeParagraph, Names: []string{"图注"}, Fallback: RoleCaption},
}

var byRole = func() map[Role]Definition {
	m := make(map[Role]Definition, len(definitions))
	for _, d := range definitions {
		m[d.Role] = d
	}
	return m
}()

// Definitions returns a copy of the style table in declaration order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition for role.
func Lookup(role Role) (Definition, bool) {
	d, ok := byRole[role]
	return d, ok
}

// Name returns the canonical style name of role, or "" for an unknown role.
func Name(role Role) string {
	if d, ok := byRole[role]; ok {
		return d.Canonical()
	}
	return ""
}

// BodyNames lists every name the body paragraph style may carry. Such
// paragraphs should not appear in headers, footers, tables or text boxes.
func BodyNames() []string {
	return append([]string(nil), byRole[RoleParagraph].Names...)
}

// Catalog answers style lookups against a concrete template.
type Catalog interface {
	// StyleID returns the styleId of the style called name with the given type.
	StyleID(name string, typ Type) (string, bool)
}

// Resolved maps roles to concrete style IDs of one template.
type Resolved map[Role]string

// ID returns the style ID for role. Optional roles without a match and no
// fallback return "".
func (r Resolved) ID(role Role) string { return r[role] }

// Resolve checks every role against catalog up front. Missing required
// styles are reported together in one ErrTemplateContract error.
func Resolve(catalog Catalog) (Resolved, error) {
	out := make(Resolved, len(definitions))
	var missing []string
	for _, d := range definitions {
		if id, ok := findID(catalog, d); ok {
			out[d.Role] = id
			continue
		}
		if d.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", d.Canonical(), d.Role))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: template is missing required styles: %s", ErrTemplateContract, strings.Join(missing, ", "))
	}
	// Fallback chains are at most two deep and end in a required role.
	for _, d := range definitions {
		if out[d.Role] != "" || d.Fallback == "" {
			continue
		}
		fb := d.Fallback
		for out[fb] == "" && byRole[fb].Fallback != "" {
			fb = byRole[fb].Fallback
		}
		out[d.Role] = out[fb]
	}
	return out, nil
}

func findID(catalog Catalog, d Definition) (string, bool) {
	for _, name := range d.Names {
		if id, ok := catalog.StyleID(name, d.Type); ok {
			return id, true
		}
	}
	return "", false
}
