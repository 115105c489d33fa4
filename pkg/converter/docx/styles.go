package docx

import (
	"strings"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/style"
)

// StyleInfo is one w:style entry of styles.xml.
type StyleInfo struct {
	ID   string
	Name string
	Type style.Type
}

// Catalog indexes the styles a template defines.
type Catalog struct {
	styles []StyleInfo
	byName map[string]int
	byLow  map[string]int
	byID   map[string]int
}

// Styles reads styles.xml. A package without one yields an empty catalog.
func (d *Document) Styles() (*Catalog, error) {
	c := &Catalog{byName: map[string]int{}, byLow: map[string]int{}, byID: map[string]int{}}
	if !d.Has(PartStyles) {
		return c, nil
	}
	x, err := d.Part(PartStyles)
	if err != nil {
		return nil, err
	}
	root := x.Root()
	if root == nil {
		return c, nil
	}
	for _, s := range root.SelectElements("w:style") {
		info := StyleInfo{
			ID:   s.SelectAttrValue("w:styleId", ""),
			Type: style.Type(s.SelectAttrValue("w:type", string(style.TypeParagraph))),
		}
		if n := s.SelectElement("w:name"); n != nil {
			info.Name = n.SelectAttrValue("w:val", "")
		}
		if info.ID == "" {
			continue
		}
		idx := len(c.styles)
		c.styles = append(c.styles, info)
		c.index(c.byName, string(info.Type)+"\x00"+info.Name, idx)
		c.index(c.byLow, string(info.Type)+"\x00"+strings.ToLower(info.Name), idx)
		c.index(c.byID, string(info.Type)+"\x00"+info.ID, idx)
	}
	return c, nil
}

func (c *Catalog) index(m map[string]int, key string, idx int) {
	if _, dup := m[key]; !dup {
		m[key] = idx
	}
}

// StyleID looks name up by display name, then case-insensitively, then as a
// style ID. Word stores built-in names in English ("heading 1") whatever the
// UI language, so callers pass every alias they accept.
func (c *Catalog) StyleID(name string, typ style.Type) (string, bool) {
	for _, probe := range []struct {
		m   map[string]int
		key string
	}{
		{c.byName, name},
		{c.byLow, strings.ToLower(name)},
		{c.byID, name},
	} {
		if i, ok := probe.m[string(typ)+"\x00"+probe.key]; ok {
			return c.styles[i].ID, true
		}
	}
	return "", false
}

// NameOf returns the display name for a style ID, or the ID itself when unknown.
func (c *Catalog) NameOf(id string) string {
	for _, s := range c.styles {
		if s.ID == id {
			return s.Name
		}
	}
	return id
}

// All returns every style in declaration order.
func (c *Catalog) All() []StyleInfo {
	return append([]StyleInfo(nil), c.styles...)
}
