package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/style"
)

// StyleDef is one style written into a test template's styles.xml.
type StyleDef struct {
	ID   string
	Name string
	Type style.Type
}

// TemplateSpec describes a docx package built in memory for tests.
type TemplateSpec struct {
	Styles []StyleDef
	// Body is the inner XML of w:body.
	Body string
	// Headers and Footers map a part base name such as "header1.xml" to the
	// inner XML of its w:hdr or w:ftr root.
	Headers map[string]string
	Footers map[string]string
	// NoSettings omits word/settings.xml.
	NoSettings bool
	// Extra holds additional raw parts by full name.
	Extra map[string]string
}

// RequiredStyles returns one style per required role, named canonically.
func RequiredStyles() []StyleDef {
	var out []StyleDef
	for i, d := range style.Definitions() {
		if d.Required {
			out = append(out, StyleDef{ID: fmt.Sprintf("S%d", i), Name: d.Canonical(), Type: d.Type})
		}
	}
	return out
}

// AllStyles returns one style per role, including the optional ones.
func AllStyles() []StyleDef {
	var out []StyleDef
	for i, d := range style.Definitions() {
		out = append(out, StyleDef{ID: fmt.Sprintf("S%d", i), Name: d.Canonical(), Type: d.Type})
	}
	return out
}

// StyleIDFor returns the ID RequiredStyles and AllStyles give to role.
func StyleIDFor(role style.Role) string {
	for i, d := range style.Definitions() {
		if d.Role == role {
			return fmt.Sprintf("S%d", i)
		}
	}
	return ""
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"`

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// BuildDocx assembles a docx package from spec.
func BuildDocx(t *testing.T, spec TemplateSpec) []byte {
	t.Helper()
	parts := map[string]string{}
	var overrides, rels []string
	relN := 0
	addRel := func(typ, target string) {
		relN++
		rels = append(rels, fmt.Sprintf(`<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/%s" Target="%s"/>`, relN, typ, target))
	}

	parts["word/document.xml"] = xmlHeader + `<w:document ` + wordNS + `><w:body>` + spec.Body +
		`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`
	overrides = append(overrides, `<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`)

	var styles strings.Builder
	for _, s := range spec.Styles {
		fmt.Fprintf(&styles, `<w:style w:type="%s" w:styleId="%s"><w:name w:val="%s"/></w:style>`,
			s.Type, html.EscapeString(s.ID), html.EscapeString(s.Name))
	}
	parts["word/styles.xml"] = xmlHeader + `<w:styles ` + wordNS + `>` + styles.String() + `</w:styles>`
	overrides = append(overrides, `<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>`)
	addRel("styles", "styles.xml")

	if !spec.NoSettings {
		parts["word/settings.xml"] = xmlHeader + `<w:settings ` + wordNS + `><w:zoom w:percent="100"/><w:compat/></w:settings>`
		overrides = append(overrides, `<Override PartName="/word/settings.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"/>`)
		addRel("settings", "settings.xml")
	}
	for _, kind := range []struct {
		parts map[string]string
		root  string
		rel   string
	}{{spec.Headers, "hdr", "header"}, {spec.Footers, "ftr", "footer"}} {
		for _, name := range sortedKeys(kind.parts) {
			parts["word/"+name] = xmlHeader + `<w:` + kind.root + ` ` + wordNS + `>` + kind.parts[name] + `</w:` + kind.root + `>`
			overrides = append(overrides, fmt.Sprintf(`<Override PartName="/word/%s" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.%s+xml"/>`, name, kind.rel))
			addRel(kind.rel, name)
		}
	}
	parts["word/_rels/document.xml.rels"] = xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		strings.Join(rels, "") + `</Relationships>`
	parts["_rels/.rels"] = xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
	for name, content := range spec.Extra {
		parts[name] = content
	}
	contentTypes := xmlHeader + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		strings.Join(overrides, "") + `</Types>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	write("[Content_Types].xml", contentTypes)
	for _, name := range sortedKeys(parts) {
		write(name, parts[name])
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Para returns a w:p whose text is split into one run per argument.
func Para(texts ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for i, s := range texts {
		// Alternate bold so adjacent runs differ as they would after editing.
		rPr := ""
		if i%2 == 1 {
			rPr = "<w:rPr><w:b/></w:rPr>"
		}
		fmt.Fprintf(&b, `<w:r>%s<w:t xml:space="preserve">%s</w:t></w:r>`, rPr, html.EscapeString(s))
	}
	b.WriteString("</w:p>")
	return b.String()
}

// AnchorTemplate returns a spec with every style defined, a cover paragraph
// using placeholders, and the main content anchor split across runs.
func AnchorTemplate() TemplateSpec {
	return TemplateSpec{
		Styles: AllStyles(),
		Body: Para("{{software_name}} 软件说明书") +
			Para("版本 {{ver", "sion}}") +
			Para("{{main_", "content}}") +
			Para("附录"),
		Headers: map[string]string{"header1.xml": Para("{{software", "_name}}")},
		Footers: map[string]string{"footer1.xml": Para("第 ", "{{version}}", " 版")},
	}
}

// PNG returns an encoded solid PNG of the given size.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 0x20, G: 0x9f, B: 0xd0, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
