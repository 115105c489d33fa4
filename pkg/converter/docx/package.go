// Package docx is an in-memory handle on a WordprocessingML package. XML
// parts are parsed with etree on first use and serialized back on write;
// every other part is copied through byte for byte.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// Well-known part names.
const (
	PartDocument     = "word/document.xml"
	PartStyles       = "word/styles.xml"
	PartSettings     = "word/settings.xml"
	PartContentTypes = "[Content_Types].xml"
	PartDocumentRels = "word/_rels/document.xml.rels"
)

// ErrInvalidPackage indicates the input is not a readable docx package.
var ErrInvalidPackage = errors.New("invalid docx package")

// ErrPartNotFound is returned by Part for a name the package does not contain.
var ErrPartNotFound = errors.New("part not found")

type entry struct {
	name   string
	data   []byte
	method uint16
}

// Document is one mutable copy of a docx package. It is not safe for
// concurrent use; open one Document per conversion.
type Document struct {
	entries []*entry
	byName  map[string]*entry
	parsed  map[string]*etree.Document

	nextDrawingID int
}

// Open reads a package from data. The bytes are copied, so the caller may
// reuse data for further handles.
func Open(data []byte) (*Document, error) {
	buf := append([]byte(nil), data...)
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	d := &Document{
		byName: make(map[string]*entry, len(zr.File)),
		parsed: make(map[string]*etree.Document),
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidPackage, f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidPackage, f.Name, err)
		}
		e := &entry{name: f.Name, data: b, method: f.Method}
		d.entries = append(d.entries, e)
		d.byName[f.Name] = e
	}
	if _, ok := d.byName[PartDocument]; !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidPackage, PartDocument)
	}
	if _, ok := d.byName[PartContentTypes]; !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidPackage, PartContentTypes)
	}
	return d, nil
}

// OpenFile loads the package at path into memory. The file itself is never written.
func OpenFile(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return Open(data)
}

// Has reports whether the package contains name.
func (d *Document) Has(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// Names lists all part names in package order.
func (d *Document) Names() []string {
	out := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e.name)
	}
	return out
}

// TextParts lists the parts that carry user-visible paragraphs: the main
// document, headers, footers, footnotes and endnotes.
func (d *Document) TextParts() []string {
	out := []string{PartDocument}
	var extra []string
	for _, e := range d.entries {
		dir, base := path.Split(e.name)
		if dir != "word/" || path.Ext(base) != ".xml" {
			continue
		}
		switch {
		case strings.HasPrefix(base, "header"), strings.HasPrefix(base, "footer"),
			base == "footnotes.xml", base == "endnotes.xml":
			extra = append(extra, e.name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Part returns the parsed XML of name. Later calls return the same tree,
// and any change to it is written out by WriteTo.
func (d *Document) Part(name string) (*etree.Document, error) {
	if x, ok := d.parsed[name]; ok {
		return x, nil
	}
	e, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}
	x := etree.NewDocument()
	if err := x.ReadFromBytes(e.data); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidPackage, name, err)
	}
	d.parsed[name] = x
	return x, nil
}

// Raw returns the stored bytes of name. Parsed parts are serialized first.
func (d *Document) Raw(name string) ([]byte, bool) {
	e, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	if x, parsed := d.parsed[name]; parsed {
		b, err := x.WriteToBytes()
		if err != nil {
			return nil, false
		}
		return b, true
	}
	return e.data, true
}

// SetRaw adds or replaces a part with opaque bytes.
func (d *Document) SetRaw(name string, data []byte) {
	delete(d.parsed, name)
	if e, ok := d.byName[name]; ok {
		e.data = data
		return
	}
	e := &entry{name: name, data: data, method: zip.Deflate}
	d.entries = append(d.entries, e)
	d.byName[name] = e
}

// SetPart adds or replaces an XML part.
func (d *Document) SetPart(name string, x *etree.Document) {
	if _, ok := d.byName[name]; !ok {
		e := &entry{name: name, method: zip.Deflate}
		d.entries = append(d.entries, e)
		d.byName[name] = e
	}
	d.parsed[name] = x
}

// Body returns the w:body element of the main document.
func (d *Document) Body() (*etree.Element, error) {
	x, err := d.Part(PartDocument)
	if err != nil {
		return nil, err
	}
	root := x.Root()
	var body *etree.Element
	if root != nil {
		body = root.SelectElement("w:body")
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %s has no w:body", ErrInvalidPackage, PartDocument)
	}
	return body, nil
}

// WriteTo serializes the package as a zip archive.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, e := range d.entries {
		data := e.data
		if x, ok := d.parsed[e.name]; ok {
			b, err := x.WriteToBytes()
			if err != nil {
				return cw.n, fmt.Errorf("serialize %s: %w", e.name, err)
			}
			data = b
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		if err != nil {
			return cw.n, err
		}
		if _, err := fw.Write(data); err != nil {
			return cw.n, err
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Bytes returns the serialized package.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the package to filePath, replacing any existing file.
func (d *Document) Save(filePath string) error {
	b, err := d.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, b, 0o644)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
