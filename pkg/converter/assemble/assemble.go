// Package assemble writes parsed Markdown blocks into a template document at
// its main content anchor.
package assemble

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/beevik/etree"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/docx"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/language"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/markdown"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/placeholder"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/style"
)

// Defaults for Options fields left at their zero value.
const (
	DefaultAnchor          = "main_content"
	DefaultMaxImageWidthCM = 15.0
	DefaultListIndentTwips = 420
	tableWidthTwips        = 9000
)

// Warning codes.
const (
	WarnMissingResource = "missing_resource"
	WarnSkippedBlock    = "skipped_block"
)

// Warning is a recoverable problem met while assembling.
type Warning struct {
	Code     string `json:"code" yaml:"code" toml:"code"`
	Message  string `json:"message" yaml:"message" toml:"message"`
	Location string `json:"location,omitempty" yaml:"location,omitempty" toml:"location,omitempty"`
}

// ImageSource opens the bytes behind a Markdown image path.
type ImageSource interface {
	Open(imagePath string) (io.ReadCloser, error)
}

// Options tunes the assembler.
type Options struct {
	Anchor            string
	MaxImageWidthCM   float64
	ListIndentTwips   int
	InlineCodeSpacing bool
	CodeLanguageLabel bool
	AutoFigureCaption bool
	Images            ImageSource
	Detector          language.LanguageDetector
	Logger            *slog.Logger
}

// Assembler owns one document for the duration of a single conversion.
type Assembler struct {
	doc     *docx.Document
	styles  style.Resolved
	opts    Options
	logger  *slog.Logger
	figures int
	warns   []Warning
}

// New returns an assembler writing into doc with the resolved styles.
func New(doc *docx.Document, styles style.Resolved, opts Options) *Assembler {
	if opts.Anchor == "" {
		opts.Anchor = DefaultAnchor
	}
	if opts.MaxImageWidthCM <= 0 {
		opts.MaxImageWidthCM = DefaultMaxImageWidthCM
	}
	if opts.ListIndentTwips <= 0 {
		opts.ListIndentTwips = DefaultListIndentTwips
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Assembler{
		doc:    doc,
		styles: styles,
		opts:   opts,
		logger: logger.With(slog.String("component", "assembler")),
	}
}

// FindAnchor returns the body paragraph whose text contains the anchor
// token, even when editing has split the token across runs.
func FindAnchor(doc *docx.Document, anchor string) (*etree.Element, error) {
	body, err := doc.Body()
	if err != nil {
		return nil, err
	}
	token := placeholder.Token(anchor)
	for _, p := range docx.Paragraphs(body) {
		if strings.Contains(docx.ParagraphText(p), token) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: main content anchor %s not found in %s", style.ErrTemplateContract, token, docx.PartDocument)
}

// Assemble replaces the anchor paragraph with the content of blocks, in
// order. A block that fails to render is skipped with a warning; a missing
// anchor or a cancelled context is fatal.
func (a *Assembler) Assemble(ctx context.Context, blocks []markdown.Block) ([]Warning, error) {
	anchor, err := FindAnchor(a.doc, a.opts.Anchor)
	if err != nil {
		return nil, err
	}
	parent := anchor.Parent()
	at := anchor.Index()
	parent.RemoveChildAt(at)

	for i, b := range blocks {
		if err := ctx.Err(); err != nil {
			return a.warns, err
		}
		els, err := a.render(b)
		if err != nil {
			a.warn(WarnSkippedBlock, err.Error(), blockLocation(i, b))
			continue
		}
		for _, el := range els {
			parent.InsertChildAt(at, el)
			at++
		}
	}
	if parent.Space == "w" && parent.Tag == "tc" {
		closeCell(parent)
	}
	a.logger.Debug("Assembled content", slog.Int("blocks", len(blocks)), slog.Int("warnings", len(a.warns)))
	return a.warns, nil
}

// closeCell appends an empty paragraph when a table cell no longer ends in
// one. Word rejects cells without a trailing w:p.
func closeCell(tc *etree.Element) {
	children := tc.ChildElements()
	if n := len(children); n > 0 && children[n-1].Space == "w" && children[n-1].Tag == "p" {
		return
	}
	tc.AddChild(docx.NewParagraph(""))
}

func (a *Assembler) warn(code, msg, loc string) {
	a.logger.Warn("Recoverable conversion problem", slog.String("code", code), slog.String("message", msg), slog.String("location", loc))
	a.warns = append(a.warns, Warning{Code: code, Message: msg, Location: loc})
}

func (a *Assembler) render(b markdown.Block) ([]*etree.Element, error) {
	bind := style.Map(b)
	id := a.styles.ID(bind.Role)
	switch n := b.(type) {
	case *markdown.Heading:
		// An empty heading would leave a blank entry in the table of contents.
		if strings.TrimSpace(markdown.PlainText(n.Spans)) == "" {
			a.logger.Debug("Skipped empty heading", slog.Int("level", n.Level))
			return nil, nil
		}
		return one(a.paragraph(id, n.Spans)), nil
	case *markdown.Paragraph:
		return one(a.paragraph(id, n.Spans)), nil
	case *markdown.ListItem:
		p := a.paragraph(id, n.Spans)
		if n.Depth > 0 {
			docx.SetListLevel(p, n.Depth)
			docx.SetIndentLeft(p, n.Depth*a.opts.ListIndentTwips)
		}
		return one(p), nil
	case *markdown.BlockQuote:
		return one(a.quote(id, bind.Label, n)), nil
	case *markdown.CodeBlock:
		return a.code(id, n), nil
	case *markdown.Table:
		return a.table(id, n), nil
	case *markdown.Image:
		return a.image(id, n), nil
	}
	return nil, fmt.Errorf("unsupported block type %T", b)
}

func blockLocation(i int, b markdown.Block) string {
	if b == nil {
		return fmt.Sprintf("block %d", i+1)
	}
	return fmt.Sprintf("block %d (%s)", i+1, b.Kind())
}

func one(el *etree.Element) []*etree.Element { return []*etree.Element{el} }

func (a *Assembler) paragraph(styleID string, spans []markdown.Span) *etree.Element {
	p := docx.NewParagraph(styleID)
	a.addSpans(p, spans)
	return p
}

func (a *Assembler) addSpans(p *etree.Element, spans []markdown.Span) {
	if a.opts.InlineCodeSpacing {
		spans = SpaceInlineCode(spans)
	}
	for _, s := range spans {
		sb := style.MapSpan(s.Kind)
		docx.AddRun(p, s.Text, docx.RunProps{
			StyleID: a.styles.ID(sb.Role),
			Bold:    sb.Bold,
			Italic:  sb.Italic,
		})
	}
}

func (a *Assembler) quote(styleID, label string, q *markdown.BlockQuote) *etree.Element {
	p := docx.NewParagraph(styleID)
	if label != "" {
		docx.AddRun(p, label, docx.RunProps{Bold: true})
	}
	for i, line := range q.Lines {
		if i > 0 {
			docx.AddRun(p, "\n", docx.RunProps{})
		}
		a.addSpans(p, line)
	}
	return p
}

func (a *Assembler) code(styleID string, c *markdown.CodeBlock) []*etree.Element {
	var out []*etree.Element
	if a.opts.CodeLanguageLabel {
		if name := a.codeLanguage(c); name != "" {
			label := docx.NewParagraph(a.styles.ID(style.RoleCodeLanguage))
			docx.SetKeepNext(label)
			docx.AddRun(label, "语言："+name, docx.RunProps{})
			out = append(out, label)
		}
	}
	for _, line := range c.Lines {
		p := docx.NewParagraph(styleID)
		if line != "" {
			docx.AddRun(p, line, docx.RunProps{})
		}
		out = append(out, p)
	}
	return out
}

func (a *Assembler) codeLanguage(c *markdown.CodeBlock) string {
	if c.Language != "" || a.opts.Detector == nil {
		return language.DisplayName(c.Language)
	}
	lang, _, err := a.opts.Detector.Detect([]byte(strings.Join(c.Lines, "\n")), "")
	if err != nil {
		a.logger.Debug("Language detection failed", slog.String("error", err.Error()))
		return ""
	}
	return language.DisplayName(lang)
}

func (a *Assembler) table(styleID string, t *markdown.Table) []*etree.Element {
	var out []*etree.Element
	if t.Caption != "" {
		cp := docx.NewParagraph(a.styles.ID(style.RoleTableCaption))
		docx.SetKeepNext(cp)
		docx.SetJustification(cp, "center")
		docx.AddRun(cp, t.Caption, docx.RunProps{})
		out = append(out, cp)
	}
	cols := t.Columns()
	if cols == 0 {
		return out
	}
	colW := tableWidthTwips / cols

	tbl := etree.NewElement("w:tbl")
	tblPr := tbl.CreateElement("w:tblPr")
	if styleID != "" {
		tblPr.CreateElement("w:tblStyle").CreateAttr("w:val", styleID)
	}
	w := tblPr.CreateElement("w:tblW")
	w.CreateAttr("w:w", "5000")
	w.CreateAttr("w:type", "pct")
	tblPr.CreateElement("w:jc").CreateAttr("w:val", "center")
	if styleID == "" {
		borders := tblPr.CreateElement("w:tblBorders")
		for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
			b := borders.CreateElement("w:" + side)
			b.CreateAttr("w:val", "single")
			b.CreateAttr("w:sz", "4")
			b.CreateAttr("w:space", "0")
			b.CreateAttr("w:color", "auto")
		}
	}
	grid := tbl.CreateElement("w:tblGrid")
	for i := 0; i < cols; i++ {
		grid.CreateElement("w:gridCol").CreateAttr("w:w", fmt.Sprint(colW))
	}

	a.row(tbl, t.Header, cols, colW, a.styles.ID(style.RoleTableHeader), true)
	for _, r := range t.Rows {
		a.row(tbl, r, cols, colW, a.styles.ID(style.RoleTableBody), false)
	}
	return append(out, tbl)
}

func (a *Assembler) row(tbl *etree.Element, cells []markdown.Cell, cols, colW int, styleID string, header bool) {
	tr := tbl.CreateElement("w:tr")
	if header {
		tr.CreateElement("w:trPr").CreateElement("w:tblHeader")
	}
	for i := 0; i < cols; i++ {
		tc := tr.CreateElement("w:tc")
		tcW := tc.CreateElement("w:tcPr").CreateElement("w:tcW")
		tcW.CreateAttr("w:w", fmt.Sprint(colW))
		tcW.CreateAttr("w:type", "dxa")
		var spans []markdown.Span
		if i < len(cells) {
			spans = cells[i]
		}
		// Every cell needs at least one paragraph, even when padded.
		tc.AddChild(a.paragraph(styleID, spans))
	}
}

func (a *Assembler) image(styleID string, img *markdown.Image) []*etree.Element {
	data, err := a.readImage(img.Path)
	if err != nil {
		a.warn(WarnMissingResource, err.Error(), img.Path)
		return nil
	}
	relID, info, err := a.doc.AddMedia(data)
	if err != nil {
		a.warn(WarnMissingResource, fmt.Sprintf("image %s: %v", img.Path, err), img.Path)
		return nil
	}
	cx, cy := FitWidth(info.Width, info.Height, a.opts.MaxImageWidthCM)
	run, err := a.doc.NewDrawingRun(docx.Picture{
		RelID: relID,
		Name:  path.Base(img.Path),
		Descr: img.Alt,
		CX:    cx,
		CY:    cy,
	})
	if err != nil {
		a.warn(WarnMissingResource, fmt.Sprintf("image %s: %v", img.Path, err), img.Path)
		return nil
	}
	a.figures++

	pic := docx.NewParagraph(styleID)
	caption := img.Caption
	if caption == "" && a.opts.AutoFigureCaption {
		caption = FigureCaption(a.figures, img)
	}
	if caption != "" {
		docx.SetKeepNext(pic)
	}
	docx.SetJustification(pic, "center")
	pic.AddChild(run)
	out := one(pic)
	if caption != "" {
		cp := docx.NewParagraph(a.styles.ID(style.RoleFigureCaption))
		docx.SetJustification(cp, "center")
		docx.AddRun(cp, caption, docx.RunProps{})
		out = append(out, cp)
	}
	return out
}

func (a *Assembler) readImage(imagePath string) ([]byte, error) {
	if a.opts.Images == nil {
		return nil, fmt.Errorf("image %s: no image source configured", imagePath)
	}
	rc, err := a.opts.Images.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", imagePath, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", imagePath, err)
	}
	return data, nil
}

// FitWidth converts a pixel size at 96 DPI to EMU, scaling down to fit
// maxWidthCM while keeping the aspect ratio.
func FitWidth(widthPx, heightPx int, maxWidthCM float64) (cx, cy int64) {
	cx = int64(widthPx) * docx.EMUPerPixel
	cy = int64(heightPx) * docx.EMUPerPixel
	limit := int64(maxWidthCM * docx.EMUPerCM)
	if limit > 0 && cx > limit {
		cy = cy * limit / cx
		cx = limit
	}
	if cy < 1 {
		cy = 1
	}
	return cx, cy
}

// FigureCaption builds "图N name" from the alt text, or the file name
// without extension when the alt text is empty.
func FigureCaption(n int, img *markdown.Image) string {
	name := strings.TrimSpace(img.Alt)
	if name == "" {
		base := path.Base(strings.ReplaceAll(img.Path, `\`, "/"))
		name = strings.TrimSuffix(base, path.Ext(base))
	}
	return fmt.Sprintf("图%d %s", n, name)
}
