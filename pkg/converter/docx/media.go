package docx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// EMU conversion factors.
const (
	EMUPerCM     = 360000
	EMUPerPixel  = 9525 // at 96 DPI
	EMUPerTwip   = 635
	relTypeImage = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	nsDrawing    = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPicture    = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	nsWordDraw   = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
)

// ErrUnsupportedImage is returned for image bytes no registered decoder accepts.
var ErrUnsupportedImage = errors.New("unsupported image format")

// formats Word renders natively, keyed by image.DecodeConfig format name.
var mediaTypes = map[string]struct{ ext, contentType string }{
	"png":  {"png", "image/png"},
	"jpeg": {"jpeg", "image/jpeg"},
	"gif":  {"gif", "image/gif"},
	"bmp":  {"bmp", "image/bmp"},
	"tiff": {"tiff", "image/tiff"},
}

// ImageInfo holds the decoded header of an image.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// InspectImage decodes only the image header.
func InspectImage(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// AddMedia stores image bytes under word/media and links them from the
// main document. Formats Word cannot display, such as WebP, are re-encoded
// as PNG. It returns the relationship ID to embed.
func (d *Document) AddMedia(data []byte) (string, ImageInfo, error) {
	info, err := InspectImage(data)
	if err != nil {
		return "", info, err
	}
	mt, native := mediaTypes[info.Format]
	if !native {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return "", info, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", info, fmt.Errorf("re-encode %s as png: %w", info.Format, err)
		}
		data, mt = buf.Bytes(), mediaTypes["png"]
	}
	if err := d.addDefault(mt.ext, mt.contentType); err != nil {
		return "", info, err
	}
	n := 1
	for d.Has(mediaName(n, mt.ext)) {
		n++
	}
	name := mediaName(n, mt.ext)
	d.SetRaw(name, data)
	id, err := d.addRelationship(PartDocumentRels, relTypeImage, strings.TrimPrefix(name, "word/"), false)
	if err != nil {
		return "", info, err
	}
	return id, info, nil
}

func mediaName(n int, ext string) string {
	return "word/media/cyanscript_image" + strconv.Itoa(n) + "." + ext
}

// Picture describes an inline picture.
type Picture struct {
	RelID string
	Name  string
	Descr string
	CX    int64 // width in EMU
	CY    int64 // height in EMU
}

// NewDrawingRun returns a w:r holding an inline picture. Drawing object IDs
// continue after the highest one already in the main document.
func (d *Document) NewDrawingRun(pic Picture) (*etree.Element, error) {
	if err := d.ensureDrawingIDs(); err != nil {
		return nil, err
	}
	id := strconv.Itoa(d.nextDrawingID)
	d.nextDrawingID++
	cx, cy := strconv.FormatInt(pic.CX, 10), strconv.FormatInt(pic.CY, 10)

	r := etree.NewElement("w:r")
	inline := r.CreateElement("w:drawing").CreateElement("wp:inline")
	for _, k := range []string{"distT", "distB", "distL", "distR"} {
		inline.CreateAttr(k, "0")
	}
	ext := inline.CreateElement("wp:extent")
	ext.CreateAttr("cx", cx)
	ext.CreateAttr("cy", cy)
	eff := inline.CreateElement("wp:effectExtent")
	for _, k := range []string{"l", "t", "r", "b"} {
		eff.CreateAttr(k, "0")
	}
	docPr := inline.CreateElement("wp:docPr")
	docPr.CreateAttr("id", id)
	docPr.CreateAttr("name", "Picture "+id)
	if pic.Descr != "" {
		docPr.CreateAttr("descr", pic.Descr)
	}
	locks := inline.CreateElement("wp:cNvGraphicFramePr").CreateElement("a:graphicFrameLocks")
	locks.CreateAttr("xmlns:a", nsDrawing)
	locks.CreateAttr("noChangeAspect", "1")

	graphic := inline.CreateElement("a:graphic")
	graphic.CreateAttr("xmlns:a", nsDrawing)
	data := graphic.CreateElement("a:graphicData")
	data.CreateAttr("uri", nsPicture)
	p := data.CreateElement("pic:pic")
	p.CreateAttr("xmlns:pic", nsPicture)
	nv := p.CreateElement("pic:nvPicPr")
	cNvPr := nv.CreateElement("pic:cNvPr")
	cNvPr.CreateAttr("id", "0")
	cNvPr.CreateAttr("name", pic.Name)
	nv.CreateElement("pic:cNvPicPr")
	fill := p.CreateElement("pic:blipFill")
	fill.CreateElement("a:blip").CreateAttr("r:embed", pic.RelID)
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")
	sp := p.CreateElement("pic:spPr")
	xfrm := sp.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", "0")
	off.CreateAttr("y", "0")
	aext := xfrm.CreateElement("a:ext")
	aext.CreateAttr("cx", cx)
	aext.CreateAttr("cy", cy)
	geom := sp.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")
	return r, nil
}

func (d *Document) ensureDrawingIDs() error {
	if d.nextDrawingID > 0 {
		return nil
	}
	x, err := d.Part(PartDocument)
	if err != nil {
		return err
	}
	root := x.Root()
	if root == nil {
		return fmt.Errorf("%w: empty %s", ErrInvalidPackage, PartDocument)
	}
	ensureNamespace(root, "wp", nsWordDraw)
	ensureNamespace(root, "r", NSRelationships)
	maxID := 0
	for _, e := range root.FindElements(".//docPr") {
		if n, err := strconv.Atoi(e.SelectAttrValue("id", "")); err == nil && n > maxID {
			maxID = n
		}
	}
	d.nextDrawingID = maxID + 1
	return nil
}

func ensureNamespace(root *etree.Element, prefix, uri string) {
	if root.SelectAttr("xmlns:"+prefix) == nil {
		root.CreateAttr("xmlns:"+prefix, uri)
	}
}
