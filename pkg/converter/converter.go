// Package converter turns Markdown into styled .docx documents built from a
// Word template. A Converter performs single conversions; an Engine runs
// many of them concurrently over a directory.
package converter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/assemble"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/docx"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/encoding"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/language"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/markdown"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/placeholder"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/style"
	tpl "github.com/CharlieHasAHeart/CyanScript/pkg/converter/template"
)

// Request is one Markdown source to convert.
type Request struct {
	// Name identifies the source in logs; usually its relative path.
	Name     string
	Markdown []byte
	// Values are placeholder values. They override front matter values.
	Values map[string]string
	// Images resolves image paths found in the Markdown. Nil means every
	// image is reported missing.
	Images ImageSource
}

// Result is a finalized document plus what happened while producing it.
type Result struct {
	Document     *Completed
	Warnings     []Warning
	Stage        Stage
	Encoding     string
	FrontMatter  bool
	Blocks       int
	Images       int
	Tables       int
	Placeholders placeholder.Report
}

// WriteTo serializes the finalized document.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	return r.Document.WriteTo(w)
}

// Completed is a document that went through Finalize and is ready to be
// written out.
type Completed struct {
	doc *docx.Document
}

// Package exposes the underlying package for inspection.
func (c *Completed) Package() *docx.Document { return c.doc }

func (c *Completed) WriteTo(w io.Writer) (int64, error) { return c.doc.WriteTo(w) }

func (c *Completed) Bytes() ([]byte, error) { return c.doc.Bytes() }

func (c *Completed) Save(filePath string) error { return c.doc.Save(filePath) }

// Finalize asks Word to refresh fields such as the table of contents and
// page numbers when the document is next opened. It changes nothing else.
func Finalize(doc *docx.Document) (*Completed, error) {
	if err := doc.SetUpdateFields(); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	return &Completed{doc: doc}, nil
}

// OutputFileName names a single conversion's document
// "<softwareName>_<version>_软件说明书.docx". Path separators become "_" and
// blank parts become "output".
func OutputFileName(softwareName, version string) string {
	return tpl.SafeFilename(softwareName) + "_" + tpl.SafeFilename(version) + "_" + DefaultOutputSuffix + ".docx"
}

// Converter holds a template that passed validation and converts Markdown
// against fresh copies of it. It is safe for concurrent use.
type Converter struct {
	template  []byte
	styles    style.Resolved
	opts      DocumentOptions
	parseOpts []markdown.Option
	encoding  encoding.EncodingHandler
	detector  language.LanguageDetector
	logger    *slog.Logger
}

// NewConverter validates template against the style and anchor contract and
// returns a Converter for it. Only opts.Document, opts.Logger,
// opts.EncodingHandler, opts.LanguageDetector, opts.DefaultEncoding and
// opts.LanguageMappingsOverride are used.
func NewConverter(template []byte, opts Options) (*Converter, error) {
	handler := opts.Logger
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(handler).With(slog.String("component", "converter"))

	doc := opts.Document
	if doc.Anchor == "" {
		doc.Anchor = DefaultAnchor
	}
	if !placeholder.ValidName(doc.Anchor) {
		return nil, fmt.Errorf("%w: anchor %q is not a valid placeholder name", ErrConfigValidation, doc.Anchor)
	}
	if doc.IndentUnit < 0 || doc.ListIndentTwips < 0 || doc.MaxImageWidthCM < 0 {
		return nil, fmt.Errorf("%w: indent unit, list indent and image width cannot be negative", ErrConfigValidation)
	}
	parseOpts := []markdown.Option{markdown.WithIndentUnit(doc.IndentUnit)}
	for _, p := range []struct {
		name, pattern string
		with          func(*regexp.Regexp) markdown.Option
	}{
		{"table caption", doc.TableCaptionPattern, markdown.WithTableCaption},
		{"image caption", doc.ImageCaptionPattern, markdown.WithImageCaption},
	} {
		if p.pattern == "" {
			continue
		}
		re, err := regexp.Compile(p.pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %s pattern: %w", ErrConfigValidation, p.name, err)
		}
		parseOpts = append(parseOpts, p.with(re))
	}

	pkg, err := docx.Open(template)
	if err != nil {
		return nil, err
	}
	catalog, err := pkg.Styles()
	if err != nil {
		return nil, err
	}
	resolved, err := style.Resolve(catalog)
	if err != nil {
		return nil, err
	}
	if _, err := assemble.FindAnchor(pkg, doc.Anchor); err != nil {
		return nil, err
	}

	enc := opts.EncodingHandler
	if enc == nil {
		enc = encoding.NewGoCharsetEncodingHandler(opts.DefaultEncoding)
	}
	det := opts.LanguageDetector
	if det == nil {
		det = language.NewGoEnryDetector(opts.LanguageMappingsOverride)
	}
	logger.Debug("Template accepted", slog.Int("styles", len(resolved)), slog.String("anchor", doc.Anchor))

	return &Converter{
		template:  bytes.Clone(template),
		styles:    resolved,
		opts:      doc,
		parseOpts: parseOpts,
		encoding:  enc,
		detector:  det,
		logger:    logger,
	}, nil
}

// Convert runs one conversion: decode, parse, resolve placeholders in the
// template, assemble the blocks at the anchor and finalize. Recoverable
// problems end up in Result.Warnings. On error the partial document is
// discarded and Result is nil.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	logger := c.logger
	if req.Name != "" {
		logger = logger.With(slog.String("path", req.Name))
	}
	res := &Result{Stage: StageCreated}

	doc, err := docx.Open(c.template)
	if err != nil {
		return nil, err
	}

	src, encName, _, decErr := c.encoding.DetectAndDecode(req.Markdown)
	res.Encoding = encName
	if decErr != nil {
		res.Warnings = append(res.Warnings, Warning{Code: WarnEncoding, Message: decErr.Error(), Location: req.Name})
		logger.Warn("Markdown decoding failed, using raw bytes", slog.String("error", decErr.Error()))
	}

	fmValues, body, found, fmErr := splitFrontMatter(src)
	if fmErr != nil {
		res.Warnings = append(res.Warnings, Warning{Code: WarnFrontMatter, Message: fmErr.Error(), Location: req.Name})
		logger.Warn("Front matter ignored", slog.String("error", fmErr.Error()))
	}
	res.FrontMatter = found
	if !c.opts.FrontMatterValues {
		fmValues = nil
	}

	blocks := markdown.Parse(string(body), c.parseOpts...)
	if c.opts.StripHeadingNumbers {
		markdown.StripHeadingNumbers(blocks)
	}
	res.Blocks = len(blocks)
	for _, b := range blocks {
		switch b.Kind() {
		case markdown.KindImage:
			res.Images++
		case markdown.KindTable:
			res.Tables++
		}
	}
	res.Stage = StageParsed
	logger.Debug("Parsed markdown", slog.Int("blocks", res.Blocks), slog.String("encoding", encName))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := mergeValues(fmValues, req.Values)
	delete(values, c.opts.Anchor)
	rep, err := placeholder.ResolveDocument(doc, values)
	if err != nil {
		return nil, err
	}
	res.Placeholders = rep

	asm := assemble.New(doc, c.styles, assemble.Options{
		Anchor:            c.opts.Anchor,
		MaxImageWidthCM:   c.opts.MaxImageWidthCM,
		ListIndentTwips:   c.opts.ListIndentTwips,
		InlineCodeSpacing: c.opts.InlineCodeSpacing,
		CodeLanguageLabel: c.opts.CodeLanguageLabel,
		AutoFigureCaption: c.opts.AutoFigureCaption,
		Images:            req.Images,
		Detector:          c.detector,
		Logger:            logger,
	})
	warns, err := asm.Assemble(ctx, blocks)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, warns...)
	res.Stage = StageAssembled

	var unresolved []string
	for _, occ := range rep.Unresolved {
		if occ.Name == c.opts.Anchor {
			continue
		}
		unresolved = append(unresolved, occ.Name)
		logger.Warn("Unresolved placeholder", slog.String("name", occ.Name), slog.String("location", occ.Part))
		res.Warnings = append(res.Warnings, Warning{
			Code:     WarnUnresolvedPlaceholder,
			Message:  fmt.Sprintf("placeholder %s has no value", placeholder.Token(occ.Name)),
			Location: occ.Part,
		})
	}
	if len(unresolved) > 0 && c.opts.FailOnUnresolved {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, strings.Join(unresolved, ", "))
	}

	completed, err := Finalize(doc)
	if err != nil {
		return nil, err
	}
	res.Document = completed
	res.Stage = StageFinalized

	logger.Debug("Conversion finalized",
		slog.Int("placeholders", rep.Matches),
		slog.Int("split", rep.Split),
		slog.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// Convert is a one-shot helper around NewConverter and Converter.Convert.
func Convert(ctx context.Context, template []byte, req Request, opts Options) (*Result, error) {
	c, err := NewConverter(template, opts)
	if err != nil {
		return nil, err
	}
	return c.Convert(ctx, req)
}
