package analysis

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/docx"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/placeholder"
)

// RepairReport summarizes a Repair pass.
type RepairReport struct {
	// Merged counts placeholders that had been split across runs.
	Merged int `json:"merged" yaml:"merged" toml:"merged"`
	// AnchorFound is false when no body paragraph mentions the anchor name.
	AnchorFound   bool `json:"anchorFound" yaml:"anchorFound" toml:"anchorFound"`
	AnchorRebuilt bool `json:"anchorRebuilt" yaml:"anchorRebuilt" toml:"anchorRebuilt"`
}

// Repair merges split placeholders in every text part of doc, then rebuilds
// the first body paragraph mentioning anchor as a single run holding exactly
// {{anchor}}. The paragraph keeps its properties and the formatting of its
// first run; any other content of it is dropped.
func Repair(doc *docx.Document, anchor string) (RepairReport, error) {
	var rep RepairReport
	if !placeholder.ValidName(anchor) {
		return rep, fmt.Errorf("anchor %q is not a valid placeholder name", anchor)
	}
	norm, err := placeholder.NormalizeDocument(doc)
	if err != nil {
		return rep, fmt.Errorf("normalize placeholders: %w", err)
	}
	rep.Merged = norm.Matches

	body, err := doc.Body()
	if err != nil {
		return rep, err
	}
	token := placeholder.Token(anchor)
	for _, p := range docx.Paragraphs(body) {
		if !strings.Contains(docx.ParagraphText(p), anchor) {
			continue
		}
		rep.AnchorFound = true
		if !cleanAnchor(p, token) {
			rebuildAnchor(p, token)
			rep.AnchorRebuilt = true
		}
		break
	}
	return rep, nil
}

// cleanAnchor reports whether p holds nothing but its properties and one
// text run reading token.
func cleanAnchor(p *etree.Element, token string) bool {
	var runs int
	for _, c := range p.ChildElements() {
		switch {
		case c.Space == "w" && c.Tag == "pPr":
		case c.Space == "w" && c.Tag == "r" && docx.IsTextRun(c) && docx.RunText(c) == token:
			runs++
		default:
			return false
		}
	}
	return runs == 1
}

func rebuildAnchor(p *etree.Element, token string) {
	var rPr *etree.Element
	if first := p.FindElement(".//w:r/w:rPr"); first != nil {
		rPr = first.Copy()
	}
	for _, c := range p.ChildElements() {
		if !(c.Space == "w" && c.Tag == "pPr") {
			p.RemoveChild(c)
		}
	}
	r := p.CreateElement("w:r")
	if rPr != nil {
		r.AddChild(rPr)
	}
	docx.SetRunText(r, token)
}
