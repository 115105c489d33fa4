package placeholder

import (
	"github.com/beevik/etree"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/docx"
)

// Occurrence locates one unresolved token.
type Occurrence struct {
	Name string
	Part string
}

// Report summarizes a pass over a whole package. Split counts rewritten
// tokens that had spanned several runs.
type Report struct {
	Matches    int
	Split      int
	Unresolved []Occurrence
}

// ResolveDocument substitutes values in every text part of doc: the body,
// headers, footers, footnotes and endnotes.
func ResolveDocument(doc *docx.Document, values map[string]string) (Report, error) {
	return eachParagraph(doc, func(p *etree.Element) Result { return ResolveParagraph(p, values) })
}

// NormalizeDocument merges split tokens in every text part of doc.
func NormalizeDocument(doc *docx.Document) (Report, error) {
	return eachParagraph(doc, NormalizeParagraph)
}

func eachParagraph(doc *docx.Document, fn func(*etree.Element) Result) (Report, error) {
	var rep Report
	for _, part := range doc.TextParts() {
		x, err := doc.Part(part)
		if err != nil {
			return rep, err
		}
		if x.Root() == nil {
			continue
		}
		for _, p := range docx.Paragraphs(x.Root()) {
			res := fn(p)
			rep.Matches += res.Matches
			for _, g := range res.Groups {
				if g.Split() && g.Resolved {
					rep.Split++
				}
			}
			for _, name := range res.Unresolved {
				rep.Unresolved = append(rep.Unresolved, Occurrence{Name: name, Part: part})
			}
		}
	}
	return rep, nil
}

// ResolveParagraph substitutes values in one w:p, rewriting its runs in place.
func ResolveParagraph(p *etree.Element, values map[string]string) Result {
	return applyGroups(p, func(runs []Run) Result { return Resolve(runs, values) })
}

// NormalizeParagraph merges split tokens of one w:p in place.
func NormalizeParagraph(p *etree.Element) Result {
	return applyGroups(p, Normalize)
}

func applyGroups(p *etree.Element, fn func([]Run) Result) Result {
	var total Result
	for _, group := range docx.RunGroups(p) {
		runs := make([]Run, len(group))
		for i, r := range group {
			runs[i] = Run{Text: docx.RunText(r), Ref: r}
		}
		res := fn(runs)
		apply(runs, res)
		total.Matches += res.Matches
		total.Groups = append(total.Groups, res.Groups...)
		total.Unresolved = append(total.Unresolved, res.Unresolved...)
		total.Runs = append(total.Runs, res.Runs...)
	}
	return total
}

// apply writes a resolver result back onto the w:r elements it came from.
func apply(before []Run, res Result) {
	if !res.Changed() {
		return
	}
	kept := make(map[*etree.Element]string, len(res.Runs))
	for _, r := range res.Runs {
		kept[r.Ref.(*etree.Element)] = r.Text
	}
	for _, r := range before {
		el := r.Ref.(*etree.Element)
		text, ok := kept[el]
		switch {
		case !ok:
			if parent := el.Parent(); parent != nil {
				parent.RemoveChild(el)
			}
		case text != r.Text:
			docx.SetRunText(el, text)
		}
	}
}
