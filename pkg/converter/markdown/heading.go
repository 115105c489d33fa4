package markdown

import (
	"regexp"
	"strings"
)

// headingNumberPatterns match the manual numbering authors type in front of
// headings. The template's multilevel list supplies numbering instead.
var headingNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*第\s*([0-9]+|[一二三四五六七八九十百千]+)\s*(章|节|部分|篇)\s*[:：、.\s]*`),
	regexp.MustCompile(`^\s*[一二三四五六七八九十百千]+\s*[、.)]\s*`),
	regexp.MustCompile(`^\s*\d+(?:\.\d+)+\s*[.)]?\s*`),
	regexp.MustCompile(`^\s*\d+\s*[、.)]\s*`),
}

// StripHeadingNumber removes a leading manual number such as "第一章",
// "三、", "2.1" or "3." from s. Text that is nothing but a number is kept.
func StripHeadingNumber(s string) string {
	if out := strings.TrimSpace(stripNumber(s)); out != "" {
		return out
	}
	return strings.TrimSpace(s)
}

func stripNumber(s string) string {
	for _, re := range headingNumberPatterns {
		s = re.ReplaceAllString(s, "")
	}
	return s
}

// StripHeadingNumbers applies StripHeadingNumber to the leading text span of
// every heading in blocks.
func StripHeadingNumbers(blocks []Block) {
	for _, b := range blocks {
		h, ok := b.(*Heading)
		if !ok || len(h.Spans) == 0 || h.Spans[0].Kind == SpanCode {
			continue
		}
		out := stripNumber(h.Spans[0].Text)
		switch {
		case strings.TrimSpace(out) != "":
			h.Spans[0].Text = out
		case len(h.Spans) > 1:
			h.Spans = h.Spans[1:]
		}
	}
}
