package assemble

import (
	"strings"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/markdown"
)

const (
	nbsp      = "\u00a0"
	thinSpace = "\u2009"
)

// SpaceInlineCode keeps inline code visually tight: spaces inside code
// become non-breaking, and a single ASCII space touching a code span
// becomes a thin space. The input is not modified.
func SpaceInlineCode(spans []markdown.Span) []markdown.Span {
	out := make([]markdown.Span, len(spans))
	copy(out, spans)
	for i := range out {
		if out[i].Kind == markdown.SpanCode {
			out[i].Text = strings.ReplaceAll(out[i].Text, " ", nbsp)
			continue
		}
		if i+1 < len(out) && spans[i+1].Kind == markdown.SpanCode {
			out[i].Text = thinTrailing(out[i].Text)
		}
		if i > 0 && spans[i-1].Kind == markdown.SpanCode {
			out[i].Text = thinLeading(out[i].Text)
		}
	}
	return out
}

func thinTrailing(s string) string {
	if strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "  ") {
		return s[:len(s)-1] + thinSpace
	}
	return s
}

func thinLeading(s string) string {
	if strings.HasPrefix(s, " ") && !strings.HasPrefix(s, "  ") {
		return thinSpace + s[1:]
	}
	return s
}
