// Package placeholder substitutes {{name}} tokens in a sequence of
// formatting runs, including tokens that editing has split across runs.
package placeholder

import (
	"regexp"
	"strings"
)

// tokenRe matches one placeholder token. Group 1 is the name.
var tokenRe = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether name can appear inside {{ }}.
func ValidName(name string) bool { return nameRe.MatchString(name) }

// Token returns the literal placeholder text for name.
func Token(name string) string { return "{{" + name + "}}" }

// Names returns the placeholder names in s in order of appearance.
func Names(s string) []string {
	var out []string
	for _, m := range tokenRe.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// Run is one formatting run. Ref is opaque to the resolver and is carried
// through unchanged so the caller can map results back to its own nodes.
type Run struct {
	Text string
	Ref  any
}

// Group records one matched token and the input runs that covered it.
// First and Last are inclusive indices into the input slice.
type Group struct {
	Name     string
	First    int
	Last     int
	Value    string
	Resolved bool
}

// Split reports whether the token spanned more than one run.
func (g Group) Split() bool { return g.Last > g.First }

// Result is the outcome of resolving one paragraph.
type Result struct {
	// Runs is the rewritten sequence. Runs absorbed into a group are gone;
	// every surviving run keeps its Ref.
	Runs []Run
	// Matches counts substituted tokens.
	Matches int
	// Groups lists every token found, resolved or not, in order.
	Groups []Group
	// Unresolved lists names with no value, once per occurrence.
	Unresolved []string
}

// Changed reports whether the rewrite altered the runs.
func (r Result) Changed() bool {
	for _, g := range r.Groups {
		if g.Resolved && (g.Split() || g.Value != Token(g.Name)) {
			return true
		}
	}
	return false
}

// Resolve substitutes every token whose name is in values. Unknown tokens
// are left exactly as they were. Substituted values are never re-scanned.
func Resolve(runs []Run, values map[string]string) Result {
	return rewrite(runs, func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	})
}

// Normalize gathers each split token into the first run covering it
// without substituting anything. A normalized paragraph can be resolved by
// plain per-run text replacement.
// Matches counts only the tokens that were actually split.
func Normalize(runs []Run) Result {
	res := rewrite(runs, func(name string) (string, bool) {
		return Token(name), true
	})
	res.Matches = 0
	for _, g := range res.Groups {
		if g.Split() {
			res.Matches++
		}
	}
	return res
}

func rewrite(runs []Run, lookup func(string) (string, bool)) Result {
	var buf strings.Builder
	var owner []int // byte offset -> input run index
	for i, r := range runs {
		buf.WriteString(r.Text)
		for range len(r.Text) {
			owner = append(owner, i)
		}
	}
	text := buf.String()
	res := Result{}

	matches := tokenRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		res.Runs = append([]Run(nil), runs...)
		return res
	}

	out := make([]strings.Builder, len(runs))
	removed := make([]bool, len(runs))
	// target[i] is the run that receives the remaining text of run i.
	target := make([]int, len(runs))
	for i := range target {
		target[i] = i
	}

	pos := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		name := text[m[2]:m[3]]
		first, last := owner[start], owner[end-1]
		g := Group{Name: name, First: first, Last: last}
		value, ok := lookup(name)
		if !ok {
			res.Unresolved = append(res.Unresolved, name)
			res.Groups = append(res.Groups, g)
			continue
		}
		for ; pos < start; pos++ {
			out[target[owner[pos]]].WriteByte(text[pos])
		}
		dst := target[first]
		out[dst].WriteString(value)
		for i := first + 1; i <= last; i++ {
			removed[i] = true
			target[i] = dst
		}
		pos = end
		g.Value, g.Resolved = value, true
		res.Groups = append(res.Groups, g)
		res.Matches++
	}
	for ; pos < len(text); pos++ {
		out[target[owner[pos]]].WriteByte(text[pos])
	}

	for i, r := range runs {
		if removed[i] {
			continue
		}
		res.Runs = append(res.Runs, Run{Text: out[i].String(), Ref: r.Ref})
	}
	return res
}
