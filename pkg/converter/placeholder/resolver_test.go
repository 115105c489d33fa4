package placeholder_test

import (
	"strings"
	"testing"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/placeholder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runsOf(texts ...string) []placeholder.Run {
	out := make([]placeholder.Run, len(texts))
	for i, t := range texts {
		out[i] = placeholder.Run{Text: t, Ref: i}
	}
	return out
}

func joined(runs []placeholder.Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

func TestResolve_FragmentedToken(t *testing.T) {
	res := placeholder.Resolve(runsOf("Hello {{na", "me}}!"), map[string]string{"name": "Cyan"})
	assert.Equal(t, "Hello Cyan!", joined(res.Runs))
	assert.Equal(t, 1, res.Matches)
	require.Len(t, res.Runs, 1)
	assert.Equal(t, 0, res.Runs[0].Ref, "first run's formatting survives")
	require.Len(t, res.Groups, 1)
	assert.True(t, res.Groups[0].Split())
}

// Every way of cutting the paragraph into two or three runs resolves the same.
func TestResolve_EverySplitPoint(t *testing.T) {
	const text = "产品 {{software_name}} 版本 {{version}} 结束"
	values := map[string]string{"software_name": "青稿", "version": "V1.0"}
	const want = "产品 青稿 版本 V1.0 结束"

	for i := 0; i <= len(text); i++ {
		res := placeholder.Resolve(runsOf(text[:i], text[i:]), values)
		assert.Equal(t, want, joined(res.Runs), "split at %d", i)
		assert.Equal(t, 2, res.Matches, "split at %d", i)
	}
	for i := 0; i <= len(text); i += 3 {
		for j := i; j <= len(text); j += 5 {
			res := placeholder.Resolve(runsOf(text[:i], text[i:j], text[j:]), values)
			assert.Equal(t, want, joined(res.Runs), "split at %d,%d", i, j)
			assert.Equal(t, 2, res.Matches)
		}
	}
}

func TestResolve_OneCharacterPerRun(t *testing.T) {
	text := "a{{x}}b"
	var parts []string
	for _, c := range text {
		parts = append(parts, string(c))
	}
	res := placeholder.Resolve(runsOf(parts...), map[string]string{"x": "X"})
	assert.Equal(t, "aXb", joined(res.Runs))
	// "a", then the run holding the first "{" absorbs the token and the trailing "b" stays in its own run.
	require.Len(t, res.Runs, 3)
	assert.Equal(t, "X", res.Runs[1].Text)
	assert.Equal(t, 1, res.Runs[1].Ref)
}

func TestResolve_Idempotent(t *testing.T) {
	values := map[string]string{"name": "Cyan", "version": "2"}
	first := placeholder.Resolve(runsOf("{{na", "me}} v{{version}}"), values)
	require.Equal(t, 2, first.Matches)
	second := placeholder.Resolve(first.Runs, values)
	assert.Equal(t, 0, second.Matches)
	assert.Equal(t, joined(first.Runs), joined(second.Runs))
	assert.False(t, second.Changed())
}

func TestResolve_ValueIsNotRescanned(t *testing.T) {
	values := map[string]string{"a": "{{b}}", "b": "boom"}
	res := placeholder.Resolve(runsOf("{{a}}"), values)
	assert.Equal(t, "{{b}}", joined(res.Runs))
	assert.Equal(t, 1, res.Matches)
}

func TestResolve_UnknownLeftVerbatim(t *testing.T) {
	input := runsOf("x {{unkn", "own}} y {{name}}")
	res := placeholder.Resolve(input, map[string]string{"name": "N"})
	assert.Equal(t, "x {{unknown}} y N", joined(res.Runs))
	assert.Equal(t, []string{"unknown"}, res.Unresolved)
	assert.Equal(t, 1, res.Matches)
	require.Len(t, res.Runs, 2, "unknown tokens do not merge runs")
	assert.Equal(t, "x {{unkn", res.Runs[0].Text)
}

func TestResolve_EmptyRunsInsideGroupAreDropped(t *testing.T) {
	res := placeholder.Resolve(runsOf("{{", "", "v", "}}", ""), map[string]string{"v": "1"})
	assert.Equal(t, "1", joined(res.Runs))
	require.Len(t, res.Runs, 2)
	assert.Equal(t, 4, res.Runs[1].Ref, "trailing empty run is outside the group")
}

func TestResolve_AdjacentTokensShareRuns(t *testing.T) {
	res := placeholder.Resolve(runsOf("{{a}}{{", "b}}{{c", "}}"), map[string]string{"a": "1", "b": "2", "c": "3"})
	assert.Equal(t, "123", joined(res.Runs))
	assert.Equal(t, 3, res.Matches)
	require.Len(t, res.Runs, 1)
}

func TestResolve_NoTokens(t *testing.T) {
	in := runsOf("plain", " text")
	res := placeholder.Resolve(in, map[string]string{"x": "y"})
	assert.Equal(t, in, res.Runs)
	assert.Zero(t, res.Matches)
	assert.Empty(t, res.Groups)
}

func TestResolve_InvalidIdentifierIgnored(t *testing.T) {
	res := placeholder.Resolve(runsOf("{{1abc}} {{ name }}"), map[string]string{"1abc": "x", "name": "y"})
	assert.Equal(t, "{{1abc}} {{ name }}", joined(res.Runs))
	assert.Zero(t, res.Matches)
}

func TestNormalize(t *testing.T) {
	res := placeholder.Normalize(runsOf("前{{main_", "content}}后", " {{version}}"))
	assert.Equal(t, 1, res.Matches, "only split tokens count")
	require.Len(t, res.Runs, 2)
	assert.Equal(t, "前{{main_content}}后", res.Runs[0].Text)
	assert.Equal(t, " {{version}}", res.Runs[1].Text)
	assert.True(t, res.Changed())

	again := placeholder.Normalize(res.Runs)
	assert.Zero(t, again.Matches)
	assert.False(t, again.Changed())
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b_2"}, placeholder.Names("{{a}} and {{b_2}} but not {{3c}}"))
	assert.Equal(t, "{{version}}", placeholder.Token("version"))
}

func TestValidName(t *testing.T) {
	assert.True(t, placeholder.ValidName("software_name"))
	assert.True(t, placeholder.ValidName("_x9"))
	assert.False(t, placeholder.ValidName("9x"))
	assert.False(t, placeholder.ValidName("a-b"))
	assert.False(t, placeholder.ValidName(""))
}
