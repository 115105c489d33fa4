package util_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlieHasAHeart/CyanScript/pkg/util"
)

func TestMatchesGitignore(t *testing.T) {
	root, err := filepath.Abs("/srv/docs")
	require.NoError(t, err)
	sub := filepath.Join(root, "guide")

	testCases := []struct {
		name     string
		pattern  string
		base     string
		rel      string
		rooted   bool
		expected bool
	}{
		{name: "exact file", pattern: "README.md", base: root, rel: "README.md", expected: true},
		{name: "glob at depth", pattern: "*.draft.md", base: root, rel: "guide/intro.draft.md", expected: true},
		{name: "glob no match", pattern: "*.draft.md", base: root, rel: "guide/intro.md", expected: false},
		{name: "directory name anywhere", pattern: "drafts", base: root, rel: "guide/drafts", expected: true},
		{name: "rooted matches at base", pattern: "drafts", base: root, rel: "drafts", rooted: true, expected: true},
		{name: "rooted ignores deeper", pattern: "drafts", base: root, rel: "guide/drafts", rooted: true, expected: false},
		{name: "slash anchors pattern", pattern: "guide/*.md", base: root, rel: "guide/a.md", expected: true},
		{name: "slash anchored no deeper", pattern: "guide/*.md", base: root, rel: "x/guide/a.md", expected: false},
		{name: "double star prefix", pattern: "**/images", base: root, rel: "a/b/images", expected: true},
		{name: "double star middle", pattern: "guide/**/old.md", base: root, rel: "guide/x/y/old.md", expected: true},
		{name: "double star zero segments", pattern: "guide/**/old.md", base: root, rel: "guide/old.md", expected: true},
		{name: "double star suffix", pattern: "archive/**", base: root, rel: "archive/2020/a.md", expected: true},
		{name: "pattern from nested ignore file", pattern: "*.md", base: sub, rel: "guide/a.md", expected: true},
		{name: "nested ignore file does not reach siblings", pattern: "*.md", base: sub, rel: "other/a.md", expected: false},
		{name: "empty pattern", pattern: "", base: root, rel: "a.md", expected: false},
		{name: "root itself", pattern: "*", base: root, rel: ".", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := util.MatchesGitignore(tc.pattern, tc.base, root, tc.rel, tc.rooted)
			assert.Equal(t, tc.expected, got)
		})
	}
}
