package converter_test

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlieHasAHeart/CyanScript/internal/testutil"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
)

type walkResult struct {
	mu         sync.Mutex
	dispatched []string
	skipped    []converter.SkippedInfo
}

func walk(t *testing.T, opts *converter.Options) *walkResult {
	t.Helper()
	res := &walkResult{}
	w, err := converter.NewWalker(opts, func(absPath string) error {
		rel, err := filepath.Rel(opts.InputPath, absPath)
		require.NoError(t, err)
		res.mu.Lock()
		res.dispatched = append(res.dispatched, filepath.ToSlash(rel))
		res.mu.Unlock()
		return nil
	}, func(info converter.SkippedInfo) {
		res.mu.Lock()
		res.skipped = append(res.skipped, info)
		res.mu.Unlock()
	}, testutil.DiscardHandler())
	require.NoError(t, err)
	require.NoError(t, w.StartWalk(context.Background()))
	sort.Strings(res.dispatched)
	return res
}

func makeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		testutil.CreateDummyFile(t, filepath.Join(root, filepath.FromSlash(f)), "# "+f+"\n")
	}
	return root
}

func TestWalker_SelectsMarkdown(t *testing.T) {
	root := makeTree(t, "a.md", "docs/b.markdown", "docs/c.MD", "img/logo.png", "notes.txt")
	opts := newTestOptions()
	opts.InputPath = root

	res := walk(t, &opts)
	assert.Equal(t, []string{"a.md", "docs/b.markdown", "docs/c.MD"}, res.dispatched)
	assert.Empty(t, res.skipped)
}

func TestWalker_IgnorePatterns(t *testing.T) {
	root := makeTree(t, "a.md", "drafts/x.md", "docs/keep.md", "docs/old.md", "docs/sub/old.md")
	testutil.CreateDummyFile(t, filepath.Join(root, converter.IgnoreFileName), "# comment\ndrafts/\n**/old.md\n!docs/old.md\n")
	hooks := &testutil.RecordingHooks{}
	opts := newTestOptions()
	opts.InputPath = root
	opts.EventHooks = hooks
	opts.IgnorePatterns = []string{"a.md"}

	res := walk(t, &opts)
	assert.Equal(t, []string{"docs/keep.md", "docs/old.md"}, res.dispatched)
	require.Len(t, res.skipped, 2)
	var skippedPaths []string
	for _, s := range res.skipped {
		assert.Equal(t, converter.SkipReasonIgnored, s.Reason)
		skippedPaths = append(skippedPaths, s.Path)
	}
	assert.ElementsMatch(t, []string{"a.md", "docs/sub/old.md"}, skippedPaths)

	status, ok := hooks.FinalStatus("a.md")
	require.True(t, ok)
	assert.Equal(t, converter.StatusSkipped, status)
	assert.NotContains(t, hooks.Discovered, "drafts/x.md", "ignored directories are not entered")
}

func TestWalker_GitDiffFilter(t *testing.T) {
	root := makeTree(t, "a.md", "b.md", "sub/c.md")
	opts := newTestOptions()
	opts.InputPath = root
	opts.GitDiffMode = converter.GitDiffModeDiffOnly
	opts.GitChangedFiles = map[string]struct{}{"b.md": {}, "sub/c.md": {}}

	res := walk(t, &opts)
	assert.Equal(t, []string{"b.md", "sub/c.md"}, res.dispatched)
	require.Len(t, res.skipped, 1)
	assert.Equal(t, converter.SkippedInfo{Path: "a.md", Reason: converter.SkipReasonGitExclude, Details: "diffOnly"}, res.skipped[0])
}

func TestWalker_SingleFile(t *testing.T) {
	root := makeTree(t, "only.txt")
	opts := newTestOptions()
	opts.InputPath = filepath.Join(root, "only.txt")

	var got []string
	w, err := converter.NewWalker(&opts, func(absPath string) error {
		got = append(got, absPath)
		return nil
	}, nil, testutil.DiscardHandler())
	require.NoError(t, err)
	require.NoError(t, w.StartWalk(context.Background()))
	assert.Equal(t, []string{opts.InputPath}, got)
	assert.Equal(t, 1, w.Discovered())
}

func TestWalker_CancelledContext(t *testing.T) {
	root := makeTree(t, "a.md")
	opts := newTestOptions()
	opts.InputPath = root
	w, err := converter.NewWalker(&opts, func(string) error { return nil }, nil, testutil.DiscardHandler())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.StartWalk(ctx), context.Canceled)
}

func TestIsMarkdownFile(t *testing.T) {
	assert.True(t, converter.IsMarkdownFile("a.md"))
	assert.True(t, converter.IsMarkdownFile("A.MARKDOWN"))
	assert.False(t, converter.IsMarkdownFile("a.docx"))
	assert.False(t, converter.IsMarkdownFile("md"))
}
