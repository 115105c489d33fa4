package converter_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/CharlieHasAHeart/CyanScript/internal/testutil"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/docx"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/git"
)

type batchFixture struct {
	input    string
	output   string
	template string
	hooks    *testutil.RecordingHooks
}

func newBatchFixture(t *testing.T, files map[string]string) *batchFixture {
	t.Helper()
	base := t.TempDir()
	f := &batchFixture{
		input:    filepath.Join(base, "docs"),
		output:   filepath.Join(base, "out"),
		template: testutil.WriteTemplate(t, filepath.Join(base, "tpl"), testutil.AnchorTemplate()),
		hooks:    &testutil.RecordingHooks{},
	}
	require.NoError(t, os.MkdirAll(f.input, 0o755))
	for name, content := range files {
		testutil.CreateDummyFile(t, filepath.Join(f.input, filepath.FromSlash(name)), content)
	}
	return f
}

func (f *batchFixture) options() converter.Options {
	opts := converter.DefaultOptions()
	opts.Logger = testutil.DiscardHandler()
	opts.InputPath = f.input
	opts.OutputPath = f.output
	opts.TemplatePath = f.template
	opts.SoftwareName = "青稿"
	opts.Version = "V1.0"
	opts.EventHooks = f.hooks
	opts.Concurrency = 2
	return opts
}

func openOutput(t *testing.T, p string) *docx.Document {
	t.Helper()
	doc, err := docx.OpenFile(p)
	require.NoError(t, err, "output %s", p)
	return doc
}

func TestGenerateDocuments_Batch(t *testing.T) {
	f := newBatchFixture(t, map[string]string{
		"intro.md":         "# 简介\n\n![标志](logo.png)\n",
		"guide/install.md": "# 安装\n\n运行安装程序。\n",
		"guide/missing.md": "![无](none.png)\n",
	})
	require.NoError(t, os.WriteFile(filepath.Join(f.input, "logo.png"), testutil.PNG(t, 10, 10), 0o644))

	report, err := converter.GenerateDocuments(context.Background(), f.options())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.TotalFilesScanned)
	assert.Equal(t, 3, report.Summary.ConvertedCount)
	assert.Zero(t, report.Summary.ErrorCount)
	assert.Equal(t, 1, report.Summary.WarningCount, "one missing image")
	require.Len(t, report.Converted, 3)
	assert.Equal(t, "guide/install.md", report.Converted[0].Path, "entries are sorted by path")
	assert.Equal(t, filepath.Join(f.output, "guide", "install.docx"), report.Converted[0].OutputPath)

	intro := openOutput(t, filepath.Join(f.output, "intro.docx"))
	assert.Contains(t, bodyTexts(t, intro), "青稿 软件说明书")
	assert.Contains(t, intro.Names(), "word/media/cyanscript_image1.png")

	require.Len(t, f.hooks.Reports, 1)
	status, ok := f.hooks.FinalStatus("intro.md")
	require.True(t, ok)
	assert.Equal(t, converter.StatusSuccess, status)
}

func TestGenerateDocuments_Cache(t *testing.T) {
	f := newBatchFixture(t, map[string]string{"a.md": "甲", "b.md": "乙"})
	opts := f.options()
	opts.CacheEnabled = true

	first, err := converter.GenerateDocuments(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Summary.ConvertedCount)
	assert.FileExists(t, filepath.Join(f.output, converter.CacheFileName))

	second, err := converter.GenerateDocuments(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Summary.CachedCount)
	assert.Zero(t, second.Summary.ConvertedCount)

	testutil.CreateDummyFile(t, filepath.Join(f.input, "a.md"), "甲改")
	require.NoError(t, os.Remove(filepath.Join(f.output, "b.docx")))
	third, err := converter.GenerateDocuments(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Summary.ConvertedCount, "a changed, b lost its output")
	assert.Zero(t, third.Summary.CachedCount)

	opts.IgnoreCacheRead = true
	forced, err := converter.GenerateDocuments(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, forced.Summary.ConvertedCount)
}

func TestGenerateDocuments_CacheManager(t *testing.T) {
	t.Run("hit keeps the existing output", func(t *testing.T) {
		f := newBatchFixture(t, map[string]string{"a.md": "甲", "b.md": "乙"})
		require.NoError(t, os.MkdirAll(f.output, 0o755))
		previous := []byte("earlier output")
		require.NoError(t, os.WriteFile(filepath.Join(f.output, "a.docx"), previous, 0o644))
		sum := sha256.Sum256(previous)
		cachePath := filepath.Join(f.output, converter.CacheFileName)

		mgr := &testutil.MockCacheManager{}
		mgr.On("Load", cachePath).Return(nil).Once()
		mgr.On("Check", "a.md", mock.Anything, mock.Anything, mock.Anything).Return(true, hex.EncodeToString(sum[:])).Once()
		mgr.On("Check", "b.md", mock.Anything, mock.Anything, mock.Anything).Return(false, "").Once()
		mgr.On("Update", "b.md", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		mgr.On("Persist", cachePath).Return(nil).Once()

		opts := f.options()
		opts.CacheEnabled = true
		opts.CacheManager = mgr
		report, err := converter.GenerateDocuments(context.Background(), opts)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Summary.CachedCount)
		assert.Equal(t, 1, report.Summary.ConvertedCount)
		data, err := os.ReadFile(filepath.Join(f.output, "a.docx"))
		require.NoError(t, err)
		assert.Equal(t, previous, data, "a cached document is not rewritten")
		mgr.AssertExpectations(t)
	})

	t.Run("unreadable cache runs cold", func(t *testing.T) {
		f := newBatchFixture(t, map[string]string{"a.md": "甲"})
		mgr := &testutil.MockCacheManager{}
		mgr.On("Load", mock.Anything).Return(errors.New("corrupt index")).Once()

		opts := f.options()
		opts.CacheEnabled = true
		opts.CacheManager = mgr
		report, err := converter.GenerateDocuments(context.Background(), opts)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Summary.ConvertedCount)
		mgr.AssertExpectations(t)
		mgr.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mgr.AssertNotCalled(t, "Persist", mock.Anything)
	})
}

func TestGenerateDocuments_SingleFile(t *testing.T) {
	f := newBatchFixture(t, map[string]string{"manual.md": "# 总述\n"})

	t.Run("named after software and version", func(t *testing.T) {
		opts := f.options()
		opts.InputPath = filepath.Join(f.input, "manual.md")
		report, err := converter.GenerateDocuments(context.Background(), opts)
		require.NoError(t, err)
		require.Len(t, report.Converted, 1)
		assert.Equal(t, filepath.Join(f.output, "青稿_V1.0_软件说明书.docx"), report.Converted[0].OutputPath)
		assert.FileExists(t, report.Converted[0].OutputPath)
	})

	t.Run("explicit output file", func(t *testing.T) {
		opts := f.options()
		opts.InputPath = filepath.Join(f.input, "manual.md")
		opts.OutputPath = filepath.Join(f.output, "custom", "result.docx")
		_, err := converter.GenerateDocuments(context.Background(), opts)
		require.NoError(t, err)
		assert.FileExists(t, opts.OutputPath)
	})
}

func TestGenerateDocuments_OnErrorModes(t *testing.T) {
	files := map[string]string{"a.md": "甲", "b.md": "乙"}

	t.Run("continue records errors", func(t *testing.T) {
		f := newBatchFixture(t, files)
		opts := f.options()
		opts.Version = ""
		opts.Document.FailOnUnresolved = true
		report, err := converter.GenerateDocuments(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Summary.ErrorCount)
		assert.False(t, report.Summary.FatalErrorOccurred)
		for _, e := range report.Errors {
			assert.Contains(t, e.Error, "version")
		}
	})

	t.Run("stop cancels the run", func(t *testing.T) {
		f := newBatchFixture(t, files)
		opts := f.options()
		opts.Version = ""
		opts.Document.FailOnUnresolved = true
		opts.OnErrorMode = converter.OnErrorStop
		opts.Concurrency = 1
		report, err := converter.GenerateDocuments(context.Background(), opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, converter.ErrUnresolvedPlaceholder)
		assert.True(t, report.Summary.FatalErrorOccurred)
		require.NotEmpty(t, report.Errors)
		assert.True(t, report.Errors[0].IsFatal)
	})
}

func TestGenerateDocuments_SkipsBinary(t *testing.T) {
	f := newBatchFixture(t, map[string]string{"ok.md": "正文"})
	require.NoError(t, os.WriteFile(filepath.Join(f.input, "blob.md"), []byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0}, 0o644))

	report, err := converter.GenerateDocuments(context.Background(), f.options())
	require.NoError(t, err)
	require.Len(t, report.SkippedFiles, 1)
	assert.Equal(t, converter.SkipReasonBinary, report.SkippedFiles[0].Reason)
	assert.Equal(t, 1, report.Summary.ConvertedCount)
}

func TestGenerateDocuments_GitIntegration(t *testing.T) {
	f := newBatchFixture(t, map[string]string{"a.md": "甲", "b.md": "乙"})
	spec := testutil.AnchorTemplate()
	spec.Body = testutil.Para("提交 {{git_commit}} 作者 {{git_author}}") + testutil.Para("{{main_content}}")
	f.template = testutil.WriteTemplate(t, filepath.Join(filepath.Dir(f.input), "gittpl"), spec)

	gitClient := &testutil.MockGitClient{}
	gitClient.On("GetChangedFiles", mock.Anything, git.ModeSince, "main").Return([]string{"b.md"}, nil).Once()
	gitClient.On("GetFileMetadata", mock.Anything, mock.Anything).Return(map[string]string{
		git.MetaCommit: "abc1234",
		git.MetaAuthor: "Lin",
		git.MetaDate:   "2024-05-01T10:00:00Z",
	}, nil)

	opts := f.options()
	opts.GitClient = gitClient
	opts.GitDiffMode = converter.GitDiffModeSince
	opts.GitConfig.SinceRef = "main"
	opts.GitMetadataEnabled = true

	report, err := converter.GenerateDocuments(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, report.Converted, 1)
	assert.Equal(t, "b.md", report.Converted[0].Path)
	require.Len(t, report.SkippedFiles, 1)
	assert.Equal(t, converter.SkipReasonGitExclude, report.SkippedFiles[0].Reason)

	doc := openOutput(t, filepath.Join(f.output, "b.docx"))
	assert.Equal(t, "提交 abc1234 作者 Lin", bodyTexts(t, doc)[0])
	gitClient.AssertExpectations(t)
}

func TestNewEngine_Validation(t *testing.T) {
	f := newBatchFixture(t, map[string]string{"a.md": "甲"})

	t.Run("logger required", func(t *testing.T) {
		opts := f.options()
		opts.Logger = nil
		_, err := converter.NewEngine(context.Background(), opts)
		assert.ErrorIs(t, err, converter.ErrConfigValidation)
	})
	t.Run("template contract checked up front", func(t *testing.T) {
		spec := testutil.AnchorTemplate()
		spec.Body = testutil.Para("no anchor")
		opts := f.options()
		opts.TemplatePath = testutil.WriteTemplate(t, t.TempDir(), spec)
		_, err := converter.NewEngine(context.Background(), opts)
		assert.ErrorIs(t, err, converter.ErrTemplateContract)
		assert.NoDirExists(t, f.output, "nothing is written for a bad template")
	})
	t.Run("git diff needs a client", func(t *testing.T) {
		opts := f.options()
		opts.GitDiffMode = converter.GitDiffModeDiffOnly
		_, err := converter.NewEngine(context.Background(), opts)
		assert.ErrorIs(t, err, converter.ErrConfigValidation)
	})
	t.Run("bad output name template", func(t *testing.T) {
		opts := f.options()
		opts.OutputNameTemplate = "{{ .Stem "
		_, err := converter.NewEngine(context.Background(), opts)
		assert.ErrorIs(t, err, converter.ErrConfigValidation)
	})
}

func TestGenerateDocuments_CustomOutputName(t *testing.T) {
	f := newBatchFixture(t, map[string]string{"sub/a.md": "甲"})
	opts := f.options()
	opts.OutputNameTemplate = "{{ safe .SoftwareName }}-{{ .Stem }}.docx"
	_, err := converter.GenerateDocuments(context.Background(), opts)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.output, "sub", "青稿-a.docx"))
}

func TestGenerateDocuments_Cancelled(t *testing.T) {
	f := newBatchFixture(t, map[string]string{"a.md": "甲"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := converter.GenerateDocuments(ctx, f.options())
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Summary.FatalErrorOccurred)
}
