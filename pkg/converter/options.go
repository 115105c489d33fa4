package converter

import (
	"log/slog"
	"text/template"
	"time"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/assemble"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/encoding"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/git"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/language"
	tpl "github.com/CharlieHasAHeart/CyanScript/pkg/converter/template"
)

// DocumentOptions controls how one Markdown source becomes a document.
type DocumentOptions struct {
	// Anchor is the placeholder name whose paragraph receives the content.
	Anchor string `mapstructure:"anchor"`
	// IndentUnit is the number of columns per list nesting level.
	IndentUnit int `mapstructure:"indentUnit"`
	// TableCaptionPattern and ImageCaptionPattern are regular expressions
	// recognising caption lines next to tables and images.
	TableCaptionPattern string  `mapstructure:"tableCaptionPattern"`
	ImageCaptionPattern string  `mapstructure:"imageCaptionPattern"`
	MaxImageWidthCM     float64 `mapstructure:"maxImageWidthCm"`
	ListIndentTwips     int     `mapstructure:"listIndentTwips"`
	StripHeadingNumbers bool    `mapstructure:"stripHeadingNumbers"`
	InlineCodeSpacing   bool    `mapstructure:"inlineCodeSpacing"`
	CodeLanguageLabel   bool    `mapstructure:"codeLanguageLabel"`
	AutoFigureCaption   bool    `mapstructure:"autoFigureCaption"`
	// FrontMatterValues turns scalar front matter keys into placeholder values.
	FrontMatterValues bool `mapstructure:"frontMatterValues"`
	// FailOnUnresolved makes a leftover {{name}} fatal instead of a warning.
	FailOnUnresolved bool `mapstructure:"failOnUnresolved"`
}

// GitConfig holds settings related to Git integration.
type GitConfig struct {
	DiffOnly bool   `mapstructure:"diffOnly"`
	SinceRef string `mapstructure:"sinceRef"`
}

// Hooks receives progress callbacks. Implementations MUST be thread-safe:
// batch workers call them concurrently.
type Hooks interface {
	OnFileDiscovered(path string) error
	OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error
	OnRunComplete(report Report) error
}

// NoOpHooks ignores every callback.
type NoOpHooks struct{}

func (h *NoOpHooks) OnFileDiscovered(path string) error { return nil }

func (h *NoOpHooks) OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error {
	return nil
}

func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// CacheManager remembers completed conversions between batch runs.
// Check and Update are called concurrently.
type CacheManager interface {
	Load(cachePath string) error
	Check(filePath string, modTime time.Time, sourceHash, configHash string) (isHit bool, outputHash string)
	Update(filePath string, modTime time.Time, sourceHash, configHash, outputHash string) error
	Persist(cachePath string) error
}

// NoOpCacheManager never hits and never stores anything.
type NoOpCacheManager struct{}

func (c *NoOpCacheManager) Load(cachePath string) error { return nil }

func (c *NoOpCacheManager) Check(filePath string, modTime time.Time, sourceHash, configHash string) (bool, string) {
	return false, ""
}

func (c *NoOpCacheManager) Update(filePath string, modTime time.Time, sourceHash, configHash, outputHash string) error {
	return nil
}

func (c *NoOpCacheManager) Persist(cachePath string) error { return nil }

// ImageSource is re-exported from the assembler.
type ImageSource = assemble.ImageSource

// ImageSourceFactory returns the image source for one Markdown file.
type ImageSourceFactory func(markdownPath string) ImageSource

// Options holds all configuration for a GenerateDocuments run.
type Options struct {
	// InputPath is a Markdown file or a directory of Markdown files.
	InputPath string `mapstructure:"input"`
	// OutputPath is the output directory. For a single Markdown file it may
	// also name the .docx directly.
	OutputPath   string `mapstructure:"output"`
	TemplatePath string `mapstructure:"template"`

	SoftwareName string            `mapstructure:"softwareName"`
	Version      string            `mapstructure:"version"`
	Values       map[string]string `mapstructure:"values"`

	AppVersion     string       `mapstructure:"-"`
	ConfigFilePath string       `mapstructure:"-"`
	ProfileName    string       `mapstructure:"-"`
	ForceOverwrite bool         `mapstructure:"forceOverwrite"`
	Verbose        bool         `mapstructure:"verbose"`
	TuiEnabled     bool         `mapstructure:"tuiEnabled"`
	OnErrorMode    OnErrorMode  `mapstructure:"onError"`
	OutputFormat   OutputFormat `mapstructure:"outputFormat"`

	Concurrency     int    `mapstructure:"concurrency"`
	CacheEnabled    bool   `mapstructure:"cache"`
	IgnoreCacheRead bool   `mapstructure:"-"`
	ClearCache      bool   `mapstructure:"-"`
	CacheFilePath   string `mapstructure:"-"`

	IgnorePatterns           []string          `mapstructure:"ignore"`
	DefaultEncoding          string            `mapstructure:"defaultEncoding"`
	LanguageMappingsOverride map[string]string `mapstructure:"languageMappings"`

	// OutputNameTemplate overrides the document naming convention; see
	// package template for the fields available.
	OutputNameTemplate string             `mapstructure:"outputName"`
	NameTemplate       *template.Template `mapstructure:"-"`

	Document DocumentOptions `mapstructure:"document"`

	GitDiffMode        GitDiffMode         `mapstructure:"-"`
	GitConfig          GitConfig           `mapstructure:"git"`
	GitMetadataEnabled bool                `mapstructure:"gitMetadata"`
	GitChangedFiles    map[string]struct{} `mapstructure:"-"`

	EventHooks       Hooks                     `mapstructure:"-"`
	Logger           slog.Handler              `mapstructure:"-"`
	GitClient        git.GitClient             `mapstructure:"-"`
	CacheManager     CacheManager              `mapstructure:"-"`
	LanguageDetector language.LanguageDetector `mapstructure:"-"`
	EncodingHandler  encoding.EncodingHandler  `mapstructure:"-"`
	NameExecutor     tpl.NameExecutor          `mapstructure:"-"`
	Images           ImageSourceFactory        `mapstructure:"-"`
}

// DefaultDocumentOptions returns the document settings used when nothing is
// configured.
func DefaultDocumentOptions() DocumentOptions {
	return DocumentOptions{
		Anchor:              DefaultAnchor,
		IndentUnit:          DefaultIndentUnit,
		TableCaptionPattern: DefaultTableCaptionPattern,
		ImageCaptionPattern: DefaultImageCaptionPattern,
		MaxImageWidthCM:     DefaultMaxImageWidthCM,
		ListIndentTwips:     DefaultListIndentTwips,
		StripHeadingNumbers: DefaultStripHeadingNumbers,
		InlineCodeSpacing:   DefaultInlineCodeSpacing,
		CodeLanguageLabel:   DefaultCodeLanguageLabel,
		AutoFigureCaption:   DefaultAutoFigureCaption,
		FrontMatterValues:   DefaultFrontMatterValues,
		FailOnUnresolved:    DefaultFailOnUnresolved,
	}
}

// DefaultOptions returns Options with every default applied and no paths set.
func DefaultOptions() Options {
	return Options{
		Concurrency:  DefaultConcurrency,
		CacheEnabled: DefaultCacheEnabled,
		TuiEnabled:   DefaultTuiEnabled,
		OnErrorMode:  DefaultOnErrorMode,
		OutputFormat: DefaultOutputFormat,
		GitDiffMode:  GitDiffModeNone,
		GitConfig:    GitConfig{SinceRef: DefaultGitSinceRef},
		Document:     DefaultDocumentOptions(),
	}
}
