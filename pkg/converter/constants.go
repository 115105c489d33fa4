package converter

import (
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/assemble"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/markdown"
)

// Defaults used by DefaultOptions and by the CLI when seeding viper.
const (
	// DefaultConcurrency of 0 means runtime.NumCPU().
	DefaultConcurrency    = 0
	DefaultCacheEnabled   = true
	DefaultTuiEnabled     = true
	DefaultOnErrorMode    = OnErrorContinue
	DefaultOutputFormat   = OutputFormatText
	DefaultGitSinceRef    = "main"
	DefaultVerbose        = false
	DefaultForceOverwrite = false

	DefaultAnchor              = assemble.DefaultAnchor
	DefaultIndentUnit          = markdown.DefaultIndentUnit
	DefaultMaxImageWidthCM     = assemble.DefaultMaxImageWidthCM
	DefaultListIndentTwips     = assemble.DefaultListIndentTwips
	DefaultStripHeadingNumbers = true
	DefaultInlineCodeSpacing   = true
	DefaultCodeLanguageLabel   = false
	DefaultAutoFigureCaption   = true
	DefaultFrontMatterValues   = true
	DefaultFailOnUnresolved    = false

	DefaultTableCaptionPattern = `^表\s*\d+\s+\S`
	DefaultImageCaptionPattern = `^图\s*\d+`

	// DefaultOutputSuffix is appended to "<software>_<version>" for single
	// conversions.
	DefaultOutputSuffix = "软件说明书"
)

// Placeholder names filled by the engine itself.
const (
	ValueSoftwareName = "software_name"
	ValueVersion      = "version"
	ValueGitCommit    = "git_commit"
	ValueGitAuthor    = "git_author"
	ValueGitDate      = "git_date"
)

// Cache index constants.
const (
	CacheFileName      = ".cyanscript.cache"
	CacheSchemaVersion = "1.0"
)

// ReportSchemaVersion is the version of the JSON/YAML/TOML report layout.
const ReportSchemaVersion = "1.0"

// IgnoreFileName is looked up from the input directory upwards in batch mode.
const IgnoreFileName = ".cyanscriptignore"

// Cache status strings used in FileInfo.
const (
	CacheStatusHit      = "hit"
	CacheStatusMiss     = "miss"
	CacheStatusDisabled = "disabled"
)

// Skip reasons used in SkippedInfo.
const (
	SkipReasonBinary     = "binary_file"
	SkipReasonIgnored    = "ignored_pattern"
	SkipReasonGitExclude = "excluded_by_git_diff"
)

// Warning codes. The assembler codes are re-exported so callers only need
// this package.
const (
	WarnMissingResource       = assemble.WarnMissingResource
	WarnSkippedBlock          = assemble.WarnSkippedBlock
	WarnUnresolvedPlaceholder = "unresolved_placeholder"
	WarnEncoding              = "encoding"
	WarnFrontMatter           = "front_matter"
)

// markdownExtensions are the source extensions picked up in batch mode.
var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".mdown":    true,
	".mkd":      true,
}
