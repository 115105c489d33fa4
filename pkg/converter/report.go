package converter

import (
	"time"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/assemble"
)

// Warning is a recoverable problem recorded during a conversion: a missing
// image, a skipped block or a placeholder left without a value.
type Warning = assemble.Warning

// Report summarizes one GenerateDocuments run.
type Report struct {
	Summary      ReportSummary `json:"summary" yaml:"summary" toml:"summary"`
	Converted    []FileInfo    `json:"converted" yaml:"converted" toml:"converted"`
	SkippedFiles []SkippedInfo `json:"skippedFiles" yaml:"skippedFiles" toml:"skippedFiles"`
	Errors       []ErrorInfo   `json:"errors" yaml:"errors" toml:"errors"`
}

// ReportSummary holds the aggregate numbers of a run.
type ReportSummary struct {
	InputPath          string    `json:"inputPath" yaml:"inputPath" toml:"inputPath"`
	OutputPath         string    `json:"outputPath" yaml:"outputPath" toml:"outputPath"`
	TemplatePath       string    `json:"templatePath" yaml:"templatePath" toml:"templatePath"`
	ProfileUsed        string    `json:"profileUsed,omitempty" yaml:"profileUsed,omitempty" toml:"profileUsed,omitempty"`
	ConfigFilePath     string    `json:"configFilePath,omitempty" yaml:"configFilePath,omitempty" toml:"configFilePath,omitempty"`
	TotalFilesScanned  int       `json:"totalFilesScanned" yaml:"totalFilesScanned" toml:"totalFilesScanned"`
	ConvertedCount     int       `json:"convertedCount" yaml:"convertedCount" toml:"convertedCount"`
	CachedCount        int       `json:"cachedCount" yaml:"cachedCount" toml:"cachedCount"`
	SkippedCount       int       `json:"skippedCount" yaml:"skippedCount" toml:"skippedCount"`
	WarningCount       int       `json:"warningCount" yaml:"warningCount" toml:"warningCount"`
	ErrorCount         int       `json:"errorCount" yaml:"errorCount" toml:"errorCount"`
	FatalErrorOccurred bool      `json:"fatalError" yaml:"fatalError" toml:"fatalError"`
	DurationSeconds    float64   `json:"durationSeconds" yaml:"durationSeconds" toml:"durationSeconds"`
	CacheEnabled       bool      `json:"cacheEnabled" yaml:"cacheEnabled" toml:"cacheEnabled"`
	Concurrency        int       `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
	Timestamp          time.Time `json:"timestamp" yaml:"timestamp" toml:"timestamp"`
	SchemaVersion      string    `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty" toml:"schemaVersion,omitempty"`
}

// FileInfo describes one Markdown source turned into a document, freshly or
// from the cache.
type FileInfo struct {
	Path        string    `json:"path" yaml:"path" toml:"path"`
	OutputPath  string    `json:"outputPath" yaml:"outputPath" toml:"outputPath"`
	Encoding    string    `json:"encoding" yaml:"encoding" toml:"encoding"`
	SizeBytes   int64     `json:"sizeBytes" yaml:"sizeBytes" toml:"sizeBytes"`
	ModTime     time.Time `json:"modTime" yaml:"modTime" toml:"modTime"`
	Blocks      int       `json:"blocks" yaml:"blocks" toml:"blocks"`
	Images      int       `json:"images" yaml:"images" toml:"images"`
	Tables      int       `json:"tables" yaml:"tables" toml:"tables"`
	Resolved    int       `json:"resolvedPlaceholders" yaml:"resolvedPlaceholders" toml:"resolvedPlaceholders"`
	SplitTokens int       `json:"splitPlaceholders" yaml:"splitPlaceholders" toml:"splitPlaceholders"`
	CacheStatus string    `json:"cacheStatus" yaml:"cacheStatus" toml:"cacheStatus"`
	DurationMs  int64     `json:"durationMs" yaml:"durationMs" toml:"durationMs"`
	FrontMatter bool      `json:"frontMatter" yaml:"frontMatter" toml:"frontMatter"`
	Warnings    []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty" toml:"warnings,omitempty"`
}

// SkippedInfo describes a source that was deliberately not converted.
type SkippedInfo struct {
	Path    string `json:"path" yaml:"path" toml:"path"`
	Reason  string `json:"reason" yaml:"reason" toml:"reason"`
	Details string `json:"details" yaml:"details" toml:"details"`
}

// ErrorInfo describes a source whose conversion failed.
type ErrorInfo struct {
	Path    string `json:"path" yaml:"path" toml:"path"`
	Error   string `json:"error" yaml:"error" toml:"error"`
	IsFatal bool   `json:"isFatal" yaml:"isFatal" toml:"isFatal"`
}
