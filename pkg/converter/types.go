package converter

// Status is the processing state of one Markdown source during a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusCached     Status = "cached"
)

// OnErrorMode defines the behavior when one source fails to convert.
type OnErrorMode string

const (
	OnErrorContinue OnErrorMode = "continue"
	OnErrorStop     OnErrorMode = "stop"
)

// OutputFormat selects how the final report is printed when the TUI is off.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatTOML OutputFormat = "toml"
)

// GitDiffMode limits a batch run to Markdown files changed in Git.
type GitDiffMode string

const (
	GitDiffModeNone     GitDiffMode = "none"
	GitDiffModeDiffOnly GitDiffMode = "diffOnly"
	GitDiffModeSince    GitDiffMode = "since"
)

// Stage is how far a single conversion got. Stages only move forward:
// Created, Parsed, Assembled, Finalized.
type Stage int

const (
	StageCreated Stage = iota
	StageParsed
	StageAssembled
	StageFinalized
)

func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "created"
	case StageParsed:
		return "parsed"
	case StageAssembled:
		return "assembled"
	case StageFinalized:
		return "finalized"
	}
	return "unknown"
}
