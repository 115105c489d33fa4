package config

import (
	"github.com/spf13/pflag"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
)

// flagKeys maps each flag bound into viper to its configuration key.
var flagKeys = map[string]string{
	"input":              "input",
	"output":             "output",
	"template":           "template",
	"software-name":      "softwareName",
	"software-version":   "version",
	"anchor":             "document.anchor",
	"verbose":            "verbose",
	"force":              "forceOverwrite",
	"ignore":             "ignore",
	"onError":            "onError",
	"concurrency":        "concurrency",
	"git-metadata":       "gitMetadata",
	"git-since":          "git.sinceRef",
	"output-format":      "outputFormat",
	"output-name":        "outputName",
	"encoding":           "defaultEncoding",
	"fail-on-unresolved": "document.failOnUnresolved",
}

// RegisterPersistentFlags defines the flags shared by every command.
func RegisterPersistentFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Config file (default: ./cyanscript.yaml or ~/.config/cyanscript/cyanscript.yaml)")
	flags.String("profile", "", "Configuration profile to apply")
	flags.BoolP("verbose", "v", converter.DefaultVerbose, "Debug logging (disables the TUI)")
}

// RegisterFlags defines the flags of the convert command.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("input", "i", "", "Markdown file or directory of Markdown files")
	flags.StringP("output", "o", "", "Output directory, or the .docx path for a single file (default: current directory)")
	flags.StringP("template", "t", "", "Word template (.docx); also CYANSCRIPT_TEMPLATE")
	flags.StringP("software-name", "n", "", "Value of {{software_name}}")
	flags.String("software-version", "", "Value of {{version}}")
	flags.StringArray("value", nil, "Extra placeholder value as key=value (repeatable)")
	flags.String("anchor", converter.DefaultAnchor, "Placeholder whose paragraph receives the converted content")
	flags.BoolP("force", "f", converter.DefaultForceOverwrite, "Overwrite an existing output document without asking")
	flags.Bool("no-tui", false, "Disable the interactive progress view")
	flags.StringArray("ignore", nil, "Glob pattern of Markdown files to skip (repeatable)")
	flags.String("onError", string(converter.DefaultOnErrorMode), "On a failed file: continue or stop")
	flags.Int("concurrency", converter.DefaultConcurrency, "Parallel conversions (0 = number of CPUs)")
	flags.Bool("no-cache", false, "Ignore cached results for this run")
	flags.Bool("clear-cache", false, "Delete the cache before running")
	flags.Bool("git-metadata", false, "Fill {{git_commit}}, {{git_author}} and {{git_date}} from Git history")
	flags.Bool("git-diff-only", false, "Only convert Markdown files changed in the working tree")
	flags.String("git-since", "", "Only convert Markdown files changed since this commit, tag or branch")
	flags.String("output-format", string(converter.DefaultOutputFormat), "Report format: text, json, yaml or toml")
	flags.String("output-name", "", "Go template naming each output document")
	flags.String("encoding", "", "Encoding assumed for Markdown files that cannot be detected")
	flags.Bool("fail-on-unresolved", converter.DefaultFailOnUnresolved, "Fail a file when a placeholder stays unresolved")
}
