package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlieHasAHeart/CyanScript/internal/cli"
	"github.com/CharlieHasAHeart/CyanScript/internal/testutil"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter"
)

// executeCommand runs root with args and captures its output.
func executeCommand(root *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	stdoutBuf := new(bytes.Buffer)
	stderrBuf := new(bytes.Buffer)
	root.SetOut(stdoutBuf)
	root.SetErr(stderrBuf)
	root.SetArgs(args)
	err = root.Execute()
	return stdoutBuf.String(), stderrBuf.String(), err
}

func TestRootCmdHelp(t *testing.T) {
	root := newRootCmd()
	stdout, stderr, err := executeCommand(root, "--help")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "{{main_content}}")

	check := func(f *pflag.Flag) {
		assert.Contains(t, stdout, "--"+f.Name, "help lists --%s", f.Name)
		if f.Shorthand != "" {
			assert.Contains(t, stdout, "-"+f.Shorthand+",", "help lists -%s", f.Shorthand)
		}
	}
	root.Flags().VisitAll(check)
	root.PersistentFlags().VisitAll(check)

	for _, sub := range []string{"check", "fix"} {
		assert.Contains(t, stdout, sub)
	}
}

func TestRootCmdVersion(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	version, commit, date = "1.2.3", "abc123", "2024-05-01T10:00:00Z"
	defer func() { version, commit, date = origVersion, origCommit, origDate }()

	stdout, _, err := executeCommand(newRootCmd(), "--version")
	require.NoError(t, err)
	assert.Equal(t, "cyanscript version 1.2.3 (commit: abc123, built: 2024-05-01T10:00:00Z)\n", stdout)
}

func TestRootCmdFlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"unknown flag", []string{"--unknown-flag"}, "unknown flag: --unknown-flag"},
		{"bad int", []string{"--concurrency", "abc"}, `invalid argument "abc" for "--concurrency" flag`},
		{"too many args", []string{"a.md", "b.md"}, "accepts at most 1 arg(s)"},
		{"input twice", []string{"a.md", "-i", "b.md"}, "input given both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := executeCommand(newRootCmd(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, stderr, tt.msg)
		})
	}
}

func TestRootCmdConvert(t *testing.T) {
	dir := t.TempDir()
	tpl := testutil.WriteTemplate(t, filepath.Join(dir, "tpl"), testutil.AnchorTemplate())
	input := filepath.Join(dir, "manual.md")
	testutil.CreateDummyFile(t, input, "---\ntitle: 手册\n---\n# 总述\n\n正文。\n")
	out := filepath.Join(dir, "out")
	t.Setenv("CYANSCRIPT_SOFTWARE_NAME", "青稿")

	stdout, _, err := executeCommand(newRootCmd(), input,
		"-t", tpl, "-o", out, "--software-version", "V2.0",
		"--no-tui", "--output-format", "json")
	require.NoError(t, err)

	var report converter.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Converted, 1)
	assert.Equal(t, filepath.Join(out, "青稿_V2.0_软件说明书.docx"), report.Converted[0].OutputPath)
	assert.FileExists(t, report.Converted[0].OutputPath)
	assert.True(t, report.Converted[0].FrontMatter)
}

func TestCheckCmd(t *testing.T) {
	dir := t.TempDir()
	tpl := testutil.WriteTemplate(t, dir, testutil.AnchorTemplate())

	stdout, _, err := executeCommand(newRootCmd(), "check", tpl)
	require.ErrorIs(t, err, cli.ErrIssuesFound)
	assert.Contains(t, stdout, "RUN_SPLIT")

	_, _, err = executeCommand(newRootCmd(), "check", "--mode", "strict", tpl)
	require.Error(t, err)
	assert.NotErrorIs(t, err, cli.ErrIssuesFound)
}

func TestFixCmd(t *testing.T) {
	dir := t.TempDir()
	tpl := testutil.WriteTemplate(t, dir, testutil.AnchorTemplate())
	fixed := filepath.Join(dir, "clean.docx")

	stdout, _, err := executeCommand(newRootCmd(), "fix", tpl, "--out", fixed)
	require.NoError(t, err)
	assert.Contains(t, stdout, "merged 3 split placeholder(s)")
	assert.FileExists(t, fixed)

	stdout, _, err = executeCommand(newRootCmd(), "check", fixed)
	require.NoError(t, err)
	assert.Contains(t, stdout, "no issues")
}
