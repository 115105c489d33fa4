package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateDummyFile writes content to path, creating parent directories.
func CreateDummyFile(t *testing.T, path string, content string) {
	t.Helper()
	full := filepath.Clean(path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755), "create directory for %s", full)
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644), "write %s", full)
}

// WriteTemplate stores a template package built from spec under dir and
// returns its path.
func WriteTemplate(t *testing.T, dir string, spec TemplateSpec) string {
	t.Helper()
	p := filepath.Join(dir, "template.docx")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(p, BuildDocx(t, spec), 0o644))
	return p
}

// DiscardHandler is a slog handler for tests that do not inspect logs.
func DiscardHandler() slog.Handler {
	return slog.NewTextHandler(io.Discard, nil)
}
