package language_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/language"
)

func TestNewGoEnryDetector_Overrides(t *testing.T) {
	detector := language.NewGoEnryDetector(map[string]string{
		" PSEUDO ": "Pseudocode",
		"":         "ignored",
		"blank":    " ",
	})
	require.NotNil(t, detector)

	lang, conf, err := detector.Detect([]byte("x = 1"), "pseudo")
	require.NoError(t, err)
	assert.Equal(t, "pseudocode", lang)
	assert.Equal(t, 1.0, conf)

	lang, _, err = detector.Detect([]byte("x"), "blank")
	require.NoError(t, err)
	assert.Equal(t, "blank", lang, "blank override values are dropped, the tag itself is kept")
}

func TestDetect_ByAlias(t *testing.T) {
	detector := language.NewGoEnryDetector(nil)
	lang, conf, err := detector.Detect(nil, "golang")
	require.NoError(t, err)
	assert.Equal(t, "go", lang)
	assert.Equal(t, 1.0, conf)
}

func TestDetect_Shebang(t *testing.T) {
	detector := language.NewGoEnryDetector(nil)
	lang, _, err := detector.Detect([]byte("#!/usr/bin/env python3\nprint('hi')\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "python", lang)
}

func TestDetect_Empty(t *testing.T) {
	detector := language.NewGoEnryDetector(nil)
	lang, conf, err := detector.Detect(nil, "")
	require.NoError(t, err)
	assert.Empty(t, lang)
	assert.Zero(t, conf)
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"py":         "Python",
		"JS":         "JavaScript",
		"typescript": "TypeScript",
		"yml":        "YAML",
		"sh":         "Shell",
		"bash":       "Bash",
		"json":       "JSON",
		"":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, language.DisplayName(in), "input %q", in)
	}
	assert.Equal(t, "Rust", language.DisplayName("rust"))
	assert.Equal(t, "Mylang", language.DisplayName("mylang"))
}
