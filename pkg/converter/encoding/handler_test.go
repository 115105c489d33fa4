package encoding_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/encoding"
)

func encodeBytes(t *testing.T, text string, enc transform.Transformer) []byte {
	t.Helper()
	out, _, err := transform.Bytes(enc, []byte(text))
	require.NoError(t, err)
	return out
}

func TestDetectAndDecode_UTF8(t *testing.T) {
	handler := encoding.NewGoCharsetEncodingHandler("")
	input := []byte("# 标题\n\n正文 {{version}}\n")
	out, name, certain, err := handler.DetectAndDecode(input)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", name)
	assert.True(t, certain)
	assert.Equal(t, input, out)
}

func TestDetectAndDecode_Empty(t *testing.T) {
	handler := encoding.NewGoCharsetEncodingHandler("")
	out, name, certain, err := handler.DetectAndDecode(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "utf-8", name)
	assert.True(t, certain)
}

func TestDetectAndDecode_GBKFallsBackToGB18030(t *testing.T) {
	handler := encoding.NewGoCharsetEncodingHandler("")
	input := encodeBytes(t, "## 系统概述\n软件说明", simplifiedchinese.GBK.NewEncoder())

	out, name, certain, err := handler.DetectAndDecode(input)
	require.NoError(t, err)
	assert.Equal(t, "gb18030", name)
	assert.False(t, certain, "a fallback is a guess")
	assert.Equal(t, "## 系统概述\n软件说明", string(out))
}

func TestDetectAndDecode_ConfiguredFallback(t *testing.T) {
	handler := encoding.NewGoCharsetEncodingHandler("latin1")
	input := encodeBytes(t, "café", charmap.Windows1252.NewEncoder())

	out, _, certain, err := handler.DetectAndDecode(input)
	require.NoError(t, err)
	assert.False(t, certain)
	assert.Equal(t, "café", string(out))
}

func TestDetectAndDecode_UTF16WithBOM(t *testing.T) {
	handler := encoding.NewGoCharsetEncodingHandler("")
	input := encodeBytes(t, "# Title", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder())

	out, name, certain, err := handler.DetectAndDecode(input)
	require.NoError(t, err)
	assert.Equal(t, "utf-16le", name)
	assert.True(t, certain)
	assert.Contains(t, string(out), "# Title")
}

func TestIsBinary(t *testing.T) {
	handler := encoding.NewGoCharsetEncodingHandler("")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	tests := map[string]struct {
		in   []byte
		want bool
	}{
		"empty":      {nil, false},
		"markdown":   {[]byte("# Heading\n\n- item\n"), false},
		"png":        {png, true},
		"many nulls": {append([]byte("text"), bytes.Repeat([]byte{0}, 200)...), true},
		"few nulls":  {append(bytes.Repeat([]byte("a"), 200), 0), false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, handler.IsBinary(tc.in))
		})
	}
}
