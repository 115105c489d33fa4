// Package encoding turns Markdown sources of any common charset into UTF-8
// and spots files that are not text at all.
package encoding

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	textenc "golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// DefaultFallback is tried when a source is neither valid UTF-8 nor marked
// by a byte order mark. Manuals edited on Chinese Windows are usually GBK,
// which GB18030 decodes as a superset.
const DefaultFallback = "gb18030"

const (
	sniffLen      = 512
	nullCheckLen  = 1024
	nullThreshold = 0.15
)

var textMIMEPrefixes = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/javascript",
	"application/octet-stream",
}

// EncodingHandler decodes Markdown sources and detects binary content.
type EncodingHandler interface {
	// DetectAndDecode returns content as UTF-8 together with the IANA name
	// of the charset it was read as. certain is false when the charset was
	// guessed. On a decoding error the original bytes are returned.
	DetectAndDecode(content []byte) (utf8Content []byte, detectedEncoding string, certain bool, err error)

	// IsBinary reports whether content looks like something other than text.
	IsBinary(content []byte) bool
}

type charsetHandler struct {
	fallback string
}

// NewGoCharsetEncodingHandler returns a handler that tries a byte order mark,
// then strict UTF-8, then fallback (DefaultFallback when empty).
func NewGoCharsetEncodingHandler(fallback string) EncodingHandler {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallback
	}
	return &charsetHandler{fallback: fallback}
}

func (h *charsetHandler) DetectAndDecode(content []byte) ([]byte, string, bool, error) {
	if len(content) == 0 {
		return content, "utf-8", true, nil
	}
	enc, name, certain := charset.DetermineEncoding(content, "text/plain")
	if certain && name != "utf-8" {
		return decode(content, enc, name, true)
	}
	if utf8.Valid(content) {
		return content, "utf-8", true, nil
	}
	if fb, fbName := charset.Lookup(h.fallback); fb != nil {
		return decode(content, fb, fbName, false)
	}
	return decode(content, enc, name, false)
}

func decode(content []byte, enc textenc.Encoding, name string, certain bool) ([]byte, string, bool, error) {
	if name == "" {
		name = "unknown"
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), content)
	if err != nil {
		return content, name, certain, fmt.Errorf("decode from %s: %w", name, err)
	}
	return out, name, certain, nil
}

// IsBinary sniffs the MIME type of the first bytes and counts NUL bytes.
func (h *charsetHandler) IsBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	head := content[:min(len(content), sniffLen)]
	if !isTextMIME(http.DetectContentType(head)) {
		return true
	}
	probe := content[:min(len(content), nullCheckLen)]
	nulls := bytes.Count(probe, []byte{0})
	return float64(nulls)/float64(len(probe)) > nullThreshold
}

func isTextMIME(contentType string) bool {
	mime := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for _, prefix := range textMIMEPrefixes {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return strings.HasSuffix(mime, "+xml") || strings.HasSuffix(mime, "+json")
}
