// Package language names the programming language of fenced code blocks
// for the optional language label shown above them.
package language

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
)

// LanguageDetector identifies the language of a code block.
//
// Implementations return a lowercase identifier such as "go" or "python",
// or "" when nothing could be determined. Detection failures are not
// errors; err is reserved for unexpected internal problems.
type LanguageDetector interface {
	// Detect names the language of code. hint is the info string of the
	// fence, possibly empty.
	Detect(code []byte, hint string) (lang string, confidence float64, err error)
}

// classifierCandidates bounds the content classifier to languages that
// commonly appear in software manuals.
var classifierCandidates = []string{
	"Go", "Python", "JavaScript", "TypeScript", "Java", "C", "C++", "C#",
	"Shell", "PowerShell", "SQL", "JSON", "YAML", "XML", "HTML", "CSS",
	"Rust", "Kotlin", "PHP", "Ruby", "Dockerfile", "INI", "TOML",
}

type goEnryDetector struct {
	overrides map[string]string
}

// NewGoEnryDetector returns a detector backed by go-enry. overrides maps a
// fence tag to a language ID and takes precedence over everything else.
// Keys and values are normalized to lowercase; blank entries are dropped.
func NewGoEnryDetector(overrides map[string]string) LanguageDetector {
	normalized := make(map[string]string, len(overrides))
	for tag, lang := range overrides {
		tag = strings.ToLower(strings.TrimSpace(tag))
		lang = strings.ToLower(strings.TrimSpace(lang))
		if tag == "" || lang == "" {
			continue
		}
		normalized[tag] = lang
	}
	return &goEnryDetector{overrides: normalized}
}

// Detect resolves the fence tag first, then falls back to shebang and
// modeline detection and finally a bounded content classifier.
func (d *goEnryDetector) Detect(code []byte, hint string) (string, float64, error) {
	tag := strings.ToLower(strings.TrimSpace(hint))
	if tag != "" {
		if lang, ok := d.overrides[tag]; ok {
			return lang, 1.0, nil
		}
		if lang, ok := enry.GetLanguageByAlias(tag); ok {
			return strings.ToLower(lang), 1.0, nil
		}
		return tag, 0.5, nil
	}
	if len(code) == 0 {
		return "", 0, nil
	}
	if lang, safe := enry.GetLanguageByShebang(code); safe && lang != "" {
		return strings.ToLower(lang), 0.9, nil
	}
	if lang, safe := enry.GetLanguageByModeline(code); safe && lang != "" {
		return strings.ToLower(lang), 0.9, nil
	}
	if lang, _ := enry.GetLanguageByClassifier(code, classifierCandidates); lang != "" {
		return strings.ToLower(lang), 0.4, nil
	}
	return "", 0, nil
}

// displayNames lists the labels used in generated manuals for common tags.
var displayNames = map[string]string{
	"py": "Python", "python": "Python",
	"js": "JavaScript", "javascript": "JavaScript",
	"ts": "TypeScript", "typescript": "TypeScript",
	"json": "JSON",
	"yaml": "YAML", "yml": "YAML",
	"bash": "Bash",
	"sh": "Shell", "shell": "Shell",
	"go": "Go", "golang": "Go",
	"sql": "SQL", "html": "HTML", "css": "CSS", "xml": "XML",
	"c++": "C++", "cpp": "C++", "c#": "C#", "csharp": "C#",
}

// DisplayName turns a language ID or fence tag into a human label.
func DisplayName(lang string) string {
	key := strings.ToLower(strings.TrimSpace(lang))
	if key == "" {
		return ""
	}
	if name, ok := displayNames[key]; ok {
		return name
	}
	if name, ok := enry.GetLanguageByAlias(key); ok {
		return name
	}
	r, size := utf8.DecodeRuneInString(key)
	return string(unicode.ToUpper(r)) + key[size:]
}
