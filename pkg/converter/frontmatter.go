package converter

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/placeholder"
)

// Only fenced YAML and TOML are accepted. The library's brace-delimited
// JSON format would swallow a document that opens with a {{placeholder}}.
var frontMatterFormats = []*frontmatter.Format{
	frontmatter.NewFormat("---", "---", yaml.Unmarshal),
	frontmatter.NewFormat("+++", "+++", toml.Unmarshal),
}

// splitFrontMatter separates a leading front matter block from the Markdown
// body. Keys that are valid placeholder names with scalar values become
// placeholder values; everything else is ignored. found is false when the
// source has no front matter, in which case body is src unchanged.
func splitFrontMatter(src []byte) (values map[string]string, body []byte, found bool, err error) {
	var meta map[string]any
	rest, err := frontmatter.Parse(bytes.NewReader(src), &meta, frontMatterFormats...)
	if err != nil {
		return nil, src, false, fmt.Errorf("parse front matter: %w", err)
	}
	if meta == nil && len(rest) == len(src) {
		return nil, src, false, nil
	}
	values = make(map[string]string, len(meta))
	for key, raw := range meta {
		if !placeholder.ValidName(key) {
			continue
		}
		if s, ok := scalarString(raw); ok {
			values[key] = s
		}
	}
	return values, rest, true, nil
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02"), true
		}
		return x.Format(time.RFC3339), true
	}
	return "", false
}

// mergeValues layers value maps; later maps win.
func mergeValues(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// sortedKeys is used wherever values are hashed or logged.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
