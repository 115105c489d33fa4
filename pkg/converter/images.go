package converter

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DirImageSource opens images referenced by a Markdown file relative to the
// directory that file lives in. Absolute paths are used as they are.
type DirImageSource struct {
	BaseDir string
}

// NewDirImageSource returns an image source rooted at baseDir.
func NewDirImageSource(baseDir string) *DirImageSource {
	return &DirImageSource{BaseDir: baseDir}
}

// Open resolves imagePath and opens it. Remote and data URLs are not
// fetched and report ErrMissingResource, as does a file that does not exist.
func (s *DirImageSource) Open(imagePath string) (io.ReadCloser, error) {
	p := strings.TrimSpace(imagePath)
	if p == "" {
		return nil, fmt.Errorf("%w: empty image path", ErrMissingResource)
	}
	if u, err := url.Parse(p); err == nil && len(u.Scheme) > 1 {
		if u.Scheme != "file" {
			return nil, fmt.Errorf("%w: %s images are not fetched: %s", ErrMissingResource, u.Scheme, p)
		}
		p = u.Path
	}
	candidates := []string{p}
	if unescaped, err := url.PathUnescape(p); err == nil && unescaped != p {
		candidates = append(candidates, unescaped)
	}
	var lastErr error
	for _, c := range candidates {
		full := filepath.FromSlash(c)
		if !filepath.IsAbs(full) {
			full = filepath.Join(s.BaseDir, full)
		}
		f, err := os.Open(full)
		if err == nil {
			return f, nil
		}
		lastErr = err
		if !errors.Is(err, os.ErrNotExist) {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrMissingResource, lastErr)
}
