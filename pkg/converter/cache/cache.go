// Package cache remembers which Markdown sources were already converted
// with the current template and options, so an unchanged batch run can skip
// them.
package cache

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SchemaVersion is bumped whenever Entry or the file layout changes.
const SchemaVersion = "1.0"

// Serialization formats for the index file.
const (
	FormatGob     = "gob"
	FormatJSON    = "json"
	DefaultFormat = FormatGob
)

var (
	// ErrCacheLoad indicates the index file exists but could not be opened.
	// Undecodable or outdated content is not an error; it is a cold cache.
	ErrCacheLoad = errors.New("failed to load cache index")

	// ErrCachePersist indicates the index could not be written back.
	ErrCachePersist = errors.New("failed to persist cache index")
)

// Entry is the state recorded for one converted source.
type Entry struct {
	SourceModTime    time.Time `json:"sourceModTime"`
	SourceHash       string    `json:"sourceHash"`
	ConfigHash       string    `json:"configHash"`
	OutputHash       string    `json:"outputHash"`
	SchemaVersion    string    `json:"schemaVersion"`
	ConverterVersion string    `json:"converterVersion"`
}

// header opens every index file.
type header struct {
	SchemaVersion    string `json:"schemaVersion"`
	ConverterVersion string `json:"converterVersion"`
}

type jsonFile struct {
	Header header           `json:"header"`
	Index  map[string]Entry `json:"index"`
}

// FileCacheManager keeps the index in memory and persists it to one file.
// Check may run concurrently with Update.
type FileCacheManager struct {
	mu               sync.RWMutex
	index            map[string]Entry
	logger           *slog.Logger
	converterVersion string
	format           string
}

// NewFileCacheManager returns an empty manager. An empty converterVersion is
// treated as "dev", which accepts entries from any build.
func NewFileCacheManager(handler slog.Handler, converterVersion, format string) *FileCacheManager {
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	format = strings.ToLower(format)
	if format != FormatJSON {
		format = FormatGob
	}
	if converterVersion == "" {
		converterVersion = "dev"
	}
	return &FileCacheManager{
		index:            make(map[string]Entry),
		converterVersion: converterVersion,
		format:           format,
		logger: slog.New(handler).With(
			slog.String("component", "cacheManager"),
			slog.String("format", format),
		),
	}
}

// Load replaces the in-memory index with the content of cachePath. A missing,
// corrupt or outdated file leaves the index empty and returns nil.
func (c *FileCacheManager) Load(cachePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]Entry)

	f, err := os.Open(cachePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("No cache index yet", slog.String("path", cachePath))
			return nil
		}
		return fmt.Errorf("%w: open %s: %w", ErrCacheLoad, cachePath, err)
	}
	defer f.Close()

	hdr, index, err := c.decode(f)
	if err != nil {
		c.logger.Warn("Cache index unreadable, starting cold", slog.String("path", cachePath), slog.String("error", err.Error()))
		return nil
	}
	if hdr.SchemaVersion != SchemaVersion {
		c.logger.Warn("Cache schema changed, starting cold", slog.String("path", cachePath), slog.String("found", hdr.SchemaVersion))
		return nil
	}
	if !c.compatible(hdr.ConverterVersion) {
		c.logger.Warn("Cache written by another version, starting cold", slog.String("path", cachePath), slog.String("found", hdr.ConverterVersion))
		return nil
	}
	if index != nil {
		c.index = index
	}
	c.logger.Debug("Cache index loaded", slog.String("path", cachePath), slog.Int("entries", len(c.index)))
	return nil
}

func (c *FileCacheManager) decode(r io.Reader) (header, map[string]Entry, error) {
	if c.format == FormatJSON {
		var file jsonFile
		if err := json.NewDecoder(r).Decode(&file); err != nil {
			return header{}, nil, err
		}
		return file.Header, file.Index, nil
	}
	dec := gob.NewDecoder(r)
	var hdr header
	if err := dec.Decode(&hdr); err != nil {
		return header{}, nil, err
	}
	var index map[string]Entry
	if err := dec.Decode(&index); err != nil && !errors.Is(err, io.EOF) {
		return header{}, nil, err
	}
	return hdr, index, nil
}

func (c *FileCacheManager) compatible(version string) bool {
	return c.converterVersion == "dev" || version == "dev" || version == c.converterVersion
}

// Check reports whether filePath was converted from the same content, at the
// same modification time, under the same configuration. On a hit it returns
// the hash of the document produced back then.
func (c *FileCacheManager) Check(filePath string, modTime time.Time, sourceHash, configHash string) (bool, string) {
	c.mu.RLock()
	entry, ok := c.index[filePath]
	c.mu.RUnlock()
	if !ok {
		return false, ""
	}
	switch {
	case entry.SchemaVersion != SchemaVersion, !c.compatible(entry.ConverterVersion):
		return false, ""
	case !entry.SourceModTime.Equal(modTime), entry.SourceHash != sourceHash, entry.ConfigHash != configHash:
		return false, ""
	}
	return true, entry.OutputHash
}

// Update records a successful conversion.
func (c *FileCacheManager) Update(filePath string, modTime time.Time, sourceHash, configHash, outputHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index[filePath] = Entry{
		SourceModTime:    modTime,
		SourceHash:       sourceHash,
		ConfigHash:       configHash,
		OutputHash:       outputHash,
		SchemaVersion:    SchemaVersion,
		ConverterVersion: c.converterVersion,
	}
	return nil
}

// Len returns the number of entries in memory.
func (c *FileCacheManager) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}

// Persist writes the index atomically: a temporary file in the same
// directory is renamed over cachePath. An empty index removes the file.
func (c *FileCacheManager) Persist(cachePath string) error {
	c.mu.RLock()
	snapshot := make(map[string]Entry, len(c.index))
	for k, v := range c.index {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	if len(snapshot) == 0 {
		if err := os.Remove(cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Failed to remove empty cache index", slog.String("path", cachePath), slog.String("error", err.Error()))
		}
		return nil
	}

	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrCachePersist, dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(cachePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: temp file in %s: %w", ErrCachePersist, dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hdr := header{SchemaVersion: SchemaVersion, ConverterVersion: c.converterVersion}
	if err := c.encode(tmp, hdr, snapshot); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: encode %s: %w", ErrCachePersist, c.format, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrCachePersist, tmpName, err)
	}
	if err := os.Rename(tmpName, cachePath); err != nil {
		return fmt.Errorf("%w: rename to %s: %w", ErrCachePersist, cachePath, err)
	}
	c.logger.Debug("Cache index persisted", slog.String("path", cachePath), slog.Int("entries", len(snapshot)))
	return nil
}

func (c *FileCacheManager) encode(w io.Writer, hdr header, index map[string]Entry) error {
	if c.format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonFile{Header: hdr, Index: index})
	}
	enc := gob.NewEncoder(w)
	if err := enc.Encode(hdr); err != nil {
		return err
	}
	return enc.Encode(index)
}

// Remove deletes the index file if present.
func Remove(cachePath string) error {
	if err := os.Remove(cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %w", ErrCachePersist, cachePath, err)
	}
	return nil
}
