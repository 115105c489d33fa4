package converter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/git"
	tpl "github.com/CharlieHasAHeart/CyanScript/pkg/converter/template"
)

// FileProcessor runs the per-file pipeline of a batch: read, cache check,
// value collection, conversion and write.
type FileProcessor struct {
	opts         *Options
	logger       *slog.Logger
	converter    *Converter
	cacheManager CacheManager
	nameTemplate *template.Template
	configHash   string
	singleFile   bool
}

// NewFileProcessor wires a processor. singleFile is true when InputPath
// names one Markdown file rather than a directory.
func NewFileProcessor(opts *Options, handler slog.Handler, conv *Converter, cacheMgr CacheManager, nameTmpl *template.Template, configHash string, singleFile bool) *FileProcessor {
	if cacheMgr == nil {
		cacheMgr = &NoOpCacheManager{}
	}
	return &FileProcessor{
		opts:         opts,
		logger:       slog.New(handler).With(slog.String("component", "processor")),
		converter:    conv,
		cacheManager: cacheMgr,
		nameTemplate: nameTmpl,
		configHash:   configHash,
		singleFile:   singleFile,
	}
}

// ProcessFile converts the Markdown file at absPath. The returned result is
// a FileInfo, SkippedInfo or ErrorInfo; err is non-nil exactly when status
// is StatusFailed.
func (p *FileProcessor) ProcessFile(ctx context.Context, absPath string) (result interface{}, status Status, err error) {
	start := time.Now()
	relPath := p.relPath(absPath)
	logger := p.logger.With(slog.String("path", relPath))
	p.notify(relPath, StatusProcessing, "", 0)

	defer func() {
		msg := ""
		switch r := result.(type) {
		case ErrorInfo:
			msg = r.Error
		case SkippedInfo:
			msg = r.Reason
		case FileInfo:
			if n := len(r.Warnings); n > 0 {
				msg = fmt.Sprintf("%d warning(s)", n)
			}
		}
		p.notify(relPath, status, msg, time.Since(start))
	}()

	fail := func(e error) (interface{}, Status, error) {
		logger.Error("Conversion failed", slog.String("error", e.Error()))
		return ErrorInfo{Path: relPath, Error: e.Error()}, StatusFailed, e
	}

	info, statErr := os.Stat(absPath)
	if statErr != nil {
		return fail(fmt.Errorf("%w: %w", ErrStatFailed, statErr))
	}
	source, readErr := os.ReadFile(absPath)
	if readErr != nil {
		return fail(fmt.Errorf("%w: %w", ErrReadFailed, readErr))
	}
	if p.converter.encoding.IsBinary(source) {
		logger.Info("Skipping binary file")
		return SkippedInfo{Path: relPath, Reason: SkipReasonBinary, Details: "content is not text"}, StatusSkipped, nil
	}

	values, gitInfo := p.collectValues(absPath, logger)
	outRel, nameErr := p.outputName(relPath, values, gitInfo, start)
	if nameErr != nil {
		return fail(fmt.Errorf("%w: %w", ErrConfigValidation, nameErr))
	}
	outPath := p.outputPath(outRel)

	sourceHash := hashBytes(source)
	cacheStatus := CacheStatusDisabled
	if p.opts.CacheEnabled {
		cacheStatus = CacheStatusMiss
		if !p.opts.IgnoreCacheRead {
			if hit, outputHash := p.cacheManager.Check(relPath, info.ModTime(), sourceHash, p.configHash); hit && outputMatches(outPath, outputHash) {
				logger.Info("Cache hit", slog.String("output", outPath))
				return FileInfo{
					Path:        relPath,
					OutputPath:  outPath,
					SizeBytes:   info.Size(),
					ModTime:     info.ModTime(),
					CacheStatus: CacheStatusHit,
					DurationMs:  time.Since(start).Milliseconds(),
				}, StatusCached, nil
			}
		}
	}

	var images ImageSource = NewDirImageSource(filepath.Dir(absPath))
	if p.opts.Images != nil {
		images = p.opts.Images(absPath)
	}
	res, convErr := p.converter.Convert(ctx, Request{
		Name:     relPath,
		Markdown: source,
		Values:   values,
		Images:   images,
	})
	if convErr != nil {
		return fail(convErr)
	}

	data, err := res.Document.Bytes()
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrWriteFailed, err))
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrMkdirFailed, err))
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrWriteFailed, err))
	}
	outputHash := hashBytes(data)
	if p.opts.CacheEnabled {
		if err := p.cacheManager.Update(relPath, info.ModTime(), sourceHash, p.configHash, outputHash); err != nil {
			logger.Warn("Failed to update cache entry", slog.String("error", err.Error()))
		}
	}
	logger.Info("Document written", slog.String("output", outPath), slog.Int("warnings", len(res.Warnings)))

	return FileInfo{
		Path:        relPath,
		OutputPath:  outPath,
		Encoding:    res.Encoding,
		SizeBytes:   info.Size(),
		ModTime:     info.ModTime(),
		Blocks:      res.Blocks,
		Images:      res.Images,
		Tables:      res.Tables,
		Resolved:    res.Placeholders.Matches,
		SplitTokens: res.Placeholders.Split,
		CacheStatus: cacheStatus,
		DurationMs:  time.Since(start).Milliseconds(),
		FrontMatter: res.FrontMatter,
		Warnings:    res.Warnings,
	}, StatusSuccess, nil
}

func (p *FileProcessor) notify(relPath string, status Status, msg string, d time.Duration) {
	if p.opts.EventHooks == nil {
		return
	}
	if err := p.opts.EventHooks.OnFileStatusUpdate(relPath, status, msg, d); err != nil {
		p.logger.Warn("OnFileStatusUpdate hook failed", slog.String("path", relPath), slog.String("error", err.Error()))
	}
}

func (p *FileProcessor) relPath(absPath string) string {
	if p.singleFile {
		return filepath.Base(absPath)
	}
	rel, err := filepath.Rel(p.opts.InputPath, absPath)
	if err != nil || rel == "." {
		return filepath.Base(absPath)
	}
	return filepath.ToSlash(rel)
}

// collectValues layers Git metadata, configured values and the software
// name and version. Later layers win.
func (p *FileProcessor) collectValues(absPath string, logger *slog.Logger) (map[string]string, *tpl.GitInfo) {
	var gitValues map[string]string
	var info *tpl.GitInfo
	if p.opts.GitMetadataEnabled && p.opts.GitClient != nil {
		repo := p.opts.InputPath
		if p.singleFile {
			repo = filepath.Dir(absPath)
		}
		meta, err := p.opts.GitClient.GetFileMetadata(repo, absPath)
		if err != nil {
			logger.Warn("Git metadata unavailable", slog.String("error", err.Error()))
		} else if len(meta) > 0 {
			info = &tpl.GitInfo{
				Commit:      meta[git.MetaCommit],
				Author:      meta[git.MetaAuthor],
				AuthorEmail: meta[git.MetaAuthorEmail],
				DateISO:     meta[git.MetaDate],
			}
			gitValues = map[string]string{
				ValueGitCommit: info.Commit,
				ValueGitAuthor: info.Author,
				ValueGitDate:   info.DateISO,
			}
		}
	}
	identity := map[string]string{}
	if p.opts.SoftwareName != "" {
		identity[ValueSoftwareName] = p.opts.SoftwareName
	}
	if p.opts.Version != "" {
		identity[ValueVersion] = p.opts.Version
	}
	return mergeValues(gitValues, p.opts.Values, identity), info
}

func (p *FileProcessor) outputName(relPath string, values map[string]string, gitInfo *tpl.GitInfo, now time.Time) (string, error) {
	if p.singleFile && strings.EqualFold(filepath.Ext(p.opts.OutputPath), ".docx") {
		return "", nil
	}
	exec := p.opts.NameExecutor
	if exec == nil {
		exec = tpl.NewGoTemplateExecutor()
	}
	base := path.Base(relPath)
	data := &tpl.NameData{
		SoftwareName: values[ValueSoftwareName],
		Version:      values[ValueVersion],
		Stem:         strings.TrimSuffix(base, path.Ext(base)),
		SourcePath:   relPath,
		Values:       values,
		GitInfo:      gitInfo,
		Now:          now,
	}
	name, err := tpl.Render(exec, p.nameTemplate, data)
	if err != nil {
		return "", err
	}
	if dir := path.Dir(relPath); !p.singleFile && dir != "." {
		name = path.Join(dir, name)
	}
	return name, nil
}

func (p *FileProcessor) outputPath(outRel string) string {
	if outRel == "" {
		return p.opts.OutputPath
	}
	return filepath.Join(p.opts.OutputPath, filepath.FromSlash(outRel))
}

func outputMatches(outPath, wantHash string) bool {
	data, err := os.ReadFile(outPath)
	if err != nil {
		return false
	}
	return hashBytes(data) == wantHash
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// configFingerprint is everything besides the source that shapes a document.
type configFingerprint struct {
	AppVersion   string            `json:"appVersion"`
	TemplateHash string            `json:"templateHash"`
	Document     DocumentOptions   `json:"document"`
	Values       map[string]string `json:"values"`
	SoftwareName string            `json:"softwareName"`
	Version      string            `json:"version"`
	OutputName   string            `json:"outputName"`
	GitMetadata  bool              `json:"gitMetadata"`
	Encoding     string            `json:"encoding"`
	Languages    map[string]string `json:"languages"`
}

// calculateConfigHash fingerprints the options and template bytes for the
// cache. encoding/json sorts map keys, so the result is stable.
func calculateConfigHash(opts *Options, template []byte) (string, error) {
	fp := configFingerprint{
		AppVersion:   opts.AppVersion,
		TemplateHash: hashBytes(template),
		Document:     opts.Document,
		Values:       opts.Values,
		SoftwareName: opts.SoftwareName,
		Version:      opts.Version,
		OutputName:   opts.OutputNameTemplate,
		GitMetadata:  opts.GitMetadataEnabled,
		Encoding:     opts.DefaultEncoding,
		Languages:    opts.LanguageMappingsOverride,
	}
	data, err := json.Marshal(fp)
	if err != nil {
		return "", errors.Join(ErrConfigHashCalculation, err)
	}
	return hashBytes(data), nil
}
