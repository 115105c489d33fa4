package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"text/template"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/cache"
	tpl "github.com/CharlieHasAHeart/CyanScript/pkg/converter/template"
)

// Engine converts every Markdown file under Options.InputPath with one
// validated template, using a bounded pool of workers.
type Engine struct {
	opts         *Options
	logger       *slog.Logger
	cacheManager CacheManager
	processor    *FileProcessor
	aggregator   *reportAggregator
	ctx          context.Context
	concurrency  int
	singleFile   bool
	fatal        atomic.Bool
}

// NewEngine validates opts, loads and checks the template and prepares the
// cache and Git filter. Template problems surface here, before any
// Markdown is read.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}
	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))

	if opts.InputPath == "" || opts.OutputPath == "" || opts.TemplatePath == "" {
		return nil, fmt.Errorf("%w: input, output and template paths are required", ErrConfigValidation)
	}
	absInput, err := filepath.Abs(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: input path: %w", ErrConfigValidation, err)
	}
	opts.InputPath = absInput
	inputInfo, err := os.Stat(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot access input path '%s': %w", ErrConfigValidation, opts.InputPath, err)
	}
	singleFile := !inputInfo.IsDir()

	templateBytes, err := os.ReadFile(opts.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: template '%s': %w", ErrReadFailed, opts.TemplatePath, err)
	}
	conv, err := NewConverter(templateBytes, opts)
	if err != nil {
		return nil, fmt.Errorf("template '%s': %w", opts.TemplatePath, err)
	}

	if opts.NameTemplate == nil {
		if opts.NameTemplate, err = NameTemplateFor(opts.OutputNameTemplate, singleFile); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
		}
	}

	configHash, err := calculateConfigHash(&opts, templateBytes)
	if err != nil {
		return nil, err
	}

	outputDir := opts.OutputPath
	if singleFile && filepath.Ext(outputDir) == ".docx" {
		outputDir = filepath.Dir(outputDir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: cannot create output directory '%s': %w", ErrMkdirFailed, outputDir, err)
	}

	cacheMgr, err := setupCache(&opts, outputDir, logger)
	if err != nil {
		return nil, err
	}

	if opts.GitDiffMode != "" && opts.GitDiffMode != GitDiffModeNone {
		if opts.GitClient == nil {
			return nil, fmt.Errorf("%w: GitClient required for git diff mode '%s'", ErrConfigValidation, opts.GitDiffMode)
		}
		if opts.GitChangedFiles == nil && !singleFile {
			files, err := opts.GitClient.GetChangedFiles(opts.InputPath, string(opts.GitDiffMode), opts.GitConfig.SinceRef)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrGitOperation, err)
			}
			opts.GitChangedFiles = make(map[string]struct{}, len(files))
			for _, f := range files {
				opts.GitChangedFiles[filepath.ToSlash(f)] = struct{}{}
			}
			logger.Info("Git diff filter prepared", slog.String("mode", string(opts.GitDiffMode)), slog.Int("changed", len(files)))
		}
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
		opts.Concurrency = concurrency
		logger.Debug("Concurrency auto-detected", slog.Int("count", concurrency))
	}

	e := &Engine{
		opts:         &opts,
		logger:       logger,
		cacheManager: cacheMgr,
		aggregator:   newReportAggregator(),
		ctx:          ctx,
		concurrency:  concurrency,
		singleFile:   singleFile,
	}
	e.processor = NewFileProcessor(e.opts, opts.Logger, conv, cacheMgr, opts.NameTemplate, configHash, singleFile)
	return e, nil
}

// setupCache resolves the cache manager for a run. A cache that cannot be
// read is treated as cold rather than failing the run.
func setupCache(opts *Options, outputDir string, logger *slog.Logger) (CacheManager, error) {
	if !opts.CacheEnabled {
		return &NoOpCacheManager{}, nil
	}
	if opts.CacheFilePath == "" {
		opts.CacheFilePath = filepath.Join(outputDir, CacheFileName)
	}
	if opts.ClearCache {
		if err := cache.Remove(opts.CacheFilePath); err != nil {
			logger.Warn("Failed to clear cache", slog.String("path", opts.CacheFilePath), slog.String("error", err.Error()))
		} else {
			logger.Info("Cache cleared", slog.String("path", opts.CacheFilePath))
		}
	}
	mgr := opts.CacheManager
	if mgr == nil {
		version := opts.AppVersion
		if version == "" {
			version = "dev"
		}
		mgr = cache.NewFileCacheManager(opts.Logger, version, cache.DefaultFormat)
	}
	if err := mgr.Load(opts.CacheFilePath); err != nil {
		logger.Warn("Cache unavailable, continuing without it", slog.String("path", opts.CacheFilePath), slog.String("error", err.Error()))
		opts.CacheEnabled = false
		return &NoOpCacheManager{}, nil
	}
	return mgr, nil
}

// Run walks the input and converts every selected file. The report is
// always returned; the error is set when the run was cancelled, the walk
// failed or a conversion failed under OnErrorStop.
func (e *Engine) Run() (report Report, finalErr error) {
	start := time.Now()
	e.logger.Info("Starting conversion run",
		slog.Int("concurrency", e.concurrency),
		slog.Bool("cacheEnabled", e.opts.CacheEnabled),
		slog.Bool("singleFile", e.singleFile),
	)

	g, gctx := errgroup.WithContext(e.ctx)
	g.SetLimit(e.concurrency)
	results := make(chan interface{}, e.concurrency)
	aggregatorDone := make(chan struct{})
	go e.aggregateResults(results, aggregatorDone)

	walker, err := NewWalker(e.opts, func(absPath string) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		g.Go(func() error { return e.processOne(gctx, absPath, results) })
		return nil
	}, func(info SkippedInfo) { results <- info }, e.opts.Logger)
	if err != nil {
		close(results)
		<-aggregatorDone
		e.fatal.Store(true)
		return e.finish(start, 0, fmt.Errorf("walker initialization failed: %w", err))
	}

	walkErr := walker.StartWalk(gctx)
	groupErr := g.Wait()
	close(results)
	<-aggregatorDone

	switch {
	case groupErr != nil:
		e.fatal.Store(true)
		finalErr = fmt.Errorf("processing stopped due to fatal error: %w", groupErr)
	case e.ctx.Err() != nil:
		e.fatal.Store(true)
		e.logger.Info("Conversion run cancelled", slog.String("reason", e.ctx.Err().Error()))
		finalErr = e.ctx.Err()
	case walkErr != nil:
		e.fatal.Store(true)
		finalErr = walkErr
	}
	return e.finish(start, walker.Discovered(), finalErr)
}

// processOne converts one file and forwards the result. Under OnErrorStop a
// failure is returned so the group cancels the remaining work.
func (e *Engine) processOne(ctx context.Context, absPath string, results chan<- interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic recovered in worker", slog.String("path", absPath), slog.Any("panic", r))
			results <- ErrorInfo{Path: e.processor.relPath(absPath), Error: fmt.Sprintf("panic: %v", r), IsFatal: true}
			err = fmt.Errorf("panic while converting %s: %v", absPath, r)
		}
	}()
	if ctx.Err() != nil {
		return nil
	}
	result, status, procErr := e.processor.ProcessFile(ctx, absPath)
	if procErr == nil {
		results <- result
		return nil
	}
	if errors.Is(procErr, context.Canceled) || errors.Is(procErr, context.DeadlineExceeded) {
		return nil
	}
	fatal := status == StatusFailed && e.opts.OnErrorMode == OnErrorStop
	info, ok := result.(ErrorInfo)
	if !ok {
		info = ErrorInfo{Path: e.processor.relPath(absPath), Error: procErr.Error()}
	}
	info.IsFatal = fatal
	results <- info
	if fatal {
		return procErr
	}
	return nil
}

func (e *Engine) aggregateResults(results <-chan interface{}, done chan<- struct{}) {
	defer close(done)
	for result := range results {
		switch r := result.(type) {
		case FileInfo:
			e.aggregator.addConverted(r)
		case SkippedInfo:
			e.aggregator.addSkipped(r)
		case ErrorInfo:
			e.aggregator.addError(r)
		default:
			e.logger.Warn("Aggregator received unknown result type", slog.String("type", fmt.Sprintf("%T", result)))
		}
	}
}

// finish persists the cache, builds the report and fires OnRunComplete.
func (e *Engine) finish(start time.Time, discovered int, finalErr error) (Report, error) {
	if e.opts.CacheEnabled {
		if err := e.cacheManager.Persist(e.opts.CacheFilePath); err != nil {
			e.logger.Error("Failed to persist cache index", slog.String("path", e.opts.CacheFilePath), slog.String("error", err.Error()))
			if finalErr == nil {
				finalErr = fmt.Errorf("%w: %w", ErrCachePersist, err)
			}
		}
	}
	report := e.aggregator.getReport(e.opts, start, discovered, e.fatal.Load())
	e.logger.Info("Conversion run finished",
		slog.Duration("duration", time.Since(start)),
		slog.Int("converted", report.Summary.ConvertedCount),
		slog.Int("cached", report.Summary.CachedCount),
		slog.Int("skipped", report.Summary.SkippedCount),
		slog.Int("warnings", report.Summary.WarningCount),
		slog.Int("errors", report.Summary.ErrorCount),
	)
	if err := e.opts.EventHooks.OnRunComplete(report); err != nil {
		e.logger.Warn("OnRunComplete hook returned an error", slog.String("error", err.Error()))
	}
	return report, finalErr
}

// GenerateDocuments is the one-call entry point for a batch run.
func GenerateDocuments(ctx context.Context, opts Options) (Report, error) {
	engine, err := NewEngine(ctx, opts)
	if err != nil {
		return Report{}, err
	}
	return engine.Run()
}

// NameTemplateFor parses text, or the default naming convention for a
// single file or a directory run when text is empty.
func NameTemplateFor(text string, singleFile bool) (*template.Template, error) {
	if text == "" {
		text = tpl.DefaultBatch
		if singleFile {
			text = tpl.DefaultSingle
		}
	}
	return tpl.Parse("output", text)
}

func sortByPath[T any](items []T, key func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int { return strings.Compare(key(a), key(b)) })
}

type reportAggregator struct {
	mu           sync.Mutex
	converted    []FileInfo
	skipped      []SkippedInfo
	errors       []ErrorInfo
	cachedCount  int
	warningCount int
}

func newReportAggregator() *reportAggregator {
	return &reportAggregator{
		converted: make([]FileInfo, 0, 64),
		skipped:   make([]SkippedInfo, 0, 16),
		errors:    make([]ErrorInfo, 0, 8),
	}
}

func (a *reportAggregator) addConverted(info FileInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.converted = append(a.converted, info)
	if info.CacheStatus == CacheStatusHit {
		a.cachedCount++
	}
	a.warningCount += len(info.Warnings)
}

func (a *reportAggregator) addSkipped(info SkippedInfo) {
	a.mu.Lock()
	a.skipped = append(a.skipped, info)
	a.mu.Unlock()
}

func (a *reportAggregator) addError(info ErrorInfo) {
	a.mu.Lock()
	a.errors = append(a.errors, info)
	a.mu.Unlock()
}

// getReport copies the collected results. Entries are sorted by path so
// reports of concurrent runs compare equal.
func (a *reportAggregator) getReport(opts *Options, start time.Time, discovered int, fatal bool) Report {
	a.mu.Lock()
	converted := append([]FileInfo(nil), a.converted...)
	skipped := append([]SkippedInfo(nil), a.skipped...)
	errs := append([]ErrorInfo(nil), a.errors...)
	cached, warnings := a.cachedCount, a.warningCount
	a.mu.Unlock()

	sortByPath(converted, func(f FileInfo) string { return f.Path })
	sortByPath(skipped, func(s SkippedInfo) string { return s.Path })
	sortByPath(errs, func(e ErrorInfo) string { return e.Path })

	scanned := discovered
	if n := len(converted) + len(skipped) + len(errs); n > scanned {
		scanned = n
	}
	return Report{
		Summary: ReportSummary{
			InputPath:          opts.InputPath,
			OutputPath:         opts.OutputPath,
			TemplatePath:       opts.TemplatePath,
			ProfileUsed:        opts.ProfileName,
			ConfigFilePath:     opts.ConfigFilePath,
			TotalFilesScanned:  scanned,
			ConvertedCount:     len(converted) - cached,
			CachedCount:        cached,
			SkippedCount:       len(skipped),
			WarningCount:       warnings,
			ErrorCount:         len(errs),
			FatalErrorOccurred: fatal,
			DurationSeconds:    time.Since(start).Seconds(),
			CacheEnabled:       opts.CacheEnabled,
			Concurrency:        opts.Concurrency,
			Timestamp:          time.Now().UTC(),
			SchemaVersion:      ReportSchemaVersion,
		},
		Converted:    converted,
		SkippedFiles: skipped,
		Errors:       errs,
	}
}
