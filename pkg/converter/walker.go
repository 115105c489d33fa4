package converter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CharlieHasAHeart/CyanScript/pkg/util"
)

// DispatchFunc receives the absolute path of every Markdown file the walk
// selects. Returning an error stops the walk.
type DispatchFunc func(absPath string) error

// SkipFunc receives every Markdown file the walk filters out.
type SkipFunc func(info SkippedInfo)

// Walker traverses the input, applies ignore rules and the Git diff filter,
// and hands Markdown files to a DispatchFunc.
type Walker struct {
	opts          *Options
	dispatch      DispatchFunc
	skip          SkipFunc
	hooks         Hooks
	logger        *slog.Logger
	ignoreMatcher *ignoreMatcher
	gitDiffMap    map[string]struct{}
	discovered    int
}

// NewWalker loads ignore patterns for opts.InputPath and returns a Walker.
// skip may be nil.
func NewWalker(opts *Options, dispatch DispatchFunc, skip SkipFunc, handler slog.Handler) (*Walker, error) {
	logger := slog.New(handler).With(slog.String("component", "walker"))
	root := opts.InputPath
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		root = filepath.Dir(root)
	}
	matcher, err := newIgnoreMatcher(root, opts.IgnorePatterns, logger)
	if err != nil {
		return nil, fmt.Errorf("load ignore patterns: %w", err)
	}
	logger.Debug("Ignore patterns loaded", slog.Int("count", matcher.patternCount()))

	var gitDiffMap map[string]struct{}
	if opts.GitDiffMode == GitDiffModeDiffOnly || opts.GitDiffMode == GitDiffModeSince {
		gitDiffMap = opts.GitChangedFiles
		if gitDiffMap == nil {
			gitDiffMap = map[string]struct{}{}
		}
		logger.Debug("Git diff filter active", slog.String("mode", string(opts.GitDiffMode)), slog.Int("files", len(gitDiffMap)))
	}
	hooks := opts.EventHooks
	if hooks == nil {
		hooks = &NoOpHooks{}
	}
	return &Walker{
		opts:          opts,
		dispatch:      dispatch,
		skip:          skip,
		hooks:         hooks,
		logger:        logger,
		ignoreMatcher: matcher,
		gitDiffMap:    gitDiffMap,
	}, nil
}

// Discovered is the number of Markdown files seen by the last walk,
// including those filtered out.
func (w *Walker) Discovered() int { return w.discovered }

// StartWalk walks the input. A single file input is dispatched as is, even
// when its extension is not a Markdown one.
func (w *Walker) StartWalk(ctx context.Context) error {
	info, err := os.Stat(w.opts.InputPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStatFailed, err)
	}
	if !info.IsDir() {
		abs, err := filepath.Abs(w.opts.InputPath)
		if err != nil {
			return err
		}
		w.discovered = 1
		w.notifyDiscovered(filepath.Base(abs))
		return w.dispatch(abs)
	}

	w.logger.Info("Starting directory walk", slog.String("path", w.opts.InputPath))
	walkErr := filepath.WalkDir(w.opts.InputPath, w.walkFunc(ctx))
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			w.logger.Info("Directory walk cancelled", slog.String("reason", walkErr.Error()))
			return walkErr
		}
		w.logger.Error("Directory walk failed", slog.String("error", walkErr.Error()))
		return fmt.Errorf("directory walk failed: %w", walkErr)
	}
	w.logger.Info("Directory walk completed", slog.Int("discovered", w.discovered))
	return nil
}

func (w *Walker) walkFunc(ctx context.Context) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("Error accessing path during walk", slog.String("path", path), slog.String("error", err.Error()))
			if path == w.opts.InputPath {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			w.logger.Debug("Skipping symbolic link", slog.String("path", path))
			return nil
		}
		rel, err := filepath.Rel(w.opts.InputPath, path)
		if err != nil {
			w.logger.Warn("Could not calculate relative path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		isDir := d.IsDir()
		if !isDir && !IsMarkdownFile(rel) {
			return nil
		}
		if !isDir {
			w.discovered++
			w.notifyDiscovered(rel)
		}

		if w.ignoreMatcher.Match(rel, isDir) {
			pattern := w.ignoreMatcher.LastMatchPattern(rel, isDir)
			w.logger.Debug("Path ignored", slog.String("path", rel), slog.Bool("isDir", isDir), slog.String("pattern", pattern))
			if isDir {
				return filepath.SkipDir
			}
			w.skipped(SkippedInfo{Path: rel, Reason: SkipReasonIgnored, Details: pattern})
			return nil
		}
		if isDir {
			return nil
		}
		if w.gitDiffMap != nil {
			if _, ok := w.gitDiffMap[rel]; !ok {
				w.logger.Debug("Path excluded by Git diff", slog.String("path", rel))
				w.skipped(SkippedInfo{Path: rel, Reason: SkipReasonGitExclude, Details: string(w.opts.GitDiffMode)})
				return nil
			}
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			w.logger.Warn("Could not get absolute path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		w.logger.Debug("Dispatching file", slog.String("path", rel))
		return w.dispatch(abs)
	}
}

func (w *Walker) notifyDiscovered(rel string) {
	if err := w.hooks.OnFileDiscovered(rel); err != nil {
		w.logger.Warn("OnFileDiscovered hook failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

func (w *Walker) skipped(info SkippedInfo) {
	if w.skip != nil {
		w.skip(info)
	}
	msg := info.Reason + ": " + info.Details
	if err := w.hooks.OnFileStatusUpdate(info.Path, StatusSkipped, msg, 0); err != nil {
		w.logger.Warn("OnFileStatusUpdate hook failed", slog.String("path", info.Path), slog.String("error", err.Error()))
	}
}

// IsMarkdownFile reports whether name carries a Markdown extension.
func IsMarkdownFile(name string) bool {
	_, ok := markdownExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

type ignoreMatcher struct {
	patterns []ignorePattern
	basePath string
}

type ignorePattern struct {
	pattern     string
	origPattern string
	negated     bool
	isDirOnly   bool
	isRooted    bool
	baseAbsPath string
}

func newIgnoreMatcher(inputPath string, configPatterns []string, logger *slog.Logger) (*ignoreMatcher, error) {
	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return nil, fmt.Errorf("absolute input path: %w", err)
	}
	m := &ignoreMatcher{basePath: absInput}
	ignoreFile, err := findIgnoreFile(absInput)
	if err != nil {
		logger.Warn("Error searching for ignore file", slog.String("name", IgnoreFileName), slog.String("error", err.Error()))
	}
	if ignoreFile != "" {
		filePatterns, err := loadPatternsFromFile(ignoreFile)
		if err != nil {
			return nil, err
		}
		m.addPatterns(filePatterns, filepath.Dir(ignoreFile))
		logger.Debug("Loaded ignore file", slog.String("path", ignoreFile), slog.Int("count", len(filePatterns)))
	}
	m.addPatterns(configPatterns, absInput)
	return m, nil
}

// findIgnoreFile looks for IgnoreFileName in absStartPath and its parents.
func findIgnoreFile(absStartPath string) (string, error) {
	current := absStartPath
	for {
		candidate := filepath.Join(current, IgnoreFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("check %s: %w", candidate, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", nil
		}
		current = parent
	}
}

func loadPatternsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open ignore file %s: %w", filePath, err)
	}
	defer file.Close()
	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file %s: %w", filePath, err)
	}
	return patterns, nil
}

func (m *ignoreMatcher) addPatterns(raw []string, baseAbsPath string) {
	for _, r := range raw {
		p := ignorePattern{origPattern: r, baseAbsPath: baseAbsPath}
		s := strings.TrimSpace(r)
		if strings.HasPrefix(s, "!") {
			p.negated = true
			s = strings.TrimSpace(s[1:])
		}
		if strings.HasPrefix(s, "/") {
			p.isRooted = true
			s = strings.TrimPrefix(s, "/")
		}
		if strings.HasSuffix(s, "/") {
			p.isDirOnly = true
			s = strings.TrimSuffix(s, "/")
		}
		p.pattern = filepath.ToSlash(s)
		if p.pattern == "" {
			continue
		}
		m.patterns = append(m.patterns, p)
	}
}

// Match applies every pattern in order; the last one that matches decides.
func (m *ignoreMatcher) Match(rel string, isDir bool) bool {
	ignored, _ := m.decide(rel, isDir)
	return ignored
}

// LastMatchPattern returns the pattern that caused rel to be ignored, if any.
func (m *ignoreMatcher) LastMatchPattern(rel string, isDir bool) string {
	ignored, pattern := m.decide(rel, isDir)
	if !ignored {
		return ""
	}
	return pattern
}

func (m *ignoreMatcher) decide(rel string, isDir bool) (bool, string) {
	ignored, last := false, ""
	for _, p := range m.patterns {
		if p.isDirOnly && !isDir {
			continue
		}
		if util.MatchesGitignore(p.pattern, p.baseAbsPath, m.basePath, rel, p.isRooted) {
			ignored = !p.negated
			last = p.origPattern
		}
	}
	return ignored, last
}

func (m *ignoreMatcher) patternCount() int {
	return len(m.patterns)
}
