// Package util holds small path helpers shared by the converter and the CLI.
package util

import (
	"path"
	"path/filepath"
	"strings"
)

// MatchesGitignore reports whether pathToMatchRel, relative to
// walkerBaseAbsPath, is matched by a gitignore-style pattern defined in
// patternBaseAbsPath. A rooted pattern only matches from its base; an
// unrooted one matches at any depth. "**" spans any number of segments.
func MatchesGitignore(pattern, patternBaseAbsPath, walkerBaseAbsPath, pathToMatchRel string, isRooted bool) bool {
	pattern = filepath.ToSlash(pattern)
	pathToMatchRel = filepath.ToSlash(pathToMatchRel)
	if pattern == "" || pathToMatchRel == "" || pathToMatchRel == "." {
		return false
	}
	rel, err := filepath.Rel(patternBaseAbsPath, filepath.Join(walkerBaseAbsPath, filepath.FromSlash(pathToMatchRel)))
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	segments := strings.Split(rel, "/")
	patSegments := strings.Split(pattern, "/")
	if isRooted || strings.Contains(pattern, "/") {
		return matchSegments(patSegments, segments)
	}
	for i := range segments {
		if matchSegments(patSegments, segments[i:]) {
			return true
		}
	}
	return false
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, err := path.Match(pat[0], segs[0]); err != nil || !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}
