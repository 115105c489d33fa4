// Package git implements the library's GitClient on top of go-git, so the
// CLI needs no git binary.
package git

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"

	libgit "github.com/CharlieHasAHeart/CyanScript/pkg/converter/git"
)

// patchTimeout bounds the tree diff of a since-ref run.
const patchTimeout = 60 * time.Second

// GoGitClient implements libgit.GitClient.
type GoGitClient struct {
	logger *slog.Logger
}

// NewGoGitClient returns a client logging through handler.
func NewGoGitClient(handler slog.Handler) *GoGitClient {
	logger := slog.New(handler).With(slog.String("component", "gitClient"), slog.String("backend", "go-git"))
	return &GoGitClient{logger: logger}
}

var _ libgit.GitClient = (*GoGitClient)(nil)

// openRepo opens the repository containing path, which may be a file.
func (c *GoGitClient) openRepo(path string) (*git.Repository, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", libgit.Errorf("absolute path of '%s': %w", path, err)
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, "", libgit.Errorf("no repository at or above '%s': %w", abs, err)
		}
		return nil, "", libgit.Errorf("open repository at '%s': %w", abs, err)
	}
	return repo, abs, nil
}

// worktreeRoot returns the absolute root of repo's working tree.
func worktreeRoot(repo *git.Repository) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", libgit.Errorf("worktree: %w", err)
	}
	root := wt.Filesystem.Root()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return root, nil
}

// GetChangedFiles implements libgit.GitClient. go-git reports paths from the
// repository root; they are rebased onto repoPath and files outside it are
// dropped.
func (c *GoGitClient) GetChangedFiles(repoPath, mode string, ref string) ([]string, error) {
	logArgs := []any{slog.String("repo", repoPath), slog.String("mode", mode), slog.String("ref", ref)}
	c.logger.Debug("Getting changed files", logArgs...)

	repo, base, err := c.openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	root, err := worktreeRoot(repo)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(base); err == nil {
		base = resolved
	}

	var changed []string
	switch mode {
	case libgit.ModeDiffOnly:
		changed, err = c.statusChanges(repo)
	case libgit.ModeSince:
		changed, err = c.sinceChanges(repo, ref)
	default:
		return nil, libgit.Errorf("unsupported git diff mode: %s", mode)
	}
	if err != nil {
		c.logger.Error("Git diff failed", append(logArgs, slog.String("error", err.Error()))...)
		return nil, err
	}

	seen := make(map[string]struct{}, len(changed))
	files := make([]string, 0, len(changed))
	for _, p := range changed {
		rel, err := filepath.Rel(base, filepath.Join(root, filepath.FromSlash(p)))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		rel = filepath.ToSlash(rel)
		if _, dup := seen[rel]; dup {
			continue
		}
		seen[rel] = struct{}{}
		files = append(files, rel)
	}
	sort.Strings(files)
	c.logger.Debug("Changed files found", append(logArgs, slog.Int("count", len(files)))...)
	return files, nil
}

// statusChanges lists staged and unstaged changes against HEAD, leaving out
// untracked files.
func (c *GoGitClient) statusChanges(repo *git.Repository) ([]string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, libgit.Errorf("worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, libgit.Errorf("status: %w", err)
	}
	var out []string
	for p, s := range status {
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			out = append(out, p)
		}
	}
	return out, nil
}

// sinceChanges lists files that differ between ref and HEAD.
func (c *GoGitClient) sinceChanges(repo *git.Repository, ref string) ([]string, error) {
	if ref == "" {
		return nil, libgit.Errorf("mode 'since' requires a reference")
	}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			c.logger.Warn("HEAD not found, repository may be empty")
			return nil, nil
		}
		return nil, libgit.Errorf("HEAD: %w", err)
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, libgit.Errorf("HEAD commit: %w", err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, libgit.Errorf("invalid git reference '%s': %w", ref, err)
	}
	sinceCommit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, libgit.Errorf("commit for '%s': %w", ref, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), patchTimeout)
	defer cancel()
	patch, err := sinceCommit.PatchContext(ctx, headCommit)
	if err != nil {
		return nil, libgit.Errorf("diff '%s'..HEAD: %w", ref, err)
	}
	var out []string
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		switch {
		case to != nil:
			out = append(out, to.Path())
		case from != nil:
			out = append(out, from.Path())
		}
	}
	return out, nil
}

// GetFileMetadata implements libgit.GitClient. Metadata is optional: a file
// outside any repository or without history yields an empty map.
func (c *GoGitClient) GetFileMetadata(repoPath, filePath string) (map[string]string, error) {
	logArgs := []any{slog.String("repo", repoPath), slog.String("file", filePath)}
	empty := map[string]string{}

	repo, _, err := c.openRepo(repoPath)
	if err != nil {
		c.logger.Debug("No repository, skipping git metadata", append(logArgs, slog.String("error", err.Error()))...)
		return empty, nil
	}
	root, err := worktreeRoot(repo)
	if err != nil {
		c.logger.Debug("No worktree, skipping git metadata", append(logArgs, slog.String("error", err.Error()))...)
		return empty, nil
	}
	absFile, err := filepath.Abs(filePath)
	if err != nil {
		return empty, nil
	}
	if resolved, err := filepath.EvalSymlinks(absFile); err == nil {
		absFile = resolved
	}
	rel, err := filepath.Rel(root, absFile)
	if err != nil || strings.HasPrefix(rel, "..") {
		c.logger.Debug("File outside the worktree, skipping git metadata", logArgs...)
		return empty, nil
	}
	rel = filepath.ToSlash(rel)

	iter, err := repo.Log(&git.LogOptions{FileName: &rel, Order: git.LogOrderCommitterTime})
	if err != nil {
		c.logger.Debug("No history for file", append(logArgs, slog.String("error", err.Error()))...)
		return empty, nil
	}
	defer iter.Close()
	commit, err := iter.Next()
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, storer.ErrStop) {
			c.logger.Debug("Git log iteration failed", append(logArgs, slog.String("error", err.Error()))...)
		}
		return empty, nil
	}
	return map[string]string{
		libgit.MetaCommit:      commit.Hash.String(),
		libgit.MetaAuthor:      commit.Author.Name,
		libgit.MetaAuthorEmail: commit.Author.Email,
		libgit.MetaDate:        commit.Author.When.UTC().Format(time.RFC3339),
	}, nil
}
