// Package git declares the Git queries a batch run can make: per-file
// metadata for the git_* placeholders and the set of changed files for
// diff-only runs.
package git

import (
	"errors"
	"fmt"
)

// ErrGitOperation indicates a Git query failed, typically because the path
// is not inside a repository or a reference does not resolve.
var ErrGitOperation = errors.New("git operation failed")

// Keys of the map returned by GetFileMetadata.
const (
	MetaCommit      = "commit"
	MetaAuthor      = "author"
	MetaAuthorEmail = "authorEmail"
	MetaDate        = "dateISO"
)

// Modes accepted by GetChangedFiles.
const (
	ModeDiffOnly = "diffOnly"
	ModeSince    = "since"
)

// GitClient answers the Git questions of a batch run. Implementations must
// be safe for concurrent use.
type GitClient interface {
	// GetFileMetadata describes the last commit touching filePath, using the
	// Meta* keys. A file with no history yields an empty map and no error.
	GetFileMetadata(repoPath, filePath string) (map[string]string, error)

	// GetChangedFiles lists the files under repoPath that differ from HEAD
	// (ModeDiffOnly) or from ref (ModeSince), as slash-separated paths
	// relative to repoPath.
	GetChangedFiles(repoPath, mode string, ref string) ([]string, error)
}

// Errorf returns a formatted error wrapping ErrGitOperation.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrGitOperation}, args...)...)
}
