package converter

import (
	"errors"

	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/cache"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/docx"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/git"
	"github.com/CharlieHasAHeart/CyanScript/pkg/converter/style"
)

// Errors returned by Convert, Engine.Run and GenerateDocuments. Check them
// with errors.Is; recoverable problems are reported as Warning values instead.
var (
	// ErrTemplateContract means the template lacks something every conversion
	// needs: a required style or the main content anchor. It is fatal.
	ErrTemplateContract = style.ErrTemplateContract

	// ErrTemplateInvalid means the template is not a readable .docx package
	// or one of its XML parts is malformed. It is fatal.
	ErrTemplateInvalid = docx.ErrInvalidPackage

	// ErrMissingResource marks an image that could not be read or decoded.
	// The assembler records it as a warning and carries on.
	ErrMissingResource = errors.New("missing resource")

	// ErrUnresolvedPlaceholder is returned when a {{name}} has no value and
	// DocumentOptions.FailOnUnresolved is set. Otherwise it is a warning.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

	// ErrReadFailed indicates a Markdown source or the template could not be read.
	ErrReadFailed = errors.New("failed to read file")

	// ErrStatFailed indicates a failure to stat a source file.
	ErrStatFailed = errors.New("failed to get file stats")

	// ErrDecodeFailed indicates the Markdown source could not be converted to UTF-8.
	ErrDecodeFailed = errors.New("failed to decode markdown")

	// ErrMkdirFailed indicates a failure to create an output directory.
	ErrMkdirFailed = errors.New("failed to create output directory")

	// ErrWriteFailed indicates the generated document could not be written.
	ErrWriteFailed = errors.New("failed to write output file")

	// ErrConfigValidation indicates the Options passed in are unusable.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrConfigHashCalculation indicates the cache key for the current
	// options could not be computed.
	ErrConfigHashCalculation = errors.New("failed to calculate config hash")

	// ErrCachePersist indicates the cache index could not be written back.
	// The run itself may still have succeeded.
	ErrCachePersist = cache.ErrCachePersist

	// ErrGitOperation indicates a Git query needed by the run failed.
	ErrGitOperation = git.ErrGitOperation
)
