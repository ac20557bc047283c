package downloader

import (
	"context"
	"errors"

	"github.com/lvcoi/playlistdl/internal/resolver"
)

// ErrorCategory classifies fatal run failures so callers can branch on
// cause.
type ErrorCategory string

const (
	CategoryInvalidInput ErrorCategory = "invalid_input"
	CategoryResolution   ErrorCategory = "resolution"
	CategoryEmptyResult  ErrorCategory = "empty_result"
	CategoryArchiveWrite ErrorCategory = "archive_write"
	CategoryBusy         ErrorCategory = "busy"
	CategoryInterrupted  ErrorCategory = "interrupted"
	CategoryUnknown      ErrorCategory = "unknown"
)

var (
	ErrInvalidURL        = resolver.ErrInvalidURL
	ErrResolution        = errors.New("playlist resolution failed")
	ErrNothingDownloaded = errors.New("no tracks downloaded successfully")
	ErrArchiveWrite      = errors.New("archive write failed")
	ErrBusy              = errors.New("playlist directory is locked by another run")
	ErrInterrupted       = errors.New("run interrupted")
)

// CategorizedError attaches an ErrorCategory to an error.
type CategorizedError struct {
	Category ErrorCategory
	Err      error
}

func (e CategorizedError) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return e.Err.Error()
}

func (e CategorizedError) Unwrap() error {
	return e.Err
}

func wrapCategory(category ErrorCategory, err error) error {
	if err == nil {
		return nil
	}
	var existing CategorizedError
	if errors.As(err, &existing) {
		return err
	}
	return CategorizedError{Category: category, Err: err}
}

// InvalidInput marks err as a usage or configuration problem.
func InvalidInput(err error) error {
	return wrapCategory(CategoryInvalidInput, err)
}

// CategoryOf reports the category of err. Bare context cancellations count
// as interruptions.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var categorized CategorizedError
	if errors.As(err, &categorized) {
		return categorized.Category
	}
	if errors.Is(err, context.Canceled) {
		return CategoryInterrupted
	}
	return CategoryUnknown
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CategoryOf(err) {
	case CategoryInvalidInput:
		return 2
	case CategoryResolution:
		return 3
	case CategoryEmptyResult:
		return 4
	case CategoryArchiveWrite:
		return 5
	case CategoryBusy:
		return 6
	case CategoryInterrupted:
		return 130
	default:
		return 1
	}
}
