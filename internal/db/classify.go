package db

import (
	"strings"

	"github.com/lvcoi/playlistdl/internal/downloader"
)

// ClassifyRun determines the catalog status of a finished run from its
// outcome.
//
// Logic matrix:
//   - Interrupted: the error is in the interrupted category
//   - Failed:      any other error
//   - Partial:     the artifact exists but some tracks failed
//   - Completed:   every track produced a file
func ClassifyRun(artifact downloader.Artifact, err error) string {
	if err != nil {
		if downloader.CategoryOf(err) == downloader.CategoryInterrupted {
			return StatusInterrupted
		}
		return StatusFailed
	}
	if len(artifact.Failed) > 0 {
		return StatusPartial
	}
	return StatusCompleted
}

// ErrorSummary flattens err into the single line stored with a run.
func ErrorSummary(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if cat := downloader.CategoryOf(err); cat != downloader.CategoryUnknown {
		return string(cat) + ": " + msg
	}
	return msg
}
