package app

import (
	"fmt"

	"github.com/lvcoi/playlistdl/internal/downloader"
)

// Result is the outcome of one playlist run.
type Result struct {
	RunID    string   `json:"run_id"`
	URL      string   `json:"url"`
	Playlist string   `json:"playlist,omitempty"`
	Path     string   `json:"path,omitempty"`
	Archive  bool     `json:"archive"`
	Files    []string `json:"files,omitempty"`
	Failed   []string `json:"failed,omitempty"`
	Category string   `json:"category,omitempty"`
	Err      error    `json:"-"`
	Error    string   `json:"error,omitempty"`
}

func (r Result) withArtifact(artifact downloader.Artifact) Result {
	r.Playlist = artifact.Playlist.Title
	r.Path = artifact.Path
	r.Files = artifact.Files
	r.Failed = make([]string, 0, len(artifact.Failed))
	for _, track := range artifact.Failed {
		r.Failed = append(r.Failed, track.DisplayName())
	}
	if len(r.Failed) == 0 {
		r.Failed = nil
	}
	return r
}

func (r Result) withError(err error) Result {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
		r.Category = string(downloader.CategoryOf(err))
	}
	return r
}

// ExitCode is the process exit status for this result.
func (r Result) ExitCode() int {
	return downloader.ExitCode(r.Err)
}

// StatusLine is the one-line verdict printed at the end of a run: the
// artifact path on success, the fatal reason otherwise.
func (r Result) StatusLine() string {
	if r.Err != nil {
		return fmt.Sprintf("error: %s (%s)", r.Error, r.Category)
	}
	kind := "directory"
	if r.Archive {
		kind = "archive"
	}
	line := fmt.Sprintf("saved %d %s to %s %s", len(r.Files), plural(len(r.Files), "track", "tracks"), kind, r.Path)
	if n := len(r.Failed); n > 0 {
		line += fmt.Sprintf(" (%d %s failed)", n, plural(n, "track", "tracks"))
	}
	return line
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
