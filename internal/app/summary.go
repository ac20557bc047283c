package app

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lvcoi/playlistdl/internal/db"
)

// WriteSummary prints the per-track table of a finished run followed by its
// status line.
func WriteSummary(w io.Writer, r Result) {
	if r.Err == nil && (len(r.Files) > 0 || len(r.Failed) > 0) {
		rows := make([][]string, 0, len(r.Files)+len(r.Failed))
		for _, file := range r.Files {
			rows = append(rows, []string{"ok", file})
		}
		for _, title := range r.Failed {
			rows = append(rows, []string{"failed", title})
		}
		fmt.Fprintln(w, renderTable([]string{"Status", "Track"}, rows, nil))
	}
	fmt.Fprintln(w, r.StatusLine())
}

// WriteHistory prints catalog runs as a table, newest first.
func WriteHistory(w io.Writer, runs []db.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			displayTitle(run),
			run.Status,
			strconv.Itoa(run.Succeeded),
			strconv.Itoa(run.Failed),
			runDuration(run),
			run.OutputPath,
		})
	}
	headers := []string{"Run", "Started", "Playlist", "Status", "OK", "Failed", "Took", "Output"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	fmt.Fprintln(w, renderTable(headers, rows, aligns))
}

// WriteRunTracks prints the track outcomes of one catalog run.
func WriteRunTracks(w io.Writer, tracks []db.TrackRecord) {
	if len(tracks) == 0 {
		fmt.Fprintln(w, "No tracks recorded")
		return
	}
	rows := make([][]string, 0, len(tracks))
	for _, tr := range tracks {
		status := "failed"
		if tr.OK {
			status = "ok"
		}
		rows = append(rows, []string{strconv.Itoa(tr.PlaylistIndex), tr.Title, tr.Artist, status, tr.FilePath})
	}
	headers := []string{"#", "Title", "Artist", "Status", "File"}
	fmt.Fprintln(w, renderTable(headers, rows, []columnAlignment{alignRight}))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayTitle(run db.RunRecord) string {
	if strings.TrimSpace(run.PlaylistTitle) != "" {
		return run.PlaylistTitle
	}
	return run.URL
}

func runDuration(run db.RunRecord) string {
	if !run.FinishedAt.Valid {
		return "-"
	}
	return run.FinishedAt.Time.Sub(run.StartedAt).Round(time.Second).String()
}
