package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lvcoi/playlistdl/internal/downloader"
	"github.com/lvcoi/playlistdl/internal/logging"
	"github.com/lvcoi/playlistdl/internal/resolver"
)

func newTestRecorder(t *testing.T, d *DB, runID string) *Recorder {
	t.Helper()
	r := NewRecorder(d, runID, "https://www.youtube.com/playlist?list=PL1", false, logging.NewNop())
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r
}

func TestRecorderRecordsRun(t *testing.T) {
	d := openTestDB(t)
	r := newTestRecorder(t, d, "run-1")

	playlist := resolver.Playlist{
		ID:    "PL1",
		Title: "My Mix",
		Tracks: []resolver.Track{
			{ID: "a", Title: "Song One", Index: 1},
			{ID: "b", Title: "Song Two", Index: 2},
		},
	}
	r.PlaylistResolved(playlist, "/out/My_Mix")

	run, err := d.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != StatusRunning || run.PlaylistTitle != "My Mix" {
		t.Fatalf("unexpected run after resolve: %+v", run)
	}

	r.TrackStarted(playlist.Tracks[0])
	r.TrackFinished(playlist.Tracks[0], "/out/My_Mix/Song_One.mp3", true)
	r.TrackFinished(playlist.Tracks[1], "", false)
	r.Assembling(1, false)
	r.Finished(downloader.Artifact{
		Path:     "/out/My_Mix",
		Files:    []string{"Song_One.mp3"},
		Failed:   []resolver.Track{playlist.Tracks[1]},
		Playlist: playlist,
	}, nil)

	run, err = d.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != StatusPartial {
		t.Fatalf("expected status %q, got %q", StatusPartial, run.Status)
	}
	if run.Succeeded != 1 || run.Failed != 1 {
		t.Fatalf("expected 1 succeeded and 1 failed, got %d/%d", run.Succeeded, run.Failed)
	}
	if !run.FinishedAt.Valid || !run.FinishedAt.Time.After(run.StartedAt) {
		t.Fatalf("unexpected timestamps: started %v finished %+v", run.StartedAt, run.FinishedAt)
	}

	tracks, err := d.ListTracks("run-1")
	if err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}
	if !tracks[0].OK || tracks[1].OK {
		t.Fatalf("unexpected track outcomes: %+v", tracks)
	}
}

func TestRecorderRecordsResolutionFailure(t *testing.T) {
	d := openTestDB(t)
	r := newTestRecorder(t, d, "run-2")

	err := downloader.CategorizedError{Category: downloader.CategoryResolution, Err: downloader.ErrResolution}
	r.Finished(downloader.Artifact{}, err)

	run, getErr := d.GetRun("run-2")
	if getErr != nil {
		t.Fatalf("GetRun failed: %v", getErr)
	}
	if run.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, run.Status)
	}
	if run.Error != "resolution: playlist resolution failed" {
		t.Fatalf("unexpected error summary %q", run.Error)
	}
	if r.Run().Status != StatusFailed {
		t.Fatalf("recorder view not updated: %+v", r.Run())
	}
}

func TestRecorderSurvivesClosedDB(t *testing.T) {
	d := openTestDB(t)
	r := newTestRecorder(t, d, "run-3")
	d.Close()

	r.PlaylistResolved(resolver.Playlist{Title: "Mix"}, "/out/Mix")
	r.TrackFinished(resolver.Track{Title: "Song"}, "", false)
	r.Finished(downloader.Artifact{}, nil)
}

func TestRecorderPointsArchivedTracksAtEntries(t *testing.T) {
	d := openTestDB(t)
	r := NewRecorder(d, "run-4", "https://soundcloud.com/someone/sets/mix", true, logging.NewNop())

	workDir := filepath.Join("out", "My_Mix")
	one := resolver.Track{ID: "a", Title: "Song One", Index: 1}
	two := resolver.Track{ID: "b", Title: "Song Two", Index: 2}
	lost := resolver.Track{ID: "c", Title: "Lost", Index: 3}

	r.PlaylistResolved(resolver.Playlist{ID: "p", Title: "My Mix", Tracks: []resolver.Track{one, two, lost}}, workDir)
	r.TrackFinished(one, filepath.Join(workDir, "Song_One.mp3"), true)
	r.TrackFinished(two, filepath.Join(workDir, "Song_Two.mp3"), true)
	r.TrackFinished(lost, "", false)
	r.Finished(downloader.Artifact{
		Path:    filepath.Join("out", "My_Mix.zip"),
		Archive: true,
		Files:   []string{"Song_One.mp3", "Song_Two.mp3"},
		Failed:  []resolver.Track{lost},
	}, nil)

	run, err := d.GetRun("run-4")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.OutputPath != filepath.Join("out", "My_Mix.zip") {
		t.Fatalf("expected archive output path, got %q", run.OutputPath)
	}
	tracks, err := d.ListTracks("run-4")
	if err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}
	got := map[string]string{}
	for _, tr := range tracks {
		got[tr.Title] = tr.FilePath
	}
	want := map[string]string{"Song One": "Song_One.mp3", "Song Two": "Song_Two.mp3", "Lost": ""}
	for title, path := range want {
		if got[title] != path {
			t.Fatalf("track %q file path = %q, want %q", title, got[title], path)
		}
	}
}

func TestRecorderKeepsPathsWhenArchiveFails(t *testing.T) {
	d := openTestDB(t)
	r := NewRecorder(d, "run-5", "https://soundcloud.com/someone/sets/mix", true, logging.NewNop())

	workDir := filepath.Join("out", "My_Mix")
	track := resolver.Track{ID: "a", Title: "Song One", Index: 1}
	r.PlaylistResolved(resolver.Playlist{Title: "My Mix", Tracks: []resolver.Track{track}}, workDir)
	r.TrackFinished(track, filepath.Join(workDir, "Song_One.mp3"), true)
	r.Finished(downloader.Artifact{}, downloader.CategorizedError{Category: downloader.CategoryArchiveWrite, Err: downloader.ErrArchiveWrite})

	tracks, err := d.ListTracks("run-5")
	if err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}
	if len(tracks) != 1 || tracks[0].FilePath != filepath.Join(workDir, "Song_One.mp3") {
		t.Fatalf("working directory path should survive a failed archive: %+v", tracks)
	}
}
