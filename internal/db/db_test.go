package db

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenAndClose(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	d, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("database file was not created")
	}
}

func TestUpsertAndListRuns(t *testing.T) {
	d := openTestDB(t)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := RunRecord{
		ID:            "run-1",
		URL:           "https://www.youtube.com/playlist?list=PL1",
		PlaylistID:    "PL1",
		PlaylistTitle: "My Mix",
		OutputPath:    "/tmp/out/My_Mix",
		StartedAt:     started,
	}
	if err := d.UpsertRun(run); err != nil {
		t.Fatalf("first UpsertRun failed: %v", err)
	}

	run.Status = StatusPartial
	run.Succeeded = 2
	run.Failed = 1
	run.Archive = true
	run.FinishedAt = sql.NullTime{Time: started.Add(time.Minute), Valid: true}
	if err := d.UpsertRun(run); err != nil {
		t.Fatalf("second UpsertRun failed: %v", err)
	}

	runs, err := d.ListRuns(10, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run after upsert, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != StatusPartial || got.Succeeded != 2 || got.Failed != 1 || !got.Archive {
		t.Fatalf("unexpected run after upsert: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("expected started_at %v, got %v", started, got.StartedAt)
	}
	if !got.FinishedAt.Valid || !got.FinishedAt.Time.Equal(started.Add(time.Minute)) {
		t.Fatalf("unexpected finished_at: %+v", got.FinishedAt)
	}
}

func TestUpsertRunDefaultsStatus(t *testing.T) {
	d := openTestDB(t)

	if err := d.UpsertRun(RunRecord{ID: "run-1"}); err != nil {
		t.Fatalf("UpsertRun failed: %v", err)
	}
	run, err := d.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != StatusRunning {
		t.Fatalf("expected status %q, got %q", StatusRunning, run.Status)
	}
	if run.FinishedAt.Valid {
		t.Fatalf("expected no finished_at, got %v", run.FinishedAt.Time)
	}
}

func TestUpsertRunRequiresID(t *testing.T) {
	d := openTestDB(t)
	if err := d.UpsertRun(RunRecord{}); err == nil {
		t.Fatalf("expected error for run without id")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	d := openTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := d.UpsertRun(RunRecord{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("UpsertRun failed: %v", err)
		}
	}

	runs, err := d.ListRuns(2, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", runs)
	}

	runs, err = d.ListRuns(2, 2)
	if err != nil {
		t.Fatalf("ListRuns with offset failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "a" {
		t.Fatalf("unexpected page: %+v", runs)
	}
}

func TestInsertAndListTracks(t *testing.T) {
	d := openTestDB(t)

	if err := d.UpsertRun(RunRecord{ID: "run-1"}); err != nil {
		t.Fatalf("UpsertRun failed: %v", err)
	}
	tracks := []TrackRecord{
		{RunID: "run-1", TrackID: "b", Title: "Song Two", PlaylistIndex: 2},
		{RunID: "run-1", TrackID: "a", Title: "Song One", PlaylistIndex: 1, FilePath: "/tmp/out/Song_One.mp3", OK: true},
	}
	for _, tr := range tracks {
		id, err := d.InsertTrack(tr)
		if err != nil {
			t.Fatalf("InsertTrack failed: %v", err)
		}
		if id <= 0 {
			t.Fatalf("expected positive id, got %d", id)
		}
	}

	got, err := d.ListTracks("run-1")
	if err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(got))
	}
	if got[0].Title != "Song One" || !got[0].OK || got[0].FilePath != "/tmp/out/Song_One.mp3" {
		t.Fatalf("unexpected first track: %+v", got[0])
	}
	if got[1].Title != "Song Two" || got[1].OK {
		t.Fatalf("unexpected second track: %+v", got[1])
	}
}

func TestInsertTrackUnknownRunReturnsError(t *testing.T) {
	d := openTestDB(t)

	if _, err := d.InsertTrack(TrackRecord{RunID: "missing", Title: "Song"}); err == nil {
		t.Fatalf("expected foreign key error for unknown run")
	}
}

func TestGetRunMissing(t *testing.T) {
	d := openTestDB(t)

	if _, err := d.GetRun("nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestCountRuns(t *testing.T) {
	d := openTestDB(t)

	count, err := d.CountRuns()
	if err != nil {
		t.Fatalf("CountRuns failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}

	for i := 0; i < 3; i++ {
		if err := d.UpsertRun(RunRecord{ID: "run" + string(rune('A'+i))}); err != nil {
			t.Fatalf("UpsertRun failed: %v", err)
		}
	}

	count, err = d.CountRuns()
	if err != nil {
		t.Fatalf("CountRuns failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}

func TestNilDB(t *testing.T) {
	var d *DB
	if err := d.Close(); err != nil {
		t.Fatalf("Close on nil db: %v", err)
	}
	if err := d.UpsertRun(RunRecord{ID: "x"}); err == nil {
		t.Fatalf("expected error from nil db")
	}
	if _, err := d.ListRuns(1, 0); err == nil {
		t.Fatalf("expected error from nil db")
	}
}

func TestResolveRunID(t *testing.T) {
	d := openTestDB(t)

	for _, id := range []string{"abc123", "abd456"} {
		if err := d.UpsertRun(RunRecord{ID: id}); err != nil {
			t.Fatalf("UpsertRun failed: %v", err)
		}
	}

	id, err := d.ResolveRunID("abc")
	if err != nil {
		t.Fatalf("ResolveRunID failed: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("expected abc123, got %q", id)
	}
	if _, err := d.ResolveRunID("ab"); err == nil {
		t.Fatalf("expected ambiguity error")
	}
	if _, err := d.ResolveRunID("zzz"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
