// Package db keeps a SQLite catalog of playlist runs and their track
// outcomes.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusPartial     = "partial"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// RunRecord represents a row in the runs table.
type RunRecord struct {
	ID            string
	URL           string
	PlaylistID    string
	PlaylistTitle string
	OutputPath    string
	Archive       bool
	Status        string
	Error         string
	Succeeded     int
	Failed        int
	StartedAt     time.Time
	FinishedAt    sql.NullTime
}

// TrackRecord represents a row in the tracks table.
type TrackRecord struct {
	ID            int64
	RunID         string
	TrackID       string
	Title         string
	Artist        string
	SourceURL     string
	PlaylistIndex int
	FilePath      string
	OK            bool
	CreatedAt     time.Time
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    url             TEXT NOT NULL DEFAULT '',
    playlist_id     TEXT NOT NULL DEFAULT '',
    playlist_title  TEXT NOT NULL DEFAULT '',
    output_path     TEXT NOT NULL DEFAULT '',
    archive         INTEGER NOT NULL DEFAULT 0,
    status          TEXT NOT NULL DEFAULT 'running',
    error           TEXT NOT NULL DEFAULT '',
    succeeded       INTEGER NOT NULL DEFAULT 0,
    failed          INTEGER NOT NULL DEFAULT 0,
    started_at      DATETIME NOT NULL,
    finished_at     DATETIME
);

CREATE TABLE IF NOT EXISTS tracks (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    track_id        TEXT NOT NULL DEFAULT '',
    title           TEXT NOT NULL DEFAULT '',
    artist          TEXT NOT NULL DEFAULT '',
    source_url      TEXT NOT NULL DEFAULT '',
    playlist_index  INTEGER NOT NULL DEFAULT 0,
    file_path       TEXT NOT NULL DEFAULT '',
    ok              INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_tracks_run_id ON tracks(run_id);
`

var errNotInitialized = errors.New("database not initialized")

// DB wraps an SQLite connection for the run catalog.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if _, err := sqlDB.Exec(createTableSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: sqlDB}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// UpsertRun inserts a run or updates the existing row with the same ID.
func (d *DB) UpsertRun(run RunRecord) error {
	if d == nil || d.db == nil {
		return errNotInitialized
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO runs (
			id, url, playlist_id, playlist_title, output_path, archive,
			status, error, succeeded, failed, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url=excluded.url, playlist_id=excluded.playlist_id,
			playlist_title=excluded.playlist_title, output_path=excluded.output_path,
			archive=excluded.archive, status=excluded.status, error=excluded.error,
			succeeded=excluded.succeeded, failed=excluded.failed,
			finished_at=excluded.finished_at
	`,
		run.ID, run.URL, run.PlaylistID, run.PlaylistTitle, run.OutputPath, boolToInt(run.Archive),
		run.Status, run.Error, run.Succeeded, run.Failed, run.StartedAt.UTC(), nullTimeUTC(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting run %s: %w", run.ID, err)
	}
	return nil
}

// InsertTrack records one track outcome and returns the inserted ID.
func (d *DB) InsertTrack(track TrackRecord) (int64, error) {
	if d == nil || d.db == nil {
		return 0, errNotInitialized
	}
	if track.CreatedAt.IsZero() {
		track.CreatedAt = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	result, err := d.db.Exec(`
		INSERT INTO tracks (
			run_id, track_id, title, artist, source_url,
			playlist_index, file_path, ok, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		track.RunID, track.TrackID, track.Title, track.Artist, track.SourceURL,
		track.PlaylistIndex, track.FilePath, boolToInt(track.OK), track.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting track record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}
	return id, nil
}

// RenameTrackFiles replaces the stored file paths of a run's tracks. Keys of
// renames are the current paths; paths not in renames are left alone.
func (d *DB) RenameTrackFiles(runID string, renames map[string]string) error {
	if d == nil || d.db == nil {
		return errNotInitialized
	}
	if len(renames) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning track rename: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`UPDATE tracks SET file_path = ? WHERE run_id = ? AND file_path = ?`)
	if err != nil {
		return fmt.Errorf("preparing track rename: %w", err)
	}
	defer stmt.Close()

	for from, to := range renames {
		if _, err := stmt.Exec(to, runID, from); err != nil {
			return fmt.Errorf("renaming track file %s: %w", from, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing track rename: %w", err)
	}
	return nil
}

// ListRuns returns runs ordered by start time, newest first.
func (d *DB) ListRuns(limit, offset int) ([]RunRecord, error) {
	if d == nil || d.db == nil {
		return nil, errNotInitialized
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := d.db.Query(`
		SELECT id, url, playlist_id, playlist_title, output_path, archive,
			status, error, succeeded, failed, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var archive int
		if err := rows.Scan(
			&r.ID, &r.URL, &r.PlaylistID, &r.PlaylistTitle, &r.OutputPath, &archive,
			&r.Status, &r.Error, &r.Succeeded, &r.Failed, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		r.Archive = archive != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetRun returns the run with the given ID, or sql.ErrNoRows.
func (d *DB) GetRun(id string) (RunRecord, error) {
	if d == nil || d.db == nil {
		return RunRecord{}, errNotInitialized
	}

	var r RunRecord
	var archive int
	err := d.db.QueryRow(`
		SELECT id, url, playlist_id, playlist_title, output_path, archive,
			status, error, succeeded, failed, started_at, finished_at
		FROM runs WHERE id = ?
	`, id).Scan(
		&r.ID, &r.URL, &r.PlaylistID, &r.PlaylistTitle, &r.OutputPath, &archive,
		&r.Status, &r.Error, &r.Succeeded, &r.Failed, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("querying run %s: %w", id, err)
	}
	r.Archive = archive != 0
	return r, nil
}

// ResolveRunID expands a unique run ID prefix to the full ID.
func (d *DB) ResolveRunID(prefix string) (string, error) {
	if d == nil || d.db == nil {
		return "", errNotInitialized
	}
	if prefix == "" {
		return "", errors.New("run id is required")
	}

	rows, err := d.db.Query(`SELECT id FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("querying run ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scanning run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("run %s: %w", prefix, sql.ErrNoRows)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("run id prefix %q is ambiguous", prefix)
	}
}

// ListTracks returns the track outcomes of a run in playlist order.
func (d *DB) ListTracks(runID string) ([]TrackRecord, error) {
	if d == nil || d.db == nil {
		return nil, errNotInitialized
	}

	rows, err := d.db.Query(`
		SELECT id, run_id, track_id, title, artist, source_url,
			playlist_index, file_path, ok, created_at
		FROM tracks
		WHERE run_id = ?
		ORDER BY playlist_index, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying tracks: %w", err)
	}
	defer rows.Close()

	var records []TrackRecord
	for rows.Next() {
		var r TrackRecord
		var ok int
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.TrackID, &r.Title, &r.Artist, &r.SourceURL,
			&r.PlaylistIndex, &r.FilePath, &ok, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning track row: %w", err)
		}
		r.OK = ok != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountRuns returns the total number of recorded runs.
func (d *DB) CountRuns() (int, error) {
	if d == nil || d.db == nil {
		return 0, errNotInitialized
	}

	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return count, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullTimeUTC(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}
	return t.Time.UTC()
}
