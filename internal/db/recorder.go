package db

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lvcoi/playlistdl/internal/downloader"
	"github.com/lvcoi/playlistdl/internal/logging"
	"github.com/lvcoi/playlistdl/internal/resolver"
)

// Recorder writes run events to the catalog. Catalog failures are logged and
// never affect the run.
type Recorder struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time

	run     RunRecord
	workDir string
}

var _ downloader.Observer = (*Recorder)(nil)

// NewRecorder returns a Recorder for the run identified by runID.
func NewRecorder(d *DB, runID, url string, archive bool, logger *slog.Logger) *Recorder {
	r := &Recorder{
		db:     d,
		logger: logging.NewComponentLogger(logger, "catalog"),
		now:    time.Now,
	}
	r.run = RunRecord{ID: runID, URL: url, Archive: archive, Status: StatusRunning}
	return r
}

// PlaylistResolved opens the run row.
func (r *Recorder) PlaylistResolved(playlist resolver.Playlist, workDir string) {
	r.run.PlaylistID = playlist.ID
	r.run.PlaylistTitle = playlist.Title
	r.run.OutputPath = workDir
	r.run.StartedAt = r.now()
	r.workDir = workDir
	r.save()
}

// TrackStarted is a no-op; only outcomes are recorded.
func (r *Recorder) TrackStarted(resolver.Track) {}

// TrackFinished records one track outcome.
func (r *Recorder) TrackFinished(track resolver.Track, path string, ok bool) {
	if ok {
		r.run.Succeeded++
	} else {
		r.run.Failed++
	}
	_, err := r.db.InsertTrack(TrackRecord{
		RunID:         r.run.ID,
		TrackID:       track.ID,
		Title:         track.Title,
		Artist:        track.Artist,
		SourceURL:     track.URL,
		PlaylistIndex: track.Index,
		FilePath:      path,
		OK:            ok,
		CreatedAt:     r.now(),
	})
	if err != nil {
		r.logger.Warn("failed to record track",
			slog.String(logging.FieldTrack, track.DisplayName()),
			logging.Error(err),
		)
	}
}

// Assembling is a no-op.
func (r *Recorder) Assembling(int, bool) {}

// Finished closes the run row with its final status.
func (r *Recorder) Finished(artifact downloader.Artifact, err error) {
	if r.run.StartedAt.IsZero() {
		r.run.StartedAt = r.now()
	}
	if artifact.Path != "" {
		r.run.OutputPath = artifact.Path
	}
	r.run.Status = ClassifyRun(artifact, err)
	r.run.Error = ErrorSummary(err)
	r.run.FinishedAt = sql.NullTime{Time: r.now(), Valid: true}
	r.save()
	if err == nil && artifact.Archive {
		r.pointTracksIntoArchive(artifact.Files)
	}
}

// pointTracksIntoArchive replaces the removed working-directory paths of the
// run's tracks with their archive entry names. The run's output path names
// the archive itself.
func (r *Recorder) pointTracksIntoArchive(entries []string) {
	if r.workDir == "" {
		return
	}
	renames := make(map[string]string, len(entries))
	for _, entry := range entries {
		renames[filepath.Join(r.workDir, filepath.FromSlash(entry))] = entry
	}
	if err := r.db.RenameTrackFiles(r.run.ID, renames); err != nil {
		r.logger.Warn("failed to record archive entries", slog.String(logging.FieldRunID, r.run.ID), logging.Error(err))
	}
}

// Run returns the recorder's current view of the run.
func (r *Recorder) Run() RunRecord {
	return r.run
}

func (r *Recorder) save() {
	if err := r.db.UpsertRun(r.run); err != nil {
		r.logger.Warn("failed to record run", slog.String(logging.FieldRunID, r.run.ID), logging.Error(err))
	}
}
