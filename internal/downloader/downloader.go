// Package downloader resolves a playlist, fetches its tracks through a
// bounded worker pool, and assembles the successes into a directory or a zip
// archive.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/lvcoi/playlistdl/internal/archive"
	"github.com/lvcoi/playlistdl/internal/logging"
	"github.com/lvcoi/playlistdl/internal/resolver"
	"github.com/lvcoi/playlistdl/internal/sanitize"
)

// Defaults for Options.
const (
	DefaultWorkers      = 3
	DefaultMinDelay     = time.Second
	DefaultMaxDelay     = 3 * time.Second
	DefaultTrackTimeout = 10 * time.Minute
)

// Options controls one playlist run.
type Options struct {
	// Workers is the number of concurrent fetches.
	Workers int
	// MinDelay and MaxDelay bound the random pause taken after each
	// completed track.
	MinDelay time.Duration
	MaxDelay time.Duration
	// Archive bundles the result into <outputDir>/<playlist>.zip.
	Archive bool
	// TrackTimeout caps a single fetch. Zero disables the deadline.
	TrackTimeout time.Duration
}

// DefaultOptions returns the stock run settings.
func DefaultOptions() Options {
	return Options{
		Workers:      DefaultWorkers,
		MinDelay:     DefaultMinDelay,
		MaxDelay:     DefaultMaxDelay,
		TrackTimeout: DefaultTrackTimeout,
	}
}

func (o Options) normalized() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.MinDelay < 0 {
		o.MinDelay = 0
	}
	if o.MaxDelay < o.MinDelay {
		o.MaxDelay = o.MinDelay
	}
	if o.TrackTimeout < 0 {
		o.TrackTimeout = 0
	}
	return o
}

// Artifact describes the deliverable of a successful run.
type Artifact struct {
	// Path is the playlist directory, or the zip file when Archive is set.
	Path    string
	Archive bool
	// Files lists the downloaded tracks relative to the artifact root, which
	// are also the archive entry names.
	Files []string
	// Failed lists the tracks that produced no file.
	Failed   []resolver.Track
	Playlist resolver.Playlist
}

// TrackFetcher downloads one track into dir. A false result means the track
// failed; the fetcher has already logged why.
type TrackFetcher interface {
	Fetch(ctx context.Context, track resolver.Track, dir string) (string, bool)
}

// Downloader runs playlist downloads.
type Downloader struct {
	resolver resolver.Resolver
	fetcher  TrackFetcher
	observer Observer
	logger   *slog.Logger

	sleep     func(context.Context, time.Duration) error
	randFloat func() float64
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(d *Downloader) {
		if o != nil {
			d.observer = o
		}
	}
}

// New constructs a Downloader.
func New(r resolver.Resolver, f TrackFetcher, logger *slog.Logger, opts ...Option) *Downloader {
	d := &Downloader{
		resolver:  r,
		fetcher:   f,
		observer:  NopObserver{},
		logger:    logging.NewComponentLogger(logger, "downloader"),
		sleep:     sleepWithContext,
		randFloat: rand.Float64, //nolint:gosec
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadPlaylist resolves url, downloads every track into
// outputDir/<playlist title>, and returns the resulting artifact. Failed
// tracks are skipped; the run itself fails only when the playlist cannot be
// resolved, nothing downloads, the archive cannot be written, another run
// holds the playlist directory, or ctx is cancelled.
func (d *Downloader) DownloadPlaylist(ctx context.Context, url, outputDir string, opts Options) (artifact Artifact, err error) {
	defer func() {
		d.observer.Finished(artifact, err)
	}()
	opts = opts.normalized()

	playlist, err := d.resolve(ctx, url)
	if err != nil {
		return Artifact{}, err
	}
	name := sanitize.Filename(playlist.Title)
	logger := d.logger.With(slog.String(logging.FieldPlaylist, playlist.Title))

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("creating output directory: %w", err)
	}
	lock := flock.New(filepath.Join(outputDir, "."+name+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return Artifact{}, fmt.Errorf("acquire playlist lock: %w", err)
	}
	if !locked {
		return Artifact{}, wrapCategory(CategoryBusy, fmt.Errorf("%w: %s", ErrBusy, name))
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("failed to release playlist lock", logging.Error(unlockErr))
		}
	}()

	workDir := filepath.Join(outputDir, name)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("creating playlist directory: %w", err)
	}
	d.observer.PlaylistResolved(playlist, workDir)
	logger.Info("fetching playlist",
		slog.Int("tracks", len(playlist.Tracks)),
		slog.Int("workers", opts.Workers),
		slog.String(logging.FieldPath, workDir),
	)

	paths, failed := d.fetchAll(ctx, playlist.Tracks, workDir, opts, logger)
	if ctx.Err() != nil {
		return Artifact{}, wrapCategory(CategoryInterrupted, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err()))
	}

	files, err := relativeFiles(workDir, paths)
	if err != nil {
		return Artifact{}, err
	}
	d.observer.Assembling(len(files), opts.Archive)
	if len(files) == 0 {
		_ = os.Remove(workDir)
		return Artifact{}, wrapCategory(CategoryEmptyResult, fmt.Errorf("%w (%d tracks failed)", ErrNothingDownloaded, len(failed)))
	}

	artifact = Artifact{Path: workDir, Files: files, Failed: failed, Playlist: playlist}
	if !opts.Archive {
		logger.Info("playlist downloaded",
			slog.Int("succeeded", len(files)),
			slog.Int("failed", len(failed)),
			slog.String(logging.FieldPath, workDir),
		)
		return artifact, nil
	}

	archivePath := filepath.Join(outputDir, name+".zip")
	entries, err := archive.Build(uniquePaths(paths), archivePath, workDir, logger)
	if errors.Is(err, archive.ErrNoEntries) {
		_ = os.Remove(workDir)
		return Artifact{}, wrapCategory(CategoryEmptyResult, fmt.Errorf("%w: every downloaded file vanished before archiving", ErrNothingDownloaded))
	}
	if err != nil {
		logger.Error("archive failed; keeping downloaded files", slog.String(logging.FieldPath, workDir), logging.Error(err))
		return Artifact{}, wrapCategory(CategoryArchiveWrite, fmt.Errorf("%w: %w", ErrArchiveWrite, err))
	}
	if err := os.RemoveAll(workDir); err != nil {
		logger.Warn("failed to remove playlist directory after archiving", slog.String(logging.FieldPath, workDir), logging.Error(err))
	}
	sort.Strings(entries)
	artifact.Path = archivePath
	artifact.Archive = true
	artifact.Files = entries
	logger.Info("playlist archived",
		slog.Int("succeeded", len(entries)),
		slog.Int("failed", len(failed)),
		slog.String(logging.FieldPath, archivePath),
	)
	return artifact, nil
}

func (d *Downloader) resolve(ctx context.Context, url string) (resolver.Playlist, error) {
	if err := resolver.ValidateURL(url); err != nil {
		return resolver.Playlist{}, wrapCategory(CategoryResolution, fmt.Errorf("%w: %w", ErrResolution, err))
	}
	playlist, err := d.resolver.ResolvePlaylist(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return resolver.Playlist{}, wrapCategory(CategoryInterrupted, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err()))
		}
		return resolver.Playlist{}, wrapCategory(CategoryResolution, fmt.Errorf("%w: %w", ErrResolution, err))
	}
	if len(playlist.Tracks) == 0 {
		return resolver.Playlist{}, wrapCategory(CategoryResolution, fmt.Errorf("%w: playlist %q has no tracks", ErrResolution, playlist.Title))
	}
	return playlist, nil
}

// fetchAll runs the worker pool and harvests completions on the calling
// goroutine, which is the only writer of the result slices. After every
// completion except the last it pauses for a random delay in
// [MinDelay, MaxDelay]; workers keep fetching meanwhile.
func (d *Downloader) fetchAll(ctx context.Context, tracks []resolver.Track, dir string, opts Options, logger *slog.Logger) ([]string, []resolver.Track) {
	work := func(ctx context.Context, track resolver.Track) outcome {
		d.observer.TrackStarted(track)
		if opts.TrackTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.TrackTimeout)
			defer cancel()
		}
		path, ok := d.fetcher.Fetch(ctx, track, dir)
		return outcome{track: track, path: path, ok: ok}
	}
	onPanic := func(track resolver.Track, err error) {
		logger.Error("track fetch panicked", slog.String(logging.FieldTrack, track.DisplayName()), logging.Error(err))
	}

	var (
		paths  []string
		failed []resolver.Track
	)
	done := 0
	for out := range runPool(ctx, opts.Workers, tracks, work, onPanic) {
		done++
		if out.ok {
			paths = append(paths, out.path)
		} else {
			failed = append(failed, out.track)
			logger.Warn("track skipped", slog.String(logging.FieldTrack, out.track.DisplayName()))
		}
		d.observer.TrackFinished(out.track, out.path, out.ok)

		if done < len(tracks) && ctx.Err() == nil {
			if err := d.pause(ctx, opts); err != nil {
				logger.Debug("pacing interrupted", logging.Error(err))
			}
		}
	}
	return paths, failed
}

func (d *Downloader) pause(ctx context.Context, opts Options) error {
	delay := opts.MinDelay
	if spread := opts.MaxDelay - opts.MinDelay; spread > 0 {
		delay += time.Duration(d.randFloat() * float64(spread))
	}
	if delay <= 0 {
		return nil
	}
	return d.sleep(ctx, delay)
}

// relativeFiles returns the distinct paths relative to root, sorted.
func relativeFiles(root string, paths []string) ([]string, error) {
	unique := uniquePaths(paths)
	files := make([]string, 0, len(unique))
	for _, p := range unique {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, fmt.Errorf("relative path for %s: %w", p, err)
		}
		files = append(files, filepath.ToSlash(rel))
	}
	sort.Strings(files)
	return files, nil
}

// uniquePaths drops duplicates produced by colliding track names.
func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var categorized CategorizedError
	return errors.As(err, &categorized) && categorized.Category == category
}
