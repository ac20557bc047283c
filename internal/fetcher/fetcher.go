// Package fetcher downloads a single track through a resolver and confirms
// the audio file landed on disk.
//
// Fetch never returns an error: every failure is logged with the track title
// and reported as ok == false, so one bad track cannot take down its
// siblings.
//
// Two tracks whose names sanitize to the same stem are written to the same
// path and the last one to finish wins. Callers that need both copies must
// disambiguate titles before fetching.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/lvcoi/playlistdl/internal/logging"
	"github.com/lvcoi/playlistdl/internal/resolver"
	"github.com/lvcoi/playlistdl/internal/sanitize"
)

// DefaultSettleDelay is how long Fetch waits after a transfer before
// looking for its output.
const DefaultSettleDelay = 500 * time.Millisecond

// Options tunes a Fetcher.
type Options struct {
	// AudioExt is the extension, without dot, the resolver produces.
	AudioExt string
	// SettleDelay defaults to DefaultSettleDelay; negative disables it.
	SettleDelay time.Duration
	// MaxScanEntries bounds the recovery scan; zero means DefaultMaxScanEntries.
	MaxScanEntries int
	// Tag embeds ID3 metadata into mp3 results.
	Tag bool
}

// Fetcher downloads tracks into a directory. It is safe for concurrent use.
type Fetcher struct {
	resolver resolver.Resolver
	opts     Options
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// New constructs a Fetcher around r.
func New(r resolver.Resolver, opts Options, logger *slog.Logger) *Fetcher {
	if opts.AudioExt == "" {
		opts.AudioExt = "mp3"
	}
	opts.AudioExt = strings.TrimPrefix(opts.AudioExt, ".")
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.MaxScanEntries <= 0 {
		opts.MaxScanEntries = DefaultMaxScanEntries
	}
	return &Fetcher{
		resolver: r,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "fetcher"),
		sleep:    sleepContext,
	}
}

// Fetch downloads track into dir and returns the path of the audio file.
func (f *Fetcher) Fetch(ctx context.Context, track resolver.Track, dir string) (string, bool) {
	logger := f.logger.With(slog.String(logging.FieldTrack, track.DisplayName()))

	stem := f.stemFor(ctx, track, logger)
	expected := filepath.Join(dir, stem+"."+f.opts.AudioExt)

	if err := f.resolver.FetchAudio(ctx, track, filepath.Join(dir, stem)); err != nil {
		logger.Warn("track download failed", logging.Error(err))
		return "", false
	}
	if f.opts.SettleDelay > 0 {
		if err := f.sleep(ctx, f.opts.SettleDelay); err != nil {
			logger.Warn("track download interrupted", logging.Error(err))
			return "", false
		}
	}

	path, err := Locate(dir, stem, expected, f.opts.MaxScanEntries)
	if err != nil {
		logger.Warn("track output not found", slog.String(logging.FieldPath, expected), logging.Error(err))
		return "", false
	}
	if path != expected {
		logger.Info("recovered track output under a different name", slog.String(logging.FieldPath, path))
	}

	if f.opts.Tag && strings.EqualFold(filepath.Ext(path), ".mp3") {
		if err := writeTags(path, track); err != nil {
			logger.Warn("metadata tag embedding failed", logging.Error(err))
		}
	}

	logger.Debug("track downloaded", slog.String(logging.FieldPath, path))
	return path, true
}

// stemFor derives the sanitized output stem from the resolver's suggested
// filename, falling back to the track title.
func (f *Fetcher) stemFor(ctx context.Context, track resolver.Track, logger *slog.Logger) string {
	suggested, err := f.resolver.SuggestFilename(ctx, track)
	if err != nil {
		logger.Debug("filename suggestion failed; using title", logging.Error(err))
	}
	if strings.TrimSpace(suggested) != "" {
		return sanitize.Stem(filepath.Base(suggested))
	}
	return sanitize.Filename(track.DisplayName())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("settle delay: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
