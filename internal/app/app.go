// Package app wires configuration, logging, the resolver, the fetcher, the
// orchestrator and the run observers into playlist runs.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lvcoi/playlistdl/internal/config"
	"github.com/lvcoi/playlistdl/internal/db"
	"github.com/lvcoi/playlistdl/internal/downloader"
	"github.com/lvcoi/playlistdl/internal/fetcher"
	"github.com/lvcoi/playlistdl/internal/logging"
	"github.com/lvcoi/playlistdl/internal/resolver"
)

// Progress is a live view attached to a single playlist run.
type Progress interface {
	downloader.Observer
	Start()
	Stop()
}

// ResolverFactory builds the resolver for a run.
type ResolverFactory func(backend string, cfg resolver.Config, logger *slog.Logger) (resolver.Resolver, error)

// App runs playlist downloads with one configuration.
type App struct {
	cfg         *config.Config
	logger      *slog.Logger
	base        *slog.Logger
	newResolver ResolverFactory
	newProgress func() Progress
	newRunID    func() string
}

// Option configures an App.
type Option func(*App)

// WithProgress attaches a fresh live view to every run.
func WithProgress(factory func() Progress) Option {
	return func(a *App) {
		a.newProgress = factory
	}
}

// WithResolverFactory replaces resolver.New.
func WithResolverFactory(factory ResolverFactory) Option {
	return func(a *App) {
		if factory != nil {
			a.newResolver = factory
		}
	}
}

// WithRunIDs replaces the random run ID source.
func WithRunIDs(next func() string) Option {
	return func(a *App) {
		if next != nil {
			a.newRunID = next
		}
	}
}

// New constructs an App. cfg must already be normalized and validated.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &App{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "app"),
		base:        logger,
		newResolver: resolver.New,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ResolverConfig maps the [resolver] section onto the resolver settings.
func ResolverConfig(cfg *config.Config) resolver.Config {
	return resolver.Config{
		Proxy:        cfg.Resolver.Proxy,
		AudioFormat:  cfg.Resolver.AudioFormat,
		AudioQuality: cfg.Resolver.AudioQuality,
		Binary:       cfg.Resolver.Binary,
		HTTPTimeout:  cfg.Resolver.HTTPTimeoutDuration(),
		HTTPRetries:  cfg.Resolver.HTTPRetries,
		RetryBackoff: cfg.Resolver.RetryBackoffDuration(),
	}
}

// DownloadOptions maps the [download] section onto the run options.
func DownloadOptions(cfg *config.Config) downloader.Options {
	return downloader.Options{
		Workers:      cfg.Download.Workers,
		MinDelay:     cfg.Download.MinDelayDuration(),
		MaxDelay:     cfg.Download.MaxDelayDuration(),
		Archive:      cfg.Download.Archive,
		TrackTimeout: cfg.Download.TrackTimeoutDuration(),
	}
}

// FetcherOptions maps the [download] section onto the fetcher settings.
func FetcherOptions(cfg *config.Config, rcfg resolver.Config) fetcher.Options {
	settle := cfg.Download.SettleDelayDuration()
	if settle == 0 {
		settle = -1
	}
	return fetcher.Options{
		AudioExt:    rcfg.AudioExt(),
		SettleDelay: settle,
		Tag:         cfg.Download.Tag,
	}
}

// Download runs one playlist and returns its result. The returned error is
// the run error, also stored in Result.Err.
func (a *App) Download(ctx context.Context, url string) (Result, error) {
	runID := a.newRunID()
	runAttr := slog.String(logging.FieldRunID, runID)
	logger := a.logger.With(runAttr)
	base := a.base.With(runAttr)
	result := Result{RunID: runID, URL: url, Archive: a.cfg.Download.Archive}

	rcfg := ResolverConfig(a.cfg)
	r, err := a.newResolver(a.cfg.Resolver.Backend, rcfg, base)
	if err != nil {
		err = downloader.InvalidInput(fmt.Errorf("configure resolver: %w", err))
		return result.withError(err), err
	}
	f := fetcher.New(r, FetcherOptions(a.cfg, rcfg), base)

	var observers downloader.Observers
	if a.cfg.Catalog.Enabled {
		catalog, closeCatalog := a.openCatalog(logger)
		if catalog != nil {
			defer closeCatalog()
			observers = append(observers, db.NewRecorder(catalog, runID, url, a.cfg.Download.Archive, base))
		}
	}
	if a.newProgress != nil {
		if view := a.newProgress(); view != nil {
			view.Start()
			defer view.Stop()
			observers = append(observers, view)
		}
	}

	d := downloader.New(r, f, base, downloader.WithObserver(observers))

	logger.Info("starting run", slog.String("url", url), slog.String("backend", a.cfg.Resolver.Backend))
	artifact, err := d.DownloadPlaylist(ctx, url, a.cfg.Download.OutputDir, DownloadOptions(a.cfg))
	result = result.withArtifact(artifact)
	if err != nil {
		logger.Error("run failed", slog.String("category", string(downloader.CategoryOf(err))), logging.Error(err))
		return result.withError(err), err
	}
	return result, nil
}

// Run downloads each playlist in turn and returns the results with the
// highest exit code among them. An interrupted run stops the remaining ones.
func (a *App) Run(ctx context.Context, urls []string) ([]Result, int) {
	output := make([]Result, 0, len(urls))
	exitCode := 0
	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}
		res, err := a.Download(ctx, url)
		output = append(output, res)
		if code := downloader.ExitCode(err); code > exitCode {
			exitCode = code
		}
	}
	if ctx.Err() != nil && exitCode == 0 {
		exitCode = downloader.ExitCode(ctx.Err())
	}
	return output, exitCode
}

func (a *App) openCatalog(logger *slog.Logger) (*db.DB, func()) {
	path := a.cfg.Catalog.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("catalog disabled", slog.String(logging.FieldPath, path), logging.Error(err))
		return nil, nil
	}
	catalog, err := db.Open(path)
	if err != nil {
		logger.Warn("catalog disabled", slog.String(logging.FieldPath, path), logging.Error(err))
		return nil, nil
	}
	return catalog, func() {
		if err := catalog.Close(); err != nil {
			logger.Warn("failed to close catalog", logging.Error(err))
		}
	}
}
