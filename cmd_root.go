package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lvcoi/playlistdl/internal/app"
	"github.com/lvcoi/playlistdl/internal/config"
	"github.com/lvcoi/playlistdl/internal/downloader"
	"github.com/lvcoi/playlistdl/internal/logging"
	"github.com/lvcoi/playlistdl/internal/progress"
)

type rootFlags struct {
	configPath   string
	output       string
	archive      bool
	proxy        string
	workers      int
	minDelay     float64
	maxDelay     float64
	trackTimeout float64
	backend      string
	noTags       bool
	catalog      string
	logLevel     string
	logFormat    string
	quiet        bool
	noProgress   bool
	json         bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "playlistdl [flags] <playlist-url> [playlist-url...]",
		Short: "Download every track of a playlist as audio",
		Long: "playlistdl resolves a playlist, downloads its tracks as audio files through a small\n" +
			"pool of workers with a random pause between tracks, and leaves the result in a\n" +
			"directory named after the playlist or in a zip archive.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !interactiveInput(cmd.InOrStdin()) {
				return downloader.InvalidInput(fmt.Errorf("no playlist url provided (see %s --help)", cmd.CommandPath()))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, flags, args)
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return downloader.InvalidInput(err)
	})

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&flags.catalog, "catalog", "", "SQLite catalog path; enables recording for downloads")

	f := rootCmd.Flags()
	f.StringVarP(&flags.output, "output", "o", "", "Output directory (created if absent)")
	f.BoolVar(&flags.archive, "zip", false, "Bundle each playlist into <output>/<playlist>.zip")
	f.StringVar(&flags.proxy, "proxy", "", "Proxy URL passed to the resolver")
	f.IntVar(&flags.workers, "workers", 0, "Concurrent track downloads")
	f.Float64Var(&flags.minDelay, "min-delay", 0, "Minimum pause in seconds after each finished track")
	f.Float64Var(&flags.maxDelay, "max-delay", 0, "Maximum pause in seconds after each finished track")
	f.Float64Var(&flags.trackTimeout, "track-timeout", 0, "Per-track deadline in seconds (0 disables)")
	f.StringVar(&flags.backend, "resolver", "", "Resolver backend: ytdlp or youtube")
	f.BoolVar(&flags.noTags, "no-tags", false, "Do not write ID3 tags")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&flags.logFormat, "log-format", "", "Log format: console or json")
	f.BoolVar(&flags.quiet, "quiet", false, "Only print the final status line and errors")
	f.BoolVar(&flags.noProgress, "no-progress", false, "Disable the live progress board")
	f.BoolVar(&flags.json, "json", false, "Emit one JSON result per playlist on stdout")

	rootCmd.AddCommand(newHistoryCommand(flags))
	rootCmd.AddCommand(newConfigCommand(flags))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func runDownload(cmd *cobra.Command, flags *rootFlags, urls []string) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		url, dir, err := promptInput(cmd.InOrStdin(), cmd.ErrOrStderr(), cfg.Download.OutputDir)
		if err != nil {
			return err
		}
		if cfg.Download.OutputDir, err = config.ExpandPath(dir); err != nil {
			return downloader.InvalidInput(fmt.Errorf("output directory: %w", err))
		}
		urls = []string{url}
	}

	board := flags.showBoard()
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr(), board)
	if err != nil {
		return downloader.InvalidInput(err)
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var opts []app.Option
	if board {
		opts = append(opts, app.WithProgress(func() app.Progress {
			return progress.New(os.Stderr, cancel)
		}))
	}
	results, code := app.New(cfg, logger, opts...).Run(ctx, urls)

	out := cmd.OutOrStdout()
	for _, res := range results {
		switch {
		case flags.json:
			if err := writeJSON(out, res); err != nil {
				return err
			}
		case flags.quiet:
			fmt.Fprintln(out, res.StatusLine())
		default:
			app.WriteSummary(out, res)
		}
	}
	if len(results) == 0 && code != 0 {
		err := fmt.Errorf("%w before any playlist started", downloader.ErrInterrupted)
		if flags.json {
			writeJSONError(out, "", err)
		} else {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	if code != 0 {
		return reportedError{code: code}
	}
	return nil
}

func (f *rootFlags) showBoard() bool {
	if f.noProgress || f.quiet || f.json {
		return false
	}
	return progress.Interactive(os.Stderr)
}

// loadConfig reads the configuration file and layers explicit flags on top.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, _, _, err := config.Load(strings.TrimSpace(flags.configPath))
	if err != nil {
		return nil, downloader.InvalidInput(fmt.Errorf("load config: %w", err))
	}
	changed := cmd.Flags().Changed
	if changed("catalog") {
		cfg.Catalog.Enabled = true
		cfg.Catalog.Path = flags.catalog
	}
	if cmd.Flags().Lookup("output") != nil {
		applyDownloadFlags(cfg, flags, changed)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, downloader.InvalidInput(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, downloader.InvalidInput(err)
	}
	return cfg, nil
}

// applyDownloadFlags layers the root command's download flags onto cfg.
func applyDownloadFlags(cfg *config.Config, flags *rootFlags, changed func(string) bool) {
	if changed("output") {
		cfg.Download.OutputDir = flags.output
	}
	if changed("zip") {
		cfg.Download.Archive = flags.archive
	}
	if changed("proxy") {
		cfg.Resolver.Proxy = flags.proxy
	}
	if changed("workers") {
		cfg.Download.Workers = flags.workers
	}
	if changed("min-delay") {
		cfg.Download.MinDelay = flags.minDelay
		if !changed("max-delay") && cfg.Download.MaxDelay < flags.minDelay {
			cfg.Download.MaxDelay = flags.minDelay
		}
	}
	if changed("max-delay") {
		cfg.Download.MaxDelay = flags.maxDelay
	}
	if changed("track-timeout") {
		cfg.Download.TrackTimeout = flags.trackTimeout
	}
	if changed("resolver") {
		cfg.Resolver.Backend = flags.backend
	}
	if flags.noTags {
		cfg.Download.Tag = false
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if changed("log-format") {
		cfg.Logging.Format = flags.logFormat
	}
	if flags.quiet && !changed("log-level") {
		cfg.Logging.Level = "error"
	}
}

// newLogger builds the run logger. While the progress board owns the
// terminal, records only reach the log file.
func newLogger(cfg *config.Config, stderr io.Writer, board bool) (*slog.Logger, func() error, error) {
	output := stderr
	if board {
		output = io.Discard
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
		File:   cfg.Logging.File,
	})
}
