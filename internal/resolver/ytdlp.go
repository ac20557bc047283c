package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/lvcoi/playlistdl/internal/logging"
)

// Executor runs a command and returns its stdout.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// YTDLP resolves and fetches through the yt-dlp command line tool.
type YTDLP struct {
	cfg    Config
	exec   Executor
	logger *slog.Logger
}

// YTDLPOption configures a YTDLP backend.
type YTDLPOption func(*YTDLP)

// WithExecutor injects a command executor, mostly for tests.
func WithExecutor(e Executor) YTDLPOption {
	return func(y *YTDLP) {
		if e != nil {
			y.exec = e
		}
	}
}

// NewYTDLP constructs the yt-dlp backend.
func NewYTDLP(cfg Config, logger *slog.Logger, opts ...YTDLPOption) *YTDLP {
	y := &YTDLP{
		cfg:    cfg.withDefaults(),
		exec:   commandExecutor{},
		logger: logging.NewComponentLogger(logger, "resolver"),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

type flatPlaylist struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Uploader string      `json:"uploader"`
	Type     string      `json:"_type"`
	Entries  []flatEntry `json:"entries"`
}

type flatEntry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Uploader   string `json:"uploader"`
	URL        string `json:"url"`
	WebpageURL string `json:"webpage_url"`
}

// ResolvePlaylist runs yt-dlp -J --flat-playlist and decodes the result.
func (y *YTDLP) ResolvePlaylist(ctx context.Context, url string) (Playlist, error) {
	args := y.baseArgs()
	args = append(args, "-J", "--flat-playlist", url)
	out, err := y.exec.Run(ctx, y.cfg.Binary, args)
	if err != nil {
		return Playlist{}, fmt.Errorf("resolve playlist: %w", err)
	}
	playlist, err := parsePlaylist(out)
	if err != nil {
		return Playlist{}, err
	}
	y.logger.Debug("playlist resolved",
		slog.String(logging.FieldPlaylist, playlist.Title),
		slog.Int("tracks", len(playlist.Tracks)),
	)
	return playlist, nil
}

func parsePlaylist(data []byte) (Playlist, error) {
	var raw flatPlaylist
	if err := json.Unmarshal(data, &raw); err != nil {
		return Playlist{}, fmt.Errorf("decode playlist json: %w", err)
	}
	playlist := Playlist{ID: raw.ID, Title: raw.Title, Tracks: make([]Track, 0, len(raw.Entries))}
	for _, entry := range raw.Entries {
		link := entry.WebpageURL
		if link == "" {
			link = entry.URL
		}
		if link == "" {
			continue
		}
		artist := entry.Uploader
		if artist == "" {
			artist = raw.Uploader
		}
		playlist.Tracks = append(playlist.Tracks, Track{
			ID:     entry.ID,
			Title:  entry.Title,
			Artist: artist,
			URL:    link,
			Album:  raw.Title,
			Index:  len(playlist.Tracks) + 1,
		})
	}
	return playlist, nil
}

// SuggestFilename asks yt-dlp for the "%(title)s.%(ext)s" name of the track.
func (y *YTDLP) SuggestFilename(ctx context.Context, track Track) (string, error) {
	args := y.baseArgs()
	args = append(args, "--no-playlist", "--skip-download", "--print", "filename", "-o", "%(title)s.%(ext)s", track.URL)
	out, err := y.exec.Run(ctx, y.cfg.Binary, args)
	if err != nil {
		return "", fmt.Errorf("suggest filename: %w", err)
	}
	return lastLine(out), nil
}

// FetchAudio downloads the best audio stream and converts it to the
// configured format at destStem.<ext>.
func (y *YTDLP) FetchAudio(ctx context.Context, track Track, destStem string) error {
	args := y.baseArgs()
	args = append(args,
		"--no-playlist",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", y.cfg.AudioFormat,
		"--audio-quality", y.cfg.AudioQuality,
		"-o", escapeTemplate(destStem)+".%(ext)s",
		track.URL,
	)
	if _, err := y.exec.Run(ctx, y.cfg.Binary, args); err != nil {
		return fmt.Errorf("fetch audio: %w", err)
	}
	return nil
}

func (y *YTDLP) baseArgs() []string {
	args := []string{"--quiet", "--no-warnings", "--no-progress", "--retries", strconv.Itoa(y.cfg.HTTPRetries)}
	if y.cfg.Proxy != "" {
		args = append(args, "--proxy", y.cfg.Proxy)
	}
	return args
}

// escapeTemplate keeps literal percent signs in a path out of yt-dlp's
// output template expansion.
func escapeTemplate(path string) string {
	return strings.ReplaceAll(path, "%", "%%")
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return nil, fmt.Errorf("%s exited with code %d: %s", binary, exitErr.ExitCode(), msg)
			}
			return nil, fmt.Errorf("%s exited with code %d", binary, exitErr.ExitCode())
		}
		return nil, fmt.Errorf("run %s: %w", binary, err)
	}
	return stdout.Bytes(), nil
}
