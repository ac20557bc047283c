// Package resolver turns playlist URLs into track metadata and transfers
// track audio to disk. The rest of playlistdl only sees the Resolver
// interface; concrete backends shell out to yt-dlp or talk to YouTube
// directly.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Track is one entry of a resolved playlist.
type Track struct {
	ID     string
	Title  string
	Artist string
	URL    string
	// Album is the title of the playlist the track was resolved from.
	Album string
	// Index is the 1-based position within the playlist.
	Index int
}

// DisplayName is the title used in logs, falling back to the ID.
func (t Track) DisplayName() string {
	if strings.TrimSpace(t.Title) != "" {
		return t.Title
	}
	if t.ID != "" {
		return t.ID
	}
	return t.URL
}

// Playlist is the resolved form of a playlist URL. Tracks keep the order the
// backend returned them in.
type Playlist struct {
	ID     string
	Title  string
	Tracks []Track
}

// Resolver is the capability the download pipeline depends on.
type Resolver interface {
	// ResolvePlaylist fetches playlist metadata.
	ResolvePlaylist(ctx context.Context, url string) (Playlist, error)
	// SuggestFilename returns the name the backend would give the track,
	// including an extension.
	SuggestFilename(ctx context.Context, track Track) (string, error)
	// FetchAudio writes the track's audio to destStem plus the configured
	// audio extension.
	FetchAudio(ctx context.Context, track Track, destStem string) error
}

// Backend names accepted by New.
const (
	BackendYTDLP   = "ytdlp"
	BackendYouTube = "youtube"
)

// ErrInvalidURL reports a URL without an http(s) scheme or host.
var ErrInvalidURL = errors.New("invalid playlist url")

// Config is built once per run and shared read-only by every fetch.
type Config struct {
	Proxy        string
	AudioFormat  string
	AudioQuality string
	// Binary is the yt-dlp executable for the ytdlp backend.
	Binary string
	// HTTPTimeout bounds individual HTTP requests of the youtube backend.
	HTTPTimeout time.Duration
	// HTTPRetries is how many times a throttled or failed request is
	// repeated. Zero disables retries.
	HTTPRetries int
	// RetryBackoff is the first pause between retries; later pauses double.
	RetryBackoff time.Duration
}

// DefaultConfig returns the stock resolver settings.
func DefaultConfig() Config {
	return Config{
		AudioFormat:  "mp3",
		AudioQuality: "192K",
		Binary:       "yt-dlp",
		HTTPTimeout:  30 * time.Second,
		HTTPRetries:  3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.AudioFormat) == "" {
		c.AudioFormat = def.AudioFormat
	}
	c.AudioFormat = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.AudioFormat)), ".")
	if strings.TrimSpace(c.AudioQuality) == "" {
		c.AudioQuality = def.AudioQuality
	}
	if strings.TrimSpace(c.Binary) == "" {
		c.Binary = def.Binary
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = def.HTTPTimeout
	}
	if c.HTTPRetries < 0 {
		c.HTTPRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = def.RetryBackoff
	}
	c.Proxy = strings.TrimSpace(c.Proxy)
	return c
}

// AudioExt returns the file extension, without the dot, FetchAudio produces.
func (c Config) AudioExt() string {
	return c.withDefaults().AudioFormat
}

// New builds the named backend.
func New(backend string, cfg Config, logger *slog.Logger) (Resolver, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendYTDLP:
		return NewYTDLP(cfg, logger), nil
	case BackendYouTube:
		return NewYouTube(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown resolver backend %q", backend)
	}
}

// ValidateURL checks that raw is an absolute http(s) URL with a host.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
