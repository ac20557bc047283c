package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/lvcoi/playlistdl/internal/logging"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// youtubeClient is the subset of *youtube.Client the backend uses.
type youtubeClient interface {
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

var _ youtubeClient = (*youtube.Client)(nil)

// transcodeFunc converts the downloaded stream at src into dst.
type transcodeFunc func(src, dst, quality string) error

// YouTube resolves and fetches natively against YouTube, transcoding the
// best audio-only stream with ffmpeg.
type YouTube struct {
	cfg       Config
	client    youtubeClient
	transcode transcodeFunc
	logger    *slog.Logger
}

// NewYouTube constructs the native YouTube backend.
func NewYouTube(cfg Config, logger *slog.Logger) (*YouTube, error) {
	cfg = cfg.withDefaults()
	logger = logging.NewComponentLogger(logger, "resolver")
	httpClient, err := newHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &YouTube{
		cfg:       cfg,
		client:    &youtube.Client{HTTPClient: httpClient},
		transcode: extractAudio,
		logger:    logger,
	}, nil
}

// ResolvePlaylist fetches the playlist page and maps its entries.
func (y *YouTube) ResolvePlaylist(ctx context.Context, url string) (Playlist, error) {
	raw, err := y.client.GetPlaylistContext(ctx, url)
	if err != nil {
		return Playlist{}, fmt.Errorf("resolve playlist: %w", err)
	}
	if raw == nil {
		return Playlist{}, errors.New("resolve playlist: empty response")
	}
	playlist := Playlist{ID: raw.ID, Title: raw.Title, Tracks: make([]Track, 0, len(raw.Videos))}
	for _, entry := range raw.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		artist := entry.Author
		if artist == "" {
			artist = raw.Author
		}
		playlist.Tracks = append(playlist.Tracks, Track{
			ID:     entry.ID,
			Title:  entry.Title,
			Artist: artist,
			URL:    watchURLPrefix + entry.ID,
			Album:  raw.Title,
			Index:  len(playlist.Tracks) + 1,
		})
	}
	y.logger.Debug("playlist resolved",
		slog.String(logging.FieldPlaylist, playlist.Title),
		slog.Int("tracks", len(playlist.Tracks)),
	)
	return playlist, nil
}

// SuggestFilename derives the name from the track title; the backend names
// its output after the title without consulting the network.
func (y *YouTube) SuggestFilename(_ context.Context, track Track) (string, error) {
	name := strings.TrimSpace(track.Title)
	if name == "" {
		name = track.ID
	}
	if name == "" {
		return "", errors.New("track has neither title nor id")
	}
	return name + "." + y.cfg.AudioFormat, nil
}

// FetchAudio streams the best audio-only format to a partial file and
// transcodes it to destStem.<format>.
func (y *YouTube) FetchAudio(ctx context.Context, track Track, destStem string) error {
	ref := track.URL
	if ref == "" {
		ref = track.ID
	}
	video, err := y.client.GetVideoContext(ctx, ref)
	if err != nil {
		return fmt.Errorf("fetch video metadata: %w", err)
	}
	format, err := selectAudioFormat(video)
	if err != nil {
		return err
	}

	partial := destStem + "." + mimeToExt(format.MimeType) + ".part"
	defer os.Remove(partial)
	if err := y.download(ctx, video, format, partial); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := destStem + "." + y.cfg.AudioFormat
	if err := y.transcode(partial, dest, y.cfg.AudioQuality); err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("transcode audio: %w", err)
	}
	return nil
}

func (y *YouTube) download(ctx context.Context, video *youtube.Video, format *youtube.Format, path string) error {
	stream, _, err := y.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(out, stream); err != nil {
		out.Close()
		return fmt.Errorf("download stream: %w", err)
	}
	return out.Close()
}

// selectAudioFormat picks the highest-bitrate audio-only format.
func selectAudioFormat(video *youtube.Video) (*youtube.Format, error) {
	if video == nil {
		return nil, errors.New("no video metadata")
	}
	var best *youtube.Format
	for i := range video.Formats {
		format := &video.Formats[i]
		if format.AudioChannels == 0 || format.Width != 0 || format.Height != 0 {
			continue
		}
		if best == nil || bitrateForFormat(format) > bitrateForFormat(best) {
			best = format
		}
	}
	if best == nil {
		return nil, errors.New("no audio-only formats available")
	}
	return best, nil
}

func bitrateForFormat(f *youtube.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	return f.AverageBitrate
}

func mimeToExt(mime string) string {
	base := strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
	switch base {
	case "audio/mp4":
		return "m4a"
	case "audio/webm":
		return "webm"
	case "audio/mpeg":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	}
	if i := strings.LastIndex(base, "/"); i >= 0 && i < len(base)-1 {
		return base[i+1:]
	}
	return "bin"
}

// extractAudio converts src to dst with ffmpeg, choosing the codec from
// dst's extension.
func extractAudio(src, dst, quality string) error {
	kwargs := ffmpeg.KwArgs{"vn": ""}
	bitrate := strings.ToLower(strings.TrimSpace(quality))

	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(dst), ".")) {
	case "mp3":
		kwargs["acodec"] = "libmp3lame"
	case "m4a", "aac":
		kwargs["acodec"] = "aac"
	case "opus", "webm", "ogg":
		kwargs["acodec"] = "libopus"
	default:
		kwargs["acodec"] = "copy"
		bitrate = ""
	}
	if bitrate != "" {
		kwargs["b:a"] = bitrate
	}

	return ffmpeg.Input(src).
		Output(dst, kwargs).
		OverWriteOutput().
		Silent(true).
		Run()
}
