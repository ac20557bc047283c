package config

const (
	defaultOutputDir     = "output"
	defaultWorkers       = 3
	defaultMinDelay      = 1.0
	defaultMaxDelay      = 3.0
	defaultTrackTimeout  = 600.0
	defaultSettleDelay   = 0.5
	defaultBackend       = "ytdlp"
	defaultBinary        = "yt-dlp"
	defaultAudioFormat   = "mp3"
	defaultAudioQuality  = "192K"
	defaultHTTPTimeout   = 30
	defaultHTTPRetries   = 3
	defaultRetryBackoff  = 0.5
	maxHTTPRetries       = 10
	defaultCatalogPath   = "~/.local/share/playlistdl/catalog.db"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultConfigPath    = "~/.config/playlistdl/config.toml"
	projectConfigName    = "playlistdl.toml"
	envConfigPath        = "PLAYLISTDL_CONFIG"
	envProxy             = "PLAYLISTDL_PROXY"
	maxWorkers           = 32
	maxTrackTimeoutHours = 24
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Download: Download{
			OutputDir:    defaultOutputDir,
			Workers:      defaultWorkers,
			MinDelay:     defaultMinDelay,
			MaxDelay:     defaultMaxDelay,
			TrackTimeout: defaultTrackTimeout,
			SettleDelay:  defaultSettleDelay,
			Tag:          true,
		},
		Resolver: Resolver{
			Backend:      defaultBackend,
			Binary:       defaultBinary,
			AudioFormat:  defaultAudioFormat,
			AudioQuality: defaultAudioQuality,
			HTTPTimeout:  defaultHTTPTimeout,
			HTTPRetries:  defaultHTTPRetries,
			RetryBackoff: defaultRetryBackoff,
		},
		Catalog: Catalog{
			Path: defaultCatalogPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
