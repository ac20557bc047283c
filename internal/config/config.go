package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Download contains settings for a playlist run.
type Download struct {
	OutputDir string `toml:"output_dir"`
	Archive   bool   `toml:"archive"`
	Workers   int    `toml:"workers"`
	// Delays and timeouts are in seconds.
	MinDelay     float64 `toml:"min_delay"`
	MaxDelay     float64 `toml:"max_delay"`
	TrackTimeout float64 `toml:"track_timeout"`
	SettleDelay  float64 `toml:"settle_delay"`
	Tag          bool    `toml:"tag"`
}

// Resolver contains settings for the media resolver backend.
type Resolver struct {
	Backend      string  `toml:"backend"`
	Binary       string  `toml:"binary"`
	Proxy        string  `toml:"proxy"`
	AudioFormat  string  `toml:"audio_format"`
	AudioQuality string  `toml:"audio_quality"`
	HTTPTimeout  int     `toml:"http_timeout"`
	HTTPRetries  int     `toml:"http_retries"`
	RetryBackoff float64 `toml:"retry_backoff"`
}

// Catalog contains settings for the download history database.
type Catalog struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config is the full playlistdl configuration.
type Config struct {
	Download Download `toml:"download"`
	Resolver Resolver `toml:"resolver"`
	Catalog  Catalog  `toml:"catalog"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, normalizes, and validates a configuration file. An
// empty path falls back to $PLAYLISTDL_CONFIG, then the per-user file, then
// ./playlistdl.toml. A missing file is not an error: defaults apply and the
// returned exists flag is false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envConfigPath))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// MinDelayDuration returns the minimum pacing delay.
func (d Download) MinDelayDuration() time.Duration { return seconds(d.MinDelay) }

// MaxDelayDuration returns the maximum pacing delay.
func (d Download) MaxDelayDuration() time.Duration { return seconds(d.MaxDelay) }

// TrackTimeoutDuration returns the per-track deadline; zero disables it.
func (d Download) TrackTimeoutDuration() time.Duration { return seconds(d.TrackTimeout) }

// SettleDelayDuration returns the post-transfer settle delay.
func (d Download) SettleDelayDuration() time.Duration { return seconds(d.SettleDelay) }

// HTTPTimeoutDuration returns the per-request timeout of the youtube backend.
func (r Resolver) HTTPTimeoutDuration() time.Duration {
	return time.Duration(r.HTTPTimeout) * time.Second
}

// RetryBackoffDuration returns the first pause between HTTP retries.
func (r Resolver) RetryBackoffDuration() time.Duration { return seconds(r.RetryBackoff) }

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	expanded, err := expandHome(pathValue)
	if err != nil {
		return "", err
	}
	absolute, err := filepath.Abs(filepath.Clean(expanded))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", expanded, err)
	}
	return absolute, nil
}

func expandHome(pathValue string) (string, error) {
	if !strings.HasPrefix(pathValue, "~") {
		return pathValue, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if pathValue == "~" {
		return home, nil
	}
	if pathValue[1] == '/' || pathValue[1] == '\\' {
		return filepath.Join(home, pathValue[2:]), nil
	}
	return pathValue, nil
}

// Sample returns the annotated sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path. An existing file is
// left untouched unless overwrite is set.
func CreateSample(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
