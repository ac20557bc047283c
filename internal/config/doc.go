// Package config loads, normalizes, and validates playlistdl settings.
//
// Settings come from repository defaults, an optional TOML file, and the
// PLAYLISTDL_* environment variables, in that order of increasing
// precedence. Command line flags are applied on top by the caller. Delays
// are written in fractional seconds, matching the CLI flags.
package config
