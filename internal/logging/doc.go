// Package logging builds the slog loggers shared by every playlistdl
// component.
//
// The entry point owns the logger: it constructs one with New and passes it
// down, and components derive tagged children with NewComponentLogger. Tests
// and optional wiring use NewNop.
package logging
