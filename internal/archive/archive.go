// Package archive bundles a playlist's downloaded files into a zip.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/lvcoi/playlistdl/internal/logging"
)

// ErrNoEntries is returned by Build when none of the files could be added.
var ErrNoEntries = errors.New("archive has no entries")

// Build writes files into a zip at archivePath and returns the entry names it
// wrote, in order. Entry names are the files' paths relative to rootDir in
// slash form. Files that vanished since they were collected are skipped with
// a warning; any other read failure aborts the build. When every file is
// skipped Build writes nothing and returns ErrNoEntries. The archive is
// written to a temporary sibling and renamed into place only once it is
// complete, so a failed build never leaves a truncated zip.
func Build(files []string, archivePath, rootDir string, log *slog.Logger) (entries []string, err error) {
	if log == nil {
		log = logging.NewNop()
	}

	tmpPath := archivePath + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating archive %s: %w", archivePath, err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(out)
	seen := make(map[string]struct{}, len(files))
	entries = make([]string, 0, len(files))
	for _, file := range files {
		name, relErr := entryName(rootDir, file)
		if relErr != nil {
			return nil, relErr
		}
		if _, dup := seen[name]; dup {
			continue
		}
		added, addErr := addFile(zw, file, name)
		if addErr != nil {
			return nil, addErr
		}
		if !added {
			log.Warn("skipping missing file", slog.String(logging.FieldPath, file))
			continue
		}
		seen[name] = struct{}{}
		entries = append(entries, name)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("building %s: %w", archivePath, ErrNoEntries)
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive %s: %w", archivePath, err)
	}
	if err = out.Sync(); err != nil {
		return nil, fmt.Errorf("syncing archive %s: %w", archivePath, err)
	}
	if err = out.Close(); err != nil {
		return nil, fmt.Errorf("closing archive %s: %w", archivePath, err)
	}
	if err = os.Rename(tmpPath, archivePath); err != nil {
		return nil, fmt.Errorf("moving archive into place: %w", err)
	}
	log.Debug("archive written",
		slog.String(logging.FieldPath, archivePath),
		slog.Int("entries", len(entries)),
	)
	return entries, nil
}

func entryName(rootDir, file string) (string, error) {
	rel, err := filepath.Rel(rootDir, file)
	if err != nil {
		return "", fmt.Errorf("archive entry for %s: %w", file, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("archive entry for %s: outside %s", file, rootDir)
	}
	return rel, nil
}

// addFile copies one file into the archive. It reports false, nil when the
// file no longer exists.
func addFile(zw *zip.Writer, path, name string) (bool, error) {
	src, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("archiving %s: not a regular file", path)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return false, fmt.Errorf("zip header for %s: %w", path, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return false, fmt.Errorf("zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return false, fmt.Errorf("writing %s: %w", name, err)
	}
	return true, nil
}
