package fetcher

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMaxScanEntries bounds how many directory entries a recovery scan
// reads.
const DefaultMaxScanEntries = 4096

// ErrNoMatch reports that neither the expected file nor a recovery
// candidate exists.
var ErrNoMatch = errors.New("no matching file")

// partialSuffixes mark files a resolver is still writing or abandoned.
var partialSuffixes = []string{".part", ".ytdl", ".tmp"}

// Locate returns expected when it is a regular file. Otherwise it scans at
// most limit entries of dir and returns the lexically first regular file
// whose name starts with stem and is not a partial download. Resolvers that
// append disambiguating suffixes or pick a different extension are covered
// by this scan.
func Locate(dir, stem, expected string, limit int) (string, error) {
	if info, err := os.Stat(expected); err == nil && info.Mode().IsRegular() {
		return expected, nil
	}
	if stem == "" {
		return "", ErrNoMatch
	}
	if limit <= 0 {
		limit = DefaultMaxScanEntries
	}

	d, err := os.Open(dir)
	if err != nil {
		return "", fmt.Errorf("recovery scan: %w", err)
	}
	defer d.Close()

	entries, err := d.ReadDir(limit)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("recovery scan: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if matchesStem(entry, stem) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", ErrNoMatch
}

func matchesStem(entry fs.DirEntry, stem string) bool {
	if !entry.Type().IsRegular() {
		return false
	}
	name := entry.Name()
	if !strings.HasPrefix(name, stem) {
		return false
	}
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return true
}
