package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/lvcoi/playlistdl/internal/downloader"
	"github.com/lvcoi/playlistdl/internal/resolver"
)

// interactiveInput reports whether r is a terminal a person can answer
// prompts on.
var interactiveInput = func(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// promptInput asks for a playlist URL until one validates, then for the
// output directory. An empty answer keeps defaultDir.
func promptInput(in io.Reader, out io.Writer, defaultDir string) (string, string, error) {
	reader := bufio.NewReader(in)

	var url string
	for {
		fmt.Fprint(out, "Playlist URL: ")
		line, err := reader.ReadString('\n')
		url = strings.TrimSpace(line)
		if url != "" && resolver.ValidateURL(url) == nil {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return "", "", downloader.InvalidInput(errors.New("no playlist url provided"))
			}
			return "", "", downloader.InvalidInput(fmt.Errorf("read playlist url: %w", err))
		}
		fmt.Fprintln(out, "Invalid URL. Enter an http(s) playlist URL.")
	}

	fmt.Fprintf(out, "Output directory (default: %s): ", defaultDir)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", "", downloader.InvalidInput(fmt.Errorf("read output directory: %w", err))
	}
	dir := strings.TrimSpace(line)
	if dir == "" {
		dir = defaultDir
	}
	return url, dir, nil
}
