package fetcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	id3v2 "github.com/bogem/id3v2/v2"

	"github.com/lvcoi/playlistdl/internal/resolver"
)

// fakeResolver writes "<stem>.<ext>" (or a custom name) for every fetch.
type fakeResolver struct {
	mu         sync.Mutex
	suggest    func(resolver.Track) (string, error)
	fetch      func(track resolver.Track, destStem string) error
	fetchCalls []string
}

func (r *fakeResolver) ResolvePlaylist(context.Context, string) (resolver.Playlist, error) {
	return resolver.Playlist{}, errors.New("not used")
}

func (r *fakeResolver) SuggestFilename(_ context.Context, track resolver.Track) (string, error) {
	if r.suggest != nil {
		return r.suggest(track)
	}
	return track.Title + ".opus", nil
}

func (r *fakeResolver) FetchAudio(_ context.Context, track resolver.Track, destStem string) error {
	r.mu.Lock()
	r.fetchCalls = append(r.fetchCalls, destStem)
	r.mu.Unlock()
	if r.fetch != nil {
		return r.fetch(track, destStem)
	}
	return os.WriteFile(destStem+".mp3", []byte(track.ID), 0o644)
}

func newTestFetcher(r resolver.Resolver, opts Options) *Fetcher {
	if opts.SettleDelay == 0 {
		opts.SettleDelay = -1
	}
	return New(r, opts, nil)
}

func TestFetchExpectedPath(t *testing.T) {
	dir := t.TempDir()
	r := &fakeResolver{}
	f := newTestFetcher(r, Options{})

	path, ok := f.Fetch(context.Background(), resolver.Track{ID: "1", Title: "Song: One"}, dir)
	if !ok {
		t.Fatal("expected success")
	}
	if want := filepath.Join(dir, "Song_One.mp3"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if r.fetchCalls[0] != filepath.Join(dir, "Song_One") {
		t.Fatalf("resolver got stem %q", r.fetchCalls[0])
	}
}

func TestFetchFallsBackToTitle(t *testing.T) {
	dir := t.TempDir()
	r := &fakeResolver{suggest: func(resolver.Track) (string, error) { return "", errors.New("no network") }}
	f := newTestFetcher(r, Options{})

	path, ok := f.Fetch(context.Background(), resolver.Track{ID: "1", Title: "feat.Someone"}, dir)
	if !ok {
		t.Fatal("expected success")
	}
	if want := filepath.Join(dir, "feat.Someone.mp3"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
}

func TestFetchRecoveryScan(t *testing.T) {
	dir := t.TempDir()
	r := &fakeResolver{fetch: func(track resolver.Track, destStem string) error {
		if err := os.WriteFile(destStem+" (1).mp3.part", []byte("partial"), 0o644); err != nil {
			return err
		}
		return os.WriteFile(destStem+" (1).mp3", []byte("full"), 0o644)
	}}
	f := newTestFetcher(r, Options{})

	path, ok := f.Fetch(context.Background(), resolver.Track{Title: "Song Two"}, dir)
	if !ok {
		t.Fatal("expected recovered success")
	}
	if want := filepath.Join(dir, "Song_Two (1).mp3"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
}

func TestFetchSoftFailures(t *testing.T) {
	tests := []struct {
		name  string
		fetch func(resolver.Track, string) error
	}{
		{"transport error", func(resolver.Track, string) error { return errors.New("HTTP 403") }},
		{"nothing written", func(resolver.Track, string) error { return nil }},
		{"only partial written", func(_ resolver.Track, stem string) error {
			return os.WriteFile(stem+".mp3.part", []byte("x"), 0o644)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			f := newTestFetcher(&fakeResolver{fetch: tt.fetch}, Options{})
			path, ok := f.Fetch(context.Background(), resolver.Track{Title: "Song"}, dir)
			if ok || path != "" {
				t.Fatalf("expected absent outcome, got %q, %v", path, ok)
			}
		})
	}
}

func TestFetchSettleDelayHonoursContext(t *testing.T) {
	dir := t.TempDir()
	f := New(&fakeResolver{}, Options{SettleDelay: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan bool, 1)
	go func() {
		_, ok := f.Fetch(ctx, resolver.Track{ID: "1", Title: "Song"}, dir)
		done <- ok
	}()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected failure on cancelled context")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Fetch did not return after cancellation")
	}
}

func TestFetchUsesInjectedSleep(t *testing.T) {
	dir := t.TempDir()
	f := New(&fakeResolver{}, Options{}, nil)
	var slept time.Duration
	f.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}
	if _, ok := f.Fetch(context.Background(), resolver.Track{ID: "1", Title: "Song"}, dir); !ok {
		t.Fatal("expected success")
	}
	if slept != DefaultSettleDelay {
		t.Fatalf("expected settle delay %v, got %v", DefaultSettleDelay, slept)
	}
}

func TestFetchCollisionLastWriterWins(t *testing.T) {
	dir := t.TempDir()
	f := newTestFetcher(&fakeResolver{}, Options{})

	first, ok1 := f.Fetch(context.Background(), resolver.Track{ID: "first", Title: "Song?"}, dir)
	second, ok2 := f.Fetch(context.Background(), resolver.Track{ID: "second", Title: "Song*"}, dir)
	if !ok1 || !ok2 {
		t.Fatal("expected both fetches to succeed")
	}
	if first != second {
		t.Fatalf("expected colliding paths, got %q and %q", first, second)
	}
	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("expected last writer to win, file holds %q", data)
	}
}

func TestFetchWritesTags(t *testing.T) {
	dir := t.TempDir()
	frames := bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 512)
	r := &fakeResolver{fetch: func(_ resolver.Track, stem string) error {
		return os.WriteFile(stem+".mp3", frames, 0o644)
	}}
	f := newTestFetcher(r, Options{Tag: true})
	track := resolver.Track{ID: "1", Title: "Song One", Artist: "Artist", Album: "My Mix", Index: 2}

	path, ok := f.Fetch(context.Background(), track, dir)
	if !ok {
		t.Fatal("expected success")
	}
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("open tag: %v", err)
	}
	defer tag.Close()
	if tag.Title() != "Song One" || tag.Artist() != "Artist" || tag.Album() != "My Mix" {
		t.Fatalf("unexpected tags: %q %q %q", tag.Title(), tag.Artist(), tag.Album())
	}
	if got := tag.GetTextFrame(tag.CommonID("Track number/Position in set")).Text; got != "2" {
		t.Fatalf("track number = %q, want 2", got)
	}
}
