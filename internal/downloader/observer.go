package downloader

import "github.com/lvcoi/playlistdl/internal/resolver"

// Observer receives run progress events. TrackStarted is called from worker
// goroutines and must be safe for concurrent use; every other method is
// called from the goroutine running DownloadPlaylist.
type Observer interface {
	PlaylistResolved(playlist resolver.Playlist, workDir string)
	TrackStarted(track resolver.Track)
	TrackFinished(track resolver.Track, path string, ok bool)
	Assembling(succeeded int, archive bool)
	Finished(artifact Artifact, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) PlaylistResolved(resolver.Playlist, string) {}
func (NopObserver) TrackStarted(resolver.Track)                {}
func (NopObserver) TrackFinished(resolver.Track, string, bool) {}
func (NopObserver) Assembling(int, bool)                       {}
func (NopObserver) Finished(Artifact, error)                   {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) PlaylistResolved(playlist resolver.Playlist, workDir string) {
	for _, obs := range o {
		obs.PlaylistResolved(playlist, workDir)
	}
}

func (o Observers) TrackStarted(track resolver.Track) {
	for _, obs := range o {
		obs.TrackStarted(track)
	}
}

func (o Observers) TrackFinished(track resolver.Track, path string, ok bool) {
	for _, obs := range o {
		obs.TrackFinished(track, path, ok)
	}
}

func (o Observers) Assembling(succeeded int, archive bool) {
	for _, obs := range o {
		obs.Assembling(succeeded, archive)
	}
}

func (o Observers) Finished(artifact Artifact, err error) {
	for _, obs := range o {
		obs.Finished(artifact, err)
	}
}
