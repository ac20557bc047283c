package downloader

import (
	"context"
	"fmt"
	"sync"

	"github.com/lvcoi/playlistdl/internal/resolver"
)

// outcome is the result of one fetch task.
type outcome struct {
	track resolver.Track
	path  string
	ok    bool
}

// runPool fetches tracks with exactly workers goroutines and returns a
// channel of outcomes in completion order. The channel is buffered to the
// track count so workers never wait on the consumer, and it is closed once
// every worker has exited. Tracks not yet started when ctx is cancelled are
// dropped.
func runPool(ctx context.Context, workers int, tracks []resolver.Track, work func(context.Context, resolver.Track) outcome, onPanic func(resolver.Track, error)) <-chan outcome {
	if workers > len(tracks) {
		workers = len(tracks)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan resolver.Track)
	completions := make(chan outcome, len(tracks))

	go func() {
		defer close(jobs)
		for _, track := range tracks {
			select {
			case <-ctx.Done():
				return
			case jobs <- track:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for track := range jobs {
				if ctx.Err() != nil {
					continue
				}
				completions <- safeRun(ctx, track, work, onPanic)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(completions)
	}()
	return completions
}

// safeRun turns a panicking task into a failed outcome.
func safeRun(ctx context.Context, track resolver.Track, work func(context.Context, resolver.Track) outcome, onPanic func(resolver.Track, error)) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{track: track}
			if onPanic != nil {
				onPanic(track, fmt.Errorf("panic: %v", r))
			}
		}
	}()
	return work(ctx, track)
}
