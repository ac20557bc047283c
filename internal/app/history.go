package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/lvcoi/playlistdl/internal/config"
	"github.com/lvcoi/playlistdl/internal/db"
)

// ErrNoCatalog reports that the catalog file has not been created yet.
var ErrNoCatalog = errors.New("no catalog recorded yet")

// History returns up to limit catalog runs, newest first.
func History(cfg *config.Config, limit int) ([]db.RunRecord, error) {
	catalog, err := openExistingCatalog(cfg)
	if err != nil {
		return nil, err
	}
	defer catalog.Close()
	return catalog.ListRuns(limit, 0)
}

// RunTracks returns the track outcomes of the run whose ID starts with
// prefix.
func RunTracks(cfg *config.Config, prefix string) (db.RunRecord, []db.TrackRecord, error) {
	catalog, err := openExistingCatalog(cfg)
	if err != nil {
		return db.RunRecord{}, nil, err
	}
	defer catalog.Close()

	id, err := catalog.ResolveRunID(prefix)
	if err != nil {
		return db.RunRecord{}, nil, err
	}
	run, err := catalog.GetRun(id)
	if err != nil {
		return db.RunRecord{}, nil, err
	}
	tracks, err := catalog.ListTracks(id)
	if err != nil {
		return db.RunRecord{}, nil, err
	}
	return run, tracks, nil
}

func openExistingCatalog(cfg *config.Config) (*db.DB, error) {
	path := cfg.Catalog.Path
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNoCatalog, path)
		}
		return nil, fmt.Errorf("stat catalog: %w", err)
	}
	return db.Open(path)
}
