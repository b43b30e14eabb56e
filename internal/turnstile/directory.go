package turnstile

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/i474232898/turnstile-stats/internal/store"
)

// StationTableKey is the store key of the persisted station table.
const StationTableKey = "station"

// Directory maps legacy (unit, booth) pairs to station metadata.
type Directory struct {
	stations map[string]StationInfo
}

// NewDirectory indexes the given reference rows. Later duplicates win.
func NewDirectory(rows []StationInfo) *Directory {
	d := &Directory{stations: make(map[string]StationInfo, len(rows))}
	for _, r := range rows {
		d.stations[directoryKey(r.Unit, r.Booth)] = r
	}
	return d
}

// Lookup returns the station row for a unit and booth.
func (d *Directory) Lookup(unit, booth string) (StationInfo, bool) {
	if d == nil {
		return StationInfo{}, false
	}
	s, ok := d.stations[directoryKey(unit, booth)]
	return s, ok
}

// Len returns the number of indexed rows.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.stations)
}

func directoryKey(unit, booth string) string {
	return unit + "|" + booth
}

// stationTable is the persisted form of the reference table.
type stationTable struct {
	Rows []StationInfo
}

// DirectoryLoader loads the station directory once per process, from the
// store if a copy was persisted earlier, otherwise from the remote source.
// A failed load is not remembered; the next call tries again.
type DirectoryLoader struct {
	store  Store
	source StationSource

	mu  sync.Mutex
	dir *Directory
}

// NewDirectoryLoader creates a loader over a store and a remote source.
func NewDirectoryLoader(st Store, src StationSource) *DirectoryLoader {
	return &DirectoryLoader{store: st, source: src}
}

// Directory returns the loaded directory, loading it on first use.
func (l *DirectoryLoader) Directory(ctx context.Context) (*Directory, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dir != nil {
		return l.dir, nil
	}

	rows, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	l.dir = NewDirectory(rows)
	log.Printf("directory: %d station rows loaded", l.dir.Len())
	return l.dir, nil
}

func (l *DirectoryLoader) load(ctx context.Context) ([]StationInfo, error) {
	data, err := l.store.Get(StationTableKey)
	switch {
	case err == nil:
		var t stationTable
		decodeErr := gob.NewDecoder(bytes.NewReader(data)).Decode(&t)
		if decodeErr == nil {
			return t.Rows, nil
		}
		log.Printf("directory: decoding cached station table failed, refetching: %v", decodeErr)
	case !errors.Is(err, store.ErrNotFound):
		log.Printf("directory: reading cached station table failed: %v", err)
	}

	if l.source == nil {
		return nil, fmt.Errorf("%w: no station table source configured", ErrSourceUnavailable)
	}
	rows, err := l.source.FetchStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: station table: %w", ErrSourceUnavailable, err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(stationTable{Rows: rows}); err != nil {
		return nil, fmt.Errorf("encode station table: %w", err)
	}
	if err := l.store.Put(StationTableKey, buf.Bytes()); err != nil {
		log.Printf("directory: persisting station table failed: %v", err)
	}
	return rows, nil
}
