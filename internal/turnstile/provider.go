package turnstile

import (
	"context"
)

// Fetcher downloads a remote source file by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StationSource fetches the remote/booth/station reference table.
type StationSource interface {
	FetchStations(ctx context.Context) ([]StationInfo, error)
}

// Store is the opaque key-value store that persists parsed chunks and the
// station table. Get returns store.ErrNotFound on a miss.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
}

// StationLookup resolves a legacy (unit, booth) pair to its station row.
type StationLookup interface {
	Lookup(unit, booth string) (StationInfo, bool)
}
