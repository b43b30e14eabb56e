package turnstile

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// EndCutoff is how far into the end date a retrieval reaches. No device
// takes its first reading of a day later than 03:00, so the window always
// includes the end date's first reading.
const EndCutoff = 3 * time.Hour

// Retriever assembles the readings for a date range from the weekly files.
type Retriever struct {
	locator     *Locator
	fetcher     Fetcher
	cache       *FileCache
	directory   *DirectoryLoader
	concurrency int
}

// NewRetriever creates a Retriever. concurrency bounds parallel file
// loads; values below 1 mean sequential.
func NewRetriever(locator *Locator, fetcher Fetcher, cache *FileCache, directory *DirectoryLoader, concurrency int) *Retriever {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Retriever{
		locator:     locator,
		fetcher:     fetcher,
		cache:       cache,
		directory:   directory,
		concurrency: concurrency,
	}
}

// Retrieve returns every reading from start 00:00 through end 03:00
// (both inclusive), in file order and timestamp order within a file.
func (r *Retriever) Retrieve(ctx context.Context, start, end time.Time) (Series, error) {
	files, err := r.locator.Locate(start, end)
	if err != nil {
		return nil, err
	}

	chunks := make([]Series, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, desc := range files {
		i, desc := i, desc
		g.Go(func() error {
			s, err := r.Load(gctx, desc)
			if err != nil {
				return err
			}
			chunks[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	from := truncateDay(start)
	to := truncateDay(end).Add(EndCutoff)

	var out Series
	for _, c := range chunks {
		out = append(out, window(c, from, to)...)
	}
	log.Printf("retriever: %d readings from %d files for %s..%s",
		len(out), len(files), from.Format(time.DateOnly), end.Format(time.DateOnly))
	return out, nil
}

// Load returns the parsed series of one file through the cache. Concurrent
// callers for the same file share one download, so it runs detached from
// the caller's cancellation and is bounded by the HTTP client timeout.
func (r *Retriever) Load(ctx context.Context, desc FileDescriptor) (Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shared := context.WithoutCancel(ctx)
	return r.cache.GetOrLoad(desc, func() (Series, error) {
		return r.fetchAndParse(shared, desc)
	})
}

func (r *Retriever) fetchAndParse(ctx context.Context, desc FileDescriptor) (Series, error) {
	format := FormatFor(desc.Published)

	var stations StationLookup
	if _, legacy := format.(LegacyFormat); legacy {
		dir, err := r.directory.Directory(ctx)
		if err != nil {
			return nil, err
		}
		stations = dir
	}

	log.Printf("retriever: fetching %s (%s format)", desc.URL, format.Name())
	data, err := r.fetcher.Fetch(ctx, desc.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, desc.URL, err)
	}

	s, err := format.Parse(bytes.NewReader(data), stations)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", desc.Key(), err)
	}
	return s, nil
}

// window returns the readings of a sorted series with from <= ts <= to.
func window(s Series, from, to time.Time) Series {
	lo := sort.Search(len(s), func(i int) bool {
		return !s[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(s), func(i int) bool {
		return s[i].Timestamp.After(to)
	})
	if lo >= hi {
		return nil
	}
	return s[lo:hi]
}
