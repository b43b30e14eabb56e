package turnstile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/turnstile-stats/internal/store"
)

const testBaseURL = "http://example.test/turnstile_{date}.txt"

const modernHeader = "C/A,UNIT,SCP,STATION,LINENAME,DIVISION,DATE,TIME,DESC,ENTRIES,EXITS"

// fakeFetcher serves canned files by URL and counts requests.
type fakeFetcher struct {
	mu    sync.Mutex
	files map[string][]byte
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{files: map[string][]byte{}, calls: map[string]int{}}
}

func (f *fakeFetcher) add(key string, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[strings.ReplaceAll(testBaseURL, DatePlaceholder, key)] = []byte(body)
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	data, ok := f.files[url]
	if !ok {
		return nil, fmt.Errorf("unexpected status code: 404")
	}
	return data, nil
}

func (f *fakeFetcher) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[strings.ReplaceAll(testBaseURL, DatePlaceholder, key)]
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// fakeStations is a StationSource returning fixed rows.
type fakeStations struct {
	rows  []StationInfo
	err   error
	calls int
}

func (f *fakeStations) FetchStations(context.Context) ([]StationInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

// modernRow renders one row of the columnar layout. date is YYYY-MM-DD.
func modernRow(booth, unit, scp, station, date, clock, desc string, entries, exits int64) string {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s,%s,%s,%s,NQR456,BMT,%s,%s,%s,%d,%d",
		booth, unit, scp, station, d.Format("01/02/2006"), clock, desc, entries, exits)
}

func modernFile(rows ...string) string {
	return modernHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type pipeline struct {
	fetcher   *fakeFetcher
	stations  *fakeStations
	store     *store.MemoryStore
	retriever *Retriever
	service   *Service
}

func newPipeline(t *testing.T, now time.Time) *pipeline {
	t.Helper()
	p := &pipeline{
		fetcher:  newFakeFetcher(),
		stations: &fakeStations{},
		store:    store.NewMemoryStore(),
	}
	locator := NewLocator(testBaseURL, fixedClock(now))
	p.retriever = NewRetriever(
		locator,
		p.fetcher,
		NewFileCache(p.store, 4),
		NewDirectoryLoader(p.store, p.stations),
		2,
	)
	p.service = NewService(locator, p.retriever, fixedClock(now))
	return p
}

func equalSeries(t *testing.T, got, want Series) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d readings, got %d", len(want), len(got))
	}
	for i := range want {
		g, w := got[i], want[i]
		if !g.Timestamp.Equal(w.Timestamp) || g.DeviceID != w.DeviceID || g.Station != w.Station ||
			g.LineName != w.LineName || g.Division != w.Division || g.Description != w.Description ||
			g.Entries != w.Entries || g.Exits != w.Exits {
			t.Fatalf("reading %d: expected %+v, got %+v", i, w, g)
		}
	}
}
