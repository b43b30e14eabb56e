package turnstile

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func seedWeek(p *pipeline) {
	p.fetcher.add("150307", modernFile(
		// Two devices at 59 ST, one at 14 ST.
		modernRow("A002", "R051", "02-00-00", "59 ST", "2015-03-02", "00:00:00", "REGULAR", 1000, 500),
		modernRow("A002", "R051", "02-00-01", "59 ST", "2015-03-02", "00:00:00", "REGULAR", 2000, 100),
		modernRow("A003", "R052", "01-00-00", "14 ST", "2015-03-02", "00:00:00", "REGULAR", 300, 300),
		// Audit reading at the boundary is ignored.
		modernRow("A003", "R052", "01-00-00", "14 ST", "2015-03-02", "00:00:00", "RECOVR AUD", 999999, 999999),
		modernRow("A002", "R051", "02-00-00", "59 ST", "2015-03-03", "12:00:00", "REGULAR", 1200, 600),
		modernRow("A002", "R051", "02-00-00", "59 ST", "2015-03-04", "00:00:00", "REGULAR", 2500, 1400),
		modernRow("A002", "R051", "02-00-01", "59 ST", "2015-03-04", "00:00:00", "REGULAR", 3000, 1100),
		modernRow("A003", "R052", "01-00-00", "14 ST", "2015-03-04", "01:00:00", "REGULAR", 400, 350),
		// Counter reset: excluded from both metrics.
		modernRow("A004", "R053", "00-00-00", "14 ST", "2015-03-02", "00:00:00", "REGULAR", 900000, 10),
		modernRow("A004", "R053", "00-00-00", "14 ST", "2015-03-04", "00:00:00", "REGULAR", 12, 20),
	))
}

func TestQueryStats(t *testing.T) {
	p := newPipeline(t, day("2016-01-01"))
	seedWeek(p)

	got, err := p.service.QueryStats(context.Background(), "2015-03-02", "2015-03-04")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Summary{
		Start: "2015-03-02",
		End:   "2015-03-04",
		Total: "4,550",
		Records: []StationRecord{
			{Station: "59 ST", Entries: "2,500", Exits: "1,900"},
			{Station: "14 ST", Entries: "100", Exits: "50"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestQueryStatsIsIdempotent(t *testing.T) {
	p := newPipeline(t, day("2016-01-01"))
	seedWeek(p)

	first, err := p.service.QueryStats(context.Background(), "2015-03-02", "2015-03-04")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := p.service.QueryStats(context.Background(), "2015-03-02", "2015-03-04")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
	if n := p.fetcher.count("150307"); n != 1 {
		t.Errorf("expected one download across runs, got %d", n)
	}
}

func TestQueryStatsPreconditions(t *testing.T) {
	p := newPipeline(t, day("2015-03-10"))

	cases := []struct {
		start, end string
		want       error
	}{
		{"2015/03/02", "2015-03-04", ErrInvalidDate},
		{"2015-03-02", "soon", ErrInvalidDate},
		{"2015-03-04", "2015-03-02", ErrInvalidRange},
		{"2009-01-01", "2015-03-02", ErrBeforeDataset},
		{"2015-03-02", "2015-03-09", ErrNotPublished},
	}
	for _, tc := range cases {
		_, err := p.service.QueryStats(context.Background(), tc.start, tc.end)
		if !errors.Is(err, tc.want) {
			t.Errorf("QueryStats(%s, %s): expected %v, got %v", tc.start, tc.end, tc.want, err)
		}
	}
	if p.fetcher.total() != 0 {
		t.Errorf("preconditions must fail before any fetch, got %d", p.fetcher.total())
	}
}

func TestFiles(t *testing.T) {
	p := newPipeline(t, day("2016-01-01"))

	files, err := p.service.Files("2015-03-06", "2015-03-09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 || files[0].Key() != "150307" || files[1].Key() != "150314" {
		t.Fatalf("unexpected files %+v", files)
	}
}

func TestWarmLoadsLatestFile(t *testing.T) {
	// 2015-03-10 is a Tuesday; the latest file is from Saturday 2015-03-07.
	p := newPipeline(t, at("2015-03-10 09:00"))
	seedWeek(p)

	if err := p.service.Warm(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.store.Get("150307"); err != nil {
		t.Fatalf("expected 150307 to be cached: %v", err)
	}
	if _, err := p.service.QueryStats(context.Background(), "2015-03-02", "2015-03-04"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := p.fetcher.count("150307"); n != 1 {
		t.Errorf("expected the warmed file to be served from cache, got %d downloads", n)
	}
}

func TestWarmMissingFile(t *testing.T) {
	p := newPipeline(t, at("2015-03-10 09:00"))
	if err := p.service.Warm(context.Background()); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
