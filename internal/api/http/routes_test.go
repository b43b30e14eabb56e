package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/turnstile-stats/internal/store"
	"github.com/i474232898/turnstile-stats/internal/turnstile"
)

const baseURL = "http://example.test/turnstile_{date}.txt"

// staticFetcher serves canned files keyed by URL.
type staticFetcher map[string]string

func (f staticFetcher) Fetch(_ context.Context, u string) ([]byte, error) {
	body, ok := f[u]
	if !ok {
		return nil, errors.New("unexpected status code: 404")
	}
	return []byte(body), nil
}

type noStations struct{}

func (noStations) FetchStations(context.Context) ([]turnstile.StationInfo, error) {
	return nil, errors.New("station table not expected")
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	files := staticFetcher{
		strings.ReplaceAll(baseURL, turnstile.DatePlaceholder, "150307"): strings.Join([]string{
			"C/A,UNIT,SCP,STATION,LINENAME,DIVISION,DATE,TIME,DESC,ENTRIES,EXITS",
			"A002,R051,02-00-00,59 ST,NQR456,BMT,03/02/2015,00:00:00,REGULAR,1000,500",
			"A003,R052,01-00-00,14 ST,123FLM,IRT,03/02/2015,00:00:00,REGULAR,300,300",
			"A002,R051,02-00-00,59 ST,NQR456,BMT,03/04/2015,00:00:00,REGULAR,1600,900",
			"A003,R052,01-00-00,14 ST,123FLM,IRT,03/04/2015,00:00:00,REGULAR,400,350",
		}, "\n"),
	}

	now := func() time.Time { return time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC) }
	blobs := store.NewMemoryStore()
	locator := turnstile.NewLocator(baseURL, now)
	retriever := turnstile.NewRetriever(
		locator,
		files,
		turnstile.NewFileCache(blobs, 2),
		turnstile.NewDirectoryLoader(blobs, noStations{}),
		1,
	)

	app := fiber.New()
	RegisterRoutes(app, turnstile.NewService(locator, retriever, now))
	return app
}

func TestStatsReturnsSummary(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats?start=2015-03-02&end=2015-03-04", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var got turnstile.Summary
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != "1,150" {
		t.Errorf("expected total 1,150, got %s", got.Total)
	}
	if len(got.Records) != 2 || got.Records[0].Station != "59 ST" || got.Records[0].Entries != "600" {
		t.Errorf("unexpected records %+v", got.Records)
	}
	if got.Start != "2015-03-02" || got.End != "2015-03-04" {
		t.Errorf("unexpected range %s..%s", got.Start, got.End)
	}
}

func TestStatsFormPost(t *testing.T) {
	app := newTestApp(t)

	form := url.Values{"startdate": {"2015-03-02"}, "enddate": {"2015-03-04"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stats", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestStatsStatusCodes(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"missing end", "start=2015-03-02", http.StatusBadRequest},
		{"bad date", "start=2015-03-02&end=03/04/2015", http.StatusBadRequest},
		{"reversed range", "start=2015-03-04&end=2015-03-02", http.StatusBadRequest},
		{"before dataset", "start=2009-03-02&end=2015-03-04", http.StatusBadRequest},
		{"not published", "start=2015-03-02&end=2016-01-04", http.StatusBadRequest},
		{"missing file", "start=2015-03-09&end=2015-03-11", http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/stats?"+tc.query, nil)
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestFilesListsWeeklyFiles(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/files?start=2015-03-06&end=2015-03-09", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		Files []turnstile.FileDescriptor `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Files) != 2 || !strings.HasSuffix(body.Files[1].URL, "turnstile_150314.txt") {
		t.Fatalf("unexpected files %+v", body.Files)
	}
}
