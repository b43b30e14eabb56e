package turnstile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/turnstile-stats/internal/common"
)

// Service answers station traffic queries over the weekly turnstile files.
type Service struct {
	locator   *Locator
	retriever *Retriever
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(locator *Locator, retriever *Retriever, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		locator:   locator,
		retriever: retriever,
		now:       now,
	}
}

// QueryStats parses two YYYY-MM-DD dates and returns the formatted traffic
// summary for [start, end).
func (s *Service) QueryStats(ctx context.Context, startDate, endDate string) (Summary, error) {
	start, end, err := parseRange(startDate, endDate)
	if err != nil {
		return Summary{}, err
	}

	report, err := s.Report(ctx, start, end)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(report, startDate, endDate), nil
}

// Report retrieves and reconciles the readings for [start, end).
func (s *Service) Report(ctx context.Context, start, end time.Time) (Report, error) {
	queryID := uuid.NewString()
	log.Printf("stats %s: query %s..%s", queryID, start.Format(time.DateOnly), end.Format(time.DateOnly))

	began := s.now()
	series, err := s.retriever.Retrieve(ctx, start, end)
	if err != nil {
		log.Printf("stats %s: retrieval failed: %v", queryID, err)
		return Report{}, err
	}

	report := Analyze(series, start, end)
	log.Printf("stats %s: %d valid devices, %d stations, total %d (%s)",
		queryID, report.Devices, len(report.Stations), report.Total, s.now().Sub(began).Round(time.Millisecond))
	return report, nil
}

// Files returns the source files a query over the two dates would read.
func (s *Service) Files(startDate, endDate string) ([]FileDescriptor, error) {
	start, end, err := parseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.locator.Locate(start, end)
}

// Warm loads the most recently published file into the cache.
func (s *Service) Warm(ctx context.Context) error {
	desc := s.locator.Descriptor(LatestPublished(s.now().UTC()))
	series, err := s.retriever.Load(ctx, desc)
	if err != nil {
		return fmt.Errorf("warm %s: %w", desc.Key(), err)
	}
	log.Printf("warm: %s holds %d readings", desc.Key(), len(series))
	return nil
}

// Summarize formats a report: the grand total over every station and the
// top stations by total.
func Summarize(r Report, startDate, endDate string) Summary {
	top := r.Stations
	if len(top) > TopStations {
		top = top[:TopStations]
	}

	records := make([]StationRecord, 0, len(top))
	for _, t := range top {
		records = append(records, StationRecord{
			Station: t.Station,
			Entries: common.FormatCount(t.Entries),
			Exits:   common.FormatCount(t.Exits),
		})
	}

	return Summary{
		Start:   startDate,
		End:     endDate,
		Total:   common.FormatCount(r.Total),
		Records: records,
	}
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := common.ParseDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start: %v", ErrInvalidDate, err)
	}
	end, err := common.ParseDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end: %v", ErrInvalidDate, err)
	}
	return start, end, nil
}
