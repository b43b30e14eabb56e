package turnstile

import (
	"fmt"
	"strings"
	"time"
)

var (
	// BeginningOfTime is the first day covered by published turnstile data.
	BeginningOfTime = time.Date(2010, time.May, 1, 0, 0, 0, 0, time.UTC)
	// FormatChange is the first publication date using the columnar layout.
	FormatChange = time.Date(2014, time.October, 18, 0, 0, 0, 0, time.UTC)
)

// DatePlaceholder is replaced by the YYMMDD publication date in a base URL.
const DatePlaceholder = "{date}"

// FileDescriptor identifies one weekly source file.
type FileDescriptor struct {
	Published time.Time `json:"published"`
	URL       string    `json:"url"`
}

// Key is the cache key of the file: its publication date as YYMMDD.
func (d FileDescriptor) Key() string {
	return d.Published.Format("060102")
}

// Locator maps date ranges to the weekly files that cover them.
type Locator struct {
	baseURL string
	now     func() time.Time
}

// NewLocator creates a Locator. baseURL must contain DatePlaceholder; now
// defaults to time.Now.
func NewLocator(baseURL string, now func() time.Time) *Locator {
	if now == nil {
		now = time.Now
	}
	return &Locator{baseURL: baseURL, now: now}
}

// NextPublication returns the first Saturday strictly after d. Files are
// published on Saturdays and hold the seven days before, so a Saturday's
// own readings land in the following week's file.
func NextPublication(d time.Time) time.Time {
	days := 7 - (int(d.Weekday())+1)%7
	return truncateDay(d).AddDate(0, 0, days)
}

// LatestPublished returns the most recent publication date at or before now.
func LatestPublished(now time.Time) time.Time {
	back := (int(now.Weekday()) + 1) % 7
	return truncateDay(now).AddDate(0, 0, -back)
}

// Descriptor builds the descriptor for a publication date.
func (l *Locator) Descriptor(published time.Time) FileDescriptor {
	published = truncateDay(published)
	return FileDescriptor{
		Published: published,
		URL:       strings.ReplaceAll(l.baseURL, DatePlaceholder, published.Format("060102")),
	}
}

// Locate returns the files covering [start, end] in publication order.
func (l *Locator) Locate(start, end time.Time) ([]FileDescriptor, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: %s >= %s", ErrInvalidRange, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	if start.Before(BeginningOfTime) {
		return nil, fmt.Errorf("%w: %s < %s", ErrBeforeDataset, start.Format(time.DateOnly), BeginningOfTime.Format(time.DateOnly))
	}

	first := NextPublication(start)
	last := NextPublication(end)
	if last.After(l.now().UTC()) {
		return nil, fmt.Errorf("%w: file for %s is published on %s", ErrNotPublished, end.Format(time.DateOnly), last.Format(time.DateOnly))
	}

	var files []FileDescriptor
	for p := first; !p.After(last); p = p.AddDate(0, 0, 7) {
		files = append(files, l.Descriptor(p))
	}
	return files, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
