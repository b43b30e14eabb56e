package turnstile

import "errors"

var (
	// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidRange is returned when the start date is not before the end date.
	ErrInvalidRange = errors.New("start date must be before end date")
	// ErrBeforeDataset is returned for start dates older than the first published data.
	ErrBeforeDataset = errors.New("start date is before the first available data")
	// ErrNotPublished is returned when the file covering the end date is not out yet.
	ErrNotPublished = errors.New("data for end date is not published yet")

	// ErrSourceUnavailable wraps failures fetching a source file or the station table.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedRecord wraps a line or row that cannot be parsed.
	ErrMalformedRecord = errors.New("malformed record")
)

// IsPrecondition reports whether err rejects the request before any I/O.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrBeforeDataset) ||
		errors.Is(err, ErrNotPublished)
}
