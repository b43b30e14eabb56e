package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DateLayout is the date format accepted from callers.
const DateLayout = "2006-01-02"

// FormatCount renders n with thousands separators, e.g. 1234567 -> "1,234,567".
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// ParseDate parses a YYYY-MM-DD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a YYYY-MM-DD date", s)
	}
	return t, nil
}
