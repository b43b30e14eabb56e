package turnstile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	legacyTimeLayout = "01-02-06 15:04:05"
	modernTimeLayout = "01/02/2006 15:04:05"

	legacyMinFields = 8
	legacyGroupSize = 5
	modernFields    = 11
)

// Format parses one source file layout into a timestamp-ordered Series.
type Format interface {
	Name() string
	Parse(r io.Reader, stations StationLookup) (Series, error)
}

// FormatFor selects the layout used by the file published on the given date.
func FormatFor(published time.Time) Format {
	if !published.Before(FormatChange) {
		return ModernFormat{}
	}
	return LegacyFormat{}
}

// DeviceID joins the three identifying sub-fields of a turnstile.
func DeviceID(booth, unit, subunit string) string {
	return booth + " " + unit + " " + subunit
}

// LegacyFormat is the pre-October-2014 layout: one line per device, a
// booth/unit/subunit prefix followed by repeating groups of
// (date, time, description, entries, exits). Station fields come from
// the station directory.
type LegacyFormat struct{}

func (LegacyFormat) Name() string { return "legacy" }

func (LegacyFormat) Parse(r io.Reader, stations StationLookup) (Series, error) {
	var out Series

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		row := strings.Split(strings.TrimSpace(scanner.Text()), ",")
		if len(row) < legacyMinFields {
			continue
		}
		if (len(row)-3)%legacyGroupSize != 0 {
			return nil, fmt.Errorf("%w: line %d: %d fields do not form complete reading groups", ErrMalformedRecord, lineNo, len(row))
		}

		booth, unit, subunit := row[0], row[1], row[2]
		var info StationInfo
		if stations != nil {
			info, _ = stations.Lookup(unit, booth)
		}
		id := DeviceID(booth, unit, subunit)

		for i := 3; i < len(row); i += legacyGroupSize {
			g := row[i : i+legacyGroupSize]
			ts, err := time.Parse(legacyTimeLayout, strings.TrimSpace(g[0])+" "+strings.TrimSpace(g[1]))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNo, err)
			}
			entries, exits, err := parseCounters(g[3], g[4])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNo, err)
			}
			out = append(out, Reading{
				Timestamp:   ts,
				DeviceID:    id,
				Station:     info.Station,
				LineName:    info.LineName,
				Division:    info.Division,
				Description: strings.TrimSpace(g[2]),
				Entries:     entries,
				Exits:       exits,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sortSeries(out)
	return out, nil
}

// ModernFormat is the columnar layout published from October 2014 on:
// C/A, UNIT, SCP, STATION, LINENAME, DIVISION, DATE, TIME, DESC,
// ENTRIES, EXITS with a header row.
type ModernFormat struct{}

func (ModernFormat) Name() string { return "modern" }

func (ModernFormat) Parse(r io.Reader, _ StationLookup) (Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// Header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return Series{}, nil
		}
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedRecord, err)
	}

	var out Series
	rowNo := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNo++
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedRecord, rowNo, err)
		}
		if len(record) < modernFields {
			return nil, fmt.Errorf("%w: row %d: expected %d columns, got %d", ErrMalformedRecord, rowNo, modernFields, len(record))
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		ts, err := time.Parse(modernTimeLayout, record[6]+" "+record[7])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedRecord, rowNo, err)
		}
		entries, exits, err := parseCounters(record[9], record[10])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedRecord, rowNo, err)
		}

		out = append(out, Reading{
			Timestamp:   ts,
			DeviceID:    DeviceID(record[0], record[1], record[2]),
			Station:     record[3],
			LineName:    record[4],
			Division:    record[5],
			Description: record[8],
			Entries:     entries,
			Exits:       exits,
		})
	}

	sortSeries(out)
	return out, nil
}

func parseCounters(entriesStr, exitsStr string) (int64, int64, error) {
	entries, err := strconv.ParseInt(strings.TrimSpace(entriesStr), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("entries: %w", err)
	}
	exits, err := strconv.ParseInt(strings.TrimSpace(exitsStr), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("exits: %w", err)
	}
	return entries, exits, nil
}

func sortSeries(s Series) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Timestamp.Before(s[j].Timestamp)
	})
}
