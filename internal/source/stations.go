package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/extrame/xls"

	"github.com/i474232898/turnstile-stats/internal/turnstile"
)

// stationColumns is the minimum column count of the reference table:
// Remote (unit), Booth, Station, Line Name, Division.
const stationColumns = 5

// maxStationRows bounds the rows read from a workbook; BIFF8 sheets hold
// at most 65536.
const maxStationRows = 1 << 16

// StationTable fetches the remote/booth/station reference table. The MTA
// publishes it as a legacy Excel workbook; other URLs are read as CSV.
type StationTable struct {
	fetcher turnstile.Fetcher
	url     string
}

// NewStationTable creates a StationTable reading url through fetcher.
func NewStationTable(fetcher turnstile.Fetcher, url string) *StationTable {
	return &StationTable{fetcher: fetcher, url: url}
}

// FetchStations downloads and decodes the reference table.
func (t *StationTable) FetchStations(ctx context.Context) ([]turnstile.StationInfo, error) {
	data, err := t.fetcher.Fetch(ctx, t.url)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(strings.ToLower(t.url), ".xls") {
		return ParseStationXLS(data)
	}
	return ParseStationCSV(bytes.NewReader(data))
}

// ParseStationCSV reads the reference table from CSV. The first row is a
// header; rows with too few columns are skipped.
func ParseStationCSV(r io.Reader) ([]turnstile.StationInfo, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []turnstile.StationInfo
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read station csv: %w", err)
		}
		if first {
			first = false
			continue
		}
		if row, ok := stationRow(record); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ParseStationXLS reads the reference table from an Excel 97-2003
// workbook. The table occupies the workbook's only sheet; its first row is
// a header. Missing rows and rows with too few cells are skipped.
func ParseStationXLS(data []byte) ([]turnstile.StationInfo, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open station workbook: %w", err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, fmt.Errorf("station workbook has no sheets")
	}

	// ReadAllCells tolerates gaps in the sheet, where Sheet.Row does not.
	cells := wb.ReadAllCells(maxStationRows)
	if len(cells) == 0 {
		return nil, nil
	}

	var rows []turnstile.StationInfo
	for _, record := range cells[1:] {
		if row, ok := stationRow(record); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func stationRow(record []string) (turnstile.StationInfo, bool) {
	if len(record) < stationColumns {
		return turnstile.StationInfo{}, false
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}
	if record[0] == "" {
		return turnstile.StationInfo{}, false
	}
	return turnstile.StationInfo{
		Unit:     record[0],
		Booth:    record[1],
		Station:  record[2],
		LineName: record[3],
		Division: record[4],
	}, true
}
