package turnstile

import (
	"time"
)

// DescRegular marks a scheduled counter reading. Audit and recovery
// readings carry other description codes.
const DescRegular = "REGULAR"

// Reading is one cumulative counter reading of a single device.
type Reading struct {
	Timestamp   time.Time // wall clock of the source file, stored as UTC
	DeviceID    string    // booth, unit and subunit joined by a space
	Station     string
	LineName    string
	Division    string
	Description string
	Entries     int64
	Exits       int64
}

// Regular reports whether r is a scheduled (non-audit) reading.
func (r Reading) Regular() bool {
	return r.Description == DescRegular
}

// Series is a timestamp-ordered run of readings. Series handed out by the
// cache are shared and must not be modified in place.
type Series []Reading

// StationInfo is one row of the remote/booth/station reference table.
type StationInfo struct {
	Unit     string `json:"unit"`
	Booth    string `json:"booth"`
	Station  string `json:"station"`
	LineName string `json:"lineName"`
	Division string `json:"division"`
}

// DeviceCount is a device's collapsed counters at one boundary.
type DeviceCount struct {
	DeviceID string
	Station  string
	Entries  int64
	Exits    int64
}

// Snapshot holds one boundary's counts keyed by device id. Order lists
// the device ids in first-seen order so iteration is deterministic.
type Snapshot struct {
	At      time.Time
	Devices map[string]DeviceCount
	Order   []string
}

// StationTraffic is the reconciled traffic of one station over a period.
type StationTraffic struct {
	Station string `json:"station"`
	Entries int64  `json:"entries"`
	Exits   int64  `json:"exits"`
	Total   int64  `json:"total"`
}

// Report is the full reconciliation result, ranked by total.
type Report struct {
	Start    time.Time        `json:"start"`
	End      time.Time        `json:"end"`
	Total    int64            `json:"total"`
	Stations []StationTraffic `json:"stations"`
	Devices  int              `json:"devices"` // size of the valid device set
}

// StationRecord is a formatted top-list row.
type StationRecord struct {
	Station string `json:"station"`
	Entries string `json:"entries"`
	Exits   string `json:"exits"`
}

// Summary is the presentation-ready answer to a stats query.
type Summary struct {
	Start   string          `json:"start"`
	End     string          `json:"end"`
	Total   string          `json:"total"`
	Records []StationRecord `json:"records"`
}
