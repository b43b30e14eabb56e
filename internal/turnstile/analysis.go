package turnstile

import (
	"sort"
	"time"
)

// TopStations is the number of stations listed in a Summary.
const TopStations = 10

// RegularOnly returns the scheduled readings of s.
func RegularOnly(s Series) Series {
	out := make(Series, 0, len(s))
	for _, r := range s {
		if r.Regular() {
			out = append(out, r)
		}
	}
	return out
}

// BoundarySnapshot extracts the counts of date d. Each device contributes
// its earliest reading in [d 00:00, d 03:00]; several rows at that same
// earliest timestamp are summed. Callers pass regular readings only; the
// series need not be sorted.
func BoundarySnapshot(s Series, d time.Time) Snapshot {
	from := truncateDay(d)
	to := from.Add(EndCutoff)
	snap := Snapshot{
		At:      from,
		Devices: make(map[string]DeviceCount),
	}
	first := make(map[string]time.Time)

	for _, r := range s {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		ts, seen := first[r.DeviceID]
		switch {
		case !seen:
			snap.Order = append(snap.Order, r.DeviceID)
			fallthrough
		case r.Timestamp.Before(ts):
			first[r.DeviceID] = r.Timestamp
			snap.Devices[r.DeviceID] = DeviceCount{
				DeviceID: r.DeviceID,
				Station:  r.Station,
				Entries:  r.Entries,
				Exits:    r.Exits,
			}
		case r.Timestamp.Equal(ts):
			c := snap.Devices[r.DeviceID]
			c.Entries += r.Entries
			c.Exits += r.Exits
			snap.Devices[r.DeviceID] = c
		}
	}
	return snap
}

// ValidDevices returns the ids present in both snapshots whose counters
// did not go backwards. A decrease in either metric means the counter was
// reset or the device swapped, so the device is dropped for both metrics.
func ValidDevices(start, end Snapshot) map[string]struct{} {
	valid := make(map[string]struct{})
	for _, id := range start.Order {
		a := start.Devices[id]
		b, ok := end.Devices[id]
		if !ok {
			continue
		}
		if b.Entries < a.Entries || b.Exits < a.Exits {
			continue
		}
		valid[id] = struct{}{}
	}
	return valid
}

type stationSum struct {
	entries int64
	exits   int64
}

func sumByStation(s Snapshot, valid map[string]struct{}) map[string]stationSum {
	sums := make(map[string]stationSum)
	for _, id := range s.Order {
		if _, ok := valid[id]; !ok {
			continue
		}
		c := s.Devices[id]
		// Devices missing from the station table have no station to credit.
		if c.Station == "" {
			continue
		}
		acc := sums[c.Station]
		acc.entries += c.Entries
		acc.exits += c.Exits
		sums[c.Station] = acc
	}
	return sums
}

// Reconcile computes per-station traffic between two snapshots, ranked by
// total descending and then by station name. Stations grouped at only one
// boundary are left out. An empty valid set yields an empty report.
func Reconcile(start, end Snapshot) Report {
	valid := ValidDevices(start, end)
	before := sumByStation(start, valid)
	after := sumByStation(end, valid)

	report := Report{
		Start:    start.At,
		End:      end.At,
		Stations: []StationTraffic{},
		Devices:  len(valid),
	}
	for station, b := range after {
		a, ok := before[station]
		if !ok {
			continue
		}
		t := StationTraffic{
			Station: station,
			Entries: b.entries - a.entries,
			Exits:   b.exits - a.exits,
		}
		t.Total = t.Entries + t.Exits
		report.Stations = append(report.Stations, t)
		report.Total += t.Total
	}

	sort.Slice(report.Stations, func(i, j int) bool {
		si, sj := report.Stations[i], report.Stations[j]
		if si.Total != sj.Total {
			return si.Total > sj.Total
		}
		return si.Station < sj.Station
	})
	return report
}

// Analyze turns a retrieved series into a report for [start, end).
func Analyze(s Series, start, end time.Time) Report {
	regular := RegularOnly(s)
	return Reconcile(BoundarySnapshot(regular, start), BoundarySnapshot(regular, end))
}
