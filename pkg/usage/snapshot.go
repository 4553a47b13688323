package usage

import (
	"context"
	"fmt"
)

// Snapshot is the usage of one day and one month, as shown on the status
// surface.
type Snapshot struct {
	Day   string `json:"day"`
	Month string `json:"month"`

	// Daily maps service to endpoint to the day's call count.
	Daily map[string]map[string]int64 `json:"daily"`

	// Monthly maps service to the month's aggregate.
	Monthly map[string]int64 `json:"monthly"`
}

// Snapshot reads every daily counter of day and every monthly aggregate of
// month. Counters that expire between the scan and the read are skipped.
func (r *Recorder) Snapshot(ctx context.Context, day, month string) (Snapshot, error) {
	snap := Snapshot{
		Day:     day,
		Month:   month,
		Daily:   make(map[string]map[string]int64),
		Monthly: make(map[string]int64),
	}

	keys, err := r.reader.ScanByPrefix(ctx, KeyPrefix)
	if err != nil {
		return snap, fmt.Errorf("failed to list usage counters: %w", err)
	}

	for _, key := range keys {
		if service, m, ok := parseMonthlyKey(key); ok {
			if m != month {
				continue
			}
			n, err := r.count(ctx, key)
			if err != nil {
				return snap, err
			}
			snap.Monthly[service] = n
			continue
		}

		service, endpoint, d, ok := parseDailyKey(key)
		if !ok || d != day {
			continue
		}
		n, err := r.count(ctx, key)
		if err != nil {
			return snap, err
		}
		if n == 0 {
			continue
		}
		if snap.Daily[service] == nil {
			snap.Daily[service] = make(map[string]int64)
		}
		snap.Daily[service][endpoint] = n
	}

	return snap, nil
}
