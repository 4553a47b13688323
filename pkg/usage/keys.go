package usage

import (
	"fmt"
	"strings"
	"time"
)

// Key layout:
//
//	usage:{service}:{endpoint}:{YYYY-MM-DD}   daily counter
//	usage:monthly:{service}:{YYYY-MM}         monthly aggregate
//
// "monthly" is a reserved service name, so both layouts share the
// "usage:" prefix without ambiguity.
const (
	KeyPrefix        = "usage:"
	MonthlyKeyPrefix = "usage:monthly:"

	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Day formats t as the UTC calendar day used in daily counter keys.
func Day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// Month formats t as the UTC calendar month used in monthly keys.
func Month(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

// ParseMonth validates a YYYY-MM month string.
func ParseMonth(month string) (time.Time, error) {
	t, err := time.Parse(monthLayout, month)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: expected YYYY-MM", month)
	}
	return t, nil
}

// ParseDay validates a YYYY-MM-DD day string.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: expected YYYY-MM-DD", day)
	}
	return t, nil
}

// DailyKey returns the logical key of a daily counter.
func DailyKey(service, endpoint, day string) string {
	return KeyPrefix + service + ":" + endpoint + ":" + day
}

// MonthlyKey returns the logical key of a monthly aggregate.
func MonthlyKey(service, month string) string {
	return MonthlyKeyPrefix + service + ":" + month
}

// NormalizeEndpoint strips the query string and fragment from endpoint.
// An empty endpoint becomes "/".
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		endpoint = endpoint[:i]
	}
	if endpoint == "" {
		return "/"
	}
	return endpoint
}

// parseDailyKey splits a logical daily key. Endpoints may contain ':' so the
// service is taken from the left and the day from the right.
func parseDailyKey(key string) (service, endpoint, day string, ok bool) {
	rest, found := strings.CutPrefix(key, KeyPrefix)
	if !found || strings.HasPrefix(key, MonthlyKeyPrefix) {
		return "", "", "", false
	}
	service, rest, found = strings.Cut(rest, ":")
	if !found {
		return "", "", "", false
	}
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return "", "", "", false
	}
	endpoint, day = rest[:i], rest[i+1:]
	if service == "" || endpoint == "" || len(day) != len(dayLayout) {
		return "", "", "", false
	}
	return service, endpoint, day, true
}

// parseMonthlyKey splits a logical monthly key.
func parseMonthlyKey(key string) (service, month string, ok bool) {
	rest, found := strings.CutPrefix(key, MonthlyKeyPrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", "", false
	}
	service, month = rest[:i], rest[i+1:]
	if len(month) != len(monthLayout) {
		return "", "", false
	}
	return service, month, true
}
