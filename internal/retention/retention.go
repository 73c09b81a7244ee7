// Package retention parses the duration-string grammar shared by audit,
// backup, and trash retention policies.
package retention

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDays parses a retention period of the form "<integer><unit>" and
// returns the number of days. The only unit currently in use is "d".
func ParseDays(period string) (int, error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return 0, fmt.Errorf("empty retention period")
	}
	if !strings.HasSuffix(period, "d") {
		return 0, fmt.Errorf("unsupported retention unit in %q (only days, e.g. \"90d\")", period)
	}
	days, err := strconv.Atoi(strings.TrimSuffix(period, "d"))
	if err != nil {
		return 0, fmt.Errorf("invalid retention period %q: %w", period, err)
	}
	if days < 0 {
		return 0, fmt.Errorf("negative retention period %q", period)
	}
	return days, nil
}

// Expired reports whether a record created at ts has outlived a retention
// window of the given number of days, as of now.
func Expired(ts time.Time, days int, now time.Time) bool {
	return now.Sub(ts) > time.Duration(days)*24*time.Hour
}
