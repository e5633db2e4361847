package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is the time unit of a bar granularity.
type Unit string

const (
	UnitMinute Unit = "minute"
	UnitHour   Unit = "hour"
	UnitDay    Unit = "day"
	UnitWeek   Unit = "week"
)

// Granularity describes the bar size as a (unit, multiplier) pair,
// e.g. {day, 1} for daily bars or {minute, 5} for 5-minute bars.
type Granularity struct {
	Unit       Unit
	Multiplier int
}

var (
	Daily        = Granularity{Unit: UnitDay, Multiplier: 1}
	unitSuffixes = map[byte]Unit{'m': UnitMinute, 'h': UnitHour, 'd': UnitDay, 'w': UnitWeek}
	unitShort    = map[Unit]string{UnitMinute: "m", UnitHour: "h", UnitDay: "d", UnitWeek: "w"}
)

// ParseGranularity parses "15m", "1h", "1d", "1w" style interval strings.
func ParseGranularity(s string) (Granularity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Granularity{}, fmt.Errorf("granularity is required")
	}
	unit, ok := unitSuffixes[s[len(s)-1]]
	if !ok {
		return Granularity{}, fmt.Errorf("invalid granularity %q: unknown unit", s)
	}
	numStr := strings.TrimSpace(s[:len(s)-1])
	if numStr == "" {
		return Granularity{}, fmt.Errorf("invalid granularity %q: missing multiplier", s)
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return Granularity{}, fmt.Errorf("invalid granularity %q: bad multiplier", s)
	}
	return Granularity{Unit: unit, Multiplier: n}, nil
}

func (g Granularity) String() string {
	short, ok := unitShort[g.Unit]
	if !ok {
		return fmt.Sprintf("%d?", g.Multiplier)
	}
	return fmt.Sprintf("%d%s", g.Multiplier, short)
}

// Duration returns the wall-clock span of one bar.
func (g Granularity) Duration() time.Duration {
	base := map[Unit]time.Duration{
		UnitMinute: time.Minute,
		UnitHour:   time.Hour,
		UnitDay:    24 * time.Hour,
		UnitWeek:   7 * 24 * time.Hour,
	}[g.Unit]
	return time.Duration(g.Multiplier) * base
}

func (g Granularity) Valid() bool {
	_, ok := unitShort[g.Unit]
	return ok && g.Multiplier > 0
}
