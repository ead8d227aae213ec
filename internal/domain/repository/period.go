package repository

import "time"

// Period is a named look-back window ending at "now".
type Period string

const (
	PeriodDay     Period = "day"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodYear    Period = "year"
	PeriodAllTime Period = "all_time"
)

var periodLengths = map[Period]time.Duration{
	PeriodDay:     24 * time.Hour,
	PeriodWeek:    7 * 24 * time.Hour,
	PeriodMonth:   30 * 24 * time.Hour,
	PeriodYear:    365 * 24 * time.Hour,
	PeriodAllTime: 3650 * 24 * time.Hour,
}

// IsValidPeriod returns true if p is a supported period name.
func IsValidPeriod(p Period) bool {
	_, ok := periodLengths[p]
	return ok
}

// DefaultPeriod returns the fallback period.
func DefaultPeriod() Period { return PeriodWeek }

// NormalizePeriod converts a raw name to a supported period, falling back
// to the default for empty or unknown names.
func NormalizePeriod(s string) Period {
	p := Period(s)
	if IsValidPeriod(p) {
		return p
	}
	return DefaultPeriod()
}

// Length returns the window length. Unknown periods use the default length.
func (p Period) Length() time.Duration {
	if d, ok := periodLengths[p]; ok {
		return d
	}
	return periodLengths[DefaultPeriod()]
}

// Window returns [now-Length, now]. Windows are fixed durations and are not
// snapped to calendar boundaries.
func (p Period) Window(now time.Time) (from, to time.Time) {
	return now.Add(-p.Length()), now
}
