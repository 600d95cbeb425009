package domain

import (
	"strings"
	"time"
)

type Granularity string

const (
	GranularityDay    Granularity = "day"
	GranularityMinute Granularity = "minute"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case GranularityDay, GranularityMinute:
		return g, nil
	case "":
		return GranularityDay, nil
	}
	return "", Invalid("unknown granularity %q", s)
}

const (
	dayLayout    = "2006-01-02"
	minuteLayout = "2006-01-02T15:04"
)

var (
	minUnitTime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxUnitTime = time.Date(9999, 12, 31, 23, 59, 0, 0, time.UTC)
)

// Unit is one sellable calendar unit: a UTC instant truncated to its granularity.
type Unit struct {
	Granularity Granularity
	TS          time.Time
}

// NewUnit truncates t to g in UTC.
func NewUnit(g Granularity, t time.Time) (Unit, error) {
	t = t.UTC()
	switch g {
	case GranularityDay:
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityMinute:
		t = t.Truncate(time.Minute)
	default:
		return Unit{}, Invalid("unknown granularity %q", g)
	}
	if t.Before(minUnitTime) || t.After(maxUnitTime) {
		return Unit{}, Invalid("timestamp out of range")
	}
	return Unit{Granularity: g, TS: t}, nil
}

// ParseUnit accepts "2006-01-02" for days and "2006-01-02T15:04" (optionally suffixed with Z) for minutes.
func ParseUnit(s string) (Unit, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unit{}, Invalid("missing calendar unit")
	}
	if t, err := time.ParseInLocation(dayLayout, s, time.UTC); err == nil {
		return NewUnit(GranularityDay, t)
	}
	if t, err := time.ParseInLocation(minuteLayout, strings.TrimSuffix(s, "Z"), time.UTC); err == nil {
		return NewUnit(GranularityMinute, t)
	}
	return Unit{}, Invalid("malformed calendar unit %q", s)
}

// Key renders the canonical form accepted by ParseUnit.
func (u Unit) Key() string {
	if u.Granularity == GranularityMinute {
		return u.TS.UTC().Format(minuteLayout) + "Z"
	}
	return u.TS.UTC().Format(dayLayout)
}

func (u Unit) String() string { return u.Key() }
