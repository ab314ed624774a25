package timecalc

import (
	"fmt"
	"time"
)

// Millisecond based units. Rundown times are stored as milliseconds since
// local midnight.
const (
	MsPerSecond int64 = 1000
	MsPerMinute       = 60 * MsPerSecond
	MsPerHour         = 60 * MsPerMinute
	DayMs             = 24 * MsPerHour
)

// ToMsOfDay returns the wall-clock milliseconds since local midnight for t.
// The value follows the clock on the wall, so on DST transition days
// 03:00 is always 10800000 regardless of how much real time has passed.
func ToMsOfDay(t time.Time) int64 {
	h, m, s := t.Clock()
	return int64(h)*MsPerHour + int64(m)*MsPerMinute + int64(s)*MsPerSecond + int64(t.Nanosecond()/int(time.Millisecond))
}

// FromMsOfDay returns the instant at the wall-clock time ms on the day
// dayOffset days after anchor, in the anchor's location. Values of ms
// outside [0, DayMs) roll over into neighbouring days.
func FromMsOfDay(anchor time.Time, dayOffset int, ms int64) time.Time {
	days := ms / DayMs
	rem := ms % DayMs
	if rem < 0 {
		rem += DayMs
		days--
	}
	h := rem / MsPerHour
	m := (rem % MsPerHour) / MsPerMinute
	s := (rem % MsPerMinute) / MsPerSecond
	ns := (rem % MsPerSecond) * int64(time.Millisecond)
	y, mo, d := anchor.Date()
	return time.Date(y, mo, d+dayOffset+int(days), int(h), int(m), int(s), int(ns), anchor.Location())
}

// AddTime adds a duration to a time of day, wrapping around midnight.
func AddTime(msOfDay, duration int64) int64 {
	v := (msOfDay + duration) % DayMs
	if v < 0 {
		v += DayMs
	}
	return v
}

// CalculateDuration returns the span between two times of day. An end
// before the start is taken to be on the following day.
func CalculateDuration(start, end int64) int64 {
	if end < start {
		return end + DayMs - start
	}
	return end - start
}

// CrossesMidnight reports whether an event starting at start and lasting
// duration ends on a later day.
func CrossesMidnight(start, duration int64) bool {
	return start+duration > DayMs
}

// EpochMs returns t as milliseconds since the Unix epoch.
func EpochMs(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMs converts epoch milliseconds into a time in loc.
func FromEpochMs(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(loc)
}

// FormatDuration formats milliseconds as a human-readable string like "1h 40m" or "45m" or "30s".
func FormatDuration(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	seconds := ms / MsPerSecond
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%s%dh %dm", sign, h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%s%dm", sign, m)
	}
	return fmt.Sprintf("%s%ds", sign, s)
}

// FormatDurationHHMMSS formats milliseconds as HH:MM:SS, prefixed with "-"
// for negative values (overtime).
func FormatDurationHHMMSS(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	seconds := ms / MsPerSecond
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
}

// FormatClock formats a time of day in milliseconds as HH:MM:SS.
func FormatClock(msOfDay int64) string {
	return FormatDurationHHMMSS(AddTime(msOfDay, 0))
}

// Midnight returns the start of the next day (midnight) in the same location.
func Midnight(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
