package playback

import "github.com/Tiliavir/showrun/internal/timecalc"

const (
	// PublishInterval is the smallest change worth re-broadcasting.
	PublishInterval = timecalc.MsPerSecond
	// DriftTolerance absorbs tick jitter so a one second step is not
	// missed because the tick fired a few ms early.
	DriftTolerance int64 = 32
)

// TimerChanged reports whether next differs enough from the last
// published value to publish again.
func TimerChanged(prev, next *int64) bool {
	if prev == nil || next == nil {
		return (prev == nil) != (next == nil)
	}
	return abs(*next-*prev) >= PublishInterval-DriftTolerance
}

// ClockChanged is TimerChanged for times of day, wrapping at midnight.
func ClockChanged(prev, next int64) bool {
	d := abs(next - prev)
	if d > timecalc.DayMs/2 {
		d = timecalc.DayMs - d
	}
	return d >= PublishInterval-DriftTolerance
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
