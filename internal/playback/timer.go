package playback

import "github.com/Tiliavir/showrun/internal/model"

// TimerInputs is everything the timer readout depends on besides now.
type TimerInputs struct {
	TimerType    model.TimerType
	Duration     int64
	StartedAt    int64
	PausedAt     *int64
	AddedTime    int64
	ScheduledEnd int64
}

// at is the instant the timer reads at: frozen while paused.
func (in TimerInputs) at(now int64) int64 {
	if in.PausedAt != nil {
		return *in.PausedAt
	}
	return now
}

// Elapsed is the running time since start, excluding pauses.
func Elapsed(in TimerInputs, now int64) int64 {
	return in.at(now) - in.StartedAt
}

// Current is the displayed timer value.
func Current(in TimerInputs, now int64) int64 {
	switch in.TimerType {
	case model.CountUp:
		return Elapsed(in, now) + in.AddedTime
	case model.TimeToEnd:
		return in.ScheduledEnd - in.at(now) + in.AddedTime
	default:
		return in.Duration - Elapsed(in, now) + in.AddedTime
	}
}

// Remaining is the time left until the event is due to end, whatever the
// display direction.
func Remaining(in TimerInputs, now int64) int64 {
	if in.TimerType == model.CountUp {
		return in.Duration - Current(in, now)
	}
	return Current(in, now)
}

// PhaseFor maps remaining time onto the event's warning and danger
// thresholds.
func PhaseFor(remaining, warning, danger int64) Phase {
	switch {
	case remaining <= 0:
		return PhaseOvertime
	case remaining <= danger:
		return PhaseDanger
	case remaining <= warning:
		return PhaseWarning
	default:
		return PhaseDefault
	}
}
