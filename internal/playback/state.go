// Package playback holds the playback state machine: which event is
// loaded, how its timer advances against the wall clock and which
// lifecycle moments a transition produces.
package playback

import (
	"errors"
	"fmt"

	"github.com/Tiliavir/showrun/internal/model"
)

var (
	// ErrInvalidTransition is returned for a transition the current status
	// does not allow, e.g. pausing while rolling.
	ErrInvalidTransition = errors.New("invalid playback transition")
	// ErrNothingLoaded is returned when a transition needs a loaded event.
	ErrNothingLoaded = errors.New("no event loaded")
	// ErrScheduleEnded is returned by Roll when no scheduled event is left.
	ErrScheduleEnded = errors.New("no scheduled event left to roll")
	// ErrInvalidState rejects a structurally invalid state, e.g. from a
	// damaged restore point.
	ErrInvalidState = errors.New("invalid playback state")
)

// Status of the machine.
type Status string

const (
	StatusStop  Status = "stop"
	StatusPlay  Status = "play"
	StatusPause Status = "pause"
	StatusRoll  Status = "roll"
)

func (s Status) Valid() bool {
	switch s {
	case StatusStop, StatusPlay, StatusPause, StatusRoll:
		return true
	}
	return false
}

// Phase describes how close the running event is to its end.
type Phase string

const (
	PhaseNone     Phase = "none"
	PhaseDefault  Phase = "default"
	PhaseWarning  Phase = "warning"
	PhaseDanger   Phase = "danger"
	PhaseOvertime Phase = "overtime"
)

// State is the persisted part of playback. Instants are Unix epoch
// milliseconds. StartedAt is set exactly when Status is not stop.
type State struct {
	Status       Status `json:"status"`
	EventID      string `json:"eventId,omitempty"`
	StartedAt    *int64 `json:"startedAt"`
	PausedAt     *int64 `json:"pausedAt"`
	FinishedAt   *int64 `json:"finishedAt"`
	AddedTime    int64  `json:"addedTime"`
	FirstStart   *int64 `json:"firstStart"`
	BlockStartAt *int64 `json:"blockStartAt"`
}

// Validate checks the structural invariants of s.
func (s State) Validate() error {
	if !s.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidState, s.Status)
	}
	if (s.Status == StatusStop) == (s.StartedAt != nil) {
		return fmt.Errorf("%w: status %s does not match startedAt", ErrInvalidState, s.Status)
	}
	if (s.Status == StatusPause) != (s.PausedAt != nil) {
		return fmt.Errorf("%w: status %s does not match pausedAt", ErrInvalidState, s.Status)
	}
	if s.Status != StatusStop && s.EventID == "" {
		return fmt.Errorf("%w: status %s without a loaded event", ErrInvalidState, s.Status)
	}
	return nil
}

// Timer is the broadcast view of the loaded event's timer.
type Timer struct {
	Current        *int64          `json:"current"`
	Duration       *int64          `json:"duration"`
	Elapsed        *int64          `json:"elapsed"`
	ExpectedFinish *int64          `json:"expectedFinish"`
	Secondary      *int64          `json:"secondaryTimer"`
	AddedTime      int64           `json:"addedTime"`
	StartedAt      *int64          `json:"startedAt"`
	PausedAt       *int64          `json:"pausedAt"`
	FinishedAt     *int64          `json:"finishedAt"`
	Phase          Phase           `json:"phase"`
	TimerType      model.TimerType `json:"timerType,omitempty"`
}

// Snapshot is the broadcast-ready playback view. Clock is the local time
// of day in ms. Offset is positive when the show runs ahead of schedule.
type Snapshot struct {
	Status       Status       `json:"status"`
	Clock        int64        `json:"clock"`
	Timer        Timer        `json:"timer"`
	EventNow     *model.Event `json:"eventNow"`
	EventNext    *model.Event `json:"eventNext"`
	Offset       *int64       `json:"offset"`
	FirstStart   *int64       `json:"firstStart"`
	BlockStartAt *int64       `json:"blockStartAt"`
}

// Tick reports what happened during Update.
type Tick struct {
	Lifecycle   []model.Lifecycle
	FinishedNow bool
}

func ptr(v int64) *int64 { return &v }
