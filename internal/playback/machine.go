package playback

import (
	"fmt"
	"time"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

// Machine advances the loaded event's timer. It is not safe for
// concurrent use; the engine serialises access.
type Machine struct {
	loc      *time.Location
	state    State
	event    *model.Event
	anchor   time.Time
	schedule []*model.Event
	phase    Phase
	// rollPending is set while roll mode waits for the loaded event's
	// scheduled start.
	rollPending bool
}

// NewMachine returns a stopped machine reading clocks in loc.
func NewMachine(loc *time.Location) *Machine {
	if loc == nil {
		loc = time.Local
	}
	return &Machine{loc: loc, state: State{Status: StatusStop}, phase: PhaseNone}
}

// State returns a copy of the persisted state.
func (m *Machine) State() State { return m.state }

// Anchor returns the local midnight day offset 0 of the loaded event
// refers to.
func (m *Machine) Anchor() time.Time { return m.anchor }

// Event returns a copy of the loaded event, or nil.
func (m *Machine) Event() *model.Event {
	if m.event == nil {
		return nil
	}
	return m.event.Clone().(*model.Event)
}

// Load stages ev without starting it. Session markers survive.
func (m *Machine) Load(ev *model.Event, anchor time.Time) error {
	if ev == nil {
		return ErrNothingLoaded
	}
	if ev.Skip {
		return fmt.Errorf("%w: event %q is skipped", ErrInvalidTransition, ev.ID)
	}
	m.event = ev.Clone().(*model.Event)
	m.anchor = anchor
	m.schedule = nil
	m.rollPending = false
	m.phase = PhaseNone
	m.state = State{
		Status:       StatusStop,
		EventID:      ev.ID,
		FirstStart:   m.state.FirstStart,
		BlockStartAt: m.state.BlockStartAt,
	}
	return nil
}

// Start runs the loaded event, resumes it from pause or takes a rolling
// event over into manual play.
func (m *Machine) Start(now int64) error {
	if m.event == nil {
		return ErrNothingLoaded
	}
	switch m.state.Status {
	case StatusPlay:
		return nil
	case StatusPause:
		shift := now - *m.state.PausedAt
		m.state.StartedAt = ptr(*m.state.StartedAt + shift)
		m.state.PausedAt = nil
	case StatusRoll:
		if m.rollPending {
			m.state.StartedAt = ptr(now)
			m.rollPending = false
			m.markStarted(now)
		}
		m.schedule = nil
	case StatusStop:
		m.state.StartedAt = ptr(now)
		m.state.FinishedAt = nil
		m.markStarted(now)
	}
	m.state.Status = StatusPlay
	m.phase = m.phaseAt(now)
	return nil
}

// Pause freezes the timer at now.
func (m *Machine) Pause(now int64) error {
	switch m.state.Status {
	case StatusPause:
		return nil
	case StatusPlay:
		m.state.Status = StatusPause
		m.state.PausedAt = ptr(now)
		return nil
	default:
		return fmt.Errorf("%w: cannot pause while %s", ErrInvalidTransition, m.state.Status)
	}
}

// Stop unloads everything. It reports whether anything was loaded.
func (m *Machine) Stop() bool {
	active := m.event != nil || m.state.Status != StatusStop
	m.state = State{Status: StatusStop}
	m.event = nil
	m.schedule = nil
	m.rollPending = false
	m.phase = PhaseNone
	return active
}

// AddTime extends (or with a negative value shortens) the running event.
func (m *Machine) AddTime(ms int64) error {
	if m.event == nil {
		return ErrNothingLoaded
	}
	if m.state.Status == StatusStop {
		return fmt.Errorf("%w: cannot add time while stopped", ErrInvalidTransition)
	}
	m.state.AddedTime += ms
	return nil
}

// Roll follows the wall clock through schedule, loading whichever event is
// running at now or, if none is, waiting for the next one.
func (m *Machine) Roll(now int64, schedule []*model.Event, anchor time.Time) ([]model.Lifecycle, error) {
	if m.state.Status == StatusPause {
		return nil, fmt.Errorf("%w: cannot roll while paused", ErrInvalidTransition)
	}
	m.anchor = anchor
	m.schedule = cloneSchedule(schedule)
	keys, err := m.rollTo(now)
	if err != nil {
		m.Stop()
		return nil, err
	}
	return keys, nil
}

func (m *Machine) rollTo(now int64) ([]model.Lifecycle, error) {
	for _, ev := range m.schedule {
		start := m.scheduledStart(ev)
		if now >= start+ev.Duration {
			continue
		}
		m.event = ev.Clone().(*model.Event)
		m.state = State{
			Status:       StatusRoll,
			EventID:      ev.ID,
			StartedAt:    ptr(start),
			FirstStart:   m.state.FirstStart,
			BlockStartAt: m.state.BlockStartAt,
		}
		keys := []model.Lifecycle{model.OnLoad}
		m.rollPending = start > now
		m.phase = PhaseNone
		if !m.rollPending {
			m.markStarted(start)
			m.phase = m.phaseAt(now)
			keys = append(keys, model.OnStart)
		}
		return keys, nil
	}
	return nil, ErrScheduleEnded
}

func (m *Machine) markStarted(at int64) {
	if m.state.FirstStart == nil {
		m.state.FirstStart = ptr(at)
	}
	if !m.event.LinkStart || m.state.BlockStartAt == nil {
		m.state.BlockStartAt = ptr(at)
	}
}

// Update advances the machine to now and reports the lifecycle moments
// crossed since the last call.
func (m *Machine) Update(now int64) Tick {
	var t Tick
	if m.event == nil || m.state.StartedAt == nil {
		return t
	}
	if m.rollPending {
		if now < *m.state.StartedAt {
			return t
		}
		m.rollPending = false
		m.markStarted(*m.state.StartedAt)
		t.Lifecycle = append(t.Lifecycle, model.OnStart)
	}

	remaining := Remaining(m.inputs(), now)
	if remaining <= 0 && m.state.FinishedAt == nil {
		m.state.FinishedAt = ptr(now)
		t.FinishedNow = true
		t.Lifecycle = append(t.Lifecycle, model.OnFinish)
	}
	if phase := PhaseFor(remaining, m.event.TimeWarning, m.event.TimeDanger); phase != m.phase {
		m.phase = phase
		switch phase {
		case PhaseWarning:
			t.Lifecycle = append(t.Lifecycle, model.OnWarning)
		case PhaseDanger:
			t.Lifecycle = append(t.Lifecycle, model.OnDanger)
		}
	}

	if t.FinishedNow && m.state.Status == StatusRoll {
		keys, err := m.rollTo(now)
		if err != nil {
			m.Stop()
			t.Lifecycle = append(t.Lifecycle, model.OnStop)
			return t
		}
		t.Lifecycle = append(t.Lifecycle, keys...)
	}
	return t
}

// Reanchor replaces the loaded event with its regenerated copy after a
// structural change. A nil or skipped ev means the event is gone and
// playback stops. In roll mode the schedule is replaced and the roll
// position recomputed.
func (m *Machine) Reanchor(now int64, ev *model.Event, schedule []*model.Event) []model.Lifecycle {
	if m.event == nil {
		return nil
	}
	if m.state.Status == StatusRoll {
		prev := m.event.ID
		m.schedule = cloneSchedule(schedule)
		keys, err := m.rollTo(now)
		if err != nil {
			m.Stop()
			return []model.Lifecycle{model.OnStop}
		}
		if m.event.ID == prev {
			return nil
		}
		return keys
	}
	if ev == nil || ev.Skip {
		m.Stop()
		return []model.Lifecycle{model.OnStop}
	}
	m.event = ev.Clone().(*model.Event)
	if m.state.StartedAt != nil {
		m.phase = m.phaseAt(now)
	}
	return nil
}

// Refresh swaps in a new copy of the loaded event after an edit that did
// not touch timing. Timer state is left alone.
func (m *Machine) Refresh(ev *model.Event) {
	if m.event == nil || ev == nil || ev.ID != m.event.ID {
		return
	}
	m.event = ev.Clone().(*model.Event)
}

// ResumeFromRestore adopts a persisted state. ev is the regenerated event
// the state refers to and schedule the playable events for roll mode. An
// invalid state is rejected without touching the machine.
func (m *Machine) ResumeFromRestore(now int64, s State, ev *model.Event, anchor time.Time, schedule []*model.Event) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.EventID == "" {
		m.Stop()
		m.state.FirstStart, m.state.BlockStartAt = s.FirstStart, s.BlockStartAt
		return nil
	}
	if ev == nil || ev.ID != s.EventID {
		return fmt.Errorf("%w: event %q no longer exists", ErrInvalidState, s.EventID)
	}
	if ev.Skip {
		return fmt.Errorf("%w: event %q is skipped", ErrInvalidState, s.EventID)
	}
	m.event = ev.Clone().(*model.Event)
	m.anchor = anchor
	m.state = s
	m.schedule = nil
	m.rollPending = false
	m.phase = PhaseNone
	if s.Status == StatusRoll {
		m.schedule = cloneSchedule(schedule)
		m.rollPending = *s.StartedAt > now
	}
	if s.StartedAt != nil && !m.rollPending {
		m.phase = m.phaseAt(now)
	}
	return nil
}

// Snapshot builds the broadcast view at now.
func (m *Machine) Snapshot(now int64) Snapshot {
	snap := Snapshot{
		Status:       m.state.Status,
		Clock:        m.Clock(now),
		FirstStart:   m.state.FirstStart,
		BlockStartAt: m.state.BlockStartAt,
		Timer:        Timer{Phase: PhaseNone},
	}
	if m.event == nil {
		return snap
	}
	ev := m.event
	snap.EventNow = m.Event()
	t := Timer{
		Duration:   ptr(ev.Duration),
		AddedTime:  m.state.AddedTime,
		StartedAt:  m.state.StartedAt,
		PausedAt:   m.state.PausedAt,
		FinishedAt: m.state.FinishedAt,
		Phase:      PhaseNone,
		TimerType:  ev.TimerType,
	}

	switch {
	case m.state.StartedAt == nil:
		t.Current = ptr(idleValue(ev, m.scheduledStart(ev)+ev.Duration-now))
	case m.rollPending:
		t.Current = ptr(idleValue(ev, m.scheduledStart(ev)+ev.Duration-now))
		t.Secondary = ptr(*m.state.StartedAt - now)
	default:
		in := m.inputs()
		remaining := Remaining(in, now)
		t.Current = ptr(Current(in, now))
		t.Elapsed = ptr(Elapsed(in, now))
		t.ExpectedFinish = ptr(now + remaining)
		t.Phase = PhaseFor(remaining, ev.TimeWarning, ev.TimeDanger)
		snap.Offset = ptr(in.ScheduledEnd - (now + remaining))
	}
	snap.Timer = t
	return snap
}

// Clock is the local time of day at now.
func (m *Machine) Clock(now int64) int64 {
	return timecalc.ToMsOfDay(timecalc.FromEpochMs(now, m.loc))
}

// idleValue is what the timer shows before the event starts.
func idleValue(ev *model.Event, toEnd int64) int64 {
	switch ev.TimerType {
	case model.CountUp:
		return 0
	case model.TimeToEnd:
		return toEnd
	default:
		return ev.Duration
	}
}

func (m *Machine) inputs() TimerInputs {
	in := TimerInputs{
		TimerType:    m.event.TimerType,
		Duration:     m.event.Duration,
		PausedAt:     m.state.PausedAt,
		AddedTime:    m.state.AddedTime,
		ScheduledEnd: m.scheduledStart(m.event) + m.event.Duration,
	}
	if m.state.StartedAt != nil {
		in.StartedAt = *m.state.StartedAt
	}
	return in
}

func (m *Machine) phaseAt(now int64) Phase {
	return PhaseFor(Remaining(m.inputs(), now), m.event.TimeWarning, m.event.TimeDanger)
}

// scheduledStart is the instant ev is planned to begin, including the
// delay accumulated before it.
func (m *Machine) scheduledStart(ev *model.Event) int64 {
	if m.anchor.IsZero() {
		return ev.TimeStart + ev.Delay
	}
	return timecalc.EpochMs(timecalc.FromMsOfDay(m.anchor, ev.DayOffset, ev.TimeStart)) + ev.Delay
}

func cloneSchedule(schedule []*model.Event) []*model.Event {
	out := make([]*model.Event, 0, len(schedule))
	for _, ev := range schedule {
		if ev == nil || ev.Skip {
			continue
		}
		out = append(out, ev.Clone().(*model.Event))
	}
	return out
}
