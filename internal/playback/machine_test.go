package playback_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/playback"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

const (
	second = timecalc.MsPerSecond
	minute = timecalc.MsPerMinute
	hour   = timecalc.MsPerHour
)

func countdown(id string, duration int64) *model.Event {
	e := model.NewEvent(id)
	e.Duration = duration
	e.TimeEnd = duration
	return e
}

func current(t *testing.T, m *playback.Machine, now int64) int64 {
	t.Helper()
	c := m.Snapshot(now).Timer.Current
	if c == nil {
		t.Fatalf("no current value at %d", now)
	}
	return *c
}

func TestCurrent(t *testing.T) {
	tests := []struct {
		name string
		in   playback.TimerInputs
		now  int64
		want int64
	}{
		{"count-down", playback.TimerInputs{TimerType: model.CountDown, Duration: 60000, StartedAt: 1000}, 31000, 30000},
		{"count-down added", playback.TimerInputs{TimerType: model.CountDown, Duration: 60000, StartedAt: 1000, AddedTime: 5000}, 31000, 35000},
		{"count-down overtime", playback.TimerInputs{TimerType: model.CountDown, Duration: 60000, StartedAt: 1000}, 71000, -10000},
		{"count-up", playback.TimerInputs{TimerType: model.CountUp, Duration: 60000, StartedAt: 1000}, 31000, 30000},
		{"count-up past duration", playback.TimerInputs{TimerType: model.CountUp, Duration: 60000, StartedAt: 0}, 90000, 90000},
		{"count-down paused", playback.TimerInputs{TimerType: model.CountDown, Duration: 60000, StartedAt: 1000, PausedAt: ptr(11000)}, 99000, 50000},
		{"time-to-end", playback.TimerInputs{TimerType: model.TimeToEnd, Duration: 60000, StartedAt: 0, ScheduledEnd: 100000}, 40000, 60000},
	}
	for _, tt := range tests {
		if got := playback.Current(tt.in, tt.now); got != tt.want {
			t.Errorf("%s: Current = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func ptr(v int64) *int64 { return &v }

func TestPauseResume(t *testing.T) {
	m := playback.NewMachine(time.UTC)
	if err := m.Load(countdown("a", 60000), time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(1000); err != nil {
		t.Fatal(err)
	}
	if got := current(t, m, 31000); got != 30000 {
		t.Fatalf("current = %d, want 30000", got)
	}
	if err := m.Pause(31000); err != nil {
		t.Fatal(err)
	}
	for _, now := range []int64{31000, 35000, 40999} {
		if got := current(t, m, now); got != 30000 {
			t.Errorf("paused current at %d = %d, want 30000", now, got)
		}
	}
	if err := m.Start(41000); err != nil {
		t.Fatal(err)
	}
	if got := *m.State().StartedAt; got != 11000 {
		t.Errorf("startedAt = %d, want 11000", got)
	}
	if got := current(t, m, 41000); got != 30000 {
		t.Errorf("current after resume = %d, want 30000", got)
	}
	if m.State().PausedAt != nil {
		t.Error("pausedAt still set")
	}
}

func TestCountUpIsMonotonic(t *testing.T) {
	ev := countdown("a", minute)
	ev.TimerType = model.CountUp
	m := playback.NewMachine(time.UTC)
	if err := m.Load(ev, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(500); err != nil {
		t.Fatal(err)
	}
	prev := current(t, m, 500)
	for now := int64(500); now < 3*minute; now += 733 {
		c := current(t, m, now)
		if c < prev {
			t.Fatalf("current went back from %d to %d at %d", prev, c, now)
		}
		prev = c
	}
}

func TestFinishedOncePerRun(t *testing.T) {
	m := playback.NewMachine(time.UTC)
	if err := m.Load(countdown("a", 10*second), time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(0); err != nil {
		t.Fatal(err)
	}

	finished := 0
	for now := int64(0); now <= 30*second; now += 250 {
		tick := m.Update(now)
		if tick.FinishedNow {
			finished++
			if now != 10*second {
				t.Errorf("finished at %d, want %d", now, 10*second)
			}
			if !slices.Contains(tick.Lifecycle, model.OnFinish) {
				t.Errorf("finish tick without onFinish: %v", tick.Lifecycle)
			}
		}
	}
	if finished != 1 {
		t.Errorf("finishedNow observed %d times, want 1", finished)
	}

	if err := m.Load(countdown("a", 10*second), time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(40 * second); err != nil {
		t.Fatal(err)
	}
	if tick := m.Update(50 * second); !tick.FinishedNow {
		t.Error("new run did not finish")
	}
}

func TestPhases(t *testing.T) {
	ev := countdown("a", 10*minute)
	ev.TimeWarning = 2 * minute
	ev.TimeDanger = minute
	m := playback.NewMachine(time.UTC)
	if err := m.Load(ev, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(0); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		now   int64
		keys  []model.Lifecycle
		phase playback.Phase
	}{
		{7 * minute, nil, playback.PhaseDefault},
		{8*minute + 1, []model.Lifecycle{model.OnWarning}, playback.PhaseWarning},
		{8*minute + 500, nil, playback.PhaseWarning},
		{9*minute + 1, []model.Lifecycle{model.OnDanger}, playback.PhaseDanger},
		{10 * minute, []model.Lifecycle{model.OnFinish}, playback.PhaseOvertime},
		{11 * minute, nil, playback.PhaseOvertime},
	}
	for _, tt := range tests {
		tick := m.Update(tt.now)
		if !slices.Equal(tick.Lifecycle, tt.keys) {
			t.Errorf("Update(%d) = %v, want %v", tt.now, tick.Lifecycle, tt.keys)
		}
		if got := m.Snapshot(tt.now).Timer.Phase; got != tt.phase {
			t.Errorf("phase at %d = %s, want %s", tt.now, got, tt.phase)
		}
	}
}

func TestTransitionsFromStop(t *testing.T) {
	m := playback.NewMachine(time.UTC)

	if err := m.Start(0); !errors.Is(err, playback.ErrNothingLoaded) {
		t.Errorf("Start empty: %v", err)
	}
	if err := m.AddTime(1000); !errors.Is(err, playback.ErrNothingLoaded) {
		t.Errorf("AddTime empty: %v", err)
	}
	if err := m.Load(countdown("a", minute), time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := m.Pause(0); !errors.Is(err, playback.ErrInvalidTransition) {
		t.Errorf("Pause stopped: %v", err)
	}
	if err := m.AddTime(1000); !errors.Is(err, playback.ErrInvalidTransition) {
		t.Errorf("AddTime stopped: %v", err)
	}
	if err := m.State().Validate(); err != nil {
		t.Errorf("loaded state invalid: %v", err)
	}

	skipped := countdown("s", minute)
	skipped.Skip = true
	if err := m.Load(skipped, time.Time{}); !errors.Is(err, playback.ErrInvalidTransition) {
		t.Errorf("Load skipped: %v", err)
	}

	if err := m.Start(0); err != nil {
		t.Fatal(err)
	}
	if err := m.AddTime(30 * second); err != nil {
		t.Fatal(err)
	}
	if got := current(t, m, 0); got != minute+30*second {
		t.Errorf("current with added time = %d", got)
	}
	if got := *m.State().StartedAt; got != 0 {
		t.Errorf("AddTime moved startedAt to %d", got)
	}

	if !m.Stop() {
		t.Error("first Stop reported nothing loaded")
	}
	if m.Stop() {
		t.Error("second Stop reported a change")
	}
	s := m.State()
	if s.Status != playback.StatusStop || s.StartedAt != nil || s.EventID != "" || s.AddedTime != 0 {
		t.Errorf("state after stop = %+v", s)
	}
	if snap := m.Snapshot(0); snap.EventNow != nil || snap.Timer.Current != nil {
		t.Errorf("snapshot after stop = %+v", snap)
	}
}

func TestSessionMarkers(t *testing.T) {
	m := playback.NewMachine(time.UTC)
	a := countdown("a", minute)
	b := countdown("b", minute)
	b.LinkStart = true

	_ = m.Load(a, time.Time{})
	_ = m.Start(1000)
	_ = m.Load(b, time.Time{})
	_ = m.Start(61000)

	s := m.State()
	if s.FirstStart == nil || *s.FirstStart != 1000 {
		t.Errorf("firstStart = %v, want 1000", s.FirstStart)
	}
	if s.BlockStartAt == nil || *s.BlockStartAt != 1000 {
		t.Errorf("linked event reset blockStartAt to %v", s.BlockStartAt)
	}
}

func rollSchedule() (time.Time, []*model.Event) {
	anchor := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	a := model.NewEvent("a")
	a.TimeStart, a.TimeEnd, a.Duration = 10*hour, 10*hour+30*minute, 30*minute
	skipped := model.NewEvent("s")
	skipped.TimeStart, skipped.TimeEnd, skipped.Duration = 10*hour+30*minute, 11*hour, 30*minute
	skipped.Skip = true
	b := model.NewEvent("b")
	b.TimeStart, b.TimeEnd, b.Duration = 11*hour, 11*hour+15*minute, 15*minute
	return anchor, []*model.Event{a, skipped, b}
}

func TestRoll(t *testing.T) {
	anchor, schedule := rollSchedule()
	at := func(ms int64) int64 { return anchor.UnixMilli() + ms }
	m := playback.NewMachine(time.UTC)

	keys, err := m.Roll(at(10*hour+10*minute), schedule, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(keys, []model.Lifecycle{model.OnLoad, model.OnStart}) {
		t.Errorf("roll keys = %v", keys)
	}
	if s := m.State(); s.Status != playback.StatusRoll || s.EventID != "a" || *s.StartedAt != at(10*hour) {
		t.Errorf("roll state = %+v", s)
	}
	if got := current(t, m, at(10*hour+10*minute)); got != 20*minute {
		t.Errorf("current = %d, want %d", got, 20*minute)
	}
	if err := m.Pause(at(10*hour + 11*minute)); !errors.Is(err, playback.ErrInvalidTransition) {
		t.Errorf("Pause in roll: %v", err)
	}

	tick := m.Update(at(10*hour + 30*minute))
	if !slices.Equal(tick.Lifecycle, []model.Lifecycle{model.OnFinish, model.OnLoad}) {
		t.Errorf("finish keys = %v", tick.Lifecycle)
	}
	if id := m.State().EventID; id != "b" {
		t.Fatalf("rolled to %q, want b", id)
	}

	snap := m.Snapshot(at(10*hour + 40*minute))
	if snap.Timer.Secondary == nil || *snap.Timer.Secondary != 20*minute {
		t.Errorf("secondary = %v, want %d", snap.Timer.Secondary, 20*minute)
	}
	if *snap.Timer.Current != 15*minute {
		t.Errorf("waiting current = %d", *snap.Timer.Current)
	}

	if tick := m.Update(at(11 * hour)); !slices.Equal(tick.Lifecycle, []model.Lifecycle{model.OnStart}) {
		t.Errorf("start keys = %v", tick.Lifecycle)
	}
	tick = m.Update(at(11*hour + 15*minute))
	if !slices.Equal(tick.Lifecycle, []model.Lifecycle{model.OnFinish, model.OnStop}) {
		t.Errorf("end keys = %v", tick.Lifecycle)
	}
	if m.State().Status != playback.StatusStop {
		t.Errorf("status = %s, want stop", m.State().Status)
	}

	if _, err := m.Roll(at(12*hour), schedule, anchor); !errors.Is(err, playback.ErrScheduleEnded) {
		t.Errorf("roll past schedule: %v", err)
	}
}

func TestStartWhileRollWaits(t *testing.T) {
	anchor, schedule := rollSchedule()
	at := func(ms int64) int64 { return anchor.UnixMilli() + ms }
	m := playback.NewMachine(time.UTC)

	keys, err := m.Roll(at(9*hour), schedule, anchor)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(keys, []model.Lifecycle{model.OnLoad}) {
		t.Errorf("roll keys = %v, want only load while waiting", keys)
	}
	if s := m.State(); s.FirstStart != nil || s.BlockStartAt != nil {
		t.Fatalf("markers set before anything ran: %+v", s)
	}

	if err := m.Start(at(9*hour + 5*minute)); err != nil {
		t.Fatal(err)
	}
	s := m.State()
	if s.Status != playback.StatusPlay || *s.StartedAt != at(9*hour+5*minute) {
		t.Errorf("state = %+v", s)
	}
	if s.FirstStart == nil || *s.FirstStart != at(9*hour+5*minute) {
		t.Errorf("firstStart = %v", s.FirstStart)
	}
	if s.BlockStartAt == nil || *s.BlockStartAt != at(9*hour+5*minute) {
		t.Errorf("blockStartAt = %v", s.BlockStartAt)
	}
}

func TestReanchor(t *testing.T) {
	m := playback.NewMachine(time.UTC)
	_ = m.Load(countdown("a", minute), time.Time{})
	_ = m.Start(0)

	longer := countdown("a", 2*minute)
	if keys := m.Reanchor(10*second, longer, nil); keys != nil {
		t.Errorf("reanchor keys = %v", keys)
	}
	if got := current(t, m, 10*second); got != 110*second {
		t.Errorf("current after reanchor = %d", got)
	}

	keys := m.Reanchor(10*second, nil, nil)
	if !slices.Equal(keys, []model.Lifecycle{model.OnStop}) {
		t.Errorf("reanchor of deleted event = %v", keys)
	}
	if m.State().Status != playback.StatusStop {
		t.Error("machine still running a deleted event")
	}
}

func TestResumeFromRestore(t *testing.T) {
	ev := countdown("a", minute)

	invalid := []struct {
		name  string
		state playback.State
		event *model.Event
	}{
		{"unknown status", playback.State{Status: "armed", EventID: "a", StartedAt: ptr(0)}, ev},
		{"play without start", playback.State{Status: playback.StatusPlay, EventID: "a"}, ev},
		{"stop with start", playback.State{Status: playback.StatusStop, StartedAt: ptr(0)}, ev},
		{"pause without pausedAt", playback.State{Status: playback.StatusPause, EventID: "a", StartedAt: ptr(0)}, ev},
		{"missing event", playback.State{Status: playback.StatusPlay, EventID: "gone", StartedAt: ptr(0)}, nil},
	}
	for _, tt := range invalid {
		m := playback.NewMachine(time.UTC)
		err := m.ResumeFromRestore(1000, tt.state, tt.event, time.Time{}, nil)
		if !errors.Is(err, playback.ErrInvalidState) {
			t.Errorf("%s: err = %v, want ErrInvalidState", tt.name, err)
		}
		if m.State().Status != playback.StatusStop || m.Event() != nil {
			t.Errorf("%s: machine adopted partial state", tt.name)
		}
	}

	m := playback.NewMachine(time.UTC)
	state := playback.State{Status: playback.StatusPause, EventID: "a", StartedAt: ptr(1000), PausedAt: ptr(31000)}
	if err := m.ResumeFromRestore(90000, state, ev, time.Time{}, nil); err != nil {
		t.Fatal(err)
	}
	if got := current(t, m, 90000); got != 30000 {
		t.Errorf("restored current = %d, want 30000", got)
	}
	if err := m.Start(100000); err != nil {
		t.Fatal(err)
	}
	if got := current(t, m, 100000); got != 30000 {
		t.Errorf("current after resume = %d, want 30000", got)
	}
}
