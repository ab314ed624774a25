// Package engine owns the live show: the rundown cache, the playback
// machine, the automation evaluator and the restore store. All state
// changes go through one mutex; lifecycle notifications are delivered
// after it is released.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tiliavir/showrun/internal/automation"
	"github.com/Tiliavir/showrun/internal/logger"
	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/playback"
	"github.com/Tiliavir/showrun/internal/restore"
	"github.com/Tiliavir/showrun/internal/rundown"
	"github.com/Tiliavir/showrun/internal/storage"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

// DefaultTickInterval is the playback tick cadence.
const DefaultTickInterval = 100 * time.Millisecond

// Listener receives lifecycle moments with the state right after them.
type Listener func(key model.Lifecycle, snap playback.Snapshot)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Location  *time.Location
	Log       logger.Logger
	Restore   *restore.Store
	Evaluator *automation.Evaluator
	// Save persists the project after every successful edit.
	Save func(storage.Project) error
	// Now replaces the wall clock in tests.
	Now func() time.Time
}

// Engine is the single owner of rundown and playback state.
type Engine struct {
	mu        sync.Mutex
	cache     *rundown.Cache
	machine   *playback.Machine
	eval      *automation.Evaluator
	store     *restore.Store
	log       logger.Logger
	loc       *time.Location
	now       func() time.Time
	save      func(storage.Project) error
	listeners []Listener

	pubTimer    *int64
	pubClock    int64
	pubClockSet bool
}

type emission struct {
	key  model.Lifecycle
	snap playback.Snapshot
}

// New builds an engine around project and resumes playback from the
// restore store if it holds a usable point.
func New(project storage.Project, opts Options) (*Engine, error) {
	e := &Engine{
		cache: rundown.NewCache(),
		store: opts.Restore,
		log:   opts.Log,
		loc:   opts.Location,
		now:   opts.Now,
		save:  opts.Save,
		eval:  opts.Evaluator,
	}
	if e.log == nil {
		e.log = logger.NewNopLogger()
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.machine = playback.NewMachine(e.loc)

	if _, err := e.cache.Load(project.Rundown, project.CustomFields); err != nil {
		return nil, fmt.Errorf("loading rundown: %w", err)
	}
	if err := automation.ValidateSettings(project.Automation, project.CustomFields); err != nil {
		return nil, fmt.Errorf("loading automation settings: %w", err)
	}
	if e.eval == nil {
		e.eval = automation.NewEvaluator(project.Automation, e.log)
	} else {
		e.eval.SetSettings(project.Automation)
	}
	e.eval.Register(automation.OutputAction, ActionSender{Engine: e})

	e.resume()
	return e, nil
}

func (e *Engine) nowMs() int64 { return timecalc.EpochMs(e.now()) }

// resume adopts the restore point. Any problem means a cold start.
func (e *Engine) resume() {
	if e.store == nil {
		return
	}
	point, ok := e.store.Load()
	if !ok {
		return
	}
	anchor, err := point.Anchor(e.loc)
	if err != nil {
		e.log.Warning("restore: %v, starting cold", err)
		return
	}
	rd, meta := e.cache.Get()
	var ev *model.Event
	if point.State.EventID != "" {
		ev, _ = rd.Event(point.State.EventID)
	}
	if err := e.machine.ResumeFromRestore(e.nowMs(), point.State, ev, anchor, schedule(rd, meta)); err != nil {
		e.log.Warning("restore: %v, starting cold", err)
		e.machine.Stop()
		return
	}
	e.log.Info("restore: resumed %s with event %q", point.State.Status, point.State.EventID)
}

// OnLifecycle registers a listener. Listeners run on the goroutine that
// caused the transition, after the engine lock is released.
func (e *Engine) OnLifecycle(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Rundown returns the generated rundown and its metadata.
func (e *Engine) Rundown() (model.Rundown, model.Metadata) {
	return e.cache.Get()
}

// CustomFields returns the project custom fields.
func (e *Engine) CustomFields() model.CustomFields {
	return e.cache.CustomFields()
}

// Snapshot returns the broadcast-ready playback state.
func (e *Engine) Snapshot() playback.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.nowMs())
}

func (e *Engine) snapshotLocked(now int64) playback.Snapshot {
	snap := e.machine.Snapshot(now)
	if snap.EventNow == nil {
		return snap
	}
	rd, meta := e.cache.Get()
	if next, ok := meta.Next(snap.EventNow.ID); ok {
		snap.EventNext, _ = rd.Event(next)
	}
	return snap
}

// Project returns everything that is persisted.
func (e *Engine) Project() storage.Project {
	rd, _ := e.cache.Get()
	return storage.Project{
		Rundown:      rd,
		CustomFields: e.cache.CustomFields(),
		Automation:   e.eval.Settings(),
	}
}

// AutomationSettings returns the current automation settings.
func (e *Engine) AutomationSettings() automation.Settings {
	return e.eval.Settings()
}

// SetAutomationSettings validates and installs s.
func (e *Engine) SetAutomationSettings(s automation.Settings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := automation.ValidateSettings(s, e.cache.CustomFields()); err != nil {
		return err
	}
	e.eval.SetSettings(s)
	e.persistLocked()
	return nil
}

// transition runs fn under the lock and then notifies listeners about the
// lifecycle keys it returned.
func (e *Engine) transition(fn func(now int64) ([]model.Lifecycle, error)) error {
	e.mu.Lock()
	now := e.nowMs()
	keys, err := fn(now)
	var out []emission
	if err == nil {
		out = e.afterLocked(now, keys)
	}
	e.mu.Unlock()

	e.emit(out)
	return err
}

// afterLocked records the restore point and builds the notifications.
func (e *Engine) afterLocked(now int64, keys []model.Lifecycle) []emission {
	if e.store != nil {
		point := restore.NewPoint(e.machine.State(), e.machine.Anchor())
		if err := e.store.Save(point); err != nil {
			e.log.Warning("restore: %v", err)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	snap := e.snapshotLocked(now)
	e.pubTimer = snap.Timer.Current
	out := make([]emission, 0, len(keys))
	for _, k := range keys {
		out = append(out, emission{key: k, snap: snap})
	}
	return out
}

func (e *Engine) emit(out []emission) {
	if len(out) == 0 {
		return
	}
	e.mu.Lock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()

	for _, em := range out {
		e.eval.Trigger(em.key, em.snap)
		for _, fn := range listeners {
			fn(em.key, em.snap)
		}
	}
}

// Tick advances playback to the current time. It publishes onUpdate and
// onClock only when the timer or clock moved far enough to matter.
func (e *Engine) Tick() {
	_ = e.transition(func(now int64) ([]model.Lifecycle, error) {
		status := e.machine.State().Status
		ev := e.machine.Event()
		tick := e.machine.Update(now)
		keys := tick.Lifecycle
		if tick.FinishedNow && status == playback.StatusPlay && ev != nil {
			keys = append(keys, e.endActionLocked(now, ev)...)
		}

		snap := e.machine.Snapshot(now)
		if len(keys) > 0 || playback.TimerChanged(e.pubTimer, snap.Timer.Current) {
			keys = append(keys, model.OnUpdate)
		}
		if !e.pubClockSet || playback.ClockChanged(e.pubClock, snap.Clock) {
			e.pubClock, e.pubClockSet = snap.Clock, true
			keys = append(keys, model.OnClock)
		}
		return keys, nil
	})
}

// endActionLocked runs the finished event's end action.
func (e *Engine) endActionLocked(now int64, ev *model.Event) []model.Lifecycle {
	switch ev.EndAction {
	case model.EndStop:
		e.machine.Stop()
		return []model.Lifecycle{model.OnStop}
	case model.EndLoadNext, model.EndPlayNext:
		rd, meta := e.cache.Get()
		nextID, ok := meta.Next(ev.ID)
		if !ok {
			return nil
		}
		next, _ := rd.Event(nextID)
		if err := e.machine.Load(next, e.anchorFor(next, now)); err != nil {
			e.log.Warning("end action: loading %q: %v", nextID, err)
			return nil
		}
		keys := []model.Lifecycle{model.OnLoad}
		if ev.EndAction == model.EndPlayNext {
			if err := e.machine.Start(now); err != nil {
				e.log.Warning("end action: starting %q: %v", nextID, err)
				return keys
			}
			keys = append(keys, model.OnStart)
		}
		return keys
	}
	return nil
}

// Run ticks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Close waits for in-flight automation outputs.
func (e *Engine) Close() {
	e.eval.Wait()
}

// anchorFor picks the local midnight that makes ev fall on today.
func (e *Engine) anchorFor(ev *model.Event, now int64) time.Time {
	today := timecalc.StartOfDay(timecalc.FromEpochMs(now, e.loc))
	if ev == nil {
		return today
	}
	return today.AddDate(0, 0, -ev.DayOffset)
}

// schedule lists the playable events in order.
func schedule(rd model.Rundown, meta model.Metadata) []*model.Event {
	out := make([]*model.Event, 0, len(meta.PlayableOrder))
	for _, id := range meta.PlayableOrder {
		if ev, ok := rd.Event(id); ok {
			out = append(out, ev)
		}
	}
	return out
}
