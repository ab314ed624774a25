package engine

import (
	"fmt"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/playback"
	"github.com/Tiliavir/showrun/internal/rundown"
)

// Load stages event id without starting it.
func (e *Engine) Load(id string) error {
	return e.transition(func(now int64) ([]model.Lifecycle, error) {
		rd, _ := e.cache.Get()
		ev, ok := rd.Event(id)
		if !ok {
			return nil, fmt.Errorf("%w: event %q", rundown.ErrNotFound, id)
		}
		if err := e.machine.Load(ev, e.anchorFor(ev, now)); err != nil {
			return nil, err
		}
		return []model.Lifecycle{model.OnLoad}, nil
	})
}

// Start runs or resumes the loaded event.
func (e *Engine) Start() error {
	return e.transition(func(now int64) ([]model.Lifecycle, error) {
		if e.machine.State().Status == playback.StatusPlay {
			return nil, nil
		}
		if err := e.machine.Start(now); err != nil {
			return nil, err
		}
		return []model.Lifecycle{model.OnStart}, nil
	})
}

// Pause freezes the running event.
func (e *Engine) Pause() error {
	return e.transition(func(now int64) ([]model.Lifecycle, error) {
		if e.machine.State().Status == playback.StatusPause {
			return nil, nil
		}
		if err := e.machine.Pause(now); err != nil {
			return nil, err
		}
		return []model.Lifecycle{model.OnPause}, nil
	})
}

// Stop unloads playback. Stopping an idle engine is a no-op.
func (e *Engine) Stop() error {
	return e.transition(func(int64) ([]model.Lifecycle, error) {
		if !e.machine.Stop() {
			return nil, nil
		}
		return []model.Lifecycle{model.OnStop}, nil
	})
}

// Roll follows the schedule of today's playable events.
func (e *Engine) Roll() error {
	return e.transition(func(now int64) ([]model.Lifecycle, error) {
		rd, meta := e.cache.Get()
		return e.machine.Roll(now, schedule(rd, meta), e.anchorFor(nil, now))
	})
}

// AddTime adds ms (negative to remove) to the running event.
func (e *Engine) AddTime(ms int64) error {
	return e.transition(func(int64) ([]model.Lifecycle, error) {
		if err := e.machine.AddTime(ms); err != nil {
			return nil, err
		}
		return []model.Lifecycle{model.OnUpdate}, nil
	})
}
