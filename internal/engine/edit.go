package engine

import (
	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/rundown"
)

// Insert adds entry to the rundown.
func (e *Engine) Insert(entry model.Entry, opts rundown.InsertOptions) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.Insert(entry, opts) })
}

// Patch updates fields of entry id.
func (e *Engine) Patch(id string, p rundown.Patch) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.Patch(id, p) })
}

// Delete removes the given entries.
func (e *Engine) Delete(ids ...string) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.Delete(ids...) })
}

// Reorder moves id relative to destID.
func (e *Engine) Reorder(id, destID string, mode rundown.ReorderMode) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.Reorder(id, destID, mode) })
}

// Swap exchanges the schedule of two events.
func (e *Engine) Swap(a, b string) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.Swap(a, b) })
}

// ApplyDelay folds delay id into the schedule.
func (e *Engine) ApplyDelay(id string) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.ApplyDelay(id) })
}

// Group wraps ids in a new group.
func (e *Engine) Group(ids ...string) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.Group(ids...) })
}

// Ungroup dissolves group id.
func (e *Engine) Ungroup(id string) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.Ungroup(id) })
}

// AddCustomField declares a new custom field.
func (e *Engine) AddCustomField(f model.CustomField) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.AddCustomField(f) })
}

// EditCustomField changes or renames the field declared as label.
func (e *Engine) EditCustomField(label string, f model.CustomField) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.EditCustomField(label, f) })
}

// RemoveCustomField drops the field and its values.
func (e *Engine) RemoveCustomField(label string) (rundown.Result, error) {
	return e.edit(func() (rundown.Result, error) { return e.cache.RemoveCustomField(label) })
}

// edit commits a cache mutation, lets playback follow it and persists the
// project.
func (e *Engine) edit(fn func() (rundown.Result, error)) (rundown.Result, error) {
	var res rundown.Result
	err := e.transition(func(now int64) ([]model.Lifecycle, error) {
		r, err := fn()
		if err != nil {
			return nil, err
		}
		res = r
		keys := e.followLocked(now, r)
		e.persistLocked()
		return keys, nil
	})
	return res, err
}

// followLocked hands the regenerated copy of the loaded event to the
// machine.
func (e *Engine) followLocked(now int64, r rundown.Result) []model.Lifecycle {
	loaded := e.machine.Event()
	if loaded == nil {
		return nil
	}
	ev, ok := r.Rundown.Event(loaded.ID)
	if !ok {
		ev = nil
	}
	if !r.Stale {
		e.machine.Refresh(ev)
		return nil
	}
	return e.machine.Reanchor(now, ev, schedule(r.Rundown, r.Metadata))
}

func (e *Engine) persistLocked() {
	if e.save == nil {
		return
	}
	if err := e.save(e.Project()); err != nil {
		e.log.Error("saving project: %v", err)
	}
}
