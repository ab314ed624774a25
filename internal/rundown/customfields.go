package rundown

import (
	"maps"
	"strings"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

// AddCustomField declares a new project custom field.
func (c *Cache) AddCustomField(f model.CustomField) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := normalizeField(f)
	if err != nil {
		return Result{}, err
	}
	if _, exists := c.fields[f.Label]; exists {
		return Result{}, invalid("label", "custom field %q already exists", f.Label)
	}
	fields := maps.Clone(c.fields)
	fields[f.Label] = f
	renames := maps.Clone(c.renames)
	reclaimLabel(renames, f.Label)
	return c.withFields(fields, renames)
}

// EditCustomField updates a field. Changing the label renames it; stored
// values follow the rename on regeneration.
func (c *Cache) EditCustomField(label string, f model.CustomField) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.fields[label]; !ok {
		return Result{}, invalid("label", "custom field %q does not exist", label)
	}
	f, err := normalizeField(f)
	if err != nil {
		return Result{}, err
	}
	fields := maps.Clone(c.fields)
	renames := maps.Clone(c.renames)
	if f.Label != label {
		if _, exists := fields[f.Label]; exists {
			return Result{}, invalid("label", "custom field %q already exists", f.Label)
		}
		delete(fields, label)
		reclaimLabel(renames, f.Label)
		renames[label] = f.Label
	}
	fields[f.Label] = f
	return c.withFields(fields, renames)
}

// RemoveCustomField deletes a field; its values are dropped from every entry.
func (c *Cache) RemoveCustomField(label string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.fields[label]; !ok {
		return Result{}, invalid("label", "custom field %q does not exist", label)
	}
	fields := maps.Clone(c.fields)
	delete(fields, label)
	return c.withFields(fields, c.renames)
}

// reclaimLabel removes label from the rename changelog when it is declared
// again, so values written under the new field stay there. Labels renamed
// into label skip over it to wherever label itself was renamed, or are
// forgotten.
func reclaimLabel(renames map[string]string, label string) {
	target, renamed := renames[label]
	delete(renames, label)
	for old, next := range renames {
		if next != label {
			continue
		}
		if renamed && target != old {
			renames[old] = target
		} else {
			delete(renames, old)
		}
	}
}

// withFields regenerates with new field definitions and keeps them only if
// generation succeeds.
func (c *Cache) withFields(fields model.CustomFields, renames map[string]string) (Result, error) {
	prevFields, prevRenames := c.fields, c.renames
	c.fields, c.renames = fields, renames
	res, err := c.commit(c.rundown.Clone(), false)
	if err != nil {
		c.fields, c.renames = prevFields, prevRenames
		return Result{}, err
	}
	return res, nil
}

func normalizeField(f model.CustomField) (model.CustomField, error) {
	f.Label = strings.TrimSpace(f.Label)
	if f.Label == "" {
		return f, invalid("label", "must not be empty")
	}
	if strings.ContainsAny(f.Label, ". \t{}") {
		return f, invalid("label", "%q must not contain dots, spaces or braces", f.Label)
	}
	if f.Type == "" {
		f.Type = model.FieldText
	}
	if f.Type != model.FieldText && f.Type != model.FieldImage {
		return f, invalid("type", "unknown custom field type %q", f.Type)
	}
	return f, nil
}

func (c *Cache) validateCustom(values map[string]string) error {
	for key, value := range values {
		if value == "" {
			continue
		}
		if _, ok := c.fields[key]; !ok {
			return invalid("custom", "%q is not a declared custom field", key)
		}
	}
	return nil
}

// validateEntry checks a new entry and fills defaults for empty enums.
func (c *Cache) validateEntry(entry model.Entry) error {
	switch e := entry.(type) {
	case *model.Event:
		e.Type = model.TypeEvent
		if e.TimeStrategy == "" {
			e.TimeStrategy = model.LockDuration
		}
		if e.TimerType == "" {
			e.TimerType = model.CountDown
		}
		if e.EndAction == "" {
			e.EndAction = model.EndNone
		}
		if err := validateTimes(e.TimeStart, e.TimeEnd, e.Duration); err != nil {
			return err
		}
		if err := validateEnums(&e.TimeStrategy, &e.TimerType, &e.EndAction); err != nil {
			return err
		}
		if e.TimeWarning < 0 || e.TimeDanger < 0 {
			return invalid("timeWarning", "thresholds must not be negative")
		}
		for _, t := range e.Triggers {
			if !t.Trigger.Valid() {
				return invalid("triggers", "unknown lifecycle %q", t.Trigger)
			}
		}
		return c.validateCustom(e.Custom)
	case *model.Milestone:
		e.Type = model.TypeMilestone
		return c.validateCustom(e.Custom)
	case *model.Delay:
		e.Type = model.TypeDelay
		if e.Duration <= -timecalc.DayMs || e.Duration >= timecalc.DayMs {
			return invalid("duration", "delay must be shorter than a day")
		}
	case *model.Group:
		e.Type = model.TypeGroup
	}
	return nil
}

func validateTimes(start, end, duration int64) error {
	if start < 0 || start >= timecalc.DayMs {
		return invalid("timeStart", "%d is outside the day", start)
	}
	if end < 0 || end >= timecalc.DayMs {
		return invalid("timeEnd", "%d is outside the day", end)
	}
	if duration < 0 || duration > timecalc.DayMs {
		return invalid("duration", "%d is outside the day", duration)
	}
	return nil
}

func validateEnums(ts *model.TimeStrategy, tt *model.TimerType, ea *model.EndAction) error {
	if ts != nil && !ts.Valid() {
		return invalid("timeStrategy", "unknown value %q", *ts)
	}
	if tt != nil && !tt.Valid() {
		return invalid("timerType", "unknown value %q", *tt)
	}
	if ea != nil && !ea.Valid() {
		return invalid("endAction", "unknown value %q", *ea)
	}
	return nil
}

func (c *Cache) validatePatch(entry model.Entry, p Patch) error {
	switch e := entry.(type) {
	case *model.Event:
		start, end, duration := e.TimeStart, e.TimeEnd, e.Duration
		if p.TimeStart != nil {
			start = *p.TimeStart
		}
		if p.TimeEnd != nil {
			end = *p.TimeEnd
		}
		if p.Duration != nil {
			duration = *p.Duration
		}
		if err := validateTimes(start, end, duration); err != nil {
			return err
		}
		if err := validateEnums(p.TimeStrategy, p.TimerType, p.EndAction); err != nil {
			return err
		}
		if (p.TimeWarning != nil && *p.TimeWarning < 0) || (p.TimeDanger != nil && *p.TimeDanger < 0) {
			return invalid("timeWarning", "thresholds must not be negative")
		}
		return c.validateCustom(p.Custom)
	case *model.Milestone:
		if p.timing() {
			return invalid("patch", "milestones have no timing fields")
		}
		return c.validateCustom(p.Custom)
	case *model.Group:
		if p.timing() || p.Cue != nil || p.Custom != nil {
			return invalid("patch", "groups only accept title, note and colour")
		}
	case *model.Delay:
		if p.Duration == nil || p.TimeStart != nil || p.TimeEnd != nil || p.TimeStrategy != nil ||
			p.LinkStart != nil || p.Skip != nil || p.TimerType != nil || p.EndAction != nil ||
			p.TimeWarning != nil || p.TimeDanger != nil || p.Cue != nil || p.Title != nil ||
			p.Note != nil || p.Colour != nil || p.Custom != nil {
			return invalid("patch", "delays only accept duration")
		}
		if *p.Duration <= -timecalc.DayMs || *p.Duration >= timecalc.DayMs {
			return invalid("duration", "delay must be shorter than a day")
		}
	}
	return nil
}
