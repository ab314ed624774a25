package rundown

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

// Generate derives the schedule of rd: linked starts, gaps, durations,
// accumulated delay, day offsets, group aggregates and custom field
// assignment. renames maps old custom field labels to their new label.
//
// The result is deterministic. Its revision is bumped only when
// generation changed something, so calling Generate on its own output is
// a no-op.
func Generate(rd model.Rundown, fields model.CustomFields, renames map[string]string) (model.Rundown, model.Metadata, error) {
	if err := checkIntegrity(rd); err != nil {
		return model.Rundown{}, model.Metadata{}, err
	}

	out := rd.Clone()
	before, err := canonical(out)
	if err != nil {
		return model.Rundown{}, model.Metadata{}, err
	}

	acc := newAccumulator(fields, renames)
	for _, id := range out.Order {
		entry := out.Entries[id]
		entry.SetParent("")
		if g, ok := entry.(*model.Group); ok {
			acc.visitGroup(out, g)
			continue
		}
		acc.visit(entry)
	}

	after, err := canonical(out)
	if err != nil {
		return model.Rundown{}, model.Metadata{}, err
	}
	if !bytes.Equal(before, after) {
		out.Revision++
	}

	meta := acc.metadata()
	meta.Revision = out.Revision
	return out, meta, nil
}

// accumulator is the state threaded through the forward pass.
type accumulator struct {
	fields  model.CustomFields
	renames map[string]string

	accumulatedDelay int64
	previous         *model.Event
	first            *model.Event

	links    map[string]string
	assigned map[string][]string
	flat     []string
	timed    []string
	playable []string
}

func newAccumulator(fields model.CustomFields, renames map[string]string) *accumulator {
	return &accumulator{
		fields:   fields,
		renames:  renames,
		links:    map[string]string{},
		assigned: map[string][]string{},
		flat:     []string{},
		timed:    []string{},
		playable: []string{},
	}
}

func (a *accumulator) visit(entry model.Entry) {
	a.flat = append(a.flat, entry.EntryID())
	switch e := entry.(type) {
	case *model.Delay:
		a.accumulatedDelay += e.Duration
	case *model.Event:
		a.visitEvent(e)
	case *model.Milestone:
		before := maps.Clone(e.Custom)
		e.Custom = a.customValues(e.ID, e.Custom)
		if !maps.Equal(before, e.Custom) {
			e.Revision++
		}
	}
}

// eventDerived is the part of an event generation may rewrite.
type eventDerived struct {
	timeStart, timeEnd, duration, delay, gap int64
	dayOffset                                int
}

func derivedOf(e *model.Event) eventDerived {
	return eventDerived{e.TimeStart, e.TimeEnd, e.Duration, e.Delay, e.Gap, e.DayOffset}
}

func (a *accumulator) visitEvent(e *model.Event) {
	before := derivedOf(e)
	beforeCustom := maps.Clone(e.Custom)
	prev := a.previous

	e.Gap = 0
	if e.LinkStart && prev != nil {
		e.TimeStart = prev.TimeEnd
		a.links[e.ID] = prev.ID
	} else if prev != nil && e.TimeStart > prev.TimeEnd {
		e.Gap = e.TimeStart - prev.TimeEnd
	}

	if e.TimeStrategy == model.LockEnd {
		e.Duration = timecalc.CalculateDuration(e.TimeStart, e.TimeEnd)
	} else {
		e.TimeEnd = timecalc.AddTime(e.TimeStart, e.Duration)
	}

	e.Delay = a.accumulatedDelay

	e.DayOffset = 0
	if prev != nil {
		e.DayOffset = prev.DayOffset
		if timecalc.CrossesMidnight(prev.TimeStart, prev.Duration) || e.TimeStart <= prev.TimeStart {
			e.DayOffset++
		}
	}

	e.Custom = a.customValues(e.ID, e.Custom)

	if derivedOf(e) != before || !maps.Equal(beforeCustom, e.Custom) {
		e.Revision++
	}

	a.timed = append(a.timed, e.ID)
	if e.Skip {
		return
	}
	a.playable = append(a.playable, e.ID)
	if a.first == nil {
		a.first = e
	}
	a.previous = e
}

func (a *accumulator) visitGroup(rd model.Rundown, g *model.Group) {
	a.flat = append(a.flat, g.ID)
	a.accumulatedDelay = 0

	var (
		start, end  int64
		found       bool
		firstLinked bool
		seenEvent   bool
	)
	for _, id := range g.Entries {
		child := rd.Entries[id]
		child.SetParent(g.ID)
		a.visit(child)

		e, ok := child.(*model.Event)
		if !ok {
			continue
		}
		if !seenEvent {
			seenEvent = true
			firstLinked = e.LinkStart
		}
		if e.Skip {
			continue
		}
		s := absoluteStart(e)
		if !found || s < start {
			start = s
		}
		if !found || s+e.Duration > end {
			end = s + e.Duration
		}
		found = true
	}
	a.accumulatedDelay = 0

	prev := *g
	g.TimeStart, g.TimeEnd, g.Duration = 0, 0, 0
	if found {
		g.TimeStart = start % timecalc.DayMs
		g.TimeEnd = end % timecalc.DayMs
		g.Duration = end - start
	}
	g.IsFirstLinked = firstLinked
	if prev.TimeStart != g.TimeStart || prev.TimeEnd != g.TimeEnd || prev.Duration != g.Duration || prev.IsFirstLinked != g.IsFirstLinked {
		g.Revision++
	}
}

// customValues applies the rename changelog and drops values for fields
// the project does not declare.
func (a *accumulator) customValues(id string, in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for _, key := range slices.Sorted(maps.Keys(in)) {
		value := in[key]
		key = resolveRename(a.renames, key)
		if _, declared := a.fields[key]; !declared || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	for _, key := range slices.Sorted(maps.Keys(out)) {
		a.assigned[key] = append(a.assigned[key], id)
	}
	return out
}

// resolveRename follows the changelog to the latest label for key.
func resolveRename(renames map[string]string, key string) string {
	for range len(renames) {
		next, ok := renames[key]
		if !ok || next == key {
			break
		}
		key = next
	}
	return key
}

func (a *accumulator) metadata() model.Metadata {
	meta := model.Metadata{
		FlatOrder:            a.flat,
		TimedOrder:           a.timed,
		PlayableOrder:        a.playable,
		Links:                a.links,
		AssignedCustomFields: a.assigned,
	}
	if a.first != nil && a.previous != nil {
		first, last := a.first, a.previous
		meta.FirstStart = first.TimeStart
		meta.LastEnd = last.TimeEnd
		meta.TotalDuration = absoluteStart(last) + last.Duration - absoluteStart(first)
		meta.TotalDelay = last.Delay
		meta.TotalDays = last.DayOffset
	}
	return meta
}

func absoluteStart(e *model.Event) int64 {
	return int64(e.DayOffset)*timecalc.DayMs + e.TimeStart
}

// checkIntegrity verifies that order, group children and entries describe
// the same set of ids, each exactly once.
func checkIntegrity(rd model.Rundown) error {
	seen := make(map[string]bool, len(rd.Entries))
	for _, id := range rd.Order {
		entry, ok := rd.Entries[id]
		if !ok {
			return integrity(id, "listed in order but missing from entries")
		}
		if seen[id] {
			return integrity(id, "referenced more than once")
		}
		seen[id] = true
		if entry.EntryID() != id {
			return integrity(id, fmt.Sprintf("stored under a different id %q", entry.EntryID()))
		}
		g, ok := entry.(*model.Group)
		if !ok {
			continue
		}
		for _, childID := range g.Entries {
			child, ok := rd.Entries[childID]
			if !ok {
				return integrity(childID, fmt.Sprintf("listed in group %q but missing from entries", id))
			}
			if seen[childID] {
				return integrity(childID, "referenced more than once")
			}
			seen[childID] = true
			if child.EntryID() != childID {
				return integrity(childID, fmt.Sprintf("stored under a different id %q", child.EntryID()))
			}
			if _, nested := child.(*model.Group); nested {
				return &DataIntegrityError{ID: childID, Reason: "group inside group " + id, Err: ErrCircularGroup}
			}
		}
	}
	if len(seen) != len(rd.Entries) {
		for _, id := range slices.Sorted(maps.Keys(rd.Entries)) {
			if !seen[id] {
				return integrity(id, "present in entries but not referenced by the order")
			}
		}
	}
	return nil
}

// canonical is the byte form used to detect changes. Map keys are sorted
// by encoding/json, which keeps it stable.
func canonical(rd model.Rundown) ([]byte, error) {
	data, err := json.Marshal(rd)
	if err != nil {
		return nil, fmt.Errorf("encoding rundown: %w", err)
	}
	return data, nil
}

// sameContent compares two rundowns ignoring the top-level revision.
func sameContent(a, b model.Rundown) (bool, error) {
	a.Revision, b.Revision = 0, 0
	ca, err := canonical(a.Clone())
	if err != nil {
		return false, err
	}
	cb, err := canonical(b.Clone())
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}

func sameEntry(a, b model.Entry) (bool, error) {
	ca, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("encoding entry: %w", err)
	}
	cb, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("encoding entry: %w", err)
	}
	return bytes.Equal(ca, cb), nil
}
