package rundown

import (
	"maps"
	"slices"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

// ApplyDelay returns a copy of rd where the delay delayID has been baked
// into the events after it and removed. rd must be generated, since the
// walk relies on derived gaps.
//
// Walking forward from the delay in its own list:
//   - the first event is unlinked, unless a negative delay is fully
//     absorbed by its gap;
//   - a positive gap absorbs a negative delay before anything shifts;
//   - once nothing is left to shift the walk stops;
//   - a group boundary ends propagation.
func ApplyDelay(delayID string, rd model.Rundown) (model.Rundown, error) {
	entry, ok := rd.Entries[delayID]
	if !ok {
		return model.Rundown{}, notFound(delayID)
	}
	delay, ok := entry.(*model.Delay)
	if !ok {
		return model.Rundown{}, invalid("id", "%q is not a delay", delayID)
	}

	out := rd.Clone()
	list, err := listFor(&out, delay.Parent)
	if err != nil {
		return model.Rundown{}, err
	}
	pos := slices.Index(*list, delayID)
	if pos < 0 {
		return model.Rundown{}, integrity(delayID, "delay missing from its parent list")
	}

	shiftFollowing(out, (*list)[pos+1:], delay.Duration)

	*list = slices.Delete(*list, pos, pos+1)
	delete(out.Entries, delayID)
	if _, left := out.Entries[delayID]; left || slices.Contains(*list, delayID) {
		return model.Rundown{}, integrity(delayID, "delay still present after apply")
	}
	return out, nil
}

func shiftFollowing(rd model.Rundown, following []string, delayValue int64) {
	if delayValue == 0 {
		return
	}
	first := true
	for _, id := range following {
		var e *model.Event
		switch entry := rd.Entries[id].(type) {
		case *model.Group:
			return
		case *model.Event:
			e = entry
		default:
			continue
		}

		if first {
			first = false
			absorbed := delayValue < 0 && e.Gap >= -delayValue
			if !absorbed && e.LinkStart {
				e.LinkStart = false
				e.Revision++
			}
		}

		if delayValue < 0 && e.Gap > 0 {
			delayValue = min(0, delayValue+e.Gap)
		}
		if delayValue == 0 {
			return
		}

		e.TimeStart = shiftTime(e.TimeStart, delayValue)
		e.TimeEnd = shiftTime(e.TimeEnd, delayValue)
		e.Revision++
	}
}

// keepSettledRevisions undoes the revision bumps generation made to events
// of out only because the applied delay no longer counts towards their
// delay. walked is the rundown as ApplyDelay left it, before generation.
func keepSettledRevisions(out, walked model.Rundown) {
	for id, entry := range out.Entries {
		e, ok := entry.(*model.Event)
		if !ok {
			continue
		}
		w, ok := walked.Event(id)
		if !ok {
			continue
		}
		got, was := derivedOf(e), derivedOf(w)
		got.delay, was.delay = 0, 0
		if got == was && maps.Equal(e.Custom, w.Custom) {
			e.Revision = w.Revision
		}
	}
}

// shiftTime moves a time of day, never below midnight. Times pushed past
// the end of the day continue on the next one.
func shiftTime(v, by int64) int64 {
	v += by
	if v < 0 {
		return 0
	}
	if v >= timecalc.DayMs {
		return v - timecalc.DayMs
	}
	return v
}
