package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/rundown"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

// Editor applies rundown edits. The engine satisfies it.
type Editor interface {
	Insert(entry model.Entry, opts rundown.InsertOptions) (rundown.Result, error)
	Patch(id string, p rundown.Patch) (rundown.Result, error)
}

// SyncResult holds counters for a sync operation.
type SyncResult struct {
	Imported int
	Skipped  int
	Updated  int
	Errors   int
}

// SyncOptions configures a sync run.
type SyncOptions struct {
	DryRun   bool
	Location *time.Location
	// Day, when set, restricts the import to events starting on that day.
	// calendarView also returns events that only run into it.
	Day time.Time
	Out io.Writer
}

// parseGraphTime parses a Graph API dateTime string in the given timezone.
// Graph returns times like "2026-02-27T09:00:00.0000000" without a zone suffix
// when a Prefer: outlook.timezone header is set.
func parseGraphTime(gt GraphTime, fallback *time.Location) (time.Time, error) {
	dt := gt.DateTime
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}

	loc := fallback
	if gt.TimeZone != "" {
		if l, err := time.LoadLocation(gt.TimeZone); err == nil {
			loc = l
		}
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// buildNote combines bodyPreview and location into an event note.
func buildNote(event CalendarEvent) string {
	parts := []string{}
	if event.BodyPreview != "" {
		parts = append(parts, event.BodyPreview)
	}
	if event.Location.DisplayName != "" {
		parts = append(parts, event.Location.DisplayName)
	}
	return strings.Join(parts, "\n")
}

// shouldSkip returns true if the event should not be imported.
func shouldSkip(event CalendarEvent) bool {
	return event.IsCancelled || event.IsAllDay || event.ShowAs == "free" ||
		event.Start.DateTime == "" || event.End.DateTime == ""
}

// startsOn reports whether event starts on day in loc. Unparseable times
// are left for MapEvent to report.
func startsOn(event CalendarEvent, day time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	start, err := parseGraphTime(event.Start, loc)
	if err != nil {
		return true
	}
	return timecalc.SameDay(start.In(loc), day.In(loc))
}

// EntryID derives a stable rundown id from a Graph event id, so repeated
// syncs update instead of duplicating.
func EntryID(graphID string) string {
	return "cal-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("graph:"+graphID)).String()
}

// MapEvent converts a calendar event into a rundown event in loc.
// Tentative events are imported as skipped.
func MapEvent(event CalendarEvent, loc *time.Location) (*model.Event, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := parseGraphTime(event.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := parseGraphTime(event.End, loc)
	if err != nil {
		return nil, fmt.Errorf("parsing end time: %w", err)
	}
	duration := end.Sub(start).Milliseconds()
	if duration < 0 || duration > timecalc.DayMs {
		return nil, fmt.Errorf("event %q lasts %s, outside a single day", event.Subject, end.Sub(start))
	}

	ev := model.NewEvent(EntryID(event.ID))
	ev.Title = event.Subject
	ev.Note = buildNote(event)
	ev.TimeStart = timecalc.ToMsOfDay(start.In(loc))
	ev.Duration = duration
	ev.TimeEnd = timecalc.AddTime(ev.TimeStart, duration)
	ev.Skip = event.ShowAs == "tentative"
	return ev, nil
}

// unchanged reports whether existing already carries everything the
// calendar says about the event.
func unchanged(existing, mapped *model.Event) bool {
	return existing.Title == mapped.Title && existing.Note == mapped.Note &&
		existing.TimeStart == mapped.TimeStart && existing.Duration == mapped.Duration &&
		existing.Skip == mapped.Skip
}

func patchFor(mapped *model.Event) rundown.Patch {
	strategy := model.LockDuration
	return rundown.Patch{
		Title:        &mapped.Title,
		Note:         &mapped.Note,
		TimeStart:    &mapped.TimeStart,
		TimeEnd:      &mapped.TimeEnd,
		Duration:     &mapped.Duration,
		TimeStrategy: &strategy,
		Skip:         &mapped.Skip,
	}
}

// SyncEvents imports events into the rundown rd through ed. New events are
// appended, known ones updated in place. Progress is written to opts.Out.
func SyncEvents(events []CalendarEvent, rd model.Rundown, ed Editor, opts SyncOptions) SyncResult {
	var result SyncResult
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	for _, event := range events {
		if shouldSkip(event) {
			continue
		}

		if !opts.Day.IsZero() && !startsOn(event, opts.Day, opts.Location) {
			fmt.Fprintf(out, "  – Skipped:  %s (starts on another day)\n", event.Subject)
			result.Skipped++
			continue
		}

		mapped, err := MapEvent(event, opts.Location)
		if err != nil {
			fmt.Fprintf(out, "  ! Error mapping event %q: %v\n", event.Subject, err)
			result.Errors++
			continue
		}
		dur := fmt.Sprintf(" (%s)", timecalc.FormatDuration(mapped.Duration))

		if existing, ok := rd.Event(mapped.ID); ok {
			if unchanged(existing, mapped) {
				fmt.Fprintf(out, "  – Skipped:  %s (already exists)\n", event.Subject)
				result.Skipped++
				continue
			}
			if !opts.DryRun {
				if _, err := ed.Patch(mapped.ID, patchFor(mapped)); err != nil {
					fmt.Fprintf(out, "  ! Error updating %q: %v\n", event.Subject, err)
					result.Errors++
					continue
				}
			}
			fmt.Fprintf(out, "  ↑ Updated:  %s%s\n", event.Subject, dur)
			result.Updated++
			continue
		}

		if !opts.DryRun {
			if _, err := ed.Insert(mapped, rundown.InsertOptions{}); err != nil {
				fmt.Fprintf(out, "  ! Error saving %q: %v\n", event.Subject, err)
				result.Errors++
				continue
			}
		}
		fmt.Fprintf(out, "  ✓ Imported: %s%s\n", event.Subject, dur)
		result.Imported++
	}

	return result
}
