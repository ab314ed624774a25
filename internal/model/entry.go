package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// EntryType is the discriminant stored in the "type" field of every entry.
type EntryType string

const (
	TypeEvent     EntryType = "event"
	TypeDelay     EntryType = "delay"
	TypeGroup     EntryType = "group"
	TypeMilestone EntryType = "milestone"
)

// Entry is one item in a rundown. It is implemented by *Event, *Delay,
// *Group and *Milestone only.
type Entry interface {
	EntryID() string
	EntryType() EntryType
	ParentID() string
	SetParent(id string)
	Clone() Entry
}

// TimeStrategy decides which of end or duration wins when the start moves.
type TimeStrategy string

const (
	LockEnd      TimeStrategy = "lock-end"
	LockDuration TimeStrategy = "lock-duration"
)

// Valid reports whether s is a known strategy.
func (s TimeStrategy) Valid() bool {
	return s == LockEnd || s == LockDuration
}

// TimerType selects how the playback timer counts.
type TimerType string

const (
	CountDown TimerType = "count-down"
	CountUp   TimerType = "count-up"
	TimeToEnd TimerType = "time-to-end"
)

// Valid reports whether t is a known timer type.
func (t TimerType) Valid() bool {
	return t == CountDown || t == CountUp || t == TimeToEnd
}

// EndAction is what playback does once an event finishes.
type EndAction string

const (
	EndNone     EndAction = "none"
	EndStop     EndAction = "stop"
	EndLoadNext EndAction = "load-next"
	EndPlayNext EndAction = "play-next"
)

// Valid reports whether a is a known end action.
func (a EndAction) Valid() bool {
	return a == EndNone || a == EndStop || a == EndLoadNext || a == EndPlayNext
}

// Event is a timed entry. Times are milliseconds since local midnight.
// Delay, DayOffset, Gap and Revision are derived and only ever written by
// rundown generation.
type Event struct {
	ID           string            `json:"id"`
	Type         EntryType         `json:"type"`
	Parent       string            `json:"parent,omitempty"`
	Cue          string            `json:"cue"`
	Title        string            `json:"title"`
	Note         string            `json:"note"`
	Colour       string            `json:"colour"`
	TimeStart    int64             `json:"timeStart"`
	TimeEnd      int64             `json:"timeEnd"`
	Duration     int64             `json:"duration"`
	TimeStrategy TimeStrategy      `json:"timeStrategy"`
	LinkStart    bool              `json:"linkStart"`
	Skip         bool              `json:"skip"`
	TimerType    TimerType         `json:"timerType"`
	EndAction    EndAction         `json:"endAction"`
	TimeWarning  int64             `json:"timeWarning"`
	TimeDanger   int64             `json:"timeDanger"`
	Custom       map[string]string `json:"custom,omitempty"`
	Triggers     []Trigger         `json:"triggers,omitempty"`

	Delay     int64 `json:"delay"`
	DayOffset int   `json:"dayOffset"`
	Gap       int64 `json:"gap"`
	Revision  int   `json:"revision"`
}

// NewEvent returns an event with default strategy and timer settings.
func NewEvent(id string) *Event {
	return &Event{
		ID:           id,
		Type:         TypeEvent,
		TimeStrategy: LockDuration,
		TimerType:    CountDown,
		EndAction:    EndNone,
		TimeWarning:  120000,
		TimeDanger:   60000,
	}
}

func (e *Event) EntryID() string      { return e.ID }
func (e *Event) EntryType() EntryType { return TypeEvent }
func (e *Event) ParentID() string     { return e.Parent }
func (e *Event) SetParent(id string)  { e.Parent = id }

func (e *Event) Clone() Entry {
	c := *e
	c.Custom = maps.Clone(e.Custom)
	c.Triggers = slices.Clone(e.Triggers)
	return &c
}

func (e *Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(*e)
	a.Type = TypeEvent
	return json.Marshal(a)
}

// Delay shifts the events that follow it by Duration milliseconds once
// applied. It is transient: applying it removes it from the rundown.
type Delay struct {
	ID       string    `json:"id"`
	Type     EntryType `json:"type"`
	Parent   string    `json:"parent,omitempty"`
	Duration int64     `json:"duration"`
}

func (d *Delay) EntryID() string      { return d.ID }
func (d *Delay) EntryType() EntryType { return TypeDelay }
func (d *Delay) ParentID() string     { return d.Parent }
func (d *Delay) SetParent(id string)  { d.Parent = id }

func (d *Delay) Clone() Entry {
	c := *d
	return &c
}

func (d *Delay) MarshalJSON() ([]byte, error) {
	type alias Delay
	a := alias(*d)
	a.Type = TypeDelay
	return json.Marshal(a)
}

// Group holds an ordered list of child entry ids. Its timing is aggregated
// from its children during generation.
type Group struct {
	ID      string    `json:"id"`
	Type    EntryType `json:"type"`
	Parent  string    `json:"parent,omitempty"`
	Title   string    `json:"title"`
	Note    string    `json:"note"`
	Colour  string    `json:"colour"`
	Entries []string  `json:"entries"`

	TimeStart     int64 `json:"timeStart"`
	TimeEnd       int64 `json:"timeEnd"`
	Duration      int64 `json:"duration"`
	IsFirstLinked bool  `json:"isFirstLinked"`
	Revision      int   `json:"revision"`
}

func (g *Group) EntryID() string      { return g.ID }
func (g *Group) EntryType() EntryType { return TypeGroup }
func (g *Group) ParentID() string     { return g.Parent }
func (g *Group) SetParent(id string)  { g.Parent = id }

func (g *Group) Clone() Entry {
	c := *g
	c.Entries = slices.Clone(g.Entries)
	if c.Entries == nil {
		c.Entries = []string{}
	}
	return &c
}

func (g *Group) MarshalJSON() ([]byte, error) {
	type alias Group
	a := alias(*g)
	a.Type = TypeGroup
	if a.Entries == nil {
		a.Entries = []string{}
	}
	return json.Marshal(a)
}

// Milestone is an untimed marker.
type Milestone struct {
	ID       string            `json:"id"`
	Type     EntryType         `json:"type"`
	Parent   string            `json:"parent,omitempty"`
	Cue      string            `json:"cue"`
	Title    string            `json:"title"`
	Note     string            `json:"note"`
	Colour   string            `json:"colour"`
	Custom   map[string]string `json:"custom,omitempty"`
	Revision int               `json:"revision"`
}

func (m *Milestone) EntryID() string      { return m.ID }
func (m *Milestone) EntryType() EntryType { return TypeMilestone }
func (m *Milestone) ParentID() string     { return m.Parent }
func (m *Milestone) SetParent(id string)  { m.Parent = id }

func (m *Milestone) Clone() Entry {
	c := *m
	c.Custom = maps.Clone(m.Custom)
	return &c
}

func (m *Milestone) MarshalJSON() ([]byte, error) {
	type alias Milestone
	a := alias(*m)
	a.Type = TypeMilestone
	return json.Marshal(a)
}

// DecodeEntry decodes a single entry using its "type" discriminant.
func DecodeEntry(data []byte) (Entry, error) {
	var head struct {
		Type EntryType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}
	var entry Entry
	switch head.Type {
	case TypeEvent:
		entry = NewEvent("")
	case TypeDelay:
		entry = &Delay{Type: TypeDelay}
	case TypeGroup:
		entry = &Group{Type: TypeGroup}
	case TypeMilestone:
		entry = &Milestone{Type: TypeMilestone}
	case "":
		return nil, fmt.Errorf("decoding entry: missing type")
	default:
		return nil, fmt.Errorf("decoding entry: unknown type %q", head.Type)
	}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, fmt.Errorf("decoding %s entry: %w", head.Type, err)
	}
	return entry, nil
}

// Entries maps entry ids to entries.
type Entries map[string]Entry

// UnmarshalJSON decodes each value through DecodeEntry.
func (e *Entries) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Entries, len(raw))
	for id, msg := range raw {
		entry, err := DecodeEntry(msg)
		if err != nil {
			return fmt.Errorf("entry %s: %w", id, err)
		}
		out[id] = entry
	}
	*e = out
	return nil
}

// Clone deep-copies every entry.
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for id, entry := range e {
		out[id] = entry.Clone()
	}
	return out
}
