package model

import "slices"

// Rundown is the ordered list of top-level entry ids plus every entry by id.
// Group children are listed in their group's Entries, not in Order.
type Rundown struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Order    []string `json:"order"`
	Entries  Entries  `json:"entries"`
	Revision int      `json:"revision"`
}

// NewRundown returns an empty rundown.
func NewRundown(id, title string) Rundown {
	return Rundown{ID: id, Title: title, Order: []string{}, Entries: Entries{}}
}

// Clone deep-copies the rundown.
func (r Rundown) Clone() Rundown {
	c := r
	c.Order = slices.Clone(r.Order)
	if c.Order == nil {
		c.Order = []string{}
	}
	if r.Entries == nil {
		c.Entries = Entries{}
	} else {
		c.Entries = r.Entries.Clone()
	}
	return c
}

// Event returns the event with the given id.
func (r Rundown) Event(id string) (*Event, bool) {
	e, ok := r.Entries[id].(*Event)
	return e, ok
}

// Group returns the group with the given id.
func (r Rundown) Group(id string) (*Group, bool) {
	g, ok := r.Entries[id].(*Group)
	return g, ok
}

// Metadata is derived by generation alongside the rundown.
type Metadata struct {
	// FlatOrder lists every entry depth first, groups before their children.
	FlatOrder []string `json:"flatOrder"`
	// TimedOrder lists every event, skipped or not.
	TimedOrder []string `json:"timedOrder"`
	// PlayableOrder lists the events that are not skipped.
	PlayableOrder []string `json:"playableOrder"`
	// Links maps a linked event id to the id of the event it follows.
	Links                map[string]string   `json:"links"`
	AssignedCustomFields map[string][]string `json:"assignedCustomFields"`

	FirstStart    int64 `json:"firstStart"`
	LastEnd       int64 `json:"lastEnd"`
	TotalDuration int64 `json:"totalDuration"`
	TotalDelay    int64 `json:"totalDelay"`
	TotalDays     int   `json:"totalDays"`
	Revision      int   `json:"revision"`
}

// Next returns the playable event id after id, if any.
func (m Metadata) Next(id string) (string, bool) {
	i := slices.Index(m.PlayableOrder, id)
	if i < 0 || i+1 >= len(m.PlayableOrder) {
		return "", false
	}
	return m.PlayableOrder[i+1], true
}

// CustomFieldType is the kind of value a custom field holds.
type CustomFieldType string

const (
	FieldText  CustomFieldType = "text"
	FieldImage CustomFieldType = "image"
)

// CustomField is a project level user-defined column, keyed by label.
type CustomField struct {
	Label  string          `json:"label"`
	Type   CustomFieldType `json:"type"`
	Colour string          `json:"colour"`
}

// CustomFields maps labels to field definitions.
type CustomFields map[string]CustomField

// Lifecycle names a moment in playback that automations can hook into.
type Lifecycle string

const (
	OnLoad    Lifecycle = "onLoad"
	OnStart   Lifecycle = "onStart"
	OnPause   Lifecycle = "onPause"
	OnStop    Lifecycle = "onStop"
	OnFinish  Lifecycle = "onFinish"
	OnUpdate  Lifecycle = "onUpdate"
	OnClock   Lifecycle = "onClock"
	OnWarning Lifecycle = "onWarning"
	OnDanger  Lifecycle = "onDanger"
)

// Valid reports whether l is a known lifecycle key.
func (l Lifecycle) Valid() bool {
	switch l {
	case OnLoad, OnStart, OnPause, OnStop, OnFinish, OnUpdate, OnClock, OnWarning, OnDanger:
		return true
	}
	return false
}

// Trigger binds a lifecycle moment to an automation.
type Trigger struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Trigger      Lifecycle `json:"trigger"`
	AutomationID string    `json:"automationId"`
}
