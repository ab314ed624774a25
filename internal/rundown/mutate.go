package rundown

import (
	"slices"

	"github.com/google/uuid"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/timecalc"
)

// InsertOptions positions a new entry. After and Before name a sibling;
// Parent places the entry inside a group. Without a sibling the entry is
// appended to its list.
type InsertOptions struct {
	After  string `json:"after,omitempty"`
	Before string `json:"before,omitempty"`
	Parent string `json:"parent,omitempty"`
}

// ReorderMode places a moved entry relative to the destination.
type ReorderMode string

const (
	ReorderBefore ReorderMode = "before"
	ReorderAfter  ReorderMode = "after"
	ReorderInto   ReorderMode = "insert"
)

// Patch carries optional field updates. Cue, Title, Note, Colour and
// Custom are cosmetic and never mark the rundown stale; every other field
// is timing relevant. An empty Custom value removes that key.
type Patch struct {
	Cue    *string           `json:"cue,omitempty"`
	Title  *string           `json:"title,omitempty"`
	Note   *string           `json:"note,omitempty"`
	Colour *string           `json:"colour,omitempty"`
	Custom map[string]string `json:"custom,omitempty"`

	TimeStart    *int64              `json:"timeStart,omitempty"`
	TimeEnd      *int64              `json:"timeEnd,omitempty"`
	Duration     *int64              `json:"duration,omitempty"`
	TimeStrategy *model.TimeStrategy `json:"timeStrategy,omitempty"`
	LinkStart    *bool               `json:"linkStart,omitempty"`
	Skip         *bool               `json:"skip,omitempty"`
	TimerType    *model.TimerType    `json:"timerType,omitempty"`
	EndAction    *model.EndAction    `json:"endAction,omitempty"`
	TimeWarning  *int64              `json:"timeWarning,omitempty"`
	TimeDanger   *int64              `json:"timeDanger,omitempty"`
}

func (p Patch) timing() bool {
	return p.TimeStart != nil || p.TimeEnd != nil || p.Duration != nil || p.TimeStrategy != nil ||
		p.LinkStart != nil || p.Skip != nil || p.TimerType != nil || p.EndAction != nil ||
		p.TimeWarning != nil || p.TimeDanger != nil
}

func newID() string {
	return uuid.NewString()
}

// Insert adds entry to the rundown. An entry without id gets a generated one.
func (c *Cache) Insert(entry model.Entry, opts InsertOptions) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry == nil {
		return Result{}, invalid("entry", "missing")
	}
	entry = entry.Clone()
	if entry.EntryID() == "" {
		setID(entry, newID())
	}
	id := entry.EntryID()
	if _, exists := c.rundown.Entries[id]; exists {
		return Result{}, invalid("id", "%q already exists", id)
	}
	if err := c.validateEntry(entry); err != nil {
		return Result{}, err
	}

	next := c.rundown.Clone()
	parent := opts.Parent
	sibling := opts.After
	if sibling == "" {
		sibling = opts.Before
	}
	if parent == "" && sibling != "" {
		s, ok := next.Entries[sibling]
		if !ok {
			return Result{}, notFound(sibling)
		}
		parent = s.ParentID()
	}
	if g, ok := entry.(*model.Group); ok {
		if parent != "" {
			return Result{}, &DataIntegrityError{ID: id, Reason: "group inside group " + parent, Err: ErrCircularGroup}
		}
		if len(g.Entries) > 0 {
			return Result{}, invalid("entries", "groups are created empty")
		}
	}

	list, err := listFor(&next, parent)
	if err != nil {
		return Result{}, err
	}
	pos := len(*list)
	switch {
	case opts.After != "":
		i := slices.Index(*list, opts.After)
		if i < 0 {
			return Result{}, invalid("after", "%q is not in the target list", opts.After)
		}
		pos = i + 1
	case opts.Before != "":
		i := slices.Index(*list, opts.Before)
		if i < 0 {
			return Result{}, invalid("before", "%q is not in the target list", opts.Before)
		}
		pos = i
	}
	*list = slices.Insert(*list, pos, id)
	entry.SetParent(parent)
	next.Entries[id] = entry

	res, err := c.commit(next, entry.EntryType() != model.TypeMilestone)
	res.Created = id
	return res, err
}

// Patch updates fields of an existing entry.
func (c *Cache) Patch(id string, p Patch) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.rundown.Entries[id]
	if !ok {
		return Result{}, notFound(id)
	}
	if err := c.validatePatch(current, p); err != nil {
		return Result{}, err
	}

	next := c.rundown.Clone()
	entry := next.Entries[id]
	switch e := entry.(type) {
	case *model.Event:
		applyEventPatch(e, p)
	case *model.Milestone:
		applyText(&e.Cue, p.Cue)
		applyText(&e.Title, p.Title)
		applyText(&e.Note, p.Note)
		applyText(&e.Colour, p.Colour)
		e.Custom = mergeCustom(e.Custom, p.Custom)
	case *model.Group:
		applyText(&e.Title, p.Title)
		applyText(&e.Note, p.Note)
		applyText(&e.Colour, p.Colour)
	case *model.Delay:
		e.Duration = *p.Duration
	}
	if same, err := sameEntry(current, entry); err != nil {
		return Result{}, err
	} else if !same {
		bumpRevision(entry)
	}

	switch {
	case p.timing():
		return c.commit(next, true)
	case p.Custom != nil:
		return c.commit(next, false)
	default:
		return c.commitCosmetic(next)
	}
}

func bumpRevision(entry model.Entry) {
	switch e := entry.(type) {
	case *model.Event:
		e.Revision++
	case *model.Milestone:
		e.Revision++
	case *model.Group:
		e.Revision++
	}
}

func applyText(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func mergeCustom(current, changes map[string]string) map[string]string {
	if len(changes) == 0 {
		return current
	}
	if current == nil {
		current = map[string]string{}
	}
	for k, v := range changes {
		if v == "" {
			delete(current, k)
			continue
		}
		current[k] = v
	}
	return current
}

func applyEventPatch(e *model.Event, p Patch) {
	applyText(&e.Cue, p.Cue)
	applyText(&e.Title, p.Title)
	applyText(&e.Note, p.Note)
	applyText(&e.Colour, p.Colour)
	e.Custom = mergeCustom(e.Custom, p.Custom)

	if p.TimeStrategy != nil {
		e.TimeStrategy = *p.TimeStrategy
	}
	if p.LinkStart != nil {
		e.LinkStart = *p.LinkStart
	}
	if p.TimeStart != nil {
		e.TimeStart = *p.TimeStart
		// A manually set start breaks the link unless the same patch sets it.
		if p.LinkStart == nil {
			e.LinkStart = false
		}
	}
	if p.TimeEnd != nil {
		e.TimeEnd = *p.TimeEnd
		if e.TimeStrategy != model.LockEnd {
			e.Duration = timecalc.CalculateDuration(e.TimeStart, e.TimeEnd)
		}
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
		if e.TimeStrategy == model.LockEnd {
			e.TimeEnd = timecalc.AddTime(e.TimeStart, e.Duration)
		}
	}
	if p.Skip != nil {
		e.Skip = *p.Skip
	}
	if p.TimerType != nil {
		e.TimerType = *p.TimerType
	}
	if p.EndAction != nil {
		e.EndAction = *p.EndAction
	}
	if p.TimeWarning != nil {
		e.TimeWarning = *p.TimeWarning
	}
	if p.TimeDanger != nil {
		e.TimeDanger = *p.TimeDanger
	}
}

// Delete removes entries. Deleting a group removes its children. Events
// linked to a deleted event lose their link and keep their last start.
func (c *Cache) Delete(ids ...string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.rundown.Clone()
	removed := map[string]bool{}
	stale := false
	for _, id := range ids {
		if removed[id] {
			continue
		}
		entry, ok := next.Entries[id]
		if !ok {
			return Result{}, notFound(id)
		}
		if g, ok := entry.(*model.Group); ok {
			for _, child := range g.Entries {
				if next.Entries[child].EntryType() != model.TypeMilestone {
					stale = true
				}
				delete(next.Entries, child)
				removed[child] = true
			}
		}
		if list, err := listFor(&next, entry.ParentID()); err == nil {
			*list = slices.DeleteFunc(*list, func(s string) bool { return s == id })
		}
		if entry.EntryType() != model.TypeMilestone {
			stale = true
		}
		delete(next.Entries, id)
		removed[id] = true
	}

	for linked, target := range c.meta.Links {
		if !removed[target] || removed[linked] {
			continue
		}
		if e, ok := next.Event(linked); ok {
			e.LinkStart = false
			e.Revision++
		}
	}
	return c.commit(next, stale)
}

// Reorder moves id before, after or into destID.
func (c *Cache) Reorder(id, destID string, mode ReorderMode) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == destID {
		return Result{}, invalid("destination", "cannot move %q relative to itself", id)
	}
	next := c.rundown.Clone()
	entry, ok := next.Entries[id]
	if !ok {
		return Result{}, notFound(id)
	}
	dest, ok := next.Entries[destID]
	if !ok {
		return Result{}, notFound(destID)
	}

	var parent string
	switch mode {
	case ReorderInto:
		if dest.EntryType() != model.TypeGroup {
			return Result{}, invalid("destination", "%q is not a group", destID)
		}
		parent = destID
	case ReorderBefore, ReorderAfter:
		parent = dest.ParentID()
	default:
		return Result{}, invalid("mode", "unknown reorder mode %q", mode)
	}
	if entry.EntryType() == model.TypeGroup && parent != "" {
		return Result{}, &DataIntegrityError{ID: id, Reason: "group inside group " + parent, Err: ErrCircularGroup}
	}

	from, err := listFor(&next, entry.ParentID())
	if err != nil {
		return Result{}, err
	}
	*from = slices.DeleteFunc(*from, func(s string) bool { return s == id })

	to, err := listFor(&next, parent)
	if err != nil {
		return Result{}, err
	}
	pos := len(*to)
	switch mode {
	case ReorderBefore:
		pos = slices.Index(*to, destID)
	case ReorderAfter:
		pos = slices.Index(*to, destID) + 1
	}
	*to = slices.Insert(*to, pos, id)
	entry.SetParent(parent)

	return c.commit(next, entry.EntryType() != model.TypeMilestone)
}

// Swap exchanges the positions of two entries.
func (c *Cache) Swap(a, b string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a == b {
		return Result{}, invalid("swap", "cannot swap %q with itself", a)
	}
	next := c.rundown.Clone()
	ea, ok := next.Entries[a]
	if !ok {
		return Result{}, notFound(a)
	}
	eb, ok := next.Entries[b]
	if !ok {
		return Result{}, notFound(b)
	}
	pa, pb := ea.ParentID(), eb.ParentID()
	if (ea.EntryType() == model.TypeGroup && pb != "") || (eb.EntryType() == model.TypeGroup && pa != "") {
		return Result{}, &DataIntegrityError{ID: a, Reason: "swap would nest a group", Err: ErrCircularGroup}
	}

	la, err := listFor(&next, pa)
	if err != nil {
		return Result{}, err
	}
	lb, err := listFor(&next, pb)
	if err != nil {
		return Result{}, err
	}
	ia, ib := slices.Index(*la, a), slices.Index(*lb, b)
	if ia < 0 || ib < 0 {
		return Result{}, integrity(a, "entry missing from its parent list")
	}
	(*la)[ia] = b
	(*lb)[ib] = a
	ea.SetParent(pb)
	eb.SetParent(pa)

	return c.commit(next, true)
}

// ApplyDelay bakes the delay into the following events and removes it.
func (c *Cache) ApplyDelay(id string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := ApplyDelay(id, c.rundown)
	if err != nil {
		return Result{}, err
	}
	out, meta, err := Generate(next, c.fields, c.renames)
	if err != nil {
		return Result{}, err
	}
	keepSettledRevisions(out, next)
	if err := c.install(out, &meta); err != nil {
		return Result{}, err
	}
	return Result{Rundown: c.rundown.Clone(), Metadata: c.meta, Stale: true}, nil
}

// Group wraps top-level entries into a new group placed where the first
// of them was.
func (c *Cache) Group(ids ...string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(ids) == 0 {
		return Result{}, invalid("entries", "nothing to group")
	}
	selected := map[string]bool{}
	for _, id := range ids {
		entry, ok := c.rundown.Entries[id]
		if !ok {
			return Result{}, notFound(id)
		}
		if entry.EntryType() == model.TypeGroup {
			return Result{}, &DataIntegrityError{ID: id, Reason: "cannot group a group", Err: ErrCircularGroup}
		}
		if entry.ParentID() != "" {
			return Result{}, invalid("entries", "%q already belongs to group %q", id, entry.ParentID())
		}
		selected[id] = true
	}

	next := c.rundown.Clone()
	g := &model.Group{ID: newID(), Type: model.TypeGroup, Entries: []string{}}
	order := make([]string, 0, len(next.Order))
	for _, id := range next.Order {
		if !selected[id] {
			order = append(order, id)
			continue
		}
		if len(g.Entries) == 0 {
			order = append(order, g.ID)
		}
		g.Entries = append(g.Entries, id)
		next.Entries[id].SetParent(g.ID)
	}
	next.Order = order
	next.Entries[g.ID] = g

	res, err := c.commit(next, true)
	res.Created = g.ID
	return res, err
}

// Ungroup dissolves a group, leaving its children at its position.
func (c *Cache) Ungroup(id string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rundown.Entries[id]; !ok {
		return Result{}, notFound(id)
	}
	next := c.rundown.Clone()
	g, ok := next.Group(id)
	if !ok {
		return Result{}, invalid("id", "%q is not a group", id)
	}
	i := slices.Index(next.Order, id)
	if i < 0 {
		return Result{}, integrity(id, "group missing from order")
	}
	next.Order = slices.Replace(next.Order, i, i+1, g.Entries...)
	for _, child := range g.Entries {
		next.Entries[child].SetParent("")
	}
	delete(next.Entries, id)

	return c.commit(next, true)
}

func listFor(rd *model.Rundown, parent string) (*[]string, error) {
	if parent == "" {
		return &rd.Order, nil
	}
	g, ok := rd.Group(parent)
	if !ok {
		return nil, invalid("parent", "%q is not a group", parent)
	}
	return &g.Entries, nil
}

func setID(entry model.Entry, id string) {
	switch e := entry.(type) {
	case *model.Event:
		e.ID = id
	case *model.Delay:
		e.ID = id
	case *model.Group:
		e.ID = id
	case *model.Milestone:
		e.ID = id
	}
}
