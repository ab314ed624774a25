package rundown_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/rundown"
)

func ptr[T any](v T) *T { return &v }

func loaded(t *testing.T, entries ...model.Entry) *rundown.Cache {
	t.Helper()
	c := rundown.NewCache()
	fields := model.CustomFields{"lighting": {Label: "lighting", Type: model.FieldText}}
	if _, err := c.Load(build(entries...), fields); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func order(c *rundown.Cache) []string {
	rd, _ := c.Get()
	return rd.Order
}

func TestCacheInsertPositions(t *testing.T) {
	c := loaded(t, event("a", 0, minute, model.LockEnd), event("b", minute, 2*minute, model.LockEnd))

	if _, err := c.Insert(event("x", 0, minute, model.LockEnd), rundown.InsertOptions{After: "a"}); err != nil {
		t.Fatalf("insert after: %v", err)
	}
	if _, err := c.Insert(event("y", 0, minute, model.LockEnd), rundown.InsertOptions{Before: "a"}); err != nil {
		t.Fatalf("insert before: %v", err)
	}
	res, err := c.Insert(&model.Milestone{Title: "doors"}, rundown.InsertOptions{})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if res.Created == "" {
		t.Fatal("no id generated")
	}
	if res.Stale {
		t.Error("milestone insert marked stale")
	}

	want := []string{"y", "a", "x", "b", res.Created}
	if got := order(c); !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestCacheInsertIntoGroup(t *testing.T) {
	c := loaded(t, event("a", 0, minute, model.LockEnd))
	res, err := c.Insert(&model.Group{Title: "act 1"}, rundown.InsertOptions{})
	if err != nil {
		t.Fatalf("insert group: %v", err)
	}
	gid := res.Created

	if _, err := c.Insert(event("g1", minute, 2*minute, model.LockEnd), rundown.InsertOptions{Parent: gid}); err != nil {
		t.Fatalf("insert into group: %v", err)
	}
	res, err = c.Insert(event("g2", 2*minute, 3*minute, model.LockEnd), rundown.InsertOptions{After: "g1"})
	if err != nil {
		t.Fatalf("insert after child: %v", err)
	}
	if !res.Stale {
		t.Error("event insert not stale")
	}

	g, ok := res.Rundown.Group(gid)
	if !ok {
		t.Fatalf("group %q missing", gid)
	}
	if !slices.Equal(g.Entries, []string{"g1", "g2"}) {
		t.Errorf("group entries = %v", g.Entries)
	}
	if mustEvent(t, res.Rundown, "g2").Parent != gid {
		t.Errorf("g2 parent = %q", mustEvent(t, res.Rundown, "g2").Parent)
	}
	if !slices.Equal(res.Metadata.FlatOrder, []string{"a", gid, "g1", "g2"}) {
		t.Errorf("FlatOrder = %v", res.Metadata.FlatOrder)
	}

	_, err = c.Insert(&model.Group{ID: "inner"}, rundown.InsertOptions{Parent: gid})
	if !errors.Is(err, rundown.ErrCircularGroup) {
		t.Errorf("nested group insert: err = %v, want ErrCircularGroup", err)
	}
	_, err = c.Reorder(gid, "a", rundown.ReorderInto)
	var ve *rundown.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("reorder into event: err = %v, want ValidationError", err)
	}
}

func TestCacheRejectsInvalidWithoutChanges(t *testing.T) {
	c := loaded(t, event("a", 0, minute, model.LockEnd))
	before, _ := c.Get()

	bad := []struct {
		name string
		run  func() error
	}{
		{"duplicate id", func() error {
			_, err := c.Insert(event("a", 0, minute, model.LockEnd), rundown.InsertOptions{})
			return err
		}},
		{"start outside day", func() error {
			_, err := c.Insert(event("x", 90_000_000, 0, model.LockEnd), rundown.InsertOptions{})
			return err
		}},
		{"undeclared custom field", func() error {
			_, err := c.Patch("a", rundown.Patch{Custom: map[string]string{"sound": "on"}})
			return err
		}},
		{"unknown timer type", func() error {
			_, err := c.Patch("a", rundown.Patch{TimerType: ptr(model.TimerType("sideways"))})
			return err
		}},
		{"negative duration", func() error {
			_, err := c.Patch("a", rundown.Patch{Duration: ptr(int64(-1))})
			return err
		}},
	}
	for _, tt := range bad {
		err := tt.run()
		var ve *rundown.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: err = %v, want ValidationError", tt.name, err)
		}
	}

	if _, err := c.Patch("missing", rundown.Patch{Title: ptr("x")}); !errors.Is(err, rundown.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}

	after, _ := c.Get()
	if after.Revision != before.Revision || len(after.Entries) != len(before.Entries) {
		t.Errorf("rejected mutations changed state: revision %d -> %d", before.Revision, after.Revision)
	}
}

func TestCachePatchStaleness(t *testing.T) {
	c := loaded(t,
		event("a", 0, 10*minute, model.LockEnd),
		linked(event("b", 10*minute, 20*minute, model.LockDuration)),
	)
	rd, _ := c.Get()
	rev := rd.Revision

	res, err := c.Patch("a", rundown.Patch{Title: ptr("Opening")})
	if err != nil {
		t.Fatalf("cosmetic patch: %v", err)
	}
	if res.Stale {
		t.Error("title patch marked stale")
	}
	if res.Rundown.Revision != rev+1 {
		t.Errorf("revision = %d, want %d", res.Rundown.Revision, rev+1)
	}

	res, err = c.Patch("a", rundown.Patch{Title: ptr("Opening")})
	if err != nil {
		t.Fatalf("repeat patch: %v", err)
	}
	if res.Rundown.Revision != rev+1 {
		t.Errorf("no-op patch bumped revision to %d", res.Rundown.Revision)
	}

	res, err = c.Patch("a", rundown.Patch{Custom: map[string]string{"lighting": "on"}})
	if err != nil {
		t.Fatalf("custom patch: %v", err)
	}
	if res.Stale {
		t.Error("custom patch marked stale")
	}
	if got := res.Metadata.AssignedCustomFields["lighting"]; !slices.Equal(got, []string{"a"}) {
		t.Errorf("assigned lighting = %v", got)
	}

	res, err = c.Patch("a", rundown.Patch{TimeEnd: ptr(15 * minute)})
	if err != nil {
		t.Fatalf("timing patch: %v", err)
	}
	if !res.Stale {
		t.Error("timing patch not stale")
	}
	b := mustEvent(t, res.Rundown, "b")
	if b.TimeStart != 15*minute || b.TimeEnd != 25*minute {
		t.Errorf("b = %d..%d, want follow-on %d..%d", b.TimeStart, b.TimeEnd, 15*minute, 25*minute)
	}
}

func TestCachePatchStartBreaksLink(t *testing.T) {
	c := loaded(t,
		event("a", 0, 10*minute, model.LockEnd),
		linked(event("b", 10*minute, 20*minute, model.LockDuration)),
	)
	res, err := c.Patch("b", rundown.Patch{TimeStart: ptr(12 * minute)})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	b := mustEvent(t, res.Rundown, "b")
	if b.LinkStart {
		t.Error("b still linked")
	}
	if b.TimeStart != 12*minute || b.TimeEnd != 22*minute || b.Gap != 2*minute {
		t.Errorf("b = %d..%d gap %d", b.TimeStart, b.TimeEnd, b.Gap)
	}
}

func TestCacheDeleteUnlinksDependents(t *testing.T) {
	c := loaded(t,
		event("a", 0, 10*minute, model.LockEnd),
		linked(event("b", 10*minute, 20*minute, model.LockEnd)),
		linked(event("c", 20*minute, 30*minute, model.LockEnd)),
	)
	res, err := c.Delete("b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !res.Stale {
		t.Error("delete not stale")
	}
	cEvent := mustEvent(t, res.Rundown, "c")
	if cEvent.LinkStart {
		t.Error("c still linked to deleted b")
	}
	if cEvent.TimeStart != 20*minute {
		t.Errorf("c.TimeStart = %d, want kept %d", cEvent.TimeStart, 20*minute)
	}
	if !slices.Equal(res.Rundown.Order, []string{"a", "c"}) {
		t.Errorf("order = %v", res.Rundown.Order)
	}
	if _, err := c.Delete("b"); !errors.Is(err, rundown.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestCacheGroupUngroup(t *testing.T) {
	c := loaded(t,
		event("a", 0, minute, model.LockEnd),
		event("b", minute, 2*minute, model.LockEnd),
		event("c", 2*minute, 3*minute, model.LockEnd),
		event("d", 3*minute, 4*minute, model.LockEnd),
	)
	res, err := c.Group("c", "b")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	gid := res.Created
	if want := []string{"a", gid, "d"}; !slices.Equal(res.Rundown.Order, want) {
		t.Errorf("order = %v, want %v", res.Rundown.Order, want)
	}
	g, _ := res.Rundown.Group(gid)
	if !slices.Equal(g.Entries, []string{"b", "c"}) {
		t.Errorf("group entries = %v", g.Entries)
	}
	if g.TimeStart != minute || g.TimeEnd != 3*minute {
		t.Errorf("group span = %d..%d", g.TimeStart, g.TimeEnd)
	}

	if _, err := c.Group(gid); !errors.Is(err, rundown.ErrCircularGroup) {
		t.Errorf("group of group: err = %v, want ErrCircularGroup", err)
	}
	var ve *rundown.ValidationError
	if _, err := c.Group("b"); !errors.As(err, &ve) {
		t.Errorf("group of child: err = %v, want ValidationError", err)
	}

	res, err = c.Ungroup(gid)
	if err != nil {
		t.Fatalf("Ungroup: %v", err)
	}
	if want := []string{"a", "b", "c", "d"}; !slices.Equal(res.Rundown.Order, want) {
		t.Errorf("order = %v, want %v", res.Rundown.Order, want)
	}
	if mustEvent(t, res.Rundown, "b").Parent != "" {
		t.Error("b still has a parent")
	}
}

func TestCacheReorderAndSwap(t *testing.T) {
	c := loaded(t,
		event("a", 0, minute, model.LockEnd),
		event("b", minute, 2*minute, model.LockEnd),
		event("c", 2*minute, 3*minute, model.LockEnd),
	)
	if _, err := c.Reorder("c", "a", rundown.ReorderBefore); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if got := order(c); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Errorf("after reorder = %v", got)
	}
	if _, err := c.Reorder("c", "b", rundown.ReorderAfter); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if got := order(c); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("after reorder = %v", got)
	}
	res, err := c.Swap("a", "c")
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if !res.Stale {
		t.Error("swap not stale")
	}
	if got := order(c); !slices.Equal(got, []string{"c", "b", "a"}) {
		t.Errorf("after swap = %v", got)
	}
	var ve *rundown.ValidationError
	if _, err := c.Reorder("a", "a", rundown.ReorderAfter); !errors.As(err, &ve) {
		t.Errorf("self reorder: err = %v, want ValidationError", err)
	}
}

func TestCacheApplyDelay(t *testing.T) {
	c := loaded(t,
		event("a", 0, 10*minute, model.LockEnd),
		delay("d", 2*minute),
		linked(event("b", 10*minute, 20*minute, model.LockEnd)),
	)
	_, meta := c.Get()
	if meta.TotalDelay != 2*minute {
		t.Errorf("TotalDelay = %d, want %d", meta.TotalDelay, 2*minute)
	}
	res, err := c.ApplyDelay("d")
	if err != nil {
		t.Fatalf("ApplyDelay: %v", err)
	}
	b := mustEvent(t, res.Rundown, "b")
	if b.TimeStart != 12*minute || b.Delay != 0 || b.Gap != 2*minute {
		t.Errorf("b = start %d delay %d gap %d", b.TimeStart, b.Delay, b.Gap)
	}
	if res.Metadata.TotalDelay != 0 {
		t.Errorf("TotalDelay = %d after apply", res.Metadata.TotalDelay)
	}
}

func TestCacheApplyDelayKeepsSettledRevisions(t *testing.T) {
	c := loaded(t,
		event("a", 0, 10*minute, model.LockEnd),
		delay("d", -5*minute),
		event("b", 20*minute, 30*minute, model.LockEnd),
		event("c", 30*minute, 40*minute, model.LockEnd),
	)
	rd, _ := c.Get()
	revB, revC := mustEvent(t, rd, "b").Revision, mustEvent(t, rd, "c").Revision
	if mustEvent(t, rd, "b").Delay != -5*minute {
		t.Fatalf("b delay = %d before apply", mustEvent(t, rd, "b").Delay)
	}

	res, err := c.ApplyDelay("d")
	if err != nil {
		t.Fatalf("ApplyDelay: %v", err)
	}
	b, cc := mustEvent(t, res.Rundown, "b"), mustEvent(t, res.Rundown, "c")
	if b.TimeStart != 20*minute || cc.TimeStart != 30*minute {
		t.Errorf("starts = %d, %d, want unchanged", b.TimeStart, cc.TimeStart)
	}
	if b.Delay != 0 || cc.Delay != 0 {
		t.Errorf("delays = %d, %d, want 0", b.Delay, cc.Delay)
	}
	if b.Revision != revB || cc.Revision != revC {
		t.Errorf("revisions = %d, %d, want unchanged %d, %d", b.Revision, cc.Revision, revB, revC)
	}
}

func TestCacheApplyDelayBumpsShifted(t *testing.T) {
	c := loaded(t,
		event("a", 0, 10*minute, model.LockEnd),
		delay("d", 5*minute),
		event("b", 10*minute, 20*minute, model.LockEnd),
	)
	rd, _ := c.Get()
	before := mustEvent(t, rd, "b").Revision

	res, err := c.ApplyDelay("d")
	if err != nil {
		t.Fatalf("ApplyDelay: %v", err)
	}
	b := mustEvent(t, res.Rundown, "b")
	if b.TimeStart != 15*minute {
		t.Errorf("b start = %d, want %d", b.TimeStart, 15*minute)
	}
	if b.Revision <= before {
		t.Errorf("b revision = %d, want above %d", b.Revision, before)
	}
}

func TestCacheRedeclaredLabelKeepsItsValues(t *testing.T) {
	e := event("a", 0, minute, model.LockEnd)
	e.Custom = map[string]string{"lighting": "red"}
	c := loaded(t, e)

	if _, err := c.EditCustomField("lighting", model.CustomField{Label: "sound"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := c.AddCustomField(model.CustomField{Label: "lighting"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	res, err := c.Patch("a", rundown.Patch{Custom: map[string]string{"lighting": "blue"}})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	got := mustEvent(t, res.Rundown, "a").Custom
	if got["sound"] != "red" || got["lighting"] != "blue" || len(got) != 2 {
		t.Errorf("custom after patch = %v, want sound:red lighting:blue", got)
	}
	if ids := res.Metadata.AssignedCustomFields["lighting"]; !slices.Equal(ids, []string{"a"}) {
		t.Errorf("assigned lighting = %v", ids)
	}

	b := event("b", minute, 2*minute, model.LockEnd)
	b.Custom = map[string]string{"lighting": "green"}
	res, err = c.Insert(b, rundown.InsertOptions{})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := mustEvent(t, res.Rundown, "b").Custom; got["lighting"] != "green" || len(got) != 1 {
		t.Errorf("custom of new event = %v, want lighting:green", got)
	}
}

func TestCacheRenameBackAndForth(t *testing.T) {
	e := event("a", 0, minute, model.LockEnd)
	e.Custom = map[string]string{"lighting": "red"}
	c := loaded(t, e)

	if _, err := c.EditCustomField("lighting", model.CustomField{Label: "sound"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	res, err := c.EditCustomField("sound", model.CustomField{Label: "lighting"})
	if err != nil {
		t.Fatalf("rename back: %v", err)
	}
	if got := mustEvent(t, res.Rundown, "a").Custom; got["lighting"] != "red" || len(got) != 1 {
		t.Errorf("custom after renaming back = %v", got)
	}
}

func TestCacheCustomFieldLifecycle(t *testing.T) {
	e := event("a", 0, minute, model.LockEnd)
	e.Custom = map[string]string{"lighting": "on"}
	c := loaded(t, e)

	res, err := c.EditCustomField("lighting", model.CustomField{Label: "lights", Colour: "#fff"})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got := mustEvent(t, res.Rundown, "a").Custom; got["lights"] != "on" || len(got) != 1 {
		t.Errorf("custom after rename = %v", got)
	}
	if _, ok := c.CustomFields()["lighting"]; ok {
		t.Error("old label still declared")
	}

	var ve *rundown.ValidationError
	if _, err := c.AddCustomField(model.CustomField{Label: "lights"}); !errors.As(err, &ve) {
		t.Errorf("duplicate field: err = %v, want ValidationError", err)
	}
	if _, err := c.AddCustomField(model.CustomField{Label: "bad label"}); !errors.As(err, &ve) {
		t.Errorf("bad label: err = %v, want ValidationError", err)
	}

	res, err = c.RemoveCustomField("lights")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := mustEvent(t, res.Rundown, "a").Custom; got != nil {
		t.Errorf("custom after remove = %v, want nil", got)
	}
	if len(res.Metadata.AssignedCustomFields) != 0 {
		t.Errorf("assigned = %v", res.Metadata.AssignedCustomFields)
	}
}
