package rundown

import (
	"maps"
	"sync"

	"github.com/Tiliavir/showrun/internal/model"
)

// Result is returned by every mutation.
type Result struct {
	Rundown  model.Rundown
	Metadata model.Metadata
	// Stale is set when timing relevant data changed and playback must
	// re-anchor the loaded event.
	Stale bool
	// Created holds the id of the entry created by Insert or Group.
	Created string
}

// Cache owns the generated rundown, its metadata, the project custom
// fields and the session's rename changelog. All mutations go through it
// and are serialised; each one is applied to a copy and committed only if
// generation succeeds.
type Cache struct {
	mu      sync.Mutex
	rundown model.Rundown
	meta    model.Metadata
	fields  model.CustomFields
	renames map[string]string
}

// NewCache returns a cache holding an empty rundown.
func NewCache() *Cache {
	rd := model.NewRundown("default", "")
	_, meta, _ := Generate(rd, nil, nil)
	return &Cache{
		rundown: rd,
		meta:    meta,
		fields:  model.CustomFields{},
		renames: map[string]string{},
	}
}

// Load replaces the rundown and custom fields, e.g. when a project is opened.
func (c *Cache) Load(rd model.Rundown, fields model.CustomFields) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fields == nil {
		fields = model.CustomFields{}
	}
	out, meta, err := Generate(rd, fields, nil)
	if err != nil {
		return Result{}, err
	}
	c.fields = maps.Clone(fields)
	c.renames = map[string]string{}
	c.rundown = out
	c.meta = meta
	return Result{Rundown: out.Clone(), Metadata: meta, Stale: true}, nil
}

// Get returns a copy of the current rundown and its metadata.
func (c *Cache) Get() (model.Rundown, model.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rundown.Clone(), c.meta
}

// CustomFields returns a copy of the project custom fields.
func (c *Cache) CustomFields() model.CustomFields {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.fields)
}

// commit regenerates next and installs it. The revision is bumped against
// the currently cached rundown only if content actually changed.
func (c *Cache) commit(next model.Rundown, stale bool) (Result, error) {
	out, meta, err := Generate(next, c.fields, c.renames)
	if err != nil {
		return Result{}, err
	}
	if err := c.install(out, &meta); err != nil {
		return Result{}, err
	}
	return Result{Rundown: c.rundown.Clone(), Metadata: c.meta, Stale: stale}, nil
}

// commitCosmetic installs next without regenerating. Only valid for edits
// that cannot affect derived data.
func (c *Cache) commitCosmetic(next model.Rundown) (Result, error) {
	meta := c.meta
	if err := c.install(next, &meta); err != nil {
		return Result{}, err
	}
	return Result{Rundown: c.rundown.Clone(), Metadata: c.meta}, nil
}

func (c *Cache) install(out model.Rundown, meta *model.Metadata) error {
	same, err := sameContent(out, c.rundown)
	if err != nil {
		return err
	}
	out.Revision = c.rundown.Revision
	if !same {
		out.Revision++
	}
	meta.Revision = out.Revision
	c.rundown = out
	c.meta = *meta
	return nil
}
