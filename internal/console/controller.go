package console

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Backend is the knowledge-base API the console reads and mutates.
type Backend interface {
	List(ctx context.Context, query string) ([]Entry, error)
	Save(ctx context.Context, req SaveRequest) error
	Delete(ctx context.Context, id string) error
}

// Controller owns the console state for one operator: the entry store, the
// current query and the sort state.
//
// Backend calls run without holding the lock; whichever response lands last
// decides the store contents.
type Controller struct {
	backend Backend
	limiter *SaveLimiter

	mu       sync.Mutex
	entries  []Entry
	visible  []Entry
	query    string
	sort     SortState
	loadedAt time.Time
}

// NewController creates a controller with an empty store. limiter may be nil.
func NewController(backend Backend, limiter *SaveLimiter) *Controller {
	return &Controller{backend: backend, limiter: limiter}
}

// Load replaces the store with the backend's full entry list.
func (c *Controller) Load(ctx context.Context) error {
	entries, err := c.backend.List(ctx, "")
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.loadedAt = time.Now()
	c.refreshLocked()
	return nil
}

// Search sets the query and returns the new visible rows.
func (c *Controller) Search(query string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = query
	c.refreshLocked()
	return slices.Clone(c.visible)
}

// ToggleSort cycles the sort key for field and re-sorts before returning.
func (c *Controller) ToggleSort(field Field) error {
	f, err := ParseField(string(field))
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sort.Toggle(f)
	c.refreshLocked()
	return nil
}

// Delete removes the entry on the backend, then locally. On any backend
// failure the store is left untouched.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = slices.DeleteFunc(c.entries, func(e Entry) bool { return e.ID == id })
	c.refreshLocked()
	return nil
}

// Save submits req and reloads the store on success. When the backend accepts
// the save but the reload fails, the returned error wraps ErrSavedNotReloaded
// and the store keeps its previous contents.
func (c *Controller) Save(ctx context.Context, req SaveRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return fmt.Errorf("save entry: %w", err)
		}
		defer c.limiter.Release()
	}

	if err := c.backend.Save(ctx, req); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	if err := c.Load(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSavedNotReloaded, err)
	}
	return nil
}

// Visible returns the filtered and sorted rows.
func (c *Controller) Visible() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.visible)
}

// Entry looks up an entry in the store by id.
func (c *Controller) Entry(id string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// Snapshot is a consistent read of the controller state for rendering.
type Snapshot struct {
	Rows     []Entry
	Total    int
	Query    string
	Sort     SortState
	LoadedAt time.Time
}

// Snapshot copies the state under one lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Rows:     slices.Clone(c.visible),
		Total:    len(c.entries),
		Query:    c.query,
		Sort:     SortState{keys: c.sort.Keys()},
		LoadedAt: c.loadedAt,
	}
}

// SortKeys returns the active sort keys.
func (c *Controller) SortKeys() []SortKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sort.Keys()
}

// Query returns the current search query.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *Controller) refreshLocked() {
	c.visible = Sort(Filter(c.entries, c.query), c.sort.keys)
}
