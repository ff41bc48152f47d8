// Package cache provides the query cache for fetched note pages.
//
// Entries are indexed by QueryKey. Concurrent Get calls for the same key share
// a single fetch. Every write takes a version from a monotonic counter so a
// fetch that resolves after a newer optimistic write or invalidation for its
// key is returned to its callers but never stored.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"notehub/backend"
	"notehub/internal/utils"
)

// ResourceNotes is the resource of every note page key.
const ResourceNotes = "notes"

// DefaultStaleTime is how long a successful fetch is served without revalidating.
const DefaultStaleTime = 30 * time.Second

// QueryKey identifies one cached page. It is a comparable value type.
type QueryKey struct {
	Resource string
	Search   string
	Page     int
}

// NotesKey returns the key of one page of the notes collection.
func NotesKey(search string, page int) QueryKey {
	return QueryKey{Resource: ResourceNotes, Search: search, Page: page}
}

// String renders the key for logs and as the request-collapsing key.
func (k QueryKey) String() string {
	return fmt.Sprintf("%s/%q/%d", k.Resource, k.Search, k.Page)
}

// Status is the fetch state of an entry.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Entry is a copy of one cached page. Data from an earlier success is kept
// when a later fetch fails, so it can still be displayed.
type Entry struct {
	Key       QueryKey
	Data      *backend.NotePage
	Status    Status
	Err       error
	FetchedAt time.Time
	Stale     bool
}

func (e Entry) clone() Entry {
	e.Data = e.Data.Clone()
	return e
}

// Fetcher loads one page from the remote collection. backend.NoteService satisfies it.
type Fetcher interface {
	FetchPage(ctx context.Context, search string, page int) (*backend.NotePage, error)
}

// Persister stores successful note pages between runs. backend.PageStore satisfies it.
type Persister interface {
	SavePage(ctx context.Context, snap backend.PageSnapshot) error
	LoadPages(ctx context.Context) ([]backend.PageSnapshot, error)
}

// Options configures a Cache.
type Options struct {
	// StaleTime is how long a successful entry is served without a fetch.
	// Zero uses DefaultStaleTime; a negative value revalidates on every Get.
	StaleTime time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Persister, when set, receives every successful notes page.
	Persister Persister
}

// Stats counts cache activity since creation.
type Stats struct {
	Hits      int64 // Get served from a fresh entry
	Fetches   int64 // fetches actually issued
	Shared    int64 // Get calls whose fetch result was shared with other callers
	Discarded int64 // fetch results not stored because the key was touched after issue
}

// Cache is a keyed cache of note pages. It is safe for concurrent use.
type Cache struct {
	fetcher   Fetcher
	staleTime time.Duration
	now       func() time.Time
	persister Persister

	group singleflight.Group

	mu      sync.Mutex
	entries map[QueryKey]*Entry
	touched map[QueryKey]uint64
	version uint64
	cleared uint64
	stats   Stats
}

// New creates a cache that loads missing or stale pages through fetcher.
func New(fetcher Fetcher, opts Options) *Cache {
	staleTime := opts.StaleTime
	switch {
	case staleTime == 0:
		staleTime = DefaultStaleTime
	case staleTime < 0:
		staleTime = 0
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Cache{
		fetcher:   fetcher,
		staleTime: staleTime,
		now:       now,
		persister: opts.Persister,
		entries:   make(map[QueryKey]*Entry),
		touched:   make(map[QueryKey]uint64),
	}
}

// SetStaleTime changes the freshness window for later Get calls. Values are
// interpreted as in Options.StaleTime.
func (c *Cache) SetStaleTime(d time.Duration) {
	switch {
	case d == 0:
		d = DefaultStaleTime
	case d < 0:
		d = 0
	}
	c.mu.Lock()
	c.staleTime = d
	c.mu.Unlock()
}

// nextVersion must be called with c.mu held.
func (c *Cache) nextVersion() uint64 {
	c.version++
	return c.version
}

// fresh must be called with c.mu held.
func (c *Cache) fresh(e *Entry) bool {
	if e == nil || e.Status != StatusSuccess || e.Stale {
		return false
	}
	return c.now().Sub(e.FetchedAt) < c.staleTime
}

// Peek returns the cached entry for key without any I/O. The entry may be stale.
func (c *Cache) Peek(key QueryKey) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// IsFresh reports whether Get(key) would be served without a fetch.
func (c *Cache) IsFresh(key QueryKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fresh(c.entries[key])
}

// Get returns the entry for key. A fresh entry is returned without I/O.
// Otherwise a fetch is issued, or joined if one is already in flight for the
// key, and its outcome is returned. A failed fetch returns the error entry and
// the fetch error unchanged.
//
// The fetch itself is not tied to ctx, since other callers may share it;
// ctx only bounds how long this caller waits.
func (c *Cache) Get(ctx context.Context, key QueryKey) (Entry, error) {
	c.mu.Lock()
	if e := c.entries[key]; c.fresh(e) {
		c.stats.Hits++
		out := e.clone()
		c.mu.Unlock()
		return out, nil
	}
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = &Entry{Key: key, Status: StatusPending}
	}
	c.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		return c.fetch(fetchCtx, key)
	})

	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.mu.Lock()
			c.stats.Shared++
			c.mu.Unlock()
		}
		entry := res.Val.(Entry)
		return entry.clone(), res.Err
	}
}

// fetch runs once per collapsed request. The result entry is returned to all
// waiting callers whether or not it is stored.
func (c *Cache) fetch(ctx context.Context, key QueryKey) (Entry, error) {
	c.mu.Lock()
	issued := c.nextVersion()
	c.stats.Fetches++
	if e, ok := c.entries[key]; ok && e.Status != StatusSuccess {
		e.Status = StatusPending
	}
	c.mu.Unlock()

	utils.Debugf("cache: fetching %s", key)
	data, err := c.fetcher.FetchPage(ctx, key.Search, key.Page)
	fetchedAt := c.now()

	c.mu.Lock()
	var result Entry
	if prev, ok := c.entries[key]; ok {
		result = *prev
	}
	result.Key = key
	if err != nil {
		result.Status = StatusError
		result.Err = err
		result.Stale = true
	} else {
		result = Entry{Key: key, Data: data, Status: StatusSuccess, FetchedAt: fetchedAt}
	}

	superseded := c.touched[key] > issued || c.cleared > issued
	if superseded {
		c.stats.Discarded++
		utils.Debugf("cache: discarding result for %s, key changed after fetch was issued", key)
	} else {
		stored := result.clone()
		c.entries[key] = &stored
		c.touched[key] = c.nextVersion()
	}
	c.mu.Unlock()

	if err == nil && !superseded && c.persister != nil && key.Resource == ResourceNotes {
		snap := backend.PageSnapshot{Search: key.Search, Page: key.Page, Data: data.Clone(), FetchedAt: fetchedAt}
		if perr := c.persister.SavePage(ctx, snap); perr != nil {
			utils.Warnf("cache: could not persist %s: %v", key, perr)
		}
	}

	return result, err
}

// SetEntry writes page for key directly, bypassing the network. A fetch for
// key that was issued before this call will not overwrite it.
func (c *Cache) SetEntry(key QueryKey, page *backend.NotePage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &Entry{
		Key:       key,
		Data:      page.Clone(),
		Status:    StatusSuccess,
		FetchedAt: c.now(),
	}
	c.touched[key] = c.nextVersion()
}

// Invalidate marks every entry of resource stale and detaches in-flight
// fetches for those keys, so the next Get issues a new fetch and the old
// fetch's result is not stored. It returns the invalidated keys.
func (c *Cache) Invalidate(resource string) []QueryKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.nextVersion()
	var keys []QueryKey
	for k, e := range c.entries {
		if k.Resource != resource {
			continue
		}
		e.Stale = true
		c.touched[k] = v
		c.group.Forget(k.String())
		keys = append(keys, k)
	}
	sortKeys(keys)
	if len(keys) > 0 {
		utils.Debugf("cache: invalidated %d %s entries", len(keys), resource)
	}
	return keys
}

// Snapshot returns copies of every entry matching pred.
func (c *Cache) Snapshot(pred func(Entry) bool) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Entry
	for _, e := range c.entries {
		if pred == nil || pred(*e) {
			out = append(out, e.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].Key, out[j].Key) })
	return out
}

// Restore writes entries back verbatim, including their fetch time and
// staleness. Like SetEntry, it supersedes fetches issued before the call.
func (c *Cache) Restore(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.nextVersion()
	for _, e := range entries {
		restored := e.clone()
		c.entries[e.Key] = &restored
		c.touched[e.Key] = v
	}
}

// Hydrate loads persisted pages as stale entries for keys not already
// cached. It returns the number of entries added.
func (c *Cache) Hydrate(ctx context.Context) (int, error) {
	if c.persister == nil {
		return 0, nil
	}
	snaps, err := c.persister.LoadPages(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, s := range snaps {
		key := NotesKey(s.Search, s.Page)
		if _, ok := c.entries[key]; ok || s.Data == nil {
			continue
		}
		c.entries[key] = &Entry{
			Key:       key,
			Data:      s.Data.Clone(),
			Status:    StatusSuccess,
			FetchedAt: s.FetchedAt,
			Stale:     true,
		}
		added++
	}
	return added, nil
}

// Clear drops every entry. Fetches in flight when Clear is called are not stored.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		c.group.Forget(k.String())
	}
	c.entries = make(map[QueryKey]*Entry)
	c.touched = make(map[QueryKey]uint64)
	c.cleared = c.nextVersion()
}

// Keys returns the cached keys in a stable order.
func (c *Cache) Keys() []QueryKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]QueryKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a copy of the activity counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func sortKeys(keys []QueryKey) {
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
}

func keyLess(a, b QueryKey) bool {
	if a.Resource != b.Resource {
		return a.Resource < b.Resource
	}
	if a.Search != b.Search {
		return a.Search < b.Search
	}
	return a.Page < b.Page
}
