// Package mutation coordinates note creation and deletion against the query
// cache: snapshot, speculative apply, then commit or restore.
package mutation

import (
	"context"
	"sort"
	"sync"

	"notehub/backend"
	"notehub/internal/cache"
	"notehub/internal/utils"
)

// Kind is the kind of change a mutation makes.
type Kind int

const (
	KindCreate Kind = iota
	KindDelete
)

func (k Kind) String() string {
	if k == KindDelete {
		return "delete"
	}
	return "create"
}

// State is the lifecycle state of a mutation: Idle -> Pending -> Committed | RolledBack.
type State int

const (
	StateIdle State = iota
	StatePending
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// Settled reports whether the mutation reached a final state.
func (s State) Settled() bool {
	return s == StateCommitted || s == StateRolledBack
}

// Mutation describes one create or delete and its outcome.
type Mutation struct {
	ID     string
	Kind   Kind
	Target string // note id for deletes; note title for creates
	State  State
	Err    error

	// Note is the server's copy of a created note.
	Note *backend.Note

	// Restored is the number of cache entries put back by a rollback.
	Restored int
}

// Service is the part of backend.NoteService the coordinator calls.
type Service interface {
	CreateNote(ctx context.Context, fields backend.NewNote) (*backend.Note, error)
	DeleteNote(ctx context.Context, id string) error
}

// Store is the part of the query cache the coordinator rewrites. *cache.Cache satisfies it.
type Store interface {
	Snapshot(pred func(cache.Entry) bool) []cache.Entry
	SetEntry(key cache.QueryKey, page *backend.NotePage)
	Restore(entries []cache.Entry)
	Invalidate(resource string) []cache.QueryKey
}

// Coordinator runs mutations. At most one delete per note id and one create
// per identical payload may be pending at a time. It is safe for concurrent use.
type Coordinator struct {
	svc   Service
	store Store

	mu       sync.Mutex
	deletes  map[string]*Delete
	creates  map[backend.NewNote]string
	onSettle []func(Mutation)

	// inflight counts mutations that have begun but whose settle hooks have
	// not yet run. idle is closed each time it drops to zero.
	inflight int
	idle     chan struct{}
}

// New creates a coordinator for svc that keeps store in step with it.
func New(svc Service, store Store) *Coordinator {
	return &Coordinator{
		svc:     svc,
		store:   store,
		deletes: make(map[string]*Delete),
		creates: make(map[backend.NewNote]string),
		idle:    make(chan struct{}),
	}
}

// OnSettle registers fn to be called after each mutation commits or rolls back.
func (c *Coordinator) OnSettle(fn func(Mutation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSettle = append(c.onSettle, fn)
}

func (c *Coordinator) settled(m Mutation) {
	c.mu.Lock()
	hooks := append([]func(Mutation){}, c.onSettle...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(m)
	}
}

// Pending returns the pending deletes, ordered by note id.
func (c *Coordinator) Pending() []Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Mutation, 0, len(c.deletes))
	for _, d := range c.deletes {
		out = append(out, d.m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// Wait blocks until every begun mutation has settled and its OnSettle hooks
// have returned, or until ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.inflight == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// done must be called once per begun mutation, after its hooks ran.
func (c *Coordinator) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight == 0 {
		close(c.idle)
		c.idle = make(chan struct{})
	}
}

// =============================================================================
// Delete
// =============================================================================

// Delete is a pending optimistic delete. The note has already been removed
// from every cached page; Settle confirms it with the server.
type Delete struct {
	c         *Coordinator
	m         Mutation
	snapshots []cache.Entry

	once   sync.Once
	result Mutation
}

// BeginDelete removes note id from every cached notes page and returns the
// pending delete. If a delete of id is already pending it returns false and
// changes nothing.
func (c *Coordinator) BeginDelete(id string) (*Delete, bool) {
	c.mu.Lock()
	if _, ok := c.deletes[id]; ok {
		c.mu.Unlock()
		utils.Debugf("mutation: delete of %s already pending", id)
		return nil, false
	}
	d := &Delete{
		c: c,
		m: Mutation{ID: backend.GenerateID(), Kind: KindDelete, Target: id, State: StatePending},
	}
	c.deletes[id] = d
	c.inflight++
	c.mu.Unlock()

	d.snapshots = c.store.Snapshot(func(e cache.Entry) bool {
		return e.Key.Resource == cache.ResourceNotes && e.Data.IndexOf(id) >= 0
	})
	for _, e := range d.snapshots {
		c.store.SetEntry(e.Key, withoutNote(e.Data, id))
	}
	utils.Debugf("mutation: delete %s pending, removed from %d cached pages", id, len(d.snapshots))
	return d, true
}

// Mutation returns the mutation as of the call.
func (d *Delete) Mutation() Mutation {
	d.c.mu.Lock()
	defer d.c.mu.Unlock()
	return d.m
}

// Settle sends the delete. On success the notes resource is invalidated so a
// refetch reconciles totals; on failure every snapshotted page is restored
// verbatim. Settle runs at most once; later calls return the same result.
func (d *Delete) Settle(ctx context.Context) Mutation {
	d.once.Do(func() {
		d.result = d.settle(ctx)
	})
	return d.result
}

func (d *Delete) settle(ctx context.Context) Mutation {
	c := d.c
	err := c.svc.DeleteNote(ctx, d.m.Target)

	c.mu.Lock()
	if err != nil {
		d.m.State = StateRolledBack
		d.m.Err = err
	} else {
		d.m.State = StateCommitted
	}
	delete(c.deletes, d.m.Target)
	m := d.m
	c.mu.Unlock()

	if err != nil {
		c.store.Restore(d.snapshots)
		m.Restored = len(d.snapshots)
		utils.Debugf("mutation: delete %s rolled back: %v", m.Target, err)
	} else {
		c.store.Invalidate(cache.ResourceNotes)
		utils.Debugf("mutation: delete %s committed", m.Target)
	}

	c.settled(m)
	c.done()
	return m
}

// Delete runs a delete to completion. A duplicate of a pending delete returns
// a pending mutation and sends nothing.
func (c *Coordinator) Delete(ctx context.Context, id string) (Mutation, error) {
	d, ok := c.BeginDelete(id)
	if !ok {
		return Mutation{Kind: KindDelete, Target: id, State: StatePending}, nil
	}
	m := d.Settle(ctx)
	return m, m.Err
}

// withoutNote returns a copy of page with note id removed.
func withoutNote(page *backend.NotePage, id string) *backend.NotePage {
	out := page.Clone()
	if i := out.IndexOf(id); i >= 0 {
		out.Notes = append(out.Notes[:i], out.Notes[i+1:]...)
	}
	return out
}

// =============================================================================
// Create
// =============================================================================

// Create validates fields, sends them, and invalidates the notes resource on
// success. Nothing is inserted into the cache before the server assigns an id.
// Invalid fields fail with a validation error and no request is sent; the
// mutation stays Idle. A create with the same fields as one still pending is a
// no-op that returns a pending mutation.
func (c *Coordinator) Create(ctx context.Context, fields backend.NewNote) (Mutation, *backend.Note, error) {
	m := Mutation{Kind: KindCreate, Target: fields.Title, State: StateIdle}
	if err := utils.ValidateNewNote(fields); err != nil {
		m.Err = err
		return m, nil, err
	}

	c.mu.Lock()
	if id, ok := c.creates[fields]; ok {
		c.mu.Unlock()
		m.ID = id
		m.State = StatePending
		return m, nil, nil
	}
	m.ID = backend.GenerateID()
	m.State = StatePending
	c.creates[fields] = m.ID
	c.inflight++
	c.mu.Unlock()
	defer c.done()

	note, err := c.svc.CreateNote(ctx, fields)

	c.mu.Lock()
	delete(c.creates, fields)
	c.mu.Unlock()

	if err != nil {
		m.State = StateRolledBack
		m.Err = err
		utils.Debugf("mutation: create %q rolled back: %v", fields.Title, err)
		c.settled(m)
		return m, nil, err
	}

	m.State = StateCommitted
	m.Note = note
	c.store.Invalidate(cache.ResourceNotes)
	utils.Debugf("mutation: create %q committed as %s", fields.Title, note.ID)
	c.settled(m)
	return m, note, nil
}
