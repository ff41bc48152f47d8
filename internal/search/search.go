// Package search holds the search box and pagination state and derives the
// active cache key from it.
//
// Every keystroke updates the raw query and returns a Ticket. The caller waits
// out the quiet period (DefaultDebounce unless configured) and then settles the
// ticket; only the most recent ticket commits. The committed query and the page number together
// form the active cache key.
package search

import (
	"strings"
	"sync"
	"time"

	"notehub/internal/cache"
)

// DefaultDebounce is the quiet period after the last edit before the query commits.
const DefaultDebounce = 500 * time.Millisecond

// Ticket identifies one edit. Only the latest ticket can commit.
type Ticket uint64

// State is the search and pagination state. It is safe for concurrent use.
type State struct {
	mu         sync.Mutex
	raw        string
	committed  string
	page       int
	totalPages int
	latest     Ticket
	settled    Ticket
}

// New returns the initial state: empty query on page 1.
func New() *State {
	return &State{page: 1}
}

// Edit records the current text of the search box and supersedes every
// earlier ticket. The committed query and the page are unchanged.
func (s *State) Edit(text string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = text
	s.latest++
	return s.latest
}

// Settle commits the raw query if t is the latest ticket. It reports whether
// the committed query changed; when it does, the page resets to 1 and the
// known page count is forgotten.
func (s *State) Settle(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t != s.latest || t == s.settled {
		return false
	}
	s.settled = t
	return s.commit()
}

// Flush commits the raw query immediately, superseding any pending ticket.
func (s *State) Flush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	s.settled = s.latest
	return s.commit()
}

// commit must be called with s.mu held.
func (s *State) commit() bool {
	q := strings.TrimSpace(s.raw)
	if q == s.committed {
		return false
	}
	s.committed = q
	s.page = 1
	s.totalPages = 0
	return true
}

// Pending reports whether an edit is waiting to be settled.
func (s *State) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest != s.settled
}

// RawQuery returns the text as typed.
func (s *State) RawQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// CommittedQuery returns the query the active key is built from.
func (s *State) CommittedQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Page returns the current page, starting at 1.
func (s *State) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// TotalPages returns the page count of the current query, or 0 if unknown.
func (s *State) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPages
}

// SetPage moves to page n, clamped to [1, TotalPages] when the page count is
// known. It never touches the query. It returns the resulting page.
func (s *State) SetPage(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = s.clamp(n)
	return s.page
}

// NextPage moves forward one page if there is one.
func (s *State) NextPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = s.clamp(s.page + 1)
	return s.page
}

// PrevPage moves back one page, stopping at 1.
func (s *State) PrevPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = s.clamp(s.page - 1)
	return s.page
}

// SetTotalPages records the page count reported for the committed query.
// If the current page is now past the end, it moves to the last page.
func (s *State) SetTotalPages(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = 1
	}
	s.totalPages = n
	s.page = s.clamp(s.page)
}

// clamp must be called with s.mu held.
func (s *State) clamp(n int) int {
	if s.totalPages > 0 && n > s.totalPages {
		n = s.totalPages
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Key returns the active cache key: the committed query and the page.
func (s *State) Key() cache.QueryKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cache.NotesKey(s.committed, s.page)
}
