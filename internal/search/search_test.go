package search

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"notehub/internal/cache"
)

func TestInitialState(t *testing.T) {
	s := New()
	require.Equal(t, "", s.RawQuery())
	require.Equal(t, "", s.CommittedQuery())
	require.Equal(t, 1, s.Page())
	require.Equal(t, 0, s.TotalPages())
	require.False(t, s.Pending())
	require.Equal(t, cache.NotesKey("", 1), s.Key())
}

func TestEditDoesNotCommit(t *testing.T) {
	s := New()
	s.SetTotalPages(5)
	s.SetPage(3)

	s.Edit("meet")
	require.Equal(t, "meet", s.RawQuery())
	require.Equal(t, "", s.CommittedQuery())
	require.Equal(t, 3, s.Page(), "raw edits alone never reset the page")
	require.True(t, s.Pending())
}

func TestOnlyLatestTicketCommits(t *testing.T) {
	s := New()
	first := s.Edit("m")
	second := s.Edit("me")
	last := s.Edit("meeting")

	require.False(t, s.Settle(first))
	require.False(t, s.Settle(second))
	require.Equal(t, "", s.CommittedQuery())

	require.True(t, s.Settle(last))
	require.Equal(t, "meeting", s.CommittedQuery())
	require.False(t, s.Pending())

	require.False(t, s.Settle(last), "a ticket settles once")
}

func TestCommitResetsPage(t *testing.T) {
	s := New()
	s.SetTotalPages(3)
	require.Equal(t, 3, s.SetPage(3))

	require.True(t, s.Settle(s.Edit("meeting")))
	require.Equal(t, 1, s.Page())
	require.Equal(t, 0, s.TotalPages(), "page count of the old query is forgotten")
	require.Equal(t, cache.NotesKey("meeting", 1), s.Key())
}

func TestCommitSameQueryKeepsPage(t *testing.T) {
	s := New()
	require.True(t, s.Settle(s.Edit("work")))
	s.SetTotalPages(4)
	s.SetPage(2)

	require.False(t, s.Settle(s.Edit("work  ")), "surrounding spaces do not change the query")
	require.Equal(t, 2, s.Page())
}

func TestFlushCommitsImmediately(t *testing.T) {
	s := New()
	pending := s.Edit("shopping")
	require.True(t, s.Flush())
	require.Equal(t, "shopping", s.CommittedQuery())
	require.False(t, s.Settle(pending), "flush supersedes pending tickets")
	require.False(t, s.Pending())
}

func TestSetPageClamps(t *testing.T) {
	tests := []struct {
		name  string
		total int
		set   int
		want  int
	}{
		{"unknown total allows any positive page", 0, 7, 7},
		{"zero clamps to first", 0, 0, 1},
		{"negative clamps to first", 3, -2, 1},
		{"past the end clamps to last", 3, 9, 3},
		{"within range", 3, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			if tt.total > 0 {
				s.SetTotalPages(tt.total)
			}
			require.Equal(t, tt.want, s.SetPage(tt.set))
			require.Equal(t, tt.want, s.Page())
		})
	}
}

func TestNextPrevPage(t *testing.T) {
	s := New()
	s.SetTotalPages(2)
	require.Equal(t, 1, s.PrevPage())
	require.Equal(t, 2, s.NextPage())
	require.Equal(t, 2, s.NextPage())
	require.Equal(t, 1, s.PrevPage())
}

func TestSetTotalPagesShrinks(t *testing.T) {
	s := New()
	s.SetTotalPages(3)
	s.SetPage(3)

	// A delete on the last page leaves one page fewer
	s.SetTotalPages(2)
	require.Equal(t, 2, s.Page())
	require.Equal(t, "", s.CommittedQuery())

	s.SetTotalPages(0)
	require.Equal(t, 1, s.TotalPages())
	require.Equal(t, 1, s.Page())
}

// TestScenarioSearchResetsPage walks through typing a query while on page 3.
func TestScenarioSearchResetsPage(t *testing.T) {
	s := New()
	s.SetTotalPages(3)
	s.SetPage(3)
	require.Equal(t, cache.NotesKey("", 3), s.Key())

	var last Ticket
	for _, text := range []string{"m", "me", "mee", "meet", "meeting"} {
		last = s.Edit(text)
	}
	require.Equal(t, cache.NotesKey("", 3), s.Key(), "key holds until the edit settles")

	require.True(t, s.Settle(last))
	require.Equal(t, cache.NotesKey("meeting", 1), s.Key())
}

func TestConcurrentEdits(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Settle(s.Edit("note"))
			s.NextPage()
			_ = s.Key()
		}()
	}
	wg.Wait()
	require.Equal(t, "note", s.CommittedQuery())
}

// TestOnlyFinalKeystrokeCommitsProperty checks, for any keystroke sequence and
// any order in which its tickets are settled, that only the final text can
// become the committed query.
func TestOnlyFinalKeystrokeCommitsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		texts := rapid.SliceOfN(rapid.StringMatching(`[a-z ]{0,8}`), 1, 12).Draw(t, "texts")
		s := New()

		tickets := make([]Ticket, len(texts))
		for i, text := range texts {
			tickets[i] = s.Edit(text)
		}

		order := rapid.Permutation(tickets).Draw(t, "order")
		settleLast := rapid.Bool().Draw(t, "settleLast")
		final := tickets[len(tickets)-1]
		for _, tk := range order {
			if tk == final && !settleLast {
				continue
			}
			committed := s.Settle(tk)
			if tk != final && committed {
				t.Fatalf("ticket %d of %d committed", tk, final)
			}
		}

		want := ""
		if settleLast {
			want = strings.TrimSpace(texts[len(texts)-1])
		}
		if got := s.CommittedQuery(); got != want {
			t.Fatalf("committed %q, want %q", got, want)
		}
	})
}

// TestPageAndQueryProperty checks that a committed query change always resets
// the page and that page changes never touch the query.
func TestPageAndQueryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := New()
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before := s.CommittedQuery()
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				changed := s.Settle(s.Edit(rapid.SampledFrom([]string{"", "work", "meeting", " work"}).Draw(t, "q")))
				if changed && s.Page() != 1 {
					t.Fatalf("query changed to %q but page is %d", s.CommittedQuery(), s.Page())
				}
				if changed == (before == s.CommittedQuery()) {
					t.Fatalf("Settle reported changed=%v for %q -> %q", changed, before, s.CommittedQuery())
				}
			case 1:
				s.SetPage(rapid.IntRange(-3, 10).Draw(t, "page"))
			case 2:
				s.SetTotalPages(rapid.IntRange(0, 6).Draw(t, "total"))
			case 3:
				s.NextPage()
			}
			if s.Page() < 1 {
				t.Fatalf("page %d below 1", s.Page())
			}
			if total := s.TotalPages(); total > 0 && s.Page() > total {
				t.Fatalf("page %d past total %d", s.Page(), total)
			}
			if s.Key() != cache.NotesKey(s.CommittedQuery(), s.Page()) {
				t.Fatalf("key %v does not match state", s.Key())
			}
		}
	})
}

// TestTimedSettle schedules a settle per keystroke after the quiet period,
// the way the TUI's tick does, and checks only the final text commits.
func TestTimedSettle(t *testing.T) {
	s := New()
	var commits atomic.Int32
	committed := make(chan cache.QueryKey, 4)

	for _, text := range []string{"s", "sh", "sho", "shopping"} {
		tk := s.Edit(text)
		time.AfterFunc(25*time.Millisecond, func() {
			if s.Settle(tk) {
				commits.Add(1)
				committed <- s.Key()
			}
		})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case key := <-committed:
		require.Equal(t, cache.NotesKey("shopping", 1), key)
	case <-time.After(time.Second):
		t.Fatal("query never committed")
	}
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), commits.Load())
}
