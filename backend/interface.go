package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tag categorizes a note
type Tag string

const (
	TagTodo     Tag = "Todo"
	TagWork     Tag = "Work"
	TagPersonal Tag = "Personal"
	TagMeeting  Tag = "Meeting"
	TagShopping Tag = "Shopping"
)

// Tags lists every tag the notes API accepts, in display order
var Tags = []Tag{TagTodo, TagWork, TagPersonal, TagMeeting, TagShopping}

// Valid reports whether t is one of the known tags
func (t Tag) Valid() bool {
	for _, known := range Tags {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTag resolves a tag name case-insensitively.
func ParseTag(s string) (Tag, error) {
	for _, known := range Tags {
		if strings.EqualFold(string(known), strings.TrimSpace(s)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown tag %q", s)
}

// Note represents a single note in the remote collection
type Note struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Tag       Tag        `json:"tag"`
	Completed bool       `json:"completed"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// NewNote holds the fields a caller supplies when creating a note
type NewNote struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Tag       Tag    `json:"tag"`
	Completed bool   `json:"completed"`
}

// NotePage is one page of the notes collection. It is derived data and can
// always be fetched again from the remote API.
type NotePage struct {
	Notes      []Note `json:"notes"`
	TotalPages int    `json:"totalPages"`
	Page       int    `json:"page"`
}

// Clone returns a deep copy of the page so callers can't alias cached slices.
func (p *NotePage) Clone() *NotePage {
	if p == nil {
		return nil
	}
	out := *p
	out.Notes = make([]Note, len(p.Notes))
	copy(out.Notes, p.Notes)
	return &out
}

// IndexOf returns the position of the note with the given ID, or -1.
func (p *NotePage) IndexOf(id string) int {
	if p == nil {
		return -1
	}
	for i, n := range p.Notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// NoteService defines the operations of the remote notes collection
type NoteService interface {
	// FetchPage returns one page of notes. An empty search requests the full collection.
	FetchPage(ctx context.Context, search string, page int) (*NotePage, error)
	GetNote(ctx context.Context, id string) (*Note, error)
	CreateNote(ctx context.Context, fields NewNote) (*Note, error)
	DeleteNote(ctx context.Context, id string) error

	// Connection management
	Close() error
}

// PageSnapshot is a persisted copy of a fetched page of the notes collection
type PageSnapshot struct {
	Search    string
	Page      int
	Data      *NotePage
	FetchedAt time.Time
}

// PageStore keeps fetched pages between runs so the last known page can be
// shown before the first fetch completes
type PageStore interface {
	SavePage(ctx context.Context, snap PageSnapshot) error
	LoadPage(ctx context.Context, search string, page int) (*PageSnapshot, error)
	LoadPages(ctx context.Context) ([]PageSnapshot, error)
	Prune(ctx context.Context, keep int) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// FindNoteByID searches for a note by ID in a slice of notes.
// Returns nil if no match is found.
func FindNoteByID(notes []Note, id string) *Note {
	for _, n := range notes {
		if n.ID == id {
			return &n
		}
	}
	return nil
}

// GenerateID generates a unique identifier using UUID v4.
// Used for request and mutation identity.
func GenerateID() string {
	return uuid.New().String()
}
