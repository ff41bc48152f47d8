package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"notehub/backend"
)

// TestToken is the bearer token FakeServer accepts.
const TestToken = "test-token"

// FakeServer is an in-memory NoteHub API. Notes are listed newest first.
type FakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	notes    []backend.Note
	nextID   int
	requests []string
	failures map[string]failure
}

type failure struct {
	status  int
	message string
}

// NewFakeServer starts a server that is closed when the test ends.
func NewFakeServer(t *testing.T) *FakeServer {
	t.Helper()

	s := &FakeServer{failures: make(map[string]failure)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /notes", s.handleList)
	mux.HandleFunc("GET /search", s.handleList)
	mux.HandleFunc("POST /notes", s.handleCreate)
	mux.HandleFunc("GET /notes/{id}", s.handleGet)
	mux.HandleFunc("DELETE /notes/{id}", s.handleDelete)

	s.Server = httptest.NewServer(s.middleware(mux))
	t.Cleanup(s.Close)
	return s
}

// Seed adds notes to the collection. Notes without an id get one.
func (s *FakeServer) Seed(notes ...backend.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notes {
		if n.ID == "" {
			n.ID = s.newID()
		}
		if n.Tag == "" {
			n.Tag = backend.TagTodo
		}
		s.notes = append(s.notes, n)
	}
}

// Notes returns a copy of the collection.
func (s *FakeServer) Notes() []backend.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Requests returns "METHOD /path?query" for every request received.
func (s *FakeServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// FailNext makes the next request with method fail with status and message.
func (s *FakeServer) FailNext(method string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = failure{status: status, message: message}
}

// newID must be called with s.mu held.
func (s *FakeServer) newID() string {
	s.nextID++
	return fmt.Sprintf("note-%d", s.nextID)
}

func (s *FakeServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
		f, fail := s.failures[r.Method]
		delete(s.failures, r.Method)
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+TestToken {
			writeError(w, http.StatusUnauthorized, "Invalid or missing token")
			return
		}
		if fail {
			writeError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *FakeServer) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	if perPage < 1 {
		perPage = 12
	}
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))

	s.mu.Lock()
	var matched []backend.Note
	for _, n := range s.notes {
		if query == "" || strings.Contains(strings.ToLower(n.Title), query) || strings.Contains(strings.ToLower(n.Content), query) {
			matched = append(matched, n)
		}
	}
	s.mu.Unlock()

	totalPages := (len(matched) + perPage - 1) / perPage
	start := (page - 1) * perPage
	pageNotes := []backend.Note{}
	if start < len(matched) {
		end := start + perPage
		if end > len(matched) {
			end = len(matched)
		}
		pageNotes = matched[start:end]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notes": pageNotes, "totalPages": totalPages})
}

func (s *FakeServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var fields backend.NewNote
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(strings.TrimSpace(fields.Title)) < 3 {
		writeError(w, http.StatusBadRequest, "title must be at least 3 characters")
		return
	}

	now := time.Now().UTC()
	s.mu.Lock()
	note := backend.Note{
		ID:        s.newID(),
		Title:     fields.Title,
		Content:   fields.Content,
		Tag:       fields.Tag,
		Completed: fields.Completed,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	s.notes = append([]backend.Note{note}, s.notes...)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, note)
}

func (s *FakeServer) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	note := backend.FindNoteByID(s.notes, r.PathValue("id"))
	s.mu.Unlock()
	if note == nil {
		writeError(w, http.StatusNotFound, "Note not found")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *FakeServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	idx := -1
	for i, n := range s.notes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Note not found")
		return
	}
	deleted := s.notes[idx]
	s.notes = append(s.notes[:idx], s.notes[idx+1:]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, deleted)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
