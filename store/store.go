package store

import (
	"strings"
	"sync"
	"time"
)

// MaxRecordings bounds the history. Overflow evicts the oldest entries.
const MaxRecordings = 50

// Store is the ordered, bounded recording history. Most recent first.
// A single writer (the session controller) performs all mutations, but the
// TUI reads snapshots concurrently, hence the mutex.
type Store struct {
	mu         sync.Mutex
	recordings []Recording
	onChange   func()
}

func New() *Store {
	return &Store{}
}

// OnChange registers a hook invoked after every successful mutation,
// used to persist state. Must be set before concurrent use.
func (s *Store) OnChange(fn func()) {
	s.onChange = fn
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Insert prepends a recording. Duplicate ids are a no-op: a race between
// the commit path and a late event must never create two entries.
func (s *Store) Insert(rec Recording) {
	s.mu.Lock()
	for i := range s.recordings {
		if s.recordings[i].ID == rec.ID {
			s.mu.Unlock()
			return
		}
	}
	s.recordings = append([]Recording{rec}, s.recordings...)
	if len(s.recordings) > MaxRecordings {
		s.recordings = s.recordings[:MaxRecordings]
	}
	s.mu.Unlock()
	s.changed()
}

// Patch applies fn to the recording with the given id and bumps UpdatedAt.
// Returns false (without calling fn) when the id is absent.
func (s *Store) Patch(id string, fn func(*Recording)) bool {
	s.mu.Lock()
	for i := range s.recordings {
		if s.recordings[i].ID == id {
			fn(&s.recordings[i])
			s.recordings[i].UpdatedAt = time.Now()
			s.mu.Unlock()
			s.changed()
			return true
		}
	}
	s.mu.Unlock()
	return false
}

// UpdateStatus patches status and error message. Failed status carries the
// message; any other status clears it. No-op when the id is absent.
func (s *Store) UpdateStatus(id string, status Status, errMsg string) bool {
	return s.Patch(id, func(r *Recording) {
		r.Status = status
		if status == StatusFailed {
			r.ErrorMessage = errMsg
		} else {
			r.ErrorMessage = ""
		}
	})
}

// Delete removes the recording with the given id. Absent ids are a no-op so
// duplicate delete events from the UI stay harmless.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	for i := range s.recordings {
		if s.recordings[i].ID == id {
			s.recordings = append(s.recordings[:i], s.recordings[i+1:]...)
			s.mu.Unlock()
			s.changed()
			return true
		}
	}
	s.mu.Unlock()
	return false
}

// Get returns a copy of the recording with the given id.
func (s *Store) Get(id string) (Recording, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recordings {
		if s.recordings[i].ID == id {
			return s.recordings[i], true
		}
	}
	return Recording{}, false
}

// Filter narrows List results. Zero value matches everything.
type Filter struct {
	Mode   Mode   // exact match when non-empty
	Search string // case-insensitive substring against the visible transcript
}

// List returns copies of the recordings matching the filter, order preserved.
func (s *Store) List(f Filter) []Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(f.Search)
	var out []Recording
	for i := range s.recordings {
		r := s.recordings[i]
		if f.Mode != "" && r.Mode != f.Mode {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.Text()), search) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Len returns the number of stored recordings.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recordings)
}

// Snapshot returns a copy of the full history, most recent first.
func (s *Store) Snapshot() []Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Recording, len(s.recordings))
	copy(out, s.recordings)
	return out
}

// Replace swaps in a restored history, deduplicating by id (first occurrence
// wins). Persisted state is untrusted input: a crash mid-save or an old bug
// may have left duplicates behind.
func (s *Store) Replace(recordings []Recording) {
	s.mu.Lock()
	deduped := dedupeByID(recordings)
	if len(deduped) > MaxRecordings {
		deduped = deduped[:MaxRecordings]
	}
	s.recordings = deduped
	s.mu.Unlock()
}
