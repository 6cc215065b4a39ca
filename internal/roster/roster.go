package roster

import (
	"strings"
	"sync"
)

// Entry is one enrolled student.
type Entry struct {
	SubjectID  string `json:"subject_id"`
	Name       string `json:"name"`
	GroupLabel string `json:"group_label"`
}

// Fallbacks for import rows missing a name or class column.
const (
	FallbackName  = "Unknown"
	FallbackGroup = "N/A"
)

// Store is the enrolled-student directory. Imports wholesale-replace the map
// while scans keep resolving against it, so access is guarded.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewStore creates an empty roster.
func NewStore() *Store {
	return &Store{entries: map[string]Entry{}}
}

// Replace swaps in a complete new directory.
func (s *Store) Replace(entries []Entry) {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.SubjectID == "" {
			continue
		}
		m[e.SubjectID] = e
	}
	s.mu.Lock()
	s.entries = m
	s.mu.Unlock()
}

// Lookup resolves a scanned identifier.
func (s *Store) Lookup(subjectID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[subjectID]
	return e, ok
}

// Entries returns a snapshot of all entries.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Len reports the number of enrolled students.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Header aliases accepted by ParseRows, compared case-insensitively.
var (
	idAliases    = []string{"studentid", "id", "student id"}
	nameAliases  = []string{"name", "student name"}
	groupAliases = []string{"class", "grade"}
)

// ParseRows converts imported tabular rows into roster entries. The first row
// is the header; rows whose identifier column is empty or unresolvable are
// dropped, and missing name/class values fall back to sentinels.
func ParseRows(rows [][]string) []Entry {
	if len(rows) == 0 {
		return nil
	}
	idCol, nameCol, groupCol := -1, -1, -1
	for i, h := range rows[0] {
		switch {
		case idCol < 0 && matchesAlias(h, idAliases):
			idCol = i
		case nameCol < 0 && matchesAlias(h, nameAliases):
			nameCol = i
		case groupCol < 0 && matchesAlias(h, groupAliases):
			groupCol = i
		}
	}
	if idCol < 0 {
		return nil
	}

	var entries []Entry
	for _, row := range rows[1:] {
		id := cell(row, idCol)
		if id == "" {
			continue
		}
		name := cell(row, nameCol)
		if name == "" {
			name = FallbackName
		}
		group := cell(row, groupCol)
		if group == "" {
			group = FallbackGroup
		}
		entries = append(entries, Entry{SubjectID: id, Name: name, GroupLabel: group})
	}
	return entries
}

func matchesAlias(header string, aliases []string) bool {
	h := strings.ToLower(strings.TrimSpace(header))
	for _, a := range aliases {
		if h == a {
			return true
		}
	}
	return false
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
