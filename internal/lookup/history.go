package lookup

import (
	"encoding/json"
	"fmt"

	"github.com/yegors/aeris/internal/flight"
)

const (
	// HistoryKey is the storage key holding the JSON array of recent searches
	HistoryKey = "recentSearches"
	// MaxRecentSearches caps the recent-searches list
	MaxRecentSearches = 5
)

// History is the most-recent-first list of successfully looked up flights.
// It never holds duplicates or more than MaxRecentSearches entries.
type History struct {
	entries []string
}

// Entries returns a copy of the list
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries
func (h *History) Len() int {
	return len(h.entries)
}

// Contains reports whether the identifier is already listed
func (h *History) Contains(id string) bool {
	for _, e := range h.entries {
		if e == id {
			return true
		}
	}
	return false
}

// Add inserts the identifier at the front. An identifier already present is
// left where it is and Add returns false.
func (h *History) Add(id string) bool {
	if h.Contains(id) {
		return false
	}
	h.entries = append([]string{id}, h.entries...)
	if len(h.entries) > MaxRecentSearches {
		h.entries = h.entries[:MaxRecentSearches]
	}
	return true
}

// Encode returns the persisted form
func (h *History) Encode() (string, error) {
	entries := h.entries
	if entries == nil {
		entries = []string{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode recent searches: %w", err)
	}
	return string(data), nil
}

// DecodeHistory parses a persisted list. Entries are normalized the way a
// search would be; blanks and duplicates are dropped and the list is capped.
func DecodeHistory(raw string) (*History, error) {
	var stored []string
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode recent searches: %w", err)
	}

	h := &History{}
	for _, s := range stored {
		q, err := flight.NormalizeQuery(s)
		if err != nil || h.Contains(q.String()) {
			continue
		}
		h.entries = append(h.entries, q.String())
		if len(h.entries) == MaxRecentSearches {
			break
		}
	}
	return h, nil
}
