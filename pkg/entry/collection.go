package entry

import (
	"fmt"
	"strings"
)

// MergeOutcome describes what a merge did to the collection
type MergeOutcome int

const (
	// Inserted means the term was new and was added as an Active entry
	Inserted MergeOutcome = iota + 1

	// Refreshed means an Active entry with the same identity had its mutable fields updated
	Refreshed

	// Revived means an Archived entry with the same identity was flipped back to Active
	Revived
)

func (o MergeOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Refreshed:
		return "refreshed"
	case Revived:
		return "revived"
	default:
		return "unknown"
	}
}

// Collection is the full entry set, indexed by identity key. Insertion order is preserved
// so saved documents stay diff-friendly
type Collection struct {
	entries []Entry
	index   map[string]int
}

// NewCollection builds a collection from loaded entries. Entries sharing an identity key
// with an earlier entry are dropped; their terms are returned so the caller can report them
func NewCollection(entries []Entry) (*Collection, []string) {
	c := &Collection{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}

	var dropped []string
	for _, e := range entries {
		key := e.Key()
		if key == "" {
			dropped = append(dropped, e.Term)
			continue
		}
		if _, exists := c.index[key]; exists {
			dropped = append(dropped, e.Term)
			continue
		}
		c.index[key] = len(c.entries)
		c.entries = append(c.entries, e.Clone())
	}

	return c, dropped
}

// Len returns the number of entries, Active and Archived
func (c *Collection) Len() int {
	return len(c.entries)
}

// Get returns a copy of the entry with the same identity as term
func (c *Collection) Get(term string) (Entry, bool) {
	i, ok := c.index[Key(term)]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i].Clone(), true
}

// Entries returns deep copies of all entries in insertion order
func (c *Collection) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Clone()
	}
	return out
}

// Clone returns an independent copy of the collection
func (c *Collection) Clone() *Collection {
	out, _ := NewCollection(c.entries)
	return out
}

// Update applies fn to the stored entry with the same identity as term. The identity of the
// entry must not be changed by fn
func (c *Collection) Update(term string, fn func(e *Entry)) bool {
	i, ok := c.index[Key(term)]
	if !ok {
		return false
	}
	fn(&c.entries[i])
	return true
}

// Each calls fn on every stored entry in insertion order
func (c *Collection) Each(fn func(e *Entry)) {
	for i := range c.entries {
		fn(&c.entries[i])
	}
}

// Count returns how many entries have the given status
func (c *Collection) Count(status Status) int {
	n := 0
	for _, e := range c.entries {
		if e.Status == status {
			n++
		}
	}
	return n
}

// Merge combines a validated draft with the collection under the uniqueness invariant.
//
// Behavior:
//   - New identity: the draft is inserted as Active with an identity-derived id
//   - Active match: last_updated, trend_score and context are refreshed from the draft
//   - Archived match: the entry is revived to Active and refreshed the same way
//
// first_detected and id of an existing entry are never touched, and verification is only
// ever upgraded. Merging the same draft twice leaves the collection as merging it once
func (c *Collection) Merge(draft Entry, today Date) (MergeOutcome, error) {
	candidate := draft.Clone()
	candidate.Term = strings.TrimSpace(candidate.Term)
	candidate.Status = StatusActive
	candidate.LastUpdated = today
	if candidate.FirstDetected.IsZero() {
		candidate.FirstDetected = today
	}
	if err := Validate(&candidate); err != nil {
		return 0, err
	}

	key := candidate.Key()
	i, exists := c.index[key]
	if !exists {
		candidate.ID = IDFor(candidate.Term)
		c.index[key] = len(c.entries)
		c.entries = append(c.entries, candidate)
		return Inserted, nil
	}

	existing := &c.entries[i]
	outcome := Refreshed
	switch existing.Status {
	case StatusActive:
	case StatusArchived:
		existing.Status = StatusActive
		outcome = Revived
	default:
		return 0, fmt.Errorf("%w: stored entry %q has unknown status %q", ErrInvalid, existing.Term, existing.Status)
	}

	refresh(existing, &candidate, today)
	return outcome, nil
}

// refresh copies the mutable fields of a re-confirmed draft onto a stored entry
func refresh(existing, draft *Entry, today Date) {
	if existing.LastUpdated.IsZero() || existing.LastUpdated.Before(today) {
		existing.LastUpdated = today
	}
	if existing.FirstDetected.IsZero() {
		existing.FirstDetected = draft.FirstDetected
	}
	existing.TrendScore = draft.TrendScore

	if existing.Context == nil {
		existing.Context = make(map[string]string, len(draft.Context))
	}
	for locale, text := range draft.Context {
		existing.Context[locale] = text
	}

	if draft.Verification.rank() > existing.Verification.rank() {
		existing.Verification = draft.Verification
	}
	if existing.ID == "" {
		existing.ID = IDFor(existing.Term)
	}
}
