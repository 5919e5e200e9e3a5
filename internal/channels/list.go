// Package channels keeps a displayed channel list in step with the Extend
// server: fresh lists are reconciled into the current one and a scheduled
// refresher reloads them in the background.
package channels

import (
	"slices"
	"sync"

	"github.com/jmylchreest/openwtv/pkg/extend"
)

// Diff describes what a reconciliation changed.
type Diff struct {
	Added   []extend.ChannelEntry
	Removed []extend.ChannelEntry
}

// Changed reports whether anything was added or removed.
func (d Diff) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// List is the displayed channel list. It is safe for concurrent use.
type List struct {
	mu      sync.RWMutex
	entries []extend.ChannelEntry
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// Update reconciles fresh into the list. Entries of fresh not yet present are
// appended in fresh's order; entries no longer in fresh are dropped. Surviving
// entries keep their position. Entries compare by value.
func (l *List) Update(fresh []extend.ChannelEntry) Diff {
	l.mu.Lock()
	defer l.mu.Unlock()

	var diff Diff
	for _, entry := range fresh {
		if !slices.Contains(l.entries, entry) {
			l.entries = append(l.entries, entry)
			diff.Added = append(diff.Added, entry)
		}
	}

	kept := l.entries[:0]
	for _, entry := range l.entries {
		if slices.Contains(fresh, entry) {
			kept = append(kept, entry)
		} else {
			diff.Removed = append(diff.Removed, entry)
		}
	}
	clear(l.entries[len(kept):])
	l.entries = kept

	return diff
}

// Entries returns a copy of the current entries.
func (l *List) Entries() []extend.ChannelEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Len returns the number of entries.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// At returns the entry at position i.
func (l *List) At(i int) (extend.ChannelEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.entries) {
		return extend.ChannelEntry{}, false
	}
	return l.entries[i], true
}
