// Package world is the helm's snapshot of the outside world: own-ship
// navigation, contact reports and obstacle polygons, keyed by name the way
// they arrive on the report feeds.
package world

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/helm.avoid/internal/timeutil"
)

// Reader is the read side of the world handed to behaviors each cycle.
type Reader interface {
	GetDouble(key string) (float64, bool)
	GetString(key string) (string, bool)
	// Age returns how long ago key was written.
	Age(key string) (time.Duration, bool)
	// Strings returns every string entry whose key has prefix.
	Strings(prefix string) map[string]string
}

type entry struct {
	num     float64
	str     string
	isStr   bool
	updated time.Time
}

// Buffer is a concurrency-safe key/value store. Report ingest writes to it
// from its own goroutine while the cycle loop reads.
type Buffer struct {
	mu      sync.RWMutex
	clock   timeutil.Clock
	entries map[string]entry
}

// NewBuffer creates an empty buffer timestamped by clock. A nil clock uses
// the real clock.
func NewBuffer(clock timeutil.Clock) *Buffer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Buffer{clock: clock, entries: make(map[string]entry)}
}

func normKey(key string) string { return strings.ToUpper(strings.TrimSpace(key)) }

// SetDouble stores a numeric value.
func (b *Buffer) SetDouble(key string, v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setLocked(key, entry{num: v, updated: b.clock.Now()})
}

// SetDoubles stores several numeric values under one lock with a shared
// timestamp.
func (b *Buffer) SetDoubles(vals map[string]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	for k, v := range vals {
		b.setLocked(k, entry{num: v, updated: now})
	}
}

// SetString stores a string value.
func (b *Buffer) SetString(key, v string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setLocked(key, entry{str: v, isStr: true, updated: b.clock.Now()})
}

// Delete removes key, reporting whether it existed.
func (b *Buffer) Delete(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := normKey(key)
	_, ok := b.entries[k]
	delete(b.entries, k)
	return ok
}

// GetDouble returns a numeric value. String entries are not converted.
func (b *Buffer) GetDouble(key string) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[normKey(key)]
	if !ok || e.isStr {
		return 0, false
	}
	return e.num, true
}

// GetString returns a string value.
func (b *Buffer) GetString(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[normKey(key)]
	if !ok || !e.isStr {
		return "", false
	}
	return e.str, true
}

// Age implements Reader.
func (b *Buffer) Age(key string) (time.Duration, bool) {
	b.mu.RLock()
	e, ok := b.entries[normKey(key)]
	b.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return b.clock.Since(e.updated), true
}

// Strings implements Reader.
func (b *Buffer) Strings(prefix string) map[string]string {
	prefix = normKey(prefix)
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string)
	for k, e := range b.entries {
		if e.isStr && strings.HasPrefix(k, prefix) {
			out[k] = e.str
		}
	}
	return out
}

// Keys returns every key in sorted order.
func (b *Buffer) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// setLocked writes one entry. Callers hold b.mu.
func (b *Buffer) setLocked(key string, e entry) {
	b.entries[normKey(key)] = e
}

// Snapshot copies the whole buffer under one lock. The copy never changes,
// so a cycle that reads it sees every multi-key write either entirely or
// not at all. Ages are measured against the time of the snapshot.
func (b *Buffer) Snapshot() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := make(map[string]entry, len(b.entries))
	for k, e := range b.entries {
		entries[k] = e
	}
	return &Snapshot{taken: b.clock.Now(), entries: entries}
}

// Snapshot is a frozen copy of a Buffer. It implements Reader.
type Snapshot struct {
	taken   time.Time
	entries map[string]entry
}

// GetDouble implements Reader.
func (s *Snapshot) GetDouble(key string) (float64, bool) {
	e, ok := s.entries[normKey(key)]
	if !ok || e.isStr {
		return 0, false
	}
	return e.num, true
}

// GetString implements Reader.
func (s *Snapshot) GetString(key string) (string, bool) {
	e, ok := s.entries[normKey(key)]
	if !ok || !e.isStr {
		return "", false
	}
	return e.str, true
}

// Age implements Reader.
func (s *Snapshot) Age(key string) (time.Duration, bool) {
	e, ok := s.entries[normKey(key)]
	if !ok {
		return 0, false
	}
	return s.taken.Sub(e.updated), true
}

// Strings implements Reader.
func (s *Snapshot) Strings(prefix string) map[string]string {
	prefix = normKey(prefix)
	out := make(map[string]string)
	for k, e := range s.entries {
		if e.isStr && strings.HasPrefix(k, prefix) {
			out[k] = e.str
		}
	}
	return out
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int { return len(s.entries) }

// Prune drops entries older than maxAge and returns how many were removed.
func (b *Buffer) Prune(maxAge time.Duration) int {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for k, e := range b.entries {
		if now.Sub(e.updated) > maxAge {
			delete(b.entries, k)
			n++
		}
	}
	return n
}
