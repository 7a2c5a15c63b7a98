package monitor

import (
	"context"
	"sort"
	"sync"

	"github.com/banshee-data/helm.avoid/internal/helm"
	"github.com/banshee-data/helm.avoid/internal/surface"
)

// Latest is the most recent surface a behavior produced.
type Latest struct {
	Cycle    int
	Priority float64
	Surface  *surface.Surface
}

// SurfaceStore keeps a copy of each behavior's latest surface and the
// latest cycle summary.
type SurfaceStore struct {
	mu       sync.RWMutex
	surfaces map[string]Latest
	last     helm.CycleRecord
}

var _ helm.Recorder = (*SurfaceStore)(nil)

func NewSurfaceStore() *SurfaceStore {
	return &SurfaceStore{surfaces: make(map[string]Latest)}
}

// RecordCycle keeps clones of the cycle's surfaces. Behaviors that
// contributed nothing keep their previous entry.
func (s *SurfaceStore) RecordCycle(_ context.Context, rec helm.CycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, br := range rec.Behaviors {
		if br.Surface == nil {
			continue
		}
		s.surfaces[br.Behavior] = Latest{Cycle: rec.Cycle, Priority: br.Priority, Surface: br.Surface.Clone()}
	}
	rec.Behaviors = append([]helm.BehaviorRecord(nil), rec.Behaviors...)
	for i := range rec.Behaviors {
		rec.Behaviors[i].Surface = nil
	}
	s.last = rec
	return nil
}

// Surface returns the latest surface of behavior.
func (s *SurfaceStore) Surface(behavior string) (Latest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.surfaces[behavior]
	return l, ok
}

// Behaviors lists behaviors with a stored surface.
func (s *SurfaceStore) Behaviors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.surfaces))
	for n := range s.surfaces {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LastCycle returns the latest cycle summary without surfaces.
func (s *SurfaceStore) LastCycle() helm.CycleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
