package helm

import (
	"sync"

	"github.com/banshee-data/helm.avoid/internal/behavior"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
	"github.com/banshee-data/helm.avoid/internal/surface"
)

// Poster is the helm's outbound signaling.
type Poster interface {
	PostWarning(name, msg string)
	PostError(name string, err error)
	PostSurface(name string, s *surface.Surface, priority float64)
	PostHint(name string, h behavior.Hint)
}

// LogPoster writes every post through monitoring.Logf.
type LogPoster struct {
	// Verbose also logs surfaces and hints.
	Verbose bool
}

func (LogPoster) PostWarning(b, msg string) { monitoring.Prefixed(b)("warning: %s", msg) }

func (LogPoster) PostError(b string, err error) { monitoring.Prefixed(b)("error: %v", err) }

func (p LogPoster) PostSurface(b string, s *surface.Surface, priority float64) {
	if !p.Verbose {
		return
	}
	st := s.Summary()
	monitoring.Prefixed(b)("surface pwt=%.1f best=%v min=%.1f max=%.1f mean=%.1f", priority, s.Best(), st.Min, st.Max, st.Mean)
}

func (p LogPoster) PostHint(b string, h behavior.Hint) {
	if p.Verbose {
		monitoring.Prefixed(b)("%s", h)
	}
}

// Post is one recorded outbound message.
type Post struct {
	Behavior string
	Kind     string // "warning", "error", "surface" or "hint"
	Message  string
	Priority float64
	Hint     behavior.Hint
}

// MemoryPoster keeps every post in memory, for tests and the debug
// routes.
type MemoryPoster struct {
	mu    sync.Mutex
	posts []Post
}

func (m *MemoryPoster) add(p Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, p)
}

func (m *MemoryPoster) PostWarning(b, msg string) {
	m.add(Post{Behavior: b, Kind: "warning", Message: msg})
}

func (m *MemoryPoster) PostError(b string, err error) {
	m.add(Post{Behavior: b, Kind: "error", Message: err.Error()})
}

func (m *MemoryPoster) PostSurface(b string, s *surface.Surface, priority float64) {
	m.add(Post{Behavior: b, Kind: "surface", Message: s.Domain.String(), Priority: priority})
}

func (m *MemoryPoster) PostHint(b string, h behavior.Hint) {
	m.add(Post{Behavior: b, Kind: "hint", Message: h.String(), Hint: h})
}

// Posts returns a copy of everything posted, optionally filtered by kind.
func (m *MemoryPoster) Posts(kind string) []Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Post
	for _, p := range m.posts {
		if kind == "" || p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// MultiPoster fans posts out to several posters.
type MultiPoster []Poster

func (mp MultiPoster) PostWarning(b, msg string) {
	for _, p := range mp {
		p.PostWarning(b, msg)
	}
}

func (mp MultiPoster) PostError(b string, err error) {
	for _, p := range mp {
		p.PostError(b, err)
	}
}

func (mp MultiPoster) PostSurface(b string, s *surface.Surface, priority float64) {
	for _, p := range mp {
		p.PostSurface(b, s, priority)
	}
}

func (mp MultiPoster) PostHint(b string, h behavior.Hint) {
	for _, p := range mp {
		p.PostHint(b, h)
	}
}
