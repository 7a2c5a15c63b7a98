package serialmux

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"

	"github.com/banshee-data/helm.avoid/internal/contact"
	"github.com/banshee-data/helm.avoid/internal/geom"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
)

// EventSink receives decoded feed events. world.Buffer implements it.
type EventSink interface {
	ApplyReport(contact.NodeReport)
	SetDoubles(map[string]float64)
	SetObstacle(geom.Polygon) error
	ResolveObstacle(label string) bool
}

// DeviceState holds the latest JSON status values reported by the feed
// bridge, for the admin routes.
type DeviceState struct {
	mu     sync.Mutex
	values map[string]any
}

// Snapshot returns a copy of the current values.
func (d *DeviceState) Snapshot() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.values)
}

func (d *DeviceState) merge(v map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.values == nil {
		d.values = make(map[string]any)
	}
	maps.Copy(d.values, v)
}

// CurrentState collects status lines across every feed.
var CurrentState DeviceState

// HandleNodeReport stores a contact report.
func HandleNodeReport(sink EventSink, payload string) error {
	r, err := contact.ParseNodeReport(payload)
	if err != nil {
		return err
	}
	sink.ApplyReport(r)
	return nil
}

// HandleOwnship stores NAV_X=..,NAV_Y=.. style own-ship fields. A line
// with any bad field stores nothing.
func HandleOwnship(sink EventSink, payload string) error {
	vals := make(map[string]float64)
	for _, field := range strings.Split(payload, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			return fmt.Errorf("nav field %q: missing '='", field)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("nav field %s: %w", k, err)
		}
		vals[strings.ToUpper(strings.TrimSpace(k))] = f
	}
	sink.SetDoubles(vals)
	return nil
}

// HandleObstacle stores an obstacle polygon. The polygon must be convex
// and labelled.
func HandleObstacle(sink EventSink, payload string) error {
	spec := strings.TrimSpace(payload)
	if strings.HasPrefix(strings.ToUpper(spec), obstaclePrefix) {
		spec = spec[len(obstaclePrefix):]
	}
	p, err := geom.ParsePolygon(spec)
	if err != nil {
		return err
	}
	return sink.SetObstacle(p)
}

// HandleObstacleResolved removes an obstacle by label.
func HandleObstacleResolved(sink EventSink, payload string) error {
	p := strings.TrimSpace(payload)
	if !strings.HasPrefix(strings.ToUpper(p), resolvedPrefix) {
		return fmt.Errorf("obstacle resolved: %q lacks %s", payload, resolvedPrefix)
	}
	label := strings.TrimSpace(p[len(resolvedPrefix):])
	if label == "" {
		return fmt.Errorf("obstacle resolved: empty label")
	}
	if !sink.ResolveObstacle(label) {
		monitoring.Logf("serialmux: resolved unknown obstacle %q", label)
	}
	return nil
}

// HandleStatus merges a JSON status line into CurrentState.
func HandleStatus(payload string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	CurrentState.merge(values)
	return nil
}

// HandleEvent classifies payload and applies it to sink. It returns the
// event type alongside any error.
func HandleEvent(sink EventSink, payload string) (string, error) {
	kind := ClassifyPayload(payload)
	var err error
	switch kind {
	case EventTypeNodeReport:
		err = HandleNodeReport(sink, payload)
	case EventTypeOwnship:
		err = HandleOwnship(sink, payload)
	case EventTypeObstacle:
		err = HandleObstacle(sink, payload)
	case EventTypeObstacleResolved:
		err = HandleObstacleResolved(sink, payload)
	case EventTypeStatus:
		err = HandleStatus(payload)
	default:
		monitoring.Logf("serialmux: unknown event %q", payload)
	}
	if err != nil {
		return kind, fmt.Errorf("failed to handle %s event: %w", kind, err)
	}
	return kind, nil
}
