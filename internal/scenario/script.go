// Package scenario loads YAML encounter scripts and replays them through
// a helm: own-ship and contacts move between keyframes, obstacles appear
// and resolve on schedule, and every step is fed in as report lines.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/helm.avoid/internal/geom"
)

// Script is the YAML form of a scenario.
//
//	version: 1
//	duration: 120s
//	cycle: 1s
//	domain: {max_speed: 5, speed_points: 6}
//	ownship:
//	  keyframes:
//	    - {t: 0s, x: 0, y: 0, heading: 0, speed: 2}
//	contacts:
//	  - name: alpha
//	    type: kayak
//	    keyframes:
//	      - {t: 0s, x: 0, y: 200, heading: 180, speed: 2}
//	obstacles:
//	  - label: rock
//	    points: [[-10, 40], [10, 40], [10, 60], [-10, 60]]
//	    resolve: 90s
//	behaviors:
//	  - kind: avoid_collision
//	    name: avd_alpha
//	    params: {contact: alpha}
//
// Past its last keyframe a track is dead-reckoned from that keyframe's
// heading and speed.
type Script struct {
	Version   int            `yaml:"version"`
	Duration  time.Duration  `yaml:"duration"`
	Cycle     time.Duration  `yaml:"cycle"`
	Domain    DomainSpec     `yaml:"domain"`
	Ownship   Track          `yaml:"ownship"`
	Contacts  []Track        `yaml:"contacts"`
	Obstacles []ObstacleSpec `yaml:"obstacles"`
	Behaviors []BehaviorSpec `yaml:"behaviors"`
}

type DomainSpec struct {
	MaxSpeed    float64 `yaml:"max_speed"`
	SpeedPoints int     `yaml:"speed_points"`
}

// Track is a named vessel timeline.
type Track struct {
	Name      string     `yaml:"name"`
	Type      string     `yaml:"type"`
	Keyframes []Keyframe `yaml:"keyframes"`
}

type Keyframe struct {
	T       time.Duration `yaml:"t"`
	X       float64       `yaml:"x"`
	Y       float64       `yaml:"y"`
	Heading float64       `yaml:"heading"`
	Speed   float64       `yaml:"speed"`
	Depth   float64       `yaml:"depth"`
}

// ObstacleSpec is a convex polygon present from Appear until Resolve. A
// zero Resolve keeps it for the whole run.
type ObstacleSpec struct {
	Label   string        `yaml:"label"`
	Points  [][2]float64  `yaml:"points"`
	Appear  time.Duration `yaml:"appear"`
	Resolve time.Duration `yaml:"resolve"`
}

// BehaviorSpec names a behavior and its SetParam values.
type BehaviorSpec struct {
	Kind   string            `yaml:"kind"`
	Name   string            `yaml:"name"`
	Params map[string]string `yaml:"params"`
}

const (
	KindAvoidCollision = "avoid_collision"
	KindAvoidObstacle  = "avoid_obstacle"
)

// LoadScript reads a YAML script from path.
func LoadScript(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return ParseScript(b)
}

// ParseScript parses a YAML script. Unknown fields are rejected.
func ParseScript(b []byte) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Script{}, fmt.Errorf("scenario: %w", err)
	}
	return s, nil
}

// Scenario is a validated script.
type Scenario struct {
	script    Script
	duration  time.Duration
	obstacles []geom.Polygon
}

// New validates script and fills defaults: version 1, a one second cycle,
// a 5 m/s six point speed axis, and a duration from the latest time
// mentioned.
func New(script Script) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("scenario: unsupported version %d", script.Version)
	}
	if script.Cycle <= 0 {
		script.Cycle = time.Second
	}
	if script.Domain.MaxSpeed <= 0 {
		script.Domain.MaxSpeed = 5
	}
	if script.Domain.SpeedPoints <= 0 {
		script.Domain.SpeedPoints = 6
	}
	if len(script.Ownship.Keyframes) == 0 {
		return nil, errors.New("scenario: ownship.keyframes is required")
	}
	if err := validateKeyframes("ownship", script.Ownship.Keyframes); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for i, c := range script.Contacts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("scenario: contacts[%d].name is required", i)
		}
		if seen[strings.ToUpper(name)] {
			return nil, fmt.Errorf("scenario: duplicate contact %q", name)
		}
		seen[strings.ToUpper(name)] = true
		if len(c.Keyframes) == 0 {
			return nil, fmt.Errorf("scenario: contacts[%d].keyframes is required", i)
		}
		if err := validateKeyframes("contact "+name, c.Keyframes); err != nil {
			return nil, err
		}
	}

	polys := make([]geom.Polygon, 0, len(script.Obstacles))
	for i, o := range script.Obstacles {
		if o.Label == "" {
			return nil, fmt.Errorf("scenario: obstacles[%d].label is required", i)
		}
		if o.Resolve != 0 && o.Resolve <= o.Appear {
			return nil, fmt.Errorf("scenario: obstacle %s resolves before it appears", o.Label)
		}
		pts := make([]geom.Point, len(o.Points))
		for j, p := range o.Points {
			pts[j] = geom.Pt(p[0], p[1])
		}
		poly, err := geom.NewPolygon(o.Label, pts...)
		if err != nil {
			return nil, fmt.Errorf("scenario: obstacle %s: %w", o.Label, err)
		}
		polys = append(polys, poly)
	}

	for i, b := range script.Behaviors {
		if b.Kind != KindAvoidCollision && b.Kind != KindAvoidObstacle {
			return nil, fmt.Errorf("scenario: behaviors[%d]: unknown kind %q", i, b.Kind)
		}
		if b.Name == "" {
			return nil, fmt.Errorf("scenario: behaviors[%d].name is required", i)
		}
	}

	dur := script.Duration
	if dur <= 0 {
		dur = latestTime(script)
	}
	if dur <= 0 {
		return nil, errors.New("scenario: duration is required (or derivable from keyframes)")
	}
	return &Scenario{script: script, duration: dur, obstacles: polys}, nil
}

// Load reads, parses and validates a script file.
func Load(path string) (*Scenario, error) {
	script, err := LoadScript(path)
	if err != nil {
		return nil, err
	}
	return New(script)
}

func (s *Scenario) Script() Script          { return s.script }
func (s *Scenario) Duration() time.Duration { return s.duration }
func (s *Scenario) Cycle() time.Duration    { return s.script.Cycle }

func validateKeyframes(what string, kfs []Keyframe) error {
	for i := range kfs {
		if kfs[i].T < 0 {
			return fmt.Errorf("scenario: %s keyframes[%d].t must be >= 0", what, i)
		}
		if i > 0 && kfs[i].T < kfs[i-1].T {
			return fmt.Errorf("scenario: %s keyframes must be sorted by t (index %d)", what, i)
		}
	}
	return nil
}

func latestTime(s Script) time.Duration {
	var latest time.Duration
	consider := func(t time.Duration) {
		if t > latest {
			latest = t
		}
	}
	for _, kf := range s.Ownship.Keyframes {
		consider(kf.T)
	}
	for _, c := range s.Contacts {
		for _, kf := range c.Keyframes {
			consider(kf.T)
		}
	}
	for _, o := range s.Obstacles {
		consider(o.Appear)
		consider(o.Resolve)
	}
	return latest
}

// sample interpolates kfs at t, dead-reckoning past the last keyframe.
func sample(kfs []Keyframe, t time.Duration) Keyframe {
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0]
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		dt := (t - last.T).Seconds()
		p := geom.ProjectPoint(geom.Pt(last.X, last.Y), last.Heading, last.Speed*dt)
		last.X, last.Y = p.X, p.Y
		last.T = t
		return last
	}
	k0, k1 := kfs[idx-1], kfs[idx]
	alpha := float64(t-k0.T) / float64(k1.T-k0.T)
	return Keyframe{
		T:       t,
		X:       lerp(k0.X, k1.X, alpha),
		Y:       lerp(k0.Y, k1.Y, alpha),
		Heading: lerpAngle(k0.Heading, k1.Heading, alpha),
		Speed:   lerp(k0.Speed, k1.Speed, alpha),
		Depth:   lerp(k0.Depth, k1.Depth, alpha),
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// lerpAngle interpolates headings the short way round.
func lerpAngle(a, b, t float64) float64 {
	return geom.Angle360(a + geom.Angle180(b-a)*t)
}
