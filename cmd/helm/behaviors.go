package main

import (
	"fmt"
	"strings"

	"github.com/banshee-data/helm.avoid/internal/behavior"
	"github.com/banshee-data/helm.avoid/internal/config"
	"github.com/banshee-data/helm.avoid/internal/surface"
	"github.com/banshee-data/helm.avoid/internal/timeutil"
	"github.com/banshee-data/helm.avoid/internal/world"
)

// obstacleBehavior is the name of the single obstacle behavior.
const obstacleBehavior = "avd_obstacles"

// parseContacts splits a comma separated contact list, dropping blanks
// and case-insensitive duplicates.
func parseContacts(list string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		key := strings.ToUpper(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// buildBehaviors creates one collision behavior per contact, named
// avd_<contact>, then the obstacle behavior when enabled. Each starts
// from the tuning config.
func buildBehaviors(contacts []string, obstacles bool, domain surface.Domain, tuning *config.TuningConfig) ([]behavior.Behavior, error) {
	var out []behavior.Behavior
	for _, name := range contacts {
		b, err := behavior.NewAvoidCollisionFromTuning("avd_"+strings.ToLower(name), domain, tuning)
		if err != nil {
			return nil, err
		}
		if err := b.SetParam("contact", name); err != nil {
			return nil, fmt.Errorf("contact %s: %w", name, err)
		}
		out = append(out, b)
	}
	if obstacles {
		b, err := behavior.NewAvoidObstacleFromTuning(obstacleBehavior, domain, tuning)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func newWorld(clock timeutil.Clock) *world.Buffer {
	return world.NewBuffer(clock)
}
