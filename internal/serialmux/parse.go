package serialmux

import (
	"strings"

	"github.com/banshee-data/helm.avoid/internal/contact"
)

const (
	EventTypeNodeReport       = "node_report"
	EventTypeOwnship          = "ownship"
	EventTypeObstacle         = "obstacle"
	EventTypeObstacleResolved = "obstacle_resolved"
	EventTypeStatus           = "status"
	EventTypeUnknown          = "unknown"
)

// Line prefixes on the report feed.
const (
	obstaclePrefix = "OBSTACLE="
	resolvedPrefix = "OBSTACLE_RESOLVED="
	navPrefix      = "NAV_"
)

// ClassifyPayload returns the event type of one feed line.
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	up := strings.ToUpper(p)
	switch {
	case contact.IsNodeReport(p):
		return EventTypeNodeReport
	case strings.HasPrefix(up, resolvedPrefix):
		return EventTypeObstacleResolved
	case strings.HasPrefix(up, obstaclePrefix), strings.HasPrefix(up, "PTS={"):
		return EventTypeObstacle
	case strings.HasPrefix(up, navPrefix):
		return EventTypeOwnship
	case strings.HasPrefix(p, "{"):
		return EventTypeStatus
	}
	return EventTypeUnknown
}
