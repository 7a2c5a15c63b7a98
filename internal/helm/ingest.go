package helm

import (
	"context"

	"github.com/banshee-data/helm.avoid/internal/monitoring"
	"github.com/banshee-data/helm.avoid/internal/serialmux"
)

// IngestStats counts ingested lines by event type.
type IngestStats map[string]int

// Ingest applies feed lines to the world until lines is closed or ctx is
// done. Malformed lines are logged and skipped.
func (h *Helm) Ingest(ctx context.Context, lines <-chan string) (IngestStats, error) {
	stats := make(IngestStats)
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return stats, nil
			}
			kind, err := h.IngestLine(ctx, line)
			if err != nil {
				stats["error"]++
				monitoring.Logf("helm: ingest: %v", err)
				continue
			}
			stats[kind]++
		}
	}
}

// IngestLine applies a single feed line and returns its event type.
func (h *Helm) IngestLine(ctx context.Context, line string) (string, error) {
	kind, err := serialmux.HandleEvent(h.world, line)
	if err != nil {
		return kind, err
	}
	if h.reports != nil && kind != serialmux.EventTypeUnknown {
		if err := h.reports.RecordReport(ctx, h.runID, kind, line, h.clock.Now()); err != nil {
			monitoring.Logf("helm: report log: %v", err)
		}
	}
	return kind, nil
}
