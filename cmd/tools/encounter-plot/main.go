// Command encounter-plot replays a scenario (or reads a recorded run) and
// writes charts of each encounter: behavior priority per cycle, own-ship's
// track, and a heatmap of every behavior's last utility surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/helm.avoid/internal/config"
	"github.com/banshee-data/helm.avoid/internal/db"
	"github.com/banshee-data/helm.avoid/internal/helm"
	"github.com/banshee-data/helm.avoid/internal/monitor"
	"github.com/banshee-data/helm.avoid/internal/monitoring"
	"github.com/banshee-data/helm.avoid/internal/scenario"
	"github.com/banshee-data/helm.avoid/internal/security"
	"github.com/banshee-data/helm.avoid/internal/timeutil"
	"github.com/banshee-data/helm.avoid/internal/units"
	"github.com/banshee-data/helm.avoid/internal/world"
)

// Config holds the tool's settings.
type Config struct {
	ScenarioPath string
	ConfigPath   string
	DBPath       string
	RunID        string
	OutputDir    string
	SpeedUnits   string
}

// Summary is written to summary.json.
type Summary struct {
	RunID      string         `json:"run_id"`
	Cycles     int            `json:"cycles"`
	Encounters []db.Encounter `json:"encounters"`
	Files      []string       `json:"files"`
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.ScenarioPath, "scenario", "", "YAML scenario to replay")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Tuning config JSON (built-in defaults when empty)")
	flag.StringVar(&cfg.DBPath, "db", "", "SQLite database; a temporary one when empty")
	flag.StringVar(&cfg.RunID, "run", "", "Plot this recorded run instead of replaying")
	flag.StringVar(&cfg.OutputDir, "out", "encounter-plots", "Output directory")
	flag.StringVar(&cfg.SpeedUnits, "speed-units", units.Knots, "Speed units for the printed summary: "+units.GetValidUnitsString())
	quiet := flag.Bool("quiet", false, "Mute helm logging during replay")
	flag.Parse()

	if *quiet {
		monitoring.SetLogger(nil)
	}
	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.ScenarioPath == "" && cfg.RunID == "" {
		return errors.New("one of --scenario or --run is required")
	}
	if cfg.RunID != "" && cfg.DBPath == "" {
		return errors.New("--run needs --db")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.OutputDir, "encounter.db")
	}

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	var store *monitor.SurfaceStore
	runID := cfg.RunID
	if cfg.ScenarioPath != "" {
		store = monitor.NewSurfaceStore()
		if runID, err = replay(ctx, cfg, database, store); err != nil {
			return err
		}
	}

	encounters, err := database.Encounters(ctx, runID)
	if err != nil {
		return err
	}
	summary := Summary{RunID: runID, Encounters: encounters}

	order := make([]string, 0, len(encounters))
	series := make(map[string][]db.CyclePoint, len(encounters))
	for _, e := range encounters {
		points, err := database.BehaviorSeries(ctx, runID, e.Behavior)
		if err != nil {
			return err
		}
		order = append(order, e.Behavior)
		series[e.Behavior] = points
		if len(points) > summary.Cycles {
			summary.Cycles = len(points)
		}
		fmt.Fprintf(out, "%-16s cycles %d-%d  max priority %5.1f  %s\n",
			e.Behavior, e.FirstCycle, e.LastCycle, e.MaxPriority, bestSpeed(points, cfg.SpeedUnits))
	}
	if len(order) == 0 {
		fmt.Fprintln(out, "no encounters recorded")
		return writeSummary(cfg.OutputDir, summary)
	}

	files, err := monitor.PlotEncounters(cfg.OutputDir, order, series)
	if err != nil {
		return err
	}
	summary.Files = append(summary.Files, files...)

	if store != nil {
		for _, name := range store.Behaviors() {
			path, err := writeHeatmap(cfg.OutputDir, name, store)
			if err != nil {
				return err
			}
			summary.Files = append(summary.Files, path)
		}
	}
	return writeSummary(cfg.OutputDir, summary)
}

// replay runs the scenario on a mock clock and records it to database.
func replay(ctx context.Context, cfg Config, database *db.DB, store *monitor.SurfaceStore) (string, error) {
	sc, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		return "", err
	}
	tuning := config.DefaultTuningConfig()
	if cfg.ConfigPath != "" {
		if tuning, err = config.LoadTuningConfig(cfg.ConfigPath); err != nil {
			return "", err
		}
	}
	domain, err := sc.Domain()
	if err != nil {
		return "", err
	}
	behaviors, err := sc.Behaviors(domain, tuning)
	if err != nil {
		return "", err
	}

	clock := timeutil.NewMockClock(time.Now().UTC().Truncate(time.Second))
	h := helm.New(world.NewBuffer(clock), behaviors, helm.Options{
		Clock:     clock,
		Poster:    helm.LogPoster{},
		Recorders: []helm.Recorder{database, store},
		Reports:   database,
	})
	if err := database.EnsureRun(ctx, h.RunID(), filepath.Base(cfg.ScenarioPath), clock.Now()); err != nil {
		return "", err
	}
	if _, err := scenario.Replay(ctx, sc, h, clock); err != nil {
		return "", err
	}
	return h.RunID(), nil
}

func bestSpeed(points []db.CyclePoint, unit string) string {
	for i := len(points) - 1; i >= 0; i-- {
		if best := points[i].Best; len(best) >= 2 {
			return fmt.Sprintf("last best %03.0f @ %s", best[0], units.FormatSpeed(best[1], unit))
		}
	}
	return "no surface"
}

func writeHeatmap(dir, behavior string, store *monitor.SurfaceStore) (string, error) {
	latest, ok := store.Surface(behavior)
	if !ok {
		return "", fmt.Errorf("no surface for %s", behavior)
	}
	title := fmt.Sprintf("%s cycle %d", behavior, latest.Cycle)
	hm, err := monitor.SurfaceHeatmap(title, latest.Surface, latest.Priority)
	if err != nil {
		return "", err
	}
	path, err := security.OutputPath(dir, behavior, "_surface.html")
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := hm.Render(f); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", path, err)
	}
	return path, nil
}

func writeSummary(dir string, s Summary) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "summary.json"), b, 0o644)
}
