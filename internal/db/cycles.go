package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/helm.avoid/internal/helm"
	"github.com/banshee-data/helm.avoid/internal/timeutil"
)

var _ helm.Recorder = (*DB)(nil)
var _ helm.ReportLogger = (*DB)(nil)

// EnsureRun registers a run. Registering an existing run is a no-op.
func (db *DB) EnsureRun(ctx context.Context, runID, label string, started time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (run_id, label, started_at) VALUES (?, ?, ?)`,
		runID, label, timeutil.UnixSeconds(started))
	return err
}

// RecordCycle stores one decision cycle and its per-behavior results in a
// single transaction.
func (db *DB) RecordCycle(ctx context.Context, rec helm.CycleRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (run_id, started_at) VALUES (?, ?)`,
		rec.RunID, timeutil.UnixSeconds(rec.Time)); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	var ox, oy, oh, ospd sql.NullFloat64
	if rec.Ownship != nil {
		ox = sql.NullFloat64{Float64: rec.Ownship.X, Valid: true}
		oy = sql.NullFloat64{Float64: rec.Ownship.Y, Valid: true}
		oh = sql.NullFloat64{Float64: rec.Ownship.Heading, Valid: true}
		ospd = sql.NullFloat64{Float64: rec.Ownship.Speed, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cycles (run_id, cycle, time_unix, own_x, own_y, own_heading, own_speed, duration_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Cycle, timeutil.UnixSeconds(rec.Time), ox, oy, oh, ospd, rec.Duration.Microseconds()); err != nil {
		return fmt.Errorf("failed to insert cycle %d: %w", rec.Cycle, err)
	}

	for _, br := range rec.Behaviors {
		var umin, umax, umean sql.NullFloat64
		var best, warnings, errText sql.NullString
		if br.Best != nil {
			umin = sql.NullFloat64{Float64: br.Summary.Min, Valid: true}
			umax = sql.NullFloat64{Float64: br.Summary.Max, Valid: true}
			umean = sql.NullFloat64{Float64: br.Summary.Mean, Valid: true}
			b, err := json.Marshal(br.Best)
			if err != nil {
				return err
			}
			best = sql.NullString{String: string(b), Valid: true}
		}
		if len(br.Warnings) > 0 {
			b, err := json.Marshal(br.Warnings)
			if err != nil {
				return err
			}
			warnings = sql.NullString{String: string(b), Valid: true}
		}
		if br.Err != "" {
			errText = sql.NullString{String: br.Err, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO behavior_cycles (run_id, cycle, behavior, state, priority, util_min, util_max, util_mean, best_json, warnings, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.Cycle, br.Behavior, string(br.State), br.Priority,
			umin, umax, umean, best, warnings, errText); err != nil {
			return fmt.Errorf("failed to insert %s result: %w", br.Behavior, err)
		}
	}
	return tx.Commit()
}

// RecordReport stores one ingested feed line received at the given time.
func (db *DB) RecordReport(ctx context.Context, runID, kind, line string, received time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO reports (run_id, kind, line, received_at) VALUES (?, ?, ?, ?)`,
		runID, kind, line, timeutil.UnixSeconds(received))
	return err
}

// Run is a stored helm run.
type Run struct {
	RunID   string    `json:"run_id"`
	Label   string    `json:"label"`
	Started time.Time `json:"started"`
	Cycles  int       `json:"cycles"`
}

// Runs lists runs, newest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.run_id, r.label, r.started_at, COUNT(c.cycle)
		FROM runs r LEFT JOIN cycles c ON c.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started float64
		if err := rows.Scan(&r.RunID, &r.Label, &started, &r.Cycles); err != nil {
			return nil, err
		}
		r.Started = timeutil.FromUnixSeconds(started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CyclePoint is one behavior's result in one cycle, joined with own-ship.
type CyclePoint struct {
	Cycle    int       `json:"cycle"`
	Time     time.Time `json:"time"`
	State    string    `json:"state"`
	Priority float64   `json:"priority"`
	Best     []float64 `json:"best,omitempty"`
	OwnX     float64   `json:"own_x"`
	OwnY     float64   `json:"own_y"`
	HasOwn   bool      `json:"has_own"`
	Err      string    `json:"error,omitempty"`
}

// BehaviorSeries returns a behavior's results in cycle order.
func (db *DB) BehaviorSeries(ctx context.Context, runID, behavior string) ([]CyclePoint, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.cycle, c.time_unix, b.state, b.priority, b.best_json, c.own_x, c.own_y, b.error
		FROM behavior_cycles b JOIN cycles c ON c.run_id = b.run_id AND c.cycle = b.cycle
		WHERE b.run_id = ? AND b.behavior = ?
		ORDER BY b.cycle`, runID, behavior)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CyclePoint
	for rows.Next() {
		var p CyclePoint
		var ts float64
		var best, errText sql.NullString
		var ox, oy sql.NullFloat64
		if err := rows.Scan(&p.Cycle, &ts, &p.State, &p.Priority, &best, &ox, &oy, &errText); err != nil {
			return nil, err
		}
		p.Time = timeutil.FromUnixSeconds(ts)
		if best.Valid {
			if err := json.Unmarshal([]byte(best.String), &p.Best); err != nil {
				return nil, fmt.Errorf("cycle %d: bad best_json: %w", p.Cycle, err)
			}
		}
		if ox.Valid && oy.Valid {
			p.OwnX, p.OwnY, p.HasOwn = ox.Float64, oy.Float64, true
		}
		p.Err = errText.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// Encounter summarizes the cycles in which a behavior contributed a
// surface.
type Encounter struct {
	Behavior    string    `json:"behavior"`
	FirstCycle  int       `json:"first_cycle"`
	LastCycle   int       `json:"last_cycle"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Cycles      int       `json:"cycles"`
	MaxPriority float64   `json:"max_priority"`
}

// Encounters returns one summary per behavior that produced any surface in
// the run.
func (db *DB) Encounters(ctx context.Context, runID string) ([]Encounter, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.behavior, MIN(b.cycle), MAX(b.cycle), MIN(c.time_unix), MAX(c.time_unix),
		       COUNT(*), MAX(b.priority)
		FROM behavior_cycles b JOIN cycles c ON c.run_id = b.run_id AND c.cycle = b.cycle
		WHERE b.run_id = ? AND b.best_json IS NOT NULL
		GROUP BY b.behavior
		ORDER BY b.behavior`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Encounter
	for rows.Next() {
		var e Encounter
		var start, end float64
		if err := rows.Scan(&e.Behavior, &e.FirstCycle, &e.LastCycle, &start, &end, &e.Cycles, &e.MaxPriority); err != nil {
			return nil, err
		}
		e.Start, e.End = timeutil.FromUnixSeconds(start), timeutil.FromUnixSeconds(end)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Report is a stored feed line.
type Report struct {
	ID       int64     `json:"id"`
	Kind     string    `json:"kind"`
	Line     string    `json:"line"`
	Received time.Time `json:"received"`
}

// Reports returns the run's feed lines in arrival order, optionally
// limited to one kind.
func (db *DB) Reports(ctx context.Context, runID, kind string) ([]Report, error) {
	query := `SELECT report_id, kind, line, received_at FROM reports WHERE run_id = ?`
	args := []any{runID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY report_id`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		var ts float64
		if err := rows.Scan(&r.ID, &r.Kind, &r.Line, &ts); err != nil {
			return nil, err
		}
		r.Received = timeutil.FromUnixSeconds(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}
