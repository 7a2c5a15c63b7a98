package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the helm and its
// avoidance behaviors. Option names inside each section match the
// behavior SetParam names so the same JSON keys work for startup
// configuration and runtime updates.
type TuningConfig struct {
	// Helm params
	CyclePeriod *string `json:"cycle_period,omitempty"` // duration string like "250ms"
	StaleAfter  *string `json:"stale_after,omitempty"`  // world entries older than this are ignored

	Collision *CollisionTuning `json:"collision,omitempty"`
	Obstacle  *ObstacleTuning  `json:"obstacle,omitempty"`
}

// CollisionTuning configures the contact collision-avoidance behavior.
type CollisionTuning struct {
	Contact        *string  `json:"contact,omitempty"` // contact name, e.g. "alpha"
	PwtInnerDist   *float64 `json:"pwt_inner_dist,omitempty"`
	PwtOuterDist   *float64 `json:"pwt_outer_dist,omitempty"`
	CompletedDist  *float64 `json:"completed_dist,omitempty"`
	MinUtilCPADist *float64 `json:"min_util_cpa_dist,omitempty"`
	MaxUtilCPADist *float64 `json:"max_util_cpa_dist,omitempty"`
	PwtGrade       *string  `json:"pwt_grade,omitempty"` // linear, quadratic or quasi
	TimeOnLeg      *float64 `json:"time_on_leg,omitempty"`
	CollisionDepth *float64 `json:"collision_depth,omitempty"` // unset: no depth stratification
	Extrapolate    *bool    `json:"extrapolate,omitempty"`
	Decay          *string  `json:"decay,omitempty"` // "start,end" seconds
	Priority       *float64 `json:"priority,omitempty"`
}

// ObstacleTuning configures the obstacle-avoidance behavior.
type ObstacleTuning struct {
	PwtInnerDist   *float64 `json:"pwt_inner_dist,omitempty"`
	PwtOuterDist   *float64 `json:"pwt_outer_dist,omitempty"`
	CompletedDist  *float64 `json:"completed_dist,omitempty"`
	PwtGrade       *string  `json:"pwt_grade,omitempty"`
	BufferDist     *float64 `json:"buffer_dist,omitempty"`
	ActivationDist *float64 `json:"activation_dist,omitempty"`
	AllowableTTC   *float64 `json:"allowable_ttc,omitempty"`
	Priority       *float64 `json:"priority,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a fully populated config holding the
// built-in defaults. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		CyclePeriod: ptrString("250ms"),
		StaleAfter:  ptrString("60s"),
		Collision: &CollisionTuning{
			PwtInnerDist:   ptrFloat64(50),
			PwtOuterDist:   ptrFloat64(200),
			CompletedDist:  ptrFloat64(500),
			MinUtilCPADist: ptrFloat64(10),
			MaxUtilCPADist: ptrFloat64(75),
			PwtGrade:       ptrString("quasi"),
			TimeOnLeg:      ptrFloat64(120),
			Extrapolate:    ptrBool(true),
			Decay:          ptrString("15,30"),
			Priority:       ptrFloat64(100),
		},
		Obstacle: &ObstacleTuning{
			PwtInnerDist:   ptrFloat64(20),
			PwtOuterDist:   ptrFloat64(30),
			CompletedDist:  ptrFloat64(75),
			PwtGrade:       ptrString("linear"),
			BufferDist:     ptrFloat64(10),
			ActivationDist: ptrFloat64(200),
			AllowableTTC:   ptrFloat64(20),
			Priority:       ptrFloat64(100),
		},
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from cmd/tools/encounter-plot/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	for name, v := range map[string]*string{"cycle_period": c.CyclePeriod, "stale_after": c.StaleAfter} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return &Error{Param: name, Reason: fmt.Sprintf("invalid duration %q", *v), Err: err}
		}
		if d <= 0 {
			return &Error{Param: name, Reason: "must be positive"}
		}
	}
	if err := c.Collision.Validate(); err != nil {
		return fmt.Errorf("collision: %w", err)
	}
	if err := c.Obstacle.Validate(); err != nil {
		return fmt.Errorf("obstacle: %w", err)
	}
	return nil
}

// GetCyclePeriod parses and returns the CyclePeriod as a time.Duration.
func (c *TuningConfig) GetCyclePeriod() time.Duration {
	return parseDurationOr(c.CyclePeriod, 250*time.Millisecond)
}

// GetStaleAfter parses and returns the StaleAfter as a time.Duration.
func (c *TuningConfig) GetStaleAfter() time.Duration {
	return parseDurationOr(c.StaleAfter, 60*time.Second)
}

// GetCollision returns the collision section, never nil.
func (c *TuningConfig) GetCollision() *CollisionTuning {
	if c.Collision == nil {
		return &CollisionTuning{}
	}
	return c.Collision
}

// GetObstacle returns the obstacle section, never nil.
func (c *TuningConfig) GetObstacle() *ObstacleTuning {
	if c.Obstacle == nil {
		return &ObstacleTuning{}
	}
	return c.Obstacle
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// ParseDecay parses a "start,end" decay window in seconds. Both values
// must be non-negative and start must not exceed end.
func ParseDecay(s string) (start, end float64, err error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, &Error{Param: "decay", Reason: fmt.Sprintf("expected \"start,end\", got %q", s)}
	}
	start, err = strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, &Error{Param: "decay", Reason: "invalid start", Err: err}
	}
	end, err = strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, &Error{Param: "decay", Reason: "invalid end", Err: err}
	}
	if start < 0 || end < 0 {
		return 0, 0, &Error{Param: "decay", Reason: "must be non-negative"}
	}
	if start > end {
		return 0, 0, &Error{Param: "decay", Reason: fmt.Sprintf("start %g exceeds end %g", start, end)}
	}
	return start, end, nil
}

func validGrade(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "quadratic", "quasi", "quasi-linear", "quasilinear":
		return true
	}
	return false
}

func checkNonNegative(name string, v *float64) error {
	if v != nil && *v < 0 {
		return &Error{Param: name, Reason: fmt.Sprintf("must be non-negative, got %g", *v)}
	}
	return nil
}

func checkPositive(name string, v *float64) error {
	if v != nil && *v <= 0 {
		return &Error{Param: name, Reason: fmt.Sprintf("must be positive, got %g", *v)}
	}
	return nil
}

// Validate checks the collision section. A nil section is valid.
func (c *CollisionTuning) Validate() error {
	if c == nil {
		return nil
	}
	for _, chk := range []error{
		checkNonNegative("pwt_inner_dist", c.PwtInnerDist),
		checkNonNegative("pwt_outer_dist", c.PwtOuterDist),
		checkNonNegative("completed_dist", c.CompletedDist),
		checkNonNegative("min_util_cpa_dist", c.MinUtilCPADist),
		checkNonNegative("max_util_cpa_dist", c.MaxUtilCPADist),
		checkPositive("time_on_leg", c.TimeOnLeg),
		checkNonNegative("collision_depth", c.CollisionDepth),
		checkNonNegative("priority", c.Priority),
	} {
		if chk != nil {
			return chk
		}
	}
	if c.MinUtilCPADist != nil && c.MaxUtilCPADist != nil && *c.MinUtilCPADist > *c.MaxUtilCPADist {
		return &Error{Param: "min_util_cpa_dist", Reason: fmt.Sprintf("%g exceeds max_util_cpa_dist %g", *c.MinUtilCPADist, *c.MaxUtilCPADist)}
	}
	if c.PwtGrade != nil && !validGrade(*c.PwtGrade) {
		return &Error{Param: "pwt_grade", Reason: fmt.Sprintf("unknown grade %q", *c.PwtGrade)}
	}
	if c.Decay != nil {
		if _, _, err := ParseDecay(*c.Decay); err != nil {
			return err
		}
	}
	return nil
}

// GetContact returns the configured contact name, or "" when unset.
func (c *CollisionTuning) GetContact() string { return stringOr(c.Contact, "") }

// GetPwtInnerDist returns the pwt_inner_dist value or the default.
func (c *CollisionTuning) GetPwtInnerDist() float64 { return floatOr(c.PwtInnerDist, 50) }

// GetPwtOuterDist returns the pwt_outer_dist value or the default.
func (c *CollisionTuning) GetPwtOuterDist() float64 { return floatOr(c.PwtOuterDist, 200) }

// GetCompletedDist returns the completed_dist value or the default.
func (c *CollisionTuning) GetCompletedDist() float64 { return floatOr(c.CompletedDist, 500) }

// GetMinUtilCPADist returns the min_util_cpa_dist value or the default.
func (c *CollisionTuning) GetMinUtilCPADist() float64 { return floatOr(c.MinUtilCPADist, 10) }

// GetMaxUtilCPADist returns the max_util_cpa_dist value or the default.
func (c *CollisionTuning) GetMaxUtilCPADist() float64 { return floatOr(c.MaxUtilCPADist, 75) }

// GetPwtGrade returns the pwt_grade value or the default.
func (c *CollisionTuning) GetPwtGrade() string { return stringOr(c.PwtGrade, "quasi") }

// GetTimeOnLeg returns the time_on_leg value (seconds) or the default.
func (c *CollisionTuning) GetTimeOnLeg() float64 { return floatOr(c.TimeOnLeg, 120) }

// GetCollisionDepth returns the collision depth and whether one is set.
func (c *CollisionTuning) GetCollisionDepth() (float64, bool) {
	if c.CollisionDepth == nil {
		return 0, false
	}
	return *c.CollisionDepth, true
}

// GetExtrapolate returns the extrapolate value or the default.
func (c *CollisionTuning) GetExtrapolate() bool {
	if c.Extrapolate == nil {
		return true // default
	}
	return *c.Extrapolate
}

// GetDecay returns the decay window or the default 15,30.
func (c *CollisionTuning) GetDecay() (start, end float64) {
	if c.Decay == nil {
		return 15, 30
	}
	start, end, err := ParseDecay(*c.Decay)
	if err != nil {
		return 15, 30 // default on parse error
	}
	return start, end
}

// GetPriority returns the priority weight or the default.
func (c *CollisionTuning) GetPriority() float64 { return floatOr(c.Priority, 100) }

// Validate checks the obstacle section. A nil section is valid.
func (o *ObstacleTuning) Validate() error {
	if o == nil {
		return nil
	}
	for _, chk := range []error{
		checkNonNegative("pwt_inner_dist", o.PwtInnerDist),
		checkNonNegative("pwt_outer_dist", o.PwtOuterDist),
		checkNonNegative("completed_dist", o.CompletedDist),
		checkNonNegative("buffer_dist", o.BufferDist),
		checkPositive("activation_dist", o.ActivationDist),
		checkPositive("allowable_ttc", o.AllowableTTC),
		checkNonNegative("priority", o.Priority),
	} {
		if chk != nil {
			return chk
		}
	}
	if o.PwtGrade != nil && !validGrade(*o.PwtGrade) {
		return &Error{Param: "pwt_grade", Reason: fmt.Sprintf("unknown grade %q", *o.PwtGrade)}
	}
	return nil
}

// GetPwtInnerDist returns the pwt_inner_dist value or the default.
func (o *ObstacleTuning) GetPwtInnerDist() float64 { return floatOr(o.PwtInnerDist, 20) }

// GetPwtOuterDist returns the pwt_outer_dist value or the default.
func (o *ObstacleTuning) GetPwtOuterDist() float64 { return floatOr(o.PwtOuterDist, 30) }

// GetCompletedDist returns the completed_dist value or the default.
func (o *ObstacleTuning) GetCompletedDist() float64 { return floatOr(o.CompletedDist, 75) }

// GetPwtGrade returns the pwt_grade value or the default.
func (o *ObstacleTuning) GetPwtGrade() string { return stringOr(o.PwtGrade, "linear") }

// GetBufferDist returns the buffer_dist value or the default.
func (o *ObstacleTuning) GetBufferDist() float64 { return floatOr(o.BufferDist, 10) }

// GetActivationDist returns the activation_dist value or the default.
func (o *ObstacleTuning) GetActivationDist() float64 { return floatOr(o.ActivationDist, 200) }

// GetAllowableTTC returns the allowable_ttc value (seconds) or the default.
func (o *ObstacleTuning) GetAllowableTTC() float64 { return floatOr(o.AllowableTTC, 20) }

// GetPriority returns the priority weight or the default.
func (o *ObstacleTuning) GetPriority() float64 { return floatOr(o.Priority, 100) }
