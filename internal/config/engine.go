package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ardoise-data/building.review/internal/building"
	"github.com/ardoise-data/building.review/internal/building/optimize"
)

// EngineConfig is the root configuration for the decision engine and the
// threshold optimizer. All fields are pointers so a partial JSON file
// overrides only what it names; the Get* accessors supply defaults for
// everything else. The schema matches the /api/config endpoint so the
// same JSON serves startup configuration and runtime inspection.
type EngineConfig struct {
	// Candidate clustering params
	CandidateRadius   *float64 `json:"candidate_radius,omitempty"`
	VerticalTolerance *float64 `json:"vertical_tolerance,omitempty"`
	MinGroupPoints    *int     `json:"min_group_points,omitempty"`
	OverlayRelaxMaxCr *float64 `json:"overlay_relax_max_cr,omitempty"`

	// Completion params
	CompletionRadius            *float64 `json:"completion_radius,omitempty"`
	CompletionVerticalTolerance *float64 `json:"completion_vertical_tolerance,omitempty"`
	CompletionMinProbability    *float64 `json:"completion_min_probability,omitempty"`
	CompletionOverlayRelaxation *float64 `json:"completion_overlay_relaxation,omitempty"`

	// Identification params
	IdentifyMissed     *bool `json:"identify_missed,omitempty"`
	IdentifyUseOverlay *bool `json:"identify_use_overlay,omitempty"`

	// Optimizer params
	OptimizerSeed       *int64   `json:"optimizer_seed,omitempty"`
	OptimizerTrials     *int     `json:"optimizer_trials,omitempty"`
	OptimizerWorkers    *int     `json:"optimizer_workers,omitempty"`
	OptimizerSampler    *string  `json:"optimizer_sampler,omitempty"`
	OptimizerTimeBudget *string  `json:"optimizer_time_budget,omitempty"` // duration string like "30m"
	MinAutomation       *float64 `json:"min_automation,omitempty"`
	MinPrecision        *float64 `json:"min_precision,omitempty"`
	MinRecall           *float64 `json:"min_recall,omitempty"`

	// Paths
	RunsDBPath     *string `json:"runs_db_path,omitempty"`
	ThresholdsPath *string `json:"thresholds_path,omitempty"`
	OverlayPath    *string `json:"overlay_path,omitempty"` // GeoJSON footprints
	MigrationsDir  *string `json:"migrations_dir,omitempty"`

	// Server params
	ListenAddr  *string `json:"listen_addr,omitempty"`
	AdminRoutes *bool   `json:"admin_routes,omitempty"`
}

// EmptyEngineConfig returns an EngineConfig with all fields nil, meaning
// every accessor falls back to its default.
func EmptyEngineConfig() *EngineConfig {
	return &EngineConfig{}
}

// LoadEngineConfig loads an EngineConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields
// omitted from the JSON keep their defaults, so partial configs are safe.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyEngineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *EngineConfig) Validate() error {
	if c.CandidateRadius != nil && *c.CandidateRadius <= 0 {
		return fmt.Errorf("candidate_radius must be positive, got %f", *c.CandidateRadius)
	}
	if c.VerticalTolerance != nil && *c.VerticalTolerance < 0 {
		return fmt.Errorf("vertical_tolerance must be non-negative, got %f", *c.VerticalTolerance)
	}
	if c.MinGroupPoints != nil && *c.MinGroupPoints < 1 {
		return fmt.Errorf("min_group_points must be at least 1, got %d", *c.MinGroupPoints)
	}
	if c.OverlayRelaxMaxCr != nil && *c.OverlayRelaxMaxCr <= 0 {
		return fmt.Errorf("overlay_relax_max_cr must be positive, got %f", *c.OverlayRelaxMaxCr)
	}
	if c.CompletionMinProbability != nil {
		if *c.CompletionMinProbability < 0 || *c.CompletionMinProbability > 1 {
			return fmt.Errorf("completion_min_probability must be between 0 and 1, got %f", *c.CompletionMinProbability)
		}
	}
	if c.OptimizerTrials != nil && *c.OptimizerTrials < 0 {
		return fmt.Errorf("optimizer_trials must be non-negative, got %d", *c.OptimizerTrials)
	}
	if c.OptimizerWorkers != nil && *c.OptimizerWorkers < 1 {
		return fmt.Errorf("optimizer_workers must be at least 1, got %d", *c.OptimizerWorkers)
	}
	if c.OptimizerSampler != nil {
		switch *c.OptimizerSampler {
		case "", "uniform", "evolutionary":
		default:
			return fmt.Errorf("unknown optimizer_sampler %q", *c.OptimizerSampler)
		}
	}
	if c.OptimizerTimeBudget != nil && *c.OptimizerTimeBudget != "" {
		if _, err := time.ParseDuration(*c.OptimizerTimeBudget); err != nil {
			return fmt.Errorf("invalid optimizer_time_budget '%s': %w", *c.OptimizerTimeBudget, err)
		}
	}
	for _, floor := range []struct {
		name  string
		value *float64
	}{
		{"min_automation", c.MinAutomation},
		{"min_precision", c.MinPrecision},
		{"min_recall", c.MinRecall},
	} {
		if floor.value != nil && (*floor.value < 0 || *floor.value > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", floor.name, *floor.value)
		}
	}
	return nil
}

// GetPipelineOptions assembles decision pipeline options from the config,
// falling back to the engine defaults for unset fields.
func (c *EngineConfig) GetPipelineOptions() building.Options {
	opts := building.DefaultOptions()
	if c.CandidateRadius != nil {
		opts.CandidatePolicy.Radius = *c.CandidateRadius
	}
	if c.VerticalTolerance != nil {
		opts.CandidatePolicy.VerticalTolerance = *c.VerticalTolerance
	}
	if c.MinGroupPoints != nil {
		opts.MinGroupPoints = *c.MinGroupPoints
	}
	if c.OverlayRelaxMaxCr != nil {
		opts.CrMax = *c.OverlayRelaxMaxCr
	}
	if c.CompletionRadius != nil {
		opts.Completion.Policy.Radius = *c.CompletionRadius
	}
	if c.CompletionVerticalTolerance != nil {
		opts.Completion.Policy.VerticalTolerance = *c.CompletionVerticalTolerance
	}
	if c.CompletionMinProbability != nil {
		opts.Completion.MinProbability = *c.CompletionMinProbability
	}
	if c.CompletionOverlayRelaxation != nil {
		opts.Completion.OverlayRelaxation = *c.CompletionOverlayRelaxation
	}
	if c.IdentifyMissed != nil {
		opts.IdentifyMissed = *c.IdentifyMissed
	}
	if c.IdentifyUseOverlay != nil {
		opts.Identification.UseOverlay = *c.IdentifyUseOverlay
	}
	return opts
}

// GetOptimizerConfig assembles a runner configuration from the config,
// falling back to the optimizer defaults for unset fields.
func (c *EngineConfig) GetOptimizerConfig() optimize.Config {
	cfg := optimize.DefaultConfig()
	if c.OptimizerSeed != nil {
		cfg.Seed = *c.OptimizerSeed
	}
	if c.OptimizerTrials != nil {
		cfg.Trials = *c.OptimizerTrials
	}
	if c.OptimizerWorkers != nil {
		cfg.Workers = *c.OptimizerWorkers
	}
	if c.OptimizerSampler != nil {
		cfg.Sampler = *c.OptimizerSampler
	}
	cfg.TimeBudget = c.GetOptimizerTimeBudget()
	if c.MinAutomation != nil {
		cfg.Constraints.MinAutomation = *c.MinAutomation
	}
	if c.MinPrecision != nil {
		cfg.Constraints.MinPrecision = *c.MinPrecision
	}
	if c.MinRecall != nil {
		cfg.Constraints.MinRecall = *c.MinRecall
	}
	if c.OverlayRelaxMaxCr != nil {
		cfg.CrMax = *c.OverlayRelaxMaxCr
	}
	return cfg
}

// GetOptimizerTimeBudget parses the time budget, zero when unset.
func (c *EngineConfig) GetOptimizerTimeBudget() time.Duration {
	if c.OptimizerTimeBudget == nil || *c.OptimizerTimeBudget == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.OptimizerTimeBudget)
	if err != nil {
		return 0
	}
	return d
}

// GetRunsDBPath returns the runs database path or the default.
func (c *EngineConfig) GetRunsDBPath() string {
	if c.RunsDBPath == nil || *c.RunsDBPath == "" {
		return "runs.db"
	}
	return *c.RunsDBPath
}

// GetThresholdsPath returns the threshold record path or the default.
func (c *EngineConfig) GetThresholdsPath() string {
	if c.ThresholdsPath == nil || *c.ThresholdsPath == "" {
		return "thresholds.json"
	}
	return *c.ThresholdsPath
}

// GetOverlayPath returns the footprint GeoJSON path, empty when unset.
func (c *EngineConfig) GetOverlayPath() string {
	if c.OverlayPath == nil {
		return ""
	}
	return *c.OverlayPath
}

// GetMigrationsDir returns the on-disk migrations dir, empty meaning the
// embedded migrations.
func (c *EngineConfig) GetMigrationsDir() string {
	if c.MigrationsDir == nil {
		return ""
	}
	return *c.MigrationsDir
}

// GetListenAddr returns the HTTP listen address or the default.
func (c *EngineConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080"
	}
	return *c.ListenAddr
}

// GetAdminRoutes reports whether the tailsql/backup admin routes mount.
func (c *EngineConfig) GetAdminRoutes() bool {
	if c.AdminRoutes == nil {
		return false
	}
	return *c.AdminRoutes
}
