package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical evaluation defaults file.
const DefaultConfigPath = "config/eval.defaults.json"

// Built-in defaults used when a field is omitted.
const (
	DefaultAnnotationDir    = "test/anotacao/"
	DefaultLegacyOutputDir  = "test/output_longaxis_old/"
	DefaultCurrentOutputDir = "test/output_longaxis_standard/"
	DefaultThreshold        = 0.1
	DefaultIterations       = 1000
	DefaultSampleFraction   = 0.7
	DefaultWorkers          = 1
	DefaultOnError          = "abort"
	DefaultPlotDir          = "plots"
	DefaultMaxDuration      = 30 * time.Minute
)

// EvalConfig holds the settings for an evaluation run. Every field is
// optional; the Get* accessors fall back to the built-in defaults.
type EvalConfig struct {
	// Dataset locations
	AnnotationDir    *string `json:"annotation_dir,omitempty"`
	LegacyOutputDir  *string `json:"legacy_output_dir,omitempty"`
	CurrentOutputDir *string `json:"current_output_dir,omitempty"`
	LegacySync       *bool   `json:"legacy_sync,omitempty"` // positional pairing with truncation

	// Scoring
	Threshold *float64 `json:"threshold,omitempty"`

	// Resampling
	Iterations     *int     `json:"iterations,omitempty"`
	SampleFraction *float64 `json:"sample_fraction,omitempty"`
	Seed           *uint64  `json:"seed,omitempty"` // 0 picks a time-based seed
	Workers        *int     `json:"workers,omitempty"`
	OnError        *string  `json:"on_error,omitempty"`
	MaxDuration    *string  `json:"max_duration,omitempty"` // duration string like "10m"

	// Output
	PlotDir  *string `json:"plot_dir,omitempty"`
	HTMLPath *string `json:"html_path,omitempty"`
	DBPath   *string `json:"db_path,omitempty"` // empty disables the run store
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// LoadEvalConfig loads an EvalConfig from a JSON file. The file must have a
// .json extension and be under 1MB. Omitted fields keep their defaults.
func LoadEvalConfig(path string) (*EvalConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

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

	cfg := &EvalConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upward from the
// working directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *EvalConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/dental-eval/ and deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadEvalConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *EvalConfig) Validate() error {
	if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 1) {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", *c.Threshold)
	}
	if c.Iterations != nil && *c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", *c.Iterations)
	}
	if c.SampleFraction != nil && (*c.SampleFraction <= 0 || *c.SampleFraction > 1) {
		return fmt.Errorf("sample_fraction must be in (0, 1], got %f", *c.SampleFraction)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.OnError != nil {
		switch strings.ToLower(*c.OnError) {
		case "abort", "skip":
		default:
			return fmt.Errorf("on_error must be \"abort\" or \"skip\", got %q", *c.OnError)
		}
	}
	if c.MaxDuration != nil && *c.MaxDuration != "" {
		if _, err := time.ParseDuration(*c.MaxDuration); err != nil {
			return fmt.Errorf("invalid max_duration '%s': %w", *c.MaxDuration, err)
		}
	}
	return nil
}

// GetAnnotationDir returns the annotation directory or the default.
func (c *EvalConfig) GetAnnotationDir() string {
	if c.AnnotationDir == nil || *c.AnnotationDir == "" {
		return DefaultAnnotationDir
	}
	return *c.AnnotationDir
}

// GetLegacyOutputDir returns the threshold model's output directory or the default.
func (c *EvalConfig) GetLegacyOutputDir() string {
	if c.LegacyOutputDir == nil || *c.LegacyOutputDir == "" {
		return DefaultLegacyOutputDir
	}
	return *c.LegacyOutputDir
}

// GetCurrentOutputDir returns the presence model's output directory or the default.
func (c *EvalConfig) GetCurrentOutputDir() string {
	if c.CurrentOutputDir == nil || *c.CurrentOutputDir == "" {
		return DefaultCurrentOutputDir
	}
	return *c.CurrentOutputDir
}

// GetLegacySync reports whether positional pairing is enabled.
func (c *EvalConfig) GetLegacySync() bool {
	if c.LegacySync == nil {
		return false
	}
	return *c.LegacySync
}

// GetThreshold returns the score threshold or the default.
func (c *EvalConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

// GetIterations returns the resampling iteration count or the default.
func (c *EvalConfig) GetIterations() int {
	if c.Iterations == nil {
		return DefaultIterations
	}
	return *c.Iterations
}

// GetSampleFraction returns the resampling fraction or the default.
func (c *EvalConfig) GetSampleFraction() float64 {
	if c.SampleFraction == nil {
		return DefaultSampleFraction
	}
	return *c.SampleFraction
}

// GetSeed returns the configured seed, or one derived from now when unset
// or zero.
func (c *EvalConfig) GetSeed(now time.Time) uint64 {
	if c.Seed == nil || *c.Seed == 0 {
		return uint64(now.UnixNano())
	}
	return *c.Seed
}

// GetWorkers returns the resampling worker count or the default.
func (c *EvalConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetOnError returns the iteration failure mode or the default.
func (c *EvalConfig) GetOnError() string {
	if c.OnError == nil || *c.OnError == "" {
		return DefaultOnError
	}
	return strings.ToLower(*c.OnError)
}

// GetMaxDuration parses and returns MaxDuration as a time.Duration.
func (c *EvalConfig) GetMaxDuration() time.Duration {
	if c.MaxDuration == nil || *c.MaxDuration == "" {
		return DefaultMaxDuration
	}
	d, err := time.ParseDuration(*c.MaxDuration)
	if err != nil {
		return DefaultMaxDuration
	}
	return d
}

// GetPlotDir returns the chart output directory or the default.
func (c *EvalConfig) GetPlotDir() string {
	if c.PlotDir == nil || *c.PlotDir == "" {
		return DefaultPlotDir
	}
	return *c.PlotDir
}

// GetHTMLPath returns the HTML report path. Empty disables the report.
func (c *EvalConfig) GetHTMLPath() string {
	if c.HTMLPath == nil {
		return ""
	}
	return *c.HTMLPath
}

// GetDBPath returns the run store path. Empty disables the store.
func (c *EvalConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}
