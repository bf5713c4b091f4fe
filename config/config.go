package config

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/dcshock/planpipe/pipeline"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config is the root structure of a planpipe configuration file.
type Config struct {
	// InitialStatus is the status every stage starts in and returns to on
	// reset: "complete" (default) or "idle".
	InitialStatus string `yaml:"initial_status"`

	// SyncPolicy: "single-hop" (default) | "cascade".
	SyncPolicy string `yaml:"sync_policy"`

	// ActivityRetention caps the activity history. Zero means the pipeline default.
	ActivityRetention int `yaml:"activity_retention"`

	Delay       DelayConfig `yaml:"delay"`
	RunAllPause Duration    `yaml:"run_all_pause"`

	// Stages maps a stage id (dp, mp, fp, tp) to its variant catalog.
	Stages map[string]StageConfig `yaml:"stages"`
}

// DelayConfig bounds the random pause between two streamed log lines.
type DelayConfig struct {
	Min Duration `yaml:"min"`
	Max Duration `yaml:"max"`
}

// Range returns the delay as a pipeline.DelayRange.
func (d DelayConfig) Range() pipeline.DelayRange {
	return pipeline.DelayRange{Min: d.Min.Duration(), Max: d.Max.Duration()}
}

// StageConfig declares the selectable variants of one stage.
type StageConfig struct {
	// Default is the variant selected initially. Empty means the first variant.
	Default  string          `yaml:"default"`
	Variants []VariantConfig `yaml:"variants"`
}

// VariantConfig is a single solver variant. In YAML, a variant is either a
// plain id or a mapping:
//
//	- prophet
//	- id: arima
//	  name: ARIMA
//	  script: ["[INFO] Fitting model"]
type VariantConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Script      []string `yaml:"script,omitempty"`
}

// UnmarshalYAML allows a variant to be a string (id only) or a struct.
func (v *VariantConfig) UnmarshalYAML(value *yaml.Node) error {
	var idOnly string
	if err := value.Decode(&idOnly); err == nil {
		v.ID = idOnly
		return nil
	}
	type raw VariantConfig
	return value.Decode((*raw)(v))
}

// Duration is a time.Duration that unmarshals from YAML strings (e.g. "200ms", "1s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration back in its string form.
func (d Duration) MarshalYAML() (any, error) { return d.Duration().String(), nil }

// Duration returns the standard time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Parse parses YAML bytes into a Config. Nothing is filled in from the defaults
// and nothing is validated; see Load and Overlay for that.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the embedded default configuration: every stage with its
// reference variant catalog and log scripts. Each call returns a fresh copy.
func Default() *Config {
	cfg, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Overlay decodes data on top of base and validates the result. Top-level keys
// in data replace those of base; a stage listed in data replaces base's entry
// for that stage as a whole, whatever case either key is written in. base is
// modified and returned.
func Overlay(base *Config, data []byte) (*Config, error) {
	if base == nil {
		base = &Config{}
	}
	stages := base.Stages
	base.Stages = nil
	err := yaml.Unmarshal(data, base)
	base.Stages = mergeStages(stages, base.Stages)
	if err != nil {
		return nil, err
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	return base, nil
}

// mergeStages returns base with the entries of over laid on top. Base entries
// for a stage that over names are dropped. Keys of over are kept as written, so
// a stage named twice in over, or a key naming no stage, still fails Validate.
func mergeStages(base, over map[string]StageConfig) map[string]StageConfig {
	if len(over) == 0 {
		return base
	}
	named := make(map[pipeline.Stage]bool, len(over))
	for key := range over {
		if stage, err := pipeline.ParseStage(key); err == nil {
			named[stage] = true
		}
	}
	merged := make(map[string]StageConfig, len(base)+len(over))
	for key, sc := range base {
		if stage, err := pipeline.ParseStage(key); err == nil && named[stage] {
			continue
		}
		merged[key] = sc
	}
	maps.Copy(merged, over)
	return merged
}

// Load reads the file at path and overlays it on the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	cfg, err := Overlay(Default(), data)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// StartIdle reports whether InitialStatus selects Idle.
func (c *Config) StartIdle() (bool, error) {
	if c.InitialStatus == "" {
		return false, nil
	}
	st, err := pipeline.ParseStatus(c.InitialStatus)
	if err != nil {
		return false, fmt.Errorf("initial_status: %w", err)
	}
	switch st {
	case pipeline.Idle:
		return true, nil
	case pipeline.Complete:
		return false, nil
	default:
		return false, fmt.Errorf("initial_status: %q is not allowed (use \"idle\" or \"complete\")", c.InitialStatus)
	}
}

// Stage returns the entry for stage, whatever case its key was written in.
func (c *Config) Stage(stage pipeline.Stage) (StageConfig, bool) {
	for key, sc := range c.Stages {
		if s, err := pipeline.ParseStage(key); err == nil && s == stage {
			return sc, true
		}
	}
	return StageConfig{}, false
}

// Validate checks the whole configuration and returns the first problem found,
// prefixed with its key path.
func (c *Config) Validate() error {
	if _, err := c.StartIdle(); err != nil {
		return err
	}
	if _, err := pipeline.ParseSyncPolicy(c.SyncPolicy); err != nil {
		return fmt.Errorf("sync_policy: %w", err)
	}
	if c.ActivityRetention < 0 {
		return fmt.Errorf("activity_retention: must not be negative, got %d", c.ActivityRetention)
	}
	if c.Delay.Min < 0 || c.Delay.Max < 0 {
		return fmt.Errorf("delay: bounds must not be negative")
	}
	if c.Delay.Max < c.Delay.Min {
		return fmt.Errorf("delay: max %s is below min %s", c.Delay.Max.Duration(), c.Delay.Min.Duration())
	}
	if c.RunAllPause < 0 {
		return fmt.Errorf("run_all_pause: must not be negative")
	}
	seen := make(map[pipeline.Stage]string, len(c.Stages))
	for _, key := range slices.Sorted(maps.Keys(c.Stages)) {
		stage, err := pipeline.ParseStage(key)
		if err != nil {
			return fmt.Errorf("stages: %w", err)
		}
		if prev, dup := seen[stage]; dup {
			return fmt.Errorf("stages: %q and %q name the same stage", prev, key)
		}
		seen[stage] = key
		if err := c.Stages[key].validate(); err != nil {
			return fmt.Errorf("stage %q %w", key, err)
		}
	}
	return nil
}

func (sc StageConfig) validate() error {
	ids := make(map[string]bool, len(sc.Variants))
	for i, v := range sc.Variants {
		if v.ID == "" {
			return fmt.Errorf("variant %d: id required", i)
		}
		if ids[v.ID] {
			return fmt.Errorf("variant %d: duplicate id %q", i, v.ID)
		}
		ids[v.ID] = true
	}
	if sc.Default != "" && !ids[sc.Default] {
		return fmt.Errorf("default: variant %q is not declared", sc.Default)
	}
	return nil
}
