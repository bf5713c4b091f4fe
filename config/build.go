package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dcshock/planpipe/pipeline"
)

// BuildOptions carries what a config file cannot express: collaborators and
// command-line overrides.
type BuildOptions struct {
	Outputs  pipeline.OutputStore
	Observer pipeline.Observer
	Logger   *slog.Logger

	// Variants overrides the configured default variant per stage. Each id must
	// be declared for its stage.
	Variants map[pipeline.Stage]string

	// Delay, if set, replaces the configured delay (e.g. for fast runs).
	Delay *pipeline.DelayRange

	// StartIdle forces every stage to start Idle regardless of initial_status.
	StartIdle bool

	Clock func() time.Time
}

// BuildRegistry registers every variant declared in cfg and its default.
func BuildRegistry(cfg *Config) (*ScriptRegistry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	reg := NewScriptRegistry()
	for _, stage := range pipeline.Order() {
		sc, ok := cfg.Stage(stage)
		if !ok {
			continue
		}
		for i, v := range sc.Variants {
			if v.ID == "" {
				return nil, fmt.Errorf("stage %q variant %d: id required", stage, i)
			}
			reg.Register(stage, Variant{ID: v.ID, Name: v.Name, Description: v.Description}, v.Script)
		}
		if sc.Default != "" {
			if err := reg.SetDefault(stage, sc.Default); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

// Options translates cfg into pipeline.Options using reg as the script source.
func Options(reg *ScriptRegistry, cfg *Config, opts *BuildOptions) (pipeline.Options, error) {
	if cfg == nil {
		return pipeline.Options{}, fmt.Errorf("config is nil")
	}
	if reg == nil {
		return pipeline.Options{}, fmt.Errorf("registry is nil")
	}
	if opts == nil {
		opts = &BuildOptions{}
	}
	startIdle, err := cfg.StartIdle()
	if err != nil {
		return pipeline.Options{}, err
	}
	policy, err := pipeline.ParseSyncPolicy(cfg.SyncPolicy)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("sync_policy: %w", err)
	}
	variants := reg.Defaults()
	for stage, id := range opts.Variants {
		if _, ok := reg.Lookup(stage, id); !ok {
			return pipeline.Options{}, fmt.Errorf("stage %s: variant %q not declared", stage, id)
		}
		variants[stage] = id
	}
	delay := cfg.Delay.Range()
	if opts.Delay != nil {
		delay = *opts.Delay
	}
	return pipeline.Options{
		Scripts:           reg,
		Outputs:           opts.Outputs,
		Observer:          opts.Observer,
		Logger:            opts.Logger,
		StartIdle:         startIdle || opts.StartIdle,
		Variants:          variants,
		Delay:             delay,
		SyncPolicy:        policy,
		ActivityRetention: cfg.ActivityRetention,
		RunAllPause:       cfg.RunAllPause.Duration(),
		Clock:             opts.Clock,
	}, nil
}

// Build builds an Orchestrator from cfg. If reg is nil it is built from cfg
// with BuildRegistry.
func Build(reg *ScriptRegistry, cfg *Config, opts *BuildOptions) (*pipeline.Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		var err error
		if reg, err = BuildRegistry(cfg); err != nil {
			return nil, err
		}
	}
	po, err := Options(reg, cfg, opts)
	if err != nil {
		return nil, err
	}
	return pipeline.New(po), nil
}
