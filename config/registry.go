package config

import (
	"fmt"
	"sync"

	"github.com/dcshock/planpipe/pipeline"
)

// Variant describes one selectable solver of a stage.
type Variant struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

type registered struct {
	variant Variant
	script  []string
}

// ScriptRegistry maps stage variants to their log scripts. It implements
// pipeline.ScriptProvider. Safe for concurrent use.
type ScriptRegistry struct {
	mu       sync.RWMutex
	entries  map[pipeline.Stage]map[string]registered
	order    map[pipeline.Stage][]string
	defaults map[pipeline.Stage]string
}

// NewScriptRegistry returns an empty registry.
func NewScriptRegistry() *ScriptRegistry {
	return &ScriptRegistry{
		entries:  make(map[pipeline.Stage]map[string]registered),
		order:    make(map[pipeline.Stage][]string),
		defaults: make(map[pipeline.Stage]string),
	}
}

// Register adds a variant with its script. Overwrites any existing
// registration of the same id but keeps its position in Variants.
func (r *ScriptRegistry) Register(stage pipeline.Stage, v Variant, script []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[pipeline.Stage]map[string]registered)
		r.order = make(map[pipeline.Stage][]string)
		r.defaults = make(map[pipeline.Stage]string)
	}
	byID := r.entries[stage]
	if byID == nil {
		byID = make(map[string]registered)
		r.entries[stage] = byID
	}
	if _, exists := byID[v.ID]; !exists {
		r.order[stage] = append(r.order[stage], v.ID)
	}
	if v.Name == "" {
		v.Name = v.ID
	}
	byID[v.ID] = registered{variant: v, script: append([]string(nil), script...)}
}

// SetDefault marks id as the default variant of stage. The variant must be registered.
func (r *ScriptRegistry) SetDefault(stage pipeline.Stage, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[stage][id]; !ok {
		return fmt.Errorf("stage %s: variant %q not registered", stage, id)
	}
	r.defaults[stage] = id
	return nil
}

// Default returns the default variant of stage: the one set with SetDefault,
// else the first registered. False if the stage has no variants.
func (r *ScriptRegistry) Default(stage pipeline.Stage) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.defaults[stage]; ok {
		return id, true
	}
	if ids := r.order[stage]; len(ids) > 0 {
		return ids[0], true
	}
	return "", false
}

// Defaults returns the default variant of every stage that has one.
func (r *ScriptRegistry) Defaults() map[pipeline.Stage]string {
	out := make(map[pipeline.Stage]string, len(pipeline.Order()))
	for _, s := range pipeline.Order() {
		if id, ok := r.Default(s); ok {
			out[s] = id
		}
	}
	return out
}

// Get returns a copy of the script for the variant, or nil if it is not registered.
func (r *ScriptRegistry) Get(stage pipeline.Stage, variant string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[stage][variant]
	if !ok {
		return nil
	}
	return append([]string(nil), e.script...)
}

// MustGet returns the script for the variant, or panics if it is not registered.
func (r *ScriptRegistry) MustGet(stage pipeline.Stage, variant string) []string {
	if _, ok := r.Lookup(stage, variant); !ok {
		panic(fmt.Sprintf("config: variant %q of stage %s not registered", variant, stage))
	}
	return r.Get(stage, variant)
}

// Lookup returns the variant's metadata.
func (r *ScriptRegistry) Lookup(stage pipeline.Stage, variant string) (Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[stage][variant]
	return e.variant, ok
}

// Variants returns the variants of stage in registration order.
func (r *ScriptRegistry) Variants(stage pipeline.Stage) []Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.order[stage]
	out := make([]Variant, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.entries[stage][id].variant)
	}
	return out
}

var _ pipeline.ScriptProvider = (*ScriptRegistry)(nil)
