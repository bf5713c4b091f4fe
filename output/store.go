// Package output holds the result payload and KPI summary of each planning
// stage. The pipeline never computes results; a Store only serves them, so
// what a stage shows after a run is whatever was loaded (by default the
// embedded sample results).
package output

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/dcshock/planpipe/pipeline"
	"gopkg.in/yaml.v3"
)

//go:embed sample.yaml
var sampleYAML []byte

// Store implements pipeline.OutputStore. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	results map[pipeline.Stage]any
	kpis    map[pipeline.Stage][]pipeline.KPI
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		results: make(map[pipeline.Stage]any),
		kpis:    make(map[pipeline.Stage][]pipeline.KPI),
	}
}

// FromResults returns a store holding every stage of r.
func FromResults(r *Results) *Store {
	s := NewStore()
	s.Set(pipeline.DP, r.DP, r.DP.KPIs)
	s.Set(pipeline.MP, r.MP, r.MP.KPIs)
	s.Set(pipeline.FP, r.FP, r.FP.KPIs)
	s.Set(pipeline.TP, r.TP, r.TP.KPIs)
	return s
}

// Parse decodes a results file.
func Parse(data []byte) (*Store, error) {
	var r Results
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	return FromResults(&r), nil
}

// Load reads a results file from path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", path, err)
	}
	return Parse(data)
}

// Sample returns a store with the embedded sample results.
func Sample() *Store {
	s, err := Parse(sampleYAML)
	if err != nil {
		panic(fmt.Sprintf("output: embedded sample: %v", err))
	}
	return s
}

// Set replaces the result and KPIs of stage.
func (s *Store) Set(stage pipeline.Stage, result any, kpis []pipeline.KPI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		s.results = make(map[pipeline.Stage]any)
		s.kpis = make(map[pipeline.Stage][]pipeline.KPI)
	}
	s.results[stage] = result
	s.kpis[stage] = append([]pipeline.KPI(nil), kpis...)
}

// Get returns the result of stage: a DemandPlan, MasterPlan, FactorySchedule
// or TransportPlan for stores built from Results.
func (s *Store) Get(stage pipeline.Stage) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[stage]
	return r, ok
}

// KPIs returns a copy of the KPIs of stage in declaration order.
func (s *Store) KPIs(stage pipeline.Stage) []pipeline.KPI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]pipeline.KPI(nil), s.kpis[stage]...)
}

// KPI returns the KPI of stage with the given key.
func (s *Store) KPI(stage pipeline.Stage, key string) (pipeline.KPI, bool) {
	for _, k := range s.KPIs(stage) {
		if k.Key == key {
			return k, true
		}
	}
	return pipeline.KPI{}, false
}

var _ pipeline.OutputStore = (*Store)(nil)
