package pipeline

// ScriptProvider supplies the canned log script for a stage variant. It must
// return an empty slice, not an error, for unknown variants.
type ScriptProvider interface {
	Get(stage Stage, variant string) []string
}

// ScriptFunc adapts a func to ScriptProvider.
type ScriptFunc func(stage Stage, variant string) []string

func (f ScriptFunc) Get(stage Stage, variant string) []string { return f(stage, variant) }

// KPI is one labelled summary figure of a stage's result.
type KPI struct {
	Key   string  `json:"key" yaml:"key"`
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
	Unit  string  `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// OutputStore holds each stage's result payload and KPI summary. The
// orchestrator only exposes these; it never computes or writes them.
type OutputStore interface {
	Get(stage Stage) (any, bool)
	KPIs(stage Stage) []KPI
}
