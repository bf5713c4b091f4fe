package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dcshock/planpipe/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample_KPIs(t *testing.T) {
	s := Sample()
	tests := []struct {
		stage pipeline.Stage
		key   string
		value float64
	}{
		{pipeline.DP, "accuracy", 94.2},
		{pipeline.DP, "mape", 5.8},
		{pipeline.MP, "serviceLevel", 98.1},
		{pipeline.MP, "inventoryTurns", 12.4},
		{pipeline.FP, "oee", 87.3},
		{pipeline.FP, "throughput", 2400},
		{pipeline.TP, "totalDistance", 450},
		{pipeline.TP, "onTimeDelivery", 96.2},
	}
	for _, tt := range tests {
		k, ok := s.KPI(tt.stage, tt.key)
		require.True(t, ok, "%s/%s", tt.stage, tt.key)
		assert.InDelta(t, tt.value, k.Value, 1e-9, "%s/%s", tt.stage, tt.key)
		assert.NotEmpty(t, k.Label)
	}
	for _, st := range pipeline.Order() {
		assert.Len(t, s.KPIs(st), 3, st.String())
	}
}

func TestSample_Payloads(t *testing.T) {
	s := Sample()

	r, ok := s.Get(pipeline.DP)
	require.True(t, ok)
	dp := r.(DemandPlan)
	require.Len(t, dp.Forecasts, 12)
	assert.Equal(t, "Jan", dp.Forecasts[0].Month)
	assert.Equal(t, float64(2100), dp.Forecasts[11].Forecast)

	r, _ = s.Get(pipeline.MP)
	mp := r.(MasterPlan)
	require.Len(t, mp.Plans, 4)
	short := mp.Shortfalls()
	require.Len(t, short, 1)
	assert.Equal(t, "Plant B", short[0].Plant)

	r, _ = s.Get(pipeline.FP)
	fp := r.(FactorySchedule)
	require.Len(t, fp.Schedule, 8)
	lines := fp.Lines()
	require.Len(t, lines, 3)
	assert.Len(t, lines[0], 3)
	assert.Equal(t, "Line 3", lines[2][0].Line)
	assert.Equal(t, "06:00", fp.Schedule[0].Start)

	r, _ = s.Get(pipeline.TP)
	tp := r.(TransportPlan)
	require.Len(t, tp.Routes, 3)
	assert.Equal(t, float64(378), tp.RouteDistance())
	assert.Len(t, tp.Routes[2].Coordinates, 5)
}

func TestStore_SetCopiesKPIs(t *testing.T) {
	var s Store
	kpis := []pipeline.KPI{{Key: "k", Label: "K", Value: 1}}
	s.Set(pipeline.TP, "payload", kpis)
	kpis[0].Value = 2

	assert.Equal(t, float64(1), s.KPIs(pipeline.TP)[0].Value)
	got, ok := s.Get(pipeline.TP)
	require.True(t, ok)
	assert.Equal(t, "payload", got)

	_, ok = s.Get(pipeline.DP)
	assert.False(t, ok)
	assert.Empty(t, s.KPIs(pipeline.DP))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mp:
  kpis:
    - {key: fillRate, label: Fill Rate, value: 91, unit: "%"}
  plans:
    - {plant: Plant Z, supply: 10, demand: 12, gap: -2, utilization: 1.2}
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	k, ok := s.KPI(pipeline.MP, "fillRate")
	require.True(t, ok)
	assert.Equal(t, "%", k.Unit)
	assert.Empty(t, s.KPIs(pipeline.DP))

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestStore_WithOrchestrator(t *testing.T) {
	o := pipeline.New(pipeline.Options{Outputs: Sample()})
	assert.Len(t, o.KPIs(pipeline.FP), 3)
	r, ok := o.Output(pipeline.TP)
	require.True(t, ok)
	assert.IsType(t, TransportPlan{}, r)
}
