package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dcshock/planpipe/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefault_Catalog(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "complete", cfg.InitialStatus)
	assert.Equal(t, "single-hop", cfg.SyncPolicy)
	assert.Equal(t, 200*time.Millisecond, cfg.Delay.Min.Duration())
	assert.Equal(t, 800*time.Millisecond, cfg.Delay.Max.Duration())
	assert.Equal(t, 500*time.Millisecond, cfg.RunAllPause.Duration())

	wantDefaults := map[pipeline.Stage]string{
		pipeline.DP: "prophet",
		pipeline.MP: "nexprime-response",
		pipeline.FP: "genetic-algorithm",
		pipeline.TP: "clarke-wright",
	}
	wantCounts := map[pipeline.Stage]int{pipeline.DP: 5, pipeline.MP: 6, pipeline.FP: 5, pipeline.TP: 5}
	for _, s := range pipeline.Order() {
		sc, ok := cfg.Stage(s)
		require.True(t, ok, "stage %s missing", s)
		assert.Equal(t, wantDefaults[s], sc.Default, s.String())
		assert.Len(t, sc.Variants, wantCounts[s], s.String())
		for _, v := range sc.Variants {
			assert.NotEmpty(t, v.Name, "%s/%s name", s, v.ID)
			assert.NotEmpty(t, v.Script, "%s/%s script", s, v.ID)
		}
	}
}

func TestDefault_FreshCopy(t *testing.T) {
	a := Default()
	a.Stages["dp"] = StageConfig{}
	b := Default()
	assert.NotEmpty(t, b.Stages["dp"].Variants)
}

func TestParse_VariantShorthand(t *testing.T) {
	cfg, err := Parse([]byte(`
stages:
  dp:
    variants:
      - prophet
      - id: arima
        name: ARIMA
        script: ["[INFO] fit"]
`))
	require.NoError(t, err)
	sc := cfg.Stages["dp"]
	require.Len(t, sc.Variants, 2)
	assert.Equal(t, "prophet", sc.Variants[0].ID)
	assert.Empty(t, sc.Variants[0].Script)
	assert.Equal(t, "ARIMA", sc.Variants[1].Name)
	assert.Equal(t, []string{"[INFO] fit"}, sc.Variants[1].Script)
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte("delay:\n  min: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"soon"`)
}

func TestDuration_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(DelayConfig{Min: Duration(50 * time.Millisecond), Max: Duration(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, "min: 50ms\nmax: 1s\n", string(out))
}

func TestOverlay_KeepsUnsetDefaults(t *testing.T) {
	cfg, err := Overlay(Default(), []byte(`
sync_policy: cascade
stages:
  tp:
    default: 2-opt
    variants:
      - id: 2-opt
        script: ["[INFO] improve"]
`))
	require.NoError(t, err)
	assert.Equal(t, "cascade", cfg.SyncPolicy)
	assert.Equal(t, "complete", cfg.InitialStatus)
	assert.Equal(t, 200*time.Millisecond, cfg.Delay.Min.Duration())

	dp, ok := cfg.Stage(pipeline.DP)
	require.True(t, ok)
	assert.Equal(t, "prophet", dp.Default)

	tp, ok := cfg.Stage(pipeline.TP)
	require.True(t, ok)
	assert.Equal(t, "2-opt", tp.Default)
	assert.Len(t, tp.Variants, 1)
}

func TestOverlay_StageKeyCase(t *testing.T) {
	cfg, err := Overlay(Default(), []byte("stages:\n  DP:\n    default: arima\n    variants: [prophet, arima]"))
	require.NoError(t, err)
	assert.Len(t, cfg.Stages, 4)

	dp, ok := cfg.Stage(pipeline.DP)
	require.True(t, ok)
	assert.Equal(t, "arima", dp.Default)
	assert.Len(t, dp.Variants, 2)

	mp, ok := cfg.Stage(pipeline.MP)
	require.True(t, ok)
	assert.Equal(t, "nexprime-response", mp.Default)
}

func TestOverlay_DuplicateStageInFile(t *testing.T) {
	_, err := Overlay(Default(), []byte("stages:\n  dp: {}\n  Dp: {}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name the same stage")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"initial running", "initial_status: running", "initial_status"},
		{"initial unknown", "initial_status: paused", "initial_status"},
		{"sync policy", "sync_policy: everywhere", "sync_policy"},
		{"retention", "activity_retention: -1", "activity_retention"},
		{"delay order", "delay: {min: 2s, max: 1s}", "delay: max"},
		{"pause", "run_all_pause: -1s", "run_all_pause"},
		{"unknown stage", "stages: {xp: {}}", "unknown stage"},
		{"duplicate stage", "stages: {dp: {}, DP: {}}", "name the same stage"},
		{"missing id", "stages: {mp: {variants: [{name: x}]}}", `stage "mp" variant 0: id required`},
		{"duplicate id", "stages: {mp: {variants: [a, a]}}", `duplicate id "a"`},
		{"undeclared default", "stages: {fp: {default: neh, variants: [tabu]}}", `default: variant "neh"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStartIdle(t *testing.T) {
	for in, want := range map[string]bool{"": false, "complete": false, "Completed": false, "idle": true} {
		cfg := &Config{InitialStatus: in}
		got, err := cfg.StartIdle()
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("initial_status: idle\nactivity_retention: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "idle", cfg.InitialStatus)
	assert.Equal(t, 5, cfg.ActivityRetention)
	_, ok := cfg.Stage(pipeline.FP)
	assert.True(t, ok)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync_policy: sideways\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}
