package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvConfig, "")
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestStatus_Default(t *testing.T) {
	out, _, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "STAGE")
	for _, want := range []string{"Demand Planning", "Transport Planning", "prophet", "clarke-wright", "complete"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "last completed")
}

func TestStatus_IdleAndVariantFlag(t *testing.T) {
	out, _, err := execute(t, "status", "--idle", "--variant", "dp=arima", "--variant", "TP=2-opt")
	require.NoError(t, err)
	assert.Contains(t, out, "idle")
	assert.NotContains(t, out, "complete")
	assert.Contains(t, out, "arima")
	assert.Contains(t, out, "2-opt")
}

func TestStatus_BadFlags(t *testing.T) {
	_, _, err := execute(t, "status", "--variant", "dp")
	assert.ErrorContains(t, err, "want stage=id")

	_, _, err = execute(t, "status", "--variant", "xp=foo")
	assert.ErrorIs(t, err, pipeline.ErrUnknownStage)

	_, _, err = execute(t, "status", "--variant", "dp=nope")
	assert.ErrorContains(t, err, `variant "nope" not declared`)

	_, _, err = execute(t, "status", "--log-level", "loud")
	assert.ErrorContains(t, err, "log level")

	_, _, err = execute(t, "status", "--log-format", "xml")
	assert.ErrorContains(t, err, "log format")

	_, _, err = execute(t, "status", "--stream", "carrier-pigeon")
	assert.ErrorContains(t, err, "--stream")
}

func TestRun_StreamsAndFlagsSync(t *testing.T) {
	out, _, err := execute(t, "run", "dp", "--fast")
	require.NoError(t, err)
	assert.Contains(t, out, "==> dp started (Demand Planning, variant prophet)")
	assert.Contains(t, out, "WARN  SKU-004 has 3 months of missing actuals")
	assert.Contains(t, out, "==> dp complete")
	assert.Contains(t, out, "needs sync")
	assert.Contains(t, out, "last completed: dp")
	assert.Contains(t, out, "dp start")
	assert.Contains(t, out, "dp complete")
}

func TestRun_SkipsUnmetDependency(t *testing.T) {
	out, _, err := execute(t, "run", "mp", "dp", "--idle", "--fast")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 stages skipped")
	assert.Contains(t, out, "skip mp: stage dependency not complete (dp is idle)")
	assert.Contains(t, out, "==> dp complete")
}

func TestRun_UnknownStage(t *testing.T) {
	_, _, err := execute(t, "run", "xp")
	assert.ErrorIs(t, err, pipeline.ErrUnknownStage)
}

func TestRunAll(t *testing.T) {
	out, _, err := execute(t, "run-all", "--idle", "--fast")
	require.NoError(t, err)
	for _, s := range []string{"dp", "mp", "fp", "tp"} {
		assert.Contains(t, out, "==> "+s+" complete")
	}
	assert.Less(t, strings.Index(out, "==> dp complete"), strings.Index(out, "==> mp started"))
	assert.Less(t, strings.Index(out, "==> fp complete"), strings.Index(out, "==> tp started"))
	assert.Contains(t, out, "last completed: tp")
	assert.NotContains(t, out, "needs sync")
}

func TestRunAll_LogStream(t *testing.T) {
	out, errOut, err := execute(t, "run-all", "--fast", "--stream", "log", "--log-level", "info", "--log-format", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "==>")
	assert.Contains(t, errOut, `"msg":"run-all complete"`)
	assert.Contains(t, errOut, `"msg":"Demand forecast published"`)
}

func TestVariants(t *testing.T) {
	out, _, err := execute(t, "variants", "mp", "--variant", "mp=milp")
	require.NoError(t, err)
	assert.Contains(t, out, "nexprime-response")
	assert.Contains(t, out, "constraint-programming")
	assert.NotContains(t, out, "prophet")

	var milp string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, " milp ") {
			milp = line
		}
	}
	assert.Contains(t, milp, "*")

	_, _, err = execute(t, "variants", "zz")
	assert.Error(t, err)
}

func TestOutputs(t *testing.T) {
	out, _, err := execute(t, "outputs", "fp")
	require.NoError(t, err)
	assert.Contains(t, out, "Factory Planning (fp)")
	assert.Contains(t, out, "87.3%")
	assert.Contains(t, out, "45 min")
	assert.NotContains(t, out, "schedule:")

	out, _, err = execute(t, "outputs", "tp", "--data")
	require.NoError(t, err)
	assert.Contains(t, out, "450 km")
	assert.Contains(t, out, "vehicle: V03")
}

func TestConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync_policy: cascade\nrun_all_pause: 1s\n"), 0o644))

	out, _, err := execute(t, "config", "--config", path)
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "cascade", cfg.SyncPolicy)
	assert.Equal(t, "1s", cfg.RunAllPause.Duration().String())
	assert.Len(t, cfg.Stages, 4)

	_, _, err = execute(t, "config", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load config")
}

func TestParseVariantFlags(t *testing.T) {
	got, err := parseVariantFlags([]string{"dp=lstm", "fp=neh"})
	require.NoError(t, err)
	assert.Equal(t, map[pipeline.Stage]string{pipeline.DP: "lstm", pipeline.FP: "neh"}, got)

	_, err = parseVariantFlags([]string{"dp="})
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "12.4", formatValue(pipeline.KPI{Value: 12.4}))
	assert.Equal(t, "98.1%", formatValue(pipeline.KPI{Value: 98.1, Unit: "%"}))
	assert.Equal(t, "2400 units", formatValue(pipeline.KPI{Value: 2400, Unit: "units"}))
}
