package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dcshock/planpipe/config"
	"github.com/dcshock/planpipe/observer"
	"github.com/dcshock/planpipe/output"
	"github.com/dcshock/planpipe/pipeline"
	"github.com/spf13/cobra"
)

var fastDelay = pipeline.DelayRange{Min: time.Millisecond, Max: 5 * time.Millisecond}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configSrc string
	logLevel  string
	logFormat string
	stream    string
	idle      bool
	fast      bool
	variants  []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "planpipe",
		Short: "Run the DP → MP → FP → TP planning pipeline",
		Long: `planpipe runs the four planning stages (Demand, Master, Factory and
Transport Planning) with simulated solvers that stream their logs.

A stage only runs once the stage before it is complete. Re-running a stage marks
the next completed stage as needing a sync.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configSrc, "config", "", "config file path or http(s) URL (default $"+config.EnvConfig+")")
	pf.StringVar(&g.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&g.stream, "stream", "text", "how runs are reported: text (transcript on stdout) or log (structured log records)")
	pf.BoolVar(&g.idle, "idle", false, "start every stage Idle instead of Complete")
	pf.BoolVar(&g.fast, "fast", false, "use 1-5ms pauses between log lines and no pause between stages")
	pf.StringArrayVar(&g.variants, "variant", nil, "select a variant as stage=id (repeatable)")

	rootCmd.AddCommand(runCmd(g))
	rootCmd.AddCommand(runAllCmd(g))
	rootCmd.AddCommand(statusCmd(g))
	rootCmd.AddCommand(variantsCmd(g))
	rootCmd.AddCommand(outputsCmd(g))
	rootCmd.AddCommand(configCmd(g))

	return rootCmd
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q not supported (use \"text\" or \"json\")", format)
	}
}

func parseVariantFlags(values []string) (map[pipeline.Stage]string, error) {
	out := make(map[pipeline.Stage]string, len(values))
	for _, v := range values {
		name, id, ok := strings.Cut(v, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("--variant %q: want stage=id", v)
		}
		stage, err := pipeline.ParseStage(name)
		if err != nil {
			return nil, fmt.Errorf("--variant %q: %w", v, err)
		}
		out[stage] = id
	}
	return out, nil
}

func loadConfig(ctx context.Context, g *globalFlags) (*config.Config, error) {
	cfg, err := config.LoadSource(ctx, nil, config.Source(g.configSrc))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.fast {
		cfg.RunAllPause = 0
	}
	return cfg, nil
}

// env is everything a command needs to drive one pipeline.
type env struct {
	cfg      *config.Config
	registry *config.ScriptRegistry
	outputs  *output.Store
	orch     *pipeline.Orchestrator
}

func setup(cmd *cobra.Command, g *globalFlags) (*env, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(cmd.Context(), g)
	if err != nil {
		return nil, err
	}
	reg, err := config.BuildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	variants, err := parseVariantFlags(g.variants)
	if err != nil {
		return nil, err
	}

	var obs pipeline.Observer
	switch g.stream {
	case "text", "":
		obs = observer.NewPrinter(cmd.OutOrStdout())
	case "log":
		obs = observer.NewLogging(logger)
	default:
		return nil, fmt.Errorf("--stream %q not supported (use \"text\" or \"log\")", g.stream)
	}

	outputs := output.Sample()
	opts := &config.BuildOptions{
		Outputs:   outputs,
		Observer:  obs,
		Logger:    logger,
		Variants:  variants,
		StartIdle: g.idle,
	}
	if g.fast {
		opts.Delay = &fastDelay
	}
	orch, err := config.Build(reg, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, registry: reg, outputs: outputs, orch: orch}, nil
}
