package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/dcshock/planpipe/pipeline"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func runCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <stage>...",
		Short: "Run stages one after another",
		Long: `Runs each given stage (dp, mp, fp, tp) and waits for it to complete before
starting the next. A stage whose dependency is not complete is skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stages := make([]pipeline.Stage, 0, len(args))
			for _, a := range args {
				s, err := pipeline.ParseStage(a)
				if err != nil {
					return err
				}
				stages = append(stages, s)
			}
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			skipped := 0
			for _, s := range stages {
				if err := e.orch.CheckRunnable(s); err != nil {
					fmt.Fprintf(out, "skip %v\n", err)
					skipped++
					continue
				}
				e.orch.RunStage(s)
				if err := e.orch.Wait(ctx, s); err != nil {
					return err
				}
			}
			fmt.Fprintln(out)
			printStatus(out, e.orch.Snapshot())
			if skipped > 0 {
				return fmt.Errorf("%d of %d stages skipped", skipped, len(stages))
			}
			return nil
		},
	}
}

func runAllCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run-all",
		Short: "Run every stage in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			ok := e.orch.RunAll(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			printStatus(out, e.orch.Snapshot())
			if !ok {
				if err := cmd.Context().Err(); err != nil {
					return fmt.Errorf("run-all aborted: %w", err)
				}
				return errors.New("run-all aborted")
			}
			return nil
		},
	}
}

func statusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the initial state of every stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), e.orch.Snapshot())
			return nil
		},
	}
}

func variantsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "variants [stage]",
		Short: "List the solver variants of each stage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stages := pipeline.Order()
			if len(args) == 1 {
				s, err := pipeline.ParseStage(args[0])
				if err != nil {
					return err
				}
				stages = []pipeline.Stage{s}
			}
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tVARIANT\tNAME\tSELECTED\tDESCRIPTION")
			for _, s := range stages {
				selected := e.orch.SelectedVariant(s)
				for _, v := range e.registry.Variants(s) {
					mark := ""
					if v.ID == selected {
						mark = "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s, v.ID, v.Name, mark, v.Description)
				}
			}
			return w.Flush()
		},
	}
}

func outputsCmd(g *globalFlags) *cobra.Command {
	var showData bool

	cmd := &cobra.Command{
		Use:   "outputs <stage>",
		Short: "Show the KPIs (and optionally the result data) of a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := pipeline.ParseStage(args[0])
			if err != nil {
				return err
			}
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n\n", s.Label(), s)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KPI\tLABEL\tVALUE")
			for _, k := range e.orch.KPIs(s) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", k.Key, k.Label, formatValue(k))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if showData {
				data, ok := e.orch.Output(s)
				if !ok {
					return fmt.Errorf("no result data for %s", s)
				}
				fmt.Fprintln(out)
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(data); err != nil {
					return err
				}
				return enc.Close()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showData, "data", false, "also print the result data as YAML")
	return cmd
}

func configCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), g)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func printStatus(w io.Writer, snap pipeline.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tLABEL\tSTATUS\tVARIANT\tSYNC\tLOGS")
	for _, st := range snap.Stages {
		sync := ""
		if st.NeedsSync {
			sync = "needs sync"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", st.Stage, st.Stage.Label(), st.Status, st.Variant, sync, len(st.Logs))
	}
	tw.Flush()

	if snap.LastCompleted != nil {
		fmt.Fprintf(w, "\nlast completed: %s\n", *snap.LastCompleted)
	}
	if len(snap.Activity) > 0 {
		fmt.Fprintln(w, "\nrecent activity:")
		for _, a := range snap.Activity {
			fmt.Fprintf(w, "  %s  %s %s\n", a.Time.Format("15:04:05.000"), a.Stage, a.Type)
		}
	}
}

func formatValue(k pipeline.KPI) string {
	v := strconv.FormatFloat(k.Value, 'f', -1, 64)
	switch k.Unit {
	case "":
		return v
	case "%":
		return v + "%"
	default:
		return v + " " + k.Unit
	}
}
