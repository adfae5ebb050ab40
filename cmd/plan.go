package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/permealab/hcellrun/app"
	"github.com/permealab/hcellrun/config"
)

var (
	verbosePlan bool
	planCmd     = &cobra.Command{
		Use:   "plan",
		Short: "Validate the experiment and print its transfer plan",
		Long: `plan builds the full iteration schedule and transfer plan without
touching the robot. It exits non-zero if the experiment is infeasible, for
example when a chamber or stock well would run dry mid-run.`,
		RunE: printPlan,
	}
)

func init() {
	planCmd.Flags().BoolVarP(&verbosePlan, "verbose", "v", false, "print every transfer operation")
	rootCmd.AddCommand(planCmd)
}

func printPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sched, ops, err := app.Plan(cfg)
	if err != nil {
		return fmt.Errorf("experiment is infeasible: %w", err)
	}

	perIter := make(map[int]int)
	for _, op := range ops {
		perIter[op.Iteration]++
	}

	fmt.Printf("experiment %q: %d cells, %d iterations, %d operations\n",
		cfg.Experiment.Name, cfg.Experiment.NumCells, len(sched), len(ops))
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "iteration\toffset\toperations")
	for _, pt := range sched {
		fmt.Fprintf(w, "%d\t%s\t%d\n", pt.Index, pt.Offset, perIter[pt.Index])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !verbosePlan {
		return nil
	}
	w = tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "iter\tstep\top\tsource\tdest\tvolume\ttip")
	for _, op := range ops {
		tip := "reuse"
		if op.FreshTip {
			tip = "fresh"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%.1fuL\t%s\n",
			op.Iteration, op.Step, op.Kind, op.Source.Label(), op.Dest.Label(), op.VolumeUl, tip)
	}
	return w.Flush()
}
