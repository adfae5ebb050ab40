package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/permealab/hcellrun/app"
	"github.com/permealab/hcellrun/config"
	"github.com/permealab/hcellrun/core/driver"
	"github.com/permealab/hcellrun/infra/logger"
	"github.com/permealab/hcellrun/simulator"
)

var (
	simulate   bool
	simLatency time.Duration
	runCmd     = &cobra.Command{
		Use:   "run",
		Short: "Plan and execute the configured experiment",
		RunE:  runExperiment,
	}
)

func init() {
	runCmd.Flags().BoolVar(&simulate, "simulate", false, "run against the software simulator instead of hardware")
	runCmd.Flags().DurationVar(&simLatency, "sim-latency", 500*time.Millisecond, "simulated duration of one pipetting primitive")
	rootCmd.AddCommand(runCmd)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var drv driver.Robot
	if simulate {
		drv = simulator.New(simulator.Config{CallLatency: simLatency})
	} else {
		return fmt.Errorf("no hardware driver configured; use --simulate")
	}

	svc, err := app.New(cfg, drv)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	rep, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("run %s complete: %d iterations, drift mean %.1fs max %.1fs\n",
		rep.RunID, rep.Completed, rep.MeanDriftSeconds, rep.MaxDriftSeconds)
	return nil
}
