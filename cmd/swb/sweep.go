package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/sweeper"
)

func newSweepCmd() *cobra.Command {
	var (
		configPath string
		daemon     bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Close resolved conversations past the grace period",
		Long: "Runs one sweep immediately: every conversation resolved longer ago than\n" +
			"the configured grace period is closed and its agent capacity released.\n" +
			"With --daemon the sweep repeats on the configured cron schedule until\n" +
			"interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, configPath, daemon)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "keep sweeping on the configured schedule")
	return cmd
}

func runSweep(cmd *cobra.Command, configPath string, daemon bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	sw := sweeper.New(gormDB, cfg.Sweep.GraceDuration(), nil)
	out := cmd.OutOrStdout()

	if daemon {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			fmt.Fprintf(out, "\nReceived %s, stopping sweeper...\n", sig)
			cancel()
		}()

		fmt.Fprintf(out, "Sweeping on schedule %q (grace period %s)\n", cfg.Sweep.Schedule, cfg.Sweep.GracePeriod)
		return sw.Run(ctx, cfg.Sweep.Schedule)
	}

	n, err := sw.SweepOnce(context.Background())
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(out, "Nothing to sweep.")
		return nil
	}
	fmt.Fprintf(out, "Closed %d expired conversations (grace period %s)\n", n, cfg.Sweep.GracePeriod)
	return nil
}
