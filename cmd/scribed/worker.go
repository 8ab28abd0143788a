package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snipnote/scribed/internal/worker"
	"github.com/spf13/cobra"
)

func newWorkerCmd() *cobra.Command {
	var (
		configPath string
		once       bool
		interval   time.Duration
		schedule   string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the transcription worker",
		Long: `Polls the job store for pending work and processes it.

By default the worker polls continuously at the configured interval. With
--once it performs a single pass and exits; with --schedule it runs passes
on a 5-field cron expression instead of a fixed interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, configPath, once, interval, schedule)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to scribed config file")
	cmd.Flags().BoolVar(&once, "once", false, "run a single scheduling pass and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression for scheduling passes")
	return cmd
}

func runWorker(cmd *cobra.Command, configPath string, once bool, interval time.Duration, schedule string) error {
	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	proc, err := a.buildProcessor()
	if err != nil {
		return err
	}
	sched := worker.NewScheduler(a.store, proc, a.cfg.Worker.JobConcurrency, a.log)

	if once {
		return sched.RunOnce(cmd.Context())
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if schedule == "" {
		schedule = a.cfg.Worker.Schedule
	}
	if schedule != "" {
		err = sched.RunCron(ctx, schedule)
	} else {
		if interval <= 0 {
			interval = a.cfg.Worker.PollInterval
		}
		err = sched.Run(ctx, interval)
	}
	if err == context.Canceled {
		return nil
	}
	return err
}
