package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daily sync scheduler",
		Long: `Run the scheduler until interrupted. Once a day at sync.daily_at every
linked account is queued for sync after a random delay between
sync.jitter_min and sync.jitter_max. A sweep missed while the scheduler
was down runs right away.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.newScheduler()
			if err != nil {
				return err
			}

			next, err := sched.EnsureScheduled(ctx)
			if err != nil {
				return err
			}
			slog.Info("Scheduler starting", "next_sweep", next, "daily_at", cfg.Sync.DailyAt)

			sched.Start(ctx)
			<-ctx.Done()

			slog.Info("Stopping scheduler", "pending_syncs", sched.Pending())
			sched.Shutdown(shutdownTimeout)
			return nil
		},
	}
}
