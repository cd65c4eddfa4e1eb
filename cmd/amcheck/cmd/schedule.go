package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/spf13/cobra"

	"github.com/solatis/amcheck/internal/triage"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run move then check on a cron schedule until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().String("cron", "*/15 * * * *", "cron expression for run times")
	scheduleCmd.Flags().Bool("dry-run", false, "never move or delete anything")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cronSpec, _ := cmd.Flags().GetString("cron")
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronSpec, err)
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	// Rules are compiled once for the lifetime of the scheduler.
	ruleCfg, err := env.loadRules()
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env.logger.Info("scheduler started", "cron", cronSpec, "dry_run", dryRun)
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("cron expression %q has no future run", cronSpec)
		}
		env.logger.Info("next run scheduled", "at", next.Format(time.RFC3339))

		if !sleepUntil(ctx, next) {
			env.logger.Info("shutting down gracefully")
			return nil
		}
		if err := env.run(ctx, ruleCfg, dryRun, scheduledRun); err != nil {
			env.logger.Error("scheduled run failed", "error", err)
		}
	}
}

// scheduledRun is one tick: move, then check. A failed move still checks.
func scheduledRun(ctx context.Context, svc *triage.Service, logger *slog.Logger) error {
	moveErr := moveRun(ctx, svc, logger)
	if moveErr != nil {
		logger.Error("scheduled move failed", "error", moveErr)
	}
	if err := checkRun(false)(ctx, svc, logger); err != nil {
		return err
	}
	return moveErr
}

// sleepUntil blocks until t or until ctx is done; it reports whether t was
// reached.
func sleepUntil(ctx context.Context, t time.Time) bool {
	timer := time.NewTimer(time.Until(t))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
