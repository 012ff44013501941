// recurrence-runner materializes due recurring jobs, invoices, and contract
// occurrences. Run once (default) from cron, or as a long-lived worker with
// --interval.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/recurrence-runner
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tradietrack/tradietrack_backend/config"
	"github.com/tradietrack/tradietrack_backend/models"
	"github.com/tradietrack/tradietrack_backend/utils"
	"github.com/tradietrack/tradietrack_backend/workflow"
)

func main() {
	asOfFlag := flag.String("as-of", "", "Optional: run as of this time (RFC3339). Defaults to now.")
	interval := flag.Duration("interval", 0, "Optional: keep running at this interval instead of once.")
	flag.Parse()

	logger := config.GetLogger()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	// ensure recurrence tables exist when the runner ships ahead of the API
	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	asOf := time.Now()
	if *asOfFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *asOfFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --as-of: %v\n", err)
			os.Exit(1)
		}
		asOf = parsed
	}

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "RecurrenceRunner")

	runOnce := func(at time.Time) {
		created, err := workflow.RunAllDueRecurrences(ctx, at)
		if err != nil {
			config.LogError(logger, "recurrence-runner", "main", "run", nil, err)
		}
		logger.WithFields(logrus.Fields{
			"module":  "recurrence-runner",
			"as_of":   at.Format(time.RFC3339),
			"created": created,
		}).Info("recurrence run finished")
	}

	if *interval <= 0 {
		runOnce(asOf)
		return
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	runOnce(asOf)
	for {
		select {
		case <-sigCtx.Done():
			return
		case <-ticker.C:
			runOnce(time.Now())
		}
	}
}
