package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openwifi/scan-server/internal/config"
	"github.com/openwifi/scan-server/internal/database"
	"github.com/openwifi/scan-server/internal/queue"
	"github.com/openwifi/scan-server/internal/repository"
	"github.com/openwifi/scan-server/internal/retention"
)

type usageError struct{ error }

// options holds the flags of the cleanup command.
type options struct {
	Keep      int
	BatchSize int
	DryRun    bool
	NoLock    bool
}

func newRootCommand() *cobra.Command {
	rc := config.LoadRetentionConfig()
	opts := &options{Keep: rc.Keep, BatchSize: rc.BatchSize}

	cmd := &cobra.Command{
		Use:           "cleanup",
		Short:         "Move all but the most recent scan results per BSSID to the archive",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Keep < 1 {
				return usageError{fmt.Errorf("--keep must be at least 1, got %d", opts.Keep)}
			}
			if opts.BatchSize < 1 {
				return usageError{fmt.Errorf("--batch-size must be at least 1, got %d", opts.BatchSize)}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, rc)
		},
	}

	cmd.Flags().IntVar(&opts.Keep, "keep", opts.Keep, "observations kept live per BSSID")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", opts.BatchSize, "rows moved per transaction")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would move without moving it")
	cmd.Flags().BoolVar(&opts.NoLock, "no-lock", false, "skip the Redis run lock")
	return cmd
}

func run(cmd *cobra.Command, opts *options, rc config.RetentionConfig) error {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogPretty)
	queueCfg := config.LoadQueueConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	dialect := repository.DialectFor(cfg.DBDriver)
	if err := repository.Migrate(ctx, db, dialect); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	var locker retention.Locker = retention.NoLock{}
	if !opts.NoLock {
		if rdb := config.NewRedisClient(logger); rdb != nil {
			defer rdb.Close()
			locker = retention.NewRedisLock(rdb, "retention:lock", rc.LockTTL)
		}
	}

	publisher := queue.NewPublisher(queueCfg, logger)
	if p, ok := publisher.(*queue.AMQPPublisher); ok {
		defer p.Close()
	}

	c := retention.NewCompactor(repository.NewArchiveRepo(db, dialect), locker, publisher, queueCfg.CompactionQueue, logger)
	rep, err := c.Run(ctx, retention.Options{Keep: opts.Keep, BatchSize: opts.BatchSize, DryRun: opts.DryRun})
	if err != nil {
		return err
	}

	verb := "moved"
	if rep.DryRun {
		verb = "would move"
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"processed %d scan results in %d BSSIDs (max %d, mean %.2f per BSSID); %s %d to the archive in %s\n",
		rep.Processed, rep.Groups, rep.MaxPerBSSID, rep.MeanPerBSSID, verb, rep.Moved, rep.Elapsed.Round(time.Millisecond))
	return nil
}
