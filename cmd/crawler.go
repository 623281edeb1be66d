package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/csse-ingest/internal/catalog"
	"github.com/sells-group/csse-ingest/internal/metrics"
	"github.com/sells-group/csse-ingest/internal/storage"
)

var crawlerCmd = &cobra.Command{
	Use:   "crawler",
	Short: "Manage Glue crawlers",
	Long:  "Create, start and wait on the Glue crawlers that catalog published parquet.",
}

// -- crawler ensure --

var crawlerEnsureCmd = &cobra.Command{
	Use:   "ensure <name>",
	Short: "Create a crawler unless it already exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		target, err := crawlerTarget(cmd)
		if err != nil {
			return err
		}

		mgr, err := initCrawlerManager(ctx)
		if err != nil {
			return err
		}
		if err := mgr.Ensure(ctx, args[0], target); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "crawler %s -> %s\n", args[0], target)
		return nil
	},
}

// -- crawler start --

var crawlerStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start a crawler, optionally waiting for it to finish",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("poll") {
			cfg.Crawler.Poll, _ = cmd.Flags().GetBool("poll")
		}

		mgr, err := initCrawlerManager(ctx)
		if err != nil {
			return err
		}
		return mgr.Start(ctx, args[0], cfg.Crawler.Poll)
	},
}

// -- crawler wait --

var crawlerWaitCmd = &cobra.Command{
	Use:   "wait <name>",
	Short: "Wait until a crawler is READY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mgr, err := initCrawlerManager(ctx)
		if err != nil {
			return err
		}
		return mgr.WaitReady(ctx, args[0])
	},
}

func initCrawlerManager(ctx context.Context) (*catalog.Manager, error) {
	if err := cfg.Validate("crawler"); err != nil {
		return nil, err
	}
	awsCfg, err := initAWS(ctx)
	if err != nil {
		return nil, err
	}
	return initCrawlers(awsCfg, metrics.New()), nil
}

// crawlerTarget resolves --target, or derives it from --bucket and --key.
func crawlerTarget(cmd *cobra.Command) (string, error) {
	target, _ := cmd.Flags().GetString("target")
	if target != "" {
		return target, nil
	}
	bucket, _ := cmd.Flags().GetString("bucket")
	key, _ := cmd.Flags().GetString("key")
	if bucket == "" {
		bucket = cfg.Output.Bucket
	}
	if bucket == "" || key == "" {
		return "", eris.New("either --target or --bucket and --key are required")
	}
	return storage.TargetPath(bucket, key), nil
}

func init() {
	crawlerEnsureCmd.Flags().String("target", "", "s3:// prefix to crawl")
	crawlerEnsureCmd.Flags().String("bucket", "", "bucket holding --key (defaults to output.bucket)")
	crawlerEnsureCmd.Flags().String("key", "", "object key whose directory is crawled")

	crawlerStartCmd.Flags().Bool("poll", true, "retry conflicts and wait for READY")

	crawlerCmd.AddCommand(crawlerEnsureCmd)
	crawlerCmd.AddCommand(crawlerStartCmd)
	crawlerCmd.AddCommand(crawlerWaitCmd)
	rootCmd.AddCommand(crawlerCmd)
}
