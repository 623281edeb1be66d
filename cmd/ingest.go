package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/csse-ingest/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, transform and publish the CSSE time-series feeds",
	Long: "Downloads each configured time-series CSV, explodes it into one record per location and date, " +
		"writes gzip parquet, uploads it and starts the Glue crawler over its prefix.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyIngestFlags(cmd)

		env, err := initEnv(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()
		defer env.PushMetrics(ctx)

		feeds, err := pipeline.FeedsFromConfig(cfg.Feeds.BaseURL, cfg.Feeds.Statuses)
		if err != nil {
			return err
		}

		skipUpload, _ := cmd.Flags().GetBool("skip-upload")

		res, err := env.Pipeline.Run(ctx, pipeline.Options{
			Feeds:       feeds,
			Merge:       cfg.Feeds.Merge,
			Poll:        cfg.Crawler.Poll,
			SkipUpload:  skipUpload,
			SkipCrawler: cfg.Crawler.Skip,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// applyIngestFlags copies explicitly set flags over the loaded config.
func applyIngestFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("status") {
		cfg.Feeds.Statuses, _ = flags.GetStringSlice("status")
	}
	if flags.Changed("merge") {
		cfg.Feeds.Merge, _ = flags.GetBool("merge")
	}
	// Without an upload there is nothing for a crawler to catalog.
	skipUpload, _ := flags.GetBool("skip-upload")
	if flags.Changed("skip-crawler") || skipUpload {
		skipCrawler, _ := flags.GetBool("skip-crawler")
		cfg.Crawler.Skip = skipCrawler || skipUpload
	}
	if flags.Changed("poll") {
		cfg.Crawler.Poll, _ = flags.GetBool("poll")
	}
	if flags.Changed("territory-match") {
		cfg.Transform.TerritoryMatch, _ = flags.GetString("territory-match")
	}
	if flags.Changed("backend") {
		cfg.Output.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("bucket") {
		cfg.Output.Bucket, _ = flags.GetString("bucket")
	}
}

// addPublishFlags registers the flags shared by ingest and population.
func addPublishFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("poll", true, "wait for each crawler to return to READY")
	cmd.Flags().Bool("skip-upload", false, "write parquet locally and stop")
	cmd.Flags().Bool("skip-crawler", false, "upload but do not touch crawlers")
	cmd.Flags().String("backend", "s3", "upload backend (s3, local)")
	cmd.Flags().String("bucket", "", "destination bucket")
}

func init() {
	ingestCmd.Flags().StringSlice("status", []string{"confirmed", "deaths", "recovered"}, "feeds to ingest")
	ingestCmd.Flags().Bool("merge", true, "publish all feeds as one combined file and crawler")
	ingestCmd.Flags().String("territory-match", "name", "territory remap key (name, coordinates)")
	addPublishFlags(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}
