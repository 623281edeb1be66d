package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/csse-ingest/internal/pipeline"
)

var populationCmd = &cobra.Command{
	Use:   "population",
	Short: "Publish the world population table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyIngestFlags(cmd)
		if cmd.Flags().Changed("url") {
			cfg.Population.URL, _ = cmd.Flags().GetString("url")
		}

		env, err := initEnv(ctx, "population")
		if err != nil {
			return err
		}
		defer env.Close()
		defer env.PushMetrics(ctx)

		skipUpload, _ := cmd.Flags().GetBool("skip-upload")

		res, err := env.Pipeline.RunPopulation(ctx, pipeline.PopulationOptions{
			URL:         cfg.Population.URL,
			Key:         cfg.Population.Key,
			Crawler:     cfg.Population.Crawler,
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

func init() {
	populationCmd.Flags().String("url", "", "population CSV URL (overrides population.url)")
	addPublishFlags(populationCmd)
	rootCmd.AddCommand(populationCmd)
}
