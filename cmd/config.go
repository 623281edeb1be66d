package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/csse-ingest/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeConfig(os.Stdout, cfg)
	},
}

// writeConfig encodes c as YAML. Secrets in the store DSN and webhook are
// redacted.
func writeConfig(w io.Writer, c *config.Config) error {
	out := *c
	if out.Store.Driver == "postgres" && out.Store.DatabaseURL != "" {
		out.Store.DatabaseURL = "<redacted>"
	}
	if out.Monitoring.WebhookURL != "" {
		out.Monitoring.WebhookURL = "<redacted>"
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return eris.Wrap(err, "encode config")
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(configCmd)
}
