package commands

import (
	"context"
	"fmt"
	"os"

	"loadscout-backend/lib/configutil"
	"loadscout-backend/lib/scrapers/sylectus"
	"loadscout-backend/services/alerts"
	"loadscout-backend/services/loadboard"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loadscout",
	Short: "loadscout scrapes the load board portal, reconciles postings and notifies matching alerts.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Config is the top-level loadscout.json5 configuration.
type Config struct {
	Database string            `json:"database"`
	Portal   sylectus.Config   `json:"portal"`
	Pipeline loadboard.Config  `json:"pipeline"`
	Smtp     alerts.SmtpConfig `json:"smtp"`
	Alerts   alerts.Config     `json:"alerts"`
}

func readConfig() (Config, error) {
	return configutil.ReadConfig[Config]("loadscout.json5")
}
