package commands

import (
	"fmt"
	"os"

	"loadscout-backend/lib/scrapers/sylectus"
	"loadscout-backend/lib/serviceutil"
	"loadscout-backend/services/loadboard"
	"loadscout-backend/services/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Runs one full scrape-and-reconcile pass against the portal.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		db, err := store.Open(cfg.Database)
		if err != nil {
			serviceutil.Fatal("failed to open store", err)
		}

		portal, err := sylectus.NewClient(cmd.Context(), cfg.Portal)
		if err != nil {
			serviceutil.Fatal("failed to launch browser", err)
		}
		// release the browser whether the run succeeded or not
		defer portal.Close()

		stats, err := loadboard.NewService(db, portal, cfg.Pipeline).Run(cmd.Context())
		if err != nil {
			portal.Close()
			serviceutil.Fatal("scrape pass failed", err)
		}

		printStats(stats)
	},
}

func printStats(stats loadboard.RunStats) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"counter", "value"})
	t.AppendRows([]table.Row{
		{"total postings", stats.Total},
		{"new", stats.New},
		{"from cache", stats.Cached},
		{"expired", stats.Expired},
		{"empty rows", stats.EmptyRows},
		{"popup failures", stats.PopupFailures},
		{"extraction failures", stats.ExtractionFailures},
	})
	t.AppendFooter(table.Row{"elapsed", fmt.Sprintf("%.1fs", stats.Elapsed.Seconds())})
	t.Render()
}
