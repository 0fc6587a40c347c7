package commands

import (
	"log/slog"

	"loadscout-backend/lib/serviceutil"
	"loadscout-backend/services/store"
	"loadscout-backend/services/zipimport"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(importZipsCmd)
}

var importZipsCmd = &cobra.Command{
	Use:   "import-zips <path-or-url>",
	Short: "Replaces the zip-code table from a SimpleMaps uszips.csv dataset.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		db, err := store.Open(cfg.Database)
		if err != nil {
			serviceutil.Fatal("failed to open store", err)
		}

		count, err := zipimport.Import(cmd.Context(), db, args[0])
		if err != nil {
			serviceutil.Fatal("zip import failed", err)
		}
		slog.Info("zip import finished", "count", count)
	},
}
