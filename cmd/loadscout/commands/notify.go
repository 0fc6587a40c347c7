package commands

import (
	"log/slog"

	"loadscout-backend/lib/serviceutil"
	"loadscout-backend/services/alerts"
	"loadscout-backend/services/store"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var notifySchedule *string

func init() {
	notifySchedule = notifyCmd.Flags().String("every", "",
		`cron schedule for repeated evaluation (e.g. "@every 5m"); runs once when empty`)
	rootCmd.AddCommand(notifyCmd)
}

var notifyCmd = &cobra.Command{
	Use:   "notify [--every <schedule>]",
	Short: "Matches recently created postings against active alert subscriptions.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		db, err := store.Open(cfg.Database)
		if err != nil {
			serviceutil.Fatal("failed to open store", err)
		}

		service := alerts.NewService(db, alerts.SmtpSender{Config: cfg.Smtp}, cfg.Alerts)
		ctx := cmd.Context()

		if *notifySchedule == "" {
			if err := service.Run(ctx); err != nil {
				serviceutil.Fatal("alert pass failed", err)
			}
			return
		}

		c := cron.New()
		_, err = c.AddFunc(*notifySchedule, func() {
			if err := service.Run(ctx); err != nil {
				slog.ErrorContext(ctx, "alert pass failed", "err", err)
			}
		})
		if err != nil {
			serviceutil.Fatal("invalid schedule", err)
		}

		slog.InfoContext(ctx, "notifier scheduled", "schedule", *notifySchedule)
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
	},
}
