package commands

import (
	"fmt"
	"log/slog"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Polls every entity once and stores today's snapshot if it is missing.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		ctx, cancel := serviceutil.SignalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, cfg, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer a.close()

		poll, err := a.tracker.Poll(ctx)
		if err != nil {
			// counts that were not stored are not printed as current
			a.close()
			serviceutil.Fatal(fmt.Sprintf("poll for %s failed", poll.Date), err)
		}
		printPoll(poll)

		if poll.Ingest.Accepted {
			slog.Info("snapshot stored", "date", poll.Date, "records", poll.Ingest.Added)
		} else {
			slog.Info("snapshot already captured, nothing stored", "date", poll.Date)
		}
	},
}
