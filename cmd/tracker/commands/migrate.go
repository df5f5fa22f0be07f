package commands

import (
	"log/slog"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/history"
	"mostracker/internal/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rewrites a log stored in an older schema in the current one.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		a, err := newApp(cmd.Context(), cfg, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer a.close()

		from, err := a.store.Migrate(cmd.Context())
		if err != nil {
			a.close()
			serviceutil.Fatal("failed to migrate history", err)
		}
		if from.Version == history.CurrentSchema.Version {
			slog.Info("history is already in the current schema", "version", from.Version)
			return
		}
		slog.Info("history migrated", "from", from.Version, "to", history.CurrentSchema.Version)
	},
}
