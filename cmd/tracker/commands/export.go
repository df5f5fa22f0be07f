package commands

import (
	"fmt"
	"io"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/history"
	"mostracker/internal/serviceutil"
	"os"

	"github.com/spf13/cobra"
)

var exportOut *string

func init() {
	exportOut = exportCmd.Flags().StringP("out", "o", "", "The file to write to, stdout when empty.")
	rootCmd.AddCommand(exportCmd)
}

// exportTo writes the log to w and closes it, a failed close can mean the
// data never reached the disk so it fails the export.
func exportTo(store *history.Store, name string, w io.WriteCloser) error {
	err := store.Export(w)
	cerr := w.Close()
	if err != nil {
		return err
	}
	if cerr != nil {
		return fmt.Errorf("close %s: %w", name, cerr)
	}
	return nil
}

func writeExport(store *history.Store, path string) error {
	if path == "" {
		return store.Export(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return exportTo(store, path, f)
}

var exportCmd = &cobra.Command{
	Use:   "export [-o " + history.ExportFilename + "]",
	Short: "Writes the historical log as csv.",
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

		_, err = a.store.Load(cmd.Context())
		if err != nil {
			a.close()
			serviceutil.Fatal("failed to load history", err)
		}
		err = writeExport(a.store, *exportOut)
		if err != nil {
			a.close()
			serviceutil.Fatal("failed to export history", err)
		}
	},
}
