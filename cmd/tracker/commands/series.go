package commands

import (
	"fmt"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/history"
	"mostracker/internal/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var seriesPlatform *string

func init() {
	seriesPlatform = seriesCmd.Flags().StringP("platform", "p", "", "Only show one platform (x or instagram).")
	rootCmd.AddCommand(seriesCmd)
}

var seriesCmd = &cobra.Command{
	Use:   "series <name> [--platform x|instagram]",
	Short: "Prints the stored follower counts of one entity by date.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		platforms := history.Platforms
		if *seriesPlatform != "" {
			p, err := history.ParsePlatform(*seriesPlatform)
			if err != nil {
				serviceutil.Fatal("invalid platform", err)
			}
			platforms = []history.Platform{p}
		}

		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		a, err := newApp(cmd.Context(), cfg, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer a.close()

		log, err := a.store.Load(cmd.Context())
		if err != nil {
			a.close()
			serviceutil.Fatal("failed to load history", err)
		}

		name := args[0]
		t := newTable()
		t.SetTitle(name)
		header := table.Row{"Date"}
		for _, p := range platforms {
			header = append(header, fmt.Sprintf("%s Followers", p.Label()))
		}
		t.AppendHeader(header)

		rows := map[history.Date]table.Row{}
		var dates []history.Date
		for i, p := range platforms {
			for date, count := range log.QuerySeries(name, p) {
				row, ok := rows[date]
				if !ok {
					row = make(table.Row, len(platforms)+1)
					row[0] = date
					dates = append(dates, date)
				}
				row[i+1] = cell(count)
				rows[date] = row
			}
		}
		if len(dates) == 0 {
			fmt.Printf("no observations for %q\n", name)
			return
		}
		for _, d := range dates {
			t.AppendRow(rows[d])
		}
		t.Render()
	},
}
