package dashboard

import (
	"fmt"
	"io"
	"mostracker/internal/history"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var chartTitles = map[history.Platform]string{
	history.X:         "Twitter (X) Followers Growth",
	history.Instagram: "Instagram Followers Growth",
}

// GrowthChart draws one line per entity the log has ever seen. Days without
// a count for an entity are gaps in its line.
func GrowthChart(log *history.Log, platform history.Platform) *charts.Line {
	dates := log.Dates()
	xAxis := make([]string, len(dates))
	index := make(map[history.Date]int, len(dates))
	for i, d := range dates {
		xAxis[i] = d.String()
		index[d] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  "1200px",
			Height: "600px",
		}),
		charts.WithTitleOpts(opts.Title{Title: chartTitles[platform]}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: true, Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Followers"}),
	)
	line.SetXAxis(xAxis)

	for _, name := range log.DistinctEntities() {
		points := make([]opts.LineData, len(dates))
		for i := range points {
			// echarts draws "-" as a missing point
			points[i] = opts.LineData{Value: "-"}
		}
		for date, count := range log.QuerySeries(name, platform) {
			if count.Valid {
				points[index[date]] = opts.LineData{Value: count.Value}
			}
		}
		line.AddSeries(fmt.Sprintf("%s (%s)", name, platform.Label()), points)
	}
	return line
}

func renderCharts(w io.Writer, log *history.Log) error {
	page := components.NewPage()
	page.PageTitle = "Follower Growth Over Time"
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		GrowthChart(log, history.X),
		GrowthChart(log, history.Instagram),
	)
	return page.Render(w)
}
