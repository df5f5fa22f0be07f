package dashboard

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"mostracker/internal/assert"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/history"
	"mostracker/internal/tracker"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	report_dashboard_render = "dashboard.render"
	report_dashboard_export = "dashboard.export"
)

//go:embed index.html
var indexSource string

var indexTemplate = template.Must(
	template.New("index").Funcs(template.FuncMap{
		"count": formatCount,
	}).Parse(indexSource),
)

func formatCount(c history.Count) string {
	if !c.Valid {
		return "-"
	}
	return c.String()
}

// LastPoll returns the most recent saved poll, false when none has been
// saved yet, and the failure of a later poll that could not be saved.
type LastPoll interface {
	Get() (tracker.Poll, bool)
	Failure() *tracker.Failure
}

type Options struct {
	Store *history.Store
	// Live is optional, without it the table shows the last stored counts.
	Live           LastPoll
	RefreshMinutes int
	Tel            telemetry.API
}

type Server struct {
	store          *history.Store
	live           LastPoll
	refreshMinutes int
	tel            telemetry.API
}

func NewServer(opts Options) Server {
	assert.NotNil(opts.Store)
	assert.NotNil(opts.Tel)
	if opts.RefreshMinutes <= 0 {
		opts.RefreshMinutes = 5
	}
	return Server{
		store:          opts.Store,
		live:           opts.Live,
		refreshMinutes: opts.RefreshMinutes,
		tel:            telemetry.NewScopedAPI("dashboard", opts.Tel),
	}
}

func (s Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/charts", s.handleCharts)
	r.Get("/export", s.handleExport)
	r.Get("/api/series", s.handleSeries)
	r.Get("/healthz", s.handleHealth)
	return r
}

type indexPage struct {
	RefreshMinutes int
	RefreshSeconds int
	Polled         bool
	Date           history.Date
	Rows           []tracker.LiveRow
	ExportFilename string
	Failure        *tracker.Failure
}

// storedRows is the table shown before the first poll of this process.
func storedRows(log *history.Log) []tracker.LiveRow {
	names := log.DistinctEntities()
	rows := make([]tracker.LiveRow, 0, len(names))
	for _, name := range names {
		latest, ok := log.Latest(name)
		if !ok {
			continue
		}
		rows = append(rows, tracker.LiveRow{
			Name:      name,
			X:         latest.Twitter,
			Instagram: latest.Instagram,
		})
	}
	return rows
}

func (s Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := indexPage{
		RefreshMinutes: s.refreshMinutes,
		RefreshSeconds: s.refreshMinutes * 60,
		ExportFilename: history.ExportFilename,
	}
	if s.live != nil {
		page.Failure = s.live.Failure()
		if poll, ok := s.live.Get(); ok {
			page.Polled = true
			page.Date = poll.Date
			page.Rows = poll.Rows
		}
	}
	if !page.Polled {
		page.Rows = storedRows(s.store.Log())
	}

	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, page)
	if err != nil {
		s.tel.ReportBroken(report_dashboard_render, err)
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := renderCharts(&buf, s.store.Log())
	if err != nil {
		s.tel.ReportBroken(report_dashboard_render, err)
		http.Error(w, "failed to render charts", http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := s.store.Export(&buf)
	if err != nil {
		s.tel.ReportBroken(report_dashboard_export, err)
		http.Error(w, "failed to export history", http.StatusInternalServerError)
		return
	}
	w.Header().Set("content-type", history.ExportContentType)
	w.Header().Set("content-disposition", fmt.Sprintf("attachment; filename=%q", history.ExportFilename))
	w.Write(buf.Bytes())
}

type seriesPoint struct {
	Date      history.Date `json:"date"`
	Followers *int64       `json:"followers"`
}

type seriesResponse struct {
	Name     string           `json:"name"`
	Platform history.Platform `json:"platform"`
	Points   []seriesPoint    `json:"points"`
}

func (s Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	platform := history.X
	if raw := r.URL.Query().Get("platform"); raw != "" {
		var err error
		platform, err = history.ParsePlatform(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	res := seriesResponse{Name: name, Platform: platform, Points: []seriesPoint{}}
	for date, count := range s.store.Log().QuerySeries(name, platform) {
		point := seriesPoint{Date: date}
		if count.Valid {
			value := count.Value
			point.Followers = &value
		}
		res.Points = append(res.Points, point)
	}

	w.Header().Set("content-type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (s Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"records": s.store.Log().Len(),
	})
}
