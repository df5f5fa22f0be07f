package commands

import (
	"context"
	"fmt"
	"mostracker/internal/components/chrono"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/config"
	"mostracker/internal/history"
	"mostracker/internal/notify"
	"mostracker/internal/roster"
	"mostracker/internal/scrapers/instagram"
	"mostracker/internal/scrapers/twitter"
	"mostracker/internal/tracker"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

// app holds what every command needs, it is built once per invocation.
type app struct {
	cfg     config.Config
	time    chrono.StandardImpl
	tel     telemetry.API
	store   *history.Store
	tracker tracker.Tracker
	close   func() error
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	telemetry.InitSlog(cfg.LogLevel, cfg.LogJson)
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config, tel telemetry.API) (app, error) {
	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		return app{}, fmt.Errorf("load timezone: %w", err)
	}

	backend, closeBackend, err := cfg.Store.OpenBackend(ctx)
	if err != nil {
		return app{}, fmt.Errorf("open store: %w", err)
	}
	store := history.NewStore(backend, tel)

	var notifier tracker.Notifier
	if cfg.Notify.Enabled() {
		notifier = notify.NewEmail(cfg.Notify)
	}

	t := tracker.NewTracker(tracker.Options{
		Store: store,
		LoadRoster: func() ([]roster.Entity, error) {
			return roster.Load(cfg.Roster)
		},
		Fetchers: map[history.Platform]tracker.Fetcher{
			history.X: twitter.NewClient(twitter.Options{
				BaseUrl:     cfg.Twitter.BaseUrl,
				BearerToken: cfg.Twitter.BearerToken,
				Timeout:     cfg.Twitter.Timeout(),
			}, tel),
			history.Instagram: instagram.NewClient(instagram.Options{
				BaseUrl:          cfg.Instagram.BaseUrl,
				UserAgent:        cfg.Instagram.UserAgent,
				Timeout:          cfg.Instagram.Timeout(),
				CloudflareBypass: cfg.Instagram.CloudflareBypass,
			}, tel),
		},
		Time:     clock,
		Tel:      tel,
		Notifier: notifier,
	})

	return app{
		cfg:     cfg,
		time:    clock,
		tel:     tel,
		store:   store,
		tracker: t,
		close:   closeBackend,
	}, nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func cell(c history.Count) string {
	if !c.Valid {
		return "-"
	}
	return c.String()
}

func printPoll(poll tracker.Poll) {
	t := newTable()
	t.SetTitle(fmt.Sprintf("Current Follower Counts (%s)", poll.Date))
	t.AppendHeader(table.Row{"Name", "X Handle", "X Followers", "Instagram Handle", "Instagram Followers"})
	for _, row := range poll.Rows {
		t.AppendRow(table.Row{row.Name, row.XHandle, cell(row.X), row.InstagramHandle, cell(row.Instagram)})
	}
	t.Render()
}
