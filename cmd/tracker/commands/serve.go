package commands

import (
	"context"
	"fmt"
	"log/slog"
	"mostracker/internal/components/chrono"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/dashboard"
	"mostracker/internal/serviceutil"
	"mostracker/internal/tracker"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

// poller runs polls one at a time, a tick that lands while a poll is still
// running is skipped.
type poller struct {
	ctx     context.Context
	tracker tracker.Tracker
	recent  *tracker.Recent
	mutex   sync.Mutex
}

func (p *poller) poll(reason string) {
	if !p.mutex.TryLock() {
		slog.Info("poll already running, skipping", "reason", reason)
		return
	}
	defer p.mutex.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("poll panicked: %v", r)
			slog.Error("poll failed", "reason", reason, "err", err)
			p.recent.Fail(p.tracker.Today(), err)
		}
	}()

	slog.Info("polling", "reason", reason)
	poll, err := p.tracker.Poll(p.ctx)
	if err != nil {
		// the tracker already reported and notified, the next tick retries
		slog.Error("poll failed", "date", poll.Date, "err", err)
		p.recent.Fail(poll.Date, err)
		return
	}
	p.recent.Set(poll)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the dashboard and polls on startup, every refresh and on the daily cron.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		ctx, cancel := serviceutil.SignalContext(cmd.Context())
		defer cancel()

		shutdownMetrics, err := telemetry.SetupMetrics(ctx, "mostracker", cfg.Telemetry)
		if err != nil {
			serviceutil.Fatal("failed to setup metrics", err)
		}
		defer shutdownMetrics(context.Background())

		tel, err := telemetry.NewMeteredAPI(telemetry.SlogAPI{}, otel.Meter("mostracker"))
		if err != nil {
			serviceutil.Fatal("failed to create meters", err)
		}
		telemetry.InstrumentPerfStats(ctx, tel)

		a, err := newApp(ctx, cfg, tel)
		if err != nil {
			serviceutil.Fatal("failed to initialize", err)
		}
		defer a.close()

		_, err = a.store.Load(ctx)
		if err != nil {
			slog.Error("history could not be loaded, serving an empty log", "err", err)
		}

		p := &poller{ctx: ctx, tracker: a.tracker, recent: &tracker.Recent{}}

		cron := chrono.NewStandardCron(a.time, tel)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), time.Second*30)
			defer cancel()
			cron.Stop(stopCtx)
		}()

		err = cron.Cron(cfg.Server.PollCron, func() { p.poll("daily") })
		if err != nil {
			a.close()
			serviceutil.Fatal("invalid poll cron", err)
		}
		err = cron.Cron(fmt.Sprintf("@every %dm", cfg.Server.RefreshMinutes), func() { p.poll("refresh") })
		if err != nil {
			a.close()
			serviceutil.Fatal("invalid refresh interval", err)
		}
		go p.poll("startup")

		server := dashboard.NewServer(dashboard.Options{
			Store:          a.store,
			Live:           p.recent,
			RefreshMinutes: cfg.Server.RefreshMinutes,
			Tel:            tel,
		})
		err = serviceutil.ServeHttp(ctx, cfg.Server.Port, server.Router())
		if err != nil {
			slog.Error("http server stopped", "err", err)
		}
	},
}
