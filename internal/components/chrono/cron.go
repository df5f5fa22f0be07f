package chrono

import (
	"context"
	"fmt"
	"mostracker/internal/components/telemetry"
	"strings"

	"github.com/robfig/cron/v3"
)

const report_cron_job = "cron.job"

// CronAPI schedules callbacks, specs are standard 5 field cron expressions
// or descriptors like "@every 5m".
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron runs jobs with `github.com/robfig/cron/v3`. A job that panics
// is recovered and reported instead of taking down the process.
type StandardCron struct {
	cron *cron.Cron
}

// NewStandardCron starts a scheduler whose specs are read in the location of `clock`.
func NewStandardCron(clock API, tel telemetry.API) StandardCron {
	logger := cronLogger{tel: telemetry.NewScopedAPI("chrono", tel)}
	c := cron.New(
		cron.WithLocation(clock.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	c.Start()
	return StandardCron{cron: c}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// Stop prevents new runs, then waits for running jobs or ctx, whichever is first.
func (s StandardCron) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts telemetry to cron.Logger.
type cronLogger struct {
	tel telemetry.API
}

func pairs(keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, fmt.Sprintf("%v=%v", keysAndValues[i], keysAndValues[i+1]))
	}
	return out
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug("cron "+strings.TrimSpace(msg), pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	params := append([]any{fmt.Errorf("%s: %w", msg, err)}, pairs(keysAndValues)...)
	l.tel.ReportBroken(report_cron_job, params...)
}
