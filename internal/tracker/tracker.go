package tracker

import (
	"context"
	"fmt"
	"mostracker/internal/assert"
	"mostracker/internal/components/chrono"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/history"
	"mostracker/internal/roster"
)

const (
	report_tracker_poll    = "tracker.poll"
	report_tracker_roster  = "tracker.roster"
	report_tracker_notify  = "tracker.notify"
	report_tracker_fetched = "tracker.fetched"
)

// Fetcher reads the follower count of a handle on one platform. Failures
// are absent counts, fetchers report the reason themselves.
type Fetcher interface {
	Followers(ctx context.Context, handle string) history.Count
}

// Notifier is told when a poll could not persist its snapshot.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// LoadRoster returns the entities to poll, it is called once per poll.
type LoadRoster func() ([]roster.Entity, error)

type Options struct {
	Store      *history.Store
	LoadRoster LoadRoster
	Fetchers   map[history.Platform]Fetcher
	Time       chrono.API
	Tel        telemetry.API
	// Notifier is optional.
	Notifier Notifier
}

type Tracker struct {
	store      *history.Store
	loadRoster LoadRoster
	fetchers   map[history.Platform]Fetcher
	time       chrono.API
	tel        telemetry.API
	notifier   Notifier
}

func NewTracker(opts Options) Tracker {
	assert.NotNil(opts.Store)
	assert.NotNil(opts.LoadRoster)
	assert.NotNil(opts.Time)
	assert.NotNil(opts.Tel)

	return Tracker{
		store:      opts.Store,
		loadRoster: opts.LoadRoster,
		fetchers:   opts.Fetchers,
		time:       opts.Time,
		tel:        telemetry.NewScopedAPI("tracker", opts.Tel),
		notifier:   opts.Notifier,
	}
}

// LiveRow is one line of the current follower table.
type LiveRow struct {
	Name            string
	XHandle         string
	X               history.Count
	InstagramHandle string
	Instagram       history.Count
}

type Poll struct {
	Date   history.Date
	Rows   []LiveRow
	Ingest history.IngestResult
	// Renamed lists roster names that look like a historical entity under
	// another name.
	Renamed []roster.NameMatch
}

func (t Tracker) Store() *history.Store {
	return t.store
}

// Today is the current date in the configured timezone.
func (t Tracker) Today() history.Date {
	return history.DateOf(t.time.Now())
}

func (t Tracker) fetch(ctx context.Context, p history.Platform, handle string) history.Count {
	fetcher, ok := t.fetchers[p]
	if !ok || fetcher == nil || handle == "" {
		return history.None
	}
	return fetcher.Followers(ctx, handle)
}

// Poll loads the log and the roster, fetches every entity and ingests the
// batch for today. A failure to load or persist the log is returned, the
// rows fetched so far are still part of the returned poll.
func (t Tracker) Poll(ctx context.Context) (Poll, error) {
	poll := Poll{Date: t.Today()}

	log, err := t.store.Load(ctx)
	if err != nil {
		t.tel.ReportBroken(report_tracker_poll, err)
		t.notify(ctx, poll.Date, err)
		return poll, err
	}

	entities, err := t.loadRoster()
	if err != nil {
		err = fmt.Errorf("load roster: %w", err)
		t.tel.ReportBroken(report_tracker_roster, err)
		return poll, err
	}

	poll.Renamed = roster.SimilarNames(entities, log.DistinctEntities(), roster.DefaultSimilarity)
	for _, match := range poll.Renamed {
		t.tel.ReportWarning(report_tracker_roster, "roster name resembles a historical name", match.Roster, match.Historical, match.Score)
	}

	rows := make([]history.Row, 0, len(entities))
	var fetched int64
	for _, e := range entities {
		live := LiveRow{
			Name:            e.Name,
			XHandle:         e.Handle(history.X),
			InstagramHandle: e.Handle(history.Instagram),
		}
		live.X = t.fetch(ctx, history.X, live.XHandle)
		live.Instagram = t.fetch(ctx, history.Instagram, live.InstagramHandle)

		for _, c := range []history.Count{live.X, live.Instagram} {
			if c.Valid {
				fetched++
			}
		}
		poll.Rows = append(poll.Rows, live)
		rows = append(rows, history.Row{
			Name:      live.Name,
			Twitter:   live.X,
			Instagram: live.Instagram,
		})
	}
	t.tel.ReportCount(report_tracker_fetched, fetched)

	// an interrupted poll would otherwise claim the day with mostly absent counts
	if err := ctx.Err(); err != nil {
		return poll, err
	}

	poll.Ingest, err = t.store.Ingest(ctx, poll.Date, rows)
	if err != nil {
		t.notify(ctx, poll.Date, err)
		return poll, err
	}
	if poll.Ingest.Accepted {
		t.tel.ReportDebug("snapshot stored", poll.Date, poll.Ingest.Added)
	}
	return poll, nil
}

func (t Tracker) notify(ctx context.Context, date history.Date, cause error) {
	if t.notifier == nil {
		return
	}
	err := t.notifier.Notify(
		ctx,
		fmt.Sprintf("follower snapshot for %s was not saved", date),
		fmt.Sprintf("The poll for %s could not persist the historical log:\n\n%s\n", date, cause),
	)
	if err != nil {
		t.tel.ReportBroken(report_tracker_notify, err)
	}
}
