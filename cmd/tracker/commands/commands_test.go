package commands

import (
	"context"
	"errors"
	"mostracker/internal/components/chrono"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/config"
	"mostracker/internal/history"
	"mostracker/internal/roster"
	"mostracker/internal/tracker"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig(t testing.TB) config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.Roster = filepath.Join(dir, "roster.csv")
	cfg.Store.File = filepath.Join(dir, "data.csv")
	return cfg
}

func TestNewApp(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	err := os.WriteFile(cfg.Roster, []byte("Name,X Handle,Insta Handle\nA,,\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}

	a, err := newApp(ctx, cfg, telemetry.NewRecorder())
	if err != nil {
		t.Fatal(err)
	}
	defer a.close()

	// without handles nothing is fetched, so the poll stays offline
	poll, err := a.tracker.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, poll.Ingest.Accepted)
	require.Equal(t, []tracker.LiveRow{{Name: "A"}}, poll.Rows)

	out := filepath.Join(t.TempDir(), history.ExportFilename)
	err = writeExport(a.store, out)
	if err != nil {
		t.Fatal(err)
	}
	contents, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Date,Name,Twitter Followers,Instagram Followers\n"+poll.Date.String()+",A,,\n", string(contents))
}

func TestNewAppBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Timezone = "Mars/Olympus"
	_, err := newApp(context.Background(), cfg, telemetry.NewRecorder())
	require.ErrorContains(t, err, "timezone")
}

func TestPollerSkipsOverlap(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	err := os.WriteFile(cfg.Roster, []byte("Name,X Handle,Insta Handle\nA,,\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	a, err := newApp(ctx, cfg, telemetry.NewRecorder())
	if err != nil {
		t.Fatal(err)
	}
	defer a.close()

	p := &poller{ctx: ctx, tracker: a.tracker, recent: &tracker.Recent{}}
	p.mutex.Lock()
	p.poll("test")
	p.mutex.Unlock()
	_, ok := p.recent.Get()
	require.False(t, ok)

	p.poll("test")
	poll, ok := p.recent.Get()
	require.True(t, ok)
	require.Len(t, poll.Rows, 1)
}

type fullDisk struct{}

func (fullDisk) Name() string { return "full-disk" }

func (fullDisk) Read(ctx context.Context) (history.Snapshot, error) {
	return history.Snapshot{}, os.ErrNotExist
}

func (fullDisk) Commit(ctx context.Context, commit history.Commit) error {
	return errors.New("disk full")
}

type fixedFetcher int64

func (f fixedFetcher) Followers(ctx context.Context, handle string) history.Count {
	return history.Some(int64(f))
}

func TestPollerUnsavedPollIsNotLive(t *testing.T) {
	ctx := context.Background()
	tel := telemetry.NewRecorder()
	store := history.NewStore(fullDisk{}, tel)
	tr := tracker.NewTracker(tracker.Options{
		Store: store,
		LoadRoster: func() ([]roster.Entity, error) {
			return []roster.Entity{{Name: "A", Handles: map[history.Platform]string{history.X: "a_x"}}}, nil
		},
		Fetchers: map[history.Platform]tracker.Fetcher{history.X: fixedFetcher(100)},
		Time:     chrono.FixedImpl{At: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		Tel:      tel,
	})

	recent := &tracker.Recent{}
	saved := tracker.Poll{Date: "2023-12-31", Rows: []tracker.LiveRow{{Name: "A", X: history.Some(90)}}}
	recent.Set(saved)

	p := &poller{ctx: ctx, tracker: tr, recent: recent}
	p.poll("test")

	poll, ok := recent.Get()
	require.True(t, ok)
	require.Equal(t, saved, poll)

	failure := recent.Failure()
	require.NotNil(t, failure)
	require.Equal(t, history.Date("2024-01-01"), failure.Date)
	require.ErrorIs(t, failure.Err, history.ErrPersist)
	require.Equal(t, 0, store.Log().Len())
}

func TestPollerRecoversPanics(t *testing.T) {
	ctx := context.Background()
	tel := telemetry.NewRecorder()
	tr := tracker.NewTracker(tracker.Options{
		Store: history.NewStore(fullDisk{}, tel),
		LoadRoster: func() ([]roster.Entity, error) {
			panic("roster exploded")
		},
		Time: chrono.FixedImpl{At: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		Tel:  tel,
	})

	recent := &tracker.Recent{}
	p := &poller{ctx: ctx, tracker: tr, recent: recent}
	require.NotPanics(t, func() { p.poll("test") })

	_, ok := recent.Get()
	require.False(t, ok)
	require.NotNil(t, recent.Failure())
	require.ErrorContains(t, recent.Failure().Err, "roster exploded")

	// the lock is released so the next tick can poll again
	require.True(t, p.mutex.TryLock())
	p.mutex.Unlock()
}

type unflushedFile struct {
	strings.Builder
}

func (*unflushedFile) Close() error {
	return errors.New("no space left on device")
}

func TestExportReportsCloseError(t *testing.T) {
	ctx := context.Background()
	store := history.NewStore(history.NewCSVFile(filepath.Join(t.TempDir(), "data.csv")), telemetry.NewRecorder())
	_, err := store.Ingest(ctx, "2024-01-01", []history.Row{{Name: "A", Twitter: history.Some(1)}})
	if err != nil {
		t.Fatal(err)
	}

	out := &unflushedFile{}
	err = exportTo(store, "out.csv", out)
	require.ErrorContains(t, err, "no space left on device")
	require.ErrorContains(t, err, "out.csv")
	require.NotEmpty(t, out.String())

	err = writeExport(store, filepath.Join(t.TempDir(), "missing", "out.csv"))
	require.Error(t, err)
}
