package tracker

import (
	"context"
	"errors"
	"mostracker/internal/components/chrono"
	"mostracker/internal/components/telemetry"
	"mostracker/internal/history"
	"mostracker/internal/roster"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	counts map[string]int64
	calls  []string
	cancel context.CancelFunc
}

func (f *fakeFetcher) Followers(ctx context.Context, handle string) history.Count {
	f.calls = append(f.calls, handle)
	if f.cancel != nil {
		f.cancel()
	}
	n, ok := f.counts[handle]
	if !ok {
		return history.None
	}
	return history.Some(n)
}

type fakeNotifier struct {
	subjects []string
}

func (f *fakeNotifier) Notify(ctx context.Context, subject, body string) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

var testEntities = []roster.Entity{
	{Name: "A", Handles: map[history.Platform]string{history.X: "a_x", history.Instagram: "a_ig"}},
	{Name: "B", Handles: map[history.Platform]string{history.Instagram: "b_ig"}},
}

func newTestTracker(t testing.TB, at time.Time, backend history.Backend) (Tracker, *fakeFetcher, *fakeFetcher, *fakeNotifier) {
	xFetcher := &fakeFetcher{counts: map[string]int64{"a_x": 100}}
	igFetcher := &fakeFetcher{counts: map[string]int64{"a_ig": 50}}
	notifier := &fakeNotifier{}
	tel := telemetry.NewRecorder()

	tr := NewTracker(Options{
		Store: history.NewStore(backend, tel),
		LoadRoster: func() ([]roster.Entity, error) {
			return testEntities, nil
		},
		Fetchers: map[history.Platform]Fetcher{
			history.X:         xFetcher,
			history.Instagram: igFetcher,
		},
		Time:     chrono.FixedImpl{At: at},
		Tel:      tel,
		Notifier: notifier,
	})
	return tr, xFetcher, igFetcher, notifier
}

func TestPoll(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.csv")
	at := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	tr, xFetcher, igFetcher, _ := newTestTracker(t, at, history.NewCSVFile(path))

	poll, err := tr.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, history.Date("2024-01-01"), poll.Date)
	require.True(t, poll.Ingest.Accepted)
	require.Equal(t, []LiveRow{
		{Name: "A", XHandle: "a_x", X: history.Some(100), InstagramHandle: "a_ig", Instagram: history.Some(50)},
		{Name: "B", InstagramHandle: "b_ig", X: history.None, Instagram: history.None},
	}, poll.Rows)

	// B has no X handle, so the X fetcher never sees it
	require.Equal(t, []string{"a_x"}, xFetcher.calls)
	require.Equal(t, []string{"a_ig", "b_ig"}, igFetcher.calls)

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Date,Name,Twitter Followers,Instagram Followers\n2024-01-01,A,100,50\n2024-01-01,B,,\n", string(contents))

	// a second poll the same day still shows live counts but stores nothing
	xFetcher.counts["a_x"] = 101
	poll, err = tr.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.False(t, poll.Ingest.Accepted)
	require.Equal(t, history.Some(101), poll.Rows[0].X)
	require.Equal(t, 2, tr.Store().Log().Len())
}

func TestPollUsesClockLocation(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	// 20:00 UTC on the 1st is already the 2nd in Kolkata
	at := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC).In(kolkata)
	tr, _, _, _ := newTestTracker(t, at, history.NewCSVFile(filepath.Join(t.TempDir(), "data.csv")))
	require.Equal(t, history.Date("2024-01-02"), tr.Today())
}

type brokenBackend struct{}

func (brokenBackend) Name() string { return "broken" }

func (brokenBackend) Read(ctx context.Context) (history.Snapshot, error) {
	return history.Snapshot{}, os.ErrNotExist
}

func (brokenBackend) Commit(ctx context.Context, commit history.Commit) error {
	return errors.New("read-only file system")
}

func TestPollPersistFailure(t *testing.T) {
	ctx := context.Background()
	tr, _, _, notifier := newTestTracker(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), brokenBackend{})

	poll, err := tr.Poll(ctx)
	require.ErrorIs(t, err, history.ErrPersist)
	require.Len(t, poll.Rows, 2)
	require.Len(t, notifier.subjects, 1)
	require.Contains(t, notifier.subjects[0], "2024-01-01")
}

func TestPollInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "data.csv")
	tr, xFetcher, _, _ := newTestTracker(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), history.NewCSVFile(path))
	xFetcher.cancel = cancel

	_, err := tr.Poll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, tr.Store().HasSnapshotFor("2024-01-01"))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestPollRosterFailure(t *testing.T) {
	tr, _, _, _ := newTestTracker(t, time.Now(), history.NewCSVFile(filepath.Join(t.TempDir(), "data.csv")))
	tr.loadRoster = func() ([]roster.Entity, error) {
		return nil, errors.New("no such file")
	}
	_, err := tr.Poll(context.Background())
	require.Error(t, err)
}
