package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mostracker/internal/assert"
	"mostracker/internal/components/telemetry"
	"strings"
	"sync"
)

const (
	report_store_load   = "store.load"
	report_store_ingest = "store.ingest"
	report_store_commit = "store.commit"
	report_log_records  = "log.records"
)

// Snapshot is what a backend read produces.
type Snapshot struct {
	Schema  Schema
	Records []Record
}

// Commit describes one durable write. All is the complete log after the
// write, Added is the suffix of All that is new. A migration commit has no
// Added records.
type Commit struct {
	All   []Record
	Added []Record
}

// Backend is durable storage for the log.
//
// note: fault injection point
type Backend interface {
	Name() string
	// Read returns an error satisfying errors.Is(err, fs.ErrNotExist) when
	// nothing was ever stored.
	Read(ctx context.Context) (Snapshot, error)
	// Commit must be all-or-nothing, a failed commit leaves the previous log intact.
	Commit(ctx context.Context, commit Commit) error
}

type IngestResult struct {
	Date Date
	// Accepted is false when the date already had a snapshot or the batch was empty.
	Accepted bool
	Added    int
	// Dropped counts rows skipped for a blank or repeated name.
	Dropped int
}

// Store owns the historical log: it loads it from a backend, guards the
// one-snapshot-per-day rule and persists every accepted batch.
type Store struct {
	backend Backend
	tel     telemetry.API

	mutex   sync.RWMutex
	log     *Log
	loaded  bool
	loadErr error
}

func NewStore(backend Backend, tel telemetry.API) *Store {
	assert.NotNil(backend)
	assert.NotNil(tel)

	return &Store{
		backend: backend,
		tel:     telemetry.NewScopedAPI("history", tel),
		log:     NewLog(),
	}
}

// Load (re)reads the log from the backend. Missing storage yields an empty
// log. Any other failure also leaves an empty log in place so readers keep
// working, but the error is returned and ingest is refused until a later
// Load succeeds.
func (s *Store) Load(ctx context.Context) (*Log, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (*Log, error) {
	s.loaded = true

	snapshot, err := s.backend.Read(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		s.tel.ReportDebug("no stored log, starting empty", s.backend.Name())
		s.log = NewLog()
		s.loadErr = nil
		return s.log, nil
	}
	if err != nil {
		err = fmt.Errorf("load %s: %w", s.backend.Name(), err)
		s.tel.ReportBroken(report_store_load, err)
		s.log = NewLog()
		s.loadErr = err
		return s.log, err
	}

	log, dropped := buildLog(snapshot.Schema, snapshot.Records)
	for _, r := range dropped {
		s.tel.ReportWarning(report_store_load, "duplicate record ignored", r.Date, r.Name)
	}
	if snapshot.Schema.Version < CurrentSchema.Version {
		s.tel.ReportWarning(
			report_store_load,
			"legacy schema, missing columns read as absent",
			snapshot.Schema.Version,
		)
	}
	s.tel.ReportCount(report_log_records, int64(log.Len()))

	s.log = log
	s.loadErr = nil
	return log, nil
}

// Log returns the current view of the log, it is never nil.
func (s *Store) Log() *Log {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.log
}

func (s *Store) HasSnapshotFor(date Date) bool {
	return s.Log().HasSnapshotFor(date)
}

// Ingest appends one day's batch and persists it. When any record already
// exists for `date` the whole batch is discarded, even if it carries entities
// the existing snapshot lacks.
func (s *Store) Ingest(ctx context.Context, date Date, rows []Row) (IngestResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result := IngestResult{Date: date}
	if _, err := ParseDate(string(date)); err != nil {
		return result, err
	}

	if !s.loaded {
		_, err := s.load(ctx)
		if err != nil {
			return result, fmt.Errorf("%w: %w", ErrPoisoned, err)
		}
	}
	if s.loadErr != nil {
		return result, fmt.Errorf("%w: %w", ErrPoisoned, s.loadErr)
	}

	if s.log.HasSnapshotFor(date) {
		s.tel.ReportDebug("snapshot already captured", date)
		return result, nil
	}

	added := make([]Record, 0, len(rows))
	seen := map[string]struct{}{}
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			s.tel.ReportWarning(report_store_ingest, "row without a name dropped", date)
			result.Dropped++
			continue
		}
		if _, dup := seen[name]; dup {
			s.tel.ReportWarning(report_store_ingest, "repeated name dropped", date, name)
			result.Dropped++
			continue
		}
		seen[name] = struct{}{}
		added = append(added, Record{
			Date:      date,
			Name:      name,
			Twitter:   row.Twitter,
			Instagram: row.Instagram,
		})
	}
	if len(added) == 0 {
		return result, nil
	}

	next := s.log.with(added)
	err := s.backend.Commit(ctx, Commit{All: next.records, Added: added})
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrPersist, s.backend.Name(), err)
		s.tel.ReportBroken(report_store_commit, err, date, len(added))
		return result, err
	}

	s.log = next
	result.Accepted = true
	result.Added = len(added)
	s.tel.ReportCount(report_log_records, int64(next.Len()))
	return result, nil
}

// Migrate rewrites a log loaded from an older schema in the current one.
// It returns the schema the log was in before.
func (s *Store) Migrate(ctx context.Context) (Schema, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.loaded || s.loadErr != nil {
		_, err := s.load(ctx)
		if err != nil {
			return Schema{}, err
		}
	}

	from := s.log.schema
	if from.Version >= CurrentSchema.Version {
		return from, nil
	}

	next := s.log.with(nil)
	err := s.backend.Commit(ctx, Commit{All: next.records})
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrPersist, s.backend.Name(), err)
		s.tel.ReportBroken(report_store_commit, err, "migrate", from.Version)
		return from, err
	}
	s.log = next
	return from, nil
}

// Export writes the current log in the current schema.
func (s *Store) Export(w io.Writer) error {
	return s.Log().Export(w)
}
