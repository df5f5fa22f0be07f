package history

import (
	"io"
	"iter"
	"maps"
	"slices"
	"strings"
)

type recordKey struct {
	name string
	date Date
}

// Log is an immutable view of the historical log. Records keep insertion
// order, at most one record exists per (name, date).
type Log struct {
	schema  Schema
	records []Record
	days    map[Date]int
	keys    map[recordKey]struct{}
}

// NewLog returns an empty log in the current schema.
func NewLog() *Log {
	return &Log{
		schema: CurrentSchema,
		days:   map[Date]int{},
		keys:   map[recordKey]struct{}{},
	}
}

// buildLog indexes records, later duplicates of a (name, date) key are
// returned as dropped instead of being kept.
func buildLog(schema Schema, records []Record) (log *Log, dropped []Record) {
	log = NewLog()
	log.schema = schema
	log.records = make([]Record, 0, len(records))
	for _, r := range records {
		k := recordKey{name: r.Name, date: r.Date}
		if _, exists := log.keys[k]; exists {
			dropped = append(dropped, r)
			continue
		}
		log.keys[k] = struct{}{}
		log.days[r.Date]++
		log.records = append(log.records, r)
	}
	return log, dropped
}

// with returns a new log with `added` appended, the receiver is untouched.
// The caller guarantees `added` introduces no existing key.
func (l *Log) with(added []Record) *Log {
	next := &Log{
		schema:  CurrentSchema,
		records: append(slices.Clip(l.records), added...),
		days:    maps.Clone(l.days),
		keys:    maps.Clone(l.keys),
	}
	for _, r := range added {
		next.keys[recordKey{name: r.Name, date: r.Date}] = struct{}{}
		next.days[r.Date]++
	}
	return next
}

// Schema is the layout the log was loaded from.
func (l *Log) Schema() Schema {
	return l.schema
}

func (l *Log) Len() int {
	return len(l.records)
}

// Records returns a copy of every record in insertion order.
func (l *Log) Records() []Record {
	return slices.Clone(l.records)
}

// HasSnapshotFor reports whether any entity has a record on `date`.
func (l *Log) HasSnapshotFor(date Date) bool {
	return l.days[date] > 0
}

// Dates returns every date with a record, ascending.
func (l *Log) Dates() []Date {
	dates := slices.Collect(maps.Keys(l.days))
	slices.Sort(dates)
	return dates
}

// DistinctEntities returns every name that appears in the log, sorted. It
// does not depend on the current roster.
func (l *Log) DistinctEntities() []string {
	seen := map[string]struct{}{}
	for _, r := range l.records {
		seen[r.Name] = struct{}{}
	}
	names := slices.Collect(maps.Keys(seen))
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return names
}

// QuerySeries yields the (date, count) pairs of an entity on a platform in
// ascending date order. Absent counts are yielded too so callers can render
// gaps. Every range over the sequence starts from the beginning.
func (l *Log) QuerySeries(name string, platform Platform) iter.Seq2[Date, Count] {
	return func(yield func(Date, Count) bool) {
		var matches []Record
		for _, r := range l.records {
			if r.Name == name {
				matches = append(matches, r)
			}
		}
		slices.SortStableFunc(matches, func(a, b Record) int {
			return strings.Compare(string(a.Date), string(b.Date))
		})
		for _, r := range matches {
			if !yield(r.Date, r.Count(platform)) {
				return
			}
		}
	}
}

// Latest returns the record of an entity with the greatest date.
func (l *Log) Latest(name string) (Record, bool) {
	var latest Record
	found := false
	for _, r := range l.records {
		if r.Name != name {
			continue
		}
		if !found || r.Date > latest.Date {
			latest = r
			found = true
		}
	}
	return latest, found
}

// Export writes the full log as csv in the current schema.
func (l *Log) Export(w io.Writer) error {
	return encodeCSV(w, l.records)
}
