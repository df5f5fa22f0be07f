package telemetry

import "strings"

// API is what every component reports through instead of logging directly.
// Tests swap in a Recorder to assert on what was reported.
type API interface {
	// ReportBroken reports a failure an operator has to act on, such as a log
	// that cannot be read or a snapshot that could not be written.
	//
	// `id` names the component, never the line: a failed rename inside the csv
	// backend is `store.commit`, the rename itself goes in the params. Ids are
	// lowercase, words inside one segment are joined with dashes.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something that degraded a result without failing
	// it, a follower count that could not be fetched is the common case.
	ReportWarning(id string, params ...any)

	// ReportDebug is for tracing a run, it is not kept in production.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current value of a quantity (records in the log,
	// counts fetched in a poll). Values are gauges and are not meant to be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id or message with a namespace, packages create
// one in their constructors so their `report_...` ids stay short.
type ScopedAPI struct {
	prefix string
	inner  API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	if scoped, ok := inner.(ScopedAPI); ok {
		return ScopedAPI{prefix: scoped.prefix + namespace + ".", inner: scoped.inner}
	}
	return ScopedAPI{prefix: namespace + ".", inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	var b strings.Builder
	b.WriteString(s.prefix)
	b.WriteString(id)
	return b.String()
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
