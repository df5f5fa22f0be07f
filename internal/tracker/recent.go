package tracker

import (
	"mostracker/internal/history"
	"sync"
)

// Failure is a poll whose snapshot could not be stored.
type Failure struct {
	Date history.Date
	Err  error
}

// Recent keeps the last saved poll for readers such as the dashboard, plus
// the failure of any later poll. A poll that was not saved never replaces
// the saved one.
type Recent struct {
	mutex   sync.RWMutex
	poll    Poll
	ok      bool
	failure *Failure
}

// Set records a poll whose ingest succeeded and clears any failure.
func (r *Recent) Set(poll Poll) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.poll = poll
	r.ok = true
	r.failure = nil
}

func (r *Recent) Fail(date history.Date, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.failure = &Failure{Date: date, Err: err}
}

func (r *Recent) Get() (Poll, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.poll, r.ok
}

// Failure returns the failure of the latest poll, nil when it was saved.
func (r *Recent) Failure() *Failure {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.failure
}
