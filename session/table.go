package session

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultCapacity is the default ceiling on concurrent sessions.
const DefaultCapacity = 10

// ErrCapacityExceeded indicates the table already holds the maximum number
// of concurrent sessions. The caller drops the datagram silently: there is
// no session context to send an error reply from.
var ErrCapacityExceeded = errors.New("session table full")

// Table is a bounded registry of sessions keyed by remote endpoint.
type Table struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*Session
}

// NewTable creates a session table with the given capacity ceiling.
// A non-positive capacity falls back to DefaultCapacity.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		capacity: capacity,
		sessions: make(map[string]*Session, capacity),
	}
}

// Get returns the session for an endpoint, if one exists.
func (t *Table) Get(endpoint string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[endpoint]
	return s, ok
}

// GetOrCreate returns the existing session for addr or allocates a new one
// in PhaseUnauthenticated. It returns ErrCapacityExceeded when the table is
// full and the endpoint is unknown.
func (t *Table) GetOrCreate(addr net.Addr, now time.Time) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	endpoint := addr.String()
	if s, ok := t.sessions[endpoint]; ok {
		return s, nil
	}

	if len(t.sessions) >= t.capacity {
		logrus.WithFields(logrus.Fields{
			"function": "GetOrCreate",
			"endpoint": endpoint,
			"capacity": t.capacity,
		}).Warn("Session table full, dropping datagram from new endpoint")
		return nil, ErrCapacityExceeded
	}

	s := &Session{
		Endpoint:     endpoint,
		Addr:         addr,
		Phase:        PhaseUnauthenticated,
		LastActivity: now,
	}
	t.sessions[endpoint] = s

	logrus.WithFields(logrus.Fields{
		"function": "GetOrCreate",
		"endpoint": endpoint,
		"active":   len(t.sessions),
	}).Debug("Session allocated")

	return s, nil
}

// Release frees the slot for an endpoint, closing any open sink. The slot
// is immediately reusable by a new endpoint.
func (t *Table) Release(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[endpoint]
	if !ok {
		return
	}

	if err := s.CloseSink(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Release",
			"endpoint": endpoint,
			"error":    err.Error(),
		}).Warn("Failed to close sink while releasing session")
	}
	delete(t.sessions, endpoint)

	logrus.WithFields(logrus.Fields{
		"function": "Release",
		"endpoint": endpoint,
		"active":   len(t.sessions),
	}).Debug("Session released")
}

// EvictIdle releases every session whose last activity is older than the
// threshold, closing any open sinks. It returns the number of sessions
// evicted. A non-positive threshold disables eviction.
func (t *Table) EvictIdle(threshold time.Duration, now time.Time) int {
	if threshold <= 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for endpoint, s := range t.sessions {
		idle := now.Sub(s.LastActivity)
		if idle < threshold {
			continue
		}

		if err := s.CloseSink(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "EvictIdle",
				"endpoint": endpoint,
				"error":    err.Error(),
			}).Warn("Failed to close sink while evicting session")
		}
		delete(t.sessions, endpoint)
		evicted++

		logrus.WithFields(logrus.Fields{
			"function": "EvictIdle",
			"endpoint": endpoint,
			"phase":    s.Phase.String(),
			"idle":     idle,
		}).Info("Evicted idle session")
	}

	return evicted
}

// ReleaseAll frees every session and closes any open sinks. It is used at
// process shutdown so no sink outlives the responder.
func (t *Table) ReleaseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for endpoint, s := range t.sessions {
		if err := s.CloseSink(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ReleaseAll",
				"endpoint": endpoint,
				"error":    err.Error(),
			}).Warn("Failed to close sink during shutdown")
		}
		delete(t.sessions, endpoint)
	}
}

// Len returns the number of active sessions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Capacity returns the session ceiling.
func (t *Table) Capacity() int {
	return t.capacity
}
