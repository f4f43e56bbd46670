package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/udpcp/udpcp/session"
)

// mockAddr implements net.Addr for state machine tests.
type mockAddr struct {
	address string
}

func (a *mockAddr) Network() string { return "udp" }
func (a *mockAddr) String() string  { return a.address }

func addrN(n int) *mockAddr {
	return &mockAddr{address: fmt.Sprintf("192.0.2.%d:4242", n)}
}

// memSink is an in-memory destination recording writes and closes.
type memSink struct {
	buf    bytes.Buffer
	writes int
	closed int
}

func (s *memSink) Write(p []byte) (int, error) {
	s.writes++
	return s.buf.Write(p)
}

func (s *memSink) Close() error {
	s.closed++
	return nil
}

// memStore opens memSinks keyed by target name.
type memStore struct {
	mu    sync.Mutex
	sinks map[string]*memSink
}

func newMemStore() *memStore {
	return &memStore{sinks: make(map[string]*memSink)}
}

func (m *memStore) Open(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sink := &memSink{}
	m.sinks[name] = sink
	return sink, nil
}

func (m *memStore) sink(name string) *memSink {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinks[name]
}

// failStore refuses every open, standing in for a broken filesystem.
type failStore struct{}

func (failStore) Open(string) (io.WriteCloser, error) {
	return nil, errors.New("disk full")
}

// brokenSinkStore opens sinks whose writes fail.
type brokenSinkStore struct{}

type brokenSink struct{}

func (brokenSink) Write([]byte) (int, error) { return 0, errors.New("io error") }
func (brokenSink) Close() error              { return nil }

func (brokenSinkStore) Open(string) (io.WriteCloser, error) {
	return brokenSink{}, nil
}

const testCredential = "g21-0e29"

// newTestServer builds a responder state machine without binding a socket.
func newTestServer(capacity int, store SinkOpener) *Server {
	return &Server{
		cfg: Config{
			Credential:  testCredential,
			MaxSessions: capacity,
		},
		store: store,
		table: session.NewTable(capacity),
		now:   time.Now,
	}
}
