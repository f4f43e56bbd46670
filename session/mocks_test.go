package session

import (
	"fmt"
)

// mockAddr implements net.Addr for table tests.
type mockAddr struct {
	address string
}

func (a *mockAddr) Network() string { return "udp" }
func (a *mockAddr) String() string  { return a.address }

func addrN(n int) *mockAddr {
	return &mockAddr{address: fmt.Sprintf("192.0.2.%d:4242", n)}
}

// mockSink counts writes and closes.
type mockSink struct {
	written []byte
	closed  int
}

func (s *mockSink) Write(p []byte) (int, error) {
	s.written = append(s.written, p...)
	return len(p), nil
}

func (s *mockSink) Close() error {
	s.closed++
	return nil
}
