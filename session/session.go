// Package session tracks per-client responder state.
//
// Each remote endpoint that speaks to the responder owns exactly one
// Session, which records how far through the handshake that endpoint has
// progressed, which DATA sequence bit is expected next, and the open sink
// receiving the transferred bytes.
package session

import (
	"io"
	"net"
	"time"
)

// Phase represents a session's position in the four-phase handshake.
type Phase uint8

const (
	// PhaseUnauthenticated indicates no credential has been accepted yet.
	PhaseUnauthenticated Phase = iota
	// PhaseAuthenticated indicates the credential was accepted and a write
	// request is awaited.
	PhaseAuthenticated
	// PhaseTransferring indicates the sink is open and DATA blocks are
	// being applied.
	PhaseTransferring
)

// String returns a readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseTransferring:
		return "transferring"
	default:
		return "invalid"
	}
}

// Session is the responder-side state for one remote endpoint. It is owned
// by the dispatch goroutine; the endpoint string is the sole identity key.
type Session struct {
	Endpoint     string
	Addr         net.Addr
	Phase        Phase
	ExpectedSeq  byte
	Sink         io.WriteCloser
	LastActivity time.Time
}

// Touch records activity so the idle sweep keeps the session alive.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// ToggleSeq advances the expected DATA sequence bit (0→1→0…). It must only
// be called after a block has been successfully applied to the sink.
func (s *Session) ToggleSeq() {
	s.ExpectedSeq = 1 - s.ExpectedSeq
}

// CloseSink closes the open sink, if any. It is safe to call repeatedly;
// the sink is released exactly once.
func (s *Session) CloseSink() error {
	if s.Sink == nil {
		return nil
	}
	err := s.Sink.Close()
	s.Sink = nil
	return err
}
