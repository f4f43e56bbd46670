// Package server implements the responding peer: one UDP endpoint
// multiplexing many concurrent transfer sessions, each running its own
// small state machine.
//
// A single dispatch goroutine owns every session: it decodes one datagram,
// runs it through the state machine, sends at most one acknowledgment and
// only then waits for the next datagram. Sessions are therefore
// time-multiplexed purely by datagram arrival order and the session table
// needs no coordination beyond that one control flow.
package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udpcp/udpcp/session"
	"github.com/udpcp/udpcp/transport"
)

const (
	// readTick bounds how long a blocking read runs before the loop checks
	// for cancellation and sweeps idle sessions.
	readTick = 100 * time.Millisecond

	// sweepInterval is how often the idle-session sweep runs.
	sweepInterval = time.Second

	// DefaultIdleTimeout is the default threshold after which an abandoned
	// session is evicted and its sink closed.
	DefaultIdleTimeout = 5 * time.Minute
)

// Config holds the responder's deployment parameters.
type Config struct {
	// ListenAddr is the UDP address to listen on.
	ListenAddr string
	// Credential is the accepted credential prefix for HELLO payloads.
	Credential string
	// MaxSessions caps concurrent sessions; 0 means session.DefaultCapacity.
	MaxSessions int
	// IdleTimeout evicts sessions with no activity for this long; 0 disables
	// eviction and abandoned sessions then hold their slots forever.
	IdleTimeout time.Duration
}

// DefaultConfig returns the reference deployment parameters.
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":20252",
		MaxSessions: session.DefaultCapacity,
		IdleTimeout: DefaultIdleTimeout,
	}
}

// Server is the responding peer.
type Server struct {
	cfg   Config
	store SinkOpener
	table *session.Table
	tr    *transport.UDPTransport
	now   func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a responder bound to cfg.ListenAddr, storing transfers
// through the given sink opener.
func New(cfg Config, store SinkOpener) (*Server, error) {
	tr, err := transport.NewUDPTransport(cfg.ListenAddr)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:   cfg,
		store: store,
		table: session.NewTable(cfg.MaxSessions),
		tr:    tr,
		now:   time.Now,
		done:  make(chan struct{}),
	}, nil
}

// LocalAddr returns the bound UDP address.
func (s *Server) LocalAddr() net.Addr {
	return s.tr.LocalAddr()
}

// Sessions returns the number of active sessions.
func (s *Server) Sessions() int {
	return s.table.Len()
}

// Start launches the dispatch loop. The server runs until Close is called.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	logrus.WithFields(logrus.Fields{
		"function":     "Start",
		"listen_addr":  s.tr.LocalAddr().String(),
		"max_sessions": s.table.Capacity(),
		"idle_timeout": s.cfg.IdleTimeout,
	}).Info("Responder starting")

	go s.serve(ctx)
}

// Close stops the dispatch loop, closes the socket and releases every
// session together with any open sinks.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.tr.Close()
	if s.cancel != nil {
		<-s.done
	}
	s.table.ReleaseAll()

	logrus.WithFields(logrus.Fields{
		"function": "Close",
	}).Info("Responder stopped")

	return err
}

// serve is the single-threaded dispatch loop: wait for one datagram, run it
// through the state machine, send at most one reply, repeat.
func (s *Server) serve(ctx context.Context) {
	defer close(s.done)

	lastSweep := s.now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if now := s.now(); now.Sub(lastSweep) >= sweepInterval {
			s.table.EvictIdle(s.cfg.IdleTimeout, now)
			lastSweep = now
		}

		packet, addr, err := s.tr.ReadPacket(s.now().Add(readTick))
		if err != nil {
			switch {
			case transport.IsTimeout(err):
				continue
			case errors.Is(err, transport.ErrPacketTooShort):
				// Malformed datagram: already logged, drop with no reply.
				continue
			case errors.Is(err, net.ErrClosed):
				return
			default:
				logrus.WithFields(logrus.Fields{
					"function": "serve",
					"error":    err.Error(),
				}).Warn("Read failed")
				continue
			}
		}

		reply := s.handlePacket(addr, packet)
		if reply == nil {
			continue
		}

		if err := s.tr.Send(reply, addr); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "serve",
				"to":       addr.String(),
				"error":    err.Error(),
			}).Warn("Failed to send acknowledgment")
		}
	}
}
