package client

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/udpcp/udpcp/limits"
	"github.com/udpcp/udpcp/transport"
)

// fakeResponder is a scripted peer on a loopback UDP socket. The script
// receives each decoded datagram in arrival order and returns the reply to
// send, or nil to stay silent (simulating loss).
type fakeResponder struct {
	t    *testing.T
	conn net.PacketConn
	done chan struct{}

	mu       sync.Mutex
	received []*transport.Packet
}

func newFakeResponder(t *testing.T, script func(index int, pkt *transport.Packet) *transport.Packet) *fakeResponder {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind fake responder: %v", err)
	}

	f := &fakeResponder{t: t, conn: conn, done: make(chan struct{})}
	go f.serve(script)
	t.Cleanup(f.close)

	return f
}

func (f *fakeResponder) serve(script func(int, *transport.Packet) *transport.Packet) {
	defer close(f.done)

	buf := make([]byte, limits.BufferSize)
	for i := 0; ; i++ {
		n, addr, err := f.conn.ReadFrom(buf)
		if err != nil {
			return
		}

		pkt, err := transport.ParsePacket(buf[:n])
		if err != nil {
			continue
		}

		f.mu.Lock()
		f.received = append(f.received, pkt)
		f.mu.Unlock()

		if reply := script(i, pkt); reply != nil {
			if _, err := f.conn.WriteTo(reply.Serialize(), addr); err != nil {
				return
			}
		}
	}
}

func (f *fakeResponder) addr() string {
	return f.conn.LocalAddr().String()
}

func (f *fakeResponder) close() {
	f.conn.Close()
	select {
	case <-f.done:
	case <-time.After(time.Second):
		f.t.Error("fake responder did not stop")
	}
}

func (f *fakeResponder) packets() []*transport.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*transport.Packet, len(f.received))
	copy(out, f.received)
	return out
}

// ackEverything is the cooperative script: every packet gets a clean ACK
// echoing its sequence bit.
func ackEverything(_ int, pkt *transport.Packet) *transport.Packet {
	return transport.NewAck(pkt.Seq, "")
}

func dialFake(t *testing.T, f *fakeResponder, cfg Config) *Client {
	t.Helper()

	cfg.ServerAddr = f.addr()
	if cfg.Credential == "" {
		cfg.Credential = "g21-0e29"
	}
	if cfg.ReceiveTimeout == 0 {
		cfg.ReceiveTimeout = 200 * time.Millisecond
	}

	c, err := Dial(cfg)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}
