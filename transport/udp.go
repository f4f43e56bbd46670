package transport

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udpcp/udpcp/limits"
)

// UDPTransport wraps a single UDP endpoint shared by every session.
// It is driven by one goroutine: reads are deadline-sliced so the caller's
// dispatch loop can observe cancellation between datagrams.
type UDPTransport struct {
	conn   net.PacketConn
	buffer []byte
}

// NewUDPTransport creates a UDP transport listening on the given address.
func NewUDPTransport(listenAddr string) (*UDPTransport, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewUDPTransport",
		"local_addr": conn.LocalAddr().String(),
	}).Info("UDP transport listening")

	return &UDPTransport{
		conn:   conn,
		buffer: make([]byte, limits.BufferSize),
	}, nil
}

// Send serializes and sends a packet to the specified address.
func (t *UDPTransport) Send(packet *Packet, addr net.Addr) error {
	_, err := t.conn.WriteTo(packet.Serialize(), addr)
	return err
}

// ReadPacket waits for the next datagram until the deadline and decodes it.
// A deadline expiry surfaces as a net.Error with Timeout() == true; a
// datagram shorter than the header surfaces as ErrPacketTooShort. Both are
// expected conditions for the dispatch loop, not failures.
func (t *UDPTransport) ReadPacket(deadline time.Time) (*Packet, net.Addr, error) {
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, err
	}

	n, addr, err := t.conn.ReadFrom(t.buffer)
	if err != nil {
		return nil, nil, err
	}

	packet, err := ParsePacket(t.buffer[:n])
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ReadPacket",
			"from":     addr.String(),
			"length":   n,
		}).Debug("Discarding malformed datagram")
		return nil, addr, err
	}

	return packet, addr, nil
}

// Close shuts down the transport.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

// LocalAddr returns the local address the transport is listening on.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// IsTimeout reports whether err is a read-deadline expiry.
func IsTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
