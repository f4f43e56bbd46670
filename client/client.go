// Package client implements the initiating peer: it drives the four-phase
// handshake (HELLO, WRITE_REQUEST, DATA…, FIN) over a connected UDP socket,
// one outstanding datagram at a time with bounded retry-with-timeout.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udpcp/udpcp/limits"
	"github.com/udpcp/udpcp/transport"
)

const (
	// DefaultReceiveTimeout is the per-attempt wait for an acknowledgment.
	DefaultReceiveTimeout = 2 * time.Second

	// DefaultMaxAttempts bounds the sends per phase. Exhausting them aborts
	// the transfer; the engine never retries indefinitely.
	DefaultMaxAttempts = 5
)

// ErrRetriesExhausted indicates a phase received no matching acknowledgment
// within the maximum number of sends.
var ErrRetriesExhausted = errors.New("no acknowledgment after maximum attempts")

// RejectedError is a terminal, application-level rejection: the responder
// acknowledged the phase with a reason instead of an empty payload.
type RejectedError struct {
	Phase  string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected by server: %s", e.Phase, e.Reason)
}

// Config holds the initiator's deployment parameters.
type Config struct {
	// ServerAddr is the responder's host:port.
	ServerAddr string
	// Credential is sent as the HELLO payload.
	Credential string
	// ReceiveTimeout is the per-attempt acknowledgment wait; 0 means
	// DefaultReceiveTimeout.
	ReceiveTimeout time.Duration
	// MaxAttempts is the send budget per phase; 0 means DefaultMaxAttempts.
	MaxAttempts int
	// BlockSize is the DATA payload size; 0 means limits.MaxPayloadSize.
	BlockSize int
}

// Stats counts the work done by a transfer.
type Stats struct {
	Blocks      uint64
	Bytes       uint64
	Retransmits uint64
}

// Client is the initiating peer for a single transfer.
type Client struct {
	cfg   Config
	conn  net.Conn
	buf   []byte
	stats Stats
}

// Dial resolves the responder once and opens a connected UDP socket, so the
// destination stays pinned to the first resolved address and datagrams from
// any other source are discarded by the kernel.
func Dial(cfg Config) (*Client, error) {
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = limits.MaxPayloadSize
	}
	if err := limits.ValidatePayloadSize(cfg.BlockSize); err != nil {
		return nil, err
	}

	conn, err := net.Dial("udp", cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial server: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Dial",
		"server_addr": conn.RemoteAddr().String(),
	}).Debug("Connected UDP socket opened")

	return &Client{
		cfg:  cfg,
		conn: conn,
		buf:  make([]byte, limits.BufferSize),
	}, nil
}

// Close releases the socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Stats returns the transfer counters accumulated so far.
func (c *Client) Stats() Stats {
	return c.stats
}

// Send transfers every byte of src to the responder under targetName.
// It drives the four phases in order; any failure aborts the remaining
// phases, except that a FIN failure after all data was acknowledged is
// logged and tolerated (best-effort close).
func (c *Client) Send(src io.Reader, targetName string) error {
	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"server_addr": c.conn.RemoteAddr().String(),
		"target_name": targetName,
	}).Info("Starting transfer")

	if err := c.hello(); err != nil {
		return err
	}
	if err := c.writeRequest(targetName); err != nil {
		return err
	}

	finSeq, err := c.sendData(src)
	if err != nil {
		return err
	}

	if err := c.fin(finSeq); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "fin",
			"error":    err.Error(),
		}).Warn("FIN not acknowledged, transfer already complete")
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Send",
		"target_name": targetName,
		"blocks":      c.stats.Blocks,
		"bytes":       c.stats.Bytes,
		"retransmits": c.stats.Retransmits,
	}).Info("Transfer complete")

	return nil
}

// hello authenticates with the configured credential. HELLO carries the
// fixed phase marker 0.
func (c *Client) hello() error {
	packet := &transport.Packet{
		Kind:    transport.PacketHello,
		Seq:     0,
		Payload: []byte(c.cfg.Credential),
	}
	return c.sendAndWait("HELLO", packet)
}

// writeRequest asks the responder to open targetName. WRITE_REQUEST carries
// the fixed phase marker 1.
func (c *Client) writeRequest(targetName string) error {
	packet := &transport.Packet{
		Kind:    transport.PacketWriteRequest,
		Seq:     1,
		Payload: []byte(targetName),
	}
	return c.sendAndWait("WRITE_REQUEST", packet)
}

// sendData streams src in blocks of at most BlockSize, alternating the
// sequence bit starting at 0. It returns the sequence bit the FIN must
// carry: the bit after the last acknowledged block.
func (c *Client) sendData(src io.Reader) (byte, error) {
	block := make([]byte, c.cfg.BlockSize)
	seq := byte(0)

	for {
		n, err := io.ReadFull(src, block)
		if n > 0 {
			packet := &transport.Packet{
				Kind:    transport.PacketData,
				Seq:     seq,
				Payload: block[:n],
			}
			if sendErr := c.sendAndWait("DATA", packet); sendErr != nil {
				return seq, sendErr
			}

			c.stats.Blocks++
			c.stats.Bytes += uint64(n)
			seq = 1 - seq
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return seq, nil
		}
		if err != nil {
			return seq, fmt.Errorf("failed to read source: %w", err)
		}
	}
}

// fin performs the best-effort close with the given sequence bit.
func (c *Client) fin(seq byte) error {
	packet := &transport.Packet{
		Kind: transport.PacketFin,
		Seq:  seq,
	}
	return c.sendAndWait("FIN", packet)
}

// sendAndWait is the uniform phase primitive: send the packet, wait up to
// the receive timeout for the matching acknowledgment, retry on anything
// else, up to MaxAttempts sends in total.
func (c *Client) sendAndWait(phase string, packet *transport.Packet) error {
	data := packet.Serialize()

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.stats.Retransmits++
			logrus.WithFields(logrus.Fields{
				"function": "sendAndWait",
				"phase":    phase,
				"seq":      packet.Seq,
				"attempt":  attempt,
			}).Debug("Retrying")
		}

		if _, err := c.conn.Write(data); err != nil {
			return fmt.Errorf("%s send failed: %w", phase, err)
		}

		ack, err := c.readReply()
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if errors.Is(err, transport.ErrPacketTooShort) {
				// Undecodable reply: same as no informative reply yet.
				continue
			}
			return fmt.Errorf("%s receive failed: %w", phase, err)
		}

		if ack.Kind != transport.PacketAck || ack.Seq != packet.Seq {
			// Wrong kind or stale sequence bit: not an answer to this send.
			logrus.WithFields(logrus.Fields{
				"function": "sendAndWait",
				"phase":    phase,
				"kind":     ack.Kind.String(),
				"seq":      ack.Seq,
			}).Debug("Ignoring non-matching reply")
			continue
		}

		if ack.IsRejection() {
			return &RejectedError{Phase: phase, Reason: string(ack.Payload)}
		}

		return nil
	}

	return fmt.Errorf("%s: %w (%d sends, %v each)",
		phase, ErrRetriesExhausted, c.cfg.MaxAttempts, c.cfg.ReceiveTimeout)
}

// readReply reads one datagram from the connected socket within the
// receive timeout and decodes it.
func (c *Client) readReply() (*transport.Packet, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReceiveTimeout)); err != nil {
		return nil, err
	}

	n, err := c.conn.Read(c.buf)
	if err != nil {
		return nil, err
	}

	return transport.ParsePacket(c.buf[:n])
}
