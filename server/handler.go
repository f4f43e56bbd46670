package server

import (
	"net"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/udpcp/udpcp/limits"
	"github.com/udpcp/udpcp/session"
	"github.com/udpcp/udpcp/transport"
)

// Rejection reasons carried in ACK payloads. The texts are part of the wire
// contract with existing initiators.
const (
	rejectCredential = "Credencial Invalida"
	rejectName       = "Error Name"
	rejectStorage    = "Error FS"
)

// Sequence bits fixed by the handshake: HELLO always carries 0 and
// WRITE_REQUEST always carries 1. They are phase markers, not counters.
const (
	helloSeq        = 0
	writeRequestSeq = 1
)

// handlePacket runs one packet through the responder state machine and
// returns the acknowledgment to send, or nil for a silent discard. It is
// only ever called from the dispatch goroutine.
func (s *Server) handlePacket(addr net.Addr, packet *transport.Packet) *transport.Packet {
	now := s.now()

	sess, err := s.table.GetOrCreate(addr, now)
	if err != nil {
		// Capacity exceeded: no session context to reply from.
		return nil
	}
	sess.Touch(now)

	switch {
	case packet.Kind == transport.PacketHello && sess.Phase == session.PhaseUnauthenticated:
		return s.handleHello(sess, packet)
	case packet.Kind == transport.PacketWriteRequest && sess.Phase == session.PhaseAuthenticated:
		return s.handleWriteRequest(sess, packet)
	case packet.Kind == transport.PacketData && sess.Phase == session.PhaseTransferring:
		return s.handleData(sess, packet)
	case packet.Kind == transport.PacketFin && sess.Phase == session.PhaseTransferring:
		return s.handleFin(sess, packet)
	default:
		// Out-of-order or stale packet. Discarding without a reply is the
		// designed behavior; the initiator's retry loop resends.
		logrus.WithFields(logrus.Fields{
			"function": "handlePacket",
			"endpoint": sess.Endpoint,
			"kind":     packet.Kind.String(),
			"phase":    sess.Phase.String(),
		}).Debug("Discarding packet not valid in current phase")
		return nil
	}
}

// handleHello validates the credential payload against the accepted prefix.
func (s *Server) handleHello(sess *session.Session, packet *transport.Packet) *transport.Packet {
	if !strings.HasPrefix(string(packet.Payload), s.cfg.Credential) {
		logrus.WithFields(logrus.Fields{
			"function": "handleHello",
			"endpoint": sess.Endpoint,
		}).Warn("Rejected invalid credential")

		// A retried HELLO starts over on a fresh allocation.
		s.table.Release(sess.Endpoint)
		return transport.NewAck(helloSeq, rejectCredential)
	}

	sess.Phase = session.PhaseAuthenticated

	logrus.WithFields(logrus.Fields{
		"function": "handleHello",
		"endpoint": sess.Endpoint,
	}).Info("Client authenticated")

	return transport.NewAck(helloSeq, "")
}

// handleWriteRequest validates the target name and opens the sink.
func (s *Server) handleWriteRequest(sess *session.Session, packet *transport.Packet) *transport.Packet {
	if packet.Seq != writeRequestSeq {
		return nil
	}

	name := string(packet.Payload)
	if err := limits.ValidateTargetName(name); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleWriteRequest",
			"endpoint": sess.Endpoint,
			"name":     name,
			"error":    err.Error(),
		}).Warn("Rejected target name")
		return transport.NewAck(writeRequestSeq, rejectName)
	}

	sink, err := s.store.Open(name)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleWriteRequest",
			"endpoint": sess.Endpoint,
			"name":     name,
			"error":    err.Error(),
		}).Error("Failed to open destination")
		return transport.NewAck(writeRequestSeq, rejectStorage)
	}

	sess.Sink = sink
	sess.Phase = session.PhaseTransferring
	sess.ExpectedSeq = 0

	logrus.WithFields(logrus.Fields{
		"function": "handleWriteRequest",
		"endpoint": sess.Endpoint,
		"name":     name,
	}).Info("Write request accepted, transfer starting")

	return transport.NewAck(writeRequestSeq, "")
}

// handleData applies one block, or re-acknowledges a retransmitted one.
func (s *Server) handleData(sess *session.Session, packet *transport.Packet) *transport.Packet {
	if packet.Seq != sess.ExpectedSeq {
		// Retransmission of an already-applied block: its ACK was lost.
		// Re-acknowledge without writing so the block applies exactly once.
		logrus.WithFields(logrus.Fields{
			"function":     "handleData",
			"endpoint":     sess.Endpoint,
			"seq":          packet.Seq,
			"expected_seq": sess.ExpectedSeq,
		}).Debug("Re-acknowledging duplicate block")
		return transport.NewAck(1-sess.ExpectedSeq, "")
	}

	if _, err := sess.Sink.Write(packet.Payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleData",
			"endpoint": sess.Endpoint,
			"error":    err.Error(),
		}).Error("Failed to write block, abandoning session")

		// Withholding the ACK makes the initiator retry and eventually
		// abort; the sink cannot accept the block again either way.
		s.table.Release(sess.Endpoint)
		return nil
	}

	ack := transport.NewAck(sess.ExpectedSeq, "")
	sess.ToggleSeq()

	logrus.WithFields(logrus.Fields{
		"function": "handleData",
		"endpoint": sess.Endpoint,
		"seq":      packet.Seq,
		"length":   len(packet.Payload),
	}).Debug("Applied data block")

	return ack
}

// handleFin closes the transfer. The FIN's sequence bit is echoed verbatim
// and never compared against the expected bit; stray FINs from the same
// endpoint therefore end the transfer, matching the deployed protocol.
func (s *Server) handleFin(sess *session.Session, packet *transport.Packet) *transport.Packet {
	logrus.WithFields(logrus.Fields{
		"function": "handleFin",
		"endpoint": sess.Endpoint,
	}).Info("Transfer finished")

	s.table.Release(sess.Endpoint)
	return transport.NewAck(packet.Seq, "")
}
