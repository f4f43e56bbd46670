// Package transport implements the datagram layer for the stop-and-wait
// transfer protocol.
//
// This package handles packet formatting and UDP communication. Every
// datagram carries exactly one packet: a two-byte header (kind, sequence
// bit) followed by a payload whose length is delimited by the datagram
// boundary itself.
//
// Example:
//
//	packet := &transport.Packet{
//	    Kind:    transport.PacketData,
//	    Seq:     0,
//	    Payload: chunk,
//	}
//
//	err = udp.Send(packet, remoteAddr)
package transport

import (
	"errors"
)

// PacketType identifies the type of a protocol packet.
type PacketType byte

const (
	// PacketHello opens a session and carries the credential.
	PacketHello PacketType = iota + 1
	// PacketWriteRequest asks the responder to open the target for writing.
	PacketWriteRequest
	// PacketData carries one block of file content.
	PacketData
	// PacketAck acknowledges the previous packet; a non-empty payload is a
	// human-readable rejection reason.
	PacketAck
	// PacketFin closes the transfer.
	PacketFin
)

// String returns the wire name of the packet type.
func (pt PacketType) String() string {
	switch pt {
	case PacketHello:
		return "HELLO"
	case PacketWriteRequest:
		return "WRITE_REQUEST"
	case PacketData:
		return "DATA"
	case PacketAck:
		return "ACK"
	case PacketFin:
		return "FIN"
	default:
		return "UNKNOWN"
	}
}

// HeaderSize is the fixed size of the packet header in bytes.
const HeaderSize = 2

// ErrPacketTooShort indicates a datagram shorter than the fixed header.
// Such datagrams are dropped without a reply so that undecodable input from
// a possibly-spoofed source is never reflected back.
var ErrPacketTooShort = errors.New("packet shorter than header")

// Packet represents one protocol data unit.
type Packet struct {
	Kind    PacketType
	Seq     byte
	Payload []byte
}

// Serialize converts a packet to a byte slice for transmission. Encoding
// never fails; callers bound the payload by the deployment's maximum
// transfer unit.
func (p *Packet) Serialize() []byte {
	// Format: [kind (1 byte)][seq (1 byte)][payload (variable length)]
	result := make([]byte, HeaderSize+len(p.Payload))
	result[0] = byte(p.Kind)
	result[1] = p.Seq
	copy(result[HeaderSize:], p.Payload)

	return result
}

// ParsePacket converts a received datagram to a Packet structure.
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, ErrPacketTooShort
	}

	packet := &Packet{
		Kind:    PacketType(data[0]),
		Seq:     data[1],
		Payload: make([]byte, len(data)-HeaderSize),
	}

	copy(packet.Payload, data[HeaderSize:])

	return packet, nil
}

// NewAck builds an acknowledgment for the given sequence bit. A non-empty
// reason marks the acknowledgment as an application-level rejection.
func NewAck(seq byte, reason string) *Packet {
	return &Packet{
		Kind:    PacketAck,
		Seq:     seq,
		Payload: []byte(reason),
	}
}

// IsRejection reports whether the packet is an ACK carrying an error reason.
func (p *Packet) IsRejection() bool {
	return p.Kind == PacketAck && len(p.Payload) > 0
}
