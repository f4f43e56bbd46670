package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketSerializeParse(t *testing.T) {
	tests := []struct {
		name    string
		packet  Packet
		wireLen int
	}{
		{
			name:    "hello_with_credential",
			packet:  Packet{Kind: PacketHello, Seq: 0, Payload: []byte("g21-0e29")},
			wireLen: 10,
		},
		{
			name:    "data_block",
			packet:  Packet{Kind: PacketData, Seq: 1, Payload: []byte("hola mundo de redes")},
			wireLen: 21,
		},
		{
			name:    "fin_empty_payload",
			packet:  Packet{Kind: PacketFin, Seq: 1, Payload: nil},
			wireLen: 2,
		},
		{
			name:    "ack_with_error_reason",
			packet:  Packet{Kind: PacketAck, Seq: 0, Payload: []byte("Credencial Invalida")},
			wireLen: 21,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.packet.Serialize()
			assert.Equal(t, tt.wireLen, len(data), "wire size is header plus payload")
			assert.Equal(t, byte(tt.packet.Kind), data[0])
			assert.Equal(t, tt.packet.Seq, data[1])

			parsed, err := ParsePacket(data)
			require.NoError(t, err)
			assert.Equal(t, tt.packet.Kind, parsed.Kind)
			assert.Equal(t, tt.packet.Seq, parsed.Seq)
			assert.True(t, bytes.Equal(tt.packet.Payload, parsed.Payload))
		})
	}
}

func TestParsePacketTooShort(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {byte(PacketData)}} {
		_, err := ParsePacket(data)
		assert.ErrorIs(t, err, ErrPacketTooShort)
	}
}

func TestParsePacketHeaderOnly(t *testing.T) {
	parsed, err := ParsePacket([]byte{byte(PacketAck), 1})
	require.NoError(t, err)
	assert.Equal(t, PacketAck, parsed.Kind)
	assert.Equal(t, byte(1), parsed.Seq)
	assert.Empty(t, parsed.Payload)
	assert.False(t, parsed.IsRejection())
}

func TestParsePacketDoesNotAliasBuffer(t *testing.T) {
	buf := []byte{byte(PacketData), 0, 'a', 'b', 'c'}
	parsed, err := ParsePacket(buf)
	require.NoError(t, err)

	buf[2] = 'x'
	assert.Equal(t, []byte("abc"), parsed.Payload, "payload must survive buffer reuse")
}

func TestNewAck(t *testing.T) {
	ok := NewAck(1, "")
	assert.Equal(t, PacketAck, ok.Kind)
	assert.Equal(t, byte(1), ok.Seq)
	assert.False(t, ok.IsRejection())

	rejected := NewAck(0, "Error Name")
	assert.True(t, rejected.IsRejection())
	assert.Equal(t, "Error Name", string(rejected.Payload))
}

func TestPacketTypeString(t *testing.T) {
	assert.Equal(t, "HELLO", PacketHello.String())
	assert.Equal(t, "WRITE_REQUEST", PacketWriteRequest.String())
	assert.Equal(t, "DATA", PacketData.String())
	assert.Equal(t, "ACK", PacketAck.String())
	assert.Equal(t, "FIN", PacketFin.String())
	assert.Equal(t, "UNKNOWN", PacketType(99).String())
}
