// Package limits provides centralized size limits for the transfer protocol.
// This ensures consistent validation across different components of the system.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxPayloadSize is the payload ceiling per datagram (1478 bytes).
	// Together with the two-byte header it keeps each datagram under common
	// network path limits.
	MaxPayloadSize = 1478

	// BufferSize is the receive buffer size, large enough for a full
	// header plus maximum payload with room to detect oversized datagrams.
	BufferSize = 1500

	// MinTargetNameLength is the minimum accepted remote target name length.
	MinTargetNameLength = 4

	// MaxTargetNameLength is the maximum accepted remote target name length.
	MaxTargetNameLength = 10
)

var (
	// ErrNameTooShort indicates a target name below the minimum length.
	ErrNameTooShort = errors.New("target name too short")

	// ErrNameTooLong indicates a target name above the maximum length.
	ErrNameTooLong = errors.New("target name too long")

	// ErrPayloadTooLarge indicates a payload exceeding MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ValidateTargetName checks a remote target name against the accepted
// length bounds.
func ValidateTargetName(name string) error {
	if len(name) < MinTargetNameLength {
		return fmt.Errorf("%w: %d bytes (minimum %d)", ErrNameTooShort, len(name), MinTargetNameLength)
	}
	if len(name) > MaxTargetNameLength {
		return fmt.Errorf("%w: %d bytes (maximum %d)", ErrNameTooLong, len(name), MaxTargetNameLength)
	}
	return nil
}

// ValidatePayloadSize checks a payload length against the datagram ceiling.
func ValidatePayloadSize(size int) error {
	if size > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes (maximum %d)", ErrPayloadTooLarge, size, MaxPayloadSize)
	}
	return nil
}
