package limits

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateTargetName(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		wantErr error
	}{
		{name: "minimum_length", target: "abcd", wantErr: nil},
		{name: "maximum_length", target: strings.Repeat("a", 10), wantErr: nil},
		{name: "typical_name", target: "file1", wantErr: nil},
		{name: "too_short", target: "ab", wantErr: ErrNameTooShort},
		{name: "empty", target: "", wantErr: ErrNameTooShort},
		{name: "one_below_minimum", target: "abc", wantErr: ErrNameTooShort},
		{name: "one_above_maximum", target: strings.Repeat("a", 11), wantErr: ErrNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTargetName(tt.target)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateTargetName(%q) = %v, want nil", tt.target, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateTargetName(%q) = %v, want %v", tt.target, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePayloadSize(t *testing.T) {
	if err := ValidatePayloadSize(MaxPayloadSize); err != nil {
		t.Fatalf("payload at ceiling rejected: %v", err)
	}
	if err := ValidatePayloadSize(0); err != nil {
		t.Fatalf("empty payload rejected: %v", err)
	}
	if err := ValidatePayloadSize(MaxPayloadSize + 1); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("oversized payload: got %v, want ErrPayloadTooLarge", err)
	}
}

func TestHeaderFitsCommonMTU(t *testing.T) {
	if MaxPayloadSize+2 > BufferSize {
		t.Fatal("receive buffer smaller than maximum datagram")
	}
}
