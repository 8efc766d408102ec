package pcm

import (
	"encoding/base64"
	"fmt"
)

// transportEncoding is standard base64 with strict decoding: trailing-bit
// garbage in the final quantum is rejected rather than silently dropped,
// so a corrupted chunk fails loudly instead of playing noise.
var transportEncoding = base64.StdEncoding.Strict()

// TransportText encodes raw bytes as the base64 text form used on the
// realtime channel.
func TransportText(b []byte) string {
	return transportEncoding.EncodeToString(b)
}

// FromTransportText decodes the base64 text form back into raw bytes.
// Non-canonical encodings are rejected.
func FromTransportText(s string) ([]byte, error) {
	b, err := transportEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("pcm: decode transport text: %w", err)
	}
	return b, nil
}
