package chirp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildFrame encodes a frame carrying the given payloads in order.
func buildFrame(t testing.TB, b *FrameBuilder, payloads ...Payload) []byte {
	t.Helper()
	for _, p := range payloads {
		_, err := b.AddPayload(p)
		require.NoError(t, err)
	}
	return b.Bytes()
}

// noise returns n bytes that never contain the magic word (every magic byte
// is below 0x10).
func noise(n int, seed int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(0x10 + (i*37+seed*11)%0xE0)
	}
	return out
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func drainAll(p *Parser) []ParsedFrame {
	var frames []ParsedFrame
	for f := range p.Drain() {
		frames = append(frames, f)
	}
	return frames
}

func presenceFrame(t testing.TB, frameNumber uint32, confidence uint8) []byte {
	t.Helper()
	return buildFrame(t, &FrameBuilder{Version: 0x03060200, FrameNumber: frameNumber},
		Presence{State: PresencePresent, Confidence: confidence, RangeQ8: 512, TargetBin: 3})
}
