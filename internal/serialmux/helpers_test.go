package serialmux

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/banshee-data/chirp/internal/chirp"
	"github.com/stretchr/testify/require"
)

// localHostRequest creates an httptest request that appears to come from localhost.
// This bypasses tsweb.AllowDebugAccess which checks for loopback IPs.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func presenceFrame(t *testing.T, frameNumber uint32) []byte {
	t.Helper()
	b := chirp.FrameBuilder{FrameNumber: frameNumber}
	_, err := b.AddPayload(chirp.Presence{State: chirp.PresencePresent, Confidence: 80, RangeQ8: 256})
	require.NoError(t, err)
	return b.Bytes()
}

// portWithFrames returns a port holding a little line noise followed by n
// frames numbered from 1.
func portWithFrames(t *testing.T, n int) *TestableSerialPort {
	t.Helper()
	port := NewTestableSerialPort()
	port.AddReadData([]byte("boot ok\r\n"))
	for i := 1; i <= n; i++ {
		port.AddReadData(presenceFrame(t, uint32(i)))
	}
	return port
}

type recordingObserver struct {
	mu       sync.Mutex
	frames   []uint32
	last     chirp.Stats
	buffered int
	calls    int
}

func (o *recordingObserver) ObserveFrame(f chirp.ParsedFrame) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames = append(o.frames, f.Header.FrameNumber)
}

func (o *recordingObserver) ObserveStats(st chirp.Stats, buffered int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last, o.buffered = st, buffered
	o.calls++
}
