package serialmux

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

var errPortClosed = errors.New("serial port closed")

// TestableSerialPort is an in-memory SerialPorter for tests. Bytes queued with
// AddReadData are handed out by Read, at most MaxReadSize at a time when set.
// An empty port reads as io.EOF unless BlockReads is set, in which case Read
// waits for more data or Close.
type TestableSerialPort struct {
	ReadError   error // returned once by the next Read
	CloseError  error
	BlockReads  bool
	MaxReadSize int

	mu      sync.Mutex
	cond    *sync.Cond
	pending bytes.Buffer
	closed  bool
	timeout time.Duration
}

// NewTestableSerialPort returns an empty, open port.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// AddReadData queues data for Read.
func (p *TestableSerialPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending.Write(data)
	p.cond.Broadcast()
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ReadError; err != nil {
		p.ReadError = nil
		return 0, err
	}
	for p.BlockReads && !p.closed && p.pending.Len() == 0 {
		p.cond.Wait()
	}
	if p.closed {
		return 0, errPortClosed
	}
	if p.MaxReadSize > 0 && len(b) > p.MaxReadSize {
		b = b[:p.MaxReadSize]
	}
	return p.pending.Read(b)
}

// Close releases blocked readers. Later reads fail.
func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return p.CloseError
}

// IsClosed reports whether Close was called.
func (p *TestableSerialPort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// SetReadTimeout implements TimeoutSerialPorter by recording timeout.
func (p *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = timeout
	return nil
}

// ReadTimeout returns the last timeout passed to SetReadTimeout.
func (p *TestableSerialPort) ReadTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeout
}

// MockSerialPortFactory hands out a fixed port and records every Open.
type MockSerialPortFactory struct {
	Port  SerialPorter
	Error error // returned by Open instead of Port when set

	mu    sync.Mutex
	calls []MockOpenCall
}

// MockOpenCall is one recorded Open.
type MockOpenCall struct {
	Path string
	Mode *SerialPortMode
}

// NewMockSerialPortFactory returns a factory that opens port.
func NewMockSerialPortFactory(port SerialPorter) *MockSerialPortFactory {
	return &MockSerialPortFactory{Port: port}
}

// Open implements SerialPortFactory.
func (f *MockSerialPortFactory) Open(path string, mode *SerialPortMode) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, MockOpenCall{Path: path, Mode: mode})
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Port, nil
}

// Calls returns the recorded Open calls in order.
func (f *MockSerialPortFactory) Calls() []MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MockOpenCall(nil), f.calls...)
}
