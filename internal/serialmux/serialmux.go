// Package serialmux reads the radar's UART data port, feeds the byte stream
// through a chirp.Parser and fans decoded frames out to any number of
// subscribers.
package serialmux

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/banshee-data/chirp/internal/chirp"
	"github.com/banshee-data/chirp/internal/monitoring"
	"github.com/google/uuid"
	"tailscale.com/tsweb"
)

const (
	// DefaultReadBufferSize is the size of each port read.
	DefaultReadBufferSize = 4096

	// subscriberBuffer is the per-subscriber channel depth. Slow subscribers
	// miss frames rather than stall the reader.
	subscriberBuffer = 16
)

// Observer receives every decoded frame and the parser counters after each
// read. Observers run on the monitor goroutine and must not block.
type Observer interface {
	ObserveFrame(chirp.ParsedFrame)
	ObserveStats(stats chirp.Stats, buffered int)
}

// Stats is a snapshot of the multiplexer counters.
type Stats struct {
	Parser      chirp.Stats `json:"parser"`
	Buffered    int         `json:"buffered_bytes"`
	Subscribers int         `json:"subscribers"`
	Dropped     uint64      `json:"dropped_deliveries"`
}

// FrameMux is a generic serial port multiplexer that decodes radar frames from
// a single port and delivers them to every subscriber.
type FrameMux[T SerialPorter] struct {
	port        T
	parser      *chirp.Parser
	readBufSize int
	observers   []Observer

	subscribers  map[string]chan chirp.ParsedFrame
	subscriberMu sync.Mutex
	dropped      uint64

	statsMu  sync.Mutex
	stats    chirp.Stats
	buffered int

	closing   bool
	closingMu sync.Mutex
}

// FrameMuxInterface defines the interface for the FrameMux type.
type FrameMuxInterface interface {
	// Subscribe creates a new channel for receiving decoded frames. The ID
	// identifies the channel when unsubscribing.
	Subscribe() (string, <-chan chirp.ParsedFrame)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// Monitor reads the port until EOF, error or cancellation, decoding
	// frames and delivering them to subscribers.
	Monitor(context.Context) error
	// Stats returns the latest counters.
	Stats() Stats
	// Close closes all subscribed channels and closes the serial port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// Option configures a FrameMux.
type Option func(*muxConfig)

type muxConfig struct {
	parser      *chirp.Parser
	readBufSize int
	observers   []Observer
}

// WithParser supplies the parser the monitor goroutine will own.
func WithParser(p *chirp.Parser) Option {
	return func(c *muxConfig) { c.parser = p }
}

// WithReadBufferSize sets the size of each port read. Non-positive values
// keep DefaultReadBufferSize.
func WithReadBufferSize(n int) Option {
	return func(c *muxConfig) {
		if n > 0 {
			c.readBufSize = n
		}
	}
}

// WithObserver registers an observer for frames and counters.
func WithObserver(o Observer) Option {
	return func(c *muxConfig) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// NewFrameMux creates a FrameMux reading from port.
func NewFrameMux[T SerialPorter](port T, opts ...Option) *FrameMux[T] {
	cfg := muxConfig{readBufSize: DefaultReadBufferSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.parser == nil {
		cfg.parser = chirp.NewParser()
	}
	return &FrameMux[T]{
		port:        port,
		parser:      cfg.parser,
		readBufSize: cfg.readBufSize,
		observers:   cfg.observers,
		subscribers: make(map[string]chan chirp.ParsedFrame),
	}
}

// Subscribe registers a new frame channel. After Close it returns a closed
// channel.
func (m *FrameMux[T]) Subscribe() (string, <-chan chirp.ParsedFrame) {
	id := uuid.NewString()
	ch := make(chan chirp.ParsedFrame, subscriberBuffer)

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if m.isClosing() {
		close(ch)
		return id, ch
	}
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the frame mux.
func (m *FrameMux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Monitor reads raw bytes from the port and feeds them to the parser. It
// returns nil once the port reports io.EOF (after delivering every frame the
// final bytes complete), the read error otherwise, or ctx.Err() on
// cancellation.
func (m *FrameMux[T]) Monitor(ctx context.Context) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)

	// The blocking Read does not interfere with the outer loop awaiting
	// chunks and context cancellation.
	go func() {
		defer close(chunks)
		buf := make([]byte, m.readBufSize)
		for {
			n, err := m.port.Read(buf)
			if n > 0 {
				select {
				case chunks <- bytes.Clone(buf[:n]):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				select {
				case err := <-readErr:
					if m.isClosing() {
						return nil
					}
					return fmt.Errorf("read serial port: %w", err)
				default:
					return nil
				}
			}
			if m.isClosing() {
				return nil
			}
			m.process(chunk)
		}
	}
}

func (m *FrameMux[T]) process(chunk []byte) {
	m.parser.Feed(chunk)
	for f := range m.parser.Drain() {
		for _, o := range m.observers {
			o.ObserveFrame(f)
		}
		m.publish(f)
	}

	stats, buffered := m.parser.Stats(), m.parser.Buffered()
	m.statsMu.Lock()
	m.stats, m.buffered = stats, buffered
	m.statsMu.Unlock()
	for _, o := range m.observers {
		o.ObserveStats(stats, buffered)
	}
}

func (m *FrameMux[T]) publish(f chirp.ParsedFrame) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		select {
		case ch <- f:
		default:
			m.dropped++
			monitoring.Debugf("serialmux: subscriber %s full, dropping frame %d", id, f.Header.FrameNumber)
		}
	}
}

// Stats returns the counters as of the last processed read.
func (m *FrameMux[T]) Stats() Stats {
	m.statsMu.Lock()
	st := Stats{Parser: m.stats, Buffered: m.buffered}
	m.statsMu.Unlock()

	m.subscriberMu.Lock()
	st.Subscribers = len(m.subscribers)
	st.Dropped = m.dropped
	m.subscriberMu.Unlock()
	return st
}

func (m *FrameMux[T]) isClosing() bool {
	m.closingMu.Lock()
	defer m.closingMu.Unlock()
	return m.closing
}

// Close closes every subscriber channel and the port. It is safe to call more
// than once; only the first call closes the port.
func (m *FrameMux[T]) Close() error {
	m.closingMu.Lock()
	if m.closing {
		m.closingMu.Unlock()
		return nil
	}
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	m.subscriberMu.Unlock()
	return m.port.Close()
}

// AttachAdminRoutes registers the parser counters and a live frame tail under
// /debug/. tsweb restricts these routes to loopback and tailnet clients.
func (m *FrameMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Frames emitted", func() any { return m.Stats().Parser.FramesEmitted })
	debug.KVFunc("Resyncs", func() any { return m.Stats().Parser.Resyncs })
	debug.KVFunc("Bytes discarded", func() any { return m.Stats().Parser.BytesDiscarded })
	debug.KVFunc("Buffered bytes", func() any { return m.Stats().Buffered })

	debug.HandleFunc("chirp-stats", "decoder counters (JSON)", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.Stats()); err != nil {
			http.Error(w, "Failed to encode stats", http.StatusInternalServerError)
		}
	})

	// Server-Sent Events, one JSON frame summary per event.
	debug.HandleFunc("tail", "live frame summaries (SSE)", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := m.Subscribe()
		defer m.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case f, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(f.Summarize())
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
