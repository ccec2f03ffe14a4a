package chirp

import (
	"errors"
	"iter"

	"github.com/banshee-data/chirp/internal/monitoring"
)

// State is the position of the streaming parser within the current frame.
type State int

const (
	StateSeeking    State = iota // No magic word located yet
	StateHaveMagic               // Buffer starts at a magic word; awaiting a full header
	StateHaveHeader              // Header validated; awaiting TotalPacketLen bytes
)

func (s State) String() string {
	switch s {
	case StateSeeking:
		return "seeking"
	case StateHaveMagic:
		return "have_magic"
	case StateHaveHeader:
		return "have_header"
	default:
		return "unknown"
	}
}

// Stats are cumulative parser counters. They survive Clear.
type Stats struct {
	BytesFed        uint64 // Bytes passed to Feed
	BytesDiscarded  uint64 // Noise, rejected markers and compacted bytes
	FramesEmitted   uint64
	Resyncs         uint64 // Magic words rejected by header validation
	Compactions     uint64 // Ceiling-triggered buffer compactions
	TruncatedFrames uint64 // Frames that carried fewer TLVs than declared
	PayloadErrors   uint64 // Custom TLVs whose payload failed to decode
}

// Parser is the streaming frame decoder. Feed appends bytes; Drain yields every
// frame that the buffered bytes complete. A Parser is not safe for concurrent
// use.
type Parser struct {
	acc      *Accumulator
	registry *Registry
	state    State
	header   FrameHeader // valid in StateHaveHeader

	fed, emitted, resyncs, truncated, payloadErrors uint64
}

// Option configures a Parser.
type Option func(*Parser)

// WithBufferCeiling sets the accumulator ceiling. Non-positive values panic.
func WithBufferCeiling(n int) Option {
	return func(p *Parser) {
		p.acc = NewAccumulator(n)
	}
}

// WithRegistry replaces the payload decoder registry.
func WithRegistry(r *Registry) Option {
	return func(p *Parser) {
		if r != nil {
			p.registry = r
		}
	}
}

// NewParser returns a parser with DefaultBufferCeiling and the default
// payload registry unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{registry: defaultRegistry}
	for _, opt := range opts {
		opt(p)
	}
	if p.acc == nil {
		p.acc = NewAccumulator(DefaultBufferCeiling)
	}
	return p
}

// Feed appends raw bytes from the transport. It never decodes.
func (p *Parser) Feed(b []byte) {
	p.fed += uint64(len(b))
	if p.acc.Feed(b) {
		// Compaction moved the start of the buffer, so any located magic
		// word or header no longer applies.
		p.state = StateSeeking
		monitoring.Debugf("chirp: buffer over %d bytes, compacted to %d", p.acc.Ceiling(), p.acc.Len())
	}
}

// Drain yields every frame extractable from the buffered bytes, in stream
// order. Breaking out of the loop early is safe: frames not yet yielded stay
// buffered for the next Drain, and no frame is ever yielded twice.
func (p *Parser) Drain() iter.Seq[ParsedFrame] {
	return func(yield func(ParsedFrame) bool) {
		for {
			f, ok := p.Next()
			if !ok || !yield(f) {
				return
			}
		}
	}
}

// Next advances the state machine until one frame is complete or more input
// is needed. ok is false when no further frame can be extracted yet.
func (p *Parser) Next() (f ParsedFrame, ok bool) {
	for {
		switch p.state {
		case StateSeeking:
			if !p.acc.Sync() {
				return ParsedFrame{}, false
			}
			p.state = StateHaveMagic

		case StateHaveMagic:
			buf := p.acc.Bytes()
			if len(buf) < HeaderLenStandard {
				return ParsedFrame{}, false
			}
			h, err := DecodeHeader(buf)
			if err == nil && int64(h.TotalPacketLen) > int64(p.acc.Ceiling()) {
				err = ErrCapacityExceeded
			}
			if err != nil {
				p.resync(err)
				continue
			}
			p.header = h
			p.state = StateHaveHeader

		case StateHaveHeader:
			total := int(p.header.TotalPacketLen)
			if p.acc.Len() < total {
				return ParsedFrame{}, false
			}
			f, diag := decodeBody(p.acc.Bytes()[:total], p.header, p.registry)
			p.acc.Consume(total)
			p.state = StateSeeking
			p.record(f, diag)
			return f, true
		}
	}
}

// resync drops exactly the rejected magic word so overlapping or later
// markers are still found.
func (p *Parser) resync(err error) {
	p.resyncs++
	if errors.Is(err, ErrCapacityExceeded) {
		monitoring.Debugf("chirp: rejecting frame header: %v", err)
	} else {
		monitoring.Debugf("chirp: false magic word, resyncing: %v", err)
	}
	p.acc.Discard(MagicLen)
	p.state = StateSeeking
}

func (p *Parser) record(f ParsedFrame, diag frameDiag) {
	p.emitted++
	if diag.truncated != nil {
		p.truncated++
		monitoring.Debugf("chirp: frame %d: kept %d of %d TLVs: %v",
			f.Header.FrameNumber, len(f.TLVs), f.Header.NumTLVs, diag.truncated)
	}
	for t, err := range diag.payloadErrors {
		p.payloadErrors++
		monitoring.Debugf("chirp: frame %d: dropping %s: %v", f.Header.FrameNumber, t, err)
	}
}

// Clear drops all buffered bytes and returns to StateSeeking.
func (p *Parser) Clear() {
	p.acc.Reset()
	p.state = StateSeeking
	p.header = FrameHeader{}
}

// State returns the current state machine position.
func (p *Parser) State() State { return p.state }

// Buffered returns the number of bytes awaiting decode.
func (p *Parser) Buffered() int { return p.acc.Len() }

// Stats returns a snapshot of the cumulative counters.
func (p *Parser) Stats() Stats {
	return Stats{
		BytesFed:        p.fed,
		BytesDiscarded:  p.acc.Discarded(),
		FramesEmitted:   p.emitted,
		Resyncs:         p.resyncs,
		Compactions:     p.acc.Compactions(),
		TruncatedFrames: p.truncated,
		PayloadErrors:   p.payloadErrors,
	}
}
