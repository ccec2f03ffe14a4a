package chirp

import "bytes"

// Accumulator is the parser's bounded rolling byte buffer.
//
// Consumed bytes are released by advancing a read cursor; the live region is
// moved to the front of the backing array on the next Feed. Whenever the live
// region grows past the ceiling it is compacted to start at the last magic
// word, or failing that, trimmed to the most recent bytes, so its length never
// exceeds the ceiling once Feed returns.
type Accumulator struct {
	buf     []byte
	off     int // start of live data in buf
	scanned int // live bytes already known not to start a magic word
	ceiling int

	discarded   uint64
	compactions uint64
}

// NewAccumulator returns an accumulator bounded by ceiling bytes. A
// non-positive ceiling is a programming error and panics.
func NewAccumulator(ceiling int) *Accumulator {
	if ceiling <= 0 {
		panic("chirp: accumulator ceiling must be positive")
	}
	return &Accumulator{ceiling: ceiling}
}

// Feed appends p and compacts if the ceiling is exceeded. It reports whether
// a compaction moved the start of the live data, which invalidates any
// position a caller held into it.
func (a *Accumulator) Feed(p []byte) (compacted bool) {
	if a.off > 0 {
		n := copy(a.buf, a.buf[a.off:])
		a.buf = a.buf[:n]
		a.off = 0
	}
	a.buf = append(a.buf, p...)
	if len(a.buf) <= a.ceiling {
		return false
	}
	a.compact()
	return true
}

func (a *Accumulator) compact() {
	n := len(a.buf)
	keepFrom := n - min(a.ceiling, MaxFrameLen)
	if idx := bytes.LastIndex(a.buf, MagicWord[:]); idx >= 0 && n-idx <= a.ceiling {
		keepFrom = idx
	}
	kept := copy(a.buf, a.buf[keepFrom:])
	a.buf = a.buf[:kept]
	a.scanned = 0
	a.discarded += uint64(keepFrom)
	a.compactions++
}

// Bytes returns the live buffer. It is valid until the next Feed, Discard or
// Reset.
func (a *Accumulator) Bytes() []byte { return a.buf[a.off:] }

// Len returns the number of live bytes.
func (a *Accumulator) Len() int { return len(a.buf) - a.off }

// Discard drops the first n live bytes as unusable input.
func (a *Accumulator) Discard(n int) {
	a.discarded += uint64(a.advance(n))
}

// Consume drops the first n live bytes after they were decoded into a frame.
func (a *Accumulator) Consume(n int) {
	a.advance(n)
}

func (a *Accumulator) advance(n int) int {
	n = min(n, a.Len())
	a.off += n
	a.scanned = max(a.scanned-n, 0)
	if a.off == len(a.buf) {
		a.buf = a.buf[:0]
		a.off = 0
	}
	return n
}

// Discarded returns the total number of bytes dropped by Discard, Sync and
// compaction.
func (a *Accumulator) Discarded() uint64 { return a.discarded }

// Compactions returns how many times the ceiling forced a compaction.
func (a *Accumulator) Compactions() uint64 { return a.compactions }

// Sync positions the live buffer at the first magic word, discarding every
// byte before it. It reports false when no magic word is buffered yet, in
// which case nothing is discarded.
func (a *Accumulator) Sync() bool {
	live := a.Bytes()
	idx := FindMagic(live[a.scanned:])
	if idx < 0 {
		a.scanned = max(len(live)-(MagicLen-1), 0)
		return false
	}
	a.Discard(a.scanned + idx)
	a.scanned = 0
	return true
}

// Reset empties the buffer. Counters are kept.
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
	a.off = 0
	a.scanned = 0
}

// Ceiling returns the configured size bound.
func (a *Accumulator) Ceiling() int { return a.ceiling }

// FindMagic returns the offset of the first magic word in b, or -1.
func FindMagic(b []byte) int {
	return bytes.Index(b, MagicWord[:])
}
