package chirp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HeaderVariant identifies which fixed header layout a frame uses.
type HeaderVariant int

const (
	HeaderStandard40 HeaderVariant = iota // nine u32 fields, ninth is subframe_number
	HeaderShort36                         // eight u32 fields, subframe_number = 0
)

func (v HeaderVariant) String() string {
	switch v {
	case HeaderStandard40:
		return "standard_40"
	case HeaderShort36:
		return "short_36"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// FrameHeader is the decoded fixed header at the start of each frame.
//
// Layout (40 bytes, little-endian):
// Magic(8) + Version(4) + TotalPacketLen(4) + Platform(4) + FrameNumber(4) +
// TimeCPUCycles(4) + NumDetectedObj(4) + NumTLVs(4) + SubframeNumber(4).
// The 36-byte variant omits SubframeNumber.
type FrameHeader struct {
	Magic          [MagicLen]byte
	Version        uint32
	TotalPacketLen uint32 // Whole frame including this header
	Platform       uint32
	FrameNumber    uint32
	TimeCPUCycles  uint32
	NumDetectedObj uint32
	NumTLVs        uint32
	SubframeNumber uint32 // Always 0 for HeaderShort36
	HeaderLen      int
	Variant        HeaderVariant
}

// headerLayout describes one candidate header encoding.
type headerLayout struct {
	variant     HeaderVariant
	size        int
	hasSubframe bool
}

// headerLayouts is tried in order. The widest layout goes first because it
// structurally subsumes the narrower one.
var headerLayouts = []headerLayout{
	{variant: HeaderStandard40, size: HeaderLenStandard, hasSubframe: true},
	{variant: HeaderShort36, size: HeaderLenShort, hasSubframe: false},
}

// DecodeHeader decodes the frame header at the start of b, which must begin
// with MagicWord. Each layout in headerLayouts is tried in turn and the first
// one that fits in b and passes validation is returned.
//
// It returns ErrInsufficientData when b is too short for every layout and an
// error wrapping ErrFramingDesync when no layout validates.
func DecodeHeader(b []byte) (FrameHeader, error) {
	if len(b) < MagicLen {
		return FrameHeader{}, ErrInsufficientData
	}
	if !bytes.Equal(b[:MagicLen], MagicWord[:]) {
		return FrameHeader{}, fmt.Errorf("%w: missing magic word", ErrFramingDesync)
	}

	var lastErr error
	for _, layout := range headerLayouts {
		if len(b) < layout.size {
			continue
		}
		h := layout.decode(b)
		if err := h.Validate(); err != nil {
			lastErr = err
			continue
		}
		return h, nil
	}
	if lastErr == nil {
		return FrameHeader{}, ErrInsufficientData
	}
	return FrameHeader{}, lastErr
}

func (l headerLayout) decode(b []byte) FrameHeader {
	h := FrameHeader{
		Version:        binary.LittleEndian.Uint32(b[8:12]),
		TotalPacketLen: binary.LittleEndian.Uint32(b[12:16]),
		Platform:       binary.LittleEndian.Uint32(b[16:20]),
		FrameNumber:    binary.LittleEndian.Uint32(b[20:24]),
		TimeCPUCycles:  binary.LittleEndian.Uint32(b[24:28]),
		NumDetectedObj: binary.LittleEndian.Uint32(b[28:32]),
		NumTLVs:        binary.LittleEndian.Uint32(b[32:36]),
		HeaderLen:      l.size,
		Variant:        l.variant,
	}
	copy(h.Magic[:], b[:MagicLen])
	if l.hasSubframe {
		h.SubframeNumber = binary.LittleEndian.Uint32(b[36:40])
	}
	return h
}

// Validate checks the header length invariants. Violations of the hard caps
// wrap ErrCapacityExceeded; all failures satisfy errors.Is(err, ErrFramingDesync).
func (h FrameHeader) Validate() error {
	total := uint64(h.TotalPacketLen)
	if total < uint64(h.HeaderLen) {
		return fmt.Errorf("%w: total_packet_len %d shorter than %d-byte header",
			ErrFramingDesync, h.TotalPacketLen, h.HeaderLen)
	}
	if total > MaxFrameLen {
		return fmt.Errorf("%w: total_packet_len %d above %d", ErrCapacityExceeded, h.TotalPacketLen, MaxFrameLen)
	}
	if h.NumTLVs > MaxTLVs {
		return fmt.Errorf("%w: num_tlvs %d above %d", ErrCapacityExceeded, h.NumTLVs, MaxTLVs)
	}
	if total < uint64(h.HeaderLen)+uint64(h.NumTLVs)*TLVHeaderLen {
		return fmt.Errorf("%w: total_packet_len %d cannot hold %d TLV headers",
			ErrFramingDesync, h.TotalPacketLen, h.NumTLVs)
	}
	return nil
}

// AppendBinary appends the wire encoding of h to b. Magic is always written
// as MagicWord and Variant selects the layout; HeaderLen is not consulted.
func (h FrameHeader) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, MagicWord[:]...)
	b = binary.LittleEndian.AppendUint32(b, h.Version)
	b = binary.LittleEndian.AppendUint32(b, h.TotalPacketLen)
	b = binary.LittleEndian.AppendUint32(b, h.Platform)
	b = binary.LittleEndian.AppendUint32(b, h.FrameNumber)
	b = binary.LittleEndian.AppendUint32(b, h.TimeCPUCycles)
	b = binary.LittleEndian.AppendUint32(b, h.NumDetectedObj)
	b = binary.LittleEndian.AppendUint32(b, h.NumTLVs)
	if h.Variant == HeaderStandard40 {
		b = binary.LittleEndian.AppendUint32(b, h.SubframeNumber)
	}
	return b, nil
}
