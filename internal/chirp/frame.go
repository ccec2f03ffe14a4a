package chirp

import (
	"bytes"
	"fmt"
)

// ParsedFrame is one fully decoded frame. It owns its byte storage and does
// not alias any parser buffer.
type ParsedFrame struct {
	Header FrameHeader
	TLVs   []RawTLV // Wire order

	// Payloads holds at most one decoded payload per custom TLV type. When a
	// frame repeats a type the last successfully decoded instance wins.
	Payloads map[TLVType]Payload
}

// frameDiag records recoverable problems met while decoding a frame.
type frameDiag struct {
	truncated     error             // non-nil if the TLV walk stopped early
	payloadErrors map[TLVType]error // last failure per type
}

// DecodeFrame decodes a single frame from b, which must begin with the magic
// word and hold at least TotalPacketLen bytes. Bytes beyond the frame are
// ignored. The only failure is a non-nil error, meaning b is not a valid
// frame; truncated TLVs and malformed payloads are tolerated.
func DecodeFrame(b []byte) (ParsedFrame, error) {
	return DecodeFrameWith(b, defaultRegistry)
}

// DecodeFrameWith is DecodeFrame using a caller-supplied registry.
func DecodeFrameWith(b []byte, reg *Registry) (ParsedFrame, error) {
	if reg == nil {
		reg = defaultRegistry
	}
	h, err := DecodeHeader(b)
	if err != nil {
		return ParsedFrame{}, err
	}
	if uint64(len(b)) < uint64(h.TotalPacketLen) {
		return ParsedFrame{}, fmt.Errorf("%w: frame needs %d bytes, have %d",
			ErrInsufficientData, h.TotalPacketLen, len(b))
	}
	f, _ := decodeBody(b[:h.TotalPacketLen], h, reg)
	return f, nil
}

// decodeBody builds a ParsedFrame from exactly one frame's bytes whose header
// has already been validated. The bytes are copied first.
func decodeBody(b []byte, h FrameHeader, reg *Registry) (ParsedFrame, frameDiag) {
	var diag frameDiag
	frame := bytes.Clone(b)

	tlvs, err := WalkTLVs(frame, h)
	if err != nil {
		diag.truncated = err
	}

	f := ParsedFrame{
		Header:   h,
		TLVs:     tlvs,
		Payloads: make(map[TLVType]Payload),
	}
	for _, tlv := range tlvs {
		p, ok, err := reg.Decode(tlv.Type, tlv.Payload)
		if !ok {
			continue
		}
		if err != nil {
			if diag.payloadErrors == nil {
				diag.payloadErrors = make(map[TLVType]error)
			}
			diag.payloadErrors[tlv.Type] = err
			continue
		}
		f.Payloads[tlv.Type] = p
	}
	return f, diag
}

// Payload returns the decoded payload for t.
func (f ParsedFrame) Payload(t TLVType) (Payload, bool) {
	p, ok := f.Payloads[t]
	return p, ok
}

// Has reports whether the frame carries a raw TLV of type t.
func (f ParsedFrame) Has(t TLVType) bool {
	for _, tlv := range f.TLVs {
		if tlv.Type == t {
			return true
		}
	}
	return false
}

// RawTLV returns the last raw TLV of type t.
func (f ParsedFrame) RawTLV(t TLVType) (RawTLV, bool) {
	for i := len(f.TLVs) - 1; i >= 0; i-- {
		if f.TLVs[i].Type == t {
			return f.TLVs[i], true
		}
	}
	return RawTLV{}, false
}

func payloadAs[T Payload](f ParsedFrame, t TLVType) (T, bool) {
	v, ok := f.Payloads[t].(T)
	return v, ok
}

func (f ParsedFrame) ComplexRangeFFT() (ComplexRangeFFT, bool) {
	return payloadAs[ComplexRangeFFT](f, TLVComplexRangeFFT)
}

func (f ParsedFrame) TargetIQ() (TargetIQ, bool) { return payloadAs[TargetIQ](f, TLVTargetIQ) }

func (f ParsedFrame) PhaseOutput() (PhaseOutput, bool) {
	return payloadAs[PhaseOutput](f, TLVPhaseOutput)
}

func (f ParsedFrame) Presence() (Presence, bool) { return payloadAs[Presence](f, TLVPresence) }

func (f ParsedFrame) MotionStatus() (MotionStatus, bool) {
	return payloadAs[MotionStatus](f, TLVMotionStatus)
}

func (f ParsedFrame) TargetInfo() (TargetInfo, bool) {
	return payloadAs[TargetInfo](f, TLVTargetInfo)
}

// RangeProfile decodes the last baseline range profile TLV on demand.
func (f ParsedFrame) RangeProfile() (RangeProfile, bool) {
	tlv, ok := f.RawTLV(TLVRangeProfile)
	if !ok {
		return RangeProfile{}, false
	}
	rp, err := DecodeRangeProfile(tlv.Payload)
	if err != nil {
		return RangeProfile{}, false
	}
	return rp, true
}
