package chirp

import (
	"encoding/binary"
	"fmt"
)

// EncodePayload returns the wire encoding of a typed payload. Bin arrays are
// written as held in Bins; the declared count fields are written unchanged, so
// a payload whose count exceeds len(Bins) encodes a short TLV.
func EncodePayload(p Payload) ([]byte, error) {
	le := binary.LittleEndian
	switch v := p.(type) {
	case ComplexRangeFFT:
		b := make([]byte, 0, complexRangeFFTHeaderLen+len(v.Bins)*complexSampleLen)
		b = le.AppendUint16(b, v.NumRangeBins)
		b = le.AppendUint16(b, v.ChirpIndex)
		b = le.AppendUint16(b, v.RxAntenna)
		b = le.AppendUint16(b, v.Reserved)
		for _, s := range v.Bins {
			b = le.AppendUint16(b, uint16(s.Imag))
			b = le.AppendUint16(b, uint16(s.Real))
		}
		return b, nil
	case TargetIQ:
		b := binListHeaderBytes(v.NumBins, v.CenterBin, v.TimestampUS, len(v.Bins))
		for _, bin := range v.Bins {
			b = le.AppendUint16(b, bin.BinIndex)
			b = le.AppendUint16(b, uint16(bin.Imag))
			b = le.AppendUint16(b, uint16(bin.Real))
			b = le.AppendUint16(b, 0)
		}
		return b, nil
	case PhaseOutput:
		b := binListHeaderBytes(v.NumBins, v.CenterBin, v.TimestampUS, len(v.Bins))
		for _, bin := range v.Bins {
			b = le.AppendUint16(b, bin.BinIndex)
			b = le.AppendUint16(b, uint16(bin.Phase))
			b = le.AppendUint16(b, bin.Magnitude)
			b = le.AppendUint16(b, bin.Flags)
		}
		return b, nil
	case Presence:
		b := []byte{byte(v.State), v.Confidence}
		b = le.AppendUint16(b, v.RangeQ8)
		b = le.AppendUint16(b, v.TargetBin)
		return le.AppendUint16(b, v.Reserved), nil
	case MotionStatus:
		var detected byte
		if v.Detected {
			detected = 1
		}
		b := []byte{detected, v.Level}
		b = le.AppendUint16(b, v.BinCount)
		b = le.AppendUint16(b, v.PeakBin)
		return le.AppendUint16(b, v.PeakDelta), nil
	case TargetInfo:
		b := make([]byte, 0, targetInfoLen)
		b = le.AppendUint16(b, v.PrimaryBin)
		b = le.AppendUint16(b, v.PrimaryMagnitude)
		b = le.AppendUint16(b, v.PrimaryRangeQ8)
		b = append(b, v.Confidence, v.NumTargets)
		b = le.AppendUint16(b, v.SecondaryBin)
		return le.AppendUint16(b, v.Reserved), nil
	default:
		return nil, fmt.Errorf("cannot encode payload type %T", p)
	}
}

func binListHeaderBytes(numBins, centerBin uint16, ts uint32, n int) []byte {
	b := make([]byte, 0, binListHeaderLen+n*binRecordLen)
	b = binary.LittleEndian.AppendUint16(b, numBins)
	b = binary.LittleEndian.AppendUint16(b, centerBin)
	return binary.LittleEndian.AppendUint32(b, ts)
}

// FrameBuilder assembles a wire frame. The zero value builds a 40-byte
// header frame with no TLVs.
type FrameBuilder struct {
	Variant        HeaderVariant
	Version        uint32
	Platform       uint32
	FrameNumber    uint32
	TimeCPUCycles  uint32
	NumDetectedObj uint32
	SubframeNumber uint32 // Ignored for HeaderShort36

	tlvs []RawTLV
}

// AddTLV appends a raw TLV record.
func (b *FrameBuilder) AddTLV(t TLVType, payload []byte) *FrameBuilder {
	b.tlvs = append(b.tlvs, RawTLV{Type: t, Name: t.String(), Length: uint32(len(payload)), Payload: payload})
	return b
}

// AddPayload encodes p and appends it as a TLV of its own type.
func (b *FrameBuilder) AddPayload(p Payload) (*FrameBuilder, error) {
	data, err := EncodePayload(p)
	if err != nil {
		return b, err
	}
	return b.AddTLV(p.TLVType(), data), nil
}

// Header returns the header the builder will emit.
func (b *FrameBuilder) Header() FrameHeader {
	h := FrameHeader{
		Magic:          MagicWord,
		Version:        b.Version,
		Platform:       b.Platform,
		FrameNumber:    b.FrameNumber,
		TimeCPUCycles:  b.TimeCPUCycles,
		NumDetectedObj: b.NumDetectedObj,
		NumTLVs:        uint32(len(b.tlvs)),
		Variant:        b.Variant,
		HeaderLen:      HeaderLenStandard,
	}
	if b.Variant == HeaderShort36 {
		h.HeaderLen = HeaderLenShort
	} else {
		h.SubframeNumber = b.SubframeNumber
	}
	total := h.HeaderLen
	for _, tlv := range b.tlvs {
		total += TLVHeaderLen + len(tlv.Payload)
	}
	h.TotalPacketLen = uint32(total)
	return h
}

// Bytes returns the encoded frame.
func (b *FrameBuilder) Bytes() []byte {
	h := b.Header()
	out := make([]byte, 0, h.TotalPacketLen)
	out, _ = h.AppendBinary(out)
	for _, tlv := range b.tlvs {
		out = binary.LittleEndian.AppendUint32(out, uint32(tlv.Type))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(tlv.Payload)))
		out = append(out, tlv.Payload...)
	}
	return out
}
