package chirp

import (
	"encoding/binary"
	"fmt"
)

// RawTLV is one type-length-value record as it appeared on the wire.
type RawTLV struct {
	Type    TLVType
	Name    string // Derived from Type
	Length  uint32
	Payload []byte // Exactly Length bytes
}

// WalkTLVs returns, in wire order, up to h.NumTLVs records from frame. The
// walk is bounded by h.TotalPacketLen (or len(frame) if shorter) and starts
// at h.HeaderLen.
//
// Walking stops at the first record whose sub-header or payload would cross
// the bound. In that case the records decoded so far are returned along with
// an error wrapping ErrTLVTruncated; the returned records are always complete.
func WalkTLVs(frame []byte, h FrameHeader) ([]RawTLV, error) {
	end := len(frame)
	if uint64(h.TotalPacketLen) < uint64(end) {
		end = int(h.TotalPacketLen)
	}
	offset := h.HeaderLen
	if offset > end {
		return nil, fmt.Errorf("%w: header extends past frame bound", ErrTLVTruncated)
	}

	tlvs := make([]RawTLV, 0, min(h.NumTLVs, MaxTLVs))
	for i := uint32(0); i < h.NumTLVs; i++ {
		if end-offset < TLVHeaderLen {
			return tlvs, fmt.Errorf("%w: tlv %d of %d: sub-header needs %d bytes, %d left",
				ErrTLVTruncated, i+1, h.NumTLVs, TLVHeaderLen, end-offset)
		}
		typ := TLVType(binary.LittleEndian.Uint32(frame[offset : offset+4]))
		length := binary.LittleEndian.Uint32(frame[offset+4 : offset+8])
		offset += TLVHeaderLen

		if uint64(length) > uint64(end-offset) {
			return tlvs, fmt.Errorf("%w: tlv %d of %d (%s): length %d, %d bytes left",
				ErrTLVTruncated, i+1, h.NumTLVs, typ, length, end-offset)
		}
		tlvs = append(tlvs, RawTLV{
			Type:    typ,
			Name:    typ.String(),
			Length:  length,
			Payload: frame[offset : offset+int(length) : offset+int(length)],
		})
		offset += int(length)
	}
	return tlvs, nil
}
