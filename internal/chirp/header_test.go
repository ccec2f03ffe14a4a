package chirp

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawHeader encodes a 40-byte header with the given length fields.
func rawHeader(total, numTLVs uint32) []byte {
	b, _ := FrameHeader{Version: 1, TotalPacketLen: total, NumTLVs: numTLVs, SubframeNumber: 9}.AppendBinary(nil)
	return b
}

func TestDecodeHeader_Standard40(t *testing.T) {
	b := FrameBuilder{
		Version:        0x03060200,
		Platform:       0x00680443,
		FrameNumber:    42,
		TimeCPUCycles:  123456,
		NumDetectedObj: 3,
		SubframeNumber: 2,
	}
	b.AddTLV(TLVStats, make([]byte, 24))
	data := b.Bytes()

	got, err := DecodeHeader(data)
	require.NoError(t, err)

	want := FrameHeader{
		Magic:          MagicWord,
		Version:        0x03060200,
		TotalPacketLen: 40 + 8 + 24,
		Platform:       0x00680443,
		FrameNumber:    42,
		TimeCPUCycles:  123456,
		NumDetectedObj: 3,
		NumTLVs:        1,
		SubframeNumber: 2,
		HeaderLen:      HeaderLenStandard,
		Variant:        HeaderStandard40,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeHeader_Short36(t *testing.T) {
	t.Run("bare header", func(t *testing.T) {
		b := FrameBuilder{Variant: HeaderShort36, FrameNumber: 7}
		data := b.Bytes()
		require.Len(t, data, HeaderLenShort)

		h, err := DecodeHeader(data)
		require.NoError(t, err)
		assert.Equal(t, HeaderShort36, h.Variant)
		assert.Equal(t, HeaderLenShort, h.HeaderLen)
		assert.Equal(t, uint32(0), h.SubframeNumber)
		assert.Equal(t, uint32(7), h.FrameNumber)
	})

	t.Run("empty tlv only fits short layout", func(t *testing.T) {
		b := FrameBuilder{Variant: HeaderShort36}
		b.AddTLV(TLVStats, nil)
		data := b.Bytes() // 44 bytes: too short for 40 + 8

		h, err := DecodeHeader(data)
		require.NoError(t, err)
		assert.Equal(t, HeaderShort36, h.Variant)
		assert.Equal(t, uint32(44), h.TotalPacketLen)
	})
}

func TestDecodeHeader_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantErr  error
		capacity bool
	}{
		{name: "empty", data: nil, wantErr: ErrInsufficientData},
		{name: "magic only", data: MagicWord[:], wantErr: ErrInsufficientData},
		{name: "short of both layouts", data: rawHeader(40, 0)[:30], wantErr: ErrInsufficientData},
		{name: "no magic", data: make([]byte, 40), wantErr: ErrFramingDesync},
		{name: "total below header", data: rawHeader(20, 0), wantErr: ErrFramingDesync},
		{name: "total above cap", data: rawHeader(MaxFrameLen+1, 0), wantErr: ErrFramingDesync, capacity: true},
		{name: "too many tlvs", data: rawHeader(MaxFrameLen, MaxTLVs+1), wantErr: ErrFramingDesync, capacity: true},
		{name: "total cannot hold tlv headers", data: rawHeader(36+8*2-1, 2), wantErr: ErrFramingDesync},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHeader(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.capacity, errors.Is(err, ErrCapacityExceeded))
		})
	}
}

func TestDecodeHeader_LimitsAccepted(t *testing.T) {
	h, err := DecodeHeader(rawHeader(MaxFrameLen, MaxTLVs))
	require.NoError(t, err)
	assert.Equal(t, uint32(MaxTLVs), h.NumTLVs)
	assert.Equal(t, uint32(MaxFrameLen), h.TotalPacketLen)
}

func TestFrameHeader_AppendBinary(t *testing.T) {
	h := FrameHeader{Version: 5, TotalPacketLen: 36, NumTLVs: 0, Variant: HeaderShort36, HeaderLen: HeaderLenShort}
	b, err := h.AppendBinary(nil)
	require.NoError(t, err)
	require.Len(t, b, HeaderLenShort)
	assert.Equal(t, MagicWord[:], b[:MagicLen])
	assert.Equal(t, uint32(36), binary.LittleEndian.Uint32(b[12:16]))
}

func TestFrameHeader_AppendBinaryFollowsVariant(t *testing.T) {
	b, err := FrameHeader{Variant: HeaderShort36, HeaderLen: HeaderLenStandard}.AppendBinary(nil)
	require.NoError(t, err)
	assert.Len(t, b, HeaderLenShort)

	b, err = FrameHeader{Variant: HeaderStandard40, HeaderLen: HeaderLenShort}.AppendBinary(nil)
	require.NoError(t, err)
	assert.Len(t, b, HeaderLenStandard)
}

func TestHeaderVariant_String(t *testing.T) {
	assert.Equal(t, "standard_40", HeaderStandard40.String())
	assert.Equal(t, "short_36", HeaderShort36.String())
	assert.Equal(t, "variant(9)", HeaderVariant(9).String())
}
