package chirp

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStatsTLVFrame() FrameBuilder {
	var b FrameBuilder
	b.AddTLV(TLVStats, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	b.AddTLV(TLVTemperatureStats, []byte{9, 9, 9, 9, 9, 9, 9, 9})
	b.AddTLV(TLVType(0x0599), []byte{0xAB, 0xCD, 0xEF, 0x01, 0x02, 0x03, 0x04, 0x05})
	return b
}

func TestWalkTLVs_WireOrder(t *testing.T) {
	b := threeStatsTLVFrame()
	data := b.Bytes()
	h, err := DecodeHeader(data)
	require.NoError(t, err)

	tlvs, err := WalkTLVs(data, h)
	require.NoError(t, err)
	require.Len(t, tlvs, 3)

	assert.Equal(t, TLVStats, tlvs[0].Type)
	assert.Equal(t, "STATS", tlvs[0].Name)
	assert.Equal(t, uint32(8), tlvs[0].Length)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, tlvs[0].Payload)
	assert.Equal(t, "TEMPERATURE_STATS", tlvs[1].Name)
	assert.Equal(t, "UNKNOWN_0x0599", tlvs[2].Name)
}

func TestWalkTLVs_DeclaredMoreThanPresent(t *testing.T) {
	b := threeStatsTLVFrame()
	data := b.Bytes()
	// Declare five TLVs while only three are present; 88 bytes still
	// satisfies total >= 40 + 5*8.
	binary.LittleEndian.PutUint32(data[32:36], 5)

	h, err := DecodeHeader(data)
	require.NoError(t, err)
	require.Equal(t, uint32(5), h.NumTLVs)

	tlvs, err := WalkTLVs(data, h)
	assert.ErrorIs(t, err, ErrTLVTruncated)
	assert.Len(t, tlvs, 3)
}

func TestWalkTLVs_PayloadCrossesBound(t *testing.T) {
	b := threeStatsTLVFrame()
	data := b.Bytes()
	// Inflate the second TLV's length past the end of the frame.
	second := HeaderLenStandard + TLVHeaderLen + 8
	binary.LittleEndian.PutUint32(data[second+4:second+8], 1000)

	h, err := DecodeHeader(data)
	require.NoError(t, err)

	tlvs, err := WalkTLVs(data, h)
	assert.ErrorIs(t, err, ErrTLVTruncated)
	require.Len(t, tlvs, 1)
	assert.Equal(t, TLVStats, tlvs[0].Type)
}

func TestWalkTLVs_BoundedByTotalPacketLen(t *testing.T) {
	b := threeStatsTLVFrame()
	data := b.Bytes()
	h, err := DecodeHeader(data)
	require.NoError(t, err)

	// Trailing bytes beyond the frame must never be read as TLV data.
	withTrailer := append(append([]byte{}, data...), 0xFF, 0xFF, 0xFF, 0xFF)
	h.NumTLVs = 4
	tlvs, err := WalkTLVs(withTrailer, h)
	assert.ErrorIs(t, err, ErrTLVTruncated)
	assert.Len(t, tlvs, 3)
}

func TestWalkTLVs_UnvalidatedTLVCount(t *testing.T) {
	b := threeStatsTLVFrame()
	data := b.Bytes()
	h, err := DecodeHeader(data)
	require.NoError(t, err)

	h.NumTLVs = math.MaxUint32
	tlvs, err := WalkTLVs(data, h)
	assert.ErrorIs(t, err, ErrTLVTruncated)
	assert.Len(t, tlvs, 3)
	assert.LessOrEqual(t, cap(tlvs), MaxTLVs)
}

func TestWalkTLVs_PayloadIsCapped(t *testing.T) {
	b := threeStatsTLVFrame()
	data := b.Bytes()
	h, err := DecodeHeader(data)
	require.NoError(t, err)

	tlvs, err := WalkTLVs(data, h)
	require.NoError(t, err)
	assert.Equal(t, len(tlvs[0].Payload), cap(tlvs[0].Payload))
}

func TestTLVType_Classification(t *testing.T) {
	assert.True(t, TLVPresence.IsCustom())
	assert.True(t, TLVType(0x05FF).IsCustom())
	assert.False(t, TLVType(0x0600).IsCustom())
	assert.False(t, TLVStats.IsCustom())
	assert.True(t, TLVStats.IsBaseline())
	assert.False(t, TLVType(0).IsBaseline())
	assert.Equal(t, "COMPLEX_RANGE_FFT", TLVComplexRangeFFT.String())
}
