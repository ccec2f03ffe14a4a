package chirp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTLVType(t *testing.T) {
	tests := []struct {
		in   string
		want TLVType
	}{
		{"PHASE_OUTPUT", TLVPhaseOutput},
		{"presence", TLVPresence},
		{" range_profile ", TLVRangeProfile},
		{"0x0520", TLVPhaseOutput},
		{"0X560", TLVTargetInfo},
		{"1280", TLVComplexRangeFFT},
		{"0x05AA", TLVType(0x05AA)},
	}
	for _, tt := range tests {
		got, err := ParseTLVType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "NOT_A_TLV", "0x1FFFFFFFF", "-1"} {
		_, err := ParseTLVType(bad)
		assert.Error(t, err, bad)
	}
}

func TestTLVType_String(t *testing.T) {
	assert.Equal(t, "COMPLEX_RANGE_FFT", TLVComplexRangeFFT.String())
	assert.Equal(t, "TEMPERATURE_STATS", TLVTemperatureStats.String())
	assert.Equal(t, "UNKNOWN_0x0599", TLVType(0x0599).String())
	assert.Equal(t, "UNKNOWN_0x12345", TLVType(0x12345).String())
}
