package chirp

import (
	"fmt"
	"strconv"
	"strings"
)

// Frame structure constants. All integers on the wire are little-endian.
const (
	MagicLen          = 8               // Frame start marker length
	HeaderLenStandard = 40              // Header with trailing subframe number
	HeaderLenShort    = 36              // Header without subframe number
	TLVHeaderLen      = 8               // type(u32) + length(u32)
	MaxFrameLen       = 2 * 1024 * 1024 // Upper bound on total_packet_len
	MaxTLVs           = 64              // Upper bound on num_tlvs

	// DefaultBufferCeiling is the accumulator size above which the parser
	// compacts its buffer. Frames longer than the ceiling are dropped even
	// though DecodeFrame accepts them up to MaxFrameLen: compaction trims
	// their start and the bytes count as discarded. Raise the ceiling to
	// MaxFrameLen when very large frames are expected.
	DefaultBufferCeiling = 1 * 1024 * 1024

	// PhaseScale maps the signed 16-bit phase field onto [-π, π).
	PhaseScale = 32768.0
	// Q8Scale is the divisor of Q8 fixed-point range fields.
	Q8Scale = 256.0
)

// MagicWord marks the start of every frame.
var MagicWord = [MagicLen]byte{0x02, 0x01, 0x04, 0x03, 0x06, 0x05, 0x08, 0x07}

// TLVType is the type code carried in each TLV sub-header.
type TLVType uint32

// Baseline SDK TLV types.
const (
	TLVDetectedPoints                TLVType = 1
	TLVRangeProfile                  TLVType = 2
	TLVNoiseProfile                  TLVType = 3
	TLVAzimuthStaticHeatmap          TLVType = 4
	TLVRangeDopplerHeatmap           TLVType = 5
	TLVStats                         TLVType = 6
	TLVDetectedPointsSideInfo        TLVType = 7
	TLVAzimuthElevationStaticHeatmap TLVType = 8
	TLVTemperatureStats              TLVType = 9
)

// Custom TLV types emitted by the chirp firmware.
const (
	TLVComplexRangeFFT TLVType = 0x0500 // Full I/Q for all range bins
	TLVTargetIQ        TLVType = 0x0510 // I/Q for selected target bins only
	TLVPhaseOutput     TLVType = 0x0520 // Phase + magnitude for selected bins
	TLVPresence        TLVType = 0x0540 // Presence detection result
	TLVMotionStatus    TLVType = 0x0550 // Motion detection result
	TLVTargetInfo      TLVType = 0x0560 // Target selection metadata

	customRangeStart TLVType = 0x0500
	customRangeEnd   TLVType = 0x05FF
)

var tlvNames = map[TLVType]string{
	TLVDetectedPoints:                "DETECTED_POINTS",
	TLVRangeProfile:                  "RANGE_PROFILE",
	TLVNoiseProfile:                  "NOISE_PROFILE",
	TLVAzimuthStaticHeatmap:          "AZIMUTH_STATIC_HEATMAP",
	TLVRangeDopplerHeatmap:           "RANGE_DOPPLER_HEATMAP",
	TLVStats:                         "STATS",
	TLVDetectedPointsSideInfo:        "SIDE_INFO",
	TLVAzimuthElevationStaticHeatmap: "AZIMUTH_ELEVATION_HEATMAP",
	TLVTemperatureStats:              "TEMPERATURE_STATS",
	TLVComplexRangeFFT:               "COMPLEX_RANGE_FFT",
	TLVTargetIQ:                      "TARGET_IQ",
	TLVPhaseOutput:                   "PHASE_OUTPUT",
	TLVPresence:                      "PRESENCE",
	TLVMotionStatus:                  "MOTION_STATUS",
	TLVTargetInfo:                    "TARGET_INFO",
}

// String returns the human-readable TLV name, or UNKNOWN_0xNNNN.
func (t TLVType) String() string {
	if name, ok := tlvNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_0x%04X", uint32(t))
}

// IsCustom reports whether t lies in the firmware extension range.
func (t TLVType) IsCustom() bool {
	return t >= customRangeStart && t <= customRangeEnd
}

// IsBaseline reports whether t is one of the standard SDK types 1-9.
func (t TLVType) IsBaseline() bool {
	return t >= TLVDetectedPoints && t <= TLVTemperatureStats
}

// ParseTLVType accepts a TLV name (case-insensitive, e.g. "phase_output") or a
// numeric code in any base strconv understands ("0x0520", "1312").
func ParseTLVType(s string) (TLVType, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	for t, name := range tlvNames {
		if name == upper {
			return t, nil
		}
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown TLV type %q", s)
	}
	return TLVType(n), nil
}
