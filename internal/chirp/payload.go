package chirp

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Payload is a decoded custom TLV. The concrete types are ComplexRangeFFT,
// TargetIQ, PhaseOutput, Presence, MotionStatus and TargetInfo.
type Payload interface {
	TLVType() TLVType
}

// Payload sub-header and record sizes.
const (
	complexRangeFFTHeaderLen = 8 // num_bins, chirp_index, rx_antenna, reserved
	complexSampleLen         = 4 // imag(i16) + real(i16)
	binListHeaderLen         = 8 // num_bins(u16), center_bin(u16), timestamp_us(u32)
	binRecordLen             = 8 // fixed per-bin record in TargetIQ/PhaseOutput
	presenceLen              = 8
	motionStatusLen          = 8
	targetInfoLen            = 12
)

// ComplexSample is one range bin of the complex range FFT. On the wire the
// imaginary part precedes the real part.
type ComplexSample struct {
	Imag int16
	Real int16
}

// ComplexRangeFFT (0x0500) carries I/Q for every range bin of one chirp.
type ComplexRangeFFT struct {
	NumRangeBins uint16 // Declared count; len(Bins) may be smaller
	ChirpIndex   uint16
	RxAntenna    uint16
	Reserved     uint16
	Bins         []ComplexSample
}

func (ComplexRangeFFT) TLVType() TLVType { return TLVComplexRangeFFT }

// TargetIQBin is the raw I/Q of one selected bin.
type TargetIQBin struct {
	BinIndex uint16
	Imag     int16
	Real     int16
}

// TargetIQ (0x0510) carries I/Q for the selected target bins only.
type TargetIQ struct {
	NumBins     uint16 // Declared count; len(Bins) may be smaller
	CenterBin   uint16
	TimestampUS uint32
	Bins        []TargetIQBin
}

func (TargetIQ) TLVType() TLVType { return TLVTargetIQ }

// Phase flag bits.
const (
	PhaseFlagMotion uint16 = 1 << 0
	PhaseFlagValid  uint16 = 1 << 1
)

// PhaseBin is the phase and magnitude of one selected bin. Phase is fixed
// point: -32768..32767 spans -π..π.
type PhaseBin struct {
	BinIndex  uint16
	Phase     int16
	Magnitude uint16
	Flags     uint16
}

// Radians converts the fixed-point phase to radians.
func (b PhaseBin) Radians() float64 {
	return float64(b.Phase) * math.Pi / PhaseScale
}

func (b PhaseBin) HasMotion() bool { return b.Flags&PhaseFlagMotion != 0 }
func (b PhaseBin) Valid() bool     { return b.Flags&PhaseFlagValid != 0 }

// PhaseOutput (0x0520) carries phase and magnitude for the selected bins.
type PhaseOutput struct {
	NumBins     uint16 // Declared count; len(Bins) may be smaller
	CenterBin   uint16
	TimestampUS uint32
	Bins        []PhaseBin
}

func (PhaseOutput) TLVType() TLVType { return TLVPhaseOutput }

// PresenceState is the occupancy classification reported by the firmware.
type PresenceState uint8

const (
	PresenceAbsent  PresenceState = 0
	PresencePresent PresenceState = 1
	PresenceMotion  PresenceState = 2
)

func (s PresenceState) String() string {
	switch s {
	case PresenceAbsent:
		return "absent"
	case PresencePresent:
		return "present"
	case PresenceMotion:
		return "motion"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Presence (0x0540) is the presence detection result.
type Presence struct {
	State      PresenceState
	Confidence uint8  // Percent, 0-100
	RangeQ8    uint16 // Metres in Q8 fixed point
	TargetBin  uint16
	Reserved   uint16
}

func (Presence) TLVType() TLVType { return TLVPresence }

// RangeMeters converts RangeQ8 to metres.
func (p Presence) RangeMeters() float64 { return q8ToMeters(p.RangeQ8) }

// MotionStatus (0x0550) is the motion detection result.
type MotionStatus struct {
	Detected  bool
	Level     uint8
	BinCount  uint16
	PeakBin   uint16
	PeakDelta uint16
}

func (MotionStatus) TLVType() TLVType { return TLVMotionStatus }

// TargetInfo (0x0560) is the target selection metadata.
type TargetInfo struct {
	PrimaryBin       uint16
	PrimaryMagnitude uint16
	PrimaryRangeQ8   uint16 // Metres in Q8 fixed point
	Confidence       uint8  // Percent, 0-100
	NumTargets       uint8
	SecondaryBin     uint16
	Reserved         uint16
}

func (TargetInfo) TLVType() TLVType { return TLVTargetInfo }

// RangeMeters converts PrimaryRangeQ8 to metres.
func (t TargetInfo) RangeMeters() float64 { return q8ToMeters(t.PrimaryRangeQ8) }

func q8ToMeters(q uint16) float64 { return float64(q) / Q8Scale }

func shortPayload(t TLVType, need, got int) error {
	return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrPayloadDecode, t, need, got)
}

// fittingBins returns how many records of size recLen fit in avail bytes,
// capped at the declared count. Bin arrays are truncated to what fits rather
// than failing the whole TLV.
func fittingBins(declared uint16, avail, recLen int) int {
	n := avail / recLen
	if int(declared) < n {
		n = int(declared)
	}
	return n
}

// DecodeComplexRangeFFT decodes a 0x0500 payload.
func DecodeComplexRangeFFT(b []byte) (ComplexRangeFFT, error) {
	if len(b) < complexRangeFFTHeaderLen {
		return ComplexRangeFFT{}, shortPayload(TLVComplexRangeFFT, complexRangeFFTHeaderLen, len(b))
	}
	fft := ComplexRangeFFT{
		NumRangeBins: binary.LittleEndian.Uint16(b[0:2]),
		ChirpIndex:   binary.LittleEndian.Uint16(b[2:4]),
		RxAntenna:    binary.LittleEndian.Uint16(b[4:6]),
		Reserved:     binary.LittleEndian.Uint16(b[6:8]),
	}
	data := b[complexRangeFFTHeaderLen:]
	n := fittingBins(fft.NumRangeBins, len(data), complexSampleLen)
	fft.Bins = make([]ComplexSample, n)
	for i := range fft.Bins {
		off := i * complexSampleLen
		fft.Bins[i] = ComplexSample{
			Imag: int16(binary.LittleEndian.Uint16(data[off : off+2])),
			Real: int16(binary.LittleEndian.Uint16(data[off+2 : off+4])),
		}
	}
	return fft, nil
}

// binListHeader is the sub-header shared by TargetIQ and PhaseOutput.
type binListHeader struct {
	numBins     uint16
	centerBin   uint16
	timestampUS uint32
}

func decodeBinListHeader(t TLVType, b []byte) (binListHeader, []byte, int, error) {
	if len(b) < binListHeaderLen {
		return binListHeader{}, nil, 0, shortPayload(t, binListHeaderLen, len(b))
	}
	h := binListHeader{
		numBins:     binary.LittleEndian.Uint16(b[0:2]),
		centerBin:   binary.LittleEndian.Uint16(b[2:4]),
		timestampUS: binary.LittleEndian.Uint32(b[4:8]),
	}
	data := b[binListHeaderLen:]
	return h, data, fittingBins(h.numBins, len(data), binRecordLen), nil
}

// DecodeTargetIQ decodes a 0x0510 payload.
func DecodeTargetIQ(b []byte) (TargetIQ, error) {
	h, data, n, err := decodeBinListHeader(TLVTargetIQ, b)
	if err != nil {
		return TargetIQ{}, err
	}
	out := TargetIQ{NumBins: h.numBins, CenterBin: h.centerBin, TimestampUS: h.timestampUS}
	out.Bins = make([]TargetIQBin, n)
	for i := range out.Bins {
		rec := data[i*binRecordLen : (i+1)*binRecordLen]
		out.Bins[i] = TargetIQBin{
			BinIndex: binary.LittleEndian.Uint16(rec[0:2]),
			Imag:     int16(binary.LittleEndian.Uint16(rec[2:4])),
			Real:     int16(binary.LittleEndian.Uint16(rec[4:6])),
		}
	}
	return out, nil
}

// DecodePhaseOutput decodes a 0x0520 payload.
func DecodePhaseOutput(b []byte) (PhaseOutput, error) {
	h, data, n, err := decodeBinListHeader(TLVPhaseOutput, b)
	if err != nil {
		return PhaseOutput{}, err
	}
	out := PhaseOutput{NumBins: h.numBins, CenterBin: h.centerBin, TimestampUS: h.timestampUS}
	out.Bins = make([]PhaseBin, n)
	for i := range out.Bins {
		rec := data[i*binRecordLen : (i+1)*binRecordLen]
		out.Bins[i] = PhaseBin{
			BinIndex:  binary.LittleEndian.Uint16(rec[0:2]),
			Phase:     int16(binary.LittleEndian.Uint16(rec[2:4])),
			Magnitude: binary.LittleEndian.Uint16(rec[4:6]),
			Flags:     binary.LittleEndian.Uint16(rec[6:8]),
		}
	}
	return out, nil
}

// DecodePresence decodes a 0x0540 payload.
func DecodePresence(b []byte) (Presence, error) {
	if len(b) < presenceLen {
		return Presence{}, shortPayload(TLVPresence, presenceLen, len(b))
	}
	return Presence{
		State:      PresenceState(b[0]),
		Confidence: b[1],
		RangeQ8:    binary.LittleEndian.Uint16(b[2:4]),
		TargetBin:  binary.LittleEndian.Uint16(b[4:6]),
		Reserved:   binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}

// DecodeMotionStatus decodes a 0x0550 payload.
func DecodeMotionStatus(b []byte) (MotionStatus, error) {
	if len(b) < motionStatusLen {
		return MotionStatus{}, shortPayload(TLVMotionStatus, motionStatusLen, len(b))
	}
	return MotionStatus{
		Detected:  b[0] != 0,
		Level:     b[1],
		BinCount:  binary.LittleEndian.Uint16(b[2:4]),
		PeakBin:   binary.LittleEndian.Uint16(b[4:6]),
		PeakDelta: binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}

// DecodeTargetInfo decodes a 0x0560 payload.
func DecodeTargetInfo(b []byte) (TargetInfo, error) {
	if len(b) < targetInfoLen {
		return TargetInfo{}, shortPayload(TLVTargetInfo, targetInfoLen, len(b))
	}
	return TargetInfo{
		PrimaryBin:       binary.LittleEndian.Uint16(b[0:2]),
		PrimaryMagnitude: binary.LittleEndian.Uint16(b[2:4]),
		PrimaryRangeQ8:   binary.LittleEndian.Uint16(b[4:6]),
		Confidence:       b[6],
		NumTargets:       b[7],
		SecondaryBin:     binary.LittleEndian.Uint16(b[8:10]),
		Reserved:         binary.LittleEndian.Uint16(b[10:12]),
	}, nil
}

// RangeProfile is the baseline TLV 2: one log-magnitude value per range bin.
type RangeProfile struct {
	Values []uint16
}

// DecodeRangeProfile decodes a baseline range profile payload. A trailing odd
// byte is ignored.
func DecodeRangeProfile(b []byte) (RangeProfile, error) {
	if len(b) < 2 {
		return RangeProfile{}, shortPayload(TLVRangeProfile, 2, len(b))
	}
	vals := make([]uint16, len(b)/2)
	for i := range vals {
		vals[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return RangeProfile{Values: vals}, nil
}
