package chirp

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodeFrame_PresenceScenario decodes a hand-assembled frame byte by
// byte as the firmware would send it.
func TestDecodeFrame_PresenceScenario(t *testing.T) {
	le := binary.LittleEndian
	data := append([]byte{}, MagicWord[:]...)
	for _, v := range []uint32{0x03060200, 56, 0, 1, 0, 0, 1, 0} {
		data = le.AppendUint32(data, v)
	}
	data = le.AppendUint32(data, 0x0540)
	data = le.AppendUint32(data, 8)
	data = append(data, 1, 80)
	data = le.AppendUint16(data, 512)
	data = le.AppendUint16(data, 3)
	data = le.AppendUint16(data, 0)
	require.Len(t, data, 56)

	f, err := DecodeFrame(data)
	require.NoError(t, err)

	assert.Equal(t, HeaderStandard40, f.Header.Variant)
	assert.Equal(t, uint32(1), f.Header.FrameNumber)
	require.Len(t, f.TLVs, 1)
	assert.Equal(t, "PRESENCE", f.TLVs[0].Name)

	p, ok := f.Presence()
	require.True(t, ok)
	assert.Equal(t, "present", p.State.String())
	assert.Equal(t, uint8(80), p.Confidence)
	assert.Equal(t, 2.0, p.RangeMeters())
	assert.Equal(t, uint16(3), p.TargetBin)
}

func TestDecodeFrame_RoundTrip(t *testing.T) {
	fft := ComplexRangeFFT{
		NumRangeBins: 4,
		ChirpIndex:   2,
		RxAntenna:    3,
		Bins:         []ComplexSample{{Imag: -1, Real: 1}, {Imag: 2, Real: -2}, {Imag: 300, Real: -300}, {Imag: 0, Real: 32767}},
	}
	iq := TargetIQ{NumBins: 2, CenterBin: 20, TimestampUS: 99999, Bins: []TargetIQBin{{BinIndex: 19, Imag: 5, Real: -5}, {BinIndex: 20, Imag: 6, Real: -6}}}
	phase := PhaseOutput{NumBins: 1, CenterBin: 20, TimestampUS: 100000, Bins: []PhaseBin{{BinIndex: 20, Phase: 16384, Magnitude: 700, Flags: PhaseFlagValid}}}
	presence := Presence{State: PresenceMotion, Confidence: 99, RangeQ8: 640, TargetBin: 20}
	motion := MotionStatus{Detected: true, Level: 12, BinCount: 3, PeakBin: 21, PeakDelta: 44}
	info := TargetInfo{PrimaryBin: 20, PrimaryMagnitude: 700, PrimaryRangeQ8: 640, Confidence: 88, NumTargets: 2, SecondaryBin: 40}

	b := FrameBuilder{
		Version:        0x03060200,
		Platform:       0x00680443,
		FrameNumber:    1234,
		TimeCPUCycles:  0xDEADBEEF,
		NumDetectedObj: 1,
		SubframeNumber: 1,
	}
	b.AddTLV(TLVRangeProfile, []byte{10, 0, 20, 0, 30, 0})
	data := buildFrame(t, &b, fft, iq, phase, presence, motion, info)

	f, err := DecodeFrame(data)
	require.NoError(t, err)

	if diff := cmp.Diff(b.Header(), f.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint32(7), f.Header.NumTLVs)
	assert.Equal(t, uint32(len(data)), f.Header.TotalPacketLen)
	wantTypes := []TLVType{TLVRangeProfile, TLVComplexRangeFFT, TLVTargetIQ, TLVPhaseOutput, TLVPresence, TLVMotionStatus, TLVTargetInfo}
	require.Len(t, f.TLVs, len(wantTypes))
	for i, typ := range wantTypes {
		assert.Equal(t, typ, f.TLVs[i].Type, "tlv %d", i)
	}

	wantPayloads := map[TLVType]Payload{
		TLVComplexRangeFFT: fft,
		TLVTargetIQ:        iq,
		TLVPhaseOutput:     phase,
		TLVPresence:        presence,
		TLVMotionStatus:    motion,
		TLVTargetInfo:      info,
	}
	if diff := cmp.Diff(wantPayloads, f.Payloads); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	rp, ok := f.RangeProfile()
	require.True(t, ok)
	assert.Equal(t, []uint16{10, 20, 30}, rp.Values)

	gotPhase, ok := f.PhaseOutput()
	require.True(t, ok)
	assert.InDelta(t, 1.5707963, gotPhase.Bins[0].Radians(), 1e-3)
}

func TestDecodeFrame_LastInstanceWins(t *testing.T) {
	data := buildFrame(t, &FrameBuilder{},
		Presence{State: PresenceAbsent, Confidence: 10},
		Presence{State: PresencePresent, Confidence: 90},
	)
	f, err := DecodeFrame(data)
	require.NoError(t, err)

	require.Len(t, f.TLVs, 2)
	p, ok := f.Presence()
	require.True(t, ok)
	assert.Equal(t, uint8(90), p.Confidence)
}

func TestDecodeFrame_PayloadFailureIsIsolated(t *testing.T) {
	var b FrameBuilder
	b.AddTLV(TLVPresence, []byte{1, 2, 3, 4}) // too short
	data := buildFrame(t, &b, MotionStatus{Detected: true, Level: 5})

	f, err := DecodeFrame(data)
	require.NoError(t, err)

	assert.Len(t, f.TLVs, 2)
	_, ok := f.Presence()
	assert.False(t, ok)
	m, ok := f.MotionStatus()
	require.True(t, ok)
	assert.Equal(t, uint8(5), m.Level)
}

func TestDecodeFrame_Failures(t *testing.T) {
	valid := presenceFrame(t, 1, 50)

	_, err := DecodeFrame(valid[:len(valid)-1])
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = DecodeFrame(append([]byte{0}, valid...))
	assert.ErrorIs(t, err, ErrFramingDesync)

	corrupt := append([]byte{}, valid...)
	binary.LittleEndian.PutUint32(corrupt[12:16], 3)
	_, err = DecodeFrame(corrupt)
	assert.True(t, errors.Is(err, ErrFramingDesync))
}

func TestDecodeFrame_IgnoresTrailingBytes(t *testing.T) {
	valid := presenceFrame(t, 1, 50)
	f, err := DecodeFrame(append(append([]byte{}, valid...), MagicWord[:]...))
	require.NoError(t, err)
	assert.Len(t, f.TLVs, 1)
}

func TestDecodeFrame_DoesNotAliasInput(t *testing.T) {
	data := presenceFrame(t, 1, 50)
	f, err := DecodeFrame(data)
	require.NoError(t, err)

	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, uint32(8), f.TLVs[0].Length)
	assert.Equal(t, byte(1), f.TLVs[0].Payload[0])
}

func TestDecodeFrameWith_CustomRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(TLVPresence, func(b []byte) (Payload, error) {
		p, err := DecodePresence(b)
		p.Confidence = 1
		return p, err
	})
	data := presenceFrame(t, 1, 50)

	f, err := DecodeFrameWith(data, reg)
	require.NoError(t, err)
	p, ok := f.Presence()
	require.True(t, ok)
	assert.Equal(t, uint8(1), p.Confidence)

	f, err = DecodeFrameWith(data, NewRegistry())
	require.NoError(t, err)
	assert.Empty(t, f.Payloads)
	assert.True(t, f.Has(TLVPresence))
}

func TestParsedFrame_Accessors(t *testing.T) {
	f, err := DecodeFrame(presenceFrame(t, 1, 50))
	require.NoError(t, err)

	_, ok := f.ComplexRangeFFT()
	assert.False(t, ok)
	_, ok = f.TargetIQ()
	assert.False(t, ok)
	_, ok = f.TargetInfo()
	assert.False(t, ok)
	_, ok = f.RangeProfile()
	assert.False(t, ok)
	_, ok = f.RawTLV(TLVStats)
	assert.False(t, ok)
	p, ok := f.Payload(TLVPresence)
	require.True(t, ok)
	assert.Equal(t, TLVPresence, p.TLVType())
}
