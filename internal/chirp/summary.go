package chirp

import (
	"fmt"
	"strings"
)

// Summary is a compact, JSON-friendly view of a frame for logs and live
// tails.
type Summary struct {
	FrameNumber    uint32   `json:"frame_number"`
	Subframe       uint32   `json:"subframe"`
	Variant        string   `json:"variant"`
	TotalPacketLen uint32   `json:"total_packet_len"`
	TLVs           []string `json:"tlvs"`

	Presence   string   `json:"presence,omitempty"`
	Confidence *uint8   `json:"confidence,omitempty"`
	RangeM     *float64 `json:"range_m,omitempty"`
	Motion     *bool    `json:"motion,omitempty"`
	PeakBin    *uint16  `json:"peak_bin,omitempty"`
}

// Summarize extracts the headline fields of f.
func (f ParsedFrame) Summarize() Summary {
	s := Summary{
		FrameNumber:    f.Header.FrameNumber,
		Subframe:       f.Header.SubframeNumber,
		Variant:        f.Header.Variant.String(),
		TotalPacketLen: f.Header.TotalPacketLen,
		TLVs:           make([]string, 0, len(f.TLVs)),
	}
	for _, t := range f.TLVs {
		s.TLVs = append(s.TLVs, t.Name)
	}
	if p, ok := f.Presence(); ok {
		s.Presence = p.State.String()
		conf, rng := p.Confidence, p.RangeMeters()
		s.Confidence, s.RangeM = &conf, &rng
	}
	if m, ok := f.MotionStatus(); ok {
		s.Motion = &m.Detected
	}
	if ti, ok := f.TargetInfo(); ok {
		s.PeakBin = &ti.PrimaryBin
		if s.RangeM == nil {
			rng := ti.RangeMeters()
			s.RangeM = &rng
		}
	}
	return s
}

// String renders the summary on one line.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "frame=%d", s.FrameNumber)
	if s.Variant == HeaderStandard40.String() {
		fmt.Fprintf(&b, " subframe=%d", s.Subframe)
	}
	fmt.Fprintf(&b, " len=%d tlvs=[%s]", s.TotalPacketLen, strings.Join(s.TLVs, ","))
	if s.Presence != "" {
		fmt.Fprintf(&b, " presence=%s", s.Presence)
	}
	if s.Confidence != nil {
		fmt.Fprintf(&b, " confidence=%d%%", *s.Confidence)
	}
	if s.RangeM != nil {
		fmt.Fprintf(&b, " range=%.2fm", *s.RangeM)
	}
	if s.Motion != nil {
		fmt.Fprintf(&b, " motion=%t", *s.Motion)
	}
	if s.PeakBin != nil {
		fmt.Fprintf(&b, " peak_bin=%d", *s.PeakBin)
	}
	return b.String()
}
