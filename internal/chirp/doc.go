// Package chirp decodes the UART output of the chirp mmWave radar firmware.
//
// Responsibilities: accumulating raw serial bytes, locating frames by their
// magic word, validating the two supported header layouts, walking the TLV
// records of each frame, and decoding the custom TLV family (0x0500-0x05FF)
// into typed payloads. Baseline SDK TLVs (types 1-9) are passed through raw.
//
// Key types: Parser (streaming Feed/Drain), ParsedFrame, FrameHeader, RawTLV,
// and the Payload union (ComplexRangeFFT, TargetIQ, PhaseOutput, Presence,
// MotionStatus, TargetInfo).
//
// The package performs no I/O and never blocks. A Parser is not safe for
// concurrent use; the transport layer in internal/serialmux owns one Parser
// per reader goroutine.
package chirp
