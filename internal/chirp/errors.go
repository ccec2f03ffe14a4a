package chirp

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means the buffer does not yet hold enough bytes.
	// Callers should wait for more input; it is never a hard failure.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrFramingDesync means a magic word was found but the header behind it
	// is not a valid frame header. The streaming parser skips the marker and
	// resynchronises.
	ErrFramingDesync = errors.New("framing desync")

	// ErrCapacityExceeded reports declared lengths above the hard caps. It
	// is handled exactly like ErrFramingDesync.
	ErrCapacityExceeded = fmt.Errorf("capacity exceeded: %w", ErrFramingDesync)

	// ErrTLVTruncated reports that a declared TLV did not fit in the frame.
	// The walker stops at that record; the frame itself is still valid.
	ErrTLVTruncated = errors.New("tlv truncated")

	// ErrPayloadDecode reports a malformed custom TLV payload. Only the
	// affected TLV is dropped.
	ErrPayloadDecode = errors.New("payload decode failure")
)
