package wire

import "fmt"

// LimitKind identifies which configured limit a DecodeError refers to.
type LimitKind uint8

const (
	LimitPacketBytes LimitKind = iota + 1
	LimitSectionCount
	LimitSectionLen
)

func (k LimitKind) String() string {
	switch k {
	case LimitPacketBytes:
		return "packet bytes"
	case LimitSectionCount:
		return "section count"
	case LimitSectionLen:
		return "section length"
	default:
		return "unknown limit"
	}
}

// PacketTooSmallError reports a buffer shorter than the fixed header size.
type PacketTooSmallError struct {
	Actual   int
	Required int
}

func (e *PacketTooSmallError) Error() string {
	return fmt.Sprintf("wire: packet too small: %d bytes, need at least %d", e.Actual, e.Required)
}

// LimitExceededError reports a configured wire-layer limit being exceeded.
type LimitExceededError struct {
	Kind   LimitKind
	Limit  int
	Actual int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("wire: %s limit exceeded: %d > %d", e.Kind, e.Actual, e.Limit)
}

// InvalidMagicError reports a packet whose magic number did not match.
type InvalidMagicError struct{ Found uint32 }

func (e *InvalidMagicError) Error() string {
	return fmt.Sprintf("wire: invalid magic number: found 0x%08X, want 0x%08X", e.Found, Magic)
}

// UnsupportedVersionError reports a packet using an unsupported protocol version.
type UnsupportedVersionError struct{ Found uint16 }

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("wire: unsupported version: found %d, want %d", e.Found, Version)
}

// InvalidFlagsError reports a packet whose flag bits are not a valid combination.
type InvalidFlagsError struct{ Flags uint16 }

func (e *InvalidFlagsError) Error() string {
	return fmt.Sprintf("wire: invalid flags: 0x%04X", e.Flags)
}

// InvalidBaselineTickError reports a baseline tick inconsistent with the packet's flags.
type InvalidBaselineTickError struct {
	BaselineTick uint32
	Flags        uint16
}

func (e *InvalidBaselineTickError) Error() string {
	return fmt.Sprintf("wire: invalid baseline tick %d for flags 0x%04X", e.BaselineTick, e.Flags)
}

// PayloadLengthMismatchError reports a header payload_len that does not
// match the number of bytes actually present.
type PayloadLengthMismatchError struct {
	HeaderLen  uint32
	ActualLen  int
}

func (e *PayloadLengthMismatchError) Error() string {
	return fmt.Sprintf("wire: payload length mismatch: header says %d, actual %d", e.HeaderLen, e.ActualLen)
}

// UnknownSectionTagError reports a section tag outside the known range.
type UnknownSectionTagError struct{ Tag uint8 }

func (e *UnknownSectionTagError) Error() string {
	return fmt.Sprintf("wire: unknown section tag %d", e.Tag)
}

// SectionTruncatedError reports a section TLV stream that ends mid-length
// or mid-body.
type SectionTruncatedError struct {
	Needed    int
	Available int
}

func (e *SectionTruncatedError) Error() string {
	return fmt.Sprintf("wire: truncated section framing: need %d bytes, %d available", e.Needed, e.Available)
}

// InvalidSectionVarintError reports a section-framing varint exceeding 5 bytes.
type InvalidSectionVarintError struct{}

func (e *InvalidSectionVarintError) Error() string {
	return "wire: invalid varint in section framing"
}

// BufferTooSmallError reports an output buffer too small to encode into.
type BufferTooSmallError struct {
	Needed    int
	Available int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("wire: buffer too small: need %d bytes, have %d", e.Needed, e.Available)
}
