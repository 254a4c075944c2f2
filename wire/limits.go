package wire

import "math"

// Limits bounds the resources a decoder will spend parsing a single
// packet's section framing, independent of any schema-level limits the
// codec package enforces on top.
type Limits struct {
	MaxPacketBytes int
	MaxSections    int
	MaxSectionLen  int
}

// DefaultLimits returns production-sized limits.
func DefaultLimits() Limits {
	return Limits{MaxPacketBytes: 65536, MaxSections: 16, MaxSectionLen: 32768}
}

// TestingLimits returns small limits convenient for exercising limit
// rejection paths in tests.
func TestingLimits() Limits {
	return Limits{MaxPacketBytes: 4096, MaxSections: 8, MaxSectionLen: 1024}
}

// UnlimitedLimits returns limits that will not reject any well-formed packet.
func UnlimitedLimits() Limits {
	return Limits{MaxPacketBytes: math.MaxInt32, MaxSections: math.MaxInt32, MaxSectionLen: math.MaxInt32}
}
