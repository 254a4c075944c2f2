package wire

// SessionMaxHeaderSize is the maximum encoded size of a compact session
// header: 1 flags byte plus three varu32 fields, each up to 5 bytes.
const SessionMaxHeaderSize = 1 + 5 + 5 + 5

// SessionFlags are the 1-byte flags of a compact session header. Unlike
// PacketFlags, there is no session-init bit at this layer — compact
// headers are only ever used after a session has already been
// established with a full PacketHeader.
type SessionFlags uint8

const (
	// SessionFlagFullSnapshot marks a compact header framing a full snapshot.
	SessionFlagFullSnapshot SessionFlags = 1 << 0
	// SessionFlagDeltaSnapshot marks a compact header framing a delta snapshot.
	SessionFlagDeltaSnapshot SessionFlags = 1 << 1

	sessionFlagReservedMask SessionFlags = ^SessionFlags(0b11)
)

// IsFullSnapshot reports whether the full-snapshot bit is set.
func (f SessionFlags) IsFullSnapshot() bool { return f&SessionFlagFullSnapshot != 0 }

// IsDeltaSnapshot reports whether the delta-snapshot bit is set.
func (f SessionFlags) IsDeltaSnapshot() bool { return f&SessionFlagDeltaSnapshot != 0 }

// IsValid reports whether f sets exactly one of full/delta and no
// reserved bits.
func (f SessionFlags) IsValid() bool {
	return (f.IsFullSnapshot() != f.IsDeltaSnapshot()) && f&sessionFlagReservedMask == 0
}

// FullSnapshotSessionFlags returns the flags for a compact full-snapshot header.
func FullSnapshotSessionFlags() SessionFlags { return SessionFlagFullSnapshot }

// DeltaSnapshotSessionFlags returns the flags for a compact delta-snapshot header.
func DeltaSnapshotSessionFlags() SessionFlags { return SessionFlagDeltaSnapshot }

// SessionHeader is a decoded compact session header. Tick and
// BaselineTick are reconstructed from last_tick plus the wire-encoded
// deltas; HeaderLen is how many bytes of the input the header consumed.
type SessionHeader struct {
	Flags        SessionFlags
	Tick         uint32
	BaselineTick uint32
	PayloadLen   uint32
	HeaderLen    int
}

// EncodeSessionHeader writes a compact session header into out and
// returns the number of bytes written.
func EncodeSessionHeader(out []byte, flags SessionFlags, tickDelta, baselineDelta, payloadLen uint32) (int, error) {
	if len(out) < SessionMaxHeaderSize {
		return 0, &BufferTooSmallError{Needed: SessionMaxHeaderSize, Available: len(out)}
	}
	if !flags.IsValid() {
		return 0, &InvalidFlagsError{Flags: uint16(flags)}
	}

	offset := 0
	out[offset] = byte(flags)
	offset++
	offset += writeVarU32Raw(tickDelta, out[offset:])
	offset += writeVarU32Raw(baselineDelta, out[offset:])
	offset += writeVarU32Raw(payloadLen, out[offset:])

	return offset, nil
}

// DecodeSessionHeader decodes a compact session header relative to
// lastTick: tick = lastTick + tick_delta (tick_delta must be nonzero, so
// tick is strictly monotonic), and baseline_tick = tick - baseline_delta.
// A full-snapshot header must carry baseline_delta == 0; a delta-snapshot
// header must resolve to a nonzero baseline tick.
func DecodeSessionHeader(buf []byte, lastTick uint32) (SessionHeader, error) {
	if len(buf) == 0 {
		return SessionHeader{}, &PacketTooSmallError{Actual: 0, Required: 1}
	}

	flags := SessionFlags(buf[0])
	if !flags.IsValid() {
		return SessionHeader{}, &InvalidFlagsError{Flags: uint16(flags)}
	}

	offset := 1
	tickDelta, offset, err := readVarU32Raw(buf, offset)
	if err != nil {
		return SessionHeader{}, err
	}
	if tickDelta == 0 {
		return SessionHeader{}, &InvalidFlagsError{Flags: uint16(flags)}
	}
	tick := lastTick + tickDelta
	if tick < lastTick {
		return SessionHeader{}, &InvalidFlagsError{Flags: uint16(flags)}
	}

	baselineDelta, offset, err := readVarU32Raw(buf, offset)
	if err != nil {
		return SessionHeader{}, err
	}
	if baselineDelta > tick {
		return SessionHeader{}, &InvalidBaselineTickError{BaselineTick: baselineDelta, Flags: uint16(flags)}
	}
	baselineTick := tick - baselineDelta

	if flags.IsFullSnapshot() && baselineDelta != 0 {
		return SessionHeader{}, &InvalidBaselineTickError{BaselineTick: baselineTick, Flags: uint16(flags)}
	}
	if flags.IsDeltaSnapshot() && baselineTick == 0 {
		return SessionHeader{}, &InvalidBaselineTickError{BaselineTick: baselineTick, Flags: uint16(flags)}
	}

	payloadLen, offset, err := readVarU32Raw(buf, offset)
	if err != nil {
		return SessionHeader{}, err
	}

	return SessionHeader{
		Flags:        flags,
		Tick:         tick,
		BaselineTick: baselineTick,
		PayloadLen:   payloadLen,
		HeaderLen:    offset,
	}, nil
}
