package wire

import "encoding/binary"

// PacketFlags are the low-order flag bits of a PacketHeader.
type PacketFlags uint16

const (
	// FlagFullSnapshot marks a packet carrying a complete snapshot.
	FlagFullSnapshot PacketFlags = 1 << 0
	// FlagDeltaSnapshot marks a packet carrying a delta against a baseline.
	FlagDeltaSnapshot PacketFlags = 1 << 1
	// FlagSessionInit marks a packet establishing a compact-header session.
	FlagSessionInit PacketFlags = 1 << 2

	flagReservedMask PacketFlags = ^PacketFlags(0b111)
)

// IsFullSnapshot reports whether the full-snapshot flag is set.
func (f PacketFlags) IsFullSnapshot() bool { return f&FlagFullSnapshot != 0 }

// IsDeltaSnapshot reports whether the delta-snapshot flag is set.
func (f PacketFlags) IsDeltaSnapshot() bool { return f&FlagDeltaSnapshot != 0 }

// IsSessionInit reports whether the session-init flag is set.
func (f PacketFlags) IsSessionInit() bool { return f&FlagSessionInit != 0 }

// IsValid reports whether f is a legal flag combination: a session-init
// packet carries neither snapshot flag; any other packet carries exactly
// one of full/delta; reserved bits are always clear.
func (f PacketFlags) IsValid() bool {
	if f&flagReservedMask != 0 {
		return false
	}
	if f.IsSessionInit() {
		return !f.IsFullSnapshot() && !f.IsDeltaSnapshot()
	}

	return f.IsFullSnapshot() != f.IsDeltaSnapshot() // exactly one
}

// FullSnapshotFlags returns the flags for a full-snapshot packet.
func FullSnapshotFlags() PacketFlags { return FlagFullSnapshot }

// DeltaSnapshotFlags returns the flags for a delta-snapshot packet.
func DeltaSnapshotFlags() PacketFlags { return FlagDeltaSnapshot }

// SessionInitFlags returns the flags for a session-init packet.
func SessionInitFlags() PacketFlags { return FlagSessionInit }

// PacketHeader is the fixed 28-byte header at the start of every packet.
type PacketHeader struct {
	Version      uint16
	Flags        PacketFlags
	SchemaHash   uint64
	Tick         uint32
	BaselineTick uint32
	PayloadLen   uint32
}

// FullSnapshotHeader builds a header for a full-snapshot packet.
func FullSnapshotHeader(schemaHash uint64, tick uint32, payloadLen uint32) PacketHeader {
	return PacketHeader{
		Version:    Version,
		Flags:      FullSnapshotFlags(),
		SchemaHash: schemaHash,
		Tick:       tick,
		PayloadLen: payloadLen,
	}
}

// DeltaSnapshotHeader builds a header for a delta-snapshot packet.
func DeltaSnapshotHeader(schemaHash uint64, tick, baselineTick, payloadLen uint32) PacketHeader {
	return PacketHeader{
		Version:      Version,
		Flags:        DeltaSnapshotFlags(),
		SchemaHash:   schemaHash,
		Tick:         tick,
		BaselineTick: baselineTick,
		PayloadLen:   payloadLen,
	}
}

// EncodeHeader writes h's 28 little-endian bytes into out.
func EncodeHeader(h PacketHeader, out []byte) error {
	if len(out) < HeaderSize {
		return &BufferTooSmallError{Needed: HeaderSize, Available: len(out)}
	}

	binary.LittleEndian.PutUint32(out[0:4], Magic)
	binary.LittleEndian.PutUint16(out[4:6], h.Version)
	binary.LittleEndian.PutUint16(out[6:8], uint16(h.Flags))
	binary.LittleEndian.PutUint64(out[8:16], h.SchemaHash)
	binary.LittleEndian.PutUint32(out[16:20], h.Tick)
	binary.LittleEndian.PutUint32(out[20:24], h.BaselineTick)
	binary.LittleEndian.PutUint32(out[24:28], h.PayloadLen)

	return nil
}

// decodeHeader parses the first HeaderSize bytes of buf into a
// PacketHeader without validating baseline-tick/flags consistency or
// payload length against the remaining bytes — DecodePacket performs
// those checks since they require knowing the full packet length.
func decodeHeader(buf []byte) (PacketHeader, error) {
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return PacketHeader{}, &InvalidMagicError{Found: magic}
	}

	version := binary.LittleEndian.Uint16(buf[4:6])
	if version != Version {
		return PacketHeader{}, &UnsupportedVersionError{Found: version}
	}

	flags := PacketFlags(binary.LittleEndian.Uint16(buf[6:8]))
	if !flags.IsValid() {
		return PacketHeader{}, &InvalidFlagsError{Flags: uint16(flags)}
	}

	return PacketHeader{
		Version:      version,
		Flags:        flags,
		SchemaHash:   binary.LittleEndian.Uint64(buf[8:16]),
		Tick:         binary.LittleEndian.Uint32(buf[16:20]),
		BaselineTick: binary.LittleEndian.Uint32(buf[20:24]),
		PayloadLen:   binary.LittleEndian.Uint32(buf[24:28]),
	}, nil
}
