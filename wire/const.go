// Package wire implements the packet framing layer: the 28-byte packet
// header, the section TLV stream carried in its payload, and the compact
// per-session header used once a session has been established. This
// package has no knowledge of schemas, entities, or field values — those
// concerns live in the codec package, which builds on top of wire.
package wire

// Magic is the fixed 4-byte packet magic ("SDEC" read little-endian as a
// uint32).
const Magic uint32 = 0x53444543

// Version is the wire protocol version this package implements.
const Version uint16 = 2

// HeaderSize is the fixed size in bytes of a full PacketHeader.
const HeaderSize = 28

// SectionTag identifies the kind of payload carried by a wire section.
type SectionTag uint8

const (
	// SectionEntityCreate carries newly created entities (full snapshot
	// or delta create section).
	SectionEntityCreate SectionTag = 1
	// SectionEntityDestroy carries destroyed entity ids (delta only).
	SectionEntityDestroy SectionTag = 2
	// SectionUpdateMasked carries per-entity updates using a dense
	// component/field bitmask.
	SectionUpdateMasked SectionTag = 3
	// SectionUpdateSparseVarint is the legacy sparse update encoding
	// (varint field index). The encoder never emits this tag; it is
	// accepted on decode for backward compatibility.
	SectionUpdateSparseVarint SectionTag = 4
	// SectionUpdateSparsePacked carries per-entity updates using a
	// packed sparse field index, the encoder's default sparse format.
	SectionUpdateSparsePacked SectionTag = 5
	// SectionSessionInit carries the session id and compact header mode
	// negotiated at the start of a session.
	SectionSessionInit SectionTag = 6
)

// ParseSectionTag validates a raw section tag byte.
func ParseSectionTag(raw uint8) (SectionTag, bool) {
	switch SectionTag(raw) {
	case SectionEntityCreate, SectionEntityDestroy, SectionUpdateMasked,
		SectionUpdateSparseVarint, SectionUpdateSparsePacked, SectionSessionInit:
		return SectionTag(raw), true
	default:
		return 0, false
	}
}
