// Package schema defines the component/field model that both peers of a
// replication session must agree on: component and field identifiers,
// the wire codec used for each field's value, and the change policy that
// decides whether a field counts as "changed" between two ticks.
package schema

import "fmt"

// FieldID identifies a field within a component. Zero is reserved and
// never a valid field id.
type FieldID uint16

// NewFieldID validates and returns a FieldID. Zero is rejected.
func NewFieldID(raw uint16) (FieldID, error) {
	if raw == 0 {
		return 0, &InvalidFieldIDError{Raw: raw}
	}

	return FieldID(raw), nil
}

// Raw returns the underlying uint16 value.
func (f FieldID) Raw() uint16 { return uint16(f) }

// FieldKind enumerates the wire encodings a field value can use.
type FieldKind uint8

const (
	// KindBool encodes a single bit.
	KindBool FieldKind = iota + 1
	// KindUInt encodes a fixed-width unsigned integer, 1-64 bits.
	KindUInt
	// KindSInt encodes a fixed-width two's-complement signed integer, 1-64 bits.
	KindSInt
	// KindVarUInt encodes a byte-aligned LEB128 unsigned varint.
	KindVarUInt
	// KindVarSInt encodes a byte-aligned zigzag+varint signed integer.
	KindVarSInt
	// KindFixedPoint encodes a quantized value within [MinQ, MaxQ] using
	// the minimal number of bits required to represent the range.
	KindFixedPoint
)

func (k FieldKind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindUInt:
		return "UInt"
	case KindSInt:
		return "SInt"
	case KindVarUInt:
		return "VarUInt"
	case KindVarSInt:
		return "VarSInt"
	case KindFixedPoint:
		return "FixedPoint"
	default:
		return fmt.Sprintf("FieldKind(%d)", uint8(k))
	}
}

// FixedPointParams describes a quantized fixed-point field. Values are
// carried on the wire as an offset from MinQ, packed into the minimal
// number of bits needed to represent [0, MaxQ-MinQ].
type FixedPointParams struct {
	MinQ  int64
	MaxQ  int64
	Scale uint32
}

// FieldCodec selects how a field's value is packed on the wire. Use the
// constructors below rather than constructing FieldCodec directly.
type FieldCodec struct {
	Kind       FieldKind
	Bits       uint8 // valid for KindUInt / KindSInt
	FixedPoint FixedPointParams
}

// BoolCodec returns a single-bit boolean field codec.
func BoolCodec() FieldCodec { return FieldCodec{Kind: KindBool} }

// UIntCodec returns a fixed-width unsigned integer field codec.
func UIntCodec(bits uint8) FieldCodec { return FieldCodec{Kind: KindUInt, Bits: bits} }

// SIntCodec returns a fixed-width signed integer field codec.
func SIntCodec(bits uint8) FieldCodec { return FieldCodec{Kind: KindSInt, Bits: bits} }

// VarUIntCodec returns a varint-encoded unsigned integer field codec.
func VarUIntCodec() FieldCodec { return FieldCodec{Kind: KindVarUInt} }

// VarSIntCodec returns a varint-encoded signed integer field codec.
func VarSIntCodec() FieldCodec { return FieldCodec{Kind: KindVarSInt} }

// FixedPointCodec returns a quantized fixed-point field codec.
func FixedPointCodec(minQ, maxQ int64, scale uint32) FieldCodec {
	return FieldCodec{Kind: KindFixedPoint, FixedPoint: FixedPointParams{MinQ: minQ, MaxQ: maxQ, Scale: scale}}
}

// ChangePolicyKind selects how field_changed decides whether a field
// counts as changed between two snapshots.
type ChangePolicyKind uint8

const (
	// PolicyAlways treats any bit-level difference as a change.
	PolicyAlways ChangePolicyKind = iota + 1
	// PolicyThreshold treats a change as significant only once the
	// absolute quantized delta exceeds ThresholdQ.
	PolicyThreshold
)

// ChangePolicy decides whether a field counts as changed for delta
// encoding purposes.
type ChangePolicy struct {
	Kind       ChangePolicyKind
	ThresholdQ uint32
}

// Always returns the "any difference counts" change policy.
func Always() ChangePolicy { return ChangePolicy{Kind: PolicyAlways} }

// Threshold returns a change policy that only counts a field as changed
// once its quantized delta exceeds q. A threshold of zero is accepted
// (redundant with Always, but not an error).
func Threshold(q uint32) ChangePolicy { return ChangePolicy{Kind: PolicyThreshold, ThresholdQ: q} }

// FieldDef is a single field within a component definition.
type FieldDef struct {
	ID     FieldID
	Codec  FieldCodec
	Policy ChangePolicy
}

// NewFieldDef returns a FieldDef using the Always change policy.
func NewFieldDef(id FieldID, codec FieldCodec) FieldDef {
	return FieldDef{ID: id, Codec: codec, Policy: Always()}
}

// WithPolicy returns a copy of f with its change policy replaced.
func (f FieldDef) WithPolicy(policy ChangePolicy) FieldDef {
	f.Policy = policy

	return f
}

// Width returns the number of bits this field occupies for its fixed-width
// encodings (KindBool, KindUInt, KindSInt, KindFixedPoint). It is
// meaningless for the varint kinds, which are byte-aligned instead.
func (f FieldDef) Width() int {
	switch f.Codec.Kind {
	case KindBool:
		return 1
	case KindUInt, KindSInt:
		return int(f.Codec.Bits)
	case KindFixedPoint:
		rangeQ := uint64(f.Codec.FixedPoint.MaxQ - f.Codec.FixedPoint.MinQ) //nolint:gosec
		return RequiredBits(rangeQ)
	default:
		return 0
	}
}
