package codec

import (
	"fmt"

	"github.com/ticksync/sdec/schema"
)

// LimitKind identifies which codec.Limits field a LimitExceededError refers to.
type LimitKind uint8

const (
	LimitEntitiesCreate LimitKind = iota + 1
	LimitEntitiesUpdate
	LimitEntitiesDestroy
	LimitTotalEntitiesAfterApply
	LimitComponentsPerEntity
	LimitFieldsPerComponent
	LimitSectionBytes
)

func (k LimitKind) String() string {
	switch k {
	case LimitEntitiesCreate:
		return "entities_create"
	case LimitEntitiesUpdate:
		return "entities_update"
	case LimitEntitiesDestroy:
		return "entities_destroy"
	case LimitTotalEntitiesAfterApply:
		return "total_entities_after_apply"
	case LimitComponentsPerEntity:
		return "components_per_entity"
	case LimitFieldsPerComponent:
		return "fields_per_component"
	case LimitSectionBytes:
		return "section_bytes"
	default:
		return fmt.Sprintf("LimitKind(%d)", uint8(k))
	}
}

// MaskKind identifies which kind of presence mask an InvalidMaskError refers to.
type MaskKind uint8

const (
	MaskComponent MaskKind = iota + 1
	MaskField
)

func (k MaskKind) String() string {
	switch k {
	case MaskComponent:
		return "component_mask"
	case MaskField:
		return "field_mask"
	default:
		return fmt.Sprintf("MaskKind(%d)", uint8(k))
	}
}

// MaskReason identifies why a presence mask was rejected.
type MaskReason uint8

const (
	ReasonNotEnoughBits MaskReason = iota + 1
	ReasonFieldCountMismatch
	ReasonMissingField
	ReasonUnknownComponent
	ReasonInvalidComponentID
	ReasonInvalidFieldIndex
	ReasonComponentPresenceMismatch
	ReasonEmptyFieldMask
)

func (r MaskReason) String() string {
	switch r {
	case ReasonNotEnoughBits:
		return "not enough bits"
	case ReasonFieldCountMismatch:
		return "field count mismatch"
	case ReasonMissingField:
		return "missing field"
	case ReasonUnknownComponent:
		return "unknown component"
	case ReasonInvalidComponentID:
		return "invalid component id"
	case ReasonInvalidFieldIndex:
		return "invalid field index"
	case ReasonComponentPresenceMismatch:
		return "component presence mismatch"
	case ReasonEmptyFieldMask:
		return "empty field mask"
	default:
		return fmt.Sprintf("MaskReason(%d)", uint8(r))
	}
}

// ValueReason identifies why a field value was rejected.
type ValueReason uint8

const (
	ReasonUnsignedOutOfRange ValueReason = iota + 1
	ReasonSignedOutOfRange
	ReasonVarUIntOutOfRange
	ReasonVarSIntOutOfRange
	ReasonFixedPointOutOfRange
	ReasonTypeMismatch
)

func (r ValueReason) String() string {
	switch r {
	case ReasonUnsignedOutOfRange:
		return "unsigned value out of range"
	case ReasonSignedOutOfRange:
		return "signed value out of range"
	case ReasonVarUIntOutOfRange:
		return "var-uint value out of range"
	case ReasonVarSIntOutOfRange:
		return "var-sint value out of range"
	case ReasonFixedPointOutOfRange:
		return "fixed-point value out of range"
	case ReasonTypeMismatch:
		return "field value type mismatch"
	default:
		return fmt.Sprintf("ValueReason(%d)", uint8(r))
	}
}

// WireError wraps an error surfaced by the wire package.
type WireError struct{ Err error }

func (e *WireError) Error() string { return fmt.Sprintf("wire: %v", e.Err) }
func (e *WireError) Unwrap() error { return e.Err }

// BitstreamError wraps an error surfaced by the bitstream package.
type BitstreamError struct{ Err error }

func (e *BitstreamError) Error() string { return fmt.Sprintf("bitstream: %v", e.Err) }
func (e *BitstreamError) Unwrap() error { return e.Err }

// OutputTooSmallError reports that a caller-supplied buffer was too small.
type OutputTooSmallError struct {
	Needed    int
	Available int
}

func (e *OutputTooSmallError) Error() string {
	return fmt.Sprintf("codec: output buffer too small: needed %d, available %d", e.Needed, e.Available)
}

// SchemaMismatchError reports that a packet's schema hash does not match
// the decoder's configured schema.
type SchemaMismatchError struct {
	Expected uint64
	Found    uint64
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("codec: schema hash mismatch: expected %#x, found %#x", e.Expected, e.Found)
}

// LimitExceededError reports that a configured codec.Limits bound was exceeded.
type LimitExceededError struct {
	Kind   LimitKind
	Limit  int
	Actual int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("codec: limit exceeded: %s limit %d, actual %d", e.Kind, e.Limit, e.Actual)
}

// InvalidMaskError reports a malformed component or field presence mask.
type InvalidMaskError struct {
	Kind      MaskKind
	Component schema.ComponentID
	Reason    MaskReason
}

func (e *InvalidMaskError) Error() string {
	if e.Kind == MaskField {
		return fmt.Sprintf("codec: invalid field mask for component %d: %s", e.Component.Raw(), e.Reason)
	}

	return fmt.Sprintf("codec: invalid component mask: %s", e.Reason)
}

// InvalidValueError reports a field value that could not be encoded
// under its codec's constraints.
type InvalidValueError struct {
	Component schema.ComponentID
	Field     schema.FieldID
	Reason    ValueReason
	// ExpectedKind/FoundKind are only populated for ReasonTypeMismatch.
	ExpectedKind string
	FoundKind    string
}

func (e *InvalidValueError) Error() string {
	if e.Reason == ReasonTypeMismatch {
		return fmt.Sprintf("codec: component %d field %d: expected %s value, found %s",
			e.Component.Raw(), e.Field.Raw(), e.ExpectedKind, e.FoundKind)
	}

	return fmt.Sprintf("codec: invalid value for component %d field %d: %s", e.Component.Raw(), e.Field.Raw(), e.Reason)
}

// InvalidEntityOrderError reports that entity ids in a section were not
// strictly ascending.
type InvalidEntityOrderError struct {
	Previous EntityID
	Current  EntityID
}

func (e *InvalidEntityOrderError) Error() string {
	return fmt.Sprintf("codec: entity order violation: %d did not follow %d", e.Current, e.Previous)
}

// TrailingSectionDataError reports leftover bits after decoding a section's
// declared content.
type TrailingSectionDataError struct {
	Section       string
	RemainingBits int
}

func (e *TrailingSectionDataError) Error() string {
	return fmt.Sprintf("codec: %d trailing bits in %s section", e.RemainingBits, e.Section)
}

// UnexpectedSectionError reports a section tag that is not valid in the
// current packet context (e.g. an update section in a full snapshot).
type UnexpectedSectionError struct{ Section string }

func (e *UnexpectedSectionError) Error() string {
	return fmt.Sprintf("codec: unexpected section %s", e.Section)
}

// DuplicateSectionError reports a section tag appearing more than once in
// a packet where at most one is allowed.
type DuplicateSectionError struct{ Section string }

func (e *DuplicateSectionError) Error() string {
	return fmt.Sprintf("codec: duplicate section %s", e.Section)
}

// DuplicateUpdateEncodingError reports both a masked and sparse update
// section present for the same packet.
type DuplicateUpdateEncodingError struct{}

func (e *DuplicateUpdateEncodingError) Error() string {
	return "codec: both masked and sparse update sections present"
}

// BaselineTickMismatchError reports that a delta packet's declared
// baseline tick does not match the baseline actually resolved.
type BaselineTickMismatchError struct {
	Expected SnapshotTick
	Found    SnapshotTick
}

func (e *BaselineTickMismatchError) Error() string {
	return fmt.Sprintf("codec: baseline tick mismatch: expected %d, found %d", e.Expected, e.Found)
}

// BaselineNotFoundError reports that no baseline snapshot is available
// for the requested tick.
type BaselineNotFoundError struct{ RequestedTick SnapshotTick }

func (e *BaselineNotFoundError) Error() string {
	return fmt.Sprintf("codec: no baseline available at or before tick %d", e.RequestedTick)
}

// EntityNotFoundError reports a reference to an entity absent from the
// target snapshot or baseline.
type EntityNotFoundError struct{ EntityID EntityID }

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("codec: entity %d not found", e.EntityID)
}

// ComponentNotFoundError reports a reference to a component absent from
// an entity's tracked component set.
type ComponentNotFoundError struct {
	EntityID    EntityID
	ComponentID schema.ComponentID
}

func (e *ComponentNotFoundError) Error() string {
	return fmt.Sprintf("codec: component %d not found on entity %d", e.ComponentID.Raw(), e.EntityID)
}

// DuplicateEntityError reports the same entity id appearing twice within
// a single section.
type DuplicateEntityError struct{ EntityID EntityID }

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("codec: duplicate entity %d", e.EntityID)
}

// EntityAlreadyExistsError reports a create for an entity id the target
// state already tracks.
type EntityAlreadyExistsError struct{ EntityID EntityID }

func (e *EntityAlreadyExistsError) Error() string {
	return fmt.Sprintf("codec: entity %d already exists", e.EntityID)
}

// SessionOutOfOrderError reports a compact-header packet whose tick did
// not strictly follow the session's last observed tick.
type SessionOutOfOrderError struct {
	Previous SnapshotTick
	Current  SnapshotTick
}

func (e *SessionOutOfOrderError) Error() string {
	return fmt.Sprintf("codec: session packet tick %d did not follow previous tick %d", e.Current, e.Previous)
}

// UnsupportedCompactModeError reports a session-init packet naming a
// compact header mode this decoder does not implement.
type UnsupportedCompactModeError struct{ Mode uint8 }

func (e *UnsupportedCompactModeError) Error() string {
	return fmt.Sprintf("codec: unsupported compact header mode %d", e.Mode)
}
