package codec

import (
	"github.com/ticksync/sdec/bitstream"
	"github.com/ticksync/sdec/schema"
	"github.com/ticksync/sdec/wire"
)

const maxVarintBytes = 5

// FieldValue is a decoded field value. Exactly one of its accessors
// matches the FieldKind of the schema.FieldDef it was decoded against;
// callers are expected to know which kind to expect from the schema.
type FieldValue struct {
	Kind  schema.FieldKind
	Bool  bool
	UInt  uint64
	SInt  int64
	Fixed int64
}

// BoolValue returns a FieldValue holding a bool (KindBool).
func BoolValue(v bool) FieldValue { return FieldValue{Kind: schema.KindBool, Bool: v} }

// UIntValue returns a FieldValue holding an unsigned integer (KindUInt).
func UIntValue(v uint64) FieldValue { return FieldValue{Kind: schema.KindUInt, UInt: v} }

// SIntValue returns a FieldValue holding a signed integer (KindSInt).
func SIntValue(v int64) FieldValue { return FieldValue{Kind: schema.KindSInt, SInt: v} }

// VarUIntValue returns a FieldValue holding a varint-encoded unsigned
// integer (KindVarUInt).
func VarUIntValue(v uint64) FieldValue { return FieldValue{Kind: schema.KindVarUInt, UInt: v} }

// VarSIntValue returns a FieldValue holding a varint-encoded signed
// integer (KindVarSInt).
func VarSIntValue(v int64) FieldValue { return FieldValue{Kind: schema.KindVarSInt, SInt: v} }

// FixedPointValue returns a FieldValue holding a quantized fixed-point
// value (KindFixedPoint), expressed in the field's MinQ..MaxQ units.
func FixedPointValue(v int64) FieldValue { return FieldValue{Kind: schema.KindFixedPoint, Fixed: v} }

func (v FieldValue) name() string {
	switch v.Kind {
	case schema.KindBool:
		return "bool"
	case schema.KindUInt:
		return "uint"
	case schema.KindSInt:
		return "sint"
	case schema.KindVarUInt:
		return "varuint"
	case schema.KindVarSInt:
		return "varsint"
	case schema.KindFixedPoint:
		return "fixed-point"
	default:
		return "unknown"
	}
}

func codecName(k schema.FieldKind) string {
	switch k {
	case schema.KindBool:
		return "bool"
	case schema.KindUInt:
		return "uint"
	case schema.KindSInt:
		return "sint"
	case schema.KindVarUInt:
		return "varuint"
	case schema.KindVarSInt:
		return "varsint"
	case schema.KindFixedPoint:
		return "fixed-point"
	default:
		return "unknown"
	}
}

// ComponentSnapshot is a single component's decoded field values, in
// schema order.
type ComponentSnapshot struct {
	ID     schema.ComponentID
	Fields []FieldValue
}

// EntitySnapshot is one entity's present components within a Snapshot.
type EntitySnapshot struct {
	ID         EntityID
	Components []ComponentSnapshot
}

// Snapshot is a fully decoded simulation state at a single tick.
type Snapshot struct {
	Tick     SnapshotTick
	Entities []EntitySnapshot
}

// EncodeFullSnapshot encodes a complete snapshot into out, returning the
// number of bytes written. Entities must be supplied in strictly
// ascending EntityID order.
func EncodeFullSnapshot(s *schema.Schema, tick SnapshotTick, entities []EntitySnapshot, limits Limits, out []byte) (int, error) {
	if len(out) < wire.HeaderSize {
		return 0, &OutputTooSmallError{Needed: wire.HeaderSize, Available: len(out)}
	}
	if len(entities) > limits.MaxEntitiesCreate {
		return 0, &LimitExceededError{Kind: LimitEntitiesCreate, Limit: limits.MaxEntitiesCreate, Actual: len(entities)}
	}

	offset := wire.HeaderSize
	if len(entities) > 0 {
		written, err := writeSection(wire.SectionEntityCreate, out[offset:], limits, func(w *bitstream.Writer) error {
			return encodeCreateBody(s, entities, limits, w)
		})
		if err != nil {
			return 0, err
		}
		offset += written
	}

	payloadLen := offset - wire.HeaderSize
	header := wire.FullSnapshotHeader(schema.Hash(s), uint32(tick), uint32(payloadLen)) //nolint:gosec
	if err := wire.EncodeHeader(header, out[:wire.HeaderSize]); err != nil {
		return 0, &OutputTooSmallError{Needed: wire.HeaderSize, Available: len(out)}
	}

	return offset, nil
}

// DecodeFullSnapshot parses and validates a raw full-snapshot packet.
func DecodeFullSnapshot(s *schema.Schema, data []byte, wireLimits wire.Limits, limits Limits) (Snapshot, error) {
	packet, err := wire.DecodePacket(data, wireLimits)
	if err != nil {
		return Snapshot{}, &WireError{Err: err}
	}

	return DecodeFullSnapshotFromPacket(s, packet, limits)
}

// DecodeFullSnapshotFromPacket decodes a full snapshot from an already
// parsed wire.WirePacket.
func DecodeFullSnapshotFromPacket(s *schema.Schema, packet *wire.WirePacket, limits Limits) (Snapshot, error) {
	header := packet.Header
	if !header.Flags.IsFullSnapshot() {
		return Snapshot{}, &UnexpectedSectionError{Section: "non-full-snapshot packet"}
	}
	if header.BaselineTick != 0 {
		return Snapshot{}, &BaselineTickMismatchError{Expected: 0, Found: SnapshotTick(header.BaselineTick)}
	}

	expectedHash := schema.Hash(s)
	if header.SchemaHash != expectedHash {
		return Snapshot{}, &SchemaMismatchError{Expected: expectedHash, Found: header.SchemaHash}
	}

	var entities []EntitySnapshot
	createSeen := false
	for _, section := range packet.Sections {
		switch section.Tag {
		case wire.SectionEntityCreate:
			if createSeen {
				return Snapshot{}, &DuplicateSectionError{Section: "entity_create"}
			}
			createSeen = true
			decoded, err := decodeCreateSection(s, section.Body, limits)
			if err != nil {
				return Snapshot{}, err
			}
			entities = decoded
		default:
			return Snapshot{}, &UnexpectedSectionError{Section: sectionName(section.Tag)}
		}
	}

	return Snapshot{Tick: SnapshotTick(header.Tick), Entities: entities}, nil
}

func sectionName(tag wire.SectionTag) string {
	switch tag {
	case wire.SectionEntityCreate:
		return "entity_create"
	case wire.SectionEntityDestroy:
		return "entity_destroy"
	case wire.SectionUpdateMasked:
		return "update_masked"
	case wire.SectionUpdateSparseVarint:
		return "update_sparse_varint"
	case wire.SectionUpdateSparsePacked:
		return "update_sparse_packed"
	case wire.SectionSessionInit:
		return "session_init"
	default:
		return "unknown"
	}
}

// writeSection runs writeBody against a bitstream.Writer scoped to a
// scratch region of out, then prefixes the resulting body with a tag
// byte and LEB128 length once the body's real size is known. Mirrors the
// original Rust codec's approach of reserving the worst-case 5-byte
// varint prefix and shifting the body left once the true length is
// known, rather than encoding the section twice.
func writeSection(tag wire.SectionTag, out []byte, limits Limits, writeBody func(*bitstream.Writer) error) (int, error) {
	bodyStart := 1 + maxVarintBytes
	if len(out) < bodyStart {
		return 0, &OutputTooSmallError{Needed: bodyStart, Available: len(out)}
	}

	w := bitstream.NewWriter(out[bodyStart:])
	if err := writeBody(w); err != nil {
		return 0, err
	}
	bodyLen, err := w.Finish()
	if err != nil {
		return 0, &BitstreamError{Err: err}
	}

	if bodyLen > limits.MaxSectionBytes {
		return 0, &LimitExceededError{Kind: LimitSectionBytes, Limit: limits.MaxSectionBytes, Actual: bodyLen}
	}

	lenBytes := wire.VarU32RawLen(uint32(bodyLen)) //nolint:gosec
	totalNeeded := 1 + lenBytes + bodyLen
	if len(out) < totalNeeded {
		return 0, &OutputTooSmallError{Needed: totalNeeded, Available: len(out)}
	}

	if _, err := wire.EncodeSectionHeader(tag, bodyLen, out[:1+lenBytes]); err != nil {
		return 0, &WireError{Err: err}
	}
	if lenBytes < maxVarintBytes {
		copy(out[1+lenBytes:], out[bodyStart:bodyStart+bodyLen])
	}

	return totalNeeded, nil
}

func encodeCreateBody(s *schema.Schema, entities []EntitySnapshot, limits Limits, w *bitstream.Writer) error {
	if len(s.Components) > limits.MaxComponentsPerEntity {
		return &LimitExceededError{Kind: LimitComponentsPerEntity, Limit: limits.MaxComponentsPerEntity, Actual: len(s.Components)}
	}

	if err := w.AlignToByte(); err != nil {
		return &BitstreamError{Err: err}
	}
	if err := w.WriteVarU32(uint32(len(entities))); err != nil { //nolint:gosec
		return &BitstreamError{Err: err}
	}

	var prevID *EntityID
	for i := range entities {
		entity := &entities[i]
		if prevID != nil && entity.ID <= *prevID {
			return &InvalidEntityOrderError{Previous: *prevID, Current: entity.ID}
		}
		id := entity.ID
		prevID = &id

		if err := w.AlignToByte(); err != nil {
			return &BitstreamError{Err: err}
		}
		if err := w.WriteU32Aligned(uint32(entity.ID)); err != nil {
			return &BitstreamError{Err: err}
		}

		if len(entity.Components) > limits.MaxComponentsPerEntity {
			return &LimitExceededError{Kind: LimitComponentsPerEntity, Limit: limits.MaxComponentsPerEntity, Actual: len(entity.Components)}
		}
		if err := ensureKnownComponents(s, entity); err != nil {
			return err
		}

		if err := writeComponentMask(s, entity, w); err != nil {
			return err
		}

		for _, component := range s.Components {
			if snapshot := findComponent(entity, component.ID); snapshot != nil {
				if err := writeComponentFields(component, *snapshot, limits, w); err != nil {
					return err
				}
			}
		}
	}

	return w.AlignToByte()
}

func writeComponentMask(s *schema.Schema, entity *EntitySnapshot, w *bitstream.Writer) error {
	for _, component := range s.Components {
		present := findComponent(entity, component.ID) != nil
		if err := w.WriteBit(present); err != nil {
			return &BitstreamError{Err: err}
		}
	}

	return nil
}

func writeComponentFields(component schema.ComponentDef, snapshot ComponentSnapshot, limits Limits, w *bitstream.Writer) error {
	if len(component.Fields) > limits.MaxFieldsPerComponent {
		return &LimitExceededError{Kind: LimitFieldsPerComponent, Limit: limits.MaxFieldsPerComponent, Actual: len(component.Fields)}
	}
	if len(snapshot.Fields) != len(component.Fields) {
		return &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonFieldCountMismatch}
	}

	for range component.Fields {
		if err := w.WriteBit(true); err != nil {
			return &BitstreamError{Err: err}
		}
	}

	for i, field := range component.Fields {
		if err := writeFieldValue(component.ID, field, snapshot.Fields[i], w); err != nil {
			return err
		}
	}

	return nil
}

func writeFieldValue(componentID schema.ComponentID, field schema.FieldDef, value FieldValue, w *bitstream.Writer) error {
	codec := field.Codec
	switch {
	case codec.Kind == schema.KindBool && value.Kind == schema.KindBool:
		if err := w.WriteBit(value.Bool); err != nil {
			return &BitstreamError{Err: err}
		}
	case codec.Kind == schema.KindUInt && value.Kind == schema.KindUInt:
		if err := validateUint(componentID, field.ID, codec.Bits, value.UInt); err != nil {
			return err
		}
		if err := w.WriteBits(value.UInt, int(codec.Bits)); err != nil {
			return &BitstreamError{Err: err}
		}
	case codec.Kind == schema.KindSInt && value.Kind == schema.KindSInt:
		encoded, err := encodeSInt(componentID, field.ID, codec.Bits, value.SInt)
		if err != nil {
			return err
		}
		if err := w.WriteBits(encoded, int(codec.Bits)); err != nil {
			return &BitstreamError{Err: err}
		}
	case codec.Kind == schema.KindVarUInt && value.Kind == schema.KindVarUInt:
		if value.UInt > maxUint32AsUint64 {
			return &InvalidValueError{Component: componentID, Field: field.ID, Reason: ReasonVarUIntOutOfRange}
		}
		if err := w.AlignToByte(); err != nil {
			return &BitstreamError{Err: err}
		}
		if err := w.WriteVarU32(uint32(value.UInt)); err != nil { //nolint:gosec
			return &BitstreamError{Err: err}
		}
	case codec.Kind == schema.KindVarSInt && value.Kind == schema.KindVarSInt:
		if value.SInt < minInt32AsInt64 || value.SInt > maxInt32AsInt64 {
			return &InvalidValueError{Component: componentID, Field: field.ID, Reason: ReasonVarSIntOutOfRange}
		}
		if err := w.AlignToByte(); err != nil {
			return &BitstreamError{Err: err}
		}
		if err := w.WriteVarS32(int32(value.SInt)); err != nil {
			return &BitstreamError{Err: err}
		}
	case codec.Kind == schema.KindFixedPoint && value.Kind == schema.KindFixedPoint:
		fp := codec.FixedPoint
		if value.Fixed < fp.MinQ || value.Fixed > fp.MaxQ {
			return &InvalidValueError{Component: componentID, Field: field.ID, Reason: ReasonFixedPointOutOfRange}
		}
		offset := uint64(value.Fixed - fp.MinQ)   //nolint:gosec
		rangeQ := uint64(fp.MaxQ - fp.MinQ)        //nolint:gosec
		bits := schema.RequiredBits(rangeQ)
		if bits > 0 {
			if err := w.WriteBits(offset, bits); err != nil {
				return &BitstreamError{Err: err}
			}
		}
	default:
		return &InvalidValueError{
			Component:    componentID,
			Field:        field.ID,
			Reason:       ReasonTypeMismatch,
			ExpectedKind: codecName(codec.Kind),
			FoundKind:    value.name(),
		}
	}

	return nil
}

func decodeCreateSection(s *schema.Schema, body []byte, limits Limits) ([]EntitySnapshot, error) {
	if len(body) > limits.MaxSectionBytes {
		return nil, &LimitExceededError{Kind: LimitSectionBytes, Limit: limits.MaxSectionBytes, Actual: len(body)}
	}

	r := bitstream.NewReader(body)
	if err := r.AlignToByte(); err != nil {
		return nil, &BitstreamError{Err: err}
	}
	rawCount, err := r.ReadVarU32()
	if err != nil {
		return nil, &BitstreamError{Err: err}
	}
	count := int(rawCount)

	if count > limits.MaxEntitiesCreate {
		return nil, &LimitExceededError{Kind: LimitEntitiesCreate, Limit: limits.MaxEntitiesCreate, Actual: count}
	}
	if len(s.Components) > limits.MaxComponentsPerEntity {
		return nil, &LimitExceededError{Kind: LimitComponentsPerEntity, Limit: limits.MaxComponentsPerEntity, Actual: len(s.Components)}
	}

	entities := make([]EntitySnapshot, 0, count)
	var prevID *EntityID
	for i := 0; i < count; i++ {
		if err := r.AlignToByte(); err != nil {
			return nil, &BitstreamError{Err: err}
		}
		rawID, err := r.ReadU32Aligned()
		if err != nil {
			return nil, &BitstreamError{Err: err}
		}
		entityID := EntityID(rawID)
		if prevID != nil && entityID <= *prevID {
			return nil, &InvalidEntityOrderError{Previous: *prevID, Current: entityID}
		}
		id := entityID
		prevID = &id

		componentMask, err := readMask(r, len(s.Components), MaskComponent, 0)
		if err != nil {
			return nil, err
		}

		var components []ComponentSnapshot
		for idx, component := range s.Components {
			if componentMask[idx] {
				fields, err := decodeComponentFields(component, r, limits)
				if err != nil {
					return nil, err
				}
				components = append(components, ComponentSnapshot{ID: component.ID, Fields: fields})
			}
		}

		entities = append(entities, EntitySnapshot{ID: entityID, Components: components})
	}

	if err := r.AlignToByte(); err != nil {
		return nil, &BitstreamError{Err: err}
	}
	if remaining := r.BitsRemaining(); remaining != 0 {
		return nil, &TrailingSectionDataError{Section: "entity_create", RemainingBits: remaining}
	}

	return entities, nil
}

func decodeComponentFields(component schema.ComponentDef, r *bitstream.Reader, limits Limits) ([]FieldValue, error) {
	if len(component.Fields) > limits.MaxFieldsPerComponent {
		return nil, &LimitExceededError{Kind: LimitFieldsPerComponent, Limit: limits.MaxFieldsPerComponent, Actual: len(component.Fields)}
	}

	mask, err := readMask(r, len(component.Fields), MaskField, component.ID)
	if err != nil {
		return nil, err
	}

	values := make([]FieldValue, 0, len(component.Fields))
	for idx, field := range component.Fields {
		if !mask[idx] {
			return nil, &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonMissingField}
		}
		value, err := readFieldValue(component.ID, field, r)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}

	return values, nil
}

func readFieldValue(componentID schema.ComponentID, field schema.FieldDef, r *bitstream.Reader) (FieldValue, error) {
	switch field.Codec.Kind {
	case schema.KindBool:
		v, err := r.ReadBit()
		if err != nil {
			return FieldValue{}, &BitstreamError{Err: err}
		}

		return BoolValue(v), nil
	case schema.KindUInt:
		v, err := r.ReadBits(int(field.Codec.Bits))
		if err != nil {
			return FieldValue{}, &BitstreamError{Err: err}
		}
		if err := validateUint(componentID, field.ID, field.Codec.Bits, v); err != nil {
			return FieldValue{}, err
		}

		return UIntValue(v), nil
	case schema.KindSInt:
		raw, err := r.ReadBits(int(field.Codec.Bits))
		if err != nil {
			return FieldValue{}, &BitstreamError{Err: err}
		}

		return SIntValue(decodeSInt(field.Codec.Bits, raw)), nil
	case schema.KindVarUInt:
		if err := r.AlignToByte(); err != nil {
			return FieldValue{}, &BitstreamError{Err: err}
		}
		v, err := r.ReadVarU32()
		if err != nil {
			return FieldValue{}, &BitstreamError{Err: err}
		}

		return VarUIntValue(uint64(v)), nil
	case schema.KindVarSInt:
		if err := r.AlignToByte(); err != nil {
			return FieldValue{}, &BitstreamError{Err: err}
		}
		v, err := r.ReadVarS32()
		if err != nil {
			return FieldValue{}, &BitstreamError{Err: err}
		}

		return VarSIntValue(int64(v)), nil
	case schema.KindFixedPoint:
		fp := field.Codec.FixedPoint
		rangeQ := uint64(fp.MaxQ - fp.MinQ) //nolint:gosec
		bits := schema.RequiredBits(rangeQ)
		var offset uint64
		if bits > 0 {
			v, err := r.ReadBits(bits)
			if err != nil {
				return FieldValue{}, &BitstreamError{Err: err}
			}
			offset = v
		}
		value := fp.MinQ + int64(offset) //nolint:gosec
		if value < fp.MinQ || value > fp.MaxQ {
			return FieldValue{}, &InvalidValueError{Component: componentID, Field: field.ID, Reason: ReasonFixedPointOutOfRange}
		}

		return FixedPointValue(value), nil
	default:
		return FieldValue{}, &InvalidValueError{
			Component:    componentID,
			Field:        field.ID,
			Reason:       ReasonTypeMismatch,
			ExpectedKind: codecName(field.Codec.Kind),
			FoundKind:    "unknown",
		}
	}
}

func readMask(r *bitstream.Reader, expectedBits int, kind MaskKind, component schema.ComponentID) ([]bool, error) {
	if r.BitsRemaining() < expectedBits {
		return nil, &InvalidMaskError{Kind: kind, Component: component, Reason: ReasonNotEnoughBits}
	}

	mask := make([]bool, expectedBits)
	for i := 0; i < expectedBits; i++ {
		v, err := r.ReadBit()
		if err != nil {
			return nil, &BitstreamError{Err: err}
		}
		mask[i] = v
	}

	return mask, nil
}

func ensureKnownComponents(s *schema.Schema, entity *EntitySnapshot) error {
	for _, component := range entity.Components {
		if _, ok := s.ComponentByID(component.ID); !ok {
			return &InvalidMaskError{Kind: MaskComponent, Component: component.ID, Reason: ReasonUnknownComponent}
		}
	}

	return nil
}

func findComponent(entity *EntitySnapshot, id schema.ComponentID) *ComponentSnapshot {
	for i := range entity.Components {
		if entity.Components[i].ID == id {
			return &entity.Components[i]
		}
	}

	return nil
}

func validateUint(componentID schema.ComponentID, fieldID schema.FieldID, bits uint8, value uint64) error {
	if bits >= 64 {
		return nil
	}
	if value >= uint64(1)<<bits {
		return &InvalidValueError{Component: componentID, Field: fieldID, Reason: ReasonUnsignedOutOfRange}
	}

	return nil
}

func encodeSInt(componentID schema.ComponentID, fieldID schema.FieldID, bits uint8, value int64) (uint64, error) {
	if bits >= 64 {
		return uint64(value), nil //nolint:gosec
	}
	min := -(int64(1) << (bits - 1))
	max := (int64(1) << (bits - 1)) - 1
	if value < min || value > max {
		return 0, &InvalidValueError{Component: componentID, Field: fieldID, Reason: ReasonSignedOutOfRange}
	}
	mask := (uint64(1) << bits) - 1

	return uint64(value) & mask, nil //nolint:gosec
}

func decodeSInt(bits uint8, raw uint64) int64 {
	if bits >= 64 {
		return int64(raw) //nolint:gosec
	}
	if bits == 0 {
		return 0
	}
	signBit := uint64(1) << (bits - 1)
	if raw&signBit == 0 {
		return int64(raw) //nolint:gosec
	}
	mask := (uint64(1) << bits) - 1

	return int64(raw&mask) - (int64(1) << bits) //nolint:gosec
}

const (
	maxUint32AsUint64 = uint64(1<<32 - 1)
	minInt32AsInt64   = int64(-1 << 31)
	maxInt32AsInt64   = int64(1<<31 - 1)
)
