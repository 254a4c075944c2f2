package codec

import (
	"math"
	"sort"

	"github.com/ticksync/sdec/bitstream"
	"github.com/ticksync/sdec/schema"
	"github.com/ticksync/sdec/wire"
)

// UpdateEncoding selects how an update section's changed fields are
// packed on the wire.
type UpdateEncoding uint8

const (
	// UpdateEncodingMasked packs a dense component/field presence bitmask
	// ahead of every entity's changed values.
	UpdateEncodingMasked UpdateEncoding = iota + 1
	// UpdateEncodingSparsePacked packs a bit-width-minimal field index
	// ahead of each changed value instead of a dense mask.
	UpdateEncodingSparsePacked
)

// IndexedFieldValue is a single changed field within a DeltaUpdateComponent,
// keyed by its position in the component's schema field list.
type IndexedFieldValue struct {
	Index int
	Value FieldValue
}

// DeltaUpdateComponent is one component's changed fields for a single
// updated entity.
type DeltaUpdateComponent struct {
	ID     schema.ComponentID
	Fields []IndexedFieldValue
}

// DeltaUpdateEntity is a single entity's changed components within a
// decoded delta packet.
type DeltaUpdateEntity struct {
	ID         EntityID
	Components []DeltaUpdateComponent
}

// DeltaDecoded is a delta packet's sections, decoded but not yet applied
// to any baseline.
type DeltaDecoded struct {
	Tick         SnapshotTick
	BaselineTick SnapshotTick
	Destroys     []EntityID
	Creates      []EntitySnapshot
	Updates      []DeltaUpdateEntity
}

// DiffCounts is the number of entity destroys, creates, and updates a
// delta between baseline and current would encode.
type DiffCounts struct {
	Creates  int
	Updates  int
	Destroys int
}

// SelectBaselineTick returns the newest baseline tick at or before
// ackTick, for choosing which stored baseline to delta-encode against.
func SelectBaselineTick[T any](store *BaselineStore[T], ackTick SnapshotTick) (SnapshotTick, bool) {
	tick, _, ok := store.LatestAtOrBefore(ackTick)

	return tick, ok
}

type updateMode uint8

const (
	updateModeAuto updateMode = iota
	updateModeSparse
)

// EncodeDeltaSnapshot encodes current as a delta against baseline.
// Baseline and current must both have entities sorted ascending by
// EntityID. The encoder picks per-update-section encoding (masked or
// sparse-packed) automatically based on estimated bit cost.
func EncodeDeltaSnapshot(s *schema.Schema, tick, baselineTick SnapshotTick, baseline, current Snapshot, limits Limits, out []byte) (int, error) {
	scratch := NewScratch()
	defer scratch.Release()

	return EncodeDeltaSnapshotWithScratch(s, tick, baselineTick, baseline, current, limits, scratch, out)
}

// EncodeDeltaSnapshotWithScratch is EncodeDeltaSnapshot using
// caller-supplied scratch buffers, avoiding a fresh allocation per call.
func EncodeDeltaSnapshotWithScratch(s *schema.Schema, tick, baselineTick SnapshotTick, baseline, current Snapshot, limits Limits, scratch *Scratch, out []byte) (int, error) {
	return encodeDeltaSnapshotMode(s, tick, baselineTick, baseline, current, limits, scratch, out, updateModeAuto)
}

// EncodeDeltaSnapshotForClient encodes a per-client delta, assuming
// baseline and current are already filtered to that client's interest
// set. Updates always use the sparse-packed encoding, since per-client
// views tend to change only a handful of fields at a time.
func EncodeDeltaSnapshotForClient(s *schema.Schema, tick, baselineTick SnapshotTick, baseline, current Snapshot, limits Limits, out []byte) (int, error) {
	scratch := NewScratch()
	defer scratch.Release()

	return EncodeDeltaSnapshotForClientWithScratch(s, tick, baselineTick, baseline, current, limits, scratch, out)
}

// EncodeDeltaSnapshotForClientWithScratch is EncodeDeltaSnapshotForClient
// using caller-supplied scratch buffers.
func EncodeDeltaSnapshotForClientWithScratch(s *schema.Schema, tick, baselineTick SnapshotTick, baseline, current Snapshot, limits Limits, scratch *Scratch, out []byte) (int, error) {
	return encodeDeltaSnapshotMode(s, tick, baselineTick, baseline, current, limits, scratch, out, updateModeSparse)
}

// EncodeDeltaSnapshotForClientSession encodes a per-client delta framed
// with a compact session header instead of a full PacketHeader,
// advancing session.LastTick on success.
func EncodeDeltaSnapshotForClientSession(s *schema.Schema, tick, baselineTick SnapshotTick, baseline, current Snapshot, limits Limits, scratch *Scratch, session *SessionState, out []byte) (int, error) {
	if len(out) < wire.SessionMaxHeaderSize {
		return 0, &OutputTooSmallError{Needed: wire.SessionMaxHeaderSize, Available: len(out)}
	}
	if tick <= session.LastTick {
		return 0, &SessionOutOfOrderError{Previous: session.LastTick, Current: tick}
	}
	if baselineTick > tick {
		return 0, &BaselineTickMismatchError{Expected: baselineTick, Found: tick}
	}

	payloadLen, err := encodeDeltaPayload(s, baselineTick, baseline, current, limits, scratch, out[wire.SessionMaxHeaderSize:], updateModeSparse)
	if err != nil {
		return 0, err
	}

	tickDelta := uint32(tick - session.LastTick)
	baselineDelta := uint32(tick - baselineTick)
	headerLen, err := wire.EncodeSessionHeader(out[:wire.SessionMaxHeaderSize], wire.DeltaSnapshotSessionFlags(), tickDelta, baselineDelta, uint32(payloadLen)) //nolint:gosec
	if err != nil {
		return 0, &WireError{Err: err}
	}
	if headerLen < wire.SessionMaxHeaderSize {
		copy(out[headerLen:headerLen+payloadLen], out[wire.SessionMaxHeaderSize:wire.SessionMaxHeaderSize+payloadLen])
	}

	session.LastTick = tick

	return headerLen + payloadLen, nil
}

func encodeDeltaSnapshotMode(s *schema.Schema, tick, baselineTick SnapshotTick, baseline, current Snapshot, limits Limits, scratch *Scratch, out []byte, mode updateMode) (int, error) {
	if len(out) < wire.HeaderSize {
		return 0, &OutputTooSmallError{Needed: wire.HeaderSize, Available: len(out)}
	}

	payloadLen, err := encodeDeltaPayload(s, baselineTick, baseline, current, limits, scratch, out[wire.HeaderSize:], mode)
	if err != nil {
		return 0, err
	}

	header := wire.DeltaSnapshotHeader(schema.Hash(s), uint32(tick), uint32(baselineTick), uint32(payloadLen)) //nolint:gosec
	if err := wire.EncodeHeader(header, out[:wire.HeaderSize]); err != nil {
		return 0, &OutputTooSmallError{Needed: wire.HeaderSize, Available: len(out)}
	}

	return wire.HeaderSize + payloadLen, nil
}

func encodeDeltaPayload(s *schema.Schema, baselineTick SnapshotTick, baseline, current Snapshot, limits Limits, scratch *Scratch, out []byte, mode updateMode) (int, error) {
	if baseline.Tick != baselineTick {
		return 0, &BaselineTickMismatchError{Expected: baselineTick, Found: baseline.Tick}
	}
	if err := ensureEntitiesSorted(baseline.Entities); err != nil {
		return 0, err
	}
	if err := ensureEntitiesSorted(current.Entities); err != nil {
		return 0, err
	}

	counts, err := diffCounts(s, baseline, current, limits)
	if err != nil {
		return 0, err
	}
	if counts.Creates > limits.MaxEntitiesCreate {
		return 0, &LimitExceededError{Kind: LimitEntitiesCreate, Limit: limits.MaxEntitiesCreate, Actual: counts.Creates}
	}
	if counts.Updates > limits.MaxEntitiesUpdate {
		return 0, &LimitExceededError{Kind: LimitEntitiesUpdate, Limit: limits.MaxEntitiesUpdate, Actual: counts.Updates}
	}
	if counts.Destroys > limits.MaxEntitiesDestroy {
		return 0, &LimitExceededError{Kind: LimitEntitiesDestroy, Limit: limits.MaxEntitiesDestroy, Actual: counts.Destroys}
	}

	offset := 0
	if counts.Destroys > 0 {
		written, err := writeSection(wire.SectionEntityDestroy, out[offset:], limits, func(w *bitstream.Writer) error {
			return encodeDestroyBody(baseline, current, counts.Destroys, limits, w)
		})
		if err != nil {
			return 0, err
		}
		offset += written
	}
	if counts.Creates > 0 {
		written, err := writeSection(wire.SectionEntityCreate, out[offset:], limits, func(w *bitstream.Writer) error {
			return encodeDeltaCreateBody(s, baseline, current, counts.Creates, limits, w)
		})
		if err != nil {
			return 0, err
		}
		offset += written
	}
	if counts.Updates > 0 {
		encoding := UpdateEncodingSparsePacked
		if mode == updateModeAuto {
			encoding, err = selectUpdateEncoding(s, baseline, current, limits, scratch)
			if err != nil {
				return 0, err
			}
		}
		tag := wire.SectionUpdateMasked
		if encoding == UpdateEncodingSparsePacked {
			tag = wire.SectionUpdateSparsePacked
		}
		written, err := writeSection(tag, out[offset:], limits, func(w *bitstream.Writer) error {
			if encoding == UpdateEncodingMasked {
				return encodeUpdateBodyMasked(s, baseline, current, counts.Updates, limits, scratch, w)
			}

			return encodeUpdateBodySparsePacked(s, baseline, current, counts.Updates, limits, scratch, w)
		})
		if err != nil {
			return 0, err
		}
		offset += written
	}

	return offset, nil
}

// ApplyDeltaSnapshot decodes a raw delta packet and applies it to
// baseline, returning the resulting snapshot.
func ApplyDeltaSnapshot(s *schema.Schema, baseline Snapshot, data []byte, wireLimits wire.Limits, limits Limits) (Snapshot, error) {
	packet, err := wire.DecodePacket(data, wireLimits)
	if err != nil {
		return Snapshot{}, &WireError{Err: err}
	}

	return ApplyDeltaSnapshotFromPacket(s, baseline, packet, limits)
}

// ApplyDeltaSnapshotFromPacket applies an already-parsed delta packet to
// baseline. Destroys are applied first, then creates, then the
// MaxTotalEntitiesAfterApply limit is checked, then updates.
func ApplyDeltaSnapshotFromPacket(s *schema.Schema, baseline Snapshot, packet *wire.WirePacket, limits Limits) (Snapshot, error) {
	header := packet.Header
	if !header.Flags.IsDeltaSnapshot() {
		return Snapshot{}, &WireError{Err: &wire.InvalidFlagsError{Flags: uint16(header.Flags)}}
	}
	if header.BaselineTick == 0 {
		return Snapshot{}, &WireError{Err: &wire.InvalidBaselineTickError{BaselineTick: header.BaselineTick, Flags: uint16(header.Flags)}}
	}
	if SnapshotTick(header.BaselineTick) != baseline.Tick {
		return Snapshot{}, &BaselineTickMismatchError{Expected: baseline.Tick, Found: SnapshotTick(header.BaselineTick)}
	}

	expectedHash := schema.Hash(s)
	if header.SchemaHash != expectedHash {
		return Snapshot{}, &SchemaMismatchError{Expected: expectedHash, Found: header.SchemaHash}
	}

	destroys, creates, updates, err := decodeDeltaSections(s, packet, limits)
	if err != nil {
		return Snapshot{}, err
	}

	if err := ensureEntitiesSorted(baseline.Entities); err != nil {
		return Snapshot{}, err
	}
	if err := ensureEntitiesSorted(creates); err != nil {
		return Snapshot{}, err
	}

	remaining, err := applyDestroys(baseline.Entities, destroys)
	if err != nil {
		return Snapshot{}, err
	}
	remaining, err = applyCreates(remaining, creates)
	if err != nil {
		return Snapshot{}, err
	}
	if len(remaining) > limits.MaxTotalEntitiesAfterApply {
		return Snapshot{}, &LimitExceededError{Kind: LimitTotalEntitiesAfterApply, Limit: limits.MaxTotalEntitiesAfterApply, Actual: len(remaining)}
	}
	if err := applyUpdates(remaining, updates); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Tick: SnapshotTick(header.Tick), Entities: remaining}, nil
}

// DecodeDeltaPacket decodes a delta packet's sections without applying
// them to any baseline.
func DecodeDeltaPacket(s *schema.Schema, packet *wire.WirePacket, limits Limits) (DeltaDecoded, error) {
	header := packet.Header
	if !header.Flags.IsDeltaSnapshot() {
		return DeltaDecoded{}, &WireError{Err: &wire.InvalidFlagsError{Flags: uint16(header.Flags)}}
	}
	if header.BaselineTick == 0 {
		return DeltaDecoded{}, &WireError{Err: &wire.InvalidBaselineTickError{BaselineTick: header.BaselineTick, Flags: uint16(header.Flags)}}
	}

	expectedHash := schema.Hash(s)
	if header.SchemaHash != expectedHash {
		return DeltaDecoded{}, &SchemaMismatchError{Expected: expectedHash, Found: header.SchemaHash}
	}

	destroys, creates, updates, err := decodeDeltaSections(s, packet, limits)
	if err != nil {
		return DeltaDecoded{}, err
	}

	return DeltaDecoded{
		Tick:         SnapshotTick(header.Tick),
		BaselineTick: SnapshotTick(header.BaselineTick),
		Destroys:     destroys,
		Creates:      creates,
		Updates:      updates,
	}, nil
}

func diffCounts(s *schema.Schema, baseline, current Snapshot, limits Limits) (DiffCounts, error) {
	var counts DiffCounts
	i, j := 0, 0
	for i < len(baseline.Entities) || j < len(current.Entities) {
		switch {
		case i < len(baseline.Entities) && j < len(current.Entities):
			b := &baseline.Entities[i]
			c := &current.Entities[j]
			switch {
			case b.ID < c.ID:
				counts.Destroys++
				i++
			case b.ID > c.ID:
				counts.Creates++
				j++
			default:
				has, err := entityHasUpdates(s, b, c, limits)
				if err != nil {
					return DiffCounts{}, err
				}
				if has {
					counts.Updates++
				}
				i++
				j++
			}
		case i < len(baseline.Entities):
			counts.Destroys++
			i++
		default:
			counts.Creates++
			j++
		}
	}

	return counts, nil
}

// selectUpdateEncoding estimates the bit cost of the dense masked update
// encoding against the sparse-packed one and picks the cheaper. Sparse
// wins ties; masked is returned when there is nothing to compare (no
// changed fields at all, i.e. updates whose only difference is in an
// entity the two-pointer scan never matched).
func selectUpdateEncoding(s *schema.Schema, baseline, current Snapshot, limits Limits, scratch *Scratch) (UpdateEncoding, error) {
	maskBits := 0
	sparseBits := 0

	i, j := 0, 0
	for i < len(baseline.Entities) && j < len(current.Entities) {
		base := &baseline.Entities[i]
		curr := &current.Entities[j]
		switch {
		case base.ID < curr.ID:
			i++
		case base.ID > curr.ID:
			j++
		default:
			for _, component := range s.Components {
				baseComponent := findComponent(base, component.ID)
				currComponent := findComponent(curr, component.ID)
				if (baseComponent != nil) != (currComponent != nil) {
					return 0, &InvalidMaskError{Kind: MaskComponent, Component: component.ID, Reason: ReasonComponentPresenceMismatch}
				}
				if baseComponent == nil || currComponent == nil {
					continue
				}
				if len(baseComponent.Fields) != len(component.Fields) || len(currComponent.Fields) != len(component.Fields) {
					return 0, &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonFieldCountMismatch}
				}
				if len(component.Fields) > limits.MaxFieldsPerComponent {
					return 0, &LimitExceededError{Kind: LimitFieldsPerComponent, Limit: limits.MaxFieldsPerComponent, Actual: len(component.Fields)}
				}

				fieldMask := scratch.FieldMask(len(component.Fields))
				if err := computeFieldMaskInto(component, *baseComponent, *currComponent, fieldMask); err != nil {
					return 0, err
				}
				changed := countTrue(fieldMask)
				if changed > 0 {
					fieldCount := len(component.Fields)
					indexBits := schema.RequiredBits(fieldCountRangeMax(fieldCount))
					maskBits += fieldCount
					sparseBits += indexBits*changed + varU32LenBits(uint32(curr.ID)) + varU32LenBits(uint32(component.ID.Raw())) + varU32LenBits(uint32(changed))
				}
			}
			i++
			j++
		}
	}

	if maskBits == 0 {
		return UpdateEncodingMasked, nil
	}
	if sparseBits <= maskBits {
		return UpdateEncodingSparsePacked, nil
	}

	return UpdateEncodingMasked, nil
}

func fieldCountRangeMax(fieldCount int) uint64 {
	if fieldCount == 0 {
		return 0
	}

	return uint64(fieldCount - 1)
}

func varU32LenBits(v uint32) int { return wire.VarU32RawLen(v) * 8 }

func encodeDestroyBody(baseline, current Snapshot, destroyCount int, limits Limits, w *bitstream.Writer) error {
	if destroyCount > limits.MaxEntitiesDestroy {
		return &LimitExceededError{Kind: LimitEntitiesDestroy, Limit: limits.MaxEntitiesDestroy, Actual: destroyCount}
	}
	if err := w.AlignToByte(); err != nil {
		return &BitstreamError{Err: err}
	}
	if err := w.WriteVarU32(uint32(destroyCount)); err != nil { //nolint:gosec
		return &BitstreamError{Err: err}
	}

	i, j := 0, 0
	for i < len(baseline.Entities) || j < len(current.Entities) {
		switch {
		case i < len(baseline.Entities) && j < len(current.Entities):
			b := &baseline.Entities[i]
			c := &current.Entities[j]
			switch {
			case b.ID < c.ID:
				if err := writeAlignedEntityID(w, b.ID); err != nil {
					return err
				}
				i++
			case b.ID > c.ID:
				j++
			default:
				i++
				j++
			}
		case i < len(baseline.Entities):
			if err := writeAlignedEntityID(w, baseline.Entities[i].ID); err != nil {
				return err
			}
			i++
		default:
			j++
		}
	}

	return w.AlignToByte()
}

func writeAlignedEntityID(w *bitstream.Writer, id EntityID) error {
	if err := w.AlignToByte(); err != nil {
		return &BitstreamError{Err: err}
	}
	if err := w.WriteU32Aligned(uint32(id)); err != nil {
		return &BitstreamError{Err: err}
	}

	return nil
}

func encodeDeltaCreateBody(s *schema.Schema, baseline, current Snapshot, createCount int, limits Limits, w *bitstream.Writer) error {
	if createCount > limits.MaxEntitiesCreate {
		return &LimitExceededError{Kind: LimitEntitiesCreate, Limit: limits.MaxEntitiesCreate, Actual: createCount}
	}
	if err := w.AlignToByte(); err != nil {
		return &BitstreamError{Err: err}
	}
	if err := w.WriteVarU32(uint32(createCount)); err != nil { //nolint:gosec
		return &BitstreamError{Err: err}
	}

	i, j := 0, 0
	for i < len(baseline.Entities) || j < len(current.Entities) {
		switch {
		case i < len(baseline.Entities) && j < len(current.Entities):
			b := &baseline.Entities[i]
			c := &current.Entities[j]
			switch {
			case b.ID < c.ID:
				i++
			case b.ID > c.ID:
				if err := writeCreateEntity(s, c, limits, w); err != nil {
					return err
				}
				j++
			default:
				i++
				j++
			}
		case i < len(baseline.Entities):
			i++
		default:
			if err := writeCreateEntity(s, &current.Entities[j], limits, w); err != nil {
				return err
			}
			j++
		}
	}

	return w.AlignToByte()
}

func writeCreateEntity(s *schema.Schema, entity *EntitySnapshot, limits Limits, w *bitstream.Writer) error {
	if err := writeAlignedEntityID(w, entity.ID); err != nil {
		return err
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

	return nil
}

func encodeUpdateBodyMasked(s *schema.Schema, baseline, current Snapshot, updateCount int, limits Limits, scratch *Scratch, w *bitstream.Writer) error {
	if updateCount > limits.MaxEntitiesUpdate {
		return &LimitExceededError{Kind: LimitEntitiesUpdate, Limit: limits.MaxEntitiesUpdate, Actual: updateCount}
	}
	if err := w.AlignToByte(); err != nil {
		return &BitstreamError{Err: err}
	}
	if err := w.WriteVarU32(uint32(updateCount)); err != nil { //nolint:gosec
		return &BitstreamError{Err: err}
	}

	i, j := 0, 0
	for i < len(baseline.Entities) && j < len(current.Entities) {
		b := &baseline.Entities[i]
		c := &current.Entities[j]
		switch {
		case b.ID < c.ID:
			i++
		case b.ID > c.ID:
			j++
		default:
			has, err := entityHasUpdates(s, b, c, limits)
			if err != nil {
				return err
			}
			if has {
				if err := writeAlignedEntityID(w, c.ID); err != nil {
					return err
				}
				if err := ensureComponentPresenceMatches(s, b, c); err != nil {
					return err
				}
				if err := writeUpdateComponents(s, b, c, limits, scratch, w); err != nil {
					return err
				}
			}
			i++
			j++
		}
	}

	return w.AlignToByte()
}

func writeUpdateComponents(s *schema.Schema, baseline, current *EntitySnapshot, limits Limits, scratch *Scratch, w *bitstream.Writer) error {
	componentChanged := scratch.ComponentChanged(len(s.Components))

	for idx, component := range s.Components {
		base := findComponent(baseline, component.ID)
		curr := findComponent(current, component.ID)
		if (base != nil) != (curr != nil) {
			return &InvalidMaskError{Kind: MaskComponent, Component: component.ID, Reason: ReasonComponentPresenceMismatch}
		}
		if base == nil || curr == nil {
			if err := w.WriteBit(false); err != nil {
				return &BitstreamError{Err: err}
			}

			continue
		}
		if len(base.Fields) != len(component.Fields) || len(curr.Fields) != len(component.Fields) {
			return &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonFieldCountMismatch}
		}
		if len(component.Fields) > limits.MaxFieldsPerComponent {
			return &LimitExceededError{Kind: LimitFieldsPerComponent, Limit: limits.MaxFieldsPerComponent, Actual: len(component.Fields)}
		}

		fieldMask := scratch.FieldMask(len(component.Fields))
		if err := computeFieldMaskInto(component, *base, *curr, fieldMask); err != nil {
			return err
		}
		anyChanged := anyTrue(fieldMask)
		if err := w.WriteBit(anyChanged); err != nil {
			return &BitstreamError{Err: err}
		}
		if anyChanged {
			componentChanged[idx] = true
		}
	}

	for idx, component := range s.Components {
		if !componentChanged[idx] {
			continue
		}
		base := findComponent(baseline, component.ID)
		curr := findComponent(current, component.ID)
		if base == nil || curr == nil {
			continue
		}

		fieldMask := scratch.FieldMask(len(component.Fields))
		if err := computeFieldMaskInto(component, *base, *curr, fieldMask); err != nil {
			return err
		}
		for _, bit := range fieldMask {
			if err := w.WriteBit(bit); err != nil {
				return &BitstreamError{Err: err}
			}
		}
		for fi, field := range component.Fields {
			if fieldMask[fi] {
				if err := writeFieldValue(component.ID, field, curr.Fields[fi], w); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func countSparseUpdateEntries(s *schema.Schema, baseline, current Snapshot, limits Limits, scratch *Scratch) (int, error) {
	count := 0
	i, j := 0, 0
	for i < len(baseline.Entities) && j < len(current.Entities) {
		base := &baseline.Entities[i]
		curr := &current.Entities[j]
		switch {
		case base.ID < curr.ID:
			i++
		case base.ID > curr.ID:
			j++
		default:
			has, err := entityHasUpdates(s, base, curr, limits)
			if err != nil {
				return 0, err
			}
			if has {
				n, err := countChangedComponents(s, base, curr, limits, scratch)
				if err != nil {
					return 0, err
				}
				count += n
			}
			i++
			j++
		}
	}

	return count, nil
}

func countChangedComponents(s *schema.Schema, base, curr *EntitySnapshot, limits Limits, scratch *Scratch) (int, error) {
	count := 0
	for _, component := range s.Components {
		baseComponent := findComponent(base, component.ID)
		currComponent := findComponent(curr, component.ID)
		if (baseComponent != nil) != (currComponent != nil) {
			return 0, &InvalidMaskError{Kind: MaskComponent, Component: component.ID, Reason: ReasonComponentPresenceMismatch}
		}
		if baseComponent == nil || currComponent == nil {
			continue
		}
		if len(baseComponent.Fields) != len(component.Fields) || len(currComponent.Fields) != len(component.Fields) {
			return 0, &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonFieldCountMismatch}
		}
		if len(component.Fields) > limits.MaxFieldsPerComponent {
			return 0, &LimitExceededError{Kind: LimitFieldsPerComponent, Limit: limits.MaxFieldsPerComponent, Actual: len(component.Fields)}
		}

		fieldMask := scratch.FieldMask(len(component.Fields))
		if err := computeFieldMaskInto(component, *baseComponent, *currComponent, fieldMask); err != nil {
			return 0, err
		}
		if anyTrue(fieldMask) {
			count++
		}
	}

	return count, nil
}

func encodeUpdateBodySparsePacked(s *schema.Schema, baseline, current Snapshot, updateCount int, limits Limits, scratch *Scratch, w *bitstream.Writer) error {
	if updateCount > limits.MaxEntitiesUpdate {
		return &LimitExceededError{Kind: LimitEntitiesUpdate, Limit: limits.MaxEntitiesUpdate, Actual: updateCount}
	}

	entryCount, err := countSparseUpdateEntries(s, baseline, current, limits, scratch)
	if err != nil {
		return err
	}
	entryLimit := saturatingMul(limits.MaxEntitiesUpdate, limits.MaxComponentsPerEntity)
	if entryCount > entryLimit {
		return &LimitExceededError{Kind: LimitEntitiesUpdate, Limit: entryLimit, Actual: entryCount}
	}

	if err := w.AlignToByte(); err != nil {
		return &BitstreamError{Err: err}
	}
	if err := w.WriteVarU32(uint32(entryCount)); err != nil { //nolint:gosec
		return &BitstreamError{Err: err}
	}

	i, j := 0, 0
	for i < len(baseline.Entities) && j < len(current.Entities) {
		base := &baseline.Entities[i]
		curr := &current.Entities[j]
		switch {
		case base.ID < curr.ID:
			i++
		case base.ID > curr.ID:
			j++
		default:
			has, err := entityHasUpdates(s, base, curr, limits)
			if err != nil {
				return err
			}
			if has {
				if err := writeSparseUpdateEntries(s, base, curr, limits, scratch, w); err != nil {
					return err
				}
			}
			i++
			j++
		}
	}

	return w.AlignToByte()
}

func writeSparseUpdateEntries(s *schema.Schema, base, curr *EntitySnapshot, limits Limits, scratch *Scratch, w *bitstream.Writer) error {
	for _, component := range s.Components {
		baseComponent := findComponent(base, component.ID)
		currComponent := findComponent(curr, component.ID)
		if (baseComponent != nil) != (currComponent != nil) {
			return &InvalidMaskError{Kind: MaskComponent, Component: component.ID, Reason: ReasonComponentPresenceMismatch}
		}
		if baseComponent == nil || currComponent == nil {
			continue
		}
		if len(baseComponent.Fields) != len(component.Fields) || len(currComponent.Fields) != len(component.Fields) {
			return &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonFieldCountMismatch}
		}
		if len(component.Fields) > limits.MaxFieldsPerComponent {
			return &LimitExceededError{Kind: LimitFieldsPerComponent, Limit: limits.MaxFieldsPerComponent, Actual: len(component.Fields)}
		}

		fieldMask := scratch.FieldMask(len(component.Fields))
		if err := computeFieldMaskInto(component, *baseComponent, *currComponent, fieldMask); err != nil {
			return err
		}
		changedFields := countTrue(fieldMask)
		if changedFields == 0 {
			continue
		}

		if err := w.AlignToByte(); err != nil {
			return &BitstreamError{Err: err}
		}
		if err := w.WriteVarU32(uint32(curr.ID)); err != nil {
			return &BitstreamError{Err: err}
		}
		if err := w.WriteVarU32(uint32(component.ID.Raw())); err != nil {
			return &BitstreamError{Err: err}
		}
		if err := w.WriteVarU32(uint32(changedFields)); err != nil { //nolint:gosec
			return &BitstreamError{Err: err}
		}

		indexBits := schema.RequiredBits(fieldCountRangeMax(len(component.Fields)))
		for fi, field := range component.Fields {
			if !fieldMask[fi] {
				continue
			}
			if indexBits > 0 {
				if err := w.WriteBits(uint64(fi), indexBits); err != nil {
					return &BitstreamError{Err: err}
				}
			}
			if err := writeFieldValue(component.ID, field, currComponent.Fields[fi], w); err != nil {
				return err
			}
		}
	}

	return nil
}

func saturatingMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	result := a * b
	if result/a != b {
		return math.MaxInt
	}

	return result
}

func anyTrue(bits []bool) bool {
	for _, b := range bits {
		if b {
			return true
		}
	}

	return false
}

func countTrue(bits []bool) int {
	n := 0
	for _, b := range bits {
		if b {
			n++
		}
	}

	return n
}

func computeFieldMaskInto(component schema.ComponentDef, baseline, current ComponentSnapshot, fieldMask []bool) error {
	for i, field := range component.Fields {
		changed, err := fieldChanged(component.ID, field, baseline.Fields[i], current.Fields[i])
		if err != nil {
			return err
		}
		fieldMask[i] = changed
	}

	return nil
}

func fieldChanged(componentID schema.ComponentID, field schema.FieldDef, baseline, current FieldValue) (bool, error) {
	if field.Policy.Kind == schema.PolicyThreshold {
		return fieldExceedsThreshold(componentID, field, baseline, current, field.Policy.ThresholdQ)
	}

	return fieldDiffers(componentID, field, baseline, current)
}

func fieldDiffers(componentID schema.ComponentID, field schema.FieldDef, baseline, current FieldValue) (bool, error) {
	if baseline.Kind != current.Kind {
		return false, &InvalidValueError{Component: componentID, Field: field.ID, Reason: ReasonTypeMismatch, ExpectedKind: codecName(field.Codec.Kind), FoundKind: current.name()}
	}

	switch baseline.Kind {
	case schema.KindBool:
		return baseline.Bool != current.Bool, nil
	case schema.KindUInt, schema.KindVarUInt:
		return baseline.UInt != current.UInt, nil
	case schema.KindSInt, schema.KindVarSInt:
		return baseline.SInt != current.SInt, nil
	case schema.KindFixedPoint:
		return baseline.Fixed != current.Fixed, nil
	default:
		return false, &InvalidValueError{Component: componentID, Field: field.ID, Reason: ReasonTypeMismatch, ExpectedKind: codecName(field.Codec.Kind), FoundKind: current.name()}
	}
}

func fieldExceedsThreshold(componentID schema.ComponentID, field schema.FieldDef, baseline, current FieldValue, thresholdQ uint32) (bool, error) {
	threshold := uint64(thresholdQ)
	if baseline.Kind != current.Kind {
		return false, &InvalidValueError{Component: componentID, Field: field.ID, Reason: ReasonTypeMismatch, ExpectedKind: codecName(field.Codec.Kind), FoundKind: current.name()}
	}

	switch baseline.Kind {
	case schema.KindFixedPoint:
		return absDiffInt64(baseline.Fixed, current.Fixed) > threshold, nil
	case schema.KindUInt, schema.KindVarUInt:
		return absDiffUint64(baseline.UInt, current.UInt) > threshold, nil
	case schema.KindSInt, schema.KindVarSInt:
		return absDiffInt64(baseline.SInt, current.SInt) > threshold, nil
	case schema.KindBool:
		return baseline.Bool != current.Bool, nil
	default:
		return false, &InvalidValueError{Component: componentID, Field: field.ID, Reason: ReasonTypeMismatch, ExpectedKind: codecName(field.Codec.Kind), FoundKind: current.name()}
	}
}

func absDiffInt64(a, b int64) uint64 {
	if a > b {
		return uint64(a - b)
	}

	return uint64(b - a)
}

func absDiffUint64(a, b uint64) uint64 {
	if a > b {
		return a - b
	}

	return b - a
}

func entityHasUpdates(s *schema.Schema, baseline, current *EntitySnapshot, limits Limits) (bool, error) {
	if err := ensureComponentPresenceMatches(s, baseline, current); err != nil {
		return false, err
	}

	for _, component := range s.Components {
		base := findComponent(baseline, component.ID)
		curr := findComponent(current, component.ID)
		if base == nil || curr == nil {
			continue
		}
		if len(base.Fields) != len(component.Fields) || len(curr.Fields) != len(component.Fields) {
			return false, &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonFieldCountMismatch}
		}
		if len(component.Fields) > limits.MaxFieldsPerComponent {
			return false, &LimitExceededError{Kind: LimitFieldsPerComponent, Limit: limits.MaxFieldsPerComponent, Actual: len(component.Fields)}
		}
		for i, field := range component.Fields {
			changed, err := fieldChanged(component.ID, field, base.Fields[i], curr.Fields[i])
			if err != nil {
				return false, err
			}
			if changed {
				return true, nil
			}
		}
	}

	return false, nil
}

// ensureComponentPresenceMatches requires component presence to be stable
// across an entity's lifetime: a component present in baseline but absent
// in current (or vice versa) is a schema/state inconsistency, not a change
// to encode.
func ensureComponentPresenceMatches(s *schema.Schema, baseline, current *EntitySnapshot) error {
	for _, component := range s.Components {
		base := findComponent(baseline, component.ID) != nil
		curr := findComponent(current, component.ID) != nil
		if base != curr {
			return &InvalidMaskError{Kind: MaskComponent, Component: component.ID, Reason: ReasonComponentPresenceMismatch}
		}
	}

	return nil
}

func ensureEntitiesSorted(entities []EntitySnapshot) error {
	var prevID *EntityID
	for i := range entities {
		e := &entities[i]
		if prevID != nil && e.ID <= *prevID {
			return &InvalidEntityOrderError{Previous: *prevID, Current: e.ID}
		}
		id := e.ID
		prevID = &id
	}

	return nil
}

func decodeDestroySection(body []byte, limits Limits) ([]EntityID, error) {
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
	if count > limits.MaxEntitiesDestroy {
		return nil, &LimitExceededError{Kind: LimitEntitiesDestroy, Limit: limits.MaxEntitiesDestroy, Actual: count}
	}

	ids := make([]EntityID, 0, count)
	var prevID *EntityID
	for i := 0; i < count; i++ {
		if err := r.AlignToByte(); err != nil {
			return nil, &BitstreamError{Err: err}
		}
		rawID, err := r.ReadU32Aligned()
		if err != nil {
			return nil, &BitstreamError{Err: err}
		}
		id := EntityID(rawID)
		if prevID != nil && id <= *prevID {
			return nil, &InvalidEntityOrderError{Previous: *prevID, Current: id}
		}
		p := id
		prevID = &p
		ids = append(ids, id)
	}

	if err := r.AlignToByte(); err != nil {
		return nil, &BitstreamError{Err: err}
	}
	if remaining := r.BitsRemaining(); remaining != 0 {
		return nil, &TrailingSectionDataError{Section: "entity_destroy", RemainingBits: remaining}
	}

	return ids, nil
}

func decodeUpdateSectionMasked(s *schema.Schema, body []byte, limits Limits) ([]DeltaUpdateEntity, error) {
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
	if count > limits.MaxEntitiesUpdate {
		return nil, &LimitExceededError{Kind: LimitEntitiesUpdate, Limit: limits.MaxEntitiesUpdate, Actual: count}
	}

	updates := make([]DeltaUpdateEntity, 0, count)
	var prevID *EntityID
	for i := 0; i < count; i++ {
		if err := r.AlignToByte(); err != nil {
			return nil, &BitstreamError{Err: err}
		}
		rawID, err := r.ReadU32Aligned()
		if err != nil {
			return nil, &BitstreamError{Err: err}
		}
		id := EntityID(rawID)
		if prevID != nil && id <= *prevID {
			return nil, &InvalidEntityOrderError{Previous: *prevID, Current: id}
		}
		p := id
		prevID = &p

		componentMask, err := readMask(r, len(s.Components), MaskComponent, 0)
		if err != nil {
			return nil, err
		}

		var components []DeltaUpdateComponent
		for idx, component := range s.Components {
			if componentMask[idx] {
				fields, err := decodeUpdateComponent(component, r, limits)
				if err != nil {
					return nil, err
				}
				components = append(components, DeltaUpdateComponent{ID: component.ID, Fields: fields})
			}
		}

		updates = append(updates, DeltaUpdateEntity{ID: id, Components: components})
	}

	if err := r.AlignToByte(); err != nil {
		return nil, &BitstreamError{Err: err}
	}
	if remaining := r.BitsRemaining(); remaining != 0 {
		return nil, &TrailingSectionDataError{Section: "update_masked", RemainingBits: remaining}
	}

	return updates, nil
}

func decodeUpdateComponent(component schema.ComponentDef, r *bitstream.Reader, limits Limits) ([]IndexedFieldValue, error) {
	if len(component.Fields) > limits.MaxFieldsPerComponent {
		return nil, &LimitExceededError{Kind: LimitFieldsPerComponent, Limit: limits.MaxFieldsPerComponent, Actual: len(component.Fields)}
	}

	mask, err := readMask(r, len(component.Fields), MaskField, component.ID)
	if err != nil {
		return nil, err
	}
	if !anyTrue(mask) {
		return nil, &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonEmptyFieldMask}
	}

	var fields []IndexedFieldValue
	for idx, field := range component.Fields {
		if mask[idx] {
			value, err := readFieldValue(component.ID, field, r)
			if err != nil {
				return nil, err
			}
			fields = append(fields, IndexedFieldValue{Index: idx, Value: value})
		}
	}

	return fields, nil
}

// decodeUpdateSectionSparse decodes both sparse update wire formats:
// packed (current encoder output, varint ids and bit-packed field
// indices) and the legacy varint format (byte-aligned u16 component id
// and varint field indices), accepted on decode for compatibility with
// older encoders.
func decodeUpdateSectionSparse(s *schema.Schema, body []byte, limits Limits, packed bool) ([]DeltaUpdateEntity, error) {
	if len(body) > limits.MaxSectionBytes {
		return nil, &LimitExceededError{Kind: LimitSectionBytes, Limit: limits.MaxSectionBytes, Actual: len(body)}
	}

	r := bitstream.NewReader(body)
	if err := r.AlignToByte(); err != nil {
		return nil, &BitstreamError{Err: err}
	}
	rawEntryCount, err := r.ReadVarU32()
	if err != nil {
		return nil, &BitstreamError{Err: err}
	}
	entryCount := int(rawEntryCount)
	entryLimit := saturatingMul(limits.MaxEntitiesUpdate, limits.MaxComponentsPerEntity)
	if entryCount > entryLimit {
		return nil, &LimitExceededError{Kind: LimitEntitiesUpdate, Limit: entryLimit, Actual: entryCount}
	}

	var updates []DeltaUpdateEntity
	var prevEntity *uint32
	seenInEntity := make(map[uint32]struct{})
	for i := 0; i < entryCount; i++ {
		entityIDRaw, componentRaw, err := readSparseEntryHeader(r, packed)
		if err != nil {
			return nil, err
		}

		componentID, ok := parseComponentID(componentRaw)
		if !ok {
			return nil, &InvalidMaskError{Kind: MaskComponent, Reason: ReasonInvalidComponentID}
		}
		if err := checkSparseOrder(prevEntity, entityIDRaw, componentRaw, seenInEntity); err != nil {
			return nil, err
		}
		if prevEntity == nil || entityIDRaw != *prevEntity {
			for k := range seenInEntity {
				delete(seenInEntity, k)
			}
		}
		seenInEntity[componentRaw] = struct{}{}
		pe := entityIDRaw
		prevEntity = &pe

		component, ok := s.ComponentByID(componentID)
		if !ok {
			return nil, &InvalidMaskError{Kind: MaskComponent, Component: componentID, Reason: ReasonUnknownComponent}
		}

		fields, err := readSparseFields(r, component, limits, packed)
		if err != nil {
			return nil, err
		}

		if n := len(updates); n > 0 && uint32(updates[n-1].ID) == entityIDRaw {
			updates[n-1].Components = append(updates[n-1].Components, DeltaUpdateComponent{ID: component.ID, Fields: fields})
		} else {
			updates = append(updates, DeltaUpdateEntity{
				ID:         EntityID(entityIDRaw),
				Components: []DeltaUpdateComponent{{ID: component.ID, Fields: fields}},
			})
		}
	}

	if err := r.AlignToByte(); err != nil {
		return nil, &BitstreamError{Err: err}
	}
	if remaining := r.BitsRemaining(); remaining != 0 {
		return nil, &TrailingSectionDataError{Section: "update_sparse", RemainingBits: remaining}
	}
	if len(updates) > limits.MaxEntitiesUpdate {
		return nil, &LimitExceededError{Kind: LimitEntitiesUpdate, Limit: limits.MaxEntitiesUpdate, Actual: len(updates)}
	}

	return updates, nil
}

func readSparseEntryHeader(r *bitstream.Reader, packed bool) (entityID, componentRaw uint32, err error) {
	if err := r.AlignToByte(); err != nil {
		return 0, 0, &BitstreamError{Err: err}
	}
	if packed {
		entityID, err = r.ReadVarU32()
		if err != nil {
			return 0, 0, &BitstreamError{Err: err}
		}
		componentRaw, err = r.ReadVarU32()
		if err != nil {
			return 0, 0, &BitstreamError{Err: err}
		}
		if componentRaw > uint32(^uint16(0)) {
			return 0, 0, &InvalidMaskError{Kind: MaskComponent, Reason: ReasonInvalidComponentID}
		}

		return entityID, componentRaw, nil
	}

	entityID, err = r.ReadU32Aligned()
	if err != nil {
		return 0, 0, &BitstreamError{Err: err}
	}
	raw16, err := r.ReadU16Aligned()
	if err != nil {
		return 0, 0, &BitstreamError{Err: err}
	}

	return entityID, uint32(raw16), nil
}

// checkSparseOrder enforces that entity IDs never regress and that a given
// entity's components never repeat. It does not require componentRaw itself
// to be numerically ascending: writeSparseUpdateEntries emits components in
// schema-declaration order, which schema.Schema never requires to match
// ascending ComponentID order, so a strict numeric check here would reject
// validly-encoded packets for schemas that declare components out of ID order.
func checkSparseOrder(prevEntity *uint32, entityID, componentRaw uint32, seenInEntity map[uint32]struct{}) error {
	if prevEntity != nil {
		if entityID < *prevEntity {
			return &InvalidEntityOrderError{Previous: EntityID(*prevEntity), Current: EntityID(entityID)}
		}
		if entityID == *prevEntity {
			if _, dup := seenInEntity[componentRaw]; dup {
				return &InvalidEntityOrderError{Previous: EntityID(*prevEntity), Current: EntityID(entityID)}
			}
		}
	}
	return nil
}

func readSparseFields(r *bitstream.Reader, component schema.ComponentDef, limits Limits, packed bool) ([]IndexedFieldValue, error) {
	rawFieldCount, err := r.ReadVarU32()
	if err != nil {
		return nil, &BitstreamError{Err: err}
	}
	fieldCount := int(rawFieldCount)
	if fieldCount == 0 {
		return nil, &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonEmptyFieldMask}
	}
	if fieldCount > limits.MaxFieldsPerComponent {
		return nil, &LimitExceededError{Kind: LimitFieldsPerComponent, Limit: limits.MaxFieldsPerComponent, Actual: fieldCount}
	}
	if fieldCount > len(component.Fields) {
		return nil, &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonFieldCountMismatch}
	}

	indexBits := 0
	if packed {
		indexBits = schema.RequiredBits(fieldCountRangeMax(len(component.Fields)))
	}

	fields := make([]IndexedFieldValue, 0, fieldCount)
	var prevIndex *int
	for f := 0; f < fieldCount; f++ {
		fieldIndex, err := readSparseFieldIndex(r, indexBits, packed)
		if err != nil {
			return nil, err
		}
		if fieldIndex >= len(component.Fields) || (prevIndex != nil && fieldIndex <= *prevIndex) {
			return nil, &InvalidMaskError{Kind: MaskField, Component: component.ID, Reason: ReasonInvalidFieldIndex}
		}
		idx := fieldIndex
		prevIndex = &idx

		value, err := readFieldValue(component.ID, component.Fields[fieldIndex], r)
		if err != nil {
			return nil, err
		}
		fields = append(fields, IndexedFieldValue{Index: fieldIndex, Value: value})
	}

	return fields, nil
}

func readSparseFieldIndex(r *bitstream.Reader, indexBits int, packed bool) (int, error) {
	if packed {
		if indexBits == 0 {
			return 0, nil
		}
		v, err := r.ReadBits(indexBits)
		if err != nil {
			return 0, &BitstreamError{Err: err}
		}

		return int(v), nil
	}

	if err := r.AlignToByte(); err != nil {
		return 0, &BitstreamError{Err: err}
	}
	v, err := r.ReadVarU32()
	if err != nil {
		return 0, &BitstreamError{Err: err}
	}

	return int(v), nil
}

func parseComponentID(raw uint32) (schema.ComponentID, bool) {
	if raw == 0 || raw > uint32(^uint16(0)) {
		return 0, false
	}

	return schema.ComponentID(raw), true
}

func decodeDeltaSections(s *schema.Schema, packet *wire.WirePacket, limits Limits) ([]EntityID, []EntitySnapshot, []DeltaUpdateEntity, error) {
	var destroys []EntityID
	var creates []EntitySnapshot
	var updatesMasked, updatesSparse []DeltaUpdateEntity
	var destroysSeen, createsSeen, maskedSeen, sparseSeen bool

	for _, section := range packet.Sections {
		switch section.Tag {
		case wire.SectionEntityDestroy:
			if destroysSeen {
				return nil, nil, nil, &DuplicateSectionError{Section: "entity_destroy"}
			}
			destroysSeen = true
			d, err := decodeDestroySection(section.Body, limits)
			if err != nil {
				return nil, nil, nil, err
			}
			destroys = d
		case wire.SectionEntityCreate:
			if createsSeen {
				return nil, nil, nil, &DuplicateSectionError{Section: "entity_create"}
			}
			createsSeen = true
			c, err := decodeCreateSection(s, section.Body, limits)
			if err != nil {
				return nil, nil, nil, err
			}
			creates = c
		case wire.SectionUpdateMasked:
			if maskedSeen {
				return nil, nil, nil, &DuplicateSectionError{Section: "update_masked"}
			}
			maskedSeen = true
			u, err := decodeUpdateSectionMasked(s, section.Body, limits)
			if err != nil {
				return nil, nil, nil, err
			}
			updatesMasked = u
		case wire.SectionUpdateSparseVarint:
			if sparseSeen {
				return nil, nil, nil, &DuplicateSectionError{Section: "update_sparse"}
			}
			sparseSeen = true
			u, err := decodeUpdateSectionSparse(s, section.Body, limits, false)
			if err != nil {
				return nil, nil, nil, err
			}
			updatesSparse = u
		case wire.SectionUpdateSparsePacked:
			if sparseSeen {
				return nil, nil, nil, &DuplicateSectionError{Section: "update_sparse_packed"}
			}
			sparseSeen = true
			u, err := decodeUpdateSectionSparse(s, section.Body, limits, true)
			if err != nil {
				return nil, nil, nil, err
			}
			updatesSparse = u
		default:
			return nil, nil, nil, &UnexpectedSectionError{Section: sectionName(section.Tag)}
		}
	}

	var updates []DeltaUpdateEntity
	switch {
	case maskedSeen && sparseSeen:
		return nil, nil, nil, &DuplicateUpdateEncodingError{}
	case maskedSeen:
		updates = updatesMasked
	case sparseSeen:
		updates = updatesSparse
	}

	return destroys, creates, updates, nil
}

func applyDestroys(baseline []EntitySnapshot, destroys []EntityID) ([]EntitySnapshot, error) {
	result := make([]EntitySnapshot, 0, len(baseline))
	i, j := 0, 0
	for i < len(baseline) || j < len(destroys) {
		switch {
		case i < len(baseline) && j < len(destroys):
			b := baseline[i]
			d := destroys[j]
			switch {
			case b.ID < d:
				result = append(result, b)
				i++
			case b.ID > d:
				return nil, &EntityNotFoundError{EntityID: d}
			default:
				i++
				j++
			}
		case i < len(baseline):
			result = append(result, baseline[i])
			i++
		default:
			return nil, &EntityNotFoundError{EntityID: destroys[j]}
		}
	}

	return result, nil
}

func applyCreates(baseline, creates []EntitySnapshot) ([]EntitySnapshot, error) {
	result := make([]EntitySnapshot, 0, len(baseline)+len(creates))
	i, j := 0, 0
	for i < len(baseline) || j < len(creates) {
		switch {
		case i < len(baseline) && j < len(creates):
			b := baseline[i]
			c := creates[j]
			switch {
			case b.ID < c.ID:
				result = append(result, b)
				i++
			case b.ID > c.ID:
				result = append(result, c)
				j++
			default:
				return nil, &EntityAlreadyExistsError{EntityID: c.ID}
			}
		case i < len(baseline):
			result = append(result, baseline[i])
			i++
		default:
			result = append(result, creates[j])
			j++
		}
	}

	return result, nil
}

func applyUpdates(entities []EntitySnapshot, updates []DeltaUpdateEntity) error {
	for _, update := range updates {
		idx := sort.Search(len(entities), func(i int) bool { return entities[i].ID >= update.ID })
		if idx >= len(entities) || entities[idx].ID != update.ID {
			return &EntityNotFoundError{EntityID: update.ID}
		}
		entity := &entities[idx]
		for _, componentUpdate := range update.Components {
			component := findComponent(entity, componentUpdate.ID)
			if component == nil {
				return &ComponentNotFoundError{EntityID: update.ID, ComponentID: componentUpdate.ID}
			}
			for _, fv := range componentUpdate.Fields {
				if fv.Index >= len(component.Fields) {
					return &InvalidMaskError{Kind: MaskField, Component: componentUpdate.ID, Reason: ReasonFieldCountMismatch}
				}
				component.Fields[fv.Index] = fv.Value
			}
		}
	}

	return nil
}
