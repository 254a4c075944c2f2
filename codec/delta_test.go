package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ticksync/sdec/bitstream"
	"github.com/ticksync/sdec/wire"
)

func TestEncodeDeltaSnapshot_RoundTrip(t *testing.T) {
	s := testSchema(t)
	baseline := Snapshot{Tick: 1, Entities: []EntitySnapshot{
		entity(1, 10, -5, 100),
		entity(2, 20, 5, 50),
	}}
	current := Snapshot{Tick: 2, Entities: []EntitySnapshot{
		entity(1, 99, -5, 100), // x changed
		entity(3, 7, 7, 7),     // new entity
	}}

	out := make([]byte, 8192)
	n, err := EncodeDeltaSnapshot(s, 2, 1, baseline, current, DefaultLimits(), out)
	require.NoError(t, err)

	result, err := ApplyDeltaSnapshot(s, baseline, out[:n], wire.DefaultLimits(), DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, SnapshotTick(2), result.Tick)
	require.Equal(t, current.Entities, result.Entities)
}

func TestEncodeDeltaSnapshotForClient_RoundTrip(t *testing.T) {
	s := testSchema(t)
	baseline := Snapshot{Tick: 1, Entities: []EntitySnapshot{entity(1, 10, -5, 100)}}
	current := Snapshot{Tick: 2, Entities: []EntitySnapshot{entity(1, 11, -5, 100)}}

	out := make([]byte, 8192)
	n, err := EncodeDeltaSnapshotForClient(s, 2, 1, baseline, current, DefaultLimits(), out)
	require.NoError(t, err)

	result, err := ApplyDeltaSnapshot(s, baseline, out[:n], wire.DefaultLimits(), DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, current.Entities, result.Entities)
}

func TestEncodeDeltaSnapshotForClientSession_RoundTrip(t *testing.T) {
	s := testSchema(t)
	baseline := Snapshot{Tick: 5, Entities: []EntitySnapshot{entity(1, 10, -5, 100)}}
	current := Snapshot{Tick: 6, Entities: []EntitySnapshot{entity(1, 11, -5, 100)}}

	session := &SessionState{LastTick: 5}
	scratch := NewScratch()
	defer scratch.Release()

	out := make([]byte, 8192)
	n, err := EncodeDeltaSnapshotForClientSession(s, 6, 5, baseline, current, DefaultLimits(), scratch, session, out)
	require.NoError(t, err)
	require.Equal(t, SnapshotTick(6), session.LastTick)

	decoded, err := wire.DecodeSessionHeader(out[:n], 5)
	require.NoError(t, err)
	require.Equal(t, uint32(6), decoded.Tick)
	require.Equal(t, uint32(5), decoded.BaselineTick)
}

func TestEncodeDeltaSnapshot_ThresholdSuppressesMinorChange(t *testing.T) {
	s := testSchema(t)
	baseline := Snapshot{Tick: 1, Entities: []EntitySnapshot{entity(1, 10, -5, 100)}}
	current := Snapshot{Tick: 2, Entities: []EntitySnapshot{entity(1, 10, -5, 103)}} // hp delta 3 < threshold 5

	counts, err := diffCounts(s, baseline, current, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, 0, counts.Updates)

	out := make([]byte, 8192)
	n, err := EncodeDeltaSnapshot(s, 2, 1, baseline, current, DefaultLimits(), out)
	require.NoError(t, err)

	result, err := ApplyDeltaSnapshot(s, baseline, out[:n], wire.DefaultLimits(), DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, baseline.Entities, result.Entities, "sub-threshold change must not be forwarded")
}

func TestEncodeDeltaSnapshot_ThresholdForwardsLargeChange(t *testing.T) {
	s := testSchema(t)
	baseline := Snapshot{Tick: 1, Entities: []EntitySnapshot{entity(1, 10, -5, 100)}}
	current := Snapshot{Tick: 2, Entities: []EntitySnapshot{entity(1, 10, -5, 200)}} // hp delta 100 > threshold 5

	counts, err := diffCounts(s, baseline, current, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, 1, counts.Updates)

	out := make([]byte, 8192)
	n, err := EncodeDeltaSnapshot(s, 2, 1, baseline, current, DefaultLimits(), out)
	require.NoError(t, err)

	result, err := ApplyDeltaSnapshot(s, baseline, out[:n], wire.DefaultLimits(), DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, current.Entities, result.Entities)
}

func TestUpdateBodyMasked_RoundTrip(t *testing.T) {
	s := testSchema(t)
	baseline := Snapshot{Entities: []EntitySnapshot{entity(1, 1, 1, 1)}}
	current := Snapshot{Entities: []EntitySnapshot{entity(1, 2, 1, 1)}}

	scratch := NewScratch()
	defer scratch.Release()

	buf := make([]byte, 4096)
	w := bitstream.NewWriter(buf)
	require.NoError(t, encodeUpdateBodyMasked(s, baseline, current, 1, DefaultLimits(), scratch, w))
	n, err := w.Finish()
	require.NoError(t, err)

	updates, err := decodeUpdateSectionMasked(s, buf[:n], DefaultLimits())
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Equal(t, EntityID(1), updates[0].ID)
	require.Len(t, updates[0].Components, 1)
	require.Equal(t, UIntValue(2), updates[0].Components[0].Fields[0].Value)
}

func TestUpdateBodySparsePacked_RoundTrip(t *testing.T) {
	s := testSchema(t)
	baseline := Snapshot{Entities: []EntitySnapshot{entity(1, 1, 1, 1), entity(2, 1, 1, 1)}}
	current := Snapshot{Entities: []EntitySnapshot{entity(1, 2, 1, 1), entity(2, 1, 1, 999)}}

	scratch := NewScratch()
	defer scratch.Release()

	buf := make([]byte, 4096)
	w := bitstream.NewWriter(buf)
	require.NoError(t, encodeUpdateBodySparsePacked(s, baseline, current, 2, DefaultLimits(), scratch, w))
	n, err := w.Finish()
	require.NoError(t, err)

	updates, err := decodeUpdateSectionSparse(s, buf[:n], DefaultLimits(), true)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	require.Equal(t, EntityID(1), updates[0].ID)
	require.Equal(t, EntityID(2), updates[1].ID)
}

func TestSelectUpdateEncoding_PicksMaskedWhenNoOverlap(t *testing.T) {
	s := testSchema(t)
	baseline := Snapshot{Entities: []EntitySnapshot{entity(1, 1, 1, 1)}}
	current := Snapshot{Entities: []EntitySnapshot{entity(2, 1, 1, 1)}}

	scratch := NewScratch()
	defer scratch.Release()

	encoding, err := selectUpdateEncoding(s, baseline, current, DefaultLimits(), scratch)
	require.NoError(t, err)
	require.Equal(t, UpdateEncodingMasked, encoding)
}

func TestApplyDeltaSnapshot_RejectsDestroyOfUnknownEntity(t *testing.T) {
	baseline := Snapshot{Entities: []EntitySnapshot{entity(1, 1, 1, 1)}}

	err := applyUpdates(nil, nil)
	require.NoError(t, err)

	_, err = applyDestroys(baseline.Entities, []EntityID{2})
	var notFound *EntityNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestApplyCreates_RejectsDuplicateEntity(t *testing.T) {
	baseline := []EntitySnapshot{{ID: 1}}
	_, err := applyCreates(baseline, []EntitySnapshot{{ID: 1}})
	var exists *EntityAlreadyExistsError
	require.ErrorAs(t, err, &exists)
}

func TestDecodeDeltaPacket_RejectsNonDeltaFlags(t *testing.T) {
	s := testSchema(t)
	out := make([]byte, 4096)
	n, err := EncodeFullSnapshot(s, 1, nil, DefaultLimits(), out)
	require.NoError(t, err)

	packet, err := wire.DecodePacket(out[:n], wire.DefaultLimits())
	require.NoError(t, err)

	_, err = DecodeDeltaPacket(s, packet, DefaultLimits())
	var wireErr *WireError
	require.ErrorAs(t, err, &wireErr)
}

func TestApplyDeltaSnapshotFromPacket_RejectsBaselineTickMismatch(t *testing.T) {
	s := testSchema(t)
	baseline := Snapshot{Tick: 1, Entities: nil}
	current := Snapshot{Tick: 2, Entities: nil}

	out := make([]byte, 4096)
	n, err := EncodeDeltaSnapshot(s, 2, 1, baseline, current, DefaultLimits(), out)
	require.NoError(t, err)

	packet, err := wire.DecodePacket(out[:n], wire.DefaultLimits())
	require.NoError(t, err)

	wrongBaseline := Snapshot{Tick: 99, Entities: nil}
	_, err = ApplyDeltaSnapshotFromPacket(s, wrongBaseline, packet, DefaultLimits())
	var mismatch *BaselineTickMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestSaturatingMul(t *testing.T) {
	require.Equal(t, 12, saturatingMul(3, 4))
	require.Equal(t, 0, saturatingMul(0, 5))
	require.Greater(t, saturatingMul(1<<40, 1<<40), 0)
}
