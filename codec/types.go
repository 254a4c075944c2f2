// Package codec implements the tick-based delta replication codec: full
// snapshot encoding, entity/component delta diffing, baseline tracking,
// and the session framing layered on top of the wire and schema packages.
package codec

// EntityID identifies an entity within a simulation tick. Ids are assigned
// by the caller; the codec does not reserve or reject any value, zero included.
type EntityID uint32

// SnapshotTick identifies a simulation tick. Tick 0 is the first tick a
// session may encode a full snapshot for.
type SnapshotTick uint32
