// Package sdec provides a tick-based delta replication codec for realtime
// multiplayer and ECS simulations.
//
// sdec is built around a registered component/field schema, a compact wire
// framing (28-byte packet header or a per-session compact header), and two
// payload shapes: a full snapshot (every entity, every field) and a delta
// snapshot (only what changed since an acknowledged baseline tick). Servers
// keep a short ring of recent snapshots in a BaselineStore so they can diff
// against whatever tick a given client last acknowledged.
//
// # Basic Usage
//
// Defining a schema and encoding a full snapshot:
//
//	import "github.com/ticksync/sdec/schema"
//	import "github.com/ticksync/sdec/codec"
//
//	s, _ := schema.New([]schema.ComponentDef{
//	    schema.NewComponentDef(1,
//	        schema.NewFieldDef(1, schema.UIntCodec(16)),
//	        schema.NewFieldDef(2, schema.SIntCodec(16)),
//	    ),
//	})
//
//	endpoint, _ := sdec.NewEndpoint(s)
//	out := make([]byte, 4096)
//	n, _ := endpoint.EncodeFullSnapshot(1, entities, out)
//
// Encoding a delta against a baseline kept in the endpoint's BaselineStore,
// then applying it on the receiving side:
//
//	endpoint.RememberBaseline(1, snapshotAtTick1)
//	n, _ = endpoint.EncodeDeltaSnapshot(2, 1, snapshotAtTick1, snapshotAtTick2, out)
//	applied, _ := endpoint.ApplyDeltaSnapshot(snapshotAtTick1, out[:n])
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the codec and
// schema packages, simplifying the most common use cases. For advanced usage
// — custom scratch reuse, per-client forced-sparse encoding, session
// streams with the compact header — use the codec package directly.
package sdec

import (
	"github.com/ticksync/sdec/codec"
	"github.com/ticksync/sdec/compress"
	"github.com/ticksync/sdec/format"
	"github.com/ticksync/sdec/internal/options"
	"github.com/ticksync/sdec/schema"
	"github.com/ticksync/sdec/wire"
)

// Endpoint bundles a registered schema, its codec limits, and a baseline
// ring buffer into the single object most callers need: one per schema
// version a server or client is speaking.
type Endpoint struct {
	schema     *schema.Schema
	registry   *codec.SchemaRegistry
	limits     codec.Limits
	wire       wire.Limits
	baseline   *codec.BaselineStore[codec.Snapshot]
	compressor compress.Codec
}

// EndpointOption configures an Endpoint at construction time.
type EndpointOption = options.Option[*endpointConfig]

type endpointConfig struct {
	limits          codec.Limits
	wireLimits      wire.Limits
	baselineHistory int
	compression     format.CompressionType
}

// WithLimits overrides the codec.Limits an Endpoint enforces. Defaults to
// codec.DefaultLimits.
func WithLimits(limits codec.Limits) EndpointOption {
	return options.NoError(func(c *endpointConfig) { c.limits = limits })
}

// WithWireLimits overrides the wire.Limits an Endpoint enforces when
// decoding packet headers and sections. Defaults to wire.DefaultLimits.
func WithWireLimits(limits wire.Limits) EndpointOption {
	return options.NoError(func(c *endpointConfig) { c.wireLimits = limits })
}

// WithBaselineHistory sets how many recent snapshots the Endpoint's
// BaselineStore retains. Defaults to 8.
func WithBaselineHistory(n int) EndpointOption {
	return options.NoError(func(c *endpointConfig) { c.baselineHistory = n })
}

// WithCompression enables payload compression for full snapshots encoded
// via EncodeFullSnapshotCompressed. Full snapshots carry every entity and
// every field, so they compress far better than delta snapshots, which are
// already sparse; compression is not offered for delta payloads. Defaults
// to format.CompressionNone.
func WithCompression(kind format.CompressionType) EndpointOption {
	return options.NoError(func(c *endpointConfig) { c.compression = kind })
}

// NewEndpoint creates an Endpoint for the given schema with the supplied
// options. It validates s and returns an error if the schema is malformed
// (duplicate IDs, invalid field codec parameters).
func NewEndpoint(s *schema.Schema, opts ...EndpointOption) (*Endpoint, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	cfg := &endpointConfig{
		limits:          codec.DefaultLimits(),
		wireLimits:      wire.DefaultLimits(),
		baselineHistory: 8,
		compression:     format.CompressionNone,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	registry := codec.NewSchemaRegistry()
	if _, err := registry.Register(s); err != nil {
		return nil, err
	}

	compressor, err := compress.CreateCodec(cfg.compression, "full snapshot")
	if err != nil {
		return nil, err
	}

	return &Endpoint{
		schema:     s,
		registry:   registry,
		limits:     cfg.limits,
		wire:       cfg.wireLimits,
		baseline:   codec.NewBaselineStore[codec.Snapshot](cfg.baselineHistory),
		compressor: compressor,
	}, nil
}

// Schema returns the schema this Endpoint was constructed with.
func (e *Endpoint) Schema() *schema.Schema { return e.schema }

// SchemaHash returns the registered fingerprint of this Endpoint's schema.
func (e *Endpoint) SchemaHash() uint64 { return schema.Hash(e.schema) }

// RememberBaseline inserts snap into the Endpoint's BaselineStore under
// tick, so a later EncodeDeltaSnapshot call can diff against it once a
// client acknowledges that tick.
func (e *Endpoint) RememberBaseline(tick codec.SnapshotTick, snap codec.Snapshot) error {
	return e.baseline.Insert(tick, snap)
}

// BaselineAtOrBefore returns the newest remembered snapshot at or before
// ackTick, for selecting which baseline to diff a delta against.
func (e *Endpoint) BaselineAtOrBefore(ackTick codec.SnapshotTick) (codec.SnapshotTick, codec.Snapshot, bool) {
	return e.baseline.LatestAtOrBefore(ackTick)
}

// EncodeFullSnapshot encodes every entity in entities as a full snapshot
// for tick into out, returning the number of bytes written.
func (e *Endpoint) EncodeFullSnapshot(tick codec.SnapshotTick, entities []codec.EntitySnapshot, out []byte) (int, error) {
	return codec.EncodeFullSnapshot(e.schema, tick, entities, e.limits, out)
}

// EncodeDeltaSnapshot encodes the changes between baseline and current as
// a delta snapshot for tick, auto-selecting the cheaper of masked or
// sparse update encoding per section.
func (e *Endpoint) EncodeDeltaSnapshot(tick, baselineTick codec.SnapshotTick, baseline, current codec.Snapshot, out []byte) (int, error) {
	return codec.EncodeDeltaSnapshot(e.schema, tick, baselineTick, baseline, current, e.limits, out)
}

// EncodeDeltaSnapshotForClient encodes a delta snapshot forced to sparse
// update encoding, the shape that tends to win for a single client's
// interest-filtered view of a baseline.
func (e *Endpoint) EncodeDeltaSnapshotForClient(tick, baselineTick codec.SnapshotTick, baseline, current codec.Snapshot, out []byte) (int, error) {
	return codec.EncodeDeltaSnapshotForClient(e.schema, tick, baselineTick, baseline, current, e.limits, out)
}

// ApplyDeltaSnapshot decodes a delta snapshot packet produced by
// EncodeDeltaSnapshot/EncodeDeltaSnapshotForClient and applies it to
// baseline, returning the resulting snapshot.
func (e *Endpoint) ApplyDeltaSnapshot(baseline codec.Snapshot, data []byte) (codec.Snapshot, error) {
	return codec.ApplyDeltaSnapshot(e.schema, baseline, data, e.wire, e.limits)
}

// DecodeFullSnapshot decodes a full snapshot packet produced by
// EncodeFullSnapshot.
func (e *Endpoint) DecodeFullSnapshot(data []byte) (codec.Snapshot, error) {
	return codec.DecodeFullSnapshot(e.schema, data, e.wire, e.limits)
}

// EncodeFullSnapshotCompressed encodes entities as a full snapshot for
// tick and compresses the result using the codec selected by
// WithCompression (format.CompressionNone by default, a no-op).
func (e *Endpoint) EncodeFullSnapshotCompressed(tick codec.SnapshotTick, entities []codec.EntitySnapshot) ([]byte, error) {
	scratch := make([]byte, e.wire.MaxPacketBytes)
	n, err := e.EncodeFullSnapshot(tick, entities, scratch)
	if err != nil {
		return nil, err
	}

	return e.compressor.Compress(scratch[:n])
}

// DecodeFullSnapshotCompressed decompresses data with the codec selected
// by WithCompression and decodes the resulting full snapshot packet.
func (e *Endpoint) DecodeFullSnapshotCompressed(data []byte) (codec.Snapshot, error) {
	raw, err := e.compressor.Decompress(data)
	if err != nil {
		return codec.Snapshot{}, err
	}

	return e.DecodeFullSnapshot(raw)
}

// NewSession starts a per-client compact-header session rooted at tick,
// for use with EncodeDeltaSnapshotForClientSession on the sending side.
func (e *Endpoint) NewSession(tick codec.SnapshotTick) *codec.SessionState {
	return &codec.SessionState{SchemaHash: e.SchemaHash(), LastTick: tick}
}

// EncodeSessionInitPacket encodes the initial handshake packet a session
// stream starts with, carrying the chosen compact-header mode and a
// server-assigned session ID.
func (e *Endpoint) EncodeSessionInitPacket(tick codec.SnapshotTick, sessionID uint64, mode codec.CompactHeaderMode, out []byte) (int, error) {
	return codec.EncodeSessionInitPacket(e.schema, tick, sessionID, mode, e.limits, out)
}
