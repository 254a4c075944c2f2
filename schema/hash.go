package schema

import (
	"encoding/binary"

	"github.com/ticksync/sdec/internal/hash"
	"github.com/ticksync/sdec/internal/pool"
)

// codec/change-policy tag bytes for the canonical hash byte stream. These
// are an internal fingerprint implementation detail, not a wire format —
// unlike the packet/section tags in the wire package, nothing outside
// this function interprets them.
const (
	codecTagBool       = 1
	codecTagUInt       = 2
	codecTagSInt       = 3
	codecTagVarUInt    = 4
	codecTagVarSInt    = 5
	codecTagFixedPoint = 6

	policyTagAlways    = 0
	policyTagThreshold = 1
)

// Hash returns a deterministic 64-bit fingerprint of s's structure:
// component and field ids, codec kinds and parameters, and change-policy
// kinds and parameters. Two schemas with identical structure but
// different in-memory field ordering are considered different unless
// Components/Fields were built in the same order — ordering is
// significant because it is significant on the wire.
//
// This does not provide cryptographic integrity; it exists purely to let
// two peers detect a schema mismatch cheaply before exchanging packets.
func Hash(s *Schema) uint64 {
	buf := pool.GetBlobBuffer()
	defer pool.PutBlobBuffer(buf)

	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(s.Components))) //nolint:gosec
	buf.MustWrite(scratch[:4])

	for _, c := range s.Components {
		binary.LittleEndian.PutUint16(scratch[:2], c.ID.Raw())
		buf.MustWrite(scratch[:2])

		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(c.Fields))) //nolint:gosec
		buf.MustWrite(scratch[:4])

		for _, f := range c.Fields {
			binary.LittleEndian.PutUint16(scratch[:2], f.ID.Raw())
			buf.MustWrite(scratch[:2])

			writeCodecTag(buf, f.Codec, &scratch)
			writePolicyTag(buf, f.Policy, &scratch)
		}
	}

	return hash.Bytes(buf.Bytes())
}

func writeCodecTag(buf *pool.ByteBuffer, codec FieldCodec, scratch *[8]byte) {
	switch codec.Kind {
	case KindBool:
		buf.MustWrite([]byte{codecTagBool})
	case KindUInt:
		buf.MustWrite([]byte{codecTagUInt, codec.Bits})
	case KindSInt:
		buf.MustWrite([]byte{codecTagSInt, codec.Bits})
	case KindVarUInt:
		buf.MustWrite([]byte{codecTagVarUInt})
	case KindVarSInt:
		buf.MustWrite([]byte{codecTagVarSInt})
	case KindFixedPoint:
		buf.MustWrite([]byte{codecTagFixedPoint})
		binary.LittleEndian.PutUint64(scratch[:8], uint64(codec.FixedPoint.MinQ))
		buf.MustWrite(scratch[:8])
		binary.LittleEndian.PutUint64(scratch[:8], uint64(codec.FixedPoint.MaxQ))
		buf.MustWrite(scratch[:8])
		binary.LittleEndian.PutUint32(scratch[:4], codec.FixedPoint.Scale)
		buf.MustWrite(scratch[:4])
	}
}

func writePolicyTag(buf *pool.ByteBuffer, policy ChangePolicy, scratch *[8]byte) {
	switch policy.Kind {
	case PolicyAlways:
		buf.MustWrite([]byte{policyTagAlways})
	case PolicyThreshold:
		buf.MustWrite([]byte{policyTagThreshold})
		binary.LittleEndian.PutUint32(scratch[:4], policy.ThresholdQ)
		buf.MustWrite(scratch[:4])
	}
}
