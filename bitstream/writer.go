// Package bitstream provides MSB-first bit-level packing on top of a plain
// byte buffer. It carries no knowledge of schemas, entities, or wire
// framing — those concerns are built on top of these primitives by the
// wire and codec packages.
package bitstream

import (
	"github.com/ticksync/sdec/endian"
	"github.com/ticksync/sdec/internal/pool"
)

const maxVarintBytes = 5

// Writer packs bits most-significant-bit-first into an underlying byte
// buffer. A Writer operates in one of two modes:
//
//   - bounded: backed by a caller-supplied fixed-size slice, returning
//     WriteOverflowError once that slice is exhausted.
//   - growable: backed by a pooled, amortized-growth buffer, for callers
//     that do not know the final encoded size up front. The codec package's
//     encoders use bounded writers.
//
// Bits accumulate at the low end of a 64-bit buffer and are flushed to the
// destination in whole bytes once at least a byte's worth has built up,
// amortizing the per-byte write cost across arbitrary bit widths (1-64).
type Writer struct {
	dst    []byte // bounded destination, nil when growable
	pooled *pool.ByteBuffer
	engine endian.EndianEngine

	pos      int // bytes already written into dst/pooled
	bitBuf   uint64
	bitCount int // valid bits held in bitBuf, always < 8 between calls
}

// NewWriter returns a bounded Writer that packs bits into dst.
func NewWriter(dst []byte) *Writer {
	return &Writer{dst: dst, engine: endian.GetLittleEndianEngine()}
}

// NewGrowableWriter returns a Writer backed by a pooled, growable buffer.
// Callers must call Release after Finish to return the buffer to the pool.
func NewGrowableWriter() *Writer {
	return &Writer{pooled: pool.GetBlobBuffer(), engine: endian.GetLittleEndianEngine()}
}

// Release returns a growable Writer's pooled buffer. No-op for bounded writers.
func (w *Writer) Release() {
	if w.pooled != nil {
		pool.PutBlobBuffer(w.pooled)
		w.pooled = nil
	}
}

func maskBits(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << uint(n)) - 1
}

func (w *Writer) emit(b byte) error {
	if w.pooled != nil {
		w.pooled.Grow(1)
		w.pooled.MustWrite([]byte{b})
		w.pos++

		return nil
	}

	if w.pos >= len(w.dst) {
		return &WriteOverflowError{Attempted: 1, Available: 0}
	}
	w.dst[w.pos] = b
	w.pos++

	return nil
}

func (w *Writer) remaining() int {
	if w.pooled != nil {
		return -1 // unbounded
	}

	return len(w.dst) - w.pos
}

// WriteBit writes a single bit.
func (w *Writer) WriteBit(bit bool) error {
	var v uint64
	if bit {
		v = 1
	}

	return w.WriteBits(v, 1)
}

// WriteBits writes the low numBits bits of value, most-significant bit
// first. numBits must be in [0, 64]; value must fit in numBits bits.
func (w *Writer) WriteBits(value uint64, numBits int) error {
	if numBits == 0 {
		return nil
	}
	if numBits < 0 || numBits > 64 {
		return &InvalidBitCountError{Bits: numBits, MaxBits: 64}
	}
	if numBits < 64 && value > maskBits(numBits) {
		return &ValueOutOfRangeError{Value: value, Bits: numBits}
	}

	remaining := numBits
	for remaining > 0 {
		avail := 64 - w.bitCount
		take := remaining
		if take > avail {
			take = avail
		}

		shift := remaining - take
		chunk := (value >> uint(shift)) & maskBits(take)
		w.bitBuf = (w.bitBuf << uint(take)) | chunk
		w.bitCount += take
		remaining -= take

		if w.bitCount >= 8 {
			if err := w.flushFullBytes(); err != nil {
				return err
			}
		}
	}

	return nil
}

// flushFullBytes emits every complete byte currently held in bitBuf,
// leaving fewer than 8 bits buffered.
func (w *Writer) flushFullBytes() error {
	numBytes := w.bitCount / 8
	for i := 0; i < numBytes; i++ {
		shift := w.bitCount - 8*(i+1)
		b := byte((w.bitBuf >> uint(shift)) & 0xFF)
		if err := w.emit(b); err != nil {
			return err
		}
	}
	w.bitCount -= numBytes * 8
	w.bitBuf &= maskBits(w.bitCount)

	return nil
}

// AlignToByte pads the current byte with zero bits up to the next byte
// boundary. No-op if already aligned.
func (w *Writer) AlignToByte() error {
	if w.bitCount == 0 {
		return nil
	}

	return w.WriteBits(0, 8-w.bitCount)
}

func (w *Writer) ensureAligned() error {
	if w.bitCount != 0 {
		return &MisalignedAccessError{BitPosition: w.pos*8 + w.bitCount}
	}

	return nil
}

// WriteU8Aligned writes a byte-aligned uint8. The writer must already be
// byte-aligned.
func (w *Writer) WriteU8Aligned(v uint8) error {
	if err := w.ensureAligned(); err != nil {
		return err
	}

	return w.emit(v)
}

// WriteU16Aligned writes a byte-aligned little-endian uint16.
func (w *Writer) WriteU16Aligned(v uint16) error {
	if err := w.ensureAligned(); err != nil {
		return err
	}
	var buf [2]byte
	w.engine.PutUint16(buf[:], v)

	return w.writeRawAligned(buf[:])
}

// WriteU32Aligned writes a byte-aligned little-endian uint32.
func (w *Writer) WriteU32Aligned(v uint32) error {
	if err := w.ensureAligned(); err != nil {
		return err
	}
	var buf [4]byte
	w.engine.PutUint32(buf[:], v)

	return w.writeRawAligned(buf[:])
}

// WriteU64Aligned writes a byte-aligned little-endian uint64.
func (w *Writer) WriteU64Aligned(v uint64) error {
	if err := w.ensureAligned(); err != nil {
		return err
	}
	var buf [8]byte
	w.engine.PutUint64(buf[:], v)

	return w.writeRawAligned(buf[:])
}

func (w *Writer) writeRawAligned(b []byte) error {
	for _, byt := range b {
		if err := w.emit(byt); err != nil {
			return err
		}
	}

	return nil
}

// WriteVarU32 writes v as a LEB128 varint (1-5 bytes, continuation bit is
// the MSB of each byte). The writer must be byte-aligned.
func (w *Writer) WriteVarU32(v uint32) error {
	if err := w.ensureAligned(); err != nil {
		return err
	}

	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		if err := w.emit(b); err != nil {
			return err
		}
		if v == 0 {
			break
		}
	}

	return nil
}

// WriteVarS32 zigzag-encodes v and writes it as a varint.
func (w *Writer) WriteVarS32(v int32) error {
	u := (uint32(v) << 1) ^ uint32(v>>31)

	return w.WriteVarU32(u)
}

// VarU32Len returns the number of bytes WriteVarU32 would emit for v.
func VarU32Len(v uint32) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	default:
		return 5
	}
}

// Finish aligns to a byte boundary and returns the number of bytes written.
func (w *Writer) Finish() (int, error) {
	if err := w.AlignToByte(); err != nil {
		return 0, err
	}

	return w.pos, nil
}

// Bytes returns the bytes written so far. For a growable writer this is a
// view into the pooled buffer; callers must copy before calling Release.
func (w *Writer) Bytes() []byte {
	if w.pooled != nil {
		return w.pooled.Bytes()
	}

	return w.dst[:w.pos]
}

// Len returns the number of whole bytes written so far (excludes any
// partially buffered bits not yet flushed).
func (w *Writer) Len() int {
	return w.pos
}
