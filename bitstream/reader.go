package bitstream

import "github.com/ticksync/sdec/endian"

// Reader unpacks bits most-significant-bit-first from a byte slice.
type Reader struct {
	data   []byte
	bitPos int // absolute bit offset from the start of data
	engine endian.EndianEngine
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, engine: endian.GetLittleEndianEngine()}
}

// BitsRemaining returns the number of unread bits.
func (r *Reader) BitsRemaining() int {
	total := len(r.data) * 8
	return total - r.bitPos
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (bool, error) {
	v, err := r.ReadBits(1)
	if err != nil {
		return false, err
	}

	return v != 0, nil
}

// ReadBits reads numBits bits, most-significant bit first, and returns
// them right-aligned in the returned uint64. numBits must be in [0, 64].
func (r *Reader) ReadBits(numBits int) (uint64, error) {
	if numBits == 0 {
		return 0, nil
	}
	if numBits < 0 || numBits > 64 {
		return 0, &InvalidBitCountError{Bits: numBits, MaxBits: 64}
	}
	if numBits > r.BitsRemaining() {
		return 0, &UnexpectedEOFError{Requested: numBits, Available: r.BitsRemaining()}
	}

	var value uint64
	remaining := numBits
	for remaining > 0 {
		byteIdx := r.bitPos / 8
		bitIdx := r.bitPos % 8
		avail := 8 - bitIdx
		take := remaining
		if take > avail {
			take = avail
		}

		shift := avail - take
		chunk := (r.data[byteIdx] >> uint(shift)) & byte(maskBits(take))
		value = (value << uint(take)) | uint64(chunk)
		r.bitPos += take
		remaining -= take
	}

	return value, nil
}

// AlignToByte advances the read position to the next byte boundary,
// discarding any padding bits. No-op if already aligned.
func (r *Reader) AlignToByte() error {
	if r.bitPos%8 == 0 {
		return nil
	}
	pad := 8 - r.bitPos%8
	_, err := r.ReadBits(pad)

	return err
}

func (r *Reader) ensureAligned() error {
	if r.bitPos%8 != 0 {
		return &MisalignedAccessError{BitPosition: r.bitPos}
	}

	return nil
}

// ReadU8Aligned reads one byte-aligned uint8.
func (r *Reader) ReadU8Aligned() (uint8, error) {
	if err := r.ensureAligned(); err != nil {
		return 0, err
	}
	b, err := r.readRawAligned(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// ReadU16Aligned reads one byte-aligned little-endian uint16.
func (r *Reader) ReadU16Aligned() (uint16, error) {
	if err := r.ensureAligned(); err != nil {
		return 0, err
	}
	b, err := r.readRawAligned(2)
	if err != nil {
		return 0, err
	}

	return r.engine.Uint16(b), nil
}

// ReadU32Aligned reads one byte-aligned little-endian uint32.
func (r *Reader) ReadU32Aligned() (uint32, error) {
	if err := r.ensureAligned(); err != nil {
		return 0, err
	}
	b, err := r.readRawAligned(4)
	if err != nil {
		return 0, err
	}

	return r.engine.Uint32(b), nil
}

// ReadU64Aligned reads one byte-aligned little-endian uint64.
func (r *Reader) ReadU64Aligned() (uint64, error) {
	if err := r.ensureAligned(); err != nil {
		return 0, err
	}
	b, err := r.readRawAligned(8)
	if err != nil {
		return 0, err
	}

	return r.engine.Uint64(b), nil
}

func (r *Reader) readRawAligned(n int) ([]byte, error) {
	if r.BitsRemaining() < n*8 {
		return nil, &UnexpectedEOFError{Requested: n * 8, Available: r.BitsRemaining()}
	}
	byteIdx := r.bitPos / 8
	b := r.data[byteIdx : byteIdx+n]
	r.bitPos += n * 8

	return b, nil
}

// ReadVarU32 reads a LEB128 varint. The reader must be byte-aligned.
// Returns ErrInvalidVarint if the 5th byte still has its continuation
// bit set.
func (r *Reader) ReadVarU32() (uint32, error) {
	if err := r.ensureAligned(); err != nil {
		return 0, err
	}

	var value uint64
	for i := 0; i < maxVarintBytes; i++ {
		b, err := r.ReadU8Aligned()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7F) << uint(7*i)
		if b&0x80 == 0 {
			return uint32(value), nil
		}
	}

	return 0, ErrInvalidVarint
}

// ReadVarS32 reads a zigzag-encoded varint and returns the decoded int32.
func (r *Reader) ReadVarS32() (int32, error) {
	u, err := r.ReadVarU32()
	if err != nil {
		return 0, err
	}

	return int32(u>>1) ^ -int32(u&1), nil
}
