package bitstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriter_WriteBitsThenAlignedByte(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)

	require.NoError(t, w.WriteBits(0b1010, 4))
	require.NoError(t, w.AlignToByte())
	require.NoError(t, w.WriteU8Aligned(0xAB))

	n, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{0b10100000, 0xAB}, w.Bytes())
}

func TestWriter_WriteVarU32(t *testing.T) {
	tests := []struct {
		value uint32
		want  []byte
	}{
		{0, []byte{0x00}},
		{300, []byte{0xAC, 0x02}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
	}

	for _, tt := range tests {
		buf := make([]byte, 5)
		w := NewWriter(buf)
		require.NoError(t, w.WriteVarU32(tt.value))
		n, err := w.Finish()
		require.NoError(t, err)
		require.Equal(t, tt.want, w.Bytes()[:n])
	}
}

func TestWriter_WriteVarS32(t *testing.T) {
	buf := make([]byte, 5)
	w := NewWriter(buf)
	require.NoError(t, w.WriteVarS32(-1))
	n, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, w.Bytes()[:n])
}

func TestWriter_BoundedOverflow(t *testing.T) {
	buf := make([]byte, 1)
	w := NewWriter(buf)
	require.NoError(t, w.WriteU8Aligned(1))
	err := w.WriteU8Aligned(2)
	require.Error(t, err)
	var overflow *WriteOverflowError
	require.ErrorAs(t, err, &overflow)
}

func TestWriter_InvalidBitCount(t *testing.T) {
	w := NewWriter(make([]byte, 8))
	err := w.WriteBits(1, 65)
	var invalid *InvalidBitCountError
	require.ErrorAs(t, err, &invalid)
}

func TestWriter_ValueOutOfRange(t *testing.T) {
	w := NewWriter(make([]byte, 8))
	err := w.WriteBits(16, 4)
	var outOfRange *ValueOutOfRangeError
	require.ErrorAs(t, err, &outOfRange)
}

func TestWriter_GrowableRoundTrip(t *testing.T) {
	w := NewGrowableWriter()
	defer w.Release()

	require.NoError(t, w.WriteBits(0b11, 2))
	require.NoError(t, w.WriteBits(0b101, 3))
	require.NoError(t, w.AlignToByte())
	require.NoError(t, w.WriteVarU32(1000))

	n, err := w.Finish()
	require.NoError(t, err)
	require.Greater(t, n, 0)

	r := NewReader(w.Bytes())
	v, err := r.ReadBits(5)
	require.NoError(t, err)
	require.Equal(t, uint64(0b11101), v)
	require.NoError(t, r.AlignToByte())
	u, err := r.ReadVarU32()
	require.NoError(t, err)
	require.Equal(t, uint32(1000), u)
}

func TestWriter_WriteBitsAcrossBoundary(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	require.NoError(t, w.WriteBits(1, 3))
	require.NoError(t, w.WriteBits(0xFFFFFFFFFFFFFFFF, 64))
	n, err := w.Finish()
	require.NoError(t, err)

	r := NewReader(w.Bytes()[:n])
	v, err := r.ReadBits(3)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)
	v2, err := r.ReadBits(64)
	require.NoError(t, err)
	require.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), v2)
}
