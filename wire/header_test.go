package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeHeader_FullSnapshot(t *testing.T) {
	h := FullSnapshotHeader(0x1122334455667788, 7, 9)
	buf := make([]byte, HeaderSize)
	require.NoError(t, EncodeHeader(h, buf))

	require.Equal(t, []byte{'S', 'D', 'E', 'C'}, buf[0:4])

	decoded, err := decodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestPacketFlags_IsValid(t *testing.T) {
	require.True(t, FullSnapshotFlags().IsValid())
	require.True(t, DeltaSnapshotFlags().IsValid())
	require.True(t, SessionInitFlags().IsValid())

	require.False(t, PacketFlags(0).IsValid())                                    // neither bit
	require.False(t, (FlagFullSnapshot | FlagDeltaSnapshot).IsValid())            // both bits
	require.False(t, (FlagSessionInit | FlagFullSnapshot).IsValid())              // session-init with full
	require.False(t, PacketFlags(1<<3).IsValid())                                 // reserved bit
}

func TestDecodeHeader_InvalidMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	_, err := decodeHeader(buf)
	var magicErr *InvalidMagicError
	require.ErrorAs(t, err, &magicErr)
}
