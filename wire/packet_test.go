package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildPacket(t *testing.T, header PacketHeader, sections []WireSection) []byte {
	t.Helper()

	payload := make([]byte, 0, 64)
	for _, s := range sections {
		tagLen := make([]byte, 1+VarU32RawLen(uint32(len(s.Body)))) //nolint:gosec
		n, err := EncodeSectionHeader(s.Tag, len(s.Body), tagLen)
		require.NoError(t, err)
		payload = append(payload, tagLen[:n]...)
		payload = append(payload, s.Body...)
	}

	header.PayloadLen = uint32(len(payload)) //nolint:gosec
	buf := make([]byte, HeaderSize+len(payload))
	require.NoError(t, EncodeHeader(header, buf))
	copy(buf[HeaderSize:], payload)

	return buf
}

func TestDecodePacket_RoundTrip(t *testing.T) {
	header := DeltaSnapshotHeader(42, 5, 3, 0)
	sections := []WireSection{
		{Tag: SectionEntityDestroy, Body: []byte{0x01, 0x02}},
		{Tag: SectionUpdateMasked, Body: []byte{0xAA}},
	}
	buf := buildPacket(t, header, sections)

	packet, err := DecodePacket(buf, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, uint32(5), packet.Header.Tick)
	require.Equal(t, uint32(3), packet.Header.BaselineTick)
	require.Len(t, packet.Sections, 2)
	require.Equal(t, SectionEntityDestroy, packet.Sections[0].Tag)
	require.Equal(t, []byte{0x01, 0x02}, packet.Sections[0].Body)
}

func TestDecodePacket_PayloadLengthMismatch(t *testing.T) {
	header := FullSnapshotHeader(1, 1, 5)
	buf := make([]byte, HeaderSize+2) // only 2 bytes of payload, header claims 5
	require.NoError(t, EncodeHeader(header, buf))

	_, err := DecodePacket(buf, DefaultLimits())
	var mismatch *PayloadLengthMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestDecodePacket_BaselineTickMismatchForFull(t *testing.T) {
	header := PacketHeader{Version: Version, Flags: FullSnapshotFlags(), BaselineTick: 1}
	buf := make([]byte, HeaderSize)
	require.NoError(t, EncodeHeader(header, buf))

	_, err := DecodePacket(buf, DefaultLimits())
	var baselineErr *InvalidBaselineTickError
	require.ErrorAs(t, err, &baselineErr)
}

func TestDecodePacket_TooSmall(t *testing.T) {
	_, err := DecodePacket(make([]byte, 4), DefaultLimits())
	var tooSmall *PacketTooSmallError
	require.ErrorAs(t, err, &tooSmall)
}

func TestDecodeSections_UnknownTag(t *testing.T) {
	payload := []byte{0x63, 0x00} // tag 99, length 0
	_, err := DecodeSections(payload, DefaultLimits())
	var unknown *UnknownSectionTagError
	require.ErrorAs(t, err, &unknown)
}

func TestDecodeSections_ExceedsMaxSections(t *testing.T) {
	limits := Limits{MaxPacketBytes: 4096, MaxSections: 1, MaxSectionLen: 1024}
	payload := []byte{byte(SectionEntityDestroy), 0x00, byte(SectionEntityDestroy), 0x00}
	_, err := DecodeSections(payload, limits)
	var limitErr *LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	require.Equal(t, LimitSectionCount, limitErr.Kind)
}

func TestDecodeSections_Truncated(t *testing.T) {
	payload := []byte{byte(SectionEntityDestroy), 0x05, 0x01} // claims len 5, only 1 byte present
	_, err := DecodeSections(payload, DefaultLimits())
	var truncated *SectionTruncatedError
	require.ErrorAs(t, err, &truncated)
}

func TestVarU32Raw_RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 300, 1 << 20, 1 << 30}
	for _, v := range values {
		out := make([]byte, 5)
		n := writeVarU32Raw(v, out)
		got, newOffset, err := readVarU32Raw(out[:n], 0)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, n, newOffset)
	}
}

func TestSectionTag_ParseRejectsUnknown(t *testing.T) {
	_, ok := ParseSectionTag(0)
	require.False(t, ok)
	_, ok = ParseSectionTag(7)
	require.False(t, ok)
	tag, ok := ParseSectionTag(uint8(SectionSessionInit))
	require.True(t, ok)
	require.Equal(t, SectionSessionInit, tag)
}

func TestEncodeSectionHeader_OutputsTagAndLength(t *testing.T) {
	out := make([]byte, 8)
	n, err := EncodeSectionHeader(SectionEntityCreate, 300, out)
	require.NoError(t, err)
	require.Equal(t, byte(SectionEntityCreate), out[0])
	length, _, err := readVarU32Raw(out, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(300), length)
	require.Equal(t, 1+VarU32RawLen(300), n)
}
