package codec

import (
	"github.com/ticksync/sdec/bitstream"
	"github.com/ticksync/sdec/schema"
	"github.com/ticksync/sdec/wire"
)

// CompactHeaderMode identifies a negotiated compact-session-header
// encoding, carried as a single byte in the session-init section.
type CompactHeaderMode uint8

const (
	// CompactHeaderV1 is the only compact header mode defined so far.
	CompactHeaderV1 CompactHeaderMode = 1
)

func compactHeaderModeFromRaw(raw uint8) (CompactHeaderMode, bool) {
	if raw == uint8(CompactHeaderV1) {
		return CompactHeaderV1, true
	}

	return 0, false
}

// SessionState is the per-session state an encoder or decoder tracks
// once a session has been initialized: the agreed schema hash, an
// optional session id, the last tick seen (for compact-header delta
// resolution), and the negotiated compact header mode.
type SessionState struct {
	SchemaHash  uint64
	SessionID   uint64 // 0 means "no session id"
	LastTick    SnapshotTick
	CompactMode CompactHeaderMode
}

// EncodeSessionInitPacket encodes a session-init packet establishing
// sessionID and compactMode for s's schema.
func EncodeSessionInitPacket(s *schema.Schema, tick SnapshotTick, sessionID uint64, compactMode CompactHeaderMode, limits Limits, out []byte) (int, error) {
	if len(out) < wire.HeaderSize {
		return 0, &OutputTooSmallError{Needed: wire.HeaderSize, Available: len(out)}
	}

	offset := wire.HeaderSize
	written, err := writeSection(wire.SectionSessionInit, out[offset:], limits, func(w *bitstream.Writer) error {
		return encodeSessionInitBody(sessionID, compactMode, w)
	})
	if err != nil {
		return 0, err
	}
	offset += written

	payloadLen := offset - wire.HeaderSize
	header := wire.PacketHeader{
		Version:    wire.Version,
		Flags:      wire.SessionInitFlags(),
		SchemaHash: schema.Hash(s),
		Tick:       uint32(tick),
		PayloadLen: uint32(payloadLen), //nolint:gosec
	}
	if err := wire.EncodeHeader(header, out[:wire.HeaderSize]); err != nil {
		return 0, &OutputTooSmallError{Needed: wire.HeaderSize, Available: len(out)}
	}

	return offset, nil
}

func encodeSessionInitBody(sessionID uint64, compactMode CompactHeaderMode, w *bitstream.Writer) error {
	if err := w.AlignToByte(); err != nil {
		return &BitstreamError{Err: err}
	}
	if err := w.WriteU64Aligned(sessionID); err != nil {
		return &BitstreamError{Err: err}
	}
	if err := w.WriteU8Aligned(uint8(compactMode)); err != nil {
		return &BitstreamError{Err: err}
	}

	return w.AlignToByte()
}

// DecodeSessionInitPacket parses a decoded wire.WirePacket as a
// session-init packet and returns the resulting SessionState.
func DecodeSessionInitPacket(s *schema.Schema, packet *wire.WirePacket, limits Limits) (SessionState, error) {
	header := packet.Header
	if !header.Flags.IsSessionInit() {
		return SessionState{}, &UnexpectedSectionError{Section: "packet missing session-init flag"}
	}
	if header.Flags.IsFullSnapshot() || header.Flags.IsDeltaSnapshot() {
		return SessionState{}, &UnexpectedSectionError{Section: "session-init packet also carries a snapshot flag"}
	}
	if header.BaselineTick != 0 {
		return SessionState{}, &BaselineTickMismatchError{Expected: 0, Found: SnapshotTick(header.BaselineTick)}
	}

	expectedHash := schema.Hash(s)
	if header.SchemaHash != expectedHash {
		return SessionState{}, &SchemaMismatchError{Expected: expectedHash, Found: header.SchemaHash}
	}

	var initSection *wire.WireSection
	for i := range packet.Sections {
		section := &packet.Sections[i]
		switch section.Tag {
		case wire.SectionSessionInit:
			if initSection != nil {
				return SessionState{}, &DuplicateSectionError{Section: "session_init"}
			}
			initSection = section
		default:
			return SessionState{}, &UnexpectedSectionError{Section: sectionName(section.Tag)}
		}
	}
	if initSection == nil {
		return SessionState{}, &UnexpectedSectionError{Section: "missing session_init"}
	}

	sessionID, compactMode, err := decodeSessionInitBody(initSection.Body, limits)
	if err != nil {
		return SessionState{}, err
	}

	return SessionState{
		SchemaHash:  header.SchemaHash,
		SessionID:   sessionID,
		LastTick:    SnapshotTick(header.Tick),
		CompactMode: compactMode,
	}, nil
}

func decodeSessionInitBody(body []byte, limits Limits) (uint64, CompactHeaderMode, error) {
	if len(body) > limits.MaxSectionBytes {
		return 0, 0, &LimitExceededError{Kind: LimitSectionBytes, Limit: limits.MaxSectionBytes, Actual: len(body)}
	}

	r := bitstream.NewReader(body)
	if err := r.AlignToByte(); err != nil {
		return 0, 0, &BitstreamError{Err: err}
	}
	sessionID, err := r.ReadU64Aligned()
	if err != nil {
		return 0, 0, &BitstreamError{Err: err}
	}
	rawMode, err := r.ReadU8Aligned()
	if err != nil {
		return 0, 0, &BitstreamError{Err: err}
	}
	if err := r.AlignToByte(); err != nil {
		return 0, 0, &BitstreamError{Err: err}
	}
	if remaining := r.BitsRemaining(); remaining != 0 {
		return 0, 0, &TrailingSectionDataError{Section: "session_init", RemainingBits: remaining}
	}

	mode, ok := compactHeaderModeFromRaw(rawMode)
	if !ok {
		return 0, 0, &UnsupportedCompactModeError{Mode: rawMode}
	}

	return sessionID, mode, nil
}

// DecodeSessionPacket decodes a compact-header packet against session,
// advancing session.LastTick on success.
func DecodeSessionPacket(s *schema.Schema, session *SessionState, data []byte, wireLimits wire.Limits) (*wire.WirePacket, error) {
	expectedHash := schema.Hash(s)
	if session.SchemaHash != expectedHash {
		return nil, &SchemaMismatchError{Expected: expectedHash, Found: session.SchemaHash}
	}

	header, err := wire.DecodeSessionHeader(data, uint32(session.LastTick))
	if err != nil {
		return nil, &WireError{Err: err}
	}
	if header.Tick <= uint32(session.LastTick) {
		return nil, &SessionOutOfOrderError{Previous: session.LastTick, Current: SnapshotTick(header.Tick)}
	}

	payloadStart := header.HeaderLen
	payloadEnd := payloadStart + int(header.PayloadLen)
	if payloadEnd > len(data) {
		return nil, &WireError{Err: &wire.PayloadLengthMismatchError{HeaderLen: header.PayloadLen, ActualLen: len(data) - payloadStart}}
	}
	payload := data[payloadStart:payloadEnd]

	sections, err := wire.DecodeSections(payload, wireLimits)
	if err != nil {
		return nil, &WireError{Err: err}
	}

	session.LastTick = SnapshotTick(header.Tick)

	flags := wire.DeltaSnapshotFlags()
	if header.Flags.IsFullSnapshot() {
		flags = wire.FullSnapshotFlags()
	}

	return &wire.WirePacket{
		Header: wire.PacketHeader{
			Version:      wire.Version,
			Flags:        flags,
			SchemaHash:   session.SchemaHash,
			Tick:         header.Tick,
			BaselineTick: header.BaselineTick,
			PayloadLen:   header.PayloadLen,
		},
		Sections: sections,
	}, nil
}
