// Package steering implements the per-STA client-steering state machine
// shared by every BSS on a multi-AP wireless deployment: the wire codec for
// the inter-AP flood protocol, the client registry, the timer adapter, the
// FSM itself, and the BSS coordinator that ties them together.
package steering

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// EtherType is the chosen-at-random, unassigned EtherType carrying steering
// control frames over the bridge interface.
const EtherType = 0x8267

const (
	// Magic is the fixed first byte of every header; packets with any other
	// value are dropped as foreign traffic sharing the EtherType.
	Magic uint8 = 0x30

	// WireVersion is the only wire format this implementation understands.
	// A new meaning for an existing TLV type requires a bump; a new TLV
	// type does not (unknown types are skipped by length, never rejected).
	WireVersion uint8 = 0x01
)

// MaxScore is the sentinel 16-bit score meaning "this AP has lost sight of
// the STA". Smaller scores are better (score is |RSSI|).
const MaxScore uint16 = 0xFFFF

// TLV type tags. Values 3 and 4 are reserved: a decoder must skip them by
// declared length, never treat them as an error.
const (
	tlvScore        uint8 = 0
	tlvCloseClient  uint8 = 1
	tlvClosedClient uint8 = 2
)

const (
	headerLen      = 6 // magic(1) + version(1) + packet_len(2) + seq(2)
	tlvHeaderLen   = 2 // type(1) + length(1)
	macLen         = 6
	scoreValueLen  = macLen + macLen + 2 + 4
	closeValueLen  = macLen + macLen + macLen + 1
	closedValueLen = macLen + macLen
)

// Sentinel errors for the wire codec. Every one means "drop silently, log
// at debug" — none of these are surfaced as FSM-visible failures.
var (
	ErrShortHeader    = errors.New("steering: frame shorter than header")
	ErrBadMagic       = errors.New("steering: bad magic byte")
	ErrBadVersion     = errors.New("steering: unsupported wire version")
	ErrShortPacket    = errors.New("steering: declared packet_len exceeds received bytes")
	ErrShortTLVHeader = errors.New("steering: truncated TLV header")
	ErrShortTLVValue  = errors.New("steering: TLV value runs past packet_len")
	ErrShortScore     = errors.New("steering: truncated SCORE value")
	ErrShortClose     = errors.New("steering: truncated CLOSE_CLIENT value")
	ErrShortClosed    = errors.New("steering: truncated CLOSED_CLIENT value")
)

// MAC is a 6-byte 802.11 station or BSSID address.
type MAC [6]byte

// IsZero reports whether m is the all-zero address, used to mean "none" for
// remote_bssid and close_bssid.
func (m MAC) IsZero() bool {
	return m == MAC{}
}

// String renders the colon-separated hex form external AP-stack calls
// expect (blacklist add/remove and disassociate are string-MAC APIs).
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// ErrInvalidMAC is returned by ParseMAC for anything not shaped like six
// colon-separated hex octets.
var ErrInvalidMAC = errors.New("steering: invalid MAC address")

// ParseMAC parses the colon-separated hex form produced by MAC.String, the
// form configuration files and the debug endpoint use.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	n, err := fmt.Sscanf(s, "%02x:%02x:%02x:%02x:%02x:%02x",
		&m[0], &m[1], &m[2], &m[3], &m[4], &m[5])
	if err != nil || n != 6 {
		return MAC{}, fmt.Errorf("%q: %w", s, ErrInvalidMAC)
	}
	return m, nil
}

// ScoreTLV carries a link-quality score publication for a STA.
type ScoreTLV struct {
	STA              MAC
	BSSID            MAC
	Score            uint16
	AssociatedMillis uint32
}

// CloseClientTLV directs the target BSS to release a STA in favor of the
// sender.
type CloseClientTLV struct {
	STA          MAC
	SenderBSSID  MAC
	TargetBSSID  MAC
	Channel      uint8
}

// ClosedClientTLV confirms that the target BSS has released a STA.
type ClosedClientTLV struct {
	STA         MAC
	TargetBSSID MAC
}

// Frame is a fully decoded steering control packet: the header's sequence
// number plus whichever TLVs it carried, in wire order. A single frame
// carries exactly one TLV in every flood call this implementation makes,
// but the decoder accepts (and the type models) an arbitrary sequence,
// matching the original protocol's framing.
type Frame struct {
	Seq     uint16
	Scores  []ScoreTLV
	Closes  []CloseClientTLV
	Closeds []ClosedClientTLV
}

// frameWriter accumulates a single TLV payload. header fields are patched
// in by finish once the total length is known, mirroring the
// header_put/header_finalize two-pass approach of the original protocol.
type frameWriter struct {
	buf []byte
}

func newFrameWriter(seq uint16) *frameWriter {
	w := &frameWriter{buf: make([]byte, headerLen, 64)}
	w.buf[0] = Magic
	w.buf[1] = WireVersion
	// buf[2:4] (packet_len) patched in finish.
	binary.BigEndian.PutUint16(w.buf[4:6], seq)
	return w
}

func (w *frameWriter) putTLVHeader(tlvType uint8, length uint8) {
	w.buf = append(w.buf, tlvType, length)
}

func (w *frameWriter) putMAC(m MAC) {
	w.buf = append(w.buf, m[:]...)
}

func (w *frameWriter) putUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *frameWriter) putUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *frameWriter) putUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// finish patches the total packet_len into the header and returns the
// finished frame bytes.
func (w *frameWriter) finish() []byte {
	binary.BigEndian.PutUint16(w.buf[2:4], uint16(len(w.buf)))
	return w.buf
}

// EncodeScore builds a single-TLV frame publishing a STA's score.
func EncodeScore(seq uint16, t ScoreTLV) []byte {
	w := newFrameWriter(seq)
	w.putTLVHeader(tlvScore, scoreValueLen)
	w.putMAC(t.STA)
	w.putMAC(t.BSSID)
	w.putUint16(t.Score)
	w.putUint32(t.AssociatedMillis)
	return w.finish()
}

// EncodeCloseClient builds a single-TLV frame directing a peer to release a
// STA.
func EncodeCloseClient(seq uint16, t CloseClientTLV) []byte {
	w := newFrameWriter(seq)
	w.putTLVHeader(tlvCloseClient, closeValueLen)
	w.putMAC(t.STA)
	w.putMAC(t.SenderBSSID)
	w.putMAC(t.TargetBSSID)
	w.putUint8(t.Channel)
	return w.finish()
}

// EncodeClosedClient builds a single-TLV frame confirming a release.
func EncodeClosedClient(seq uint16, t ClosedClientTLV) []byte {
	w := newFrameWriter(seq)
	w.putTLVHeader(tlvClosedClient, closedValueLen)
	w.putMAC(t.STA)
	w.putMAC(t.TargetBSSID)
	return w.finish()
}

// Decode parses a received frame. It fails closed: any truncation at any
// field boundary, or a magic/version mismatch, returns an error and the
// caller must drop the packet without touching FSM state. Unknown TLV
// types are skipped by their declared length and never cause an error —
// that is the protocol's forward-compatibility hook.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < headerLen {
		return Frame{}, fmt.Errorf("%d bytes: %w", len(buf), ErrShortHeader)
	}
	if buf[0] != Magic {
		return Frame{}, fmt.Errorf("got %#x: %w", buf[0], ErrBadMagic)
	}
	if buf[1] != WireVersion {
		return Frame{}, fmt.Errorf("got %d: %w", buf[1], ErrBadVersion)
	}
	packetLen := binary.BigEndian.Uint16(buf[2:4])
	if int(packetLen) > len(buf) {
		return Frame{}, fmt.Errorf("declared %d, have %d: %w", packetLen, len(buf), ErrShortPacket)
	}

	f := Frame{Seq: binary.BigEndian.Uint16(buf[4:6])}

	pos := headerLen
	end := int(packetLen)
	for pos < end {
		if end-pos < tlvHeaderLen {
			return Frame{}, fmt.Errorf("at offset %d: %w", pos, ErrShortTLVHeader)
		}
		tlvType := buf[pos]
		tlvLen := int(buf[pos+1])
		pos += tlvHeaderLen

		if end-pos < tlvLen {
			return Frame{}, fmt.Errorf("tlv type %d declares %d bytes, %d remain: %w",
				tlvType, tlvLen, end-pos, ErrShortTLVValue)
		}
		value := buf[pos : pos+tlvLen]

		switch tlvType {
		case tlvScore:
			s, err := decodeScore(value)
			if err != nil {
				return Frame{}, err
			}
			f.Scores = append(f.Scores, s)
		case tlvCloseClient:
			c, err := decodeCloseClient(value)
			if err != nil {
				return Frame{}, err
			}
			f.Closes = append(f.Closes, c)
		case tlvClosedClient:
			c, err := decodeClosedClient(value)
			if err != nil {
				return Frame{}, err
			}
			f.Closeds = append(f.Closeds, c)
		default:
			// Reserved/unknown TLV type: skip by declared length, the
			// protocol's forward-compatibility hook. Not an error.
		}
		pos += tlvLen
	}

	return f, nil
}

func decodeScore(v []byte) (ScoreTLV, error) {
	if len(v) < scoreValueLen {
		return ScoreTLV{}, fmt.Errorf("%d bytes: %w", len(v), ErrShortScore)
	}
	var t ScoreTLV
	copy(t.STA[:], v[0:6])
	copy(t.BSSID[:], v[6:12])
	t.Score = binary.BigEndian.Uint16(v[12:14])
	t.AssociatedMillis = binary.BigEndian.Uint32(v[14:18])
	return t, nil
}

func decodeCloseClient(v []byte) (CloseClientTLV, error) {
	if len(v) < closeValueLen {
		return CloseClientTLV{}, fmt.Errorf("%d bytes: %w", len(v), ErrShortClose)
	}
	var t CloseClientTLV
	copy(t.STA[:], v[0:6])
	copy(t.SenderBSSID[:], v[6:12])
	copy(t.TargetBSSID[:], v[12:18])
	t.Channel = v[18]
	return t, nil
}

func decodeClosedClient(v []byte) (ClosedClientTLV, error) {
	if len(v) < closedValueLen {
		return ClosedClientTLV{}, fmt.Errorf("%d bytes: %w", len(v), ErrShortClosed)
	}
	var t ClosedClientTLV
	copy(t.STA[:], v[0:6])
	copy(t.TargetBSSID[:], v[6:12])
	return t, nil
}
